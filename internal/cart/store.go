package cart

import (
	"context"
	"log"
	"sync"

	"github.com/ivanderson2066/velora-storefront/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// Catalog is the slice of the storefront API the cart depends on.
// Consumers define this interface, not the HTTP client implementation.
type Catalog interface {
	VariantPrices(ctx context.Context, ids []string) (map[string]domain.Money, error)
	CreateCheckout(ctx context.Context, lines []domain.CheckoutLine) (string, error)
}

// Store owns one cart: an ordered list of line items keyed by variant ID
// plus a loading flag. Mutations are synchronous and atomic; price sync
// and checkout creation go to the network and absorb their own failures.
// Every mutation schedules a best-effort persistence write; in-memory
// state is the source of truth and the persisted copy trails it.
//
// A successful CreateCheckout never clears the cart. Clearing happens
// when the checkout-completed event for the session arrives (see the
// consumer package), so an abandoned checkout keeps the shopper's items.
type Store struct {
	mu         sync.Mutex
	items      []domain.LineItem
	isLoading  bool
	persistSeq uint64

	// persistMu serializes writes to the backend; savedSeq is the
	// sequence of the snapshot that last reached it (guarded by
	// persistMu, not mu).
	persistMu sync.Mutex
	savedSeq  uint64

	catalog   Catalog
	persister *Persister
	checkouts singleflight.Group
}

func NewStore(catalog Catalog, persister *Persister) *Store {
	return &Store{
		catalog:   catalog,
		persister: persister,
	}
}

// Load rehydrates the store from its persisted slot. Anything invalid in
// the stored payload has already been dropped by the persister; loading
// always leaves the store in a usable state.
func (s *Store) Load(ctx context.Context) {
	items := s.persister.Load(ctx)

	s.mu.Lock()
	s.items = items
	s.isLoading = false
	s.mu.Unlock()
}

// AddItem merges the item into the cart. When the variant is already
// present only its quantity grows; the existing entry's price and
// snapshot are kept (the price observed at first add wins until an
// explicit sync). New variants append, preserving insertion order.
func (s *Store) AddItem(item domain.LineItem) {
	if item.VariantID == "" || item.Quantity < 1 {
		log.Printf("ignoring invalid cart item: variant=%q quantity=%d", item.VariantID, item.Quantity)
		return
	}

	s.mu.Lock()
	merged := false
	for i := range s.items {
		if s.items[i].VariantID == item.VariantID {
			s.items[i].Quantity += item.Quantity
			merged = true
			break
		}
	}
	if !merged {
		s.items = append(s.items, item)
	}
	s.mu.Unlock()

	s.persistAsync()
}

// UpdateQuantity sets the item's quantity to an absolute value. A value
// of zero or less removes the item; an unknown variant ID is a no-op.
func (s *Store) UpdateQuantity(variantID string, quantity int) {
	if quantity <= 0 {
		s.RemoveItem(variantID)
		return
	}

	s.mu.Lock()
	changed := false
	for i := range s.items {
		if s.items[i].VariantID == variantID {
			s.items[i].Quantity = quantity
			changed = true
			break
		}
	}
	s.mu.Unlock()

	if changed {
		s.persistAsync()
	}
}

// RemoveItem deletes the line item with the given variant ID, no-op when
// absent.
func (s *Store) RemoveItem(variantID string) {
	s.mu.Lock()
	removed := false
	for i := range s.items {
		if s.items[i].VariantID == variantID {
			s.items = append(s.items[:i], s.items[i+1:]...)
			removed = true
			break
		}
	}
	s.mu.Unlock()

	if removed {
		s.persistAsync()
	}
}

// Clear empties the cart.
func (s *Store) Clear() {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()

	s.persistAsync()
}

func (s *Store) SetLoading(flag bool) {
	s.mu.Lock()
	s.isLoading = flag
	s.mu.Unlock()
}

func (s *Store) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isLoading
}

// Items returns a copy of the line items in insertion order.
func (s *Store) Items() []domain.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]domain.LineItem, len(s.items))
	copy(items, s.items)
	return items
}

// TotalItems is the sum of quantities across all line items.
func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, item := range s.items {
		total += item.Quantity
	}
	return total
}

// TotalPrice sums unit price times quantity over all items, preferring a
// live price embedded in the item's own product snapshot and falling back
// to the stored unit price. A malformed price degrades only that item's
// contribution; the sum itself always computes.
func (s *Store) TotalPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	for _, item := range s.items {
		unit := unitPrice(item)
		total = total.Add(unit.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// Currency reports the currency code of the cart, taken from the first
// line item. Empty for an empty cart.
func (s *Store) Currency() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return ""
	}
	return s.items[0].Price.CurrencyCode
}

// Snapshot is one consistent view of the cart. Everything in it is read
// under a single lock acquisition, so the items, totals, and loading flag
// always describe the same moment even while the cart is being mutated.
type Snapshot struct {
	Items      []domain.LineItem
	TotalItems int
	Subtotal   decimal.Decimal
	Currency   string
	IsLoading  bool
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]domain.LineItem, len(s.items))
	copy(items, s.items)

	total := 0
	subtotal := decimal.Zero
	for _, item := range s.items {
		total += item.Quantity
		subtotal = subtotal.Add(unitPrice(item).Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	currency := ""
	if len(s.items) > 0 {
		currency = s.items[0].Price.CurrencyCode
	}

	return Snapshot{
		Items:      items,
		TotalItems: total,
		Subtotal:   subtotal,
		Currency:   currency,
		IsLoading:  s.isLoading,
	}
}

func unitPrice(item domain.LineItem) decimal.Decimal {
	for _, v := range item.Product.Variants {
		if v.ID != item.VariantID || v.Price == nil {
			continue
		}
		if amount, err := decimal.NewFromString(v.Price.Amount); err == nil {
			return amount
		}
		break
	}

	amount, err := decimal.NewFromString(item.Price.Amount)
	if err != nil {
		log.Printf("unparseable price %q for variant %s", item.Price.Amount, item.VariantID)
		return decimal.Zero
	}
	return amount
}

// SyncPrices refreshes every line item's unit price from the catalog in
// one batched call. Items the catalog does not report stay untouched, and
// a fetch failure leaves the whole cart in its pre-sync state: syncing is
// a best-effort refresh, never cart-blocking.
func (s *Store) SyncPrices(ctx context.Context) {
	ids := s.variantIDs()
	if len(ids) == 0 {
		return
	}

	s.SetLoading(true)
	defer s.SetLoading(false)

	prices, err := s.catalog.VariantPrices(ctx, ids)
	if err != nil {
		log.Printf("failed to sync prices: %v", err)
		return
	}

	// Apply by variant ID match at completion time: items added while the
	// fetch was in flight simply were not covered by it.
	s.mu.Lock()
	for i := range s.items {
		if price, ok := prices[s.items[i].VariantID]; ok {
			s.items[i].Price = price
		}
	}
	s.mu.Unlock()

	s.persistAsync()
}

// CreateCheckout hands the cart's lines to the catalog's checkout
// creation and returns the redirect URL, or an empty string when the
// cart is empty or checkout is unavailable. Errors are logged, not
// returned: callers treat "" as "show a retry affordance". Concurrent
// calls on one store coalesce into a single upstream request.
func (s *Store) CreateCheckout(ctx context.Context) string {
	lines := s.checkoutLines()
	if len(lines) == 0 {
		return ""
	}

	s.SetLoading(true)
	defer s.SetLoading(false)

	v, err, _ := s.checkouts.Do("checkout", func() (interface{}, error) {
		return s.catalog.CreateCheckout(ctx, lines)
	})
	if err != nil {
		log.Printf("failed to create checkout: %v", err)
		return ""
	}
	return v.(string)
}

func (s *Store) variantIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.items))
	for _, item := range s.items {
		ids = append(ids, item.VariantID)
	}
	return ids
}

func (s *Store) checkoutLines() []domain.CheckoutLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := make([]domain.CheckoutLine, 0, len(s.items))
	for _, item := range s.items {
		lines = append(lines, domain.CheckoutLine{
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
		})
	}
	return lines
}

// persistAsync snapshots the cart and hands the snapshot to a background
// write. Snapshots carry a sequence number taken under the cart lock, and
// writes run one at a time: a snapshot loses its turn when a later one
// already reached the backend, so a slow write can never clobber a newer
// state. A removed item that resurrected after a restart was the failure
// mode this prevents.
func (s *Store) persistAsync() {
	s.mu.Lock()
	s.persistSeq++
	seq := s.persistSeq
	items := make([]domain.LineItem, len(s.items))
	copy(items, s.items)
	s.mu.Unlock()

	go func() {
		s.persistMu.Lock()
		defer s.persistMu.Unlock()
		if seq <= s.savedSeq {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := s.persister.Save(ctx, items); err != nil {
			log.Printf("failed to persist cart: %v", err)
			return
		}
		s.savedSeq = seq
	}()
}
