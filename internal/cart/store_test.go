package cart

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ivanderson2066/velora-storefront/internal/domain"
	"github.com/ivanderson2066/velora-storefront/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCatalog struct {
	m             sync.Mutex
	prices        map[string]domain.Money
	pricesErr     error
	priceCalls    int
	lastPriceIDs  []string
	checkoutURL   string
	checkoutErr   error
	checkoutCalls int
	lastLines     []domain.CheckoutLine
}

func (m *mockCatalog) VariantPrices(_ context.Context, ids []string) (map[string]domain.Money, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.priceCalls++
	m.lastPriceIDs = ids
	if m.pricesErr != nil {
		return nil, m.pricesErr
	}
	return m.prices, nil
}

func (m *mockCatalog) CreateCheckout(_ context.Context, lines []domain.CheckoutLine) (string, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.checkoutCalls++
	m.lastLines = lines
	if m.checkoutErr != nil {
		return "", m.checkoutErr
	}
	return m.checkoutURL, nil
}

func newTestStore(catalog Catalog) (*Store, *storage.MemoryBackend) {
	backend := storage.NewMemoryBackend()
	return NewStore(catalog, NewPersister(backend, "cart:test")), backend
}

func lineItem(variantID string, quantity int, amount string) domain.LineItem {
	return domain.LineItem{
		VariantID:    variantID,
		VariantTitle: "Default Title",
		Product: domain.ProductSnapshot{
			ID:     "gid://shopify/Product/1",
			Handle: "silk-pillowcase",
			Title:  "Silk Pillowcase",
		},
		Price:    domain.Money{Amount: amount, CurrencyCode: "USD"},
		Quantity: quantity,
	}
}

func TestAddItem_MergesQuantitiesByVariant(t *testing.T) {
	sut, _ := newTestStore(&mockCatalog{})

	sut.AddItem(lineItem("v1", 2, "10.00"))
	sut.AddItem(lineItem("v2", 1, "5.00"))
	sut.AddItem(lineItem("v1", 3, "10.00"))

	items := sut.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "v1", items[0].VariantID)
	assert.Equal(t, 5, items[0].Quantity)
	assert.Equal(t, "v2", items[1].VariantID)
	assert.Equal(t, 6, sut.TotalItems())
}

func TestAddItem_KeepsOriginalPriceOnMerge(t *testing.T) {
	sut, _ := newTestStore(&mockCatalog{})

	sut.AddItem(lineItem("v1", 2, "10.00"))
	// second add observed a different price; the original entry wins
	sut.AddItem(lineItem("v1", 1, "12.00"))

	items := sut.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, "10.00", items[0].Price.Amount)
}

func TestAddItem_RejectsInvalid(t *testing.T) {
	sut, _ := newTestStore(&mockCatalog{})

	sut.AddItem(lineItem("", 1, "10.00"))
	sut.AddItem(lineItem("v1", 0, "10.00"))

	assert.Empty(t, sut.Items())
}

func TestUpdateQuantity_Absolute(t *testing.T) {
	sut, _ := newTestStore(&mockCatalog{})
	sut.AddItem(lineItem("v1", 2, "10.00"))

	sut.UpdateQuantity("v1", 7)

	assert.Equal(t, 7, sut.Items()[0].Quantity)
}

func TestUpdateQuantity_ZeroOrNegativeRemoves(t *testing.T) {
	for _, quantity := range []int{0, -5} {
		t.Run(fmt.Sprintf("quantity=%d", quantity), func(t *testing.T) {
			sut, _ := newTestStore(&mockCatalog{})
			sut.AddItem(lineItem("v1", 2, "10.00"))
			sut.AddItem(lineItem("v2", 1, "5.00"))

			sut.UpdateQuantity("v1", quantity)

			items := sut.Items()
			require.Len(t, items, 1)
			assert.Equal(t, "v2", items[0].VariantID)
		})
	}
}

func TestUpdateQuantity_UnknownVariantIsNoop(t *testing.T) {
	sut, _ := newTestStore(&mockCatalog{})
	sut.AddItem(lineItem("v1", 2, "10.00"))

	sut.UpdateQuantity("missing", 5)

	assert.Equal(t, 2, sut.Items()[0].Quantity)
}

func TestRemoveItem(t *testing.T) {
	sut, _ := newTestStore(&mockCatalog{})
	sut.AddItem(lineItem("v1", 2, "10.00"))

	sut.RemoveItem("v1")
	sut.RemoveItem("v1") // second remove is a no-op

	assert.Empty(t, sut.Items())
}

func TestClear(t *testing.T) {
	sut, _ := newTestStore(&mockCatalog{})
	sut.AddItem(lineItem("v1", 2, "10.00"))
	sut.AddItem(lineItem("v2", 1, "5.00"))

	sut.Clear()

	assert.Empty(t, sut.Items())
	assert.Equal(t, 0, sut.TotalItems())
}

func TestTotalPrice_UsesStoredPrices(t *testing.T) {
	sut, _ := newTestStore(&mockCatalog{})
	sut.AddItem(lineItem("v1", 2, "10.00"))
	sut.AddItem(lineItem("v2", 3, "5.50"))

	assert.True(t, sut.TotalPrice().Equal(decimal.RequireFromString("36.50")))

	// idempotent: no mutation between reads
	assert.True(t, sut.TotalPrice().Equal(decimal.RequireFromString("36.50")))
}

func TestTotalPrice_PrefersSnapshotPrice(t *testing.T) {
	sut, _ := newTestStore(&mockCatalog{})

	item := lineItem("v1", 2, "10.00")
	item.Product.Variants = []domain.VariantSnapshot{
		{ID: "v1", Price: &domain.Money{Amount: "8.00", CurrencyCode: "USD"}},
		{ID: "v2", Price: &domain.Money{Amount: "99.00", CurrencyCode: "USD"}},
	}
	sut.AddItem(item)

	assert.True(t, sut.TotalPrice().Equal(decimal.RequireFromString("16.00")))
}

func TestTotalPrice_BadItemDegradesOnlyItself(t *testing.T) {
	sut, _ := newTestStore(&mockCatalog{})

	// snapshot carries garbage; the stored price takes over
	badSnapshot := lineItem("v1", 1, "10.00")
	badSnapshot.Product.Variants = []domain.VariantSnapshot{
		{ID: "v1", Price: &domain.Money{Amount: "not-a-number", CurrencyCode: "USD"}},
	}
	sut.AddItem(badSnapshot)

	// both prices are garbage; the item contributes zero, nothing panics
	badEverything := lineItem("v2", 4, "broken")
	sut.AddItem(badEverything)

	sut.AddItem(lineItem("v3", 1, "2.00"))

	assert.True(t, sut.TotalPrice().Equal(decimal.RequireFromString("12.00")))
}

func TestSyncPrices_UpdatesOnlyReportedVariants(t *testing.T) {
	catalog := &mockCatalog{
		prices: map[string]domain.Money{
			"v1": {Amount: "11.00", CurrencyCode: "USD"},
		},
	}
	sut, _ := newTestStore(catalog)
	sut.AddItem(lineItem("v1", 2, "10.00"))
	sut.AddItem(lineItem("v2", 1, "5.00"))

	sut.SyncPrices(context.Background())

	items := sut.Items()
	assert.Equal(t, "11.00", items[0].Price.Amount)
	assert.Equal(t, "5.00", items[1].Price.Amount)
	assert.ElementsMatch(t, []string{"v1", "v2"}, catalog.lastPriceIDs)
	assert.False(t, sut.IsLoading())
}

func TestSyncPrices_EmptyCartSkipsNetwork(t *testing.T) {
	catalog := &mockCatalog{}
	sut, _ := newTestStore(catalog)

	sut.SyncPrices(context.Background())

	assert.Equal(t, 0, catalog.priceCalls)
}

func TestSyncPrices_FailureLeavesCartUntouched(t *testing.T) {
	catalog := &mockCatalog{pricesErr: fmt.Errorf("storefront unreachable")}
	sut, _ := newTestStore(catalog)
	sut.AddItem(lineItem("v1", 2, "10.00"))

	sut.SyncPrices(context.Background())

	assert.Equal(t, "10.00", sut.Items()[0].Price.Amount)
	assert.False(t, sut.IsLoading(), "loading flag must reset after a failed sync")
}

func TestCreateCheckout_EmptyCartReturnsEmptyWithoutNetwork(t *testing.T) {
	catalog := &mockCatalog{checkoutURL: "https://checkout.example/123"}
	sut, _ := newTestStore(catalog)

	url := sut.CreateCheckout(context.Background())

	assert.Empty(t, url)
	assert.Equal(t, 0, catalog.checkoutCalls)
}

func TestCreateCheckout_SendsLinesAndReturnsURL(t *testing.T) {
	catalog := &mockCatalog{checkoutURL: "https://checkout.example/123"}
	sut, _ := newTestStore(catalog)
	sut.AddItem(lineItem("v1", 2, "10.00"))
	sut.AddItem(lineItem("v2", 1, "5.00"))

	url := sut.CreateCheckout(context.Background())

	assert.Equal(t, "https://checkout.example/123", url)
	assert.Equal(t, []domain.CheckoutLine{
		{VariantID: "v1", Quantity: 2},
		{VariantID: "v2", Quantity: 1},
	}, catalog.lastLines)

	// the cart is not cleared by a successful checkout creation
	assert.Len(t, sut.Items(), 2)
	assert.False(t, sut.IsLoading())
}

func TestCreateCheckout_FailureReturnsEmpty(t *testing.T) {
	catalog := &mockCatalog{checkoutErr: fmt.Errorf("storefront unreachable")}
	sut, _ := newTestStore(catalog)
	sut.AddItem(lineItem("v1", 2, "10.00"))

	url := sut.CreateCheckout(context.Background())

	assert.Empty(t, url)
	assert.False(t, sut.IsLoading(), "loading flag must reset after a failed checkout")
}

func TestMutations_PersistEventually(t *testing.T) {
	sut, backend := newTestStore(&mockCatalog{})

	sut.AddItem(lineItem("v1", 2, "10.00"))

	require.Eventually(t, func() bool {
		_, err := backend.Get(context.Background(), "cart:test")
		return err == nil
	}, 500*time.Millisecond, 10*time.Millisecond, "cart was not persisted")
}

// slowFirstWriteBackend delays the first Set long enough for a later
// write to be scheduled while it is still in flight.
type slowFirstWriteBackend struct {
	inner *storage.MemoryBackend
	m     sync.Mutex
	sets  int
}

func (b *slowFirstWriteBackend) Get(ctx context.Context, key string) (string, error) {
	return b.inner.Get(ctx, key)
}

func (b *slowFirstWriteBackend) Set(ctx context.Context, key, value string) error {
	b.m.Lock()
	b.sets++
	first := b.sets == 1
	b.m.Unlock()
	if first {
		time.Sleep(150 * time.Millisecond)
	}
	return b.inner.Set(ctx, key, value)
}

func (b *slowFirstWriteBackend) Remove(ctx context.Context, key string) error {
	return b.inner.Remove(ctx, key)
}

func (b *slowFirstWriteBackend) Clear(ctx context.Context) error {
	return b.inner.Clear(ctx)
}

func TestMutations_SlowWriteCannotClobberNewerState(t *testing.T) {
	backend := &slowFirstWriteBackend{inner: storage.NewMemoryBackend()}
	sut := NewStore(&mockCatalog{}, NewPersister(backend, "cart:test"))

	sut.AddItem(lineItem("v1", 2, "10.00"))
	sut.RemoveItem("v1")

	require.Eventually(t, func() bool {
		sut.persistMu.Lock()
		defer sut.persistMu.Unlock()
		return sut.savedSeq == 2
	}, 2*time.Second, 10*time.Millisecond, "latest snapshot never reached the backend")

	// a restart rehydrates from the backend; the removed item must not
	// come back via the write that was in flight when it was removed
	fresh := NewStore(&mockCatalog{}, NewPersister(backend, "cart:test"))
	fresh.Load(context.Background())
	assert.Empty(t, fresh.Items())
}

func TestSnapshot_IsInternallyConsistent(t *testing.T) {
	sut, _ := newTestStore(&mockCatalog{})
	sut.AddItem(lineItem("v1", 1, "10.00"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			sut.AddItem(lineItem("v2", 3, "5.00"))
			sut.RemoveItem("v2")
		}
	}()

	for i := 0; i < 500; i++ {
		snap := sut.Snapshot()
		total := 0
		subtotal := decimal.Zero
		for _, item := range snap.Items {
			total += item.Quantity
			subtotal = subtotal.Add(decimal.RequireFromString(item.Price.Amount).Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
		assert.Equal(t, total, snap.TotalItems, "totals must describe the same items the snapshot holds")
		assert.True(t, subtotal.Equal(snap.Subtotal))
	}
	<-done
}

func TestManager_IsolatesSessionsAndClears(t *testing.T) {
	backend := storage.NewMemoryBackend()
	manager := NewManager(&mockCatalog{}, backend)
	ctx := context.Background()

	manager.Store(ctx, "sess-a").AddItem(lineItem("v1", 2, "10.00"))
	manager.Store(ctx, "sess-b").AddItem(lineItem("v2", 1, "5.00"))

	assert.Equal(t, 2, manager.Store(ctx, "sess-a").TotalItems())
	assert.Equal(t, 1, manager.Store(ctx, "sess-b").TotalItems())

	manager.Clear(ctx, "sess-a")

	assert.Empty(t, manager.Store(ctx, "sess-a").Items())
	assert.Len(t, manager.Store(ctx, "sess-b").Items(), 1)
}

func TestManager_RehydratesFromStorage(t *testing.T) {
	backend := storage.NewMemoryBackend()
	ctx := context.Background()

	first := NewManager(&mockCatalog{}, backend)
	first.Store(ctx, "sess-a").AddItem(lineItem("v1", 3, "10.00"))

	require.Eventually(t, func() bool {
		_, err := backend.Get(ctx, "cart:sess-a")
		return err == nil
	}, 500*time.Millisecond, 10*time.Millisecond)

	// a fresh manager simulates a process restart over the same backend
	second := NewManager(&mockCatalog{}, backend)
	items := second.Store(ctx, "sess-a").Items()
	require.Len(t, items, 1)
	assert.Equal(t, "v1", items[0].VariantID)
	assert.Equal(t, 3, items[0].Quantity)
}

func TestManager_EvictsIdleStores(t *testing.T) {
	backend := storage.NewMemoryBackend()
	manager := NewManager(&mockCatalog{}, backend)
	ctx := context.Background()

	manager.Store(ctx, "sess-a").AddItem(lineItem("v1", 2, "10.00"))

	require.Eventually(t, func() bool {
		_, err := backend.Get(ctx, "cart:sess-a")
		return err == nil
	}, 500*time.Millisecond, 10*time.Millisecond)

	// a just-touched store stays put
	assert.Equal(t, 0, manager.EvictIdle(time.Now()))

	assert.Equal(t, 1, manager.EvictIdle(time.Now().Add(storeIdleTTL+time.Minute)))

	// the next request rebuilds the store from its persisted slot
	items := manager.Store(ctx, "sess-a").Items()
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
}
