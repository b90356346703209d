package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ivanderson2066/velora-storefront/internal/domain"
	"github.com/ivanderson2066/velora-storefront/internal/storage"
)

// schemaVersion tags persisted cart payloads. Loading a payload with an
// older version walks the migration table one step at a time; a version
// with no migration path discards the whole cart.
const schemaVersion = 2

const persistTimeout = 2 * time.Second

// MigrationFunc rewrites the raw items of one schema version into the
// next. Migrations are pure payload transforms; validation runs after
// the chain has reached the current version.
type MigrationFunc func(items []json.RawMessage) ([]json.RawMessage, error)

type envelope struct {
	Version int               `json:"version"`
	Items   []json.RawMessage `json:"items"`
}

// Persister serializes a cart into one fixed storage slot as a versioned
// JSON envelope and rehydrates it, dropping whatever fails validation.
type Persister struct {
	backend    storage.Backend
	key        string
	migrations map[int]MigrationFunc
}

func NewPersister(backend storage.Backend, key string) *Persister {
	return &Persister{
		backend:    backend,
		key:        key,
		migrations: defaultMigrations(),
	}
}

func (p *Persister) Save(ctx context.Context, items []domain.LineItem) error {
	raws := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		raw, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to marshal cart item: %w", err)
		}
		raws = append(raws, raw)
	}

	payload, err := json.Marshal(envelope{Version: schemaVersion, Items: raws})
	if err != nil {
		return fmt.Errorf("failed to marshal cart envelope: %w", err)
	}
	return p.backend.Set(ctx, p.key, string(payload))
}

// Load reads the persisted cart. Every failure mode resolves to a usable
// item list: a missing slot or corrupt payload yields an empty cart, a
// stale schema version is migrated forward or discarded, and individual
// items failing validation are dropped silently.
func (p *Persister) Load(ctx context.Context) []domain.LineItem {
	payload, err := p.backend.Get(ctx, p.key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		log.Printf("failed to read persisted cart: %v", err)
		return nil
	}

	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		log.Printf("discarding corrupt cart payload: %v", err)
		p.Clear(ctx)
		return nil
	}

	if env.Version > schemaVersion {
		log.Printf("cart schema v%d is newer than supported v%d, discarding", env.Version, schemaVersion)
		p.Clear(ctx)
		return nil
	}

	raws := env.Items
	for version := env.Version; version < schemaVersion; version++ {
		migrate, ok := p.migrations[version]
		if !ok {
			log.Printf("no migration path from cart schema v%d, discarding", env.Version)
			p.Clear(ctx)
			return nil
		}
		raws, err = migrate(raws)
		if err != nil {
			log.Printf("cart schema migration from v%d failed, discarding: %v", version, err)
			p.Clear(ctx)
			return nil
		}
	}

	var items []domain.LineItem
	seen := make(map[string]bool)
	for _, raw := range raws {
		item, err := validateItem(raw)
		if err != nil {
			log.Printf("dropping invalid persisted cart item: %v", err)
			continue
		}
		if seen[item.VariantID] {
			log.Printf("dropping duplicate persisted cart item for variant %s", item.VariantID)
			continue
		}
		seen[item.VariantID] = true
		items = append(items, item)
	}
	return items
}

// Clear removes the persisted slot.
func (p *Persister) Clear(ctx context.Context) {
	if err := p.backend.Remove(ctx, p.key); err != nil {
		log.Printf("failed to clear persisted cart: %v", err)
	}
}

func validateItem(raw json.RawMessage) (domain.LineItem, error) {
	var item domain.LineItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return item, fmt.Errorf("malformed item: %w", err)
	}
	if item.VariantID == "" {
		return item, errors.New("missing variantId")
	}
	if item.Quantity < 1 {
		return item, fmt.Errorf("invalid quantity %d", item.Quantity)
	}
	if item.Price.Amount == "" || item.Price.CurrencyCode == "" {
		return item, errors.New("missing price")
	}

	// The snapshot must at least be an object; its contents are free-form.
	var aux struct {
		Product json.RawMessage `json:"product"`
	}
	if err := json.Unmarshal(raw, &aux); err != nil {
		return item, fmt.Errorf("malformed item: %w", err)
	}
	if trimmed := bytes.TrimSpace(aux.Product); len(trimmed) == 0 || trimmed[0] != '{' {
		return item, errors.New("missing product snapshot")
	}
	return item, nil
}

func defaultMigrations() map[int]MigrationFunc {
	return map[int]MigrationFunc{
		1: migrateV1PriceAmounts,
	}
}

// v1 stored price.amount as a JSON number; v2 keeps it as the decimal
// string the storefront API reports. Everything else carries over.
func migrateV1PriceAmounts(items []json.RawMessage) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(items))
	for _, raw := range items {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()

		var item map[string]any
		if err := dec.Decode(&item); err != nil {
			return nil, fmt.Errorf("malformed v1 item: %w", err)
		}

		if price, ok := item["price"].(map[string]any); ok {
			if amount, ok := price["amount"].(json.Number); ok {
				price["amount"] = amount.String()
			}
		}

		migrated, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("failed to re-marshal v1 item: %w", err)
		}
		out = append(out, migrated)
	}
	return out, nil
}
