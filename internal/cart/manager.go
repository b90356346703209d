package cart

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ivanderson2066/velora-storefront/internal/storage"
)

// Idle stores are dropped from memory; the persisted copy rehydrates
// them on the session's next request, so eviction never loses a cart.
const (
	storeIdleTTL  = 30 * time.Minute
	evictInterval = 5 * time.Minute
)

type session struct {
	store    *Store
	lastSeen time.Time
}

// Manager hands out one Store per storefront session. Each store is
// bound to its own fixed storage key and rehydrated from the chain the
// first time the session touches its cart.
type Manager struct {
	mu      sync.Mutex
	stores  map[string]*session
	catalog Catalog
	backend storage.Backend
}

func NewManager(catalog Catalog, backend storage.Backend) *Manager {
	return &Manager{
		stores:  make(map[string]*session),
		catalog: catalog,
		backend: backend,
	}
}

// Store returns the session's cart store, creating and rehydrating it on
// first use.
func (m *Manager) Store(ctx context.Context, sessionID string) *Store {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.stores[sessionID]
	if !ok {
		store := NewStore(m.catalog, NewPersister(m.backend, storageKey(sessionID)))
		store.Load(ctx)
		sess = &session{store: store}
		m.stores[sessionID] = sess
	}
	sess.lastSeen = time.Now()
	return sess.store
}

// Clear empties the session's cart and removes its persisted slot. Used
// when a checkout-completed event for the session arrives.
func (m *Manager) Clear(ctx context.Context, sessionID string) {
	m.mu.Lock()
	sess, ok := m.stores[sessionID]
	delete(m.stores, sessionID)
	m.mu.Unlock()

	if ok {
		sess.store.Clear()
	}
	// The persisted slot goes away even when no store is live: the event
	// may arrive after a restart that dropped the in-memory map.
	NewPersister(m.backend, storageKey(sessionID)).Clear(ctx)
}

// Run sweeps idle stores until the context is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(evictInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if evicted := m.EvictIdle(time.Now()); evicted > 0 {
				log.Printf("evicted %d idle cart stores", evicted)
			}
		}
	}
}

// EvictIdle drops every store not touched within storeIdleTTL of now and
// reports how many went. Their persisted slots stay put.
func (m *Manager) EvictIdle(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, sess := range m.stores {
		if now.Sub(sess.lastSeen) > storeIdleTTL {
			delete(m.stores, id)
			evicted++
		}
	}
	return evicted
}

func storageKey(sessionID string) string {
	return "cart:" + sessionID
}
