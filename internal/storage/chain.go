package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// Chain tries an ordered list of backends until one succeeds. A failing
// backend is logged and skipped, never retried: local storage failures
// are assumed categorical (down, quota, permission), not transient.
// The final backend is expected to be a MemoryBackend so the chain as a
// whole cannot fail for the process lifetime.
type Chain struct {
	backends []Backend
}

func NewChain(backends ...Backend) *Chain {
	return &Chain{backends: backends}
}

// Get returns the first value found walking the chain in order. A miss in
// one backend is not authoritative: a value written while an earlier
// backend was unavailable lives further down the chain.
func (c *Chain) Get(ctx context.Context, key string) (string, error) {
	for _, b := range c.backends {
		value, err := b.Get(ctx, key)
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, ErrNotFound) {
			log.Printf("storage backend get error, falling through: %v", err)
		}
	}
	return "", ErrNotFound
}

func (c *Chain) Set(ctx context.Context, key, value string) error {
	return c.each("set", func(b Backend) error { return b.Set(ctx, key, value) })
}

func (c *Chain) Remove(ctx context.Context, key string) error {
	return c.each("remove", func(b Backend) error { return b.Remove(ctx, key) })
}

func (c *Chain) Clear(ctx context.Context) error {
	return c.each("clear", func(b Backend) error { return b.Clear(ctx) })
}

func (c *Chain) each(op string, fn func(Backend) error) error {
	var lastErr error
	for _, b := range c.backends {
		if err := fn(b); err != nil {
			log.Printf("storage backend %s error, falling through: %v", op, err)
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr == nil {
		return fmt.Errorf("storage chain has no backends")
	}
	return lastErr
}
