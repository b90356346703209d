package storage

import (
	"context"
	"errors"
)

// Backend is a key-value slot a cart can be persisted into. Consumers
// define this interface, not the individual implementations.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// ErrNotFound is returned by Get when the backend holds no value for the
// key. Any other error means the backend itself failed and the caller may
// try the next one in the chain.
var ErrNotFound = errors.New("storage: key not found")
