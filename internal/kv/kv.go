// Package kv defines the key-value storage abstraction the discovery
// service persists through. Persisted values are JSON blobs namespaced per
// user; implementations only have to provide durable byte storage.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no value exists for the key.
var ErrNotFound = errors.New("kv: key not found")

// Store is the minimal persistence contract. All methods must be safe for
// concurrent use within a single process; cross-process writers are not
// coordinated (last write wins).
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes the value stored under key. Deleting a missing key
	// is not an error.
	Delete(ctx context.Context, key string) error

	// Keys returns all keys beginning with prefix, in unspecified order.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}
