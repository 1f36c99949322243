package storage

import (
	"context"
	"errors"
)

// Store is the keyed storage contract.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value stored at key.
	// Returns (nil, nil) if the key doesn't exist.
	// Returns (nil, err) on backend errors.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value at key, overwriting any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key.
	// Should not return an error if the key doesn't exist.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}

// SecureStore is a Store whose values are protected at rest.
type SecureStore interface {
	Store

	// Sealed reports that values are encrypted and authenticated at rest.
	Sealed() bool
}

// ErrClosed is returned when operations are attempted on a closed store.
var ErrClosed = errors.New("storage: store is closed")

// ErrEmptyKey is returned when an operation is given an empty key.
var ErrEmptyKey = errors.New("storage: empty key")

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
