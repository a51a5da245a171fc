package repository

import "context"

// KeyValueStore persists serialized carts under string keys.
type KeyValueStore interface {
	// Get returns the stored value. A missing key yields an error matching
	// apperrors.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
