// Package store provides the durable tier of the blob store: one file per key
// under a single root directory, published atomically so readers only ever
// observe complete records.
package store

import "context"

// Store is the authoritative record storage. Records are immutable once
// published. Implementations must be safe for concurrent use.
type Store interface {
	// Exists reports whether a published record for key is present.
	// In-progress writes are never reported.
	Exists(ctx context.Context, key string) (bool, error)
	// ReadAll returns the full payload stored under key.
	ReadAll(ctx context.Context, key string) ([]byte, error)
	// WriteAtomic persists payload under key. It fails with ErrKeyExists if
	// a record for key is already published.
	WriteAtomic(ctx context.Context, key string, payload []byte) error
}
