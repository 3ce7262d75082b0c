package storage

import "context"

// Store is the blob backend behind the persisted documents. Documents
// are whole-blob replace-on-write; merge semantics live one layer up
// in Documents.
type Store interface {
	// Write stores data at the given path
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path
	Read(ctx context.Context, path string) ([]byte, error)

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}
