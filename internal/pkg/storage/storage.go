package storage

import (
	"context"
	"io"
)

// Storage is the blob-store interface the file domain depends on.
type Storage interface {
	// Save stores an object under key and returns an error on failure.
	Save(ctx context.Context, key string, reader io.Reader, contentType string) error

	// Get retrieves an object's content by key.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes an object by key. Returns nil if it doesn't exist.
	Delete(ctx context.Context, key string) error

	// GetURL returns the public URL for an object key.
	GetURL(key string) string
}
