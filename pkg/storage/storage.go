package storage

import (
	"context"
	"io"
)

// Storage defines file storage operations shared by all backends.
type Storage interface {
	// Put stores the content of r. Without WithKey a random key is generated.
	Put(ctx context.Context, r io.Reader, size int64, opts ...Option) (*FileInfo, error)

	// Get opens a stored file. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes a file. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns all keys under prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
}

// FileInfo contains metadata about a stored file.
type FileInfo struct {
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// DeletePrefix removes every file under prefix and reports how many were removed.
func DeletePrefix(ctx context.Context, s Storage, prefix string) (int, error) {
	keys, err := s.List(ctx, prefix)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, key := range keys {
		if err := s.Delete(ctx, key); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
