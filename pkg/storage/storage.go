package storage

import (
	"context"
	"errors"
	"io"
)

// ErrInvalidKey is returned for keys escaping the storage root.
var ErrInvalidKey = errors.New("invalid storage key")

// Object describes a stored upload.
type Object struct {
	Key string
	URL string
}

// ObjectStore persists user uploads (complaint evidence, chat media, avatars).
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (Object, error)
	Remove(ctx context.Context, key string) error
}
