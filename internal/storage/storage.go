package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Download when the object does not exist.
var ErrNotFound = errors.New("storage: object not found")

// Storage persists generated audio. Paths are relative to the bucket.
type Storage interface {
	Upload(ctx context.Context, bucket, path string, data io.Reader, contentType string) error
	Download(ctx context.Context, bucket, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, bucket, path string) error
	GetPublicURL(bucket, path string) string
}
