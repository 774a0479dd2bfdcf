package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/nats-io/nats.go"
)

// NATSStorage keeps audio in JetStream object store buckets. Buckets are
// bound, or created, on first use.
type NATSStorage struct {
	js        nats.JetStreamContext
	urlPrefix string

	mu     sync.Mutex
	stores map[string]nats.ObjectStore
}

func NewNATSStorage(js nats.JetStreamContext, urlPrefix string) *NATSStorage {
	return &NATSStorage{
		js:        js,
		urlPrefix: urlPrefix,
		stores:    make(map[string]nats.ObjectStore),
	}
}

func (s *NATSStorage) bucket(name string) (nats.ObjectStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if store, ok := s.stores[name]; ok {
		return store, nil
	}

	store, err := s.js.ObjectStore(name)
	if err != nil {
		store, err = s.js.CreateObjectStore(&nats.ObjectStoreConfig{
			Bucket:      name,
			Description: fmt.Sprintf("Generated audio for the %s bucket.", name),
			Storage:     nats.FileStorage,
			Replicas:    1,
		})
		if err != nil {
			return nil, fmt.Errorf("create object store bucket %q: %w", name, err)
		}
	}
	s.stores[name] = store
	return store, nil
}

func (s *NATSStorage) Upload(_ context.Context, bucket, path string, data io.Reader, contentType string) error {
	store, err := s.bucket(bucket)
	if err != nil {
		return err
	}
	_, err = store.Put(&nats.ObjectMeta{
		Name:     path,
		Metadata: map[string]string{"content-type": contentType},
	}, data)
	if err != nil {
		return fmt.Errorf("put object %q to bucket %q: %w", path, bucket, err)
	}
	return nil
}

func (s *NATSStorage) Download(_ context.Context, bucket, path string) (io.ReadCloser, error) {
	store, err := s.bucket(bucket)
	if err != nil {
		return nil, err
	}
	obj, err := store.Get(path)
	if err != nil {
		if errors.Is(err, nats.ErrObjectNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get object %q from bucket %q: %w", path, bucket, err)
	}
	return obj, nil
}

func (s *NATSStorage) Delete(_ context.Context, bucket, path string) error {
	store, err := s.bucket(bucket)
	if err != nil {
		return err
	}
	if err := store.Delete(path); err != nil && !errors.Is(err, nats.ErrObjectNotFound) {
		return fmt.Errorf("delete object %q: %w", path, err)
	}
	return nil
}

func (s *NATSStorage) GetPublicURL(_, path string) string {
	return s.urlPrefix + "/" + path
}
