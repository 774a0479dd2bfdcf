package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/visionaid/internal/config"
	"github.com/nikhilbhutani/visionaid/internal/storage"
)

func TestOpenBackends(t *testing.T) {
	s, closeFn, err := storage.Open(config.StorageConfig{Backend: "local", OutputDir: t.TempDir()})
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &storage.LocalStorage{}, s)

	s, closeFn, err = storage.Open(config.StorageConfig{Backend: "supabase", SupabaseURL: "http://x", SupabaseKey: "k"})
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &storage.SupabaseStorage{}, s)

	srv, nc := startNATS(t)
	defer srv.Shutdown()
	nc.Close()
	s, closeFn, err = storage.Open(config.StorageConfig{Backend: "nats", NATSURL: srv.ClientURL()})
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &storage.NATSStorage{}, s)

	_, _, err = storage.Open(config.StorageConfig{Backend: "ftp"})
	require.Error(t, err)
}
