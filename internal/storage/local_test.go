package storage_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/visionaid/internal/storage"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	root := t.TempDir()
	s, err := storage.NewLocalStorage(root, "/outputs/")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Upload(ctx, "audio", "a.mp3", bytes.NewReader([]byte("abc")), "audio/mpeg"))

	info, err := os.Stat(filepath.Join(root, "audio", "a.mp3"))
	require.NoError(t, err)
	assert.EqualValues(t, 3, info.Size())

	rc, err := s.Download(ctx, "audio", "a.mp3")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)

	assert.Equal(t, "/outputs/a.mp3", s.GetPublicURL("audio", "a.mp3"))

	require.NoError(t, s.Delete(ctx, "audio", "a.mp3"))
	_, err = s.Download(ctx, "audio", "a.mp3")
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, s.Delete(ctx, "audio", "a.mp3"))
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	s, err := storage.NewLocalStorage(t.TempDir(), "/outputs")
	require.NoError(t, err)
	ctx := context.Background()

	err = s.Upload(ctx, "audio", "../../etc/passwd", bytes.NewReader(nil), "text/plain")
	require.Error(t, err)

	_, err = s.Download(ctx, "audio", "../secret")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestLocalStorageLeavesNothingOnFailedWrite(t *testing.T) {
	root := t.TempDir()
	s, err := storage.NewLocalStorage(root, "/outputs")
	require.NoError(t, err)

	err = s.Upload(context.Background(), "audio", "b.mp3", failingReader{}, "audio/mpeg")
	require.Error(t, err)

	entries, err := os.ReadDir(filepath.Join(root, "audio"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocalStorageSweep(t *testing.T) {
	root := t.TempDir()
	s, err := storage.NewLocalStorage(root, "/outputs")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Upload(ctx, "audio", "old.mp3", bytes.NewReader([]byte("x")), "audio/mpeg"))
	require.NoError(t, s.Upload(ctx, "audio", "new.mp3", bytes.NewReader([]byte("y")), "audio/mpeg"))

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(root, "audio", "old.mp3"), old, old))

	n, err := s.Sweep(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = os.Stat(filepath.Join(root, "audio", "old.mp3"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "audio", "new.mp3"))
	assert.NoError(t, err)
}
