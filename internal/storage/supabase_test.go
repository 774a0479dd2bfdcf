package storage_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/visionaid/internal/storage"
)

func TestSupabaseStorage(t *testing.T) {
	objects := map[string]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer service", r.Header.Get("Authorization"))
		key := strings.TrimPrefix(r.URL.Path, "/storage/v1/object/")
		switch r.Method {
		case http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			objects[key] = string(body)
			_, _ = w.Write([]byte(`{"Key":"` + key + `"}`))
		case http.MethodGet:
			data, ok := objects[key]
			if !ok {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"not_found","message":"Object not found"}`))
				return
			}
			_, _ = w.Write([]byte(data))
		case http.MethodDelete:
			delete(objects, key)
		}
	}))
	defer srv.Close()

	s := storage.NewSupabaseStorage(srv.URL+"/", "service")
	ctx := context.Background()

	require.NoError(t, s.Upload(ctx, "audio", "x.mp3", strings.NewReader("mp3"), "audio/mpeg"))
	assert.Equal(t, "mp3", objects["audio/x.mp3"])

	rc, err := s.Download(ctx, "audio", "x.mp3")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "mp3", string(data))

	require.NoError(t, s.Delete(ctx, "audio", "x.mp3"))
	_, err = s.Download(ctx, "audio", "x.mp3")
	require.ErrorIs(t, err, storage.ErrNotFound)

	assert.Equal(t, srv.URL+"/storage/v1/object/public/audio/x.mp3", s.GetPublicURL("audio", "x.mp3"))
}
