package handlers

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nikhilbhutani/visionaid/internal/storage"
)

var audioTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".opus": "audio/ogg",
	".aac":  "audio/aac",
	".flac": "audio/flac",
}

// AudioHandler serves synthesized files out of the configured storage bucket.
type AudioHandler struct {
	store  storage.Storage
	bucket string
}

func NewAudioHandler(store storage.Storage, bucket string) *AudioHandler {
	return &AudioHandler{store: store, bucket: bucket}
}

func (h *AudioHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}

	ext := strings.ToLower(path.Ext(name))
	contentType, ok := audioTypes[ext]
	if !ok {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}

	rc, err := h.store.Download(r.Context(), h.bucket, name)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	if err != nil {
		slog.Error("failed to read audio", "filename", name, "error", err)
		writeError(w, http.StatusBadGateway, "could not read file")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": name}))

	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, name, time.Time{}, rs)
		return
	}
	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("audio transfer interrupted", "filename", name, "error", err)
	}
}
