package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage keeps objects under root/bucket/path on the local filesystem.
type LocalStorage struct {
	root      string
	urlPrefix string
}

// NewLocalStorage creates the root directory if needed. urlPrefix is the
// HTTP route the files are served under, e.g. "/outputs".
func NewLocalStorage(root, urlPrefix string) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStorage{root: root, urlPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

func (s *LocalStorage) resolve(bucket, path string) (string, error) {
	rel := filepath.Join(bucket, filepath.FromSlash(path))
	if path == "" || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("invalid object path %q", path)
	}
	return filepath.Join(s.root, rel), nil
}

// Upload writes to a temp file in the target directory and renames it into
// place, so readers never observe a partial file.
func (s *LocalStorage) Upload(_ context.Context, bucket, path string, data io.Reader, _ string) error {
	dst, err := s.resolve(bucket, path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}

func (s *LocalStorage) Download(_ context.Context, bucket, path string) (io.ReadCloser, error) {
	src, err := s.resolve(bucket, path)
	if err != nil {
		return nil, ErrNotFound
	}
	f, err := os.Open(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

// Delete removes the object. A missing object is not an error.
func (s *LocalStorage) Delete(_ context.Context, bucket, path string) error {
	dst, err := s.resolve(bucket, path)
	if err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

func (s *LocalStorage) GetPublicURL(_, path string) string {
	return s.urlPrefix + "/" + path
}

// Sweep removes regular files last modified more than maxAge ago and returns
// how many were deleted.
func (s *LocalStorage) Sweep(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
				slog.Warn("failed to remove old file", "path", p, "error", err)
				return nil
			}
			removed++
		}
		return nil
	})
	return removed, err
}

// RunJanitor sweeps every interval until ctx is done.
func (s *LocalStorage) RunJanitor(ctx context.Context, interval, maxAge time.Duration) error {
	sweep := func() {
		n, err := s.Sweep(maxAge)
		if err != nil {
			slog.Warn("audio sweep failed", "error", err)
			return
		}
		if n > 0 {
			slog.Info("removed old audio files", "count", n)
		}
	}

	sweep()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			sweep()
		}
	}
}
