// Package imagecheck validates uploaded photos before any provider is called.
package imagecheck

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var (
	ErrEmpty             = errors.New("empty image payload")
	ErrTooLarge          = errors.New("image exceeds size limit")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrNotImage          = errors.New("file must be an image")
)

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".gif":  true,
	".webp": true,
}

// Image is a validated upload.
type Image struct {
	Data     []byte
	Filename string
	MimeType string // from the decoded header, not the client
	Format   string
	Width    int
	Height   int
}

type Validator struct {
	maxBytes int64
}

func NewValidator(maxBytes int64) *Validator {
	return &Validator{maxBytes: maxBytes}
}

func (v *Validator) MaxBytes() int64 { return v.maxBytes }

// CheckName applies the extension and declared MIME rules. It needs no
// payload, so handlers call it before reading the body. An empty filename
// or MIME type skips that rule.
func (v *Validator) CheckName(filename, declaredMIME string) error {
	if declaredMIME != "" && !strings.HasPrefix(strings.ToLower(declaredMIME), "image/") {
		return fmt.Errorf("%w (got %s)", ErrNotImage, declaredMIME)
	}
	if filename != "" {
		ext := strings.ToLower(filepath.Ext(filename))
		if !allowedExtensions[ext] {
			return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
		}
	}
	return nil
}

// Check validates name, size and content. The payload must decode as one of
// the allowed raster formats.
func (v *Validator) Check(filename, declaredMIME string, data []byte) (*Image, error) {
	if err := v.CheckName(filename, declaredMIME); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if v.maxBytes > 0 && int64(len(data)) > v.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d bytes)", ErrTooLarge, len(data), v.maxBytes)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}

	if filename == "" {
		filename = "upload." + format
	}
	return &Image{
		Data:     data,
		Filename: filename,
		MimeType: "image/" + format,
		Format:   format,
		Width:    cfg.Width,
		Height:   cfg.Height,
	}, nil
}

// DecodeBase64 accepts plain base64 or a data: URL and returns the bytes and
// the MIME type declared by the URL, if any.
func DecodeBase64(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	mimeType := ""
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		meta, payload, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(meta, ";base64") {
			return nil, "", errors.New("invalid data URL")
		}
		mimeType = strings.TrimSuffix(meta, ";base64")
		s = payload
	}
	if s == "" {
		return nil, "", ErrEmpty
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		// some clients strip the padding
		if data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "=")); err != nil {
			return nil, "", fmt.Errorf("decode base64: %w", err)
		}
	}
	return data, mimeType, nil
}
