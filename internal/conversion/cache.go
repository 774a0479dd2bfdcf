package conversion

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"lukechampine.com/blake3"

	"github.com/nikhilbhutani/visionaid/internal/cache"
)

// AnalysisCache remembers analyzer output per (prompt, image) pair so a
// repeated upload skips the vision call. Cache failures never fail a
// conversion.
type AnalysisCache struct {
	cache *cache.Cache
	ttl   time.Duration
}

func NewAnalysisCache(c *cache.Cache, ttl time.Duration) *AnalysisCache {
	return &AnalysisCache{cache: c, ttl: ttl}
}

func analysisKey(image []byte, prompt string) string {
	h := blake3.New(32, nil)
	h.Write([]byte(prompt))
	h.Write([]byte{0})
	h.Write(image)
	return "analysis:" + hex.EncodeToString(h.Sum(nil))
}

func (a *AnalysisCache) lookup(ctx context.Context, image []byte, prompt string) (string, bool) {
	var text string
	err := a.cache.Get(ctx, analysisKey(image, prompt), &text)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			slog.Warn("analysis cache lookup failed", "error", err)
		}
		return "", false
	}
	return text, text != ""
}

func (a *AnalysisCache) store(ctx context.Context, image []byte, prompt, text string) {
	if err := a.cache.Set(ctx, analysisKey(image, prompt), text, a.ttl); err != nil {
		slog.Warn("analysis cache store failed", "error", err)
	}
}

// forget drops an entry whose text turned out to be unusable.
func (a *AnalysisCache) forget(ctx context.Context, image []byte, prompt string) {
	if err := a.cache.Delete(ctx, analysisKey(image, prompt)); err != nil {
		slog.Warn("analysis cache delete failed", "error", err)
	}
}
