package tts

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotReady is returned by AsyncTTSProvider.Fetch while the audio is still
// being rendered.
var ErrNotReady = errors.New("tts: audio not ready")

// ErrInvalidHandle is returned for a handle the provider would never issue.
var ErrInvalidHandle = errors.New("tts: invalid synthesis handle")

// SynthesisRequest holds the parameters for text-to-speech generation.
type SynthesisRequest struct {
	Input  string  `json:"input"`
	Voice  string  `json:"voice,omitempty"`
	Speed  float64 `json:"speed,omitempty"`
	Format string  `json:"format,omitempty"` // default: "mp3"
}

// SynthesisResult holds the generated audio and its content type.
type SynthesisResult struct {
	Audio       []byte
	ContentType string // "audio/mpeg" (FPT, OpenAI, Edge) or "audio/wav" (Piper)
	Extension   string // file extension including the dot
}

// TTSProvider is the interface for backends that return audio in the same call.
type TTSProvider interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error)
	Name() string
}

// AsyncTTSProvider is the interface for submit-then-poll backends. Submit
// returns an opaque handle; Fetch returns ErrNotReady until the audio exists.
type AsyncTTSProvider interface {
	Submit(ctx context.Context, req SynthesisRequest) (handle string, err error)
	Fetch(ctx context.Context, handle string) (*SynthesisResult, error)
	Name() string
}

// HandleChecker is implemented by async providers that can tell whether a
// handle came from them. Resume checks it before any request is made.
type HandleChecker interface {
	CheckHandle(handle string) error
}

// RejectedError reports that a provider refused a synthesis request.
type RejectedError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s rejected synthesis (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s rejected synthesis: %s", e.Provider, e.Message)
}
