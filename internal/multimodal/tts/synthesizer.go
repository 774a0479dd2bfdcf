package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrResumeUnsupported is returned by Resume on streaming backends, which
// have no pending work to pick up.
var ErrResumeUnsupported = errors.New("tts: backend cannot resume a pending synthesis")

// PollPolicy bounds how long a submit-then-poll backend is waited on. The
// worst-case wait is Interval * MaxAttempts.
type PollPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultPollPolicy matches the FPT.AI rendering times seen in practice.
var DefaultPollPolicy = PollPolicy{Interval: 10 * time.Second, MaxAttempts: 60}

// PollTimeoutError is returned when the poll budget ran out before the audio
// became available. Handle can be passed to Resume later.
type PollTimeoutError struct {
	Handle   string
	Attempts int
	Waited   time.Duration
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("failed to download audio after %d attempts (%s)", e.Attempts, e.Waited)
}

// Synthesizer is the single synthesis entry point used by the conversion
// pipeline, whatever shape the underlying provider has.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest, policy PollPolicy) (*SynthesisResult, error)
	Resume(ctx context.Context, handle string, policy PollPolicy) (*SynthesisResult, error)
	Name() string
}

// Streaming adapts a TTSProvider. The poll policy is ignored.
func Streaming(p TTSProvider) Synthesizer {
	return &streaming{p: p}
}

type streaming struct {
	p TTSProvider
}

func (s *streaming) Name() string { return s.p.Name() }

func (s *streaming) Synthesize(ctx context.Context, req SynthesisRequest, _ PollPolicy) (*SynthesisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.p.Synthesize(ctx, req)
}

func (s *streaming) Resume(context.Context, string, PollPolicy) (*SynthesisResult, error) {
	return nil, ErrResumeUnsupported
}

// Polling adapts an AsyncTTSProvider: submit once, then wait Interval and
// fetch, up to MaxAttempts times.
func Polling(p AsyncTTSProvider) Synthesizer {
	return &polling{p: p}
}

type polling struct {
	p AsyncTTSProvider
}

func (s *polling) Name() string { return s.p.Name() }

func (s *polling) Synthesize(ctx context.Context, req SynthesisRequest, policy PollPolicy) (*SynthesisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	handle, err := s.p.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	slog.Info("synthesis submitted", "provider", s.p.Name(), "handle", handle)
	return s.poll(ctx, handle, policy)
}

func (s *polling) Resume(ctx context.Context, handle string, policy PollPolicy) (*SynthesisResult, error) {
	if handle == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidHandle)
	}
	if hc, ok := s.p.(HandleChecker); ok {
		if err := hc.CheckHandle(handle); err != nil {
			return nil, err
		}
	}
	return s.poll(ctx, handle, policy)
}

func (s *polling) poll(ctx context.Context, handle string, policy PollPolicy) (*SynthesisResult, error) {
	if policy.MaxAttempts <= 0 {
		policy = DefaultPollPolicy
	}

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		timer.Reset(policy.Interval)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		res, err := s.p.Fetch(ctx, handle)
		if err == nil {
			slog.Info("synthesis ready", "provider", s.p.Name(), "attempt", attempt)
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, ErrInvalidHandle) {
			return nil, err
		}
		// a failed download counts as not ready yet
		slog.Debug("audio not ready", "provider", s.p.Name(), "attempt", attempt, "max_attempts", policy.MaxAttempts, "error", err)
	}

	return nil, &PollTimeoutError{
		Handle:   handle,
		Attempts: policy.MaxAttempts,
		Waited:   time.Duration(policy.MaxAttempts) * policy.Interval,
	}
}
