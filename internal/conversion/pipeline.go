package conversion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/visionaid/internal/multimodal/tts"
	"github.com/nikhilbhutani/visionaid/internal/storage"
)

// Analyzer turns image bytes into the classified text. multimodal.VisionService
// implements it.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte, mimeType, prompt string) (string, error)
}

// Tuning bounds the submit-then-poll wait. Zero fields take the pipeline
// defaults.
type Tuning struct {
	WaitTime   time.Duration `json:"wait_time,omitempty"`
	MaxRetries int           `json:"max_retries,omitempty"`
}

// Request is one image to convert.
type Request struct {
	Image    []byte
	Filename string
	MimeType string
	Voice    string
	Prompt   string
	Tuning   Tuning
}

// ResumeRequest picks up a synthesis that timed out, reusing the analysis text.
type ResumeRequest struct {
	Handle string
	Text   string
	Voice  string
	Tuning Tuning
}

type Options struct {
	Bucket       string
	DefaultVoice string
	Prompt       string // empty means the analyzer's default
	Tuning       Tuning
	Cache        *AnalysisCache
}

// Pipeline runs analyze, synthesize and persist in order for one image.
type Pipeline struct {
	analyzer Analyzer
	synth    tts.Synthesizer
	store    storage.Storage
	opts     Options
}

func NewPipeline(analyzer Analyzer, synth tts.Synthesizer, store storage.Storage, opts Options) *Pipeline {
	if opts.Bucket == "" {
		opts.Bucket = "audio"
	}
	if opts.DefaultVoice == "" {
		opts.DefaultVoice = "banmai"
	}
	if opts.Tuning.WaitTime <= 0 {
		opts.Tuning.WaitTime = tts.DefaultPollPolicy.Interval
	}
	if opts.Tuning.MaxRetries <= 0 {
		opts.Tuning.MaxRetries = tts.DefaultPollPolicy.MaxAttempts
	}
	return &Pipeline{analyzer: analyzer, synth: synth, store: store, opts: opts}
}

func (p *Pipeline) DefaultVoice() string { return p.opts.DefaultVoice }

func (p *Pipeline) SynthesizerName() string { return p.synth.Name() }

func (p *Pipeline) policy(t Tuning) tts.PollPolicy {
	policy := tts.PollPolicy{Interval: p.opts.Tuning.WaitTime, MaxAttempts: p.opts.Tuning.MaxRetries}
	if t.WaitTime > 0 {
		policy.Interval = t.WaitTime
	}
	if t.MaxRetries > 0 {
		policy.MaxAttempts = t.MaxRetries
	}
	return policy
}

func (p *Pipeline) voice(v string) string {
	if v == "" {
		return p.opts.DefaultVoice
	}
	return v
}

// Convert never returns an error; every failure is reported in the Result.
func (p *Pipeline) Convert(ctx context.Context, req Request) Result {
	if len(req.Image) == 0 {
		return Failed(KindInput, "no image data")
	}
	voice := p.voice(req.Voice)
	prompt := req.Prompt
	if prompt == "" {
		prompt = p.opts.Prompt
	}

	if err := ctx.Err(); err != nil {
		return canceled(err)
	}

	raw, cached, err := p.analyze(ctx, req, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return canceled(ctx.Err())
		}
		slog.Error("image analysis failed", "error", err)
		return Failed(KindAnalysis, fmt.Sprintf("Image analysis failed: %v", err))
	}

	analysis, err := ParseAnalysis(raw)
	if err != nil {
		if cached {
			p.opts.Cache.forget(ctx, req.Image, prompt)
		}
		slog.Warn("analysis format rejected", "error", err)
		return Failed(KindAnalysisFormat, err.Error()).withText(raw)
	}
	if !cached && p.opts.Cache != nil {
		p.opts.Cache.store(ctx, req.Image, prompt, raw)
	}

	if err := ctx.Err(); err != nil {
		return canceled(err).withText(analysis.Raw).withAnalysis(analysis)
	}

	audio, err := p.synth.Synthesize(ctx, tts.SynthesisRequest{
		Input: analysis.Narration(),
		Voice: voice,
	}, p.policy(req.Tuning))
	if err != nil {
		return p.synthesisFailure(ctx, err).withText(analysis.Raw).withAnalysis(analysis)
	}

	res := p.persist(ctx, audio, analysis.Raw, voice)
	return res.withAnalysis(analysis)
}

// Resume fetches a pending synthesis without analyzing again.
func (p *Pipeline) Resume(ctx context.Context, req ResumeRequest) Result {
	if req.Handle == "" {
		return Failed(KindInput, "missing synthesis handle")
	}
	if err := ctx.Err(); err != nil {
		return canceled(err).withText(req.Text)
	}

	audio, err := p.synth.Resume(ctx, req.Handle, p.policy(req.Tuning))
	if err != nil {
		return p.synthesisFailure(ctx, err).withText(req.Text)
	}
	return p.persist(ctx, audio, req.Text, p.voice(req.Voice))
}

func (p *Pipeline) analyze(ctx context.Context, req Request, prompt string) (string, bool, error) {
	if p.opts.Cache != nil {
		if text, ok := p.opts.Cache.lookup(ctx, req.Image, prompt); ok {
			slog.Info("analysis cache hit")
			return text, true, nil
		}
	}

	raw, err := p.analyzer.Analyze(ctx, req.Image, req.MimeType, prompt)
	if err != nil {
		return "", false, err
	}
	return raw, false, nil
}

func (p *Pipeline) synthesisFailure(ctx context.Context, err error) Result {
	var timeout *tts.PollTimeoutError
	switch {
	case ctx.Err() != nil:
		return canceled(ctx.Err())
	case errors.As(err, &timeout):
		slog.Warn("synthesis poll budget exhausted", "handle", timeout.Handle, "attempts", timeout.Attempts)
		res := Failed(KindSynthesisTimeout, timeout.Error())
		res.PendingHandle = timeout.Handle
		return res
	case errors.Is(err, tts.ErrInvalidHandle):
		slog.Warn("synthesis handle rejected", "provider", p.synth.Name(), "error", err)
		return Failed(KindInput, "Invalid synthesis handle")
	case errors.Is(err, tts.ErrResumeUnsupported):
		return Failed(KindSynthesis, fmt.Sprintf("%s backend cannot resume a pending synthesis", p.synth.Name()))
	default:
		slog.Error("speech synthesis failed", "provider", p.synth.Name(), "error", err)
		return Failed(KindSynthesis, fmt.Sprintf("Speech synthesis failed: %v", err))
	}
}

// persist writes the audio under a fresh name. A failed write removes
// whatever the backend may have kept.
func (p *Pipeline) persist(ctx context.Context, audio *tts.SynthesisResult, text, voice string) Result {
	if audio == nil || len(audio.Audio) == 0 {
		return Failed(KindSynthesis, "Speech synthesis returned no audio").withText(text)
	}

	ext := audio.Extension
	if ext == "" {
		ext = ".mp3"
	}
	contentType := audio.ContentType
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	filename := uuid.NewString() + ext

	if err := p.store.Upload(ctx, p.opts.Bucket, filename, bytes.NewReader(audio.Audio), contentType); err != nil {
		slog.Error("failed to store audio", "filename", filename, "error", err)
		if derr := p.store.Delete(context.WithoutCancel(ctx), p.opts.Bucket, filename); derr != nil {
			slog.Warn("failed to remove partial audio", "filename", filename, "error", derr)
		}
		return Failed(KindStorage, fmt.Sprintf("Failed to save audio: %v", err)).withText(text)
	}

	slog.Info("audio stored", "filename", filename, "bytes", len(audio.Audio), "voice", voice)
	return Succeeded(text, filename, p.store.GetPublicURL(p.opts.Bucket, filename), voice)
}

func canceled(err error) Result {
	return Failed(KindCanceled, fmt.Sprintf("Conversion canceled: %v", err))
}
