package tts

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// LocalTTSConfig holds configuration for the local Piper TTS backend.
type LocalTTSConfig struct {
	PiperBinPath string // default: "piper"
	ModelPath    string // required: path to the .onnx voice model
}

// LocalTTS synthesizes speech using the Piper binary via subprocess.
// The voice is fixed by the model file; SynthesisRequest.Voice is ignored.
type LocalTTS struct {
	cfg LocalTTSConfig
}

// NewLocalTTS creates a LocalTTS backed by a local Piper binary.
func NewLocalTTS(cfg LocalTTSConfig) *LocalTTS {
	if cfg.PiperBinPath == "" {
		cfg.PiperBinPath = "piper"
	}
	return &LocalTTS{cfg: cfg}
}

func (l *LocalTTS) Name() string { return "local" }

// Synthesize pipes text into Piper via stdin and returns the WAV file it writes
// to stdout.
func (l *LocalTTS) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	if l.cfg.ModelPath == "" {
		return nil, fmt.Errorf("piper model path is required (set TTS_LOCAL_PIPER_MODEL)")
	}

	cmd := exec.CommandContext(ctx, l.cfg.PiperBinPath, "--model", l.cfg.ModelPath, "--output_file", "-")

	cmd.Stdin = strings.NewReader(req.Input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("piper failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("piper produced no audio")
	}

	return &SynthesisResult{
		Audio:       stdout.Bytes(),
		ContentType: "audio/wav",
		Extension:   ".wav",
	}, nil
}
