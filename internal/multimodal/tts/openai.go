package tts

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAITTSConfig holds configuration for the OpenAI TTS backend.
type OpenAITTSConfig struct {
	APIKey  string
	BaseURL string // default: "https://api.openai.com/v1"
	Model   string // default: "tts-1"
}

// OpenAITTS synthesizes speech using OpenAI's speech endpoint.
type OpenAITTS struct {
	client *openai.Client
	model  string
}

func NewOpenAITTS(cfg OpenAITTSConfig) *OpenAITTS {
	if cfg.Model == "" {
		cfg.Model = string(openai.TTSModel1)
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAITTS{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}
}

func (o *OpenAITTS) Name() string { return "openai" }

// Synthesize converts text to MP3. Catalog voices map to nova (female) and
// onyx (male).
func (o *OpenAITTS) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	voice := mapVoice(req.Voice, string(openai.VoiceNova), string(openai.VoiceOnyx))

	sreq := openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.model),
		Input:          req.Input,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	}
	if req.Speed > 0 {
		sreq.Speed = req.Speed
	}

	resp, err := o.client.CreateSpeech(ctx, sreq)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, &RejectedError{Provider: "openai", StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
		}
		return nil, fmt.Errorf("openai tts: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	return &SynthesisResult{
		Audio:       audio,
		ContentType: "audio/mpeg",
		Extension:   ".mp3",
	}, nil
}
