package tts

import (
	"fmt"

	"github.com/nikhilbhutani/visionaid/internal/config"
)

// NewFromConfig builds the Synthesizer selected by TTS_BACKEND.
func NewFromConfig(cfg config.TTSConfig) (Synthesizer, error) {
	switch cfg.Backend {
	case "fpt", "":
		return Polling(NewFPTTTS(FPTConfig{
			APIKey:     cfg.FPTKey,
			URL:        cfg.FPTURL,
			Speed:      cfg.FPTSpeed,
			AudioHosts: cfg.FPTAudioHosts,
		})), nil
	case "openai":
		return Streaming(NewOpenAITTS(OpenAITTSConfig{
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		})), nil
	case "edge":
		return Streaming(NewEdgeTTS()), nil
	case "local":
		return Streaming(NewLocalTTS(LocalTTSConfig{
			PiperBinPath: cfg.LocalBinPath,
			ModelPath:    cfg.LocalModel,
		})), nil
	default:
		return nil, fmt.Errorf("unsupported TTS backend %q", cfg.Backend)
	}
}
