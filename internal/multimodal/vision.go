package multimodal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nikhilbhutani/visionaid/internal/llm"
)

// ErrEmptyAnalysis is returned when the model answers with no text.
var ErrEmptyAnalysis = errors.New("vision model returned an empty analysis")

// VisionService handles image understanding through vision-capable LLMs.
type VisionService struct {
	gateway     llm.Gateway
	model       string // empty means the provider's default
	temperature float64
	maxTokens   int
}

func NewVisionService(gw llm.Gateway, model string) *VisionService {
	return &VisionService{
		gateway:     gw,
		model:       model,
		temperature: 0.2,
		maxTokens:   2048,
	}
}

// Analyze sends one image and the instruction prompt to the vision model and
// returns the trimmed reply.
func (v *VisionService) Analyze(ctx context.Context, image []byte, mimeType, prompt string) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("vision analyze: empty image")
	}
	if prompt == "" {
		prompt = DefaultPrompt
	}

	resp, err := v.gateway.Chat(ctx, llm.ChatRequest{
		Model: v.model,
		Messages: []llm.Message{
			{
				Role:    "system",
				Content: systemPrompt,
			},
			{
				Role:    "user",
				Content: prompt,
				Images:  []llm.Image{{Data: image, MimeType: mimeType}},
			},
		},
		Temperature: v.temperature,
		MaxTokens:   v.maxTokens,
	})
	if err != nil {
		return "", err
	}

	slog.Info("vision analysis done",
		"provider", resp.Provider,
		"model", resp.Model,
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
		"cost_usd", resp.CostUSD,
		"latency_ms", resp.LatencyMs,
	)

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", ErrEmptyAnalysis
	}
	return text, nil
}
