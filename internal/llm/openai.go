package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures an OpenAI-compatible chat endpoint. Gemini is served
// through Google's OpenAI-compatible base URL with its own name and model.
type OpenAIConfig struct {
	Name         string // default: "openai"
	APIKey       string
	BaseURL      string // default: the go-openai default
	DefaultModel string // default: "gpt-4o-mini"
}

type OpenAIProvider struct {
	client       *openai.Client
	name         string
	defaultModel string
}

func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4o-mini"
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIProvider{
		client:       openai.NewClientWithConfig(clientCfg),
		name:         cfg.Name,
		defaultModel: cfg.DefaultModel,
	}
}

func (p *OpenAIProvider) Name() string { return p.name }

func (p *OpenAIProvider) Models() []string {
	if p.name == "gemini" {
		return []string{"gemini-2.5-flash", "gemini-2.5-pro"}
	}
	return []string{"gpt-4o", "gpt-4o-mini", "gpt-4.1"}
}

func (p *OpenAIProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	msgs := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		if len(m.Images) == 0 {
			msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
			continue
		}
		parts := make([]openai.ChatMessagePart, 0, len(m.Images)+1)
		for _, img := range m.Images {
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    dataURL(img),
					Detail: openai.ImageURLDetailAuto,
				},
			})
		}
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: m.Content,
		})
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, MultiContent: parts}
	}

	oReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: msgs,
	}
	if req.Temperature > 0 {
		oReq.Temperature = float32(req.Temperature)
	}
	if req.MaxTokens > 0 {
		oReq.MaxTokens = req.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, oReq)
	if err != nil {
		return nil, fmt.Errorf("%s chat: %w", p.name, err)
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	latency := time.Since(start).Milliseconds()
	cost := CalculateCost(model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	return &ChatResponse{
		ID:           resp.ID,
		Provider:     p.name,
		Model:        model,
		Content:      content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		TotalTokens:  resp.Usage.TotalTokens,
		CostUSD:      cost,
		LatencyMs:    latency,
	}, nil
}

func dataURL(img Image) string {
	mimeType := img.MimeType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(img.Data))
}
