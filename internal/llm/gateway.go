package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/nikhilbhutani/visionaid/internal/config"
)

type gateway struct {
	providers        map[string]Provider
	defaultProvider  string
	fallbackProvider string
	maxRetries       int
}

func NewGateway(cfg config.VisionConfig) Gateway {
	var providers []Provider

	if cfg.GeminiKey != "" {
		providers = append(providers, NewOpenAIProvider(OpenAIConfig{
			Name:         "gemini",
			APIKey:       cfg.GeminiKey,
			BaseURL:      cfg.GeminiBaseURL,
			DefaultModel: "gemini-2.5-flash",
		}))
	}
	if cfg.OpenAIKey != "" {
		providers = append(providers, NewOpenAIProvider(OpenAIConfig{
			Name:    "openai",
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.OpenAIBaseURL,
		}))
	}
	if cfg.AnthropicKey != "" {
		providers = append(providers, NewAnthropicProvider(cfg.AnthropicKey))
	}
	if cfg.OllamaURL != "" {
		providers = append(providers, NewOllamaProvider(cfg.OllamaURL))
	}

	return NewGatewayWithProviders(providers, cfg.Provider, cfg.FallbackProvider, cfg.MaxRetries)
}

// NewGatewayWithProviders builds a gateway over an explicit provider set.
func NewGatewayWithProviders(providers []Provider, defaultProvider, fallbackProvider string, maxRetries int) Gateway {
	g := &gateway{
		providers:        make(map[string]Provider, len(providers)),
		defaultProvider:  defaultProvider,
		fallbackProvider: fallbackProvider,
		maxRetries:       maxRetries,
	}
	for _, p := range providers {
		g.providers[p.Name()] = p
	}
	return g
}

func (g *gateway) Provider(name string) (Provider, error) {
	p, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not configured", name)
	}
	return p, nil
}

func (g *gateway) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = g.defaultProvider
	}

	resp, err := g.chatWithRetry(ctx, providerName, req)
	if err != nil && ctx.Err() == nil && g.fallbackProvider != "" && g.fallbackProvider != providerName {
		slog.Warn("primary provider failed, trying fallback",
			"primary", providerName,
			"fallback", g.fallbackProvider,
			"error", err,
		)
		// the configured model belongs to the primary provider
		req.Model = ""
		return g.chatWithRetry(ctx, g.fallbackProvider, req)
	}
	return resp, err
}

func (g *gateway) chatWithRetry(ctx context.Context, providerName string, req ChatRequest) (*ChatResponse, error) {
	p, err := g.Provider(providerName)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			slog.Debug("retrying vision call", "provider", providerName, "attempt", attempt)
		}

		resp, err := p.ChatCompletion(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if g.maxRetries == 0 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("all retries exhausted for %s: %w", providerName, lastErr)
}

func (g *gateway) ListModels() []ModelInfo {
	var models []ModelInfo
	for _, p := range g.providers {
		for _, m := range p.Models() {
			models = append(models, ModelInfo{
				Provider: p.Name(),
				Model:    m,
			})
		}
	}
	sort.Slice(models, func(i, j int) bool {
		if models[i].Provider != models[j].Provider {
			return models[i].Provider < models[j].Provider
		}
		return models[i].Model < models[j].Model
	})
	return models
}
