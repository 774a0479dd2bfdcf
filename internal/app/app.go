// Package app wires the conversion pipeline from configuration. Both the API
// server and the queue worker build their pipeline here.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/visionaid/internal/cache"
	"github.com/nikhilbhutani/visionaid/internal/config"
	"github.com/nikhilbhutani/visionaid/internal/conversion"
	"github.com/nikhilbhutani/visionaid/internal/llm"
	"github.com/nikhilbhutani/visionaid/internal/multimodal"
	"github.com/nikhilbhutani/visionaid/internal/multimodal/tts"
	"github.com/nikhilbhutani/visionaid/internal/storage"
)

// Services are the long-lived pieces built from configuration.
type Services struct {
	Pipeline *conversion.Pipeline
	Store    storage.Storage
	Redis    *redis.Client

	closeStore func()
}

// PollBudget is the worst-case time spent waiting for audio with the
// configured defaults.
func PollBudget(cfg *config.Config) time.Duration {
	return cfg.TTS.WaitTime * time.Duration(cfg.TTS.MaxRetries)
}

func NewRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Build opens storage, the vision gateway and the TTS backend. The Redis
// client is optional; without it the analysis cache is disabled.
func Build(ctx context.Context, cfg *config.Config, rdb *redis.Client) (*Services, error) {
	synth, err := tts.NewFromConfig(cfg.TTS)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := storage.Open(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	vision := multimodal.NewVisionService(llm.NewGateway(cfg.Vision), cfg.Vision.Model)

	var analysisCache *conversion.AnalysisCache
	if rdb != nil && cfg.Vision.CacheTTL > 0 {
		c := cache.NewCache(rdb)
		if err := c.Ping(ctx); err != nil {
			slog.Warn("redis unavailable, analysis cache disabled", "error", err)
		} else {
			analysisCache = conversion.NewAnalysisCache(c, cfg.Vision.CacheTTL)
		}
	}

	pipeline := conversion.NewPipeline(vision, synth, store, conversion.Options{
		Bucket:       cfg.Storage.Bucket,
		DefaultVoice: cfg.TTS.DefaultVoice,
		Prompt:       cfg.Vision.Prompt,
		Tuning: conversion.Tuning{
			WaitTime:   cfg.TTS.WaitTime,
			MaxRetries: cfg.TTS.MaxRetries,
		},
		Cache: analysisCache,
	})

	slog.Info("pipeline ready",
		"vision_provider", cfg.Vision.Provider,
		"tts_backend", synth.Name(),
		"storage_backend", cfg.Storage.Backend,
		"analysis_cache", analysisCache != nil,
	)

	return &Services{
		Pipeline:   pipeline,
		Store:      store,
		Redis:      rdb,
		closeStore: closeStore,
	}, nil
}

func (s *Services) Close() {
	if s.closeStore != nil {
		s.closeStore()
	}
}
