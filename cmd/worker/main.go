package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/nikhilbhutani/visionaid/internal/app"
	"github.com/nikhilbhutani/visionaid/internal/config"
	"github.com/nikhilbhutani/visionaid/internal/jobs"
	"github.com/nikhilbhutani/visionaid/internal/queue"
	"github.com/nikhilbhutani/visionaid/internal/queue/workers"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not read .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("refusing to start", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	rdb := app.NewRedis(cfg.Redis)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Error("redis unavailable", "error", err)
		os.Exit(1)
	}

	svc, err := app.Build(ctx, cfg, rdb)
	if err != nil {
		slog.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	concurrency := cfg.Jobs.WorkerConcurrency
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				queue.QueueDefault: 1,
			},
		},
	)

	registry := queue.NewHandlersRegistry()

	tracker := jobs.NewRedisTracker(rdb, cfg.Jobs.TTL)
	conversionWorker := workers.NewConversionWorker(tracker, svc.Pipeline)
	registry.Register(queue.TypeConversionRun, asynq.HandlerFunc(conversionWorker.ProcessTask))

	slog.Info("starting worker", "concurrency", concurrency)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
