package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/nikhilbhutani/visionaid/internal/api"
	"github.com/nikhilbhutani/visionaid/internal/api/handlers"
	"github.com/nikhilbhutani/visionaid/internal/app"
	"github.com/nikhilbhutani/visionaid/internal/config"
	"github.com/nikhilbhutani/visionaid/internal/jobs"
	"github.com/nikhilbhutani/visionaid/internal/queue"
	"github.com/nikhilbhutani/visionaid/internal/storage"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := app.NewRedis(cfg.Redis)
	defer rdb.Close()
	checks := map[string]handlers.Check{}
	if err := rdb.Ping(ctx).Err(); err != nil {
		if cfg.Jobs.Backend == "queue" {
			slog.Error("redis is required for the queue backend", "error", err)
			os.Exit(1)
		}
		slog.Warn("redis unavailable, running without cache", "error", err)
	} else {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	svc, err := app.Build(ctx, cfg, rdb)
	if err != nil {
		slog.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	g, gctx := errgroup.WithContext(ctx)

	var (
		tracker    jobs.Tracker
		dispatcher jobs.Dispatcher
		local      *jobs.LocalDispatcher
	)
	switch cfg.Jobs.Backend {
	case "queue":
		tracker = jobs.NewRedisTracker(rdb, cfg.Jobs.TTL)
		client := queue.NewClient(cfg.Redis, tracker, app.PollBudget(cfg))
		defer client.Close()
		dispatcher = client
	default:
		mem := jobs.NewMemoryTracker(cfg.Jobs.TTL)
		g.Go(func() error { return mem.RunJanitor(gctx, time.Minute) })
		local = jobs.NewLocalDispatcher(mem, svc.Pipeline)
		tracker, dispatcher = mem, local
	}

	if ls, ok := svc.Store.(*storage.LocalStorage); ok && cfg.Storage.MaxAge > 0 {
		g.Go(func() error { return ls.RunJanitor(gctx, 10*time.Minute, cfg.Storage.MaxAge) })
	}

	router := api.NewRouter(cfg, api.Deps{
		Converter:  svc.Pipeline,
		Tracker:    tracker,
		Dispatcher: dispatcher,
		Store:      svc.Store,
		Checks:     checks,
		TTSBackend: svc.Pipeline.SynthesizerName(),
	})
	g.Go(func() error { return router.RunLimiter(gctx) })

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: app.PollBudget(cfg) + 2*time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	g.Go(func() error {
		slog.Info("starting API server", "addr", cfg.Addr(), "jobs_backend", cfg.Jobs.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced shutdown", "error", err)
		}
		if local != nil {
			if err := local.Shutdown(shutdownCtx); err != nil {
				slog.Warn("background jobs interrupted", "error", err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

