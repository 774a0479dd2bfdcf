package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/visionaid/internal/api/handlers"
	"github.com/nikhilbhutani/visionaid/internal/api/middleware"
	"github.com/nikhilbhutani/visionaid/internal/config"
	"github.com/nikhilbhutani/visionaid/internal/imagecheck"
	"github.com/nikhilbhutani/visionaid/internal/jobs"
	"github.com/nikhilbhutani/visionaid/internal/storage"
)

// Deps are the services the HTTP layer routes to.
type Deps struct {
	Converter  handlers.Converter
	Tracker    jobs.Tracker
	Dispatcher jobs.Dispatcher
	Store      storage.Storage
	Checks     map[string]handlers.Check
	TTSBackend string
}

type Router struct {
	mux     *chi.Mux
	cfg     *config.Config
	deps    Deps
	limiter *middleware.RateLimiter
}

func NewRouter(cfg *config.Config, deps Deps) *Router {
	return &Router{
		mux:     chi.NewRouter(),
		cfg:     cfg,
		deps:    deps,
		limiter: middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateBurst),
	}
}

// RunLimiter evicts idle rate limit entries until ctx is done.
func (rt *Router) RunLimiter(ctx context.Context) error {
	return rt.limiter.Run(ctx)
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.Server.CORSOrigins))

	validator := imagecheck.NewValidator(rt.cfg.Upload.MaxBytes)

	health := handlers.NewHealthHandler(handlers.Info{
		DefaultVoice:   rt.cfg.TTS.DefaultVoice,
		VisionProvider: rt.cfg.Vision.Provider,
		TTSBackend:     rt.deps.TTSBackend,
		StorageBackend: rt.cfg.Storage.Backend,
		JobsBackend:    rt.cfg.Jobs.Backend,
	}, rt.deps.Checks)
	r.Get("/healthz", health.Healthz)
	r.Get("/health", health.Health)

	voices := handlers.NewVoicesHandler(rt.cfg.TTS.DefaultVoice, rt.deps.TTSBackend)
	r.Get("/voices", voices.List)

	audio := handlers.NewAudioHandler(rt.deps.Store, rt.cfg.Storage.Bucket)
	r.Get(storage.AudioRoute+"/{filename}", audio.Get)

	convert := handlers.NewConvertHandler(rt.deps.Converter, validator)
	jobHandler := handlers.NewJobHandler(rt.deps.Tracker, rt.deps.Dispatcher, validator)

	// Paid providers sit behind the rate limiter.
	r.Group(func(r chi.Router) {
		r.Use(rt.limiter.Limit)

		r.Post("/upload", convert.Upload)
		r.Post("/upload_base64", convert.UploadBase64)
		r.Post("/upload-async", jobHandler.Submit)
		r.Post("/resume", convert.Resume)
	})

	r.Get("/status/{task_id}", jobHandler.Status)
	r.Post("/status/{task_id}/cancel", jobHandler.Cancel)

	return r
}
