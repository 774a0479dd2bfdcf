package handlers

import (
	"context"
	"net/http"
	"time"
)

// Check probes one dependency. A nil error means healthy.
type Check func(ctx context.Context) error

// Info describes the running configuration on /health.
type Info struct {
	DefaultVoice   string
	VisionProvider string
	TTSBackend     string
	StorageBackend string
	JobsBackend    string
}

type HealthHandler struct {
	info   Info
	checks map[string]Check
}

func NewHealthHandler(info Info, checks map[string]Check) *HealthHandler {
	return &HealthHandler{info: info, checks: checks}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	status := http.StatusOK
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			checks[name] = "unhealthy: " + err.Error()
			status = http.StatusServiceUnavailable
		} else {
			checks[name] = "ok"
		}
	}

	writeJSON(w, status, map[string]any{
		"status":          statusStr(status),
		"message":         "VisionAid API is running",
		"default_voice":   h.info.DefaultVoice,
		"vision_provider": h.info.VisionProvider,
		"tts_backend":     h.info.TTSBackend,
		"storage_backend": h.info.StorageBackend,
		"jobs_backend":    h.info.JobsBackend,
		"checks":          checks,
	})
}

func statusStr(code int) string {
	if code == http.StatusOK {
		return "healthy"
	}
	return "unhealthy"
}
