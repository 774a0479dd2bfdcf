package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nikhilbhutani/visionaid/internal/imagecheck"
	"github.com/nikhilbhutani/visionaid/internal/jobs"
)

type JobHandler struct {
	tracker    jobs.Tracker
	dispatcher jobs.Dispatcher
	validator  *imagecheck.Validator
}

func NewJobHandler(tracker jobs.Tracker, d jobs.Dispatcher, v *imagecheck.Validator) *JobHandler {
	return &JobHandler{tracker: tracker, dispatcher: d, validator: v}
}

// Submit validates the upload, registers a job and returns its id at once.
func (h *JobHandler) Submit(w http.ResponseWriter, r *http.Request) {
	req, err := readUpload(w, r, h.validator)
	if err != nil {
		writeUploadError(w, err)
		return
	}

	id, err := jobs.Start(r.Context(), h.tracker, h.dispatcher, req)
	if err != nil {
		slog.Error("failed to start job", "error", err)
		writeError(w, http.StatusServiceUnavailable, "could not start processing")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"task_id": id,
		"message": "Processing started",
	})
}

func (h *JobHandler) Status(w http.ResponseWriter, r *http.Request) {
	job, err := h.tracker.Get(r.Context(), chi.URLParam(r, "task_id"))
	if errors.Is(err, jobs.ErrNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		slog.Error("failed to read job", "error", err)
		writeError(w, http.StatusInternalServerError, "could not read task")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *JobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "task_id")
	err := h.dispatcher.Cancel(r.Context(), id)
	if errors.Is(err, jobs.ErrNotRunning) {
		writeError(w, http.StatusNotFound, "task not running")
		return
	}
	if err != nil {
		slog.Error("failed to cancel job", "task_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "could not cancel task")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"task_id": id,
		"message": "Cancellation requested",
	})
}
