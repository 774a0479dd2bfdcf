package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/nikhilbhutani/visionaid/internal/conversion"
	"github.com/nikhilbhutani/visionaid/internal/imagecheck"
)

// Converter runs the image to speech pipeline.
type Converter interface {
	Convert(ctx context.Context, req conversion.Request) conversion.Result
	Resume(ctx context.Context, req conversion.ResumeRequest) conversion.Result
}

type ConvertHandler struct {
	conv      Converter
	validator *imagecheck.Validator
}

func NewConvertHandler(conv Converter, v *imagecheck.Validator) *ConvertHandler {
	return &ConvertHandler{conv: conv, validator: v}
}

// Upload converts a multipart upload synchronously. Pipeline failures are
// reported in the body with a 200 status; only malformed input gets a 4xx.
func (h *ConvertHandler) Upload(w http.ResponseWriter, r *http.Request) {
	req, err := readUpload(w, r, h.validator)
	if err != nil {
		writeUploadError(w, err)
		return
	}
	h.convert(w, r, req)
}

// UploadBase64 is Upload for JSON clients sending a base64 or data URL image.
func (h *ConvertHandler) UploadBase64(w http.ResponseWriter, r *http.Request) {
	req, err := readUpload(w, r, h.validator)
	if err != nil {
		writeUploadError(w, err)
		return
	}
	h.convert(w, r, req)
}

func (h *ConvertHandler) convert(w http.ResponseWriter, r *http.Request, req conversion.Request) {
	res := h.conv.Convert(r.Context(), req)
	if !res.Success {
		slog.Warn("conversion failed", "filename", req.Filename, "kind", res.ErrorKind, "error", res.Error)
	}
	writeJSON(w, http.StatusOK, res)
}

type resumeBody struct {
	Handle     string `json:"handle"`
	TextResult string `json:"text_result"`
	Voice      string `json:"voice"`
	WaitTime   int    `json:"wait_time"`
	MaxRetries int    `json:"max_retries"`
}

// Resume picks up a synthesis that timed out, using the pending handle from
// an earlier result. A handle the backend would not have issued is a 400.
func (h *ConvertHandler) Resume(w http.ResponseWriter, r *http.Request) {
	var body resumeBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Handle == "" {
		writeError(w, http.StatusBadRequest, "handle required")
		return
	}
	tuning, err := checkTuning(body.WaitTime, body.MaxRetries)
	if err != nil {
		writeUploadError(w, err)
		return
	}

	res := h.conv.Resume(r.Context(), conversion.ResumeRequest{
		Handle: body.Handle,
		Text:   body.TextResult,
		Voice:  body.Voice,
		Tuning: tuning,
	})
	if res.ErrorKind == conversion.KindInput {
		writeJSON(w, http.StatusBadRequest, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
