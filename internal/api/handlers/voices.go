package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/visionaid/internal/multimodal/tts"
)

type VoicesHandler struct {
	defaultVoice string
	backend      string
}

func NewVoicesHandler(defaultVoice, backend string) *VoicesHandler {
	return &VoicesHandler{defaultVoice: defaultVoice, backend: backend}
}

func (h *VoicesHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"voices":  tts.Voices(),
		"default": h.defaultVoice,
		"backend": h.backend,
	})
}
