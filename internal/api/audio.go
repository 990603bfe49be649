package api

import (
	"errors"
	"log/slog"
	"net/http"

	"storymap/pkg/narration"
)

// AudioHandler generates and removes narration audio.
type AudioHandler struct {
	narration *narration.Service
}

// NewAudioHandler creates an AudioHandler.
func NewAudioHandler(n *narration.Service) *AudioHandler {
	return &AudioHandler{narration: n}
}

type generateAudioRequest struct {
	Force   bool   `json:"force"`
	EventID string `json:"eventId"`
}

type deleteAudioResponse struct {
	Deleted int `json:"deleted"`
}

// HandleGenerate handles POST /api/stories/{id}/generate-audio. The body is
// optional. Failed and critical batches are answered with 502 and the same
// result body.
func (h *AudioHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateAudioRequest
	if err := decodeOptionalJSON(w, r, &req, maxJSONBody); err != nil {
		writeErr(w, r, err)
		return
	}
	id := r.PathValue("id")
	res, err := h.narration.Generate(r.Context(), id, narration.Options{Force: req.Force, Only: req.EventID})
	if err != nil {
		if errors.Is(err, narration.ErrNoProvider) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeErr(w, r, err)
		return
	}

	slog.Info("Audio generation finished", "component", "api", "story", id,
		"status", res.Status, "generated", res.Generated, "errors", len(res.Errors))

	status := http.StatusOK
	if res.Status == narration.StatusFailed || res.Status == narration.StatusCritical {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, res)
}

// HandleDeleteAll handles DELETE /api/stories/{id}/audio.
func (h *AudioHandler) HandleDeleteAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.narration.DeleteAll(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteAudioResponse{Deleted: n})
}

// HandleDeleteEvent handles DELETE /api/stories/{id}/audio/{eventId}.
func (h *AudioHandler) HandleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.narration.DeleteEvent(r.Context(), r.PathValue("id"), r.PathValue("eventId")); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
