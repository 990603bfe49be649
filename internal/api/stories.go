package api

import (
	"log/slog"
	"net/http"
	"strings"

	"storymap/pkg/model"
	"storymap/pkg/narration"
	"storymap/pkg/store"
)

// StoryHandler serves the user's story library.
type StoryHandler struct {
	store store.Store
	audio *narration.Service
	limit int
}

// NewStoryHandler creates a StoryHandler. audio may be nil when narration
// is disabled; limit <= 0 uses store.DefaultStoryLimit.
func NewStoryHandler(st store.Store, audio *narration.Service, limit int) *StoryHandler {
	if limit <= 0 {
		limit = store.DefaultStoryLimit
	}
	return &StoryHandler{store: st, audio: audio, limit: limit}
}

type createStoryRequest struct {
	Name     string `json:"name"`
	Language string `json:"language"`
}

func (h *StoryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	stories, err := h.store.ListStories(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if stories == nil {
		stories = []model.Story{}
	}
	writeJSON(w, http.StatusOK, stories)
}

func (h *StoryHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	st, err := h.store.GetStory(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *StoryHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createStoryRequest
	if err := decodeJSON(w, r, &req, maxJSONBody); err != nil {
		writeErr(w, r, err)
		return
	}
	lang := strings.TrimSpace(req.Language)
	if lang == "" {
		lang = "en"
	}
	st, err := h.store.CreateStory(r.Context(), req.Name, lang, h.limit)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	slog.Info("Story created", "component", "api", "story", st.ID, "name", st.Name)
	writeJSON(w, http.StatusCreated, st)
}

func (h *StoryHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var patch model.StoryPatch
	if err := decodeJSON(w, r, &patch, maxJSONBody); err != nil {
		writeErr(w, r, err)
		return
	}
	st, err := h.store.UpdateStory(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *StoryHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.store.DeleteStory(r.Context(), id); err != nil {
		writeErr(w, r, err)
		return
	}
	if h.audio != nil {
		if err := h.audio.RemoveStoryDir(id); err != nil {
			slog.Warn("Story deleted but audio cleanup failed", "component", "api", "story", id, "error", err)
		}
	}
	slog.Info("Story deleted", "component", "api", "story", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *StoryHandler) HandleGetEvents(w http.ResponseWriter, r *http.Request) {
	evs, err := h.store.GetEvents(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, evs)
}

// HandleSaveEvents replaces the full event list. Source links are repaired
// and the event count updated by the store.
func (h *StoryHandler) HandleSaveEvents(w http.ResponseWriter, r *http.Request) {
	var evs []model.Event
	if err := decodeJSON(w, r, &evs, maxJSONBody); err != nil {
		writeErr(w, r, err)
		return
	}
	id := r.PathValue("id")
	st, err := h.store.SaveEvents(r.Context(), id, evs)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	saved, err := h.store.GetEvents(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saveEventsResponse{Story: st, Events: saved})
}

type saveEventsResponse struct {
	Story  *model.Story  `json:"story"`
	Events []model.Event `json:"events"`
}
