package api

import (
	"net/http"

	"storymap/pkg/model"
	"storymap/pkg/samples"
)

// ExampleHandler serves the read-only sample stories.
type ExampleHandler struct {
	catalog *samples.Catalog
}

func NewExampleHandler(c *samples.Catalog) *ExampleHandler {
	return &ExampleHandler{catalog: c}
}

func (h *ExampleHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeJSON(w, http.StatusOK, []model.Story{})
		return
	}
	writeJSON(w, http.StatusOK, h.catalog.List())
}

func (h *ExampleHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeErr(w, r, samples.ErrNotFound)
		return
	}
	st, err := h.catalog.Story(r.PathValue("id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *ExampleHandler) HandleGetEvents(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeErr(w, r, samples.ErrNotFound)
		return
	}
	evs, err := h.catalog.Events(r.PathValue("id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, evs)
}
