package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"storymap/pkg/geocode"
)

// GeocodeHandler exposes forward and reverse geocoding.
type GeocodeHandler struct {
	geocoder geocode.Geocoder
}

func NewGeocodeHandler(g geocode.Geocoder) *GeocodeHandler {
	return &GeocodeHandler{geocoder: g}
}

type searchResponse struct {
	Found  bool            `json:"found"`
	Result *geocode.Result `json:"result,omitempty"`
}

type reverseResponse struct {
	Name string `json:"name"`
}

// HandleSearch handles GET /api/geocode/search?q=.
func (h *GeocodeHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing query")
		return
	}
	res, err := h.geocoder.Search(r.Context(), q)
	if err != nil {
		slog.Warn("Geocode search failed", "component", "api", "query", q, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Found: res != nil, Result: res})
}

// HandleReverse handles GET /api/geocode/reverse?lng=&lat=.
func (h *GeocodeHandler) HandleReverse(w http.ResponseWriter, r *http.Request) {
	lng, err1 := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	lat, err2 := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err1 != nil || err2 != nil || lng < -180 || lng > 180 || lat < -90 || lat > 90 {
		writeError(w, http.StatusBadRequest, "invalid lng/lat")
		return
	}
	name, err := h.geocoder.Reverse(r.Context(), lng, lat)
	if err != nil {
		slog.Warn("Geocode reverse failed", "component", "api", "lng", lng, "lat", lat, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, reverseResponse{Name: name})
}
