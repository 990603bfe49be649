package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"storymap/pkg/config"
	"storymap/pkg/model"
	"storymap/pkg/store"
	"storymap/pkg/tts"
)

const volumeStateKey = "volume"

// ConfigHandler exposes the settings the browser client needs.
// Overrides are persisted in the state store and apply to new sessions.
type ConfigHandler struct {
	store   store.StateStore
	cfgProv config.Provider
	appCfg  *config.Config
	voices  tts.Provider
}

// NewConfigHandler creates a ConfigHandler. voices may be nil.
func NewConfigHandler(st store.StateStore, cfg config.Provider, voices tts.Provider) *ConfigHandler {
	return &ConfigHandler{store: st, cfgProv: cfg, appCfg: cfg.AppConfig(), voices: voices}
}

// ConfigResponse represents the config API response.
type ConfigResponse struct {
	MapStyle       string               `json:"map_style"`
	TTSEngine      string               `json:"tts_engine"`
	Volume         float64              `json:"volume"`
	MaxStories     int                  `json:"max_stories"`
	MaxUploadBytes int64                `json:"max_upload_bytes"`
	AdvanceDelayMs int64                `json:"advance_delay_ms"`
	CameraEaseMs   int64                `json:"camera_ease_ms"`
	Languages      []model.LanguageInfo `json:"languages"`
}

// ConfigRequest represents the config API request for updates.
type ConfigRequest struct {
	Volume       *float64 `json:"volume,omitempty"` // Pointer to detect 0 vs missing
	MapStyle     string   `json:"map_style,omitempty"`
	TTSEngine    string   `json:"tts_engine,omitempty"` // applies after restart
	AdvanceDelay string   `json:"advance_delay,omitempty"`
	CameraEase   string   `json:"camera_ease,omitempty"`
}

// HandleGetConfig handles GET /api/config.
func (h *ConfigHandler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.getConfigResponse(r.Context()))
}

func (h *ConfigHandler) getConfigResponse(ctx context.Context) ConfigResponse {
	return ConfigResponse{
		MapStyle:       h.cfgProv.MapStyle(ctx),
		TTSEngine:      h.cfgProv.TTSEngine(ctx),
		Volume:         h.volume(ctx),
		MaxStories:     h.appCfg.Storage.MaxStories,
		MaxUploadBytes: h.appCfg.Storage.MaxUploadBytes,
		AdvanceDelayMs: h.cfgProv.AdvanceDelay(ctx).Milliseconds(),
		CameraEaseMs:   h.cfgProv.CameraEase(ctx).Milliseconds(),
		Languages:      model.SupportedLanguages,
	}
}

func (h *ConfigHandler) volume(ctx context.Context) float64 {
	volume := h.appCfg.Player.Volume
	if v, ok := h.store.GetState(ctx, volumeStateKey); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			volume = f
		}
	}
	return volume
}

// HandleSetConfig handles PUT /api/config and answers with the new config.
func (h *ConfigHandler) HandleSetConfig(w http.ResponseWriter, r *http.Request) {
	var req ConfigRequest
	if err := decodeJSON(w, r, &req, maxJSONBody); err != nil {
		writeErr(w, r, err)
		return
	}

	updates, err := validateConfigRequest(&req)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	for key, val := range updates {
		if err := h.store.SetState(r.Context(), key, val); err != nil {
			writeErr(w, r, err)
			return
		}
		slog.Debug("Config override saved", "component", "api", "key", key, "value", val)
	}

	h.HandleGetConfig(w, r)
}

// validateConfigRequest turns a request into state key/value pairs.
func validateConfigRequest(req *ConfigRequest) (map[string]string, error) {
	updates := make(map[string]string)
	if req.Volume != nil {
		v := *req.Volume
		if v < 0 || v > 1 {
			return nil, fmt.Errorf("%w: volume must be between 0 and 1", errBadRequest)
		}
		updates[volumeStateKey] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	if req.MapStyle != "" {
		updates[config.KeyMapStyle] = req.MapStyle
	}
	if req.TTSEngine != "" {
		if !config.IsEngine(req.TTSEngine) {
			return nil, fmt.Errorf("%w: unknown tts engine %q", errBadRequest, req.TTSEngine)
		}
		updates[config.KeyTTSEngine] = req.TTSEngine
	}
	for key, raw := range map[string]string{
		config.KeyAdvanceDelay: req.AdvanceDelay,
		config.KeyCameraEase:   req.CameraEase,
	} {
		if raw == "" {
			continue
		}
		d, err := config.ParseDuration(raw)
		if err != nil || d <= 0 || d > time.Minute {
			return nil, fmt.Errorf("%w: invalid duration %q for %s", errBadRequest, raw, key)
		}
		updates[key] = raw
	}
	return updates, nil
}

// HandleVoices handles GET /api/voices.
func (h *ConfigHandler) HandleVoices(w http.ResponseWriter, r *http.Request) {
	if h.voices == nil {
		writeJSON(w, http.StatusOK, []tts.Voice{})
		return
	}
	voices, err := h.voices.Voices(r.Context())
	if err != nil {
		slog.Warn("Failed to list voices", "component", "api", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if voices == nil {
		voices = []tts.Voice{}
	}
	writeJSON(w, http.StatusOK, voices)
}
