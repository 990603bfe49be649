package session

import (
	"context"
	"encoding/json"
	"log/slog"

	"storymap/pkg/render"
	"storymap/pkg/store"
)

const stateKeyPrefix = "session:"

// Place is what a browser tab was looking at, persisted so a reload or a
// server restart reopens the same story.
type Place struct {
	StoryID string      `json:"storyId"`
	Mode    render.Mode `json:"mode"`
}

// SavePlace records the place of session id.
func SavePlace(ctx context.Context, st store.StateStore, id string, p Place) error {
	if p.StoryID == "" || p.Mode == render.ModeHome {
		return st.DeleteState(ctx, stateKeyPrefix+id)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return st.SetState(ctx, stateKeyPrefix+id, string(data))
}

// LoadPlace returns the stored place of session id.
func LoadPlace(ctx context.Context, st store.StateStore, id string) (Place, bool) {
	val, found := st.GetState(ctx, stateKeyPrefix+id)
	if !found || val == "" {
		return Place{}, false
	}
	var p Place
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		slog.Error("Session: Failed to unmarshal stored place", "session", id, "error", err)
		return Place{}, false
	}
	if p.StoryID == "" {
		return Place{}, false
	}
	// Cinema is never resumed mid-playback.
	if p.Mode == render.ModeCinema {
		p.Mode = render.ModeView
	}
	return p, true
}
