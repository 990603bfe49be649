package config

import (
	"context"
	"testing"
	"time"
)

// MockStateStore implements store.StateStore for testing.
type MockStateStore struct {
	data map[string]string
}

func NewMockStateStore() *MockStateStore {
	return &MockStateStore{data: make(map[string]string)}
}

func (m *MockStateStore) GetState(ctx context.Context, key string) (string, bool) {
	val, ok := m.data[key]
	return val, ok
}

func (m *MockStateStore) SetState(ctx context.Context, key, val string) error {
	m.data[key] = val
	return nil
}

func (m *MockStateStore) DeleteState(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func TestUnifiedProvider(t *testing.T) {
	ctx := context.Background()
	base := DefaultConfig()
	st := NewMockStateStore()
	p := NewProvider(base, st)

	if got := p.MapStyle(ctx); got != "streets" {
		t.Errorf("MapStyle() = %q, want file default", got)
	}
	if got := p.AdvanceDelay(ctx); got != 2*time.Second {
		t.Errorf("AdvanceDelay() = %v, want 2s", got)
	}

	_ = st.SetState(ctx, KeyMapStyle, "satellite")
	_ = st.SetState(ctx, KeyAdvanceDelay, "3500ms")
	_ = st.SetState(ctx, KeyCameraEase, "garbage")
	_ = st.SetState(ctx, KeyTTSEngine, "espeak")

	if got := p.MapStyle(ctx); got != "satellite" {
		t.Errorf("MapStyle() = %q, want stored override", got)
	}
	if got := p.AdvanceDelay(ctx); got != 3500*time.Millisecond {
		t.Errorf("AdvanceDelay() = %v, want 3.5s", got)
	}
	if got := p.CameraEase(ctx); got != 800*time.Millisecond {
		t.Errorf("CameraEase() = %v, want fallback on unparsable override", got)
	}
	if got := p.TTSEngine(ctx); got != "edge-tts" {
		t.Errorf("TTSEngine() = %q, want fallback on unknown engine", got)
	}
	if p.AppConfig() != base {
		t.Error("AppConfig() must return the base config")
	}

	nilStore := NewProvider(base, nil)
	if got := nilStore.MapStyle(ctx); got != "streets" {
		t.Errorf("MapStyle() without store = %q", got)
	}
}
