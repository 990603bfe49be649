package config

import (
	"context"
	"time"

	"storymap/pkg/store"
)

// Provider defines the interface for accessing unified configuration.
// Values changed from the UI are persisted in the state store and take
// precedence over the static file.
type Provider interface {
	MapStyle(ctx context.Context) string
	TTSEngine(ctx context.Context) string
	AdvanceDelay(ctx context.Context) time.Duration
	CameraEase(ctx context.Context) time.Duration

	AppConfig() *Config
}

// UnifiedProvider implements Provider by bridging static Config and persistent Store.
type UnifiedProvider struct {
	base  *Config
	store store.StateStore
}

// NewProvider creates a new UnifiedProvider.
func NewProvider(base *Config, st store.StateStore) *UnifiedProvider {
	return &UnifiedProvider{
		base:  base,
		store: st,
	}
}

func (p *UnifiedProvider) AppConfig() *Config { return p.base }

func (p *UnifiedProvider) MapStyle(ctx context.Context) string {
	return p.getString(ctx, KeyMapStyle, p.base.View.MapStyle)
}

func (p *UnifiedProvider) TTSEngine(ctx context.Context) string {
	engine := p.getString(ctx, KeyTTSEngine, p.base.TTS.Engine)
	if !engines[engine] {
		return p.base.TTS.Engine
	}
	return engine
}

func (p *UnifiedProvider) AdvanceDelay(ctx context.Context) time.Duration {
	return p.getDuration(ctx, KeyAdvanceDelay, p.base.View.AdvanceDelay.Std())
}

func (p *UnifiedProvider) CameraEase(ctx context.Context) time.Duration {
	return p.getDuration(ctx, KeyCameraEase, p.base.View.CameraEase.Std())
}

// --- Helpers ---

func (p *UnifiedProvider) getString(ctx context.Context, key, fallback string) string {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			return val
		}
	}
	return fallback
}

func (p *UnifiedProvider) getDuration(ctx context.Context, key string, fallback time.Duration) time.Duration {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if dur, err := ParseDuration(val); err == nil && dur > 0 {
				return dur
			}
		}
	}
	return fallback
}
