package narration

import (
	"fmt"

	"storymap/pkg/config"
	"storymap/pkg/request"
	"storymap/pkg/tracker"
	"storymap/pkg/tts"
	"storymap/pkg/tts/edgetts"
	"storymap/pkg/tts/elevenlabs"
	"storymap/pkg/tts/fishaudio"
	"storymap/pkg/tts/gemini"
)

// Engine names accepted in tts.engine.
const (
	EngineElevenLabs = "elevenlabs"
	EngineFishAudio  = "fish-audio"
	EngineEdgeTTS    = "edge-tts"
	EngineGemini     = "gemini"
)

// NormalizeEngine maps accepted aliases to the canonical engine name.
func NormalizeEngine(engine string) string {
	switch engine {
	case "elevenlabs", "eleven-labs", "11labs":
		return EngineElevenLabs
	case "fish-audio", "fishaudio":
		return EngineFishAudio
	case "edge", "edge-tts":
		return EngineEdgeTTS
	case "gemini", "gemini-tts":
		return EngineGemini
	default:
		return engine
	}
}

// NewTTSProvider returns a TTS provider based on configuration.
func NewTTSProvider(cfg *config.TTSConfig, rc *request.Client, t *tracker.Tracker) (tts.Provider, error) {
	switch NormalizeEngine(cfg.Engine) {
	case EngineElevenLabs:
		return elevenlabs.NewProvider(cfg.ElevenLabs, rc), nil
	case EngineFishAudio:
		return fishaudio.NewProvider(cfg.FishAudio, t), nil
	case EngineEdgeTTS:
		return edgetts.NewProvider(cfg.EdgeTTS, edgetts.EndpointFromEnv(), t), nil
	case EngineGemini:
		return gemini.NewProvider(cfg.Gemini, t), nil
	default:
		return nil, fmt.Errorf("unknown tts engine: %s", cfg.Engine)
	}
}
