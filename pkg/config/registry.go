package config

// Persistent state keys (Registry)
const (
	KeyMapStyle     = "map_style"
	KeyTTSEngine    = "tts_engine"
	KeyAdvanceDelay = "advance_delay"
	KeyCameraEase   = "camera_ease"
)
