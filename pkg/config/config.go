package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	DB       DBConfig       `yaml:"db"`
	Storage  StorageConfig  `yaml:"storage"`
	Request  RequestConfig  `yaml:"request"`
	Geocode  GeocodeConfig  `yaml:"geocode"`
	TTS      TTSConfig      `yaml:"tts"`
	View     ViewConfig     `yaml:"view"`
	Player   PlayerConfig   `yaml:"player"`
	Session  SessionConfig  `yaml:"session"`
	Log      LogConfig      `yaml:"log"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Examples ExamplesConfig `yaml:"examples"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// StorageConfig holds file storage settings.
type StorageConfig struct {
	AudioDir       string `yaml:"audio_dir"`
	UploadsDir     string `yaml:"uploads_dir"`
	MaxStories     int    `yaml:"max_stories"`
	MaxImageWidth  int    `yaml:"max_image_width"`
	JPEGQuality    int    `yaml:"jpeg_quality"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// RequestConfig holds HTTP request settings.
type RequestConfig struct {
	Retries int           `yaml:"retries"`
	Timeout Duration      `yaml:"timeout"`
	Backoff BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// GeocodeConfig selects and configures geocoders.
type GeocodeConfig struct {
	Provider  string          `yaml:"provider"` // "mapbox", "gazetteer"
	Mapbox    MapboxConfig    `yaml:"mapbox"`
	Gazetteer GazetteerConfig `yaml:"gazetteer"`
}

// MapboxConfig holds Mapbox geocoding settings.
type MapboxConfig struct {
	Token    string `yaml:"token"`
	BaseURL  string `yaml:"base_url"`
	Language string `yaml:"language"`
}

// GazetteerConfig holds the offline place index settings.
type GazetteerConfig struct {
	CitiesFile string  `yaml:"cities_file"` // GeoNames cities*.txt
	ShapeFile  string  `yaml:"shape_file"`  // Natural Earth populated places .shp
	Resolution int     `yaml:"resolution"`
	MaxDistKm  float64 `yaml:"max_dist_km"`
}

// TTSConfig holds text-to-speech settings.
type TTSConfig struct {
	Engine     string           `yaml:"engine"`
	ElevenLabs ElevenLabsConfig `yaml:"elevenlabs"`
	FishAudio  FishAudioConfig  `yaml:"fish_audio"`
	EdgeTTS    EdgeTTSConfig    `yaml:"edge_tts"`
	Gemini     GeminiTTSConfig  `yaml:"gemini"`
}

// ElevenLabsConfig holds settings for ElevenLabs.
type ElevenLabsConfig struct {
	Key     string `yaml:"key"`
	VoiceID string `yaml:"voice"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// FishAudioConfig holds settings for Fish Audio TTS.
type FishAudioConfig struct {
	Key     string `yaml:"key"`
	VoiceID string `yaml:"voice"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// EdgeTTSConfig holds settings for Edge TTS.
type EdgeTTSConfig struct {
	VoiceID string `yaml:"voice"`
}

// GeminiTTSConfig holds settings for Gemini speech generation.
type GeminiTTSConfig struct {
	Key   string `yaml:"key"`
	Model string `yaml:"model"`
	Voice string `yaml:"voice"`
}

// ViewConfig holds map and playback timings.
type ViewConfig struct {
	CameraEase   Duration `yaml:"camera_ease"`
	SettleMargin Duration `yaml:"settle_margin"`
	AdvanceDelay Duration `yaml:"advance_delay"`
	MapStyle     string   `yaml:"map_style"`
}

// PlayerConfig holds settings of the local audio player used by `present`.
type PlayerConfig struct {
	Volume  float64  `yaml:"volume"`
	FadeIn  Duration `yaml:"fade_in"`
	Vintage bool     `yaml:"vintage"` // band-limit narration like an old radio
	// Band edges of the vintage filter in Hz.
	LowCutoff  float64 `yaml:"low_cutoff"`
	HighCutoff float64 `yaml:"high_cutoff"`
}

// SessionConfig holds per-browser session settings.
type SessionConfig struct {
	TTL       Duration `yaml:"ttl"`
	QueueSize int      `yaml:"queue_size"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
	TTS      LogSettings `yaml:"tts"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
	Path        string `yaml:"path"` // spans are appended here as JSON lines
}

// ExamplesConfig controls the bundled sample stories.
type ExamplesConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"` // optional override of the embedded set
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address: "localhost:1940",
		},
		DB: DBConfig{
			Path: "data/storymap.db",
		},
		Storage: StorageConfig{
			AudioDir:       "data/audio",
			UploadsDir:     "data/uploads",
			MaxStories:     5,
			MaxImageWidth:  1600,
			JPEGQuality:    85,
			MaxUploadBytes: 15 << 20,
		},
		Request: RequestConfig{
			Retries: 3,
			Timeout: Duration(30 * time.Second),
			Backoff: BackoffConfig{
				BaseDelay: Duration(1 * time.Second),
				MaxDelay:  Duration(20 * time.Second),
			},
		},
		Geocode: GeocodeConfig{
			Provider: "mapbox",
			Mapbox: MapboxConfig{
				BaseURL:  "https://api.mapbox.com",
				Language: "en",
			},
			Gazetteer: GazetteerConfig{
				CitiesFile: "data/cities1000.txt",
				Resolution: 4,
				MaxDistKm:  50,
			},
		},
		TTS: TTSConfig{
			Engine: "edge-tts",
			ElevenLabs: ElevenLabsConfig{
				VoiceID: "21m00Tcm4TlvDq8ikWAM",
				Model:   "eleven_multilingual_v2",
				BaseURL: "https://api.elevenlabs.io",
			},
			FishAudio: FishAudioConfig{
				Model:   "s1",
				BaseURL: "https://api.fish.audio",
			},
			EdgeTTS: EdgeTTSConfig{
				VoiceID: "en-US-AvaMultilingualNeural",
			},
			Gemini: GeminiTTSConfig{
				Model: "gemini-2.5-flash-preview-tts",
				Voice: "Kore",
			},
		},
		View: ViewConfig{
			CameraEase:   Duration(800 * time.Millisecond),
			SettleMargin: Duration(100 * time.Millisecond),
			AdvanceDelay: Duration(2 * time.Second),
			MapStyle:     "streets",
		},
		Player: PlayerConfig{
			Volume:     1.0,
			FadeIn:     Duration(150 * time.Millisecond),
			LowCutoff:  300,
			HighCutoff: 3400,
		},
		Session: SessionConfig{
			TTL:       Duration(30 * time.Minute),
			QueueSize: 256,
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:  "logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "logs/requests.log",
				Level: "INFO",
			},
			TTS: LogSettings{
				Path:  "logs/tts.log",
				Level: "INFO",
			},
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "storymap",
			Path:        "logs/traces.jsonl",
		},
		Examples: ExamplesConfig{
			Enabled: true,
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// An existing file is merged over the defaults but never written back.
// Secrets missing from the file are taken from the environment, optionally
// seeded from a .env file next to the config.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	if err := loadDotEnv(filepath.Join(dir, ".env")); err != nil {
		return nil, err
	}
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	// Load never overrides variables already set in the environment.
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	envFallback(&cfg.Geocode.Mapbox.Token, "MAPBOX_TOKEN")
	envFallback(&cfg.TTS.ElevenLabs.Key, "ELEVENLABS_API_KEY")
	envFallback(&cfg.TTS.FishAudio.Key, "FISH_AUDIO_API_KEY")
	envFallback(&cfg.TTS.Gemini.Key, "GEMINI_API_KEY")
}

func envFallback(dst *string, key string) {
	if *dst != "" {
		return
	}
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

var engines = map[string]bool{
	"elevenlabs": true,
	"fish-audio": true,
	"edge-tts":   true,
	"gemini":     true,
}

// IsEngine reports whether name is a supported tts engine.
func IsEngine(name string) bool {
	return engines[name]
}

// Validate checks enum fields and limits.
func (c *Config) Validate() error {
	if !engines[c.TTS.Engine] {
		return fmt.Errorf("invalid tts engine '%s'", c.TTS.Engine)
	}
	switch c.Geocode.Provider {
	case "mapbox", "gazetteer":
	default:
		return fmt.Errorf("invalid geocode provider '%s'", c.Geocode.Provider)
	}
	if c.Storage.MaxStories <= 0 {
		return fmt.Errorf("storage.max_stories must be positive, got %d", c.Storage.MaxStories)
	}
	return nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# StoryMap Configuration
# ---------------------
# Durations: ns, us (or µs), ms, s, m, h, d (day), w (week)
# Secrets may be left empty and provided through the environment or a .env file:
#   MAPBOX_TOKEN, ELEVENLABS_API_KEY, FISH_AUDIO_API_KEY, GEMINI_API_KEY

`)
	data = append(header, data...)

	reEngine := regexp.MustCompile(`(?m)^(\s+)engine:`)
	data = reEngine.ReplaceAll(data, []byte("${1}# Options: elevenlabs, fish-audio, edge-tts, gemini\n${1}engine:"))

	reProvider := regexp.MustCompile(`(?m)^(\s+)provider:`)
	data = reProvider.ReplaceAll(data, []byte("${1}# Options: mapbox, gazetteer (offline)\n${1}provider:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return Save(path, DefaultConfig())
}
