package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"storymap/pkg/config"
	"storymap/pkg/db"
	"storymap/pkg/gazetteer"
	"storymap/pkg/geocode"
	"storymap/pkg/logging"
	"storymap/pkg/narration"
	"storymap/pkg/request"
	"storymap/pkg/samples"
	"storymap/pkg/session"
	"storymap/pkg/store"
	"storymap/pkg/tracker"
	"storymap/pkg/tts"
	"storymap/pkg/version"
)

// app holds the services shared by every command.
type app struct {
	cfg       *config.Config
	cfgProv   *config.UnifiedProvider
	db        *db.DB
	store     *store.SQLiteStore
	tracker   *tracker.Tracker
	reqClient *request.Client
	samples   *samples.Catalog
	geocoder  geocode.Geocoder
	tts       tts.Provider
	narration *narration.Service

	cleanup []func()
}

// bootstrap loads the config, sets up logging and opens storage.
func bootstrap(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	a := &app{cfg: cfg, cleanup: []func(){cleanupLogs}}
	tts.SetLogger(logging.TTSLogger)

	slog.Info("StoryMap started", "version", version.Version, "config", configPath)

	dbConn, err := db.Init(cfg.DB.Path)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.db = dbConn
	a.cleanup = append(a.cleanup, func() { dbConn.Close() })
	a.store = store.NewSQLiteStore(dbConn)
	a.cfgProv = config.NewProvider(cfg, a.store)

	a.tracker = tracker.New()
	a.reqClient = request.NewWithOptions(a.store, a.tracker, request.Options{
		Retries:   cfg.Request.Retries,
		Timeout:   cfg.Request.Timeout.Std(),
		BaseDelay: cfg.Request.Backoff.BaseDelay.Std(),
		MaxDelay:  cfg.Request.Backoff.MaxDelay.Std(),
	})

	a.samples = loadSamples(cfg.Examples)
	a.geocoder = geocode.NewCached(buildGeocoder(cfg.Geocode, a.reqClient), a.store, a.tracker)

	ttsCfg := cfg.TTS
	ttsCfg.Engine = a.cfgProv.TTSEngine(ctx)
	prov, err := narration.NewTTSProvider(&ttsCfg, a.reqClient, a.tracker)
	if err != nil {
		slog.Warn("Narration disabled", "error", err)
	}
	a.tts = prov
	a.narration = narration.New(a.store, prov, ttsCfg.Engine, cfg.Storage.AudioDir)

	return a, nil
}

// Close releases resources in reverse order.
func (a *app) Close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
	a.cleanup = nil
}

// library is the story source for views: user stories plus read-only samples.
func (a *app) library() *session.Library {
	return &session.Library{Store: a.store, Samples: a.samples}
}

func loadSamples(cfg config.ExamplesConfig) *samples.Catalog {
	if !cfg.Enabled {
		return nil
	}
	var (
		cat *samples.Catalog
		err error
	)
	if cfg.Dir != "" {
		cat, err = samples.NewFromDir(cfg.Dir)
	} else {
		cat, err = samples.NewEmbedded()
	}
	if err != nil {
		slog.Warn("Example stories unavailable", "dir", cfg.Dir, "error", err)
		return nil
	}
	slog.Info("Example stories loaded", "count", len(cat.List()))
	return cat
}

// buildGeocoder puts the configured provider first and the offline gazetteer
// behind it when its data is present.
func buildGeocoder(cfg config.GeocodeConfig, rc *request.Client) geocode.Geocoder {
	var providers []geocode.Geocoder

	var mapbox geocode.Geocoder
	if cfg.Mapbox.Token != "" {
		mapbox = geocode.NewMapbox(rc, cfg.Mapbox.Token, cfg.Mapbox.BaseURL, cfg.Mapbox.Language)
	} else if cfg.Provider == "mapbox" {
		slog.Warn("Mapbox token missing, using offline gazetteer only")
	}

	var gaz geocode.Geocoder
	g := cfg.Gazetteer
	if fileExists(g.CitiesFile) || fileExists(g.ShapeFile) {
		cities, shapes := g.CitiesFile, g.ShapeFile
		if !fileExists(cities) {
			cities = ""
		}
		if !fileExists(shapes) {
			shapes = ""
		}
		idx, err := gazetteer.Load(cities, shapes, g.Resolution, g.MaxDistKm)
		if err != nil {
			slog.Warn("Gazetteer unavailable", "error", err)
		} else {
			slog.Info("Gazetteer loaded", "places", idx.Len())
			gaz = idx
		}
	}

	if cfg.Provider == "gazetteer" {
		providers = append(providers, gaz, mapbox)
	} else {
		providers = append(providers, mapbox, gaz)
	}
	return geocode.NewFailover(providers...)
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
