package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"storymap/internal/api"
	"storymap/internal/bridge"
	"storymap/pkg/apisession"
	"storymap/pkg/camera"
	"storymap/pkg/config"
	"storymap/pkg/db/maintenance"
	"storymap/pkg/media"
	"storymap/pkg/otel"
	"storymap/pkg/probe"
	"storymap/pkg/session"
	"storymap/pkg/version"
	"storymap/pkg/view"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web server (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts.ConfigPath)
		},
	}
}

func newInitConfigCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Write the default config file and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.GenerateDefault(opts.ConfigPath); err != nil {
				return fmt.Errorf("failed to generate config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config file generated: %s\n", opts.ConfigPath)
			return nil
		},
	}
}

// run serves until ctx is cancelled, a signal arrives or the shutdown
// endpoint is called.
func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a, err := bootstrap(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg

	if err := maintenance.Run(ctx, a.store, a.db, cfg.Storage.AudioDir); err != nil {
		slog.Error("Maintenance tasks failed", "error", err)
	}

	if cfg.Tracing.Enabled {
		shutdownTracing, err := initTracing(ctx, cfg.Tracing)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer scancel()
			_ = shutdownTracing(sctx)
		}()
	}

	checks := probe.Run(ctx, startupProbes(a))
	checks.Log(slog.Default())
	if err := checks.Err(); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	sessions := newSessionStore(ctx, a)
	defer sessions.CloseAll()
	stopJanitor := make(chan struct{})
	defer close(stopJanitor)
	go sessions.RunJanitor(time.Minute, stopJanitor)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	mux := api.NewMux(api.Handlers{
		Stories:    api.NewStoryHandler(a.store, a.narration, cfg.Storage.MaxStories),
		Examples:   api.NewExampleHandler(a.samples),
		Images:     api.NewImageHandler(media.NewUploader(cfg.Storage.UploadsDir, cfg.Storage.MaxImageWidth, cfg.Storage.JPEGQuality, cfg.Storage.MaxUploadBytes)),
		Audio:      api.NewAudioHandler(a.narration),
		Geocode:    api.NewGeocodeHandler(a.geocoder),
		Stats:      api.NewStatsHandler(a.tracker, sessions),
		Checks:     checks,
		Config:     api.NewConfigHandler(a.store, a.cfgProv, a.tts),
		Session:    bridge.NewHandler(sessions),
		AudioDir:   cfg.Storage.AudioDir,
		UploadsDir: cfg.Storage.UploadsDir,
	}, shutdownFunc)

	var handler http.Handler = mux
	if cfg.Tracing.Enabled {
		handler = otelhttp.NewHandler(mux, "storymap")
	}
	srv := api.NewServer(cfg.Server.Address, handler)
	return runServerLifecycle(ctx, srv, quit)
}

func initTracing(ctx context.Context, cfg config.TracingConfig) (func(context.Context) error, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	shutdown, err := otel.Init(ctx, otel.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: version.Version,
		Writer:         f,
	})
	if err != nil {
		f.Close()
		return nil, err
	}
	slog.Info("Tracing enabled", "path", cfg.Path)
	return func(ctx context.Context) error {
		err := shutdown(ctx)
		return errors.Join(err, f.Close())
	}, nil
}

// newSessionStore creates browser sessions on demand. Each session restores
// the last place its browser was at.
func newSessionStore(ctx context.Context, a *app) *apisession.Store[session.Session] {
	deps := session.Deps{
		Library:  a.library(),
		Geocoder: a.geocoder,
		State:    a.store,
	}
	return apisession.New(a.cfg.Session.TTL.Std(),
		func(id string) *session.Session {
			// overrides from the config endpoint apply to new sessions
			s := session.New(ctx, id, deps, session.Config{
				View:      viewConfig(ctx, a.cfgProv, a.cfg),
				QueueSize: a.cfg.Session.QueueSize,
				MapStyle:  a.cfgProv.MapStyle(ctx),
			})
			s.Start()
			return s
		},
		func(_ string, s *session.Session) { s.Close() })
}

func viewConfig(ctx context.Context, p config.Provider, cfg *config.Config) view.Config {
	return view.Config{
		Camera: camera.Config{
			Ease:         p.CameraEase(ctx),
			SettleMargin: cfg.View.SettleMargin.Std(),
		},
		AdvanceDelay: p.AdvanceDelay(ctx),
	}
}

func startupProbes(a *app) []probe.Probe {
	cfg := a.cfg
	return []probe.Probe{
		{
			Name:     "Database",
			Check:    a.db.PingContext,
			Critical: true,
		},
		{
			Name:     "Audio directory",
			Check:    func(context.Context) error { return writableDir(cfg.Storage.AudioDir) },
			Critical: true,
		},
		{
			Name:     "Uploads directory",
			Check:    func(context.Context) error { return writableDir(cfg.Storage.UploadsDir) },
			Critical: true,
		},
		{
			Name: "TTS engine",
			Check: func(context.Context) error {
				if a.tts == nil {
					return fmt.Errorf("no provider for engine %q", cfg.TTS.Engine)
				}
				return nil
			},
		},
		{
			Name: "Geocoding",
			Check: func(context.Context) error {
				if cfg.Geocode.Mapbox.Token == "" && !fileExists(cfg.Geocode.Gazetteer.CitiesFile) && !fileExists(cfg.Geocode.Gazetteer.ShapeFile) {
					return fmt.Errorf("no mapbox token and no gazetteer data")
				}
				return nil
			},
		},
	}
}

func writableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	slog.Info("Starting server", "addr", ln.Addr().String())

	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
