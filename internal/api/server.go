package api

import (
	"bufio"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"time"

	"storymap/internal/ui"
	"storymap/pkg/logging"
	"storymap/pkg/probe"
	"storymap/pkg/version"
)

// Handlers groups the endpoint handlers of the server. Nil handlers leave
// their routes unregistered.
type Handlers struct {
	Stories  *StoryHandler
	Examples *ExampleHandler
	Images   *ImageHandler
	Audio    *AudioHandler
	Geocode  *GeocodeHandler
	Stats    *StatsHandler
	Config   *ConfigHandler
	Session  http.Handler

	// Checks is the outcome of the startup probes.
	Checks *probe.Report

	// AudioDir and UploadsDir are served under /audio/ and /uploads/.
	AudioDir   string
	UploadsDir string
}

// NewMux registers every route.
func NewMux(h Handlers, shutdown func()) *http.ServeMux {
	mux := http.NewServeMux()

	// 1. Health and meta
	mux.HandleFunc("GET /health", handleHealth)
	if h.Checks != nil {
		mux.HandleFunc("GET /api/health/checks", handleChecks(h.Checks))
	}
	mux.HandleFunc("GET /api/version", handleVersion)
	mux.HandleFunc("GET /api/log/latest", handleLatestLog)
	if h.Stats != nil {
		mux.Handle("GET /api/stats", h.Stats)
	}
	if h.Config != nil {
		mux.HandleFunc("GET /api/config", h.Config.HandleGetConfig)
		mux.HandleFunc("PUT /api/config", h.Config.HandleSetConfig)
		mux.HandleFunc("GET /api/voices", h.Config.HandleVoices)
	}

	// 2. Story library
	if h.Stories != nil {
		mux.HandleFunc("GET /api/stories", h.Stories.HandleList)
		mux.HandleFunc("POST /api/stories", h.Stories.HandleCreate)
		mux.HandleFunc("GET /api/stories/{id}", h.Stories.HandleGet)
		mux.HandleFunc("PUT /api/stories/{id}", h.Stories.HandleUpdate)
		mux.HandleFunc("DELETE /api/stories/{id}", h.Stories.HandleDelete)
		mux.HandleFunc("GET /api/stories/{id}/events", h.Stories.HandleGetEvents)
		mux.HandleFunc("PUT /api/stories/{id}/events", h.Stories.HandleSaveEvents)
	}

	// 3. Examples
	if h.Examples != nil {
		mux.HandleFunc("GET /api/example-stories", h.Examples.HandleList)
		mux.HandleFunc("GET /api/example-stories/{id}", h.Examples.HandleGet)
		mux.HandleFunc("GET /api/example-stories/{id}/events", h.Examples.HandleGetEvents)
	}

	// 4. Media and narration
	if h.Images != nil {
		mux.HandleFunc("POST /api/upload-image", h.Images.HandleUpload)
	}
	if h.Audio != nil {
		mux.HandleFunc("POST /api/stories/{id}/generate-audio", h.Audio.HandleGenerate)
		mux.HandleFunc("DELETE /api/stories/{id}/audio", h.Audio.HandleDeleteAll)
		mux.HandleFunc("DELETE /api/stories/{id}/audio/{eventId}", h.Audio.HandleDeleteEvent)
	}

	// 5. Geocoding
	if h.Geocode != nil {
		mux.HandleFunc("GET /api/geocode/search", h.Geocode.HandleSearch)
		mux.HandleFunc("GET /api/geocode/reverse", h.Geocode.HandleReverse)
	}

	// 6. Live map sessions
	if h.Session != nil {
		mux.Handle("GET /api/session/ws", h.Session)
	}

	// 7. Shutdown
	if shutdown != nil {
		mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
			slog.Info("Graceful shutdown initiated via API")
			w.WriteHeader(http.StatusOK)
			if _, err := w.Write([]byte("Shutting down...")); err != nil {
				slog.Error("Failed to write shutdown response", "error", err)
			}
			go func() {
				time.Sleep(100 * time.Millisecond)
				shutdown()
			}()
		})
	}

	// 8. Generated files
	if h.AudioDir != "" {
		mux.Handle("GET /audio/", http.StripPrefix("/audio/", http.FileServer(staticFileSystem{http.Dir(h.AudioDir)})))
	}
	if h.UploadsDir != "" {
		mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(staticFileSystem{http.Dir(h.UploadsDir)})))
	}

	// 9. Frontend
	distFS, err := fs.Sub(ui.DistFS, "dist")
	if err != nil {
		panic(fmt.Sprintf("Failed to subtree dist from embedded assets: %v", err))
	}
	mux.Handle("/", spaHandler(distFS))

	return mux
}

// NewServer wraps handler in the access log. Pass NewMux, optionally behind
// further middleware.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:        addr,
		Handler:     accessLog(handler),
		ReadTimeout: 15 * time.Second,
		// No write timeout: websocket sessions and audio generation are long lived.
		IdleTimeout: 60 * time.Second,
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack hands the connection to the websocket upgrader.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logging.RequestLogger
		if log == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info("HTTP", "method", r.Method, "path", r.URL.Path, "status", rec.status,
			"duration", time.Since(start).Round(time.Microsecond))
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleChecks(rep *probe.Report) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		if !rep.Healthy() {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, rep)
	}
}

type versionResponse struct {
	Version string `json:"version"`
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, versionResponse{Version: version.Version})
}
