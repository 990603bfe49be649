// Package narration generates and removes the spoken audio of story events.
package narration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storymap/pkg/audio"
	"storymap/pkg/model"
	"storymap/pkg/textproc"
	"storymap/pkg/tts"
)

var tracer = otel.Tracer("storymap/narration")

// ErrBusy is returned when a story is already being narrated.
var ErrBusy = errors.New("audio generation already running for this story")

// ErrNoProvider is returned when no speech engine is configured.
var ErrNoProvider = errors.New("no tts provider configured")

// Batch outcomes reported in Result.Status.
const (
	StatusOK       = "ok"
	StatusPartial  = "partial"
	StatusFailed   = "failed"
	StatusCritical = "critical"
)

// Store is the persistence narration needs.
type Store interface {
	GetStory(ctx context.Context, id string) (*model.Story, error)
	GetEvents(ctx context.Context, storyID string) ([]model.Event, error)
	SaveEvents(ctx context.Context, storyID string, events []model.Event) (*model.Story, error)
}

// ItemError is the failure of a single event.
type ItemError struct {
	EventID string `json:"eventId"`
	Error   string `json:"error"`
}

// Result summarizes one generate-audio batch.
type Result struct {
	Status    string      `json:"status"`
	Generated int         `json:"generated"`
	Files     []string    `json:"files"`
	Errors    []ItemError `json:"errors,omitempty"`
	Critical  string      `json:"critical,omitempty"`
	// Seconds is the total play length of the generated files.
	Seconds float64 `json:"seconds"`
}

// Options tune a batch.
type Options struct {
	// Force regenerates events that already have audio.
	Force bool
	// Only restricts the batch to one event id.
	Only string
}

// Service generates audio files below AudioDir/<storyID>/ and serves them
// below URLPrefix.
type Service struct {
	store     Store
	provider  tts.Provider
	engine    string
	audioDir  string
	urlPrefix string

	mu      sync.Mutex
	running map[string]bool
}

// New creates a narration service.
func New(s Store, p tts.Provider, engine, audioDir string) *Service {
	return &Service{
		store:     s,
		provider:  p,
		engine:    NormalizeEngine(engine),
		audioDir:  audioDir,
		urlPrefix: "/audio",
		running:   make(map[string]bool),
	}
}

// AudioDir returns the root directory of generated audio.
func (s *Service) AudioDir() string { return s.audioDir }

func (s *Service) acquire(storyID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[storyID] {
		return false
	}
	s.running[storyID] = true
	return true
}

func (s *Service) release(storyID string) {
	s.mu.Lock()
	delete(s.running, storyID)
	s.mu.Unlock()
}

// voiceFor returns the voice passed to the provider. Story voice ids belong
// to ElevenLabs; other engines use their configured voice.
func (s *Service) voiceFor(story *model.Story) string {
	if s.engine == EngineElevenLabs {
		return story.VoiceID
	}
	return ""
}

// Generate synthesizes audio for every narratable event of a story and
// stores the resulting URLs on the events. Bookends and events without text
// are skipped. A critical provider error stops the batch; other failures are
// collected per event. Successful files are saved even when the batch stops.
func (s *Service) Generate(ctx context.Context, storyID string, opts Options) (*Result, error) {
	if s.provider == nil {
		return nil, ErrNoProvider
	}
	if !s.acquire(storyID) {
		return nil, ErrBusy
	}
	defer s.release(storyID)

	ctx, span := tracer.Start(ctx, "narration.Generate", trace.WithAttributes(
		attribute.String("story.id", storyID),
		attribute.String("tts.engine", s.engine),
	))
	defer span.End()

	res, err := s.generate(ctx, storyID, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("narration.status", res.Status),
		attribute.Int("narration.generated", res.Generated),
		attribute.Int("narration.errors", len(res.Errors)),
		attribute.Float64("narration.seconds", res.Seconds),
	)
	return res, nil
}

func (s *Service) generate(ctx context.Context, storyID string, opts Options) (*Result, error) {
	story, err := s.store.GetStory(ctx, storyID)
	if err != nil {
		return nil, err
	}
	evs, err := s.store.GetEvents(ctx, storyID)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(s.audioDir, storyID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audio directory: %w", err)
	}

	log := slog.With("component", "narration", "story", storyID, "engine", s.engine)
	res := &Result{Files: []string{}}
	urls := make(map[string]string)
	attempted := 0

	for i := range evs {
		ev := &evs[i]
		if ev.IsBookend() {
			continue
		}
		if opts.Only != "" && ev.EventID != opts.Only {
			continue
		}
		if ev.Content.AudioURL != "" && !opts.Force {
			continue
		}
		text := textproc.PlainText(ev.Content.TextHTML)
		if text == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			res.Errors = append(res.Errors, ItemError{EventID: ev.EventID, Error: err.Error()})
			break
		}

		attempted++
		base := filepath.Join(dir, safeName(ev.EventID))
		format, err := s.synthesize(ctx, text, s.voiceFor(story), base)
		file := tts.WithExt(base, format)
		if err != nil {
			if tts.IsCritical(err) {
				log.Error("Narration: critical provider error, stopping batch", "event", ev.EventID, "error", err)
				res.Critical = err.Error()
				break
			}
			log.Warn("Narration: event failed", "event", ev.EventID, "error", err)
			res.Errors = append(res.Errors, ItemError{EventID: ev.EventID, Error: err.Error()})
			continue
		}

		url := fmt.Sprintf("%s/%s/%s.%s", s.urlPrefix, storyID, safeName(ev.EventID), format)
		urls[ev.EventID] = url
		res.Files = append(res.Files, url)
		res.Generated++
		if d, err := audio.Duration(file); err == nil {
			res.Seconds += d.Seconds()
		} else {
			log.Debug("Narration: could not measure audio", "event", ev.EventID, "error", err)
		}
		log.Debug("Narration: event generated", "event", ev.EventID, "url", url)
	}

	if len(urls) > 0 {
		if err := s.applyURLs(ctx, storyID, urls); err != nil {
			return nil, err
		}
	}

	switch {
	case res.Critical != "":
		res.Status = StatusCritical
	case len(res.Errors) == 0:
		res.Status = StatusOK
	case res.Generated > 0:
		res.Status = StatusPartial
	default:
		res.Status = StatusFailed
	}
	log.Info("Narration: batch finished",
		"status", res.Status, "attempted", attempted, "generated", res.Generated, "errors", len(res.Errors))
	return res, nil
}

// synthesize writes the audio of text next to base and only replaces the
// existing file of base once the new one is complete. On failure the previous
// audio is left untouched.
func (s *Service) synthesize(ctx context.Context, text, voice, base string) (string, error) {
	partial := base + ".part"
	removeAudio(partial)
	format, err := s.provider.Synthesize(ctx, text, voice, partial)
	if err == nil {
		err = tts.VerifyAudioFile(tts.WithExt(partial, format))
	}
	if err != nil {
		removeAudio(partial)
		return "", err
	}
	removeAudio(base)
	if err := os.Rename(tts.WithExt(partial, format), tts.WithExt(base, format)); err != nil {
		removeAudio(partial)
		return "", fmt.Errorf("failed to store audio: %w", err)
	}
	return format, nil
}

// applyURLs writes audio urls onto the latest stored events so edits made
// while the batch ran are kept.
func (s *Service) applyURLs(ctx context.Context, storyID string, urls map[string]string) error {
	return s.updateEvents(ctx, storyID, func(ev *model.Event) bool {
		url, ok := urls[ev.EventID]
		if !ok {
			return false
		}
		ev.Content.AudioURL = url
		return true
	})
}

func (s *Service) updateEvents(ctx context.Context, storyID string, fn func(ev *model.Event) bool) error {
	evs, err := s.store.GetEvents(ctx, storyID)
	if err != nil {
		return err
	}
	changed := false
	for i := range evs {
		if fn(&evs[i]) {
			changed = true
		}
	}
	if !changed {
		return nil
	}
	if _, err := s.store.SaveEvents(ctx, storyID, evs); err != nil {
		return fmt.Errorf("failed to save audio urls: %w", err)
	}
	return nil
}

// DeleteAll removes every generated file of a story and clears the audio urls.
func (s *Service) DeleteAll(ctx context.Context, storyID string) (int, error) {
	if _, err := s.store.GetStory(ctx, storyID); err != nil {
		return 0, err
	}
	if err := s.RemoveStoryDir(storyID); err != nil {
		return 0, err
	}
	cleared := 0
	err := s.updateEvents(ctx, storyID, func(ev *model.Event) bool {
		if ev.Content.AudioURL == "" {
			return false
		}
		ev.Content.AudioURL = ""
		cleared++
		return true
	})
	return cleared, err
}

// DeleteEvent removes the audio of one event. Removing audio that does not
// exist is not an error.
func (s *Service) DeleteEvent(ctx context.Context, storyID, eventID string) error {
	if _, err := s.store.GetStory(ctx, storyID); err != nil {
		return err
	}
	removeAudio(filepath.Join(s.audioDir, storyID, safeName(eventID)))
	return s.updateEvents(ctx, storyID, func(ev *model.Event) bool {
		if ev.EventID != eventID || ev.Content.AudioURL == "" {
			return false
		}
		ev.Content.AudioURL = ""
		return true
	})
}

// RemoveStoryDir deletes the audio directory of a story.
func (s *Service) RemoveStoryDir(storyID string) error {
	if storyID == "" || safeName(storyID) != storyID {
		return fmt.Errorf("invalid story id %q", storyID)
	}
	if err := os.RemoveAll(filepath.Join(s.audioDir, storyID)); err != nil {
		return fmt.Errorf("failed to remove audio directory: %w", err)
	}
	return nil
}

var audioExts = []string{"mp3", "wav"}

func removeAudio(base string) {
	for _, ext := range audioExts {
		_ = os.Remove(tts.WithExt(base, ext))
	}
}

// safeName keeps ids usable as file names.
func safeName(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}
