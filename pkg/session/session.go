// Package session hosts one browser tab's view. Each session owns a loop on
// which its orchestrator runs; the attached client only sees outbound
// messages and feeds gestures back through the session's methods.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"storymap/pkg/camera"
	"storymap/pkg/clock"
	"storymap/pkg/geocode"
	"storymap/pkg/loop"
	"storymap/pkg/model"
	"storymap/pkg/render"
	"storymap/pkg/store"
	"storymap/pkg/version"
	"storymap/pkg/view"
)

// Outbound message types.
const (
	MsgHello     = "hello"
	MsgSnapshot  = "snapshot"
	MsgOverlay   = "overlay"
	MsgNotice    = "notice"
	MsgCamera    = "camera"
	MsgAudioPlay = "audio.play"
	MsgAudioStop = "audio.stop"
	MsgError     = "error"
)

// ErrNoClient is returned when a command needs a connected browser.
var ErrNoClient = errors.New("no client attached")

// Message is the envelope of every server to client message.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Client receives outbound messages. Send must not block.
type Client interface {
	Send(m Message) bool
}

// Hello greets a freshly attached client.
type Hello struct {
	SessionID string `json:"sessionId"`
	Version   string `json:"version"`
	MapStyle  string `json:"mapStyle"`
}

// OverlayUpdate carries the full overlay and what changed since the last one.
type OverlayUpdate struct {
	Overlay *render.Overlay `json:"overlay"`
	Diff    render.Diff     `json:"diff"`
}

// CameraCommand moves the client map.
type CameraCommand struct {
	Camera     model.Camera `json:"camera"`
	DurationMs int64        `json:"durationMs"`
	Animate    bool         `json:"animate"`
}

// AudioCommand starts audio on the client's single audio element.
type AudioCommand struct {
	Token uint64 `json:"token"`
	Src   string `json:"src"`
}

// Deps are shared services.
type Deps struct {
	Library  view.Library
	Geocoder geocode.Geocoder
	State    store.StateStore
	Clock    clock.Clock
}

// Config tunes a session.
type Config struct {
	View      view.Config
	QueueSize int
	MapStyle  string
}

// Session is one browser tab's server-side state.
type Session struct {
	ID string

	ctx    context.Context
	cancel context.CancelFunc
	loop   *loop.Loop
	orch   *view.Orchestrator
	widget *remoteWidget
	player *remotePlayer
	state  store.StateStore
	cfg    Config
	place  Place

	mu     sync.Mutex
	client Client

	log *slog.Logger
}

// New starts a session loop. Close must be called to stop it.
func New(parent context.Context, id string, d Deps, cfg Config) *Session {
	ctx, cancel := context.WithCancel(parent)
	log := slog.With("component", "session", "session", id)
	if d.Clock == nil {
		d.Clock = clock.Real{}
	}
	l := loop.New(cfg.QueueSize, log)
	s := &Session{
		ID:     id,
		ctx:    ctx,
		cancel: cancel,
		loop:   l,
		state:  d.State,
		cfg:    cfg,
		log:    log,
	}
	s.widget = &remoteWidget{s: s, cam: model.DefaultCamera}
	s.player = &remotePlayer{s: s}
	s.orch = view.New(ctx, view.Deps{
		Library:    d.Library,
		Geocoder:   d.Geocoder,
		Widget:     s.widget,
		Player:     s.player,
		Presenter:  presenter{s},
		Clock:      clock.Posting(d.Clock, l.Post),
		Dispatcher: l,
	}, cfg.View)
	go l.Run(ctx)
	return s
}

// Start restores the stored place or opens the home overview.
func (s *Session) Start() {
	s.loop.Post(func() {
		if s.state != nil {
			if p, ok := LoadPlace(s.ctx, s.state, s.ID); ok {
				if err := s.orch.Open(p.StoryID, p.Mode); err == nil {
					s.log.Info("Session: restored place", "story", p.StoryID, "mode", p.Mode)
					return
				}
			}
		}
		s.orch.OpenHome()
	})
}

// Attach makes c the session's client, replacing any previous one, and
// replays the full state to it.
func (s *Session) Attach(c Client) {
	s.mu.Lock()
	s.client = c
	s.mu.Unlock()

	s.loop.Post(func() {
		s.send(Message{Type: MsgHello, Data: Hello{SessionID: s.ID, Version: version.Version, MapStyle: s.cfg.MapStyle}})
		s.widget.JumpTo(s.orch.Snapshot().Camera)
		s.orch.Redraw()
	})
}

// Detach removes c if it is still the attached client. Cinema cannot run
// without a browser to play audio, so it is left.
func (s *Session) Detach(c Client) {
	s.mu.Lock()
	if s.client != c {
		s.mu.Unlock()
		return
	}
	s.client = nil
	s.mu.Unlock()

	s.loop.Post(func() {
		s.player.drop()
		s.orch.ExitCinema()
	})
}

// Connected reports whether a client is attached.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client != nil
}

func (s *Session) send(m Message) {
	s.mu.Lock()
	c := s.client
	s.mu.Unlock()
	if c == nil {
		return
	}
	if !c.Send(m) {
		s.log.Warn("Session: client queue full, dropping message", "type", m.Type)
	}
}

// Post runs f on the session loop with the orchestrator.
func (s *Session) Post(f func(o *view.Orchestrator)) {
	s.loop.Post(func() { f(s.orch) })
}

// Do runs f on the session loop and waits for its result.
func (s *Session) Do(ctx context.Context, f func(o *view.Orchestrator) error) error {
	var err error
	if derr := s.loop.Do(ctx, func() { err = f(s.orch) }); derr != nil {
		return derr
	}
	return err
}

// ErrorReply reports a failed client command.
type ErrorReply struct {
	Command string `json:"command"`
	Message string `json:"message"`
}

// SendError tells the client that command failed.
func (s *Session) SendError(command string, err error) {
	s.send(Message{Type: MsgError, Data: ErrorReply{Command: command, Message: err.Error()}})
}

// ReportCamera records the client's viewport. Call it on the loop before
// forwarding move-end or rotate gestures.
func (s *Session) ReportCamera(c model.Camera) {
	s.widget.cam = c
}

// AudioEnded and AudioFailed deliver client audio events; they must run on the loop.
func (s *Session) AudioEnded(token uint64) { s.player.ended(token) }

// AudioFailed reports a client playback error for token.
func (s *Session) AudioFailed(token uint64, msg string) { s.player.failed(token, msg) }

// Snapshot returns the orchestrator state.
func (s *Session) Snapshot(ctx context.Context) (view.Snapshot, error) {
	var snap view.Snapshot
	err := s.Do(ctx, func(o *view.Orchestrator) error {
		snap = o.Snapshot()
		return nil
	})
	return snap, err
}

// CameraStats returns the synchronizer counters.
func (s *Session) CameraStats(ctx context.Context) (camera.Stats, error) {
	var st camera.Stats
	err := s.Do(ctx, func(o *view.Orchestrator) error {
		st = o.CameraStats()
		return nil
	})
	return st, err
}

// Close stops the loop. Pending callbacks are discarded.
func (s *Session) Close() {
	s.cancel()
	s.loop.Stop()
	s.log.Debug("Session: closed")
}

// rememberPlace persists story and mode changes off the loop.
func (s *Session) rememberPlace(snap view.Snapshot) {
	p := Place{StoryID: snap.StoryID, Mode: snap.Mode}
	if p.Mode == render.ModeCinema {
		// cinema is not resumed after a reload
		p.Mode = render.ModeView
	}
	if p == s.place || s.state == nil {
		return
	}
	s.place = p
	ctx, id, st := s.ctx, s.ID, s.state
	s.loop.Go(func() {
		if err := SavePlace(ctx, st, id, p); err != nil && ctx.Err() == nil {
			slog.Warn("Session: failed to store place", "session", id, "error", err)
		}
	})
}

type presenter struct{ s *Session }

func (p presenter) Present(snap view.Snapshot) {
	p.s.rememberPlace(snap)
	p.s.send(Message{Type: MsgSnapshot, Data: snap})
}

func (p presenter) Draw(o *render.Overlay, d render.Diff) {
	p.s.send(Message{Type: MsgOverlay, Data: OverlayUpdate{Overlay: o, Diff: d}})
}

func (p presenter) Notify(n view.Notice) {
	p.s.send(Message{Type: MsgNotice, Data: n})
}

// remoteWidget mirrors the client map. Commands optimistically update the
// mirrored camera; the client corrects it with every reported gesture.
type remoteWidget struct {
	s   *Session
	cam model.Camera
}

func (w *remoteWidget) Camera() model.Camera { return w.cam }

func (w *remoteWidget) EaseTo(c model.Camera, d time.Duration) {
	w.cam = c
	w.s.send(Message{Type: MsgCamera, Data: CameraCommand{Camera: c, DurationMs: d.Milliseconds(), Animate: true}})
}

func (w *remoteWidget) JumpTo(c model.Camera) {
	w.cam = c
	w.s.send(Message{Type: MsgCamera, Data: CameraCommand{Camera: c}})
}

// remotePlayer drives the client's audio element. Each Play gets a token so
// late events from a replaced source are ignored.
type remotePlayer struct {
	s       *Session
	token   uint64
	onEnded func()
	onError func(error)
}

func (p *remotePlayer) Play(src string, onEnded func(), onError func(error)) error {
	if !p.s.Connected() {
		return ErrNoClient
	}
	p.token++
	p.onEnded, p.onError = onEnded, onError
	p.s.send(Message{Type: MsgAudioPlay, Data: AudioCommand{Token: p.token, Src: src}})
	return nil
}

func (p *remotePlayer) Stop() {
	if p.onEnded == nil && p.onError == nil {
		return
	}
	p.token++
	p.onEnded, p.onError = nil, nil
	p.s.send(Message{Type: MsgAudioStop})
}

func (p *remotePlayer) ended(token uint64) {
	if token != p.token || p.onEnded == nil {
		return
	}
	f := p.onEnded
	p.onEnded, p.onError = nil, nil
	f()
}

func (p *remotePlayer) failed(token uint64, msg string) {
	if token != p.token || p.onError == nil {
		return
	}
	f := p.onError
	p.onEnded, p.onError = nil, nil
	f(errors.New(msg))
}

// drop forgets the current source without telling the (gone) client.
func (p *remotePlayer) drop() {
	p.token++
	p.onEnded, p.onError = nil, nil
}
