package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"storymap/pkg/audio"
	"storymap/pkg/cinema"
	"storymap/pkg/clock"
	"storymap/pkg/loop"
	"storymap/pkg/model"
	"storymap/pkg/render"
	"storymap/pkg/view"
)

func newPresentCommand(opts *rootOptions) *cobra.Command {
	var mute bool
	cmd := &cobra.Command{
		Use:   "present <story-id>",
		Short: "Play a story in cinema mode on this machine's speaker",
		Long: "Plays every event of a story in order, narrating through the local audio " +
			"device and logging each camera move. Example stories can be presented by id.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, opts.ConfigPath)
			if err != nil {
				return err
			}
			defer a.Close()

			var player cinema.Player
			if !mute {
				p := audio.NewPlayer(a.cfg.Player, audio.DirResolver("/audio", a.cfg.Storage.AudioDir))
				defer p.Stop()
				player = p
			}
			return present(ctx, a.library(), player, viewConfig(ctx, a.cfgProv, a.cfg), args[0])
		},
	}
	cmd.Flags().BoolVar(&mute, "mute", false, "advance on timers without playing audio")
	return cmd
}

// present runs one cinema pass of storyID and returns when it ends.
func present(ctx context.Context, lib view.Library, player cinema.Player, cfg view.Config, storyID string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	l := loop.New(64, slog.With("component", "present"))
	go l.Run(ctx)

	pres := newConsolePresenter()
	o := view.New(ctx, view.Deps{
		Library:    lib,
		Widget:     &logWidget{cam: model.DefaultCamera},
		Player:     player,
		Presenter:  pres,
		Clock:      clock.Posting(clock.Real{}, l.Post),
		Dispatcher: l,
	}, cfg)

	var openErr error
	if err := l.Do(ctx, func() { openErr = o.Open(storyID, render.ModeCinema) }); err != nil {
		return err
	}
	if openErr != nil {
		return openErr
	}

	select {
	case <-pres.done:
		return pres.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// consolePresenter logs playback progress and reports when cinema ends.
type consolePresenter struct {
	once    sync.Once
	done    chan struct{}
	err     error
	started bool
	active  int
}

func newConsolePresenter() *consolePresenter {
	return &consolePresenter{done: make(chan struct{}), active: -1}
}

func (p *consolePresenter) finish(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

func (p *consolePresenter) Present(s view.Snapshot) {
	if s.Loading {
		return
	}
	if s.Story == nil {
		p.finish(errors.New("story could not be loaded"))
		return
	}
	if s.Mode == render.ModeCinema {
		if len(s.Events) == 0 {
			p.finish(errors.New("story has no events"))
			return
		}
		p.started = true
		if s.Active != p.active && s.Active >= 0 && s.Active < len(s.Events) {
			p.active = s.Active
			ev := s.Events[s.Active]
			fmt.Printf("[%d/%d] %s  %s\n", s.Active+1, len(s.Events), ev.Timeline.DateStart, ev.Title)
		}
		return
	}
	if p.started {
		p.finish(nil)
	}
}

func (p *consolePresenter) Draw(o *render.Overlay, d render.Diff) {
	slog.Debug("Present: overlay", "key", o.Key, "added", len(d.Added), "removed", len(d.Removed))
}

func (p *consolePresenter) Notify(n view.Notice) {
	slog.Info("Present: notice", "level", n.Level, "message", n.Message)
}

// logWidget is a map without a screen: moves land instantly.
type logWidget struct {
	cam model.Camera
}

func (w *logWidget) Camera() model.Camera { return w.cam }

func (w *logWidget) EaseTo(c model.Camera, d time.Duration) {
	w.cam = c
	slog.Info("Present: camera", "lng", c.Lng(), "lat", c.Lat(), "zoom", c.Zoom, "ease", d)
}

func (w *logWidget) JumpTo(c model.Camera) {
	w.cam = c
	slog.Info("Present: camera", "lng", c.Lng(), "lat", c.Lat(), "zoom", c.Zoom)
}
