// Package bridge connects browser map widgets to their sessions over a
// websocket. Every client message is decoded here and applied on the
// session loop; outbound messages are the session.Message envelopes.
//
// Client to server messages:
//
//	open          {storyId, mode}        open a story in edit, view or cinema mode
//	home          {}                     show the story overview
//	goto          {index}                make an event active
//	next, prev    {}                     step through events
//	insert        {index}                add an empty event after index
//	delete        {index}                remove an event
//	reorder       {from, to}             move an event
//	update        {index, path, value}   set a field by dotted JSON path
//	save          {}                     persist the event list
//	pick          {index}                toggle map picking for an event
//	click         {lng, lat, camera?}    map click
//	search        {index, query}         geocode a place name for an event
//	moveend       {camera}               the map finished moving
//	rotate        {camera}               the user rotated or pitched the map
//	cinema.enter  {}                     start playback at the active event
//	cinema.exit   {}                     stop playback
//	audio.ended   {token}                the audio element finished
//	audio.error   {token, error}         the audio element failed
//	redraw        {}                     resend the full overlay
//
// Server to client messages are listed in package session (hello, snapshot,
// overlay, notice, camera, audio.play, audio.stop, error).
package bridge

import (
	"encoding/json"
	"fmt"
	"time"

	"storymap/pkg/model"
	"storymap/pkg/render"
	"storymap/pkg/session"
	"storymap/pkg/view"
)

// Inbound is the envelope of every client message.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type openMsg struct {
	StoryID string      `json:"storyId"`
	Mode    render.Mode `json:"mode"`
}

type indexMsg struct {
	Index int `json:"index"`
}

type reorderMsg struct {
	From int `json:"from"`
	To   int `json:"to"`
}

type updateMsg struct {
	Index int    `json:"index"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

type clickMsg struct {
	Lng    float64       `json:"lng"`
	Lat    float64       `json:"lat"`
	Camera *model.Camera `json:"camera,omitempty"`
	// At and Sent are client epoch milliseconds of the click and of sending.
	At   int64 `json:"at,omitempty"`
	Sent int64 `json:"sent,omitempty"`
}

// maxClickAge bounds how far back a client may date a click.
const maxClickAge = 10 * time.Second

// clickTime dates a click on the server clock: now minus the age the client
// measured between clicking and sending. Only the difference of the two
// client stamps is used, so client clock skew cancels out.
func clickTime(now time.Time, at, sent int64) time.Time {
	if at <= 0 || sent < at {
		return now
	}
	age := time.Duration(sent-at) * time.Millisecond
	return now.Add(-min(age, maxClickAge))
}

type searchMsg struct {
	Index int    `json:"index"`
	Query string `json:"query"`
}

type cameraMsg struct {
	Camera *model.Camera `json:"camera,omitempty"`
}

type audioMsg struct {
	Token uint64 `json:"token"`
	Error string `json:"error,omitempty"`
}

// command is a decoded client message ready to run on the loop.
type command func(s *session.Session, o *view.Orchestrator) error

// Decode parses one client message.
func Decode(raw []byte) (string, command, error) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		return "", nil, fmt.Errorf("invalid message: %w", err)
	}
	cmd, err := decodeCommand(in)
	return in.Type, cmd, err
}

func decodeCommand(in Inbound) (command, error) {
	switch in.Type {
	case "open":
		var m openMsg
		if err := unmarshal(in, &m); err != nil {
			return nil, err
		}
		if m.StoryID == "" && m.Mode != render.ModeHome {
			return nil, fmt.Errorf("open: storyId is required")
		}
		if m.Mode == "" {
			m.Mode = render.ModeView
		}
		switch m.Mode {
		case render.ModeEdit, render.ModeView, render.ModeCinema, render.ModeHome:
		default:
			return nil, fmt.Errorf("open: unknown mode %q", m.Mode)
		}
		return func(_ *session.Session, o *view.Orchestrator) error { return o.Open(m.StoryID, m.Mode) }, nil

	case "home":
		return func(_ *session.Session, o *view.Orchestrator) error { o.OpenHome(); return nil }, nil

	case "goto":
		var m indexMsg
		if err := unmarshal(in, &m); err != nil {
			return nil, err
		}
		return func(_ *session.Session, o *view.Orchestrator) error { o.GoTo(m.Index); return nil }, nil

	case "next":
		return func(_ *session.Session, o *view.Orchestrator) error { o.Next(); return nil }, nil

	case "prev":
		return func(_ *session.Session, o *view.Orchestrator) error { o.Prev(); return nil }, nil

	case "insert":
		var m indexMsg
		if err := unmarshal(in, &m); err != nil {
			return nil, err
		}
		return func(_ *session.Session, o *view.Orchestrator) error { return o.InsertAfter(m.Index) }, nil

	case "delete":
		var m indexMsg
		if err := unmarshal(in, &m); err != nil {
			return nil, err
		}
		return func(_ *session.Session, o *view.Orchestrator) error { return o.DeleteAt(m.Index) }, nil

	case "reorder":
		var m reorderMsg
		if err := unmarshal(in, &m); err != nil {
			return nil, err
		}
		return func(_ *session.Session, o *view.Orchestrator) error { return o.Reorder(m.From, m.To) }, nil

	case "update":
		var m updateMsg
		if err := unmarshal(in, &m); err != nil {
			return nil, err
		}
		if m.Path == "" {
			return nil, fmt.Errorf("update: path is required")
		}
		return func(_ *session.Session, o *view.Orchestrator) error { return o.UpdateField(m.Index, m.Path, m.Value) }, nil

	case "save":
		return func(_ *session.Session, o *view.Orchestrator) error { return o.Save() }, nil

	case "pick":
		var m indexMsg
		if err := unmarshal(in, &m); err != nil {
			return nil, err
		}
		return func(_ *session.Session, o *view.Orchestrator) error { return o.BeginPick(m.Index) }, nil

	case "click":
		var m clickMsg
		if err := unmarshal(in, &m); err != nil {
			return nil, err
		}
		return func(s *session.Session, o *view.Orchestrator) error {
			if m.Camera != nil {
				s.ReportCamera(*m.Camera)
			}
			o.MapClick(m.Lng, m.Lat, m.Camera, clickTime(time.Now(), m.At, m.Sent))
			return nil
		}, nil

	case "search":
		var m searchMsg
		if err := unmarshal(in, &m); err != nil {
			return nil, err
		}
		return func(_ *session.Session, o *view.Orchestrator) error { return o.Search(m.Index, m.Query) }, nil

	case "moveend":
		var m cameraMsg
		if err := unmarshal(in, &m); err != nil {
			return nil, err
		}
		return func(s *session.Session, o *view.Orchestrator) error {
			if m.Camera != nil {
				s.ReportCamera(*m.Camera)
			}
			o.OnMapMoveEnd()
			return nil
		}, nil

	case "rotate":
		var m cameraMsg
		if err := unmarshal(in, &m); err != nil {
			return nil, err
		}
		return func(s *session.Session, o *view.Orchestrator) error {
			if m.Camera != nil {
				s.ReportCamera(*m.Camera)
			}
			o.OnRotateOrPitch()
			return nil
		}, nil

	case "cinema.enter":
		return func(_ *session.Session, o *view.Orchestrator) error { return o.EnterCinema() }, nil

	case "cinema.exit":
		return func(_ *session.Session, o *view.Orchestrator) error { o.ExitCinema(); return nil }, nil

	case "audio.ended":
		var m audioMsg
		if err := unmarshal(in, &m); err != nil {
			return nil, err
		}
		return func(s *session.Session, _ *view.Orchestrator) error { s.AudioEnded(m.Token); return nil }, nil

	case "audio.error":
		var m audioMsg
		if err := unmarshal(in, &m); err != nil {
			return nil, err
		}
		if m.Error == "" {
			m.Error = "playback failed"
		}
		return func(s *session.Session, _ *view.Orchestrator) error { s.AudioFailed(m.Token, m.Error); return nil }, nil

	case "redraw":
		return func(_ *session.Session, o *view.Orchestrator) error { o.Redraw(); return nil }, nil

	default:
		return nil, fmt.Errorf("unknown message type %q", in.Type)
	}
}

func unmarshal(in Inbound, v any) error {
	if len(in.Data) == 0 {
		return fmt.Errorf("%s: missing data", in.Type)
	}
	if err := json.Unmarshal(in.Data, v); err != nil {
		return fmt.Errorf("%s: %w", in.Type, err)
	}
	return nil
}
