package fishaudio

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"storymap/pkg/config"
	"storymap/pkg/tracker"
	"storymap/pkg/tts"
)

func newTestProvider(t *testing.T, h http.HandlerFunc) *Provider {
	t.Helper()
	svr := httptest.NewServer(h)
	t.Cleanup(svr.Close)
	p := NewProvider(config.FishAudioConfig{Key: "k", VoiceID: "voice-1", Model: "s1", BaseURL: svr.URL}, tracker.New())
	p.pause = time.Millisecond
	return p
}

func TestSynthesize(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/tts" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer k" || r.Header.Get("model") != "s1" {
			t.Errorf("headers = %v", r.Header)
		}
		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body.ReferenceID != "voice-2" || body.Text != "Hello" {
			t.Errorf("body = %+v", body)
		}
		_, _ = w.Write(make([]byte, 2048))
	})

	out := filepath.Join(t.TempDir(), "E001")
	format, err := p.Synthesize(context.Background(), "Hello", "voice-2", out)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if format != "mp3" {
		t.Errorf("format = %s", format)
	}
	if err := tts.VerifyAudioFile(out + ".mp3"); err != nil {
		t.Error(err)
	}
}

func TestSynthesizeAuthFailureIsCritical(t *testing.T) {
	var calls int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("invalid token"))
	})

	_, err := p.Synthesize(context.Background(), "Hello", "", filepath.Join(t.TempDir(), "x"))
	if !tts.IsCritical(err) {
		t.Fatalf("error %v should be critical", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, auth failures must not retry", calls)
	}
}

func TestSynthesizeRetriesServerErrors(t *testing.T) {
	var calls int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write(make([]byte, 2048))
	})

	out := filepath.Join(t.TempDir(), "x.mp3")
	if _, err := p.Synthesize(context.Background(), "Hello", "", out); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("output missing: %v", err)
	}
}

func TestSynthesizeEmptyAudio(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	_, err := p.Synthesize(context.Background(), "Hello", "", filepath.Join(t.TempDir(), "x"))
	if !tts.IsFatalError(err) {
		t.Fatalf("error = %v, want FatalError after retries", err)
	}
	if tts.IsCritical(err) {
		t.Error("empty audio is a per-item failure")
	}
}

func TestSynthesizeMissingKey(t *testing.T) {
	p := NewProvider(config.FishAudioConfig{VoiceID: "v"}, nil)
	_, err := p.Synthesize(context.Background(), "Hello", "", "x")
	if !tts.IsCritical(err) {
		t.Errorf("missing key should be critical, got %v", err)
	}
}
