package narration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storymap/pkg/config"
	"storymap/pkg/db"
	"storymap/pkg/events"
	"storymap/pkg/model"
	"storymap/pkg/request"
	"storymap/pkg/store"
	"storymap/pkg/tracker"
	"storymap/pkg/tts"
)

// fakeProvider writes a padded mp3 for each text, or fails per text.
type fakeProvider struct {
	mu     sync.Mutex
	calls  []string
	voices []string
	fail   map[string]error
}

func (p *fakeProvider) Synthesize(ctx context.Context, text, voice, outputPath string) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, text)
	p.voices = append(p.voices, voice)
	p.mu.Unlock()
	if err, ok := p.fail[text]; ok {
		return "", err
	}
	data := make([]byte, tts.MinAudioSize+10)
	return "mp3", os.WriteFile(tts.WithExt(outputPath, "mp3"), data, 0o644)
}

func (p *fakeProvider) Voices(ctx context.Context) ([]tts.Voice, error) { return nil, nil }

func setup(t *testing.T, texts ...string) (*store.SQLiteStore, *model.Story, string) {
	t.Helper()
	ctx := context.Background()
	d, err := db.Init(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	s := store.NewSQLiteStore(d)

	st, err := s.CreateStory(ctx, "Story", "en", 5)
	require.NoError(t, err)
	evs, err := s.GetEvents(ctx, st.ID)
	require.NoError(t, err)
	for i, text := range texts {
		evs = events.InsertAfter(evs, i)
		evs[i+1].Content.TextHTML = text
	}
	st, err = s.SaveEvents(ctx, st.ID, evs)
	require.NoError(t, err)
	return s, st, t.TempDir()
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()
	s, st, dir := setup(t, "<p>First</p>", "", "<p>Third</p>")
	p := &fakeProvider{}
	svc := New(s, p, "elevenlabs", dir)

	res, err := svc.Generate(ctx, st.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, 2, res.Generated)
	assert.Equal(t, []string{"First", "Third"}, p.calls)
	assert.Equal(t, []string{st.VoiceID, st.VoiceID}, p.voices)
	assert.Equal(t, []string{
		"/audio/" + st.ID + "/E001.mp3",
		"/audio/" + st.ID + "/E003.mp3",
	}, res.Files)

	evs, err := s.GetEvents(ctx, st.ID)
	require.NoError(t, err)
	assert.Empty(t, evs[0].Content.AudioURL, "opening never gets audio")
	assert.Equal(t, res.Files[0], evs[1].Content.AudioURL)
	assert.Empty(t, evs[2].Content.AudioURL, "empty text is skipped")
	assert.Equal(t, res.Files[1], evs[3].Content.AudioURL)
	assert.FileExists(t, filepath.Join(dir, st.ID, "E001.mp3"))

	// Second run skips events that already have audio.
	res, err = svc.Generate(ctx, st.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Generated)
	assert.Len(t, p.calls, 2)

	res, err = svc.Generate(ctx, st.ID, Options{Force: true, Only: "E003"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Generated)
	assert.Equal(t, "Third", p.calls[len(p.calls)-1])
}

func TestGenerateVoiceForOtherEngines(t *testing.T) {
	s, st, dir := setup(t, "Hello")
	p := &fakeProvider{}
	_, err := New(s, p, "edge-tts", dir).Generate(context.Background(), st.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{""}, p.voices)
}

func TestGeneratePartialAndFailed(t *testing.T) {
	ctx := context.Background()
	s, st, dir := setup(t, "ok", "bad")
	p := &fakeProvider{fail: map[string]error{"bad": tts.NewFatalError(500, "server exploded")}}

	res, err := New(s, p, "elevenlabs", dir).Generate(ctx, st.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, res.Status)
	assert.Equal(t, 1, res.Generated)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "E002", res.Errors[0].EventID)
	assert.Empty(t, res.Critical)

	s2, st2, dir2 := setup(t, "bad")
	res, err = New(s2, p, "elevenlabs", dir2).Generate(ctx, st2.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status)
}

func TestForcedRegenerationFailureKeepsAudio(t *testing.T) {
	ctx := context.Background()
	s, st, dir := setup(t, "Hello")
	p := &fakeProvider{}
	svc := New(s, p, "elevenlabs", dir)

	res, err := svc.Generate(ctx, st.ID, Options{})
	require.NoError(t, err)
	require.Equal(t, StatusOK, res.Status)
	file := filepath.Join(dir, st.ID, "E001.mp3")
	require.FileExists(t, file)

	p.fail = map[string]error{"Hello": tts.NewFatalError(500, "server exploded")}
	res, err = svc.Generate(ctx, st.ID, Options{Force: true})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status)

	assert.FileExists(t, file, "previous audio survives a failed regeneration")
	assert.NoFileExists(t, filepath.Join(dir, st.ID, "E001.part.mp3"))
	evs, err := s.GetEvents(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, "/audio/"+st.ID+"/E001.mp3", evs[1].Content.AudioURL)
}

func TestGenerateCriticalStopsBatch(t *testing.T) {
	ctx := context.Background()
	s, st, dir := setup(t, "one", "two", "three")
	p := &fakeProvider{fail: map[string]error{
		"two": errors.New("quota exceeded for this month"),
	}}

	res, err := New(s, p, "elevenlabs", dir).Generate(ctx, st.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, StatusCritical, res.Status)
	assert.Contains(t, res.Critical, "quota")
	assert.Equal(t, 1, res.Generated)
	assert.Equal(t, []string{"one", "two"}, p.calls, "no calls after a critical error")

	evs, err := s.GetEvents(ctx, st.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, evs[1].Content.AudioURL, "files generated before the stop are kept")
}

func TestGenerateRejectsShortAudio(t *testing.T) {
	s, st, dir := setup(t, "short")
	p := shortProvider{}
	res, err := New(s, p, "elevenlabs", dir).Generate(context.Background(), st.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	require.Len(t, res.Errors, 1)
	assert.True(t, strings.Contains(res.Errors[0].Error, "too small"))
}

type shortProvider struct{}

func (shortProvider) Synthesize(ctx context.Context, text, voice, outputPath string) (string, error) {
	return "wav", os.WriteFile(tts.WithExt(outputPath, "wav"), []byte("x"), 0o644)
}

func (shortProvider) Voices(ctx context.Context) ([]tts.Voice, error) { return nil, nil }

func TestGenerateUnknownStory(t *testing.T) {
	s, _, dir := setup(t)
	_, err := New(s, &fakeProvider{}, "elevenlabs", dir).Generate(context.Background(), "missing", Options{})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGenerateBusy(t *testing.T) {
	s, st, dir := setup(t, "x")
	svc := New(s, &fakeProvider{}, "elevenlabs", dir)
	require.True(t, svc.acquire(st.ID))
	_, err := svc.Generate(context.Background(), st.ID, Options{})
	assert.ErrorIs(t, err, ErrBusy)
	svc.release(st.ID)
}

func TestDeleteAudio(t *testing.T) {
	ctx := context.Background()
	s, st, dir := setup(t, "one", "two")
	svc := New(s, &fakeProvider{}, "elevenlabs", dir)
	_, err := svc.Generate(ctx, st.ID, Options{})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteEvent(ctx, st.ID, "E001"))
	assert.NoFileExists(t, filepath.Join(dir, st.ID, "E001.mp3"))
	assert.FileExists(t, filepath.Join(dir, st.ID, "E002.mp3"))
	evs, err := s.GetEvents(ctx, st.ID)
	require.NoError(t, err)
	assert.Empty(t, evs[1].Content.AudioURL)
	assert.NotEmpty(t, evs[2].Content.AudioURL)

	// Deleting again is harmless.
	require.NoError(t, svc.DeleteEvent(ctx, st.ID, "E001"))

	cleared, err := svc.DeleteAll(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cleared)
	assert.NoDirExists(t, filepath.Join(dir, st.ID))

	_, err = svc.DeleteAll(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRemoveStoryDirRejectsTraversal(t *testing.T) {
	svc := New(nil, nil, "", t.TempDir())
	assert.Error(t, svc.RemoveStoryDir("../etc"))
	assert.Error(t, svc.RemoveStoryDir(""))
}

func TestNewTTSProvider(t *testing.T) {
	rc := request.New(nil, tracker.New())
	tests := []struct {
		engine  string
		wantErr bool
	}{
		{"elevenlabs", false},
		{"fish-audio", false},
		{"fishaudio", false},
		{"edge-tts", false},
		{"gemini", false},
		{"espeak", true},
	}
	for _, tt := range tests {
		t.Run(tt.engine, func(t *testing.T) {
			cfg := config.DefaultConfig().TTS
			cfg.Engine = tt.engine
			p, err := NewTTSProvider(&cfg, rc, tracker.New())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, p)
		})
	}
}

// wavProvider writes one second of silence as wav.
type wavProvider struct{ fakeProvider }

func (p *wavProvider) Synthesize(ctx context.Context, text, voice, outputPath string) (string, error) {
	f, err := os.Create(tts.WithExt(outputPath, "wav"))
	if err != nil {
		return "", err
	}
	defer f.Close()
	const rate = 8000
	silence := beep.Silence(rate)
	return "wav", wav.Encode(f, silence, beep.Format{SampleRate: rate, NumChannels: 1, Precision: 2})
}

func TestGenerateMeasuresAudio(t *testing.T) {
	ctx := context.Background()
	s, st, dir := setup(t, "<p>One</p>", "<p>Two</p>")
	svc := New(s, &wavProvider{}, "gemini", dir)

	res, err := svc.Generate(ctx, st.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
	assert.InDelta(t, 2.0, res.Seconds, 0.01)
}
