package gemini

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gopxl/beep/v2/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storymap/pkg/config"
	"storymap/pkg/tracker"
	"storymap/pkg/tts"
)

func pcm(samples int) []byte {
	b := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(int16(i%200-100)*100))
	}
	return b
}

func TestSynthesizeWritesWAV(t *testing.T) {
	p := NewProvider(config.GeminiTTSConfig{Key: "k"}, tracker.New())

	var gotVoice, gotModel string
	p.generate = func(_ context.Context, model, voice, text string) ([]byte, error) {
		gotModel, gotVoice = model, voice
		return pcm(SampleRate), nil
	}

	out := filepath.Join(t.TempDir(), "E001")
	format, err := p.Synthesize(context.Background(), "Born in Paris.", "21m00Tcm4TlvDq8ikWAM", out)
	require.NoError(t, err)
	assert.Equal(t, "wav", format)
	assert.Equal(t, defaultModel, gotModel)
	assert.Equal(t, defaultVoice, gotVoice, "foreign voice ids fall back to the configured voice")

	f, err := os.Open(out + ".wav")
	require.NoError(t, err)
	defer f.Close()
	s, fmtInfo, err := wav.Decode(f)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, SampleRate, int(fmtInfo.SampleRate))
	assert.Equal(t, 1, fmtInfo.NumChannels)
	assert.Equal(t, SampleRate, s.Len())
}

func TestSynthesizeKeepsGeminiVoice(t *testing.T) {
	p := NewProvider(config.GeminiTTSConfig{Key: "k"}, nil)
	var gotVoice string
	p.generate = func(_ context.Context, _, voice, _ string) ([]byte, error) {
		gotVoice = voice
		return pcm(100), nil
	}
	_, err := p.Synthesize(context.Background(), "x", "puck", filepath.Join(t.TempDir(), "x"))
	require.NoError(t, err)
	assert.Equal(t, "Puck", gotVoice)
}

func TestVoiceByID(t *testing.T) {
	tests := []struct {
		id       string
		wantName string
		wantOK   bool
	}{
		{"charon", "Charon", true},
		{"KORE", "Kore", true},
		{"21m00Tcm4TlvDq8ikWAM", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		v, ok := VoiceByID(tt.id)
		assert.Equal(t, tt.wantOK, ok, tt.id)
		assert.Equal(t, tt.wantName, v.Name, tt.id)
	}
}

func TestSynthesizeError(t *testing.T) {
	p := NewProvider(config.GeminiTTSConfig{Key: "k"}, nil)
	p.generate = func(context.Context, string, string, string) ([]byte, error) {
		return nil, errors.New("RESOURCE_EXHAUSTED: You exceeded your current quota")
	}
	_, err := p.Synthesize(context.Background(), "x", "", filepath.Join(t.TempDir(), "x"))
	assert.True(t, tts.IsCritical(err))
}

func TestMissingKeyIsCritical(t *testing.T) {
	p := NewProvider(config.GeminiTTSConfig{}, nil)
	_, err := p.Synthesize(context.Background(), "x", "", filepath.Join(t.TempDir(), "x"))
	assert.True(t, tts.IsCritical(err))
}

func TestWritePCMAsWAVRejectsEmpty(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "e.wav"))
	require.NoError(t, err)
	defer f.Close()
	assert.Error(t, WritePCMAsWAV(f, nil))
}
