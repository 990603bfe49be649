package tts

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { SetLogger(nil) })

	Log("ELEVENLABS", "Wir kamen im Mai in Hamburg an.", 200, nil)
	out := buf.String()
	assert.Contains(t, out, "level=INFO")
	assert.Contains(t, out, "provider=ELEVENLABS")
	assert.Contains(t, out, "chars=31")

	buf.Reset()
	Log("FISH", strings.Repeat("ä", maxLoggedText+50), 0, errors.New("connection reset"))
	out = buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, `error="connection reset"`)
	assert.Contains(t, out, "chars=450")
	assert.NotContains(t, out, strings.Repeat("ä", maxLoggedText+1))
}
