package tts

import (
	"context"
	"log/slog"
	"sync/atomic"
	"unicode/utf8"
)

var logger atomic.Pointer[slog.Logger]

// maxLoggedText bounds how much narration text a log record carries.
const maxLoggedText = 400

// SetLogger routes the speech request log. Nil restores the default logger
// at DEBUG level.
func SetLogger(l *slog.Logger) {
	logger.Store(l)
}

// Log records one request to a speech engine: the text sent and the status
// it came back with. status 0 means no HTTP answer was received.
func Log(provider, text string, status int, err error) {
	l := logger.Load()
	level := slog.LevelInfo
	if l == nil {
		l = slog.Default()
		level = slog.LevelDebug
	}
	if err != nil {
		level = slog.LevelWarn
	}
	attrs := []any{
		"provider", provider,
		"status", status,
		"chars", utf8.RuneCountInString(text),
		"text", clip(text, maxLoggedText),
	}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	l.Log(context.Background(), level, "TTS request", attrs...)
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}
