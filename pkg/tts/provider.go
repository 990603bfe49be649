package tts

import (
	"context"
	"errors"
	"strings"
)

const (
	// MinAudioSize is the minimum size of a synthesized audio file (1KB).
	// Files smaller than this are likely failed synthesis attempts.
	MinAudioSize = 1024
)

// Provider defines the interface for Text-To-Speech engines.
type Provider interface {
	// Synthesize generates audio from text and writes it to outputPath.
	// The extension is appended when missing. Returns the audio format ("mp3", "wav").
	Synthesize(ctx context.Context, text, voice, outputPath string) (string, error)

	// Voices returns a list of available voices for the provider.
	Voices(ctx context.Context) ([]Voice, error)
}

// Voice represents an available TTS voice.
type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
	IsNeural bool   `json:"isNeural"`
}

// FatalError is a provider failure carrying the remote status and message.
type FatalError struct {
	StatusCode int
	Message    string
}

func (e *FatalError) Error() string {
	return e.Message
}

// NewFatalError creates a new FatalError with the given status code and message.
func NewFatalError(statusCode int, message string) *FatalError {
	return &FatalError{StatusCode: statusCode, Message: message}
}

// IsFatalError checks if an error is a TTS fatal error.
func IsFatalError(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// criticalKeywords mark account-level failures that will not go away by
// retrying the next event.
var criticalKeywords = []string{
	"quota",
	"abuse",
	"subscription",
	"unusual activity",
	"payment",
}

// IsCritical reports whether err should abort a whole batch: authentication
// failures (401/403) or messages about quota, abuse, subscription, unusual
// activity or payment.
func IsCritical(err error) bool {
	if err == nil {
		return false
	}
	var fe *FatalError
	if errors.As(err, &fe) && (fe.StatusCode == 401 || fe.StatusCode == 403) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, kw := range criticalKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}
