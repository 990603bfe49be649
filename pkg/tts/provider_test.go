package tts

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsFatalError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "FatalError 429",
			err:      NewFatalError(429, "Too Many Requests"),
			expected: true,
		},
		{
			name:     "Wrapped FatalError",
			err:      fmt.Errorf("event E002: %w", NewFatalError(500, "Internal Server Error")),
			expected: true,
		},
		{
			name:     "Standard Error",
			err:      errors.New("some regular error"),
			expected: false,
		},
		{
			name:     "Nil Error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFatalError(tt.err); got != tt.expected {
				t.Errorf("IsFatalError() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestIsCritical(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unauthorized", NewFatalError(401, "invalid api key"), true},
		{"forbidden wrapped", fmt.Errorf("synthesize: %w", NewFatalError(403, "nope")), true},
		{"quota", errors.New(`{"detail":{"status":"quota_exceeded","message":"This request exceeds your quota"}}`), true},
		{"abuse", errors.New("detected_unusual_activity: Unusual activity detected"), true},
		{"subscription", errors.New("Your Subscription has ended"), true},
		{"payment", NewFatalError(402, "Payment required"), true},
		{"rate limited", NewFatalError(429, "too many requests"), false},
		{"server error", NewFatalError(500, "internal error"), false},
		{"empty text", errors.New("text is empty"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCritical(tt.err); got != tt.want {
				t.Errorf("IsCritical(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
