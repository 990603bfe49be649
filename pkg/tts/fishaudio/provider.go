package fishaudio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"storymap/pkg/config"
	"storymap/pkg/tracker"
	"storymap/pkg/tts"
)

const defaultBaseURL = "https://api.fish.audio"

// Provider implements tts.Provider for Fish Audio.
type Provider struct {
	apiKey  string
	voiceID string // Default voice ID (reference_id)
	modelID string // Model ID (e.g. "s1")
	apiURL  string
	client  *http.Client
	tracker *tracker.Tracker
	retries int
	pause   time.Duration
}

// NewProvider creates a new Fish Audio TTS provider.
func NewProvider(cfg config.FishAudioConfig, t *tracker.Tracker) *Provider {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return &Provider{
		apiKey:  cfg.Key,
		voiceID: cfg.VoiceID,
		modelID: cfg.Model,
		apiURL:  strings.TrimRight(base, "/") + "/v1/tts",
		client:  &http.Client{Timeout: 120 * time.Second},
		tracker: t,
		retries: 2,
		pause:   500 * time.Millisecond,
	}
}

// requestBody represents the JSON payload for Fish Audio TTS.
type requestBody struct {
	Text        string `json:"text"`
	ReferenceID string `json:"reference_id"`
	Format      string `json:"format"`
	Mp3Bitrate  int    `json:"mp3_bitrate,omitempty"`
	Latency     string `json:"latency,omitempty"`
}

// Synthesize generates speech from text using Fish Audio.
func (p *Provider) Synthesize(ctx context.Context, text, voiceID, outputPath string) (string, error) {
	vid := p.voiceID
	if voiceID != "" {
		vid = voiceID
	}
	if vid == "" {
		return "", fmt.Errorf("no voice ID configured for Fish Audio")
	}
	if p.apiKey == "" {
		return "", tts.NewFatalError(http.StatusUnauthorized, "Fish Audio API key is not configured")
	}

	jsonData, err := json.Marshal(requestBody{
		Text:        text,
		ReferenceID: vid,
		Format:      "mp3",
		Mp3Bitrate:  128,
		Latency:     "normal",
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	return p.executeWithRetry(ctx, jsonData, text, outputPath)
}

func (p *Provider) executeWithRetry(ctx context.Context, jsonData []byte, text, outputPath string) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= p.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(p.pause):
				tts.Log("FISH", fmt.Sprintf("Retrying request (attempt %d/%d)...", attempt+1, p.retries+1), 0, lastErr)
			}
		}

		ext, retry, err := p.executeAttempt(ctx, jsonData, text, outputPath)
		if err == nil {
			p.tracker.Success("fishaudio")
			p.tracker.Synthesized("fishaudio", len([]rune(text)))
			return ext, nil
		}
		if !retry {
			p.tracker.Failure("fishaudio", err)
			return "", err
		}
		lastErr = err
	}

	p.tracker.Failure("fishaudio", lastErr)
	return "", tts.NewFatalError(http.StatusInternalServerError, fmt.Sprintf("Fish Audio failed after %d attempts: %v", p.retries+1, lastErr))
}

func (p *Provider) executeAttempt(ctx context.Context, jsonData []byte, text, outputPath string) (ext string, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if p.modelID != "" {
		req.Header.Set("model", p.modelID)
	}

	logContent := fmt.Sprintf("MODEL: %s\nPAYLOAD:\n%s", p.modelID, text)

	resp, err := p.client.Do(req)
	if err != nil {
		tts.Log("FISH", logContent, 0, err)
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		return "", true, err // Retry on network error
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		tts.Log("FISH", logContent, resp.StatusCode, nil)

		// Client errors will not improve with a retry
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return "", false, tts.NewFatalError(resp.StatusCode, fmt.Sprintf("Fish Audio error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body))))
		}
		return "", true, fmt.Errorf("fish audio api error (status %d): %s", resp.StatusCode, string(body))
	}

	ext = "mp3"
	filename := tts.WithExt(outputPath, ext)
	f, err := os.Create(filename)
	if err != nil {
		resp.Body.Close()
		return "", false, fmt.Errorf("failed to create output file: %w", err)
	}

	written, err := io.Copy(f, resp.Body)
	resp.Body.Close()
	f.Close()

	if err != nil {
		tts.Log("FISH", logContent, 200, err)
		os.Remove(filename)
		return "", true, fmt.Errorf("failed to write audio to file: %w", err)
	}
	if written == 0 {
		tts.Log("FISH", "Received empty audio file (0 bytes)", 200, nil)
		os.Remove(filename)
		return "", true, fmt.Errorf("received empty audio from fish audio")
	}

	tts.Log("FISH", logContent, 200, nil)
	return ext, false, nil
}

// Voices returns the configured voice. Fish Audio hosts thousands of
// community voices, so no catalogue is fetched.
func (p *Provider) Voices(ctx context.Context) ([]tts.Voice, error) {
	return []tts.Voice{
		{
			ID:       p.voiceID,
			Name:     "Configured Fish Audio Voice",
			Language: "en-US",
			IsNeural: true,
		},
	}, nil
}
