// Package elevenlabs implements tts.Provider on the ElevenLabs REST API.
package elevenlabs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"storymap/pkg/config"
	"storymap/pkg/request"
	"storymap/pkg/tts"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	defaultModel   = "eleven_multilingual_v2"
	outputFormat   = "mp3_44100_128"
)

// Poster is the subset of request.Client used by the provider.
type Poster interface {
	PostWithHeaders(ctx context.Context, u string, body []byte, headers map[string]string) ([]byte, error)
	GetWithHeaders(ctx context.Context, u string, headers map[string]string, cacheKey string) ([]byte, error)
}

// Provider implements tts.Provider for ElevenLabs.
type Provider struct {
	client  Poster
	apiKey  string
	voiceID string
	modelID string
	baseURL string
}

// NewProvider creates a new ElevenLabs provider.
func NewProvider(cfg config.ElevenLabsConfig, client Poster) *Provider {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &Provider{
		client:  client,
		apiKey:  cfg.Key,
		voiceID: cfg.VoiceID,
		modelID: model,
		baseURL: strings.TrimRight(base, "/"),
	}
}

type synthesisRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize converts text with the given voice (or the configured default).
func (p *Provider) Synthesize(ctx context.Context, text, voiceID, outputPath string) (string, error) {
	vid := voiceID
	if vid == "" {
		vid = p.voiceID
	}
	if vid == "" {
		return "", fmt.Errorf("no voice ID configured for ElevenLabs")
	}
	if p.apiKey == "" {
		return "", tts.NewFatalError(401, "ElevenLabs API key is not configured")
	}

	body, err := json.Marshal(synthesisRequest{Text: text, ModelID: p.modelID})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	u := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s", p.baseURL, url.PathEscape(vid), outputFormat)
	audio, err := p.client.PostWithHeaders(ctx, u, body, map[string]string{
		"xi-api-key":   p.apiKey,
		"Content-Type": "application/json",
		"Accept":       "audio/mpeg",
	})
	if err != nil {
		tts.Log("ELEVENLABS", text, request.StatusCode(err), err)
		return "", classify(err)
	}
	if len(audio) == 0 {
		tts.Log("ELEVENLABS", "Received empty audio (0 bytes)", 200, nil)
		return "", fmt.Errorf("received empty audio from elevenlabs")
	}

	path := tts.WithExt(outputPath, "mp3")
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return "", fmt.Errorf("failed to write audio to file: %w", err)
	}
	tts.Log("ELEVENLABS", text, 200, nil)
	return "mp3", nil
}

// classify turns HTTP failures into FatalErrors carrying the API's detail message.
func classify(err error) error {
	var se *request.StatusError
	if !errors.As(err, &se) {
		return err
	}
	msg := se.Body
	var detail struct {
		Detail struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"detail"`
	}
	if json.Unmarshal([]byte(se.Body), &detail) == nil && detail.Detail.Message != "" {
		msg = detail.Detail.Status + ": " + detail.Detail.Message
	}
	return tts.NewFatalError(se.StatusCode, fmt.Sprintf("ElevenLabs error (status %d): %s", se.StatusCode, msg))
}

type voicesResponse struct {
	Voices []struct {
		VoiceID string            `json:"voice_id"`
		Name    string            `json:"name"`
		Labels  map[string]string `json:"labels"`
	} `json:"voices"`
}

// Voices lists the voices available to the account.
func (p *Provider) Voices(ctx context.Context) ([]tts.Voice, error) {
	if p.apiKey == "" {
		return nil, tts.NewFatalError(401, "ElevenLabs API key is not configured")
	}
	body, err := p.client.GetWithHeaders(ctx, p.baseURL+"/v1/voices", map[string]string{"xi-api-key": p.apiKey}, "")
	if err != nil {
		return nil, classify(err)
	}
	var resp voicesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode voices: %w", err)
	}
	out := make([]tts.Voice, 0, len(resp.Voices))
	for _, v := range resp.Voices {
		out = append(out, tts.Voice{ID: v.VoiceID, Name: v.Name, Language: v.Labels["language"], IsNeural: true})
	}
	return out, nil
}
