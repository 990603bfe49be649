// Package gemini implements tts.Provider on Gemini's native speech generation.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"google.golang.org/api/iterator"
	"google.golang.org/genai"

	"storymap/pkg/config"
	"storymap/pkg/tracker"
	"storymap/pkg/tts"
)

const (
	defaultModel = "gemini-2.5-flash-preview-tts"
	defaultVoice = "Kore"
)

// generateFunc returns raw 16-bit little-endian mono PCM for text.
type generateFunc func(ctx context.Context, model, voice, text string) ([]byte, error)

// Provider implements tts.Provider for Gemini.
type Provider struct {
	apiKey  string
	model   string
	voice   string
	tracker *tracker.Tracker

	mu       sync.Mutex
	client   *genai.Client
	generate generateFunc
}

// NewProvider creates a Gemini TTS provider. The genai client is created lazily.
func NewProvider(cfg config.GeminiTTSConfig, t *tracker.Tracker) *Provider {
	p := &Provider{
		apiKey:  cfg.Key,
		model:   cfg.Model,
		voice:   cfg.Voice,
		tracker: t,
	}
	if p.model == "" {
		p.model = defaultModel
	}
	if p.voice == "" {
		p.voice = defaultVoice
	}
	p.generate = p.generateContent
	return p
}

func (p *Provider) genaiClient(ctx context.Context) (*genai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	if p.apiKey == "" {
		return nil, tts.NewFatalError(401, "Gemini API key is not configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	p.client = client
	return client, nil
}

func (p *Provider) generateContent(ctx context.Context, model, voice, text string) ([]byte, error) {
	client, err := p.genaiClient(ctx)
	if err != nil {
		return nil, err
	}
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	}
	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(text), cfg)
	if err != nil {
		return nil, classify(err)
	}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, nil
			}
		}
	}
	return nil, fmt.Errorf("gemini returned no audio")
}

// classify maps API errors onto FatalError so status-based checks apply.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return tts.NewFatalError(apiErr.Code, fmt.Sprintf("Gemini error (status %d): %s", apiErr.Code, apiErr.Message))
	}
	return err
}

// Synthesize writes a 24 kHz mono WAV file.
func (p *Provider) Synthesize(ctx context.Context, text, voice, outputPath string) (string, error) {
	if v, ok := VoiceByID(voice); ok {
		voice = v.Name
	} else {
		voice = p.voice
	}
	pcm, err := p.generate(ctx, p.model, voice, text)
	if err != nil {
		tts.Log("GEMINI", text, 0, err)
		p.tracker.Failure("gemini", err)
		return "", err
	}

	path := tts.WithExt(outputPath, "wav")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	if err := WritePCMAsWAV(f, pcm); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	tts.Log("GEMINI", text, 200, nil)
	p.tracker.Success("gemini")
	p.tracker.Synthesized("gemini", len([]rune(text)))
	return "wav", nil
}

// Voices returns the prebuilt voices.
func (p *Provider) Voices(ctx context.Context) ([]tts.Voice, error) {
	out := make([]tts.Voice, 0, len(Voices))
	for _, v := range Voices {
		out = append(out, tts.Voice{ID: v.Name, Name: v.Name + " (" + v.Style + ")", Language: "multi", IsNeural: true})
	}
	return out, nil
}

// ValidateModel checks that the configured model exists and logs the
// available speech models when it does not.
func (p *Provider) ValidateModel(ctx context.Context) error {
	client, err := p.genaiClient(ctx)
	if err != nil {
		return err
	}
	_, err = client.Models.Get(ctx, p.model, nil)
	if err == nil {
		return nil
	}
	slog.Warn("Gemini TTS model validation failed, fetching available models...", "model", p.model, "error", err)

	iter, err := client.Models.List(ctx, nil)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	var available []string
	for {
		page, nextErr := iter.Next(ctx)
		if nextErr == iterator.Done {
			break
		}
		if nextErr != nil {
			slog.Debug("Gemini model listing stopped", "error", nextErr)
			break
		}
		if strings.Contains(strings.ToLower(page.Name), "tts") {
			available = append(available, page.Name)
		}
	}
	slog.Error("Configured Gemini TTS model not found", "configured", p.model, "available", available)
	return fmt.Errorf("gemini model %q not available", p.model)
}
