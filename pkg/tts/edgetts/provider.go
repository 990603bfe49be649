package edgetts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"storymap/pkg/config"
	"storymap/pkg/tracker"
	"storymap/pkg/tts"
)

// Endpoint holds the connection parameters of the Edge read-aloud service.
type Endpoint struct {
	BaseURL            string
	Origin             string
	UserAgent          string
	TrustedClientToken string
	GecVersion         string
}

// EndpointFromEnv reads the EDGE_TTS_* variables.
func EndpointFromEnv() Endpoint {
	return Endpoint{
		BaseURL:            os.Getenv("EDGE_TTS_BASE_URL"),
		Origin:             os.Getenv("EDGE_TTS_ORIGIN"),
		UserAgent:          os.Getenv("EDGE_TTS_USER_AGENT"),
		TrustedClientToken: os.Getenv("EDGE_TTS_TRUSTED_CLIENT_TOKEN"),
		GecVersion:         os.Getenv("EDGE_TTS_SEC_MS_GEC_VERSION"),
	}
}

func (e Endpoint) validate() error {
	missing := []string{}
	if e.BaseURL == "" {
		missing = append(missing, "EDGE_TTS_BASE_URL")
	}
	if e.Origin == "" {
		missing = append(missing, "EDGE_TTS_ORIGIN")
	}
	if e.UserAgent == "" {
		missing = append(missing, "EDGE_TTS_USER_AGENT")
	}
	if e.TrustedClientToken == "" {
		missing = append(missing, "EDGE_TTS_TRUSTED_CLIENT_TOKEN")
	}
	if e.GecVersion == "" {
		missing = append(missing, "EDGE_TTS_SEC_MS_GEC_VERSION")
	}
	if len(missing) > 0 {
		return fmt.Errorf("edge tts not configured, missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// Provider implements tts.Provider for Microsoft Edge TTS.
type Provider struct {
	endpoint     Endpoint
	defaultVoice string
	tracker      *tracker.Tracker
	now          func() time.Time
}

// NewProvider creates a new Edge TTS provider.
func NewProvider(cfg config.EdgeTTSConfig, ep Endpoint, t *tracker.Tracker) *Provider {
	return &Provider{endpoint: ep, defaultVoice: cfg.VoiceID, tracker: t, now: time.Now}
}

// Synthesize generates an .mp3 file using Edge TTS.
func (p *Provider) Synthesize(ctx context.Context, text, voice, outputPath string) (string, error) {
	if voice == "" {
		voice = p.defaultVoice
	}
	if voice == "" {
		return "", fmt.Errorf("voice ID is required")
	}

	conn, err := p.dial(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	fullPath := tts.WithExt(outputPath, "mp3")
	file, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := p.sendConfig(conn); err != nil {
		return "", err
	}

	requestID := strings.ReplaceAll(uuid.New().String(), "-", "")
	if err := p.sendSSML(conn, voice, text, requestID); err != nil {
		return "", err
	}

	if err := p.consumeResponses(ctx, conn, file); err != nil {
		p.tracker.Failure("edge-tts", err)
		file.Close()
		os.Remove(fullPath)
		return "", err
	}

	p.tracker.Success("edge-tts")
	p.tracker.Synthesized("edge-tts", len([]rune(text)))
	return "mp3", nil
}

func (p *Provider) dial(ctx context.Context) (*websocket.Conn, error) {
	ep := p.endpoint
	if err := ep.validate(); err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Origin", ep.Origin)
	header.Set("Pragma", "no-cache")
	header.Set("Cache-Control", "no-cache")
	header.Set("User-Agent", ep.UserAgent)
	header.Set("Accept-Language", "en-US,en;q=0.9")

	muid := strings.ReplaceAll(uuid.New().String(), "-", "")
	header.Set("Cookie", fmt.Sprintf("muid=%s", muid))

	q := url.Values{}
	q.Set("TrustedClientToken", ep.TrustedClientToken)
	q.Set("Sec-MS-GEC", p.generateSecMSGec())
	q.Set("Sec-MS-GEC-Version", ep.GecVersion)
	u := ep.BaseURL + "?" + q.Encode()

	var dialErr error
	for i := 0; i < 3; i++ {
		conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u, header)
		if err == nil {
			return conn, nil
		}
		dialErr = err
		if resp != nil {
			slog.Warn("EdgeTTS: handshake failure", "status", resp.Status, "status_code", resp.StatusCode)
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				return nil, tts.NewFatalError(resp.StatusCode, fmt.Sprintf("edge tts handshake rejected: %s", resp.Status))
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return nil, fmt.Errorf("websocket dial failed after retries: %w", dialErr)
}

// generateSecMSGec derives the rolling token: Windows file-time ticks rounded
// down to five minutes, concatenated with the client token and hashed.
func (p *Provider) generateSecMSGec() string {
	ticks := p.now().Unix() + 11644473600
	ticks -= ticks % 300
	strToHash := fmt.Sprintf("%d%s", ticks*10_000_000, p.endpoint.TrustedClientToken)
	hash := sha256.Sum256([]byte(strToHash))
	return strings.ToUpper(hex.EncodeToString(hash[:]))
}

func (p *Provider) sendConfig(conn *websocket.Conn) error {
	configMsg := "Content-Type:application/json; charset=utf-8\r\nPath:speech.config\r\n\r\n{\"context\":{\"synthesis\":{\"audio\":{\"metadataoptions\":{\"sentenceBoundaryEnabled\":\"false\",\"wordBoundaryEnabled\":\"false\"},\"outputFormat\":\"audio-24khz-48kbitrate-mono-mp3\"}}}}"
	if err := conn.WriteMessage(websocket.TextMessage, []byte(configMsg)); err != nil {
		return fmt.Errorf("failed to send speech.config: %w", err)
	}
	return nil
}

func (p *Provider) sendSSML(conn *websocket.Conn, voice, text, requestID string) error {
	ssml := buildSSML(voice, text)
	tts.Log("EDGETTS", ssml, 0, nil)

	ssmlMsg := fmt.Sprintf("X-RequestId:%s\r\nContent-Type:application/ssml+xml\r\nPath:ssml\r\n\r\n%s", requestID, ssml)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(ssmlMsg)); err != nil {
		return fmt.Errorf("failed to send ssml: %w", err)
	}
	return nil
}

// voiceLocale extracts "de-DE" from "de-DE-SeraphinaNeural".
func voiceLocale(voice string) string {
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) < 3 {
		return "en-US"
	}
	return parts[0] + "-" + parts[1]
}

func buildSSML(voice, text string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&apos;",
	)
	escapedText := replacer.Replace(text)
	return fmt.Sprintf("<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='%s'><voice name='%s'>%s</voice></speak>",
		voiceLocale(voice), voice, escapedText)
}

func (p *Provider) consumeResponses(ctx context.Context, conn *websocket.Conn, file *os.File) error {
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(dl)
	}
	received := 0
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message failed: %w", err)
		}

		switch msgType {
		case websocket.TextMessage:
			if strings.Contains(string(data), "Path:turn.end") {
				if received == 0 {
					return fmt.Errorf("edge tts returned no audio")
				}
				return nil
			}
		case websocket.BinaryMessage:
			n, err := p.handleBinaryMessage(data, file)
			if err != nil {
				return err
			}
			received += n
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// handleBinaryMessage strips the 2-byte length-prefixed header and appends the audio.
func (p *Provider) handleBinaryMessage(data []byte, file *os.File) (int, error) {
	if len(data) < 2 {
		return 0, nil
	}
	headerLength := int(uint16(data[0])<<8 | uint16(data[1]))
	if len(data) < 2+headerLength {
		return 0, nil
	}
	audioData := data[2+headerLength:]
	if len(audioData) == 0 {
		return 0, nil
	}
	if _, err := file.Write(audioData); err != nil {
		return 0, fmt.Errorf("write audio data failed: %w", err)
	}
	return len(audioData), nil
}

// Voices returns a list of high-quality neural voices.
func (p *Provider) Voices(ctx context.Context) ([]tts.Voice, error) {
	return []tts.Voice{
		{ID: "en-US-AvaMultilingualNeural", Name: "Ava (Multilingual)", Language: "en-US", IsNeural: true},
		{ID: "en-US-AndrewMultilingualNeural", Name: "Andrew (Multilingual)", Language: "en-US", IsNeural: true},
		{ID: "en-GB-SoniaNeural", Name: "Sonia (UK)", Language: "en-GB", IsNeural: true},
		{ID: "fr-FR-VivienneNeural", Name: "Vivienne (France)", Language: "fr-FR", IsNeural: true},
		{ID: "de-DE-SeraphinaNeural", Name: "Seraphina (Germany)", Language: "de-DE", IsNeural: true},
		{ID: "es-ES-XimenaNeural", Name: "Ximena (Spain)", Language: "es-ES", IsNeural: true},
		{ID: "it-IT-IsabellaNeural", Name: "Isabella (Italy)", Language: "it-IT", IsNeural: true},
		{ID: "nl-NL-FennaNeural", Name: "Fenna (Netherlands)", Language: "nl-NL", IsNeural: true},
	}, nil
}
