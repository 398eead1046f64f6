// Package voice synthesizes speech through the ElevenLabs API.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/nugget/localagent/internal/config"
	"github.com/nugget/localagent/internal/httpkit"
)

// DefaultLanguage is used when a request names a language with no
// configured voice.
const DefaultLanguage = "en"

// ModelID is the ElevenLabs model requested for every synthesis. The
// multilingual model handles both English and Arabic voices.
const ModelID = "eleven_multilingual_v2"

// maxAudioBytes caps a single synthesized clip.
const maxAudioBytes = 20 << 20

// ErrDisabled is returned when no API key is configured.
var ErrDisabled = errors.New("speech synthesis is not configured")

// Language is a supported synthesis language.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var languageNames = map[string]string{
	"en": "English",
	"ar": "Arabic",
}

// Client talks to ElevenLabs text-to-speech.
type Client struct {
	apiKey     string
	baseURL    string
	voices     map[string]string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client from cfg. A client without an API key is
// valid but reports Enabled() == false.
func NewClient(cfg config.VoiceConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	voices := make(map[string]string, len(cfg.Voices))
	for lang, id := range cfg.Voices {
		voices[strings.ToLower(lang)] = id
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		voices:     voices,
		httpClient: httpkit.NewClient(httpkit.WithTimeout(60*time.Second), httpkit.WithLogger(logger)),
		logger:     logger,
	}
}

// Enabled reports whether synthesis is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// VoiceFor returns the voice ID for language, falling back to the
// English voice.
func (c *Client) VoiceFor(language string) string {
	if id, ok := c.voices[strings.ToLower(language)]; ok {
		return id
	}
	return c.voices[DefaultLanguage]
}

// Languages lists the languages with a configured voice.
func (c *Client) Languages() []Language {
	out := make([]Language, 0, len(c.voices))
	for code := range c.voices {
		name := languageNames[code]
		if name == "" {
			name = code
		}
		out = append(out, Language{Code: code, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

type synthesisRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize renders text as MPEG audio. voiceID overrides the voice
// chosen for language when non-empty.
func (c *Client) Synthesize(ctx context.Context, text, language, voiceID string) ([]byte, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text is required")
	}
	if voiceID == "" {
		voiceID = c.VoiceFor(language)
	}
	if voiceID == "" {
		return nil, fmt.Errorf("no voice configured for language %q", language)
	}

	payload, err := json.Marshal(synthesisRequest{Text: text, ModelID: ModelID})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := c.baseURL + "/v1/text-to-speech/" + url.PathEscape(voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs returned %d: %s", resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 1024))
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	c.logger.Debug("speech synthesized",
		"voice", voiceID,
		"language", language,
		"chars", len(text),
		"bytes", len(audio),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return audio, nil
}
