// Package speech reads replies out loud through a text-to-speech API.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Synthesizer turns text into audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// ElevenLabs defaults.
const (
	DefaultBaseURL         = "https://api.elevenlabs.io"
	DefaultVoiceID         = "21m00Tcm4TlvDq8ikWAM"
	DefaultModelID         = "eleven_multilingual_v2"
	DefaultStability       = 0.5
	DefaultSimilarityBoost = 0.75
)

// ElevenLabs is a Synthesizer backed by the ElevenLabs streaming endpoint.
type ElevenLabs struct {
	APIKey          string
	BaseURL         string
	VoiceID         string
	ModelID         string
	Stability       float64
	SimilarityBoost float64
	Client          *http.Client
}

// NewElevenLabs returns a client with default voice and settings.
func NewElevenLabs(apiKey string) *ElevenLabs {
	return &ElevenLabs{
		APIKey:          apiKey,
		BaseURL:         DefaultBaseURL,
		VoiceID:         DefaultVoiceID,
		ModelID:         DefaultModelID,
		Stability:       DefaultStability,
		SimilarityBoost: DefaultSimilarityBoost,
	}
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Synthesize requests MPEG audio for text.
func (e *ElevenLabs) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if e.APIKey == "" {
		return nil, errors.New("elevenlabs api key is not set")
	}
	base := strings.TrimRight(e.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	voice := e.VoiceID
	if voice == "" {
		voice = DefaultVoiceID
	}
	model := e.ModelID
	if model == "" {
		model = DefaultModelID
	}
	body, err := json.Marshal(ttsRequest{
		Text:          text,
		ModelID:       model,
		VoiceSettings: voiceSettings{Stability: e.Stability, SimilarityBoost: e.SimilarityBoost},
	})
	if err != nil {
		return nil, err
	}
	u := base + "/v1/text-to-speech/" + url.PathEscape(voice) + "/stream"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", e.APIKey)
	cli := e.Client
	if cli == nil {
		cli = http.DefaultClient
	}
	resp, err := cli.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apiError(resp)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	return audio, nil
}

// apiError extracts detail.message from an error body. detail may also be a
// plain string.
func apiError(resp *http.Response) error {
	fallback := fmt.Errorf("API request failed with status %d", resp.StatusCode)
	b, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fallback
	}
	var env struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(b, &env) != nil || len(env.Detail) == 0 {
		return fallback
	}
	var obj struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(env.Detail, &obj) == nil && obj.Message != "" {
		return errors.New(obj.Message)
	}
	var s string
	if json.Unmarshal(env.Detail, &s) == nil && s != "" {
		return errors.New(s)
	}
	return fallback
}
