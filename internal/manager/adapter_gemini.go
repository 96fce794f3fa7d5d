package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"chatd/pkg/types"
)

// GeminiConfig configures the Google Gemini engine.
type GeminiConfig struct {
	APIKey string
	// Model overrides ModelSpec.ID, which usually names a hub repository.
	Model  string
	Logger zerolog.Logger
	// ClientOptions are appended to the API key option; tests point the
	// client at a fake endpoint with them.
	ClientOptions []option.ClientOption
}

type geminiEngine struct {
	cfg GeminiConfig
}

// NewGeminiEngine returns an engine backed by the Gemini API.
func NewGeminiEngine(cfg GeminiConfig) Engine { return &geminiEngine{cfg: cfg} }

func (e *geminiEngine) Name() string { return "gemini" }

// Load creates the client and checks that the model exists.
func (e *geminiEngine) Load(ctx context.Context, spec ModelSpec, report ProgressFunc) (Handle, error) {
	if strings.TrimSpace(e.cfg.APIKey) == "" {
		return nil, errors.New("gemini api key is not set")
	}
	name := e.cfg.Model
	if name == "" {
		name = spec.ID
	}
	if report != nil {
		report(types.LoadingProgress{Status: types.LoadDownloading, Progress: types.Percent(30), Message: "Connecting to Gemini (" + name + ")..."})
	}
	opts := append([]option.ClientOption{option.WithAPIKey(e.cfg.APIKey)}, e.cfg.ClientOptions...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	info, err := client.GenerativeModel(name).Info(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("gemini model %s: %w", name, err)
	}
	e.cfg.Logger.Info().Str("model", info.Name).Int32("input_token_limit", info.InputTokenLimit).Msg("gemini model available")
	return &geminiHandle{client: client, model: name}, nil
}

type geminiHandle struct {
	client *genai.Client
	model  string
}

// Generate replays the history as a chat session and sends the last user message.
func (h *geminiHandle) Generate(ctx context.Context, msgs []types.Message, params GenerateParams) (string, error) {
	system, history, last, err := toGeminiHistory(msgs)
	if err != nil {
		return "", err
	}
	m := h.client.GenerativeModel(h.model)
	m.SetMaxOutputTokens(int32(params.MaxNewTokens))
	if params.DoSample {
		m.SetTemperature(params.Temperature)
		m.SetTopP(params.TopP)
	}
	if system != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	cs := m.StartChat()
	cs.History = history
	resp, err := cs.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}
	return extractGeminiText(resp), nil
}

func (h *geminiHandle) Close() error { return h.client.Close() }

// toGeminiHistory splits messages into a system instruction, prior turns and
// the final user prompt. Gemini names the assistant role "model".
func toGeminiHistory(msgs []types.Message) (string, []*genai.Content, string, error) {
	var system []string
	var turns []types.Message
	for _, m := range msgs {
		if m.Role == types.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	if len(turns) == 0 || turns[len(turns)-1].Role != types.RoleUser {
		return "", nil, "", errors.New("conversation must end with a user message")
	}
	history := make([]*genai.Content, 0, len(turns)-1)
	for _, m := range turns[:len(turns)-1] {
		role := "user"
		if m.Role == types.RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return strings.Join(system, "\n"), history, turns[len(turns)-1].Content, nil
}

func extractGeminiText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	if resp == nil {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		break
	}
	return b.String()
}
