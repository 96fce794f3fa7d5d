package manager

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"chatd/pkg/types"
)

// LlamaServerConfig configures the llama.cpp server engine.
type LlamaServerConfig struct {
	BaseURL string
	APIKey  string
	// ReadyTimeout bounds how long Load waits for /health to report ready.
	ReadyTimeout time.Duration
	PollInterval time.Duration
	// RequestTimeout bounds one completion request; zero means none.
	RequestTimeout time.Duration
	ConnectTimeout time.Duration
	Logger         zerolog.Logger
}

// llamaServerEngine talks to a running llama.cpp server over its
// OpenAI-compatible HTTP API.
type llamaServerEngine struct {
	cfg        LlamaServerConfig
	baseURL    string
	httpClient *http.Client
}

// NewLlamaServerEngine constructs a server-backed engine.
func NewLlamaServerEngine(cfg LlamaServerConfig) Engine {
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 10 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	// Timeout=0: every request carries a context deadline instead.
	return &llamaServerEngine{
		cfg:        cfg,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Transport: tr, Timeout: 0},
	}
}

func (e *llamaServerEngine) Name() string { return "llama-server" }

// Load waits until the server answers /health with 200. A 503 means the
// server is still loading its model; connection errors mean it is not up yet.
func (e *llamaServerEngine) Load(ctx context.Context, spec ModelSpec, report ProgressFunc) (Handle, error) {
	if e.baseURL == "" {
		return nil, errors.New("llama server url is empty")
	}
	if report == nil {
		report = func(types.LoadingProgress) {}
	}
	ctx, cancel := context.WithTimeout(ctx, e.cfg.ReadyTimeout)
	defer cancel()

	report(types.LoadingProgress{Status: types.LoadDownloading, Progress: types.Percent(10), Message: "Connecting to " + e.baseURL + "..."})
	t := time.NewTicker(e.cfg.PollInterval)
	defer t.Stop()
	var lastErr error
	for {
		status, err := e.health(ctx)
		switch {
		case err == nil && status == http.StatusOK:
			return &llamaServerHandle{engine: e, model: spec.ID}, nil
		case err == nil && status == http.StatusServiceUnavailable:
			lastErr = errors.New("server is loading the model")
			report(types.LoadingProgress{Status: types.LoadDownloading, Progress: types.Percent(30), Message: loadingModelMessage})
		case err == nil:
			return nil, fmt.Errorf("llama server health check returned %d", status)
		default:
			lastErr = err
			e.cfg.Logger.Debug().Err(err).Str("url", e.baseURL).Msg("llama server not reachable yet")
		}
		select {
		case <-ctx.Done():
			if lastErr == nil {
				lastErr = ctx.Err()
			}
			return nil, fmt.Errorf("llama server not ready after %s: %w", e.cfg.ReadyTimeout, lastErr)
		case <-t.C:
		}
	}
}

func (e *llamaServerEngine) health(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/health", nil)
	if err != nil {
		return 0, err
	}
	e.authorize(req)
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
	return resp.StatusCode, nil
}

func (e *llamaServerEngine) authorize(req *http.Request) {
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}
}

// llamaServerHandle is stateless; the server owns the model.
type llamaServerHandle struct {
	engine *llamaServerEngine
	model  string
}

// chatCompletionRequest is the payload for /v1/chat/completions.
type chatCompletionRequest struct {
	Model       string          `json:"model,omitempty"`
	Messages    []types.Message `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float32         `json:"temperature,omitempty"`
	TopP        float32         `json:"top_p,omitempty"`
	Stream      bool            `json:"stream"`
}

// chatCompletionChunk is the subset of streaming and non-streaming responses we read.
type chatCompletionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (h *llamaServerHandle) Generate(ctx context.Context, msgs []types.Message, params GenerateParams) (string, error) {
	e := h.engine
	// Apply request timeout via context, if configured
	if e.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.RequestTimeout)
		defer cancel()
	}
	payload := chatCompletionRequest{
		Model:     h.model,
		Messages:  msgs,
		MaxTokens: params.MaxNewTokens,
		Stream:    true,
	}
	if params.DoSample {
		payload.Temperature = params.Temperature
		payload.TopP = params.TopP
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	e.authorize(req)
	resp, err := e.httpClient.Do(req)
	if err != nil {
		// Translate context timeouts/cancels
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", errors.New("llama server http error: " + resp.Status + ": " + strings.TrimSpace(string(b)))
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		var out chatCompletionChunk
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", fmt.Errorf("decode completion: %w", err)
		}
		if len(out.Choices) == 0 {
			return "", errors.New("llama server returned no choices")
		}
		return out.Choices[0].Message.Content, nil
	}
	return e.readStream(ctx, resp.Body)
}

// readStream concatenates delta contents of an SSE stream until [DONE] or EOF.
func (e *llamaServerEngine) readStream(ctx context.Context, body io.Reader) (string, error) {
	var out strings.Builder
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || !strings.HasPrefix(strings.ToLower(line), "data:") {
			// skip heartbeats, comments and event names
			continue
		}
		data := strings.TrimSpace(line[len("data:"):])
		if data == "[DONE]" {
			break
		}
		var chunk chatCompletionChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil || len(chunk.Choices) == 0 {
			e.cfg.Logger.Debug().Str("line", line).Msg("unknown stream line")
			continue
		}
		out.WriteString(chunk.Choices[0].Delta.Content)
		if chunk.Choices[0].FinishReason != "" {
			break
		}
	}
	if err := sc.Err(); err != nil {
		// Respect context errors
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("read stream: %w", err)
	}
	return out.String(), nil
}

func (h *llamaServerHandle) Close() error { return nil }
