package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"chatd/internal/httpapi"
	"chatd/internal/manager"
	"chatd/pkg/types"
)

// fakeLlama imitates a llama.cpp server: /health answers 503 until ready,
// completions answer with reply after gate (if set) is released.
type fakeLlama struct {
	ready   atomic.Bool
	health  atomic.Int32 // status override when non-zero
	reply   string
	gate    chan struct{}
	active  atomic.Int32
	maxSeen atomic.Int32
	calls   atomic.Int32
	srv     *httptest.Server
}

func newFakeLlama(t *testing.T, reply string) *fakeLlama {
	t.Helper()
	f := &fakeLlama{reply: reply}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeLlama) serve(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/health":
		if code := f.health.Load(); code != 0 {
			w.WriteHeader(int(code))
			return
		}
		if !f.ready.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	case "/v1/chat/completions":
		f.calls.Add(1)
		n := f.active.Add(1)
		defer f.active.Add(-1)
		for {
			m := f.maxSeen.Load()
			if n <= m || f.maxSeen.CompareAndSwap(m, n) {
				break
			}
		}
		if f.gate != nil {
			select {
			case <-f.gate:
			case <-r.Context().Done():
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": f.reply}}},
		})
	default:
		http.NotFound(w, r)
	}
}

// newStack wires a manager around a llama-server engine pointing at f and
// serves the HTTP API. Load runs in the background.
func newStack(t *testing.T, f *fakeLlama, depth int, wait time.Duration) (*httptest.Server, *manager.Manager) {
	t.Helper()
	engine := manager.NewLlamaServerEngine(manager.LlamaServerConfig{
		BaseURL:      f.srv.URL,
		ReadyTimeout: 10 * time.Second,
		PollInterval: 10 * time.Millisecond,
	})
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Engine:        engine,
		Model:         manager.ModelSpec{ID: "test-model"},
		MaxQueueDepth: depth,
		MaxWait:       wait,
	})
	srv := httptest.NewServer(httpapi.NewMux(mgr, httpapi.Options{}))
	t.Cleanup(srv.Close)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = mgr.Load(ctx) }()
	return srv, mgr
}

func postChat(t *testing.T, base, message string) (int, map[string]any) {
	t.Helper()
	body, _ := json.Marshal(types.ChatRequest{Message: message})
	resp, err := http.Post(base+"/api/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Errorf("post: %v", err)
		return 0, nil
	}
	defer resp.Body.Close()
	return resp.StatusCode, decodeBody(t, resp.Body)
}

func getStatus(t *testing.T, base string) types.StatusResponse {
	t.Helper()
	resp, err := http.Get(base + "/api/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer resp.Body.Close()
	var st types.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	return st
}

func decodeBody(t *testing.T, r io.Reader) map[string]any {
	t.Helper()
	var m map[string]any
	b, _ := io.ReadAll(r)
	if err := json.Unmarshal(b, &m); err != nil {
		t.Errorf("decode %q: %v", strings.TrimSpace(string(b)), err)
	}
	return m
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
