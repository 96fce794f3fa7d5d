package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"chatd/internal/manager"
	"chatd/pkg/types"
)

func TestChat_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"generic", errors.New("engine exploded"), http.StatusInternalServerError, "Failed to generate response"},
		{"not ready", manager.ErrNotReady(types.LoadingProgress{Status: types.LoadError, Message: "Failed to load model: x"}), http.StatusServiceUnavailable, "Model not loaded yet"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := postChat(t, NewMux(&mockService{ready: true, err: tc.err}, Options{}), `{"message":"hi"}`)
			if w.Code != tc.status {
				t.Fatalf("status=%d", w.Code)
			}
			e := decodeError(t, w)
			if e.Error != tc.msg {
				t.Fatalf("error=%q", e.Error)
			}
			if tc.status == http.StatusInternalServerError && e.LoadingProgress != nil {
				t.Fatalf("500 must not carry progress")
			}
		})
	}
}

// blockingEngine loads instantly; its handle blocks until released.
type blockingEngine struct{ h *blockingHandle }

func (e *blockingEngine) Name() string { return "blocking" }
func (e *blockingEngine) Load(ctx context.Context, spec manager.ModelSpec, report manager.ProgressFunc) (manager.Handle, error) {
	return e.h, nil
}

type blockingHandle struct {
	mu      sync.Mutex
	active  int
	maxSeen int
	started chan struct{}
	release chan struct{}
}

func (h *blockingHandle) Generate(ctx context.Context, msgs []types.Message, p manager.GenerateParams) (string, error) {
	h.mu.Lock()
	h.active++
	if h.active > h.maxSeen {
		h.maxSeen = h.active
	}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		h.active--
		h.mu.Unlock()
	}()
	h.started <- struct{}{}
	<-h.release
	return "reply to " + msgs[0].Content, nil
}
func (h *blockingHandle) Close() error { return nil }

func TestChat_ConcurrentRequestIsBusyNotInterleaved(t *testing.T) {
	h := &blockingHandle{started: make(chan struct{}, 2), release: make(chan struct{})}
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Engine:        &blockingEngine{h: h},
		MaxQueueDepth: 1,
		MaxWait:       20 * time.Millisecond,
	})
	if err := mgr.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	mux := NewMux(mgr, Options{RetryAfter: 2 * time.Second})

	first := make(chan int, 1)
	go func() { first <- postChat(t, mux, `{"message":"one"}`).Code }()
	<-h.started

	w := postChat(t, mux, `{"message":"two"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status=%d body=%s", w.Code, w.Body.String())
	}
	if w.Header().Get("Retry-After") != "2" {
		t.Fatalf("Retry-After=%q", w.Header().Get("Retry-After"))
	}
	if decodeError(t, w).Error != "Model is busy, retry later" {
		t.Fatalf("body=%s", w.Body.String())
	}
	close(h.release)
	if code := <-first; code != http.StatusOK {
		t.Fatalf("first request status=%d", code)
	}
	if h.maxSeen != 1 {
		t.Fatalf("engine saw %d concurrent calls", h.maxSeen)
	}
}

func TestChat_ConcurrentRequestQueuesAndSucceeds(t *testing.T) {
	h := &blockingHandle{started: make(chan struct{}, 2), release: make(chan struct{})}
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Engine:        &blockingEngine{h: h},
		MaxQueueDepth: 4,
		MaxWait:       5 * time.Second,
	})
	if err := mgr.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	mux := NewMux(mgr, Options{})
	codes := make(chan int, 2)
	go func() { codes <- postChat(t, mux, `{"message":"one"}`).Code }()
	<-h.started
	go func() { codes <- postChat(t, mux, `{"message":"two"}`).Code }()
	for mgr.Snapshot().Queued < 2 {
		time.Sleep(time.Millisecond)
	}
	close(h.release)
	for i := 0; i < 2; i++ {
		if c := <-codes; c != http.StatusOK {
			t.Fatalf("status=%d", c)
		}
	}
	if h.maxSeen != 1 {
		t.Fatalf("engine saw %d concurrent calls", h.maxSeen)
	}
}

func TestChat_ClientDisconnectWritesNothing(t *testing.T) {
	svc := &mockService{ready: true, err: context.Canceled}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := newChatRequest(`{"message":"hi"}`).WithContext(ctx)
	w := newRecorder()
	NewMux(svc, Options{}).ServeHTTP(w, req)
	if w.Body.Len() != 0 {
		t.Fatalf("unexpected body after disconnect: %s", w.Body.String())
	}
}

func TestReadyz_ReportsQueueAndClosedManager(t *testing.T) {
	h := &blockingHandle{started: make(chan struct{}, 1), release: make(chan struct{})}
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Engine:        &blockingEngine{h: h},
		MaxQueueDepth: 4,
		MaxWait:       5 * time.Second,
	})
	if err := mgr.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	mux := NewMux(mgr, Options{})
	done := make(chan int, 1)
	go func() { done <- postChat(t, mux, `{"message":"one"}`).Code }()
	<-h.started

	w := newRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK || w.Header().Get("X-Queue-Depth") != "1" || w.Header().Get("X-Inflight") != "1" {
		t.Fatalf("readyz busy: %d %v", w.Code, w.Header())
	}
	close(h.release)
	if c := <-done; c != http.StatusOK {
		t.Fatalf("status=%d", c)
	}

	if err := mgr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	w = newRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable || w.Body.String() != "closed" || w.Header().Get("X-Inflight") != "0" {
		t.Fatalf("readyz after close: %d %q %v", w.Code, w.Body.String(), w.Header())
	}
	if w := postChat(t, mux, `{"message":"late"}`); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("chat after close: %d", w.Code)
	}
}
