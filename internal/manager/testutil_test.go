package manager

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"chatd/pkg/types"
)

// fakeEngine is a scriptable Engine for tests.
type fakeEngine struct {
	loads    int32
	updates  []types.LoadingProgress
	err      error
	release  chan struct{} // when set, Load blocks until closed
	handle   *fakeHandle
	noHandle bool
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Load(ctx context.Context, spec ModelSpec, report ProgressFunc) (Handle, error) {
	atomic.AddInt32(&e.loads, 1)
	for _, u := range e.updates {
		report(u)
	}
	if e.release != nil {
		select {
		case <-e.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if e.err != nil {
		return nil, e.err
	}
	if e.noHandle {
		return nil, nil
	}
	if e.handle == nil {
		e.handle = &fakeHandle{reply: "ok"}
	}
	return e.handle, nil
}

// fakeHandle records calls and the maximum observed concurrency.
type fakeHandle struct {
	mu      sync.Mutex
	reply   string
	fn      func([]types.Message) (string, error)
	err     error
	delay   time.Duration
	block   chan struct{}
	started chan struct{}
	calls   [][]types.Message
	params  []GenerateParams
	active  int32
	maxSeen int32
	closed  bool
}

func (h *fakeHandle) Generate(ctx context.Context, msgs []types.Message, params GenerateParams) (string, error) {
	n := atomic.AddInt32(&h.active, 1)
	defer atomic.AddInt32(&h.active, -1)
	for {
		m := atomic.LoadInt32(&h.maxSeen)
		if n <= m || atomic.CompareAndSwapInt32(&h.maxSeen, m, n) {
			break
		}
	}
	h.mu.Lock()
	h.calls = append(h.calls, append([]types.Message(nil), msgs...))
	h.params = append(h.params, params)
	h.mu.Unlock()
	if h.started != nil {
		h.started <- struct{}{}
	}
	if h.block != nil {
		select {
		case <-h.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if h.delay > 0 {
		time.Sleep(h.delay)
	}
	if h.fn != nil {
		return h.fn(msgs)
	}
	if h.err != nil {
		return "", h.err
	}
	if h.reply == "" {
		return "", nil
	}
	return h.reply + ":" + msgs[len(msgs)-1].Content, nil
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	return nil
}

func (h *fakeHandle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *fakeHandle) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

func userMsg(s string) []types.Message {
	return []types.Message{{Role: types.RoleUser, Content: s}}
}

// readyManager returns a Manager whose fake engine loaded successfully.
func readyManager(t *testing.T, h *fakeHandle, cfg ManagerConfig) *Manager {
	t.Helper()
	cfg.Engine = &fakeEngine{handle: h}
	m := NewWithConfig(cfg)
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return m
}
