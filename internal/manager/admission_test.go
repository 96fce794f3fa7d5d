package manager

import (
	"context"
	"sync"
	"testing"
	"time"
)

func waitQueued(t *testing.T, m *Manager, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for len(m.queueCh) < n {
		if time.Now().After(deadline) {
			t.Fatalf("queue never reached %d (at %d)", n, len(m.queueCh))
		}
		time.Sleep(time.Millisecond)
	}
}

func TestGenerate_SerializedFIFO(t *testing.T) {
	h := &fakeHandle{reply: "r", block: make(chan struct{}), started: make(chan struct{}, 8)}
	m := readyManager(t, h, ManagerConfig{MaxQueueDepth: 4, MaxWait: 5 * time.Second})

	var wg sync.WaitGroup
	results := make([]string, 3)
	for i, msg := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func(i int, msg string) {
			defer wg.Done()
			out, err := m.Generate(context.Background(), userMsg(msg), ClientParams())
			if err != nil {
				t.Errorf("generate %s: %v", msg, err)
			}
			results[i] = out
		}(i, msg)
		waitQueued(t, m, i+1)
	}
	<-h.started
	for i := 0; i < 3; i++ {
		h.block <- struct{}{}
	}
	wg.Wait()

	if h.maxSeen != 1 {
		t.Fatalf("engine saw %d concurrent calls", h.maxSeen)
	}
	order := ""
	for _, c := range h.calls {
		order += c[0].Content
	}
	if order != "abc" {
		t.Fatalf("calls ran out of order: %s", order)
	}
	if results[0] != "r:a" || results[1] != "r:b" || results[2] != "r:c" {
		t.Fatalf("replies mismatched: %v", results)
	}
	if s := m.Snapshot(); s.Queued != 0 || s.Inflight != 0 {
		t.Fatalf("slots leaked: %+v", s)
	}
}

func TestGenerate_QueueFullIsBusy(t *testing.T) {
	h := &fakeHandle{reply: "r", block: make(chan struct{}), started: make(chan struct{}, 1)}
	m := readyManager(t, h, ManagerConfig{MaxQueueDepth: 1, MaxWait: 30 * time.Millisecond})
	go func() { _, _ = m.Generate(context.Background(), userMsg("first"), ClientParams()) }()
	<-h.started
	_, err := m.Generate(context.Background(), userMsg("second"), ClientParams())
	if !IsTooBusy(err) {
		t.Fatalf("expected busy, got %v", err)
	}
	close(h.block)
	if h.callCount() != 1 {
		t.Fatalf("rejected request reached the engine")
	}
}

func TestGenerate_WaitTimeoutIsBusyAndReleasesQueueSlot(t *testing.T) {
	h := &fakeHandle{reply: "r", block: make(chan struct{}), started: make(chan struct{}, 1)}
	m := readyManager(t, h, ManagerConfig{MaxQueueDepth: 2, MaxWait: 30 * time.Millisecond})
	go func() { _, _ = m.Generate(context.Background(), userMsg("first"), ClientParams()) }()
	<-h.started
	if _, err := m.Generate(context.Background(), userMsg("second"), ClientParams()); !IsTooBusy(err) {
		t.Fatalf("expected busy, got %v", err)
	}
	if got := len(m.queueCh); got != 1 {
		t.Fatalf("queue slot leaked: %d", got)
	}
	close(h.block)
}

func TestBeginGeneration_CancelWhileWaitingForGen(t *testing.T) {
	m := readyManager(t, &fakeHandle{reply: "r"}, ManagerConfig{MaxQueueDepth: 2, MaxWait: time.Second})
	// Saturate genCh to force blocking on second phase
	m.genCh <- struct{}{}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	if _, err := m.beginGeneration(ctx); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	<-m.genCh
	if len(m.queueCh) != 0 {
		t.Fatalf("queue slot not released")
	}
}

func TestBeginGeneration_CancelBeforeQueue(t *testing.T) {
	m := readyManager(t, &fakeHandle{reply: "r"}, ManagerConfig{MaxQueueDepth: 1, MaxWait: time.Second})
	m.queueCh <- struct{}{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.beginGeneration(ctx); err == nil {
		t.Fatalf("expected error on canceled context")
	}
	<-m.queueCh
}
