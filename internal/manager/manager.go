package manager

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chatd/pkg/types"
)

// Manager is the lifecycle object for one shared model handle: it loads the
// model once, gates generation on readiness and serializes engine calls.
type Manager struct {
	mu       sync.RWMutex
	engine   Engine
	spec     ModelSpec
	handle   Handle
	progress types.LoadingProgress
	started  bool
	loading  bool
	closed   bool
	attempts int
	loadedAt time.Time

	subs    map[int]chan types.LoadingProgress
	nextSub int

	// Queueing primitives
	genCh      chan struct{} // size 1: single in-flight generation
	queueCh    chan struct{} // buffered: queue slots
	maxWait    time.Duration
	genTimeout time.Duration

	publisher EventPublisher
	log       zerolog.Logger
	startTime time.Time
}

// New constructs a Manager with package defaults.
func New(engine Engine, model ModelSpec) *Manager {
	return NewWithConfig(ManagerConfig{Engine: engine, Model: model})
}

// Ready reports whether the model finished loading. It is the single source
// of truth for "can a generation be submitted now".
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.readyLocked()
}

func (m *Manager) readyLocked() bool {
	return !m.closed && m.handle != nil && m.progress.Status == types.LoadReady
}

// IsLoading reports whether a load attempt is in progress.
func (m *Manager) IsLoading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

// Progress returns the current LoadingProgress.
func (m *Manager) Progress() types.LoadingProgress {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyProgress(m.progress)
}

// LoadAttempts returns how many times the engine was asked to acquire the model.
func (m *Manager) LoadAttempts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attempts
}

// SetEventPublisher installs a publisher; nil restores the no-op default.
func (m *Manager) SetEventPublisher(p EventPublisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p == nil {
		p = noopPublisher{}
	}
	m.publisher = p
}

func (m *Manager) publish(e Event) {
	m.mu.RLock()
	p := m.publisher
	m.mu.RUnlock()
	p.Publish(e)
}

// Close releases the engine handle and stops admitting generations. A running
// generation finishes first; a load still in progress has its handle released
// when it completes. Close is idempotent.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	h := m.handle
	m.handle = nil
	m.mu.Unlock()
	m.log.Debug().Bool("had_handle", h != nil).Msg("manager closed")
	if h == nil {
		return nil
	}
	// Take the in-flight slot so the handle is not freed under a running call.
	m.genCh <- struct{}{}
	defer func() { <-m.genCh }()
	return h.Close()
}
