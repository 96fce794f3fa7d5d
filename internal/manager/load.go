package manager

import (
	"context"
	"time"

	"chatd/pkg/types"
)

// Load acquires the model through the configured engine. It runs at most once
// per Manager: if a load is already in progress or complete, Load returns nil
// immediately without touching the engine. The returned error describes the
// caller's own attempt; failures are also recorded in Progress as the terminal
// "error" status and are never retried automatically.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.loading = true
	m.attempts++
	m.mu.Unlock()

	startTs := time.Now()
	loadAttemptsTotal.Inc()
	m.log.Info().Str("engine", m.engineName()).Str("model", m.spec.ID).Msg("model load start")
	m.publish(Event{Name: "load_start", Fields: map[string]any{"model": m.spec.ID}})

	var (
		h   Handle
		err error
	)
	if m.engine == nil {
		err = ErrDependencyUnavailable("no inference engine configured")
	} else {
		h, err = m.engine.Load(ctx, m.spec, m.engineProgress)
	}
	if err == nil && h == nil {
		err = ErrDependencyUnavailable(m.engineName() + " returned no model handle")
	}
	if err != nil {
		m.finish(nil, types.LoadingProgress{
			Status:   types.LoadError,
			Progress: types.Percent(0),
			Message:  "Failed to load model: " + err.Error(),
		})
		m.log.Error().Err(err).Str("model", m.spec.ID).Dur("dur", time.Since(startTs)).Msg("model load failed")
		m.publish(Event{Name: "load_error", Fields: map[string]any{"error": err.Error()}})
		return loadFailure{err: err}
	}

	m.finish(h, types.LoadingProgress{
		Status:   types.LoadReady,
		Progress: types.Percent(100),
		Message:  "Model loaded successfully!",
	})
	m.log.Info().Str("model", m.spec.ID).Dur("dur", time.Since(startTs)).Msg("model load ready")
	m.publish(Event{Name: "load_ready", Fields: map[string]any{"dur_ms": int(time.Since(startTs) / time.Millisecond)}})
	return nil
}

// engineProgress forwards non-terminal engine updates.
func (m *Manager) engineProgress(p types.LoadingProgress) {
	if p.Status.Terminal() {
		m.log.Debug().Str("status", string(p.Status)).Msg("ignoring terminal progress from engine")
		return
	}
	if m.setProgress(p) {
		m.log.Debug().Str("status", string(p.Status)).Str("message", p.Message).Msg("model load progress")
	}
}

// finish commits the handle and the terminal progress under one lock so that
// Ready never observes one without the other. A handle arriving after Close is
// released instead of committed.
func (m *Manager) finish(h Handle, p types.LoadingProgress) {
	m.mu.Lock()
	late := m.closed && h != nil
	if late {
		p = types.LoadingProgress{Status: types.LoadError, Progress: types.Percent(0), Message: "Model closed before loading finished"}
	} else {
		m.handle = h
		if h != nil {
			m.loadedAt = time.Now()
		}
	}
	m.loading = false
	m.applyProgressLocked(p)
	m.mu.Unlock()
	if late {
		if err := h.Close(); err != nil {
			m.log.Warn().Err(err).Msg("closing late model handle")
		}
	}
}

func (m *Manager) engineName() string {
	if m.engine == nil {
		return "none"
	}
	return m.engine.Name()
}
