package manager

import (
	"chatd/pkg/types"
)

// setProgress records a progress update. It returns false when the update was
// rejected because the load attempt already reached a terminal status.
func (m *Manager) setProgress(p types.LoadingProgress) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyProgressLocked(p)
}

// applyProgressLocked enforces monotonicity: nothing follows ready/error, and the
// percentage never goes backwards while the status is unchanged.
func (m *Manager) applyProgressLocked(p types.LoadingProgress) bool {
	cur := m.progress
	if cur.Status.Terminal() {
		return false
	}
	p = copyProgress(p)
	if p.Progress != nil {
		p.Progress = types.Percent(*p.Progress)
	}
	if !p.Status.Terminal() && cur.Progress != nil {
		switch {
		case p.Progress == nil && p.Status == cur.Status:
			p.Progress = types.Percent(*cur.Progress)
		case p.Progress != nil && *p.Progress < *cur.Progress:
			p.Progress = types.Percent(*cur.Progress)
		}
	}
	m.progress = p
	modelState.Set(stateValue(p.Status))
	m.broadcastLocked(p)
	return true
}

// Subscribe returns a channel that first yields the current progress and then
// every accepted update. The channel is closed after the terminal update, or
// when the returned cancel func is called. Slow readers lose intermediate
// updates, never the terminal one.
func (m *Manager) Subscribe() (<-chan types.LoadingProgress, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan types.LoadingProgress, subscriberBuffer)
	ch <- copyProgress(m.progress)
	if m.progress.Status.Terminal() {
		close(ch)
		return ch, func() {}
	}
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if c, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(c)
		}
	}
}

func (m *Manager) broadcastLocked(p types.LoadingProgress) {
	for id, ch := range m.subs {
		select {
		case ch <- copyProgress(p):
		default:
			// Drop the oldest pending update; only this goroutine sends.
			select {
			case <-ch:
			default:
			}
			ch <- copyProgress(p)
		}
		if p.Status.Terminal() {
			close(ch)
			delete(m.subs, id)
		}
	}
}

func copyProgress(p types.LoadingProgress) types.LoadingProgress {
	if p.Progress != nil {
		v := *p.Progress
		p.Progress = &v
	}
	return p
}
