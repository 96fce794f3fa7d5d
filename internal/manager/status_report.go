package manager

import (
	"chatd/pkg/types"
)

// Snapshot returns a read-only view of the manager state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		Progress: copyProgress(m.progress),
		Loading:  m.loading,
		Attempts: m.attempts,
		Closed:   m.closed,
		LoadedAt: m.loadedAt,
		Queued:   len(m.queueCh),
		Inflight: len(m.genCh),
	}
}

// Status builds the response for GET /api/status.
func (m *Manager) Status() types.StatusResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return types.StatusResponse{
		Status:          "running",
		ModelLoaded:     m.readyLocked(),
		IsLoading:       m.loading,
		LoadingProgress: copyProgress(m.progress),
	}
}
