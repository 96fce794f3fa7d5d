package manager

import (
	"context"
	"time"
)

// beginGeneration reserves a queue slot and then the single in-flight slot.
// Blocked senders on a channel are served in arrival order, which makes the
// queue FIFO. Returns a release func to be deferred.
func (m *Manager) beginGeneration(ctx context.Context) (func(), error) {
	// Try to reserve a queue slot with timeout
	qt := time.NewTimer(m.maxWait)
	defer qt.Stop()
	select {
	case m.queueCh <- struct{}{}:
		// reserved queue slot
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-qt.C:
		backpressureTotal.WithLabelValues("queue_full").Inc()
		return func() {}, tooBusyError{reason: "queue full"}
	}
	queueDepth.Set(float64(len(m.queueCh)))

	// Wait to acquire the single in-flight slot
	acquired := false
	defer func() {
		if !acquired {
			<-m.queueCh
			queueDepth.Set(float64(len(m.queueCh)))
		}
	}()
	gt := time.NewTimer(m.maxWait)
	defer gt.Stop()
	select {
	case m.genCh <- struct{}{}:
		acquired = true
		inflight.Set(1)
		return func() {
			<-m.genCh
			<-m.queueCh
			inflight.Set(0)
			queueDepth.Set(float64(len(m.queueCh)))
		}, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-gt.C:
		backpressureTotal.WithLabelValues("wait_timeout").Inc()
		return func() {}, tooBusyError{reason: "timed out waiting for the model"}
	}
}
