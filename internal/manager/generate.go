package manager

import (
	"context"
	"errors"
	"strings"
	"time"

	"chatd/pkg/types"
)

// Generate produces a reply for the message sequence. It fails fast with a
// not-ready error until Load has succeeded; past the gate, calls are admitted
// through the queue and run one at a time against the engine handle. The
// reply is trimmed, and empty output is replaced by FallbackReply.
func (m *Manager) Generate(ctx context.Context, msgs []types.Message, params GenerateParams) (string, error) {
	h, p, ok := m.readyHandle()
	if !ok {
		return "", ErrNotReady(p)
	}
	if len(msgs) == 0 {
		return "", errors.New("no messages to generate from")
	}

	release, err := m.beginGeneration(ctx)
	if err != nil {
		if IsTooBusy(err) {
			m.log.Warn().Err(err).Int("queued", len(m.queueCh)).Msg("generation rejected")
		}
		return "", err
	}
	defer release()
	// Close may have run while this call was queued.
	if h, p, ok = m.readyHandle(); !ok {
		return "", ErrNotReady(p)
	}

	if params.MaxNewTokens <= 0 {
		params.MaxNewTokens = DefaultMaxNewTokens
	}
	if m.genTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.genTimeout)
		defer cancel()
	}

	start := time.Now()
	out, err := h.Generate(ctx, msgs, params)
	dur := time.Since(start)
	if err != nil {
		generationsTotal.WithLabelValues("error").Inc()
		generationDuration.Observe(dur.Seconds())
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return "", err
		}
		m.log.Error().Err(err).Dur("dur", dur).Int("messages", len(msgs)).Msg("generation failed")
		return "", generationFailure{err: err}
	}
	generationsTotal.WithLabelValues("ok").Inc()
	generationDuration.Observe(dur.Seconds())
	m.log.Debug().Dur("dur", dur).Int("messages", len(msgs)).Int("chars", len(out)).Msg("generation done")
	return NormalizeReply(out), nil
}

func (m *Manager) readyHandle() (Handle, types.LoadingProgress, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.handle, copyProgress(m.progress), m.readyLocked()
}

// NormalizeReply trims surrounding whitespace and substitutes FallbackReply
// for empty output.
func NormalizeReply(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return FallbackReply
	}
	return s
}
