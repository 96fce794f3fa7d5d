package speech

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// NoticePrefix starts every speech failure notice shown in the chat.
const NoticePrefix = "Sorry, I could not read the response out loud. Error: "

// Notice is a secondary, non-fatal message for the chat transcript.
type Notice struct {
	Text string
	Err  error
}

// Narrator reads replies out loud on detached goroutines. Failures never
// reach the caller of Speak; they are reported as Notices.
type Narrator struct {
	synth   Synthesizer
	player  Player
	timeout time.Duration
	log     zerolog.Logger

	wg      sync.WaitGroup
	notices chan Notice
}

// NewNarrator returns a Narrator. A nil synth disables speech entirely.
func NewNarrator(synth Synthesizer, player Player, timeout time.Duration, log zerolog.Logger) *Narrator {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Narrator{
		synth:   synth,
		player:  player,
		timeout: timeout,
		log:     log.With().Str("component", "speech").Logger(),
		notices: make(chan Notice, 8),
	}
}

// Enabled reports whether replies will be spoken.
func (n *Narrator) Enabled() bool { return n != nil && n.synth != nil }

// Notices delivers speech failures. Notices are dropped when nobody reads them.
// A disabled narrator never fails and returns nil, so callers can skip waiting.
func (n *Narrator) Notices() <-chan Notice {
	if !n.Enabled() {
		return nil
	}
	return n.notices
}

// Speak starts synthesis and playback of text and returns immediately.
func (n *Narrator) Speak(text string) {
	if !n.Enabled() || strings.TrimSpace(text) == "" {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if err := n.speak(ctx, text); err != nil {
			n.log.Warn().Err(err).Msg("speech failed")
			select {
			case n.notices <- Notice{Text: NoticePrefix + err.Error(), Err: err}:
			default:
			}
		}
	}()
}

func (n *Narrator) speak(ctx context.Context, text string) error {
	audio, err := n.synth.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	if n.player == nil {
		n.log.Debug().Int("bytes", len(audio)).Msg("no player configured, discarding audio")
		return nil
	}
	return n.player.Play(ctx, audio)
}

// Wait blocks until every pending Speak has finished.
func (n *Narrator) Wait() {
	if n != nil {
		n.wg.Wait()
	}
}
