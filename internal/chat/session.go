package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"chatd/internal/manager"
	"chatd/pkg/types"
)

// ErrTurnInFlight is returned when Send is called while a previous turn on the
// same session has not completed.
var ErrTurnInFlight = errors.New("a reply is already being generated")

// Generator is the part of the model manager a session needs.
type Generator interface {
	Ready() bool
	Progress() types.LoadingProgress
	Generate(ctx context.Context, msgs []types.Message, params manager.GenerateParams) (string, error)
}

// Speaker receives every reply after it has been committed.
type Speaker interface {
	Speak(text string)
}

// SessionConfig configures a Session.
type SessionConfig struct {
	SystemPrompt string
	// MaxTurns bounds the request history; zero sends the full transcript.
	MaxTurns int
	Params   manager.GenerateParams
	Speaker  Speaker
	Logger   zerolog.Logger
}

// Session runs a single conversation, one turn at a time.
type Session struct {
	gen  Generator
	conv *Conversation
	cfg  SessionConfig
	turn sync.Mutex
	log  zerolog.Logger
}

// NewSession binds a new conversation to gen.
func NewSession(gen Generator, cfg SessionConfig) *Session {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.Params.MaxNewTokens == 0 {
		cfg.Params = manager.ClientParams()
	}
	conv := NewConversation()
	return &Session{
		gen:  gen,
		conv: conv,
		cfg:  cfg,
		log:  cfg.Logger.With().Str("conversation", conv.ID()).Logger(),
	}
}

// Conversation exposes the session transcript.
func (s *Session) Conversation() *Conversation { return s.conv }

// OnReady seeds the system prompt. It is called once the model is ready and
// is a no-op afterwards.
func (s *Session) OnReady() {
	if s.conv.Seed(s.cfg.SystemPrompt) {
		s.log.Debug().Msg("conversation seeded")
	}
}

// Send runs one turn: the user message plus the transcript are sent to the
// model, and on success both the message and the reply are appended. On any
// error the transcript is left exactly as it was.
func (s *Session) Send(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}
	if !s.turn.TryLock() {
		return "", ErrTurnInFlight
	}
	defer s.turn.Unlock()

	if !s.gen.Ready() {
		return "", manager.ErrNotReady(s.gen.Progress())
	}
	s.OnReady()

	msgs := append(s.conv.Messages(), types.Message{Role: types.RoleUser, Content: text})
	reply, err := s.gen.Generate(ctx, Window(msgs, s.cfg.MaxTurns), s.cfg.Params)
	if err != nil {
		s.log.Error().Err(err).Msg("turn failed")
		return "", err
	}
	reply = manager.NormalizeReply(reply)
	if err := s.conv.AppendTurn(text, reply); err != nil {
		return "", err
	}
	s.log.Debug().Int("messages", s.conv.Len()).Msg("turn complete")
	if s.cfg.Speaker != nil {
		s.cfg.Speaker.Speak(reply)
	}
	return reply, nil
}
