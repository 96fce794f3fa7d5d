// Package chat holds the client-side conversation state and the session that
// runs one turn at a time against the model manager.
package chat

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"chatd/pkg/types"
)

// DefaultSystemPrompt seeds every conversation.
const DefaultSystemPrompt = "You are a helpful assistant."

// ErrEmptyMessage is returned for user messages without content.
var ErrEmptyMessage = errors.New("message is empty")

// Conversation is an append-only transcript. It is safe for concurrent use.
type Conversation struct {
	id   string
	mu   sync.RWMutex
	msgs []types.Message
}

// NewConversation returns an empty conversation with a fresh id.
func NewConversation() *Conversation {
	return &Conversation{id: uuid.NewString()}
}

// ID identifies the conversation in logs.
func (c *Conversation) ID() string { return c.id }

// Seed appends the system prompt if the conversation is still empty and
// reports whether it did.
func (c *Conversation) Seed(prompt string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.msgs) > 0 {
		return false
	}
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultSystemPrompt
	}
	c.msgs = append(c.msgs, types.Message{Role: types.RoleSystem, Content: prompt})
	return true
}

// Append adds m to the end of the transcript.
func (c *Conversation) Append(m types.Message) error {
	if m.Role == types.RoleUser && strings.TrimSpace(m.Content) == "" {
		return ErrEmptyMessage
	}
	c.mu.Lock()
	c.msgs = append(c.msgs, m)
	c.mu.Unlock()
	return nil
}

// AppendTurn adds a user message and its reply in one step.
func (c *Conversation) AppendTurn(user, reply string) error {
	if strings.TrimSpace(user) == "" {
		return ErrEmptyMessage
	}
	c.mu.Lock()
	c.msgs = append(c.msgs,
		types.Message{Role: types.RoleUser, Content: user},
		types.Message{Role: types.RoleAssistant, Content: reply},
	)
	c.mu.Unlock()
	return nil
}

// Messages returns a copy of the transcript.
func (c *Conversation) Messages() []types.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.Message, len(c.msgs))
	copy(out, c.msgs)
	return out
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.msgs)
}

// Window bounds the messages sent to the model: the leading system messages
// are always kept, followed by the last maxTurns user/assistant pairs and the
// trailing pending user message. maxTurns <= 0 returns msgs unchanged.
func Window(msgs []types.Message, maxTurns int) []types.Message {
	if maxTurns <= 0 {
		return msgs
	}
	head := 0
	for head < len(msgs) && msgs[head].Role == types.RoleSystem {
		head++
	}
	keep := 2*maxTurns + 1
	if len(msgs)-head <= keep {
		return msgs
	}
	out := make([]types.Message, 0, head+keep)
	out = append(out, msgs[:head]...)
	return append(out, msgs[len(msgs)-keep:]...)
}
