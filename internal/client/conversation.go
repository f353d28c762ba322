package client

import (
	"sync"

	"github.com/don-licenciao/MapyChat-web/internal/model"
)

// Conversation is the client-side message list. Every change installs a
// new slice, so a Snapshot taken by a renderer is never mutated under it.
type Conversation struct {
	mu       sync.Mutex
	messages []model.ChatMessage
	onChange func([]model.ChatMessage)
}

func NewConversation(initial ...model.ChatMessage) *Conversation {
	msgs := make([]model.ChatMessage, len(initial))
	copy(msgs, initial)
	return &Conversation{messages: msgs}
}

// OnChange registers fn to receive every new list. fn runs outside the lock.
func (c *Conversation) OnChange(fn func([]model.ChatMessage)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

func (c *Conversation) Snapshot() []model.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clone(c.messages)
}

func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Update replaces the list with fn's result. fn receives a private copy.
func (c *Conversation) Update(fn func([]model.ChatMessage) []model.ChatMessage) {
	c.mu.Lock()
	next := fn(clone(c.messages))
	c.messages = next
	notify := c.onChange
	c.mu.Unlock()

	if notify != nil {
		notify(clone(next))
	}
}

// Last returns the final message, if any.
func (c *Conversation) Last() (model.ChatMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return model.ChatMessage{}, false
	}
	return c.messages[len(c.messages)-1], true
}

// AppendToLast adds text to the trailing assistant message. It reports
// false when the list does not end with one.
func (c *Conversation) AppendToLast(text string) bool {
	ok := false
	c.Update(func(msgs []model.ChatMessage) []model.ChatMessage {
		n := len(msgs)
		if n == 0 || msgs[n-1].Role != model.RoleAssistant {
			return msgs
		}
		msgs[n-1] = msgs[n-1].WithAppendedText(text)
		ok = true
		return msgs
	})
	return ok
}

// ReplaceLast swaps the trailing assistant message for m.
func (c *Conversation) ReplaceLast(m model.ChatMessage) {
	c.Update(func(msgs []model.ChatMessage) []model.ChatMessage {
		if n := len(msgs); n > 0 && msgs[n-1].Role == model.RoleAssistant {
			msgs[n-1] = m
		}
		return msgs
	})
}

// DropEmptyAssistant removes a trailing assistant message with no text.
func (c *Conversation) DropEmptyAssistant() bool {
	dropped := false
	c.Update(func(msgs []model.ChatMessage) []model.ChatMessage {
		n := len(msgs)
		if n > 0 && msgs[n-1].Role == model.RoleAssistant && msgs[n-1].PlainText() == "" {
			dropped = true
			return msgs[:n-1]
		}
		return msgs
	})
	return dropped
}

func clone(msgs []model.ChatMessage) []model.ChatMessage {
	out := make([]model.ChatMessage, len(msgs))
	copy(out, msgs)
	return out
}
