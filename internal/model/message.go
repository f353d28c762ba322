package model

import "time"

// Role of a chat message. Fixed when the message is built.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleSystem, RoleUser, RoleAssistant:
		return Role(s), true
	}
	return "", false
}

// Detail is the image fidelity hint forwarded to the provider.
type Detail string

const (
	DetailAuto Detail = "auto"
	DetailLow  Detail = "low"
	DetailHigh Detail = "high"
)

// ParseDetail never fails: unknown values collapse to DetailAuto.
func ParseDetail(s string) Detail {
	switch Detail(s) {
	case DetailLow, DetailHigh:
		return Detail(s)
	}
	return DetailAuto
}

// Content is either Text or Parts. The unexported method seals the set.
type Content interface {
	isContent()
}

type Text string

type Parts []Part

func (Text) isContent()  {}
func (Parts) isContent() {}

// Part is either a TextPart or an ImagePart.
type Part interface {
	isPart()
}

type TextPart struct {
	Text string
}

type ImagePart struct {
	URL    string
	Detail Detail
}

func (TextPart) isPart()  {}
func (ImagePart) isPart() {}

type ChatMessage struct {
	Role    Role
	Content Content
}

// TextSegments returns every text fragment of the message in order.
func (m ChatMessage) TextSegments() []string {
	switch c := m.Content.(type) {
	case Text:
		return []string{string(c)}
	case Parts:
		out := make([]string, 0, len(c))
		for _, p := range c {
			if tp, ok := p.(TextPart); ok {
				out = append(out, tp.Text)
			}
		}
		return out
	}
	return nil
}

// PlainText concatenates the text segments of the message.
func (m ChatMessage) PlainText() string {
	var out string
	for _, s := range m.TextSegments() {
		out += s
	}
	return out
}

// WithAppendedText returns a copy of m with s appended to its text. The
// receiver is left untouched so callers can swap the message wholesale.
func (m ChatMessage) WithAppendedText(s string) ChatMessage {
	switch c := m.Content.(type) {
	case Parts:
		parts := make(Parts, len(c), len(c)+1)
		copy(parts, c)
		if n := len(parts); n > 0 {
			if tp, ok := parts[n-1].(TextPart); ok {
				parts[n-1] = TextPart{Text: tp.Text + s}
				return ChatMessage{Role: m.Role, Content: parts}
			}
		}
		return ChatMessage{Role: m.Role, Content: append(parts, TextPart{Text: s})}
	case Text:
		return ChatMessage{Role: m.Role, Content: c + Text(s)}
	}
	return ChatMessage{Role: m.Role, Content: Text(s)}
}

// RateEntry is the per-client counter of the current fixed window.
type RateEntry struct {
	Count   int
	ResetAt time.Time
}

func (e *RateEntry) Expired(now time.Time) bool {
	return !now.Before(e.ResetAt)
}
