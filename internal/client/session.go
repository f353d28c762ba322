package client

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/don-licenciao/MapyChat-web/internal/guard"
	"github.com/don-licenciao/MapyChat-web/internal/model"
	"github.com/don-licenciao/MapyChat-web/pkg/logger"
)

var ErrEmptyMessage = errors.New("message has no text and no images")

type Settings struct {
	Model           string
	Temperature     *float64
	SystemPrompt    string
	CharacterPrompt string
	MaxImageBytes   int
}

// Session drives one chat: it guards and submits user turns and streams the
// reply into its Conversation. One Send runs at a time.
type Session struct {
	client   *Client
	guard    *guard.Guard
	prefs    *Preferences
	conv     *Conversation
	settings Settings

	sendMu sync.Mutex
	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewSession(c *Client, g *guard.Guard, prefs *Preferences, conv *Conversation, settings Settings) *Session {
	if conv == nil {
		conv = NewConversation()
	}
	return &Session{
		client:   c,
		guard:    g,
		prefs:    prefs,
		conv:     conv,
		settings: settings,
	}
}

func (s *Session) Conversation() *Conversation {
	return s.conv
}

// Send checks text locally, appends the user turn plus an empty assistant
// message, and streams the reply into it. On failure the empty assistant
// message is removed. A canceled send is not an error.
func (s *Session) Send(ctx context.Context, text string, images []QueuedImage) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	text = strings.TrimSpace(text)
	if text == "" && len(images) == 0 {
		return ErrEmptyMessage
	}
	if text != "" {
		if err := s.guard.Check(text); err != nil {
			return err
		}
	}

	user, err := s.userMessage(text, images)
	if err != nil {
		return err
	}

	history := s.conv.Snapshot()
	s.conv.Update(func(msgs []model.ChatMessage) []model.ChatMessage {
		return append(msgs, user, model.ChatMessage{Role: model.RoleAssistant, Content: model.Text("")})
	})

	payload := Payload{
		Model:           s.settings.Model,
		Temperature:     s.settings.Temperature,
		SystemPrompt:    s.settings.SystemPrompt,
		CharacterPrompt: s.settings.CharacterPrompt,
		Messages:        append(history, user),
	}
	if s.prefs != nil {
		payload.ResponseLevel = s.prefs.ResponseLevel()
	}

	ctx, cancel := context.WithCancel(ctx)
	s.setCancel(cancel)
	defer func() {
		s.setCancel(nil)
		cancel()
	}()

	err = s.client.StreamWithRetries(ctx, payload, s.conv)
	if err == nil {
		return nil
	}

	s.conv.DropEmptyAssistant()
	if errors.Is(err, context.Canceled) {
		logger.Debugf("send canceled")
		return nil
	}
	return err
}

// Cancel aborts the in-flight Send, if any.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Session) setCancel(fn context.CancelFunc) {
	s.mu.Lock()
	s.cancel = fn
	s.mu.Unlock()
}

func (s *Session) userMessage(text string, images []QueuedImage) (model.ChatMessage, error) {
	if len(images) == 0 {
		return model.ChatMessage{Role: model.RoleUser, Content: model.Text(text)}, nil
	}

	parts := make(model.Parts, 0, len(images)+1)
	if text != "" {
		parts = append(parts, model.TextPart{Text: text})
	}
	for _, img := range images {
		if img.Detail == "" && s.prefs != nil {
			img.Detail = s.prefs.ImageDetail()
		}
		p, err := img.Part(s.settings.MaxImageBytes)
		if err != nil {
			return model.ChatMessage{}, err
		}
		parts = append(parts, p)
	}
	return model.ChatMessage{Role: model.RoleUser, Content: parts}, nil
}
