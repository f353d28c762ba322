// Package coerce turns an untrusted message list into model.ChatMessage
// values, enforcing size and type limits along the way.
package coerce

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/don-licenciao/MapyChat-web/internal/config"
	"github.com/don-licenciao/MapyChat-web/internal/model"
)

type Limits struct {
	MaxMessages             int
	MaxParts                int
	MaxTextChars            int
	MaxSystemPromptChars    int
	MaxCharacterPromptChars int
	MaxImageBytes           int
}

func LimitsFrom(cfg config.LimitsConfig) Limits {
	return Limits{
		MaxMessages:             cfg.MaxMessages,
		MaxParts:                cfg.MaxParts,
		MaxTextChars:            cfg.MaxTextChars,
		MaxSystemPromptChars:    cfg.MaxSystemPromptChars,
		MaxCharacterPromptChars: cfg.MaxCharacterPromptChars,
		MaxImageBytes:           cfg.MaxImageBytes,
	}
}

type Coercer struct {
	limits Limits
}

func New(limits Limits) *Coercer {
	return &Coercer{limits: limits}
}

// SanitizePrompt drops control characters other than newline and tab, then
// trims surrounding whitespace.
func SanitizePrompt(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(cleaned)
}

// SystemPrompt validates the mandatory system prompt.
func (c *Coercer) SystemPrompt(raw *string) (string, error) {
	if raw == nil {
		return "", invalid(CodeInvalidPrompt, "systemPrompt is required")
	}
	s := SanitizePrompt(*raw)
	if s == "" {
		return "", invalid(CodeInvalidPrompt, "systemPrompt is empty")
	}
	if n := utf8.RuneCountInString(s); n > c.limits.MaxSystemPromptChars {
		return "", invalid(CodeInvalidPrompt, "systemPrompt exceeds %d characters", c.limits.MaxSystemPromptChars)
	}
	return s, nil
}

// CharacterPrompt validates the optional character prompt. An omitted or
// blank prompt yields "".
func (c *Coercer) CharacterPrompt(raw *string) (string, error) {
	if raw == nil {
		return "", nil
	}
	s := SanitizePrompt(*raw)
	if n := utf8.RuneCountInString(s); n > c.limits.MaxCharacterPromptChars {
		return "", invalid(CodeInvalidPrompt, "characterPrompt exceeds %d characters", c.limits.MaxCharacterPromptChars)
	}
	return s, nil
}

// Coerce validates raw messages. A non-empty characterPrompt becomes a
// leading system message.
func (c *Coercer) Coerce(raw []json.RawMessage, characterPrompt string) ([]model.ChatMessage, error) {
	if len(raw) == 0 {
		return nil, invalid(CodeInvalidMessages, "messages must be a non-empty array")
	}
	if len(raw) > c.limits.MaxMessages {
		return nil, invalid(CodeInvalidMessages, "too many messages (max %d)", c.limits.MaxMessages)
	}

	out := make([]model.ChatMessage, 0, len(raw)+1)
	if characterPrompt != "" {
		out = append(out, model.ChatMessage{Role: model.RoleSystem, Content: model.Text(characterPrompt)})
	}

	for i, r := range raw {
		msg, err := c.message(r)
		if err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				ve.Message = fmt.Sprintf("messages[%d]: %s", i, ve.Message)
			}
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

func (c *Coercer) message(raw json.RawMessage) (model.ChatMessage, error) {
	var rm model.RawMessage
	if err := json.Unmarshal(raw, &rm); err != nil || !isObject(raw) {
		return model.ChatMessage{}, invalid(CodeInvalidMessages, "message must be an object")
	}

	role, ok := model.ParseRole(rm.Role)
	if !ok {
		return model.ChatMessage{}, invalid(CodeInvalidMessages, "unknown role %q", rm.Role)
	}

	content := bytes.TrimSpace(rm.Content)
	switch {
	case len(content) == 0 || bytes.Equal(content, []byte("null")):
		return model.ChatMessage{}, invalid(CodeInvalidMessages, "content is missing")
	case content[0] == '"':
		var s string
		if err := json.Unmarshal(content, &s); err != nil {
			return model.ChatMessage{}, invalid(CodeInvalidMessages, "content is not a valid string")
		}
		if err := c.checkText(s); err != nil {
			return model.ChatMessage{}, err
		}
		return model.ChatMessage{Role: role, Content: model.Text(s)}, nil
	case content[0] == '[':
		parts, err := c.parts(content)
		if err != nil {
			return model.ChatMessage{}, err
		}
		return model.ChatMessage{Role: role, Content: parts}, nil
	}
	return model.ChatMessage{}, invalid(CodeInvalidMessages, "content must be a string or an array of parts")
}

func (c *Coercer) parts(content json.RawMessage) (model.Parts, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(content, &raws); err != nil {
		return nil, invalid(CodeInvalidMessages, "content parts are malformed")
	}
	if len(raws) == 0 {
		return nil, invalid(CodeInvalidMessages, "content parts must not be empty")
	}
	if len(raws) > c.limits.MaxParts {
		return nil, invalid(CodeInvalidMessages, "too many content parts (max %d)", c.limits.MaxParts)
	}

	parts := make(model.Parts, 0, len(raws))
	for _, r := range raws {
		var rp model.RawPart
		if err := json.Unmarshal(r, &rp); err != nil || !isObject(r) {
			return nil, invalid(CodeInvalidMessages, "content part must be an object")
		}

		switch rp.Type {
		case "text":
			if rp.Text == nil {
				return nil, invalid(CodeInvalidMessages, "text part is missing its text")
			}
			if err := c.checkText(*rp.Text); err != nil {
				return nil, err
			}
			parts = append(parts, model.TextPart{Text: *rp.Text})
		case "image_url":
			if rp.ImageURL == nil {
				return nil, invalid(CodeInvalidMessages, "image part is missing its url")
			}
			if err := ValidateImageURL(rp.ImageURL.URL, c.limits.MaxImageBytes); err != nil {
				return nil, err
			}
			parts = append(parts, model.ImagePart{
				URL:    rp.ImageURL.URL,
				Detail: model.ParseDetail(rp.ImageURL.Detail),
			})
		default:
			return nil, invalid(CodeInvalidMessages, "unknown content part type %q", rp.Type)
		}
	}
	return parts, nil
}

func (c *Coercer) checkText(s string) error {
	if strings.TrimSpace(s) == "" {
		return invalid(CodeInvalidMessages, "text is empty")
	}
	if utf8.RuneCountInString(s) > c.limits.MaxTextChars {
		return invalid(CodeInvalidMessages, "text exceeds %d characters", c.limits.MaxTextChars)
	}
	return nil
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
