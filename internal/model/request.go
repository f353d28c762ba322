package model

import "encoding/json"

// ChatRequest is the browser payload. Messages stay raw until the coercer
// has validated them; pointer fields distinguish "omitted" from zero.
type ChatRequest struct {
	Model           string            `json:"model"`
	Temperature     *float64          `json:"temperature,omitempty"`
	SystemPrompt    *string           `json:"systemPrompt"`
	CharacterPrompt *string           `json:"characterPrompt,omitempty"`
	Messages        []json.RawMessage `json:"messages"`
	ResponseLevel   *float64          `json:"responseLevel,omitempty"`
	MaxTokens       *float64          `json:"maxTokens,omitempty"`
}

// RawMessage mirrors the loosely typed wire form of a message.
type RawMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type RawPart struct {
	Type     string       `json:"type"`
	Text     *string      `json:"text,omitempty"`
	ImageURL *RawImageURL `json:"image_url,omitempty"`
}

type RawImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}
