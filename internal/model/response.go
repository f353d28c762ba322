package model

import openai "github.com/sashabaranov/go-openai"

// ErrorResponse is the JSON body of every rejected request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// UpstreamPayload is posted to the provider's streaming chat endpoint.
type UpstreamPayload struct {
	Model           string                         `json:"model"`
	Temperature     float64                        `json:"temperature"`
	Stream          bool                           `json:"stream"`
	Messages        []openai.ChatCompletionMessage `json:"messages"`
	MaxOutputTokens int                            `json:"max_output_tokens"`
}

// RateLimitInfo is the admission snapshot echoed back as RateLimit-* headers.
type RateLimitInfo struct {
	Limit        int
	Remaining    int
	ResetSeconds int
}
