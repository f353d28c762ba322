package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/don-licenciao/MapyChat-web/internal/config"
	"github.com/don-licenciao/MapyChat-web/internal/metrics"
	"github.com/don-licenciao/MapyChat-web/internal/model"
	"github.com/don-licenciao/MapyChat-web/pkg/logger"
)

const (
	MinOutputTokens = 128
	MaxOutputTokens = 2048
	MinLevel        = 1
	MaxLevel        = 5

	// errorBodyLimit caps how much of a failed provider response is read.
	errorBodyLimit = 64 << 10
)

var ErrMissingAPIKey = errors.New("upstream api key is not configured")

// UpstreamError is a failed provider call. Status is the provider's HTTP
// status, or 0 when no response was received.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("upstream unavailable: %s", e.Message)
	}
	return fmt.Sprintf("upstream returned %d: %s", e.Status, e.Message)
}

// ClientStatus is the status relayed to the browser: the provider's own
// error status when it sent one, 502 otherwise.
func (e *UpstreamError) ClientStatus() int {
	if e.Status >= 400 && e.Status <= 599 {
		return e.Status
	}
	return http.StatusBadGateway
}

type ChatService struct {
	upstream config.UpstreamConfig
	proxy    config.ProxyConfig
	client   *http.Client
	metrics  *metrics.Metrics
}

func NewChatService(upstream config.UpstreamConfig, proxy config.ProxyConfig, client *http.Client, m *metrics.Metrics) *ChatService {
	return &ChatService{
		upstream: upstream,
		proxy:    proxy,
		client:   client,
		metrics:  m,
	}
}

// ResolveMaxTokens picks the output budget: an explicit response level wins,
// then a raw token count, then def. Both inputs are clamped, never rejected.
func ResolveMaxTokens(level, maxTokens *float64, def int) int {
	if level != nil && !math.IsNaN(*level) {
		l := clampInt(roundInt(*level), MinLevel, MaxLevel)
		return clampInt(MinOutputTokens<<(l-1), MinOutputTokens, MaxOutputTokens)
	}
	if maxTokens != nil && !math.IsNaN(*maxTokens) {
		return clampInt(roundInt(*maxTokens), MinOutputTokens, MaxOutputTokens)
	}
	return def
}

// ClampTemperature bounds t to [0,2], using def when t is omitted.
func ClampTemperature(t *float64, def float64) float64 {
	if t == nil || math.IsNaN(*t) {
		return def
	}
	return math.Min(2, math.Max(0, *t))
}

// BuildPayload assembles the provider request. The system prompt comes
// first, followed by any leading system messages of conversation (the
// character prompt), then at most HistoryWindow of the most recent turns.
func (s *ChatService) BuildPayload(modelName string, temperature *float64, systemPrompt string,
	conversation []model.ChatMessage, level, maxTokens *float64) model.UpstreamPayload {

	lead := 0
	for lead < len(conversation) && conversation[lead].Role == model.RoleSystem {
		lead++
	}
	tail := conversation[lead:]
	if w := s.proxy.HistoryWindow; w > 0 && len(tail) > w {
		tail = tail[len(tail)-w:]
	}

	messages := make([]model.ChatMessage, 0, 1+lead+len(tail))
	messages = append(messages, model.ChatMessage{Role: model.RoleSystem, Content: model.Text(systemPrompt)})
	messages = append(messages, conversation[:lead]...)
	messages = append(messages, tail...)

	return model.UpstreamPayload{
		Model:           modelName,
		Temperature:     ClampTemperature(temperature, s.proxy.DefaultTemperature),
		Stream:          true,
		Messages:        model.ToOpenAI(messages),
		MaxOutputTokens: ResolveMaxTokens(level, maxTokens, s.proxy.DefaultMaxTokens),
	}
}

// Open posts payload to the provider and returns the streaming response.
// The caller owns resp.Body. Non-2xx responses are drained, logged and
// returned as *UpstreamError; the provider body never reaches the caller.
func (s *ChatService) Open(ctx context.Context, payload model.UpstreamPayload) (*http.Response, error) {
	if s.upstream.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode upstream payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.upstream.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+s.upstream.APIKey)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		s.metrics.ObserveUpstream(time.Since(start).Seconds(), 0)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.WithFields(logger.Fields{"model": payload.Model}).Errorf("upstream request failed: %v", err)
		return nil, &UpstreamError{Message: err.Error()}
	}
	s.metrics.ObserveUpstream(time.Since(start).Seconds(), resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg := providerMessage(resp.Body)
		logger.WithFields(logger.Fields{
			"model":  payload.Model,
			"status": resp.StatusCode,
		}).Errorf("upstream rejected request: %s", msg)
		return nil, &UpstreamError{Status: resp.StatusCode, Message: msg}
	}

	return resp, nil
}

// providerMessage extracts the human-readable message from an error body,
// preferring the OpenAI error envelope and falling back to the raw text.
func providerMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, errorBodyLimit))
	if err != nil && len(raw) == 0 {
		return fmt.Sprintf("unreadable error body: %v", err)
	}

	var envelope openai.ErrorResponse
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error != nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}

	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		return "empty error body"
	}
	return msg
}

func roundInt(f float64) int {
	switch {
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int(math.Round(f))
}

func clampInt(v, lo, hi int) int {
	return min(hi, max(lo, v))
}
