// Package client consumes the chat proxy's event stream. It retries
// transient failures with linear backoff and honors cancellation at once.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/don-licenciao/MapyChat-web/internal/model"
	"github.com/don-licenciao/MapyChat-web/pkg/logger"
)

const (
	DefaultMaxRetries = 3
	DefaultBackoff    = time.Second

	dataPrefix   = "data:"
	doneSentinel = "[DONE]"
)

// Payload is the request body sent to the proxy.
type Payload struct {
	Model           string
	Temperature     *float64
	SystemPrompt    string
	CharacterPrompt string
	ResponseLevel   int
	MaxTokens       int
	Messages        []model.ChatMessage
}

type wirePayload struct {
	Model           string                         `json:"model"`
	Temperature     *float64                       `json:"temperature,omitempty"`
	SystemPrompt    string                         `json:"systemPrompt"`
	CharacterPrompt string                         `json:"characterPrompt,omitempty"`
	Messages        []openai.ChatCompletionMessage `json:"messages"`
	ResponseLevel   int                            `json:"responseLevel,omitempty"`
	MaxTokens       int                            `json:"maxTokens,omitempty"`
}

func (p Payload) MarshalJSON() ([]byte, error) {
	return json.Marshal(wirePayload{
		Model:           p.Model,
		Temperature:     p.Temperature,
		SystemPrompt:    p.SystemPrompt,
		CharacterPrompt: p.CharacterPrompt,
		Messages:        model.ToOpenAI(p.Messages),
		ResponseLevel:   p.ResponseLevel,
		MaxTokens:       p.MaxTokens,
	})
}

// StatusError is a non-200 answer from the proxy.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("proxy returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("proxy returned %d (%s): %s", e.Status, e.Code, e.Message)
}

type Client struct {
	endpoint   string
	http       *http.Client
	header     http.Header
	maxRetries int
	backoff    time.Duration
	sleep      func(context.Context, time.Duration) error
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithRetries sets the retry ceiling and the backoff unit. The wait before
// retry n is n*base.
func WithRetries(max int, base time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = max
		c.backoff = base
	}
}

// WithHeader adds a header to every request, e.g. Origin.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.header.Set(key, value)
	}
}

func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		http:       http.DefaultClient,
		header:     make(http.Header),
		maxRetries: DefaultMaxRetries,
		backoff:    DefaultBackoff,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StreamWithRetries posts payload and appends streamed text to the trailing
// assistant message of conv. Before each retry, and after the final
// failure, that message is restored to its text from before the first
// attempt. Cancellation of ctx is returned as ctx.Err() and never retried.
func (c *Client) StreamWithRetries(ctx context.Context, payload Payload, conv *Conversation) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	anchor, hasAnchor := conv.Last()
	restore := func() {
		if hasAnchor && anchor.Role == model.RoleAssistant {
			conv.ReplaceLast(anchor)
		}
	}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := c.streamOnce(ctx, body, conv)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		restore()
		if attempt >= c.maxRetries {
			return fmt.Errorf("stream failed after %d attempts: %w", attempt+1, err)
		}

		wait := time.Duration(attempt+1) * c.backoff
		logger.Warnf("stream attempt %d failed, retrying in %s: %v", attempt+1, wait, err)
		if err := c.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (c *Client) streamOnce(ctx context.Context, body []byte, conv *Conversation) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	for k, v := range c.header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readStatusError(resp)
	}

	// ReadString keeps a partial trailing line buffered until the rest of it
	// arrives in a later read.
	r := bufio.NewReader(resp.Body)
	for {
		line, err := r.ReadString('\n')
		if line != "" && handleLine(line, conv) {
			return nil
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// handleLine applies one SSE line to conv and reports whether it was the
// end-of-stream sentinel.
func handleLine(line string, conv *Conversation) bool {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, dataPrefix) {
		return false
	}
	data := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
	if data == "" {
		return false
	}
	if data == doneSentinel {
		return true
	}

	var chunk openai.ChatCompletionStreamResponse
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		logger.Warnf("skipping malformed stream chunk: %v", err)
		return false
	}

	var sb strings.Builder
	for _, choice := range chunk.Choices {
		sb.WriteString(choice.Delta.Content)
	}
	if sb.Len() > 0 {
		conv.AppendToLast(sb.String())
	}
	return false
}

func readStatusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var er model.ErrorResponse
	if json.Unmarshal(raw, &er) == nil && er.Error != "" {
		return &StatusError{Status: resp.StatusCode, Code: er.Code, Message: er.Error}
	}
	return &StatusError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
