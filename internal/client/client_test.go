package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/don-licenciao/MapyChat-web/internal/model"
)

func chunk(text string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"index": 0, "delta": map[string]any{"content": text}}},
	})
	return "data: " + string(b) + "\n\n"
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// recordingSleep replaces the backoff timer and records each wait.
type recordingSleep struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recordingSleep) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.waits...)
}

func newTestClient(url string) (*Client, *recordingSleep) {
	rs := &recordingSleep{}
	c := New(url)
	c.sleep = rs.sleep
	return c, rs
}

func pending() *Conversation {
	return NewConversation(
		model.ChatMessage{Role: model.RoleUser, Content: model.Text("hola")},
		model.ChatMessage{Role: model.RoleAssistant, Content: model.Text("")},
	)
}

func lastText(t *testing.T, conv *Conversation) string {
	t.Helper()
	m, ok := conv.Last()
	require.True(t, ok)
	return m.PlainText()
}

func TestStreamWithRetries_AppendsDeltas(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)

		w.Header().Set("Content-Type", "text/event-stream")
		full := chunk("Ho")
		_, _ = io.WriteString(w, full[:12])
		flush(w)
		_, _ = io.WriteString(w, full[12:])
		flush(w)
		_, _ = io.WriteString(w, ": keep-alive\n\n")
		_, _ = io.WriteString(w, "data: {oops\n\n")
		_, _ = io.WriteString(w, chunk("la"))
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
		_, _ = io.WriteString(w, chunk(" ignored"))
	}))
	defer srv.Close()

	c, rs := newTestClient(srv.URL)
	conv := pending()

	err := c.StreamWithRetries(context.Background(), Payload{
		Model:        "grok-4",
		SystemPrompt: "sys",
		Messages:     []model.ChatMessage{{Role: model.RoleUser, Content: model.Text("hola")}},
	}, conv)
	require.NoError(t, err)

	assert.Equal(t, "Hola", lastText(t, conv))
	assert.Empty(t, rs.recorded())

	assert.Equal(t, "grok-4", got["model"])
	assert.Equal(t, "sys", got["systemPrompt"])
	assert.Equal(t, []any{map[string]any{"role": "user", "content": "hola"}}, got["messages"])
	assert.NotContains(t, got, "characterPrompt")
}

func TestStreamWithRetries_RetriesWithLinearBackoff(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, `{"error":"upstream provider error","code":"upstream_error"}`)
			return
		}
		_, _ = io.WriteString(w, chunk("ok")+"data: [DONE]\n\n")
	}))
	defer srv.Close()

	c, rs := newTestClient(srv.URL)
	conv := pending()

	require.NoError(t, c.StreamWithRetries(context.Background(), Payload{Model: "m"}, conv))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rs.recorded())
	assert.Equal(t, "ok", lastText(t, conv))
}

func TestStreamWithRetries_ResetsPartialTextBeforeRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = io.WriteString(w, chunk("partial "))
			flush(w)
			panic(http.ErrAbortHandler)
		}
		_, _ = io.WriteString(w, chunk("Hola")+"data: [DONE]\n\n")
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL)
	conv := NewConversation(
		model.ChatMessage{Role: model.RoleUser, Content: model.Text("hola")},
		model.ChatMessage{Role: model.RoleAssistant, Content: model.Text("")},
	)

	require.NoError(t, c.StreamWithRetries(context.Background(), Payload{Model: "m"}, conv))
	assert.Equal(t, "Hola", lastText(t, conv))
	assert.Equal(t, 2, conv.Len())
}

func TestStreamWithRetries_GivesUpAfterRetryBudget(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"error":"busy","code":"upstream_error"}`)
	}))
	defer srv.Close()

	c, rs := newTestClient(srv.URL)
	conv := pending()

	err := c.StreamWithRetries(context.Background(), Payload{Model: "m"}, conv)
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.Status)
	assert.Equal(t, "upstream_error", se.Code)
	assert.Equal(t, "busy", se.Message)

	assert.Equal(t, int32(1+DefaultMaxRetries), calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, rs.recorded())
	assert.Equal(t, "", lastText(t, conv))
}

func TestStreamWithRetries_CancelStopsWithoutRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.Copy(io.Discard, r.Body)
		_, _ = io.WriteString(w, chunk("first"))
		flush(w)
		<-r.Context().Done()
	}))
	defer srv.Close()

	c, rs := newTestClient(srv.URL)
	conv := pending()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	conv.OnChange(func(msgs []model.ChatMessage) {
		if msgs[len(msgs)-1].PlainText() != "" {
			cancel()
		}
	})

	err := c.StreamWithRetries(ctx, Payload{Model: "m"}, conv)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, rs.recorded())
	assert.Equal(t, "first", lastText(t, conv))
}

func TestStreamWithRetries_AlreadyCanceled(t *testing.T) {
	c, _ := newTestClient("http://127.0.0.1:1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.StreamWithRetries(ctx, Payload{}, pending())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStreamWithRetries_SendsConfiguredHeaders(t *testing.T) {
	var origin string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin = r.Header.Get("Origin")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := New(srv.URL, WithHeader("Origin", "https://chat.example.org"), WithRetries(0, time.Millisecond))
	require.NoError(t, c.StreamWithRetries(context.Background(), Payload{}, pending()))
	assert.Equal(t, "https://chat.example.org", origin)
}
