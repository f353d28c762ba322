package utils

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/don-licenciao/MapyChat-web/internal/model"
)

const relayBufferSize = 32 << 10

// SSEWriter relays an upstream event stream to the client. Bytes are passed
// through untouched and flushed after every read so events arrive as soon as
// the provider emits them.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	f, _ := w.(http.Flusher)
	return &SSEWriter{w: w, flusher: f}
}

// SetRateLimitHeaders publishes the admission snapshot. It is applied to
// both streamed and rejected responses.
func SetRateLimitHeaders(h http.Header, info model.RateLimitInfo) {
	h.Set("RateLimit-Limit", strconv.Itoa(info.Limit))
	h.Set("RateLimit-Remaining", strconv.Itoa(info.Remaining))
	h.Set("RateLimit-Reset", strconv.Itoa(info.ResetSeconds))
}

// Relay copies src to the client until EOF, returning the bytes written.
// A read error after headers were sent cannot change the status; it is
// returned so the caller can log it.
func (s *SSEWriter) Relay(src io.Reader) (int64, error) {
	buf := make([]byte, relayBufferSize)
	var written int64

	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			m, werr := s.w.Write(buf[:n])
			written += int64(m)
			if werr != nil {
				return written, werr
			}
			if m < n {
				return written, io.ErrShortWrite
			}
			s.Flush()
		}
		if errors.Is(rerr, io.EOF) {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

func (s *SSEWriter) Flush() {
	if s.flusher != nil {
		s.flusher.Flush()
	}
}
