package handler

import (
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/don-licenciao/MapyChat-web/pkg/logger"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// RequestID tags every request with an id, reusing a well-formed incoming
// X-Request-ID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.WithFields(logger.Fields{
			"request_id": requestID(c),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"bytes":      c.Writer.Size(),
		}).Info("request completed")
	}
}

// RequireOrigin rejects browser requests whose Origin is neither the host
// being served nor an allow-listed origin. Requests without Origin pass.
func (h *ChatHandler) RequireOrigin() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" || h.originAllowed(origin, c.Request) {
			c.Next()
			return
		}
		h.fail(c, &apiError{Status: http.StatusForbidden, Code: CodeForbiddenOrigin, Message: "origin not allowed"})
	}
}

func (h *ChatHandler) originAllowed(origin string, r *http.Request) bool {
	trimmed := strings.TrimSuffix(origin, "/")
	for _, allowed := range h.allowedOrigins {
		if strings.EqualFold(trimmed, strings.TrimSuffix(allowed, "/")) {
			return true
		}
	}

	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.EqualFold(u.Host, strings.TrimSpace(first))
	}
	return false
}

// RequireJSON answers 415 unless the body is declared as application/json.
func (h *ChatHandler) RequireJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		mediaType, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
		if err != nil || mediaType != "application/json" {
			h.fail(c, &apiError{
				Status:  http.StatusUnsupportedMediaType,
				Code:    CodeUnsupportedMediaType,
				Message: "Content-Type must be application/json",
			})
			return
		}
		c.Next()
	}
}
