package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/don-licenciao/MapyChat-web/internal/coerce"
	"github.com/don-licenciao/MapyChat-web/internal/guard"
	"github.com/don-licenciao/MapyChat-web/internal/metrics"
	"github.com/don-licenciao/MapyChat-web/internal/model"
	"github.com/don-licenciao/MapyChat-web/internal/ratelimit"
	"github.com/don-licenciao/MapyChat-web/internal/service"
	"github.com/don-licenciao/MapyChat-web/internal/utils"
	"github.com/don-licenciao/MapyChat-web/pkg/logger"
)

type Deps struct {
	Service        *service.ChatService
	Limiter        *ratelimit.Limiter
	Guard          *guard.Guard
	Coercer        *coerce.Coercer
	Models         *model.Catalog
	Metrics        *metrics.Metrics
	AllowedOrigins []string
	MaxBodyBytes   int64
}

type ChatHandler struct {
	chatService    *service.ChatService
	limiter        *ratelimit.Limiter
	guard          *guard.Guard
	coercer        *coerce.Coercer
	models         *model.Catalog
	metrics        *metrics.Metrics
	allowedOrigins []string
	maxBodyBytes   int64
}

func NewChatHandler(d Deps) *ChatHandler {
	return &ChatHandler{
		chatService:    d.Service,
		limiter:        d.Limiter,
		guard:          d.Guard,
		coercer:        d.Coercer,
		models:         d.Models,
		metrics:        d.Metrics,
		allowedOrigins: d.AllowedOrigins,
		maxBodyBytes:   d.MaxBodyBytes,
	}
}

// StreamChat admits, validates and guards one chat request, then relays
// the provider's event stream. Origin and Content-Type are checked by
// RequireOrigin and RequireJSON before it runs.
func (h *ChatHandler) StreamChat(c *gin.Context) {
	clientID := ratelimit.ClientID(c.Request)
	log := logger.WithFields(logger.Fields{
		"request_id": requestID(c),
		"client":     clientID,
	})

	decision := h.limiter.Admit(clientID)
	h.metrics.RecordRateLimitCheck(decision.Allowed)
	utils.SetRateLimitHeaders(c.Writer.Header(), decision.Info())
	if !decision.Allowed {
		h.fail(c, &apiError{
			Status:     http.StatusTooManyRequests,
			Code:       CodeRateLimited,
			Message:    "too many requests, retry later",
			RetryAfter: decision.RetryAfterSeconds,
		})
		return
	}

	if h.maxBodyBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)
	}
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, decodeError(err))
		return
	}

	if !h.models.Supports(req.Model) {
		h.fail(c, badRequest(CodeInvalidModel, "unsupported model %q", req.Model))
		return
	}

	systemPrompt, err := h.coercer.SystemPrompt(req.SystemPrompt)
	if err != nil {
		h.fail(c, err)
		return
	}
	characterPrompt, err := h.coercer.CharacterPrompt(req.CharacterPrompt)
	if err != nil {
		h.fail(c, err)
		return
	}

	messages, err := h.coercer.Coerce(req.Messages, characterPrompt)
	if err != nil {
		h.fail(c, err)
		return
	}

	if latest, ok := latestUserMessage(messages); ok {
		if err := h.guard.CheckAll(latest.TextSegments()); err != nil {
			var v *guard.Violation
			if errors.As(err, &v) {
				h.metrics.RecordGuardViolation(v.Rule)
				log.WithField("rule", v.Rule).Info("message blocked by content guard")
			}
			h.fail(c, err)
			return
		}
	}

	payload := h.chatService.BuildPayload(req.Model, req.Temperature, systemPrompt, messages, req.ResponseLevel, req.MaxTokens)

	resp, err := h.chatService.Open(c.Request.Context(), payload)
	if err != nil {
		if c.Request.Context().Err() != nil {
			log.Debugf("client went away before upstream answered: %v", err)
			c.Abort()
			return
		}
		h.fail(c, err)
		return
	}
	defer resp.Body.Close()

	h.metrics.RecordRequest(codeOK)
	sse := utils.NewSSEWriter(c.Writer)
	c.Status(http.StatusOK)

	n, err := sse.Relay(resp.Body)
	h.metrics.AddRelayedBytes(n)
	if err != nil {
		log.Warnf("stream relay ended early after %d bytes: %v", n, err)
		return
	}
	log.WithFields(logger.Fields{
		"model":      payload.Model,
		"max_tokens": payload.MaxOutputTokens,
		"bytes":      n,
	}).Debug("stream relayed")
}

// latestUserMessage is the newest user turn, the one the guard inspects.
func latestUserMessage(messages []model.ChatMessage) (model.ChatMessage, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == model.RoleUser {
			return messages[i], true
		}
	}
	return model.ChatMessage{}, false
}

// decodeError classifies body decoding failures. Type mismatches on a known
// field carry that field's error code.
func decodeError(err error) error {
	var (
		tooLarge *http.MaxBytesError
		typeErr  *json.UnmarshalTypeError
	)

	switch {
	case errors.As(err, &tooLarge):
		return badRequest(CodeInvalidJSON, "request body exceeds %d bytes", tooLarge.Limit)
	case errors.As(err, &typeErr):
		switch typeErr.Field {
		case "model":
			return badRequest(CodeInvalidModel, "model must be a string")
		case "systemPrompt", "characterPrompt":
			return badRequest(coerce.CodeInvalidPrompt, "%s must be a string", typeErr.Field)
		case "messages":
			return badRequest(coerce.CodeInvalidMessages, "messages must be an array")
		}
		return badRequest(CodeInvalidJSON, "field %q has the wrong type", typeErr.Field)
	}
	return badRequest(CodeInvalidJSON, "request body is not valid JSON")
}

// ListModels reports the models StreamChat accepts, in configured order.
func (h *ChatHandler) ListModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": h.models.Names()})
}
