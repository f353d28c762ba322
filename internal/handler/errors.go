package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/don-licenciao/MapyChat-web/internal/coerce"
	"github.com/don-licenciao/MapyChat-web/internal/guard"
	"github.com/don-licenciao/MapyChat-web/internal/model"
	"github.com/don-licenciao/MapyChat-web/internal/service"
	"github.com/don-licenciao/MapyChat-web/pkg/logger"
)

const (
	CodeForbiddenOrigin      = "forbidden_origin"
	CodeUnsupportedMediaType = "unsupported_media_type"
	CodeRateLimited          = "rate_limited"
	CodeInvalidJSON          = "invalid_json"
	CodeInvalidModel         = "invalid_model"
	CodeContentPolicy        = "content_policy"
	CodeUpstreamError        = "upstream_error"
	CodeMissingAPIKey        = "missing_api_key"
	CodeInternalError        = "internal_error"

	codeOK = "ok"
)

// apiError is the single shape every rejection takes before it is written.
type apiError struct {
	Status     int
	Code       string
	Message    string
	RetryAfter int
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

func badRequest(code, format string, args ...interface{}) *apiError {
	return &apiError{Status: http.StatusBadRequest, Code: code, Message: fmt.Sprintf(format, args...)}
}

// toAPIError maps package errors onto HTTP responses. Anything unrecognized
// becomes a 500 with a generic message.
func toAPIError(err error) *apiError {
	var (
		ae *apiError
		ve *coerce.ValidationError
		gv *guard.Violation
		ue *service.UpstreamError
	)

	switch {
	case errors.As(err, &ae):
		return ae
	case errors.As(err, &ve):
		return &apiError{Status: http.StatusBadRequest, Code: ve.Code, Message: ve.Message}
	case errors.As(err, &gv):
		return &apiError{Status: http.StatusBadRequest, Code: CodeContentPolicy, Message: gv.Reason}
	case errors.As(err, &ue):
		return &apiError{Status: ue.ClientStatus(), Code: CodeUpstreamError, Message: "upstream provider error"}
	case errors.Is(err, service.ErrMissingAPIKey):
		return &apiError{Status: http.StatusInternalServerError, Code: CodeMissingAPIKey, Message: "server is missing its provider credentials"}
	}
	return &apiError{Status: http.StatusInternalServerError, Code: CodeInternalError, Message: "internal server error"}
}

// fail writes err as a JSON error body and aborts the chain.
func (h *ChatHandler) fail(c *gin.Context, err error) {
	ae := toAPIError(err)

	entry := logger.WithFields(logger.Fields{
		"request_id": requestID(c),
		"status":     ae.Status,
		"code":       ae.Code,
	})
	if ae.Status >= http.StatusInternalServerError {
		entry.Errorf("request failed: %v", err)
	} else {
		entry.Debugf("request rejected: %v", err)
	}

	if ae.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(ae.RetryAfter))
	}
	h.metrics.RecordRequest(ae.Code)
	c.AbortWithStatusJSON(ae.Status, model.ErrorResponse{Error: ae.Message, Code: ae.Code})
}

// Recover is a gin.RecoveryFunc that answers panics with the standard JSON
// error body instead of an empty 500.
func (h *ChatHandler) Recover(c *gin.Context, recovered any) {
	logger.WithFields(logger.Fields{"request_id": requestID(c)}).Errorf("panic recovered: %v", recovered)
	if c.Writer.Written() {
		c.Abort()
		return
	}
	h.fail(c, fmt.Errorf("panic: %v", recovered))
}
