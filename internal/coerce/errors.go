package coerce

import "fmt"

const (
	CodeInvalidPrompt   = "invalid_prompt"
	CodeInvalidMessages = "invalid_messages"
	CodeImageTooLarge   = "image_too_large"
)

// ValidationError reports why an untrusted payload was refused.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(code, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}
