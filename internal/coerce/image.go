package coerce

import (
	"net/url"
	"regexp"
	"strings"
)

var dataURLPattern = regexp.MustCompile(`^data:image/(?:png|jpeg);base64,([A-Za-z0-9+/]*={0,2})$`)

// ValidateImageURL accepts http(s) URLs with a host and base64 PNG/JPEG data
// URLs whose decoded size does not exceed maxBytes.
func ValidateImageURL(raw string, maxBytes int) error {
	if raw == "" {
		return invalid(CodeInvalidMessages, "image part is missing its url")
	}

	if strings.HasPrefix(raw, "data:") {
		m := dataURLPattern.FindStringSubmatch(raw)
		if m == nil || m[1] == "" || len(m[1])%4 == 1 {
			return invalid(CodeInvalidMessages, "malformed image data URL")
		}
		if size := DecodedSize(m[1]); size > maxBytes {
			return invalid(CodeImageTooLarge, "image exceeds %d bytes (got %d)", maxBytes, size)
		}
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return invalid(CodeInvalidMessages, "invalid image url")
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if u.Host == "" {
			return invalid(CodeInvalidMessages, "invalid image url")
		}
		return nil
	}
	return invalid(CodeInvalidMessages, "unsupported image url scheme %q", u.Scheme)
}

// DecodedSize is the byte length a base64 payload decodes to, accounting
// for '=' padding.
func DecodedSize(b64 string) int {
	padding := 0
	if strings.HasSuffix(b64, "==") {
		padding = 2
	} else if strings.HasSuffix(b64, "=") {
		padding = 1
	}
	return len(b64)*3/4 - padding
}
