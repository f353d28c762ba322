package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// Unknown is the shared bucket for requests that carry no usable address.
const Unknown = "unknown"

// ClientID picks the first X-Forwarded-For hop, then the peer address. The
// forwarded header is trusted as-is, which is only safe behind a proxy that
// overwrites it.
func ClientID(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
			return host
		}
		return r.RemoteAddr
	}

	return Unknown
}
