package httpx

import (
	"net"
	"net/http"
	"strings"
)

// KeyExtractor is a function that extracts a unique key from the request
// for rate limiting purposes (e.g., IP address, user ID).
type KeyExtractor func(*http.Request) string

// IPKeyExtractor extracts the client IP address from the request.
// It handles X-Forwarded-For and X-Real-IP headers for proxied requests,
// so it must only be used behind a proxy that overwrites them.
func IPKeyExtractor(r *http.Request) string {
	// Check X-Forwarded-For header (comma-separated list)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	return RemoteAddrKeyExtractor(r)
}

// RemoteAddrKeyExtractor uses the peer address only and ignores
// forwarding headers.
func RemoteAddrKeyExtractor(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// ClientIP returns the extractor matching the deployment: header-aware when
// trustProxy is set, peer address otherwise.
func ClientIP(trustProxy bool) KeyExtractor {
	if trustProxy {
		return IPKeyExtractor
	}
	return RemoteAddrKeyExtractor
}
