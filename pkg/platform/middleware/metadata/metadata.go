// Package metadata records who is calling: client IP and user agent, stored
// in the request context for audit events, rate-limit keys, and the device
// label on the session endpoint.
package metadata

import (
	"net/http"
	"strings"

	"gatehouse/pkg/requestcontext"
)

// ClientMetadata stores the client IP and User-Agent in the context. Mount it
// before anything that logs or audits.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(),
			ClientIPFromRequest(r), r.Header.Get("User-Agent"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIPFromRequest resolves the originating client IP behind proxies:
// first hop of X-Forwarded-For, then X-Real-IP, then RemoteAddr with its
// port stripped.
func ClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// The first entry is the client; the rest are intermediaries.
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if addr := r.RemoteAddr; addr != "" {
		// host:port for IPv4, [host]:port for IPv6; cut at the last colon.
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return addr[:idx]
		}
		return addr
	}
	return "unknown"
}
