package identity

import (
	"net/http"
	"strings"
)

// TokenFromRequest extracts the raw session token from a request. The session
// cookie takes precedence (browser traffic); the Authorization header covers
// API clients. Returns "" when neither is present.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok && token != "" {
		return strings.TrimSpace(token)
	}

	return ""
}
