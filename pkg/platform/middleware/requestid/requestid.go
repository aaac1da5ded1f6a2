// Package requestid assigns each request a stable identifier that travels
// through logs, audit events, and downstream calls.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"gatehouse/pkg/requestcontext"
)

// Header is the inbound/outbound request ID header.
const Header = "X-Request-Id"

// Middleware reuses the caller-provided request ID when present (so IDs
// correlate across service hops) and mints a UUID otherwise. The ID is stored
// in the context and echoed on the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(Header)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set(Header, requestID)

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
