package gate

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"gatehouse/internal/identity"
	dErrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/platform/httputil"
	"gatehouse/pkg/requestcontext"
)

// Middleware guards every route mounted behind it. Redirect decisions become
// a 302 for browsers and a coded JSON error for API callers; infrastructure
// failures surface as the generic error envelope, never as a redirect.
// Allowed requests continue with identity and decision in the context.
func Middleware(evaluator *Evaluator, cookieName string, logger *slog.Logger) func(http.Handler) http.Handler {
	return guard(evaluator.Evaluate, cookieName, logger)
}

// LoaderMiddleware guards view routes whose handlers render the full Allow
// payload. It runs the fan-out walk, so allowed requests reach the handler
// with entitlement and profile already loaded into the decision.
func LoaderMiddleware(evaluator *Evaluator, cookieName string, logger *slog.Logger) func(http.Handler) http.Handler {
	return guard(evaluator.Load, cookieName, logger)
}

func guard(evaluate func(context.Context, string, string) (Decision, error), cookieName string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := identity.TokenFromRequest(r, cookieName)
			decision, err := evaluate(ctx, token, r.URL.Path)
			if err != nil {
				logger.ErrorContext(ctx, "gate evaluation failed",
					"request_id", requestcontext.RequestID(ctx),
					"path", r.URL.Path,
					"error", err,
				)
				httputil.WriteError(w, err)
				return
			}

			if !decision.Allowed() {
				writeRedirect(w, r, decision)
				return
			}

			ctx = identity.WithIdentity(ctx, decision.Identity)
			ctx = WithDecision(ctx, decision)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeRedirect translates a redirect decision for the caller: browsers get
// a Location, API clients get the coded error matching the reason.
func writeRedirect(w http.ResponseWriter, r *http.Request, d Decision) {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		switch d.Reason {
		case ReasonNotEntitled:
			httputil.WriteError(w, dErrors.New(dErrors.CodePaymentRequired, "active subscription required"))
		default:
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "sign in required"))
		}
		return
	}
	http.Redirect(w, r, d.Destination, http.StatusFound)
}
