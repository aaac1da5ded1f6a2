package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	dErrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/platform/httputil"
	"gatehouse/pkg/requestcontext"
	"gatehouse/pkg/secrets"
)

const serviceKeyHeader = "X-Service-Key"

// requireServiceKey guards the /internal surface. The key is verified against
// the configured bcrypt hash, so the deployed config never holds the key
// itself.
func (h *handlers) requireServiceKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		key := r.Header.Get(serviceKeyHeader)
		if key == "" {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "service key required"))
			return
		}
		if err := secrets.Verify(key, h.opsKeyHash); err != nil {
			h.logger.WarnContext(ctx, "service key rejected",
				"request_id", requestcontext.RequestID(ctx),
				"client_ip", requestcontext.ClientIP(ctx),
			)
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid service key"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleOpsEntitlement implements GET /internal/entitlements/{subject}:
// the raw mirror row for support tooling.
func (h *handlers) handleOpsEntitlement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := chi.URLParam(r, "subject")

	status, err := h.entitlements.Check(ctx, subject)
	if err != nil {
		h.logger.ErrorContext(ctx, "ops entitlement lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"subject", subject,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if status == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no entitlement record for subject"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, status)
}

// handleOpsRefresh implements POST /internal/entitlements/{subject}/refresh:
// drops the cached entry so the next check reads the source of record. Used
// after manual corrections in the billing system.
func (h *handlers) handleOpsRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := chi.URLParam(r, "subject")

	h.entitlements.Refresh(ctx, subject)

	h.logger.InfoContext(ctx, "entitlement cache refreshed",
		"request_id", requestcontext.RequestID(ctx),
		"subject", subject,
	)
	w.WriteHeader(http.StatusNoContent)
}
