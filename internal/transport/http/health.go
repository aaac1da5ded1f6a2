package httptransport

import (
	"context"
	"net/http"
	"time"

	"gatehouse/pkg/platform/httputil"
)

const readyCheckTimeout = 2 * time.Second

// handleHealthz answers liveness: the process is up and serving.
func (h *handlers) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz answers readiness: every configured dependency responds. A
// single failing dependency fails the probe so the instance is pulled from
// rotation before it starts answering gate walks with 500s.
func (h *handlers) handleReadyz(w http.ResponseWriter, r *http.Request) {
	failed := map[string]string{}

	for _, check := range h.readyChecks {
		ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
		err := check.Check(ctx)
		cancel()
		if err != nil {
			failed[check.Name] = err.Error()
		}
	}

	if len(failed) > 0 {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "degraded",
			"failed": failed,
		})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
