package webhook

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v82/webhook"

	"gatehouse/internal/webhook/metrics"
	dErrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/platform/httputil"
	"gatehouse/pkg/requestcontext"
)

// bodyLimit caps webhook payloads. Provider events are a few KB; anything
// near the limit is not one of ours.
const bodyLimit = 1024 * 1024 // 1 MiB

const signatureHeader = "Stripe-Signature"

type receivedResponse struct {
	Received bool `json:"received"`
}

// Handler verifies provider signatures and hands verified events to the
// Service. Response codes follow the provider's retry contract: 2xx
// acknowledges, 4xx drops, 5xx redelivers.
type Handler struct {
	secret  string
	service *Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler creates the billing webhook endpoint handler.
func NewHandler(secret string, service *Service, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		secret:  secret,
		service: service,
		logger:  logger,
		metrics: m,
	}
}

// ServeHTTP implements POST /webhooks/billing.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if strings.TrimSpace(h.secret) == "" {
		h.reject(w, dErrors.New(dErrors.CodeUnavailable, "webhook secret not configured"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.reject(w, dErrors.New(dErrors.CodeBadRequest, "failed to read request body"))
		return
	}

	sigHeader := r.Header.Get(signatureHeader)
	if strings.TrimSpace(sigHeader) == "" {
		h.reject(w, dErrors.New(dErrors.CodeBadRequest, "missing provider signature"))
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, h.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "webhook signature verification failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		h.reject(w, dErrors.New(dErrors.CodeBadRequest, "invalid provider signature"))
		return
	}

	if err := h.service.Process(ctx, event); err != nil {
		h.logger.ErrorContext(ctx, "billing event processing failed",
			"request_id", requestcontext.RequestID(ctx),
			"event_id", event.ID,
			"type", string(event.Type),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, receivedResponse{Received: true})
}

// reject answers deliveries that never reached processing, counting them
// under their own outcome since no event type is known yet.
func (h *Handler) reject(w http.ResponseWriter, err error) {
	h.metrics.IncEvent("unknown", metrics.OutcomeRejected)
	httputil.WriteError(w, err)
}
