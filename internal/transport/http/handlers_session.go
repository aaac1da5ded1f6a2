package httptransport

import (
	"net/http"
	"time"

	"gatehouse/internal/device"
	"gatehouse/internal/entitlement"
	"gatehouse/internal/identity"
	dErrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/platform/httputil"
	"gatehouse/pkg/requestcontext"
)

type sessionResponse struct {
	SignedIn  bool       `json:"signed_in"`
	Subject   string     `json:"subject,omitempty"`
	Email     string     `json:"email,omitempty"`
	SessionID string     `json:"session_id,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Device    string     `json:"device,omitempty"`
}

// handleSession implements GET /api/session: the frontend's signed-in probe.
// A missing or dead token is a normal answer here, not an error.
func (h *handlers) handleSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := identity.TokenFromRequest(r, h.cookieName)
	ident, err := h.resolver.Resolve(ctx, token)
	if err != nil {
		h.logger.ErrorContext(ctx, "session resolution failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	if !ident.Present() {
		httputil.WriteJSON(w, http.StatusOK, sessionResponse{SignedIn: false})
		return
	}

	resp := sessionResponse{
		SignedIn:  true,
		Subject:   ident.Subject,
		Email:     ident.Email,
		SessionID: ident.SessionID,
		Device:    device.ParseUserAgent(requestcontext.UserAgent(ctx)),
	}
	if !ident.ExpiresAt.IsZero() {
		resp.ExpiresAt = &ident.ExpiresAt
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type entitlementResponse struct {
	Subject           string     `json:"subject"`
	Active            bool       `json:"active"`
	State             string     `json:"state"`
	Plan              string     `json:"plan,omitempty"`
	CurrentPeriodEnd  *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end,omitempty"`
}

// handleEntitlements implements GET /api/entitlements: the normalized payload
// the frontend uses to gate features client-side. Unlike /api/session this
// endpoint requires a signed-in caller.
func (h *handlers) handleEntitlements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := identity.TokenFromRequest(r, h.cookieName)
	ident, err := h.resolver.Resolve(ctx, token)
	if err != nil {
		h.logger.ErrorContext(ctx, "entitlement resolution failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if !ident.Present() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "sign in required"))
		return
	}

	status, err := h.entitlements.Check(ctx, ident.Subject)
	if err != nil {
		h.logger.ErrorContext(ctx, "entitlement check failed",
			"request_id", requestcontext.RequestID(ctx),
			"subject", ident.Subject,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, entitlementPayload(ident.Subject, status))
}

// entitlementPayload normalizes an optional status row into the wire shape.
// Subjects without any subscription record report state "none".
func entitlementPayload(subject string, status *entitlement.Status) entitlementResponse {
	if status == nil {
		return entitlementResponse{Subject: subject, Active: false, State: "none"}
	}
	resp := entitlementResponse{
		Subject:           status.Subject,
		Active:            status.Active(),
		State:             string(status.State),
		Plan:              status.Plan,
		CancelAtPeriodEnd: status.CancelAtPeriodEnd,
	}
	if !status.CurrentPeriodEnd.IsZero() {
		resp.CurrentPeriodEnd = &status.CurrentPeriodEnd
	}
	return resp
}
