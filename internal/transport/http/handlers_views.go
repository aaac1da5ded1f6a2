package httptransport

import (
	"net/http"

	"gatehouse/internal/gate"
	"gatehouse/internal/profile"
	"gatehouse/pkg/platform/httputil"
)

// View loaders sit behind the gate's loader middleware, so by the time they
// run the decision in the context is an Allow carrying identity, entitlement
// and profile. They only shape that payload for the frontend shell.

type dashboardResponse struct {
	Subject     string              `json:"subject"`
	Email       string              `json:"email,omitempty"`
	Entitlement entitlementResponse `json:"entitlement"`
	Profile     *dashboardProfile   `json:"profile,omitempty"`
}

type dashboardProfile struct {
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

func (h *handlers) handleDashboard(w http.ResponseWriter, r *http.Request) {
	decision := gate.DecisionFromContext(r.Context())

	httputil.WriteJSON(w, http.StatusOK, dashboardResponse{
		Subject:     decision.Identity.Subject,
		Email:       decision.Identity.Email,
		Entitlement: entitlementPayload(decision.Identity.Subject, decision.Entitlement),
		Profile:     dashboardProfileFrom(decision.Profile),
	})
}

type dashboardSettingsResponse struct {
	Subject     string              `json:"subject"`
	SessionID   string              `json:"session_id,omitempty"`
	Entitlement entitlementResponse `json:"entitlement"`
}

func (h *handlers) handleDashboardSettings(w http.ResponseWriter, r *http.Request) {
	decision := gate.DecisionFromContext(r.Context())

	httputil.WriteJSON(w, http.StatusOK, dashboardSettingsResponse{
		Subject:     decision.Identity.Subject,
		SessionID:   decision.Identity.SessionID,
		Entitlement: entitlementPayload(decision.Identity.Subject, decision.Entitlement),
	})
}

func dashboardProfileFrom(p *profile.Profile) *dashboardProfile {
	if p == nil {
		return nil
	}
	return &dashboardProfile{
		Name:      p.Name,
		Email:     p.Email,
		AvatarURL: p.AvatarURL,
	}
}

type protectedZoneResponse struct {
	Subject     string              `json:"subject"`
	Path        string              `json:"path"`
	Entitlement entitlementResponse `json:"entitlement"`
}

// handleProtectedZone answers for configured protected prefixes that have no
// dedicated loader. The content of these zones lives in the application; the
// gateway only confirms the caller passed the gate.
func (h *handlers) handleProtectedZone(w http.ResponseWriter, r *http.Request) {
	decision := gate.DecisionFromContext(r.Context())

	httputil.WriteJSON(w, http.StatusOK, protectedZoneResponse{
		Subject:     decision.Identity.Subject,
		Path:        r.URL.Path,
		Entitlement: entitlementPayload(decision.Identity.Subject, decision.Entitlement),
	})
}
