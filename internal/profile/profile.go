// Package profile fetches display data for a signed-in subject. The gate
// dispatches this alongside the entitlement check when assembling the
// dashboard payload; it never influences the access decision itself.
package profile

import "context"

// Profile is the display data the frontend shows for a signed-in user.
type Profile struct {
	Subject   string `json:"subject"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Fetcher loads the profile for a subject. A (nil, nil) return means no
// profile exists, which is a valid answer; errors are infrastructure
// failures.
type Fetcher interface {
	Fetch(ctx context.Context, subject string) (*Profile, error)
}
