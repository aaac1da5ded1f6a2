// Package audit records access decisions for operational visibility. Events
// flow through a bounded in-process buffer to a sink; the trail observes the
// gate and must never slow it down or change its answers.
package audit

import (
	"context"
	"time"
)

// Action classifies an access event for sampling and downstream routing.
type Action string

const (
	ActionAllow                  Action = "gate.allow"
	ActionRedirectToSignIn       Action = "gate.redirect.sign_in"
	ActionRedirectToSubscription Action = "gate.redirect.subscription_required"
)

// Event is one access decision. Keep it transport-agnostic so sinks can
// fan out to Kafka, logs or test buffers.
type Event struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Action      Action    `json:"action"`
	Subject     string    `json:"subject,omitempty"`
	Path        string    `json:"path,omitempty"`
	Destination string    `json:"destination,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
	ClientIP    string    `json:"client_ip,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	Device      string    `json:"device,omitempty"`
}

// Sink receives events drained from the buffer by the worker.
type Sink interface {
	Write(ctx context.Context, event Event) error
}
