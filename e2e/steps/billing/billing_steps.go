// Package billing holds step definitions for provider webhook scenarios:
// constructing lifecycle events for the current subject and asserting how
// the gateway acknowledges deliveries.
package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cucumber/godog"
	"github.com/google/uuid"
)

// TestContext is the slice of the suite context these steps need.
type TestContext interface {
	CurrentSubject() string
	DeliverBillingEvent(payload []byte) error
	DeliverBillingEventSigned(payload []byte, secret string) error
	LastStatus() int
	ResponseField(path string) (any, error)
}

// RegisterSteps registers billing webhook step definitions.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &billingSteps{tc: tc}

	ctx.Step(`^my subscription is active$`, steps.subscriptionActive)
	ctx.Step(`^my subscription has lapsed$`, steps.subscriptionLapsed)

	ctx.Step(`^the billing provider delivers a "([^"]*)" event for me$`, steps.deliverEvent)
	ctx.Step(`^the billing provider delivers the same event again$`, steps.redeliverEvent)
	ctx.Step(`^the billing provider delivers an event signed with the wrong secret$`, steps.deliverBadSignature)

	ctx.Step(`^the delivery should be acknowledged$`, steps.deliveryAcknowledged)
	ctx.Step(`^the delivery should be rejected$`, steps.deliveryRejected)
}

type billingSteps struct {
	tc TestContext
	// lastPayload remembers the previous delivery for redelivery steps.
	lastPayload []byte
}

// subscriptionActive is a Given: it drives the subject into the entitled
// state through the same webhook path the provider uses, and fails loudly
// when the gateway does not acknowledge.
func (s *billingSteps) subscriptionActive(ctx context.Context) error {
	payload, err := s.subscriptionEvent("customer.subscription.updated", "active")
	if err != nil {
		return err
	}
	if err := s.tc.DeliverBillingEvent(payload); err != nil {
		return err
	}
	return s.deliveryAcknowledged(ctx)
}

func (s *billingSteps) subscriptionLapsed(ctx context.Context) error {
	payload, err := s.subscriptionEvent("customer.subscription.updated", "canceled")
	if err != nil {
		return err
	}
	if err := s.tc.DeliverBillingEvent(payload); err != nil {
		return err
	}
	return s.deliveryAcknowledged(ctx)
}

func (s *billingSteps) deliverEvent(ctx context.Context, eventType string) error {
	var (
		payload []byte
		err     error
	)
	switch eventType {
	case "checkout.session.completed":
		payload, err = s.checkoutEvent()
	default:
		// Lifecycle events carry the provider-side status; deletion is
		// forced to canceled by the gateway regardless.
		payload, err = s.subscriptionEvent(eventType, "active")
	}
	if err != nil {
		return err
	}

	s.lastPayload = payload
	return s.tc.DeliverBillingEvent(payload)
}

func (s *billingSteps) redeliverEvent(ctx context.Context) error {
	if s.lastPayload == nil {
		return fmt.Errorf("no previous delivery to repeat")
	}
	return s.tc.DeliverBillingEvent(s.lastPayload)
}

func (s *billingSteps) deliverBadSignature(ctx context.Context) error {
	payload, err := s.subscriptionEvent("customer.subscription.updated", "active")
	if err != nil {
		return err
	}
	return s.tc.DeliverBillingEventSigned(payload, "whsec_not_the_secret")
}

func (s *billingSteps) deliveryAcknowledged(ctx context.Context) error {
	if s.tc.LastStatus() != http.StatusOK {
		return fmt.Errorf("expected delivery to be acknowledged with 200, got %d", s.tc.LastStatus())
	}
	received, err := s.tc.ResponseField("received")
	if err != nil {
		return err
	}
	if received != true {
		return fmt.Errorf("expected received true, got %v", received)
	}
	return nil
}

func (s *billingSteps) deliveryRejected(ctx context.Context) error {
	if s.tc.LastStatus() != http.StatusBadRequest {
		return fmt.Errorf("expected delivery to be rejected with 400, got %d", s.tc.LastStatus())
	}
	return nil
}

// subscriptionEvent builds a subscription lifecycle event bound to the
// current subject through metadata, the way the checkout flow stamps real
// subscriptions.
func (s *billingSteps) subscriptionEvent(eventType, status string) ([]byte, error) {
	subject := s.tc.CurrentSubject()
	if subject == "" {
		return nil, fmt.Errorf("no signed-in subject to bill, sign in first")
	}

	now := time.Now()
	nonce := uuid.NewString()[:8]
	event := map[string]any{
		"id":      "evt_e2e_" + uuid.NewString(),
		"type":    eventType,
		"created": now.Unix(),
		"data": map[string]any{
			"object": map[string]any{
				"id":                   "sub_e2e_" + nonce,
				"customer":             "cus_e2e_" + nonce,
				"status":               status,
				"cancel_at_period_end": false,
				"current_period_end":   now.Add(30 * 24 * time.Hour).Unix(),
				"items": map[string]any{
					"data": []any{
						map[string]any{"price": map[string]any{"id": "price_e2e_monthly"}},
					},
				},
				"metadata": map[string]any{"subject": subject},
			},
		},
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return payload, nil
}

func (s *billingSteps) checkoutEvent() ([]byte, error) {
	subject := s.tc.CurrentSubject()
	if subject == "" {
		return nil, fmt.Errorf("no signed-in subject to bill, sign in first")
	}

	nonce := uuid.NewString()[:8]
	event := map[string]any{
		"id":      "evt_e2e_" + uuid.NewString(),
		"type":    "checkout.session.completed",
		"created": time.Now().Unix(),
		"data": map[string]any{
			"object": map[string]any{
				"id":                  "cs_e2e_" + nonce,
				"mode":                "subscription",
				"customer":            "cus_e2e_" + nonce,
				"subscription":        "sub_e2e_" + nonce,
				"client_reference_id": subject,
			},
		},
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal checkout event: %w", err)
	}
	return payload, nil
}
