package webhook

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go/v82"

	"gatehouse/contracts/events"
	"gatehouse/internal/entitlement"
)

// subjectMetadataKey is the metadata key the checkout flow stamps on
// subscriptions so later lifecycle events stay linkable to a user.
const subjectMetadataKey = "subject"

// checkoutSession is the subset of a checkout.session object the gateway
// reads. ClientReferenceID carries the subject the frontend passed when it
// created the session.
type checkoutSession struct {
	ID                string            `json:"id"`
	Mode              string            `json:"mode"`
	Customer          string            `json:"customer"`
	Subscription      string            `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

// subscription is the subset of a subscription object the gateway reads.
type subscription struct {
	ID                string `json:"id"`
	Customer          string `json:"customer"`
	Status            string `json:"status"`
	CurrentPeriodEnd  int64  `json:"current_period_end"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
	Items             struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
	Metadata map[string]string `json:"metadata"`
}

// firstPriceID returns the price ID from the first subscription item, which
// is the plan identifier for single-plan subscriptions.
func (s *subscription) firstPriceID() string {
	for _, item := range s.Items.Data {
		if priceID := strings.TrimSpace(item.Price.ID); priceID != "" {
			return priceID
		}
	}
	return ""
}

// translate normalizes a verified provider event into the billing contract.
// handled is false for event types the gateway does not consume, including
// checkout sessions that did not start a subscription.
func translate(event stripe.Event) (evt events.BillingEvent, handled bool, err error) {
	occurredAt := time.Unix(event.Created, 0).UTC()

	switch event.Type {
	case "checkout.session.completed":
		var session checkoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return events.BillingEvent{}, false, fmt.Errorf("decode checkout.session: %w", err)
		}
		if session.Mode != "subscription" {
			return events.BillingEvent{}, false, nil
		}
		subject := strings.TrimSpace(session.ClientReferenceID)
		if subject == "" {
			subject = strings.TrimSpace(session.Metadata[subjectMetadataKey])
		}
		return events.BillingEvent{
			ProviderEventID: event.ID,
			Type:            events.TypeCheckoutCompleted,
			OccurredAt:      occurredAt,
			Subscription: events.SubscriptionSnapshot{
				Subject:        subject,
				CustomerID:     strings.TrimSpace(session.Customer),
				SubscriptionID: strings.TrimSpace(session.Subscription),
				State:          string(entitlement.StateActive),
			},
		}, true, nil

	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return events.BillingEvent{}, false, fmt.Errorf("decode subscription: %w", err)
		}
		state := sub.Status
		if event.Type == "customer.subscription.deleted" {
			state = string(entitlement.StateCanceled)
		}
		var periodEnd time.Time
		if sub.CurrentPeriodEnd > 0 {
			periodEnd = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		}
		return events.BillingEvent{
			ProviderEventID: event.ID,
			Type:            subscriptionEventType(event.Type),
			OccurredAt:      occurredAt,
			Subscription: events.SubscriptionSnapshot{
				Subject:           strings.TrimSpace(sub.Metadata[subjectMetadataKey]),
				CustomerID:        strings.TrimSpace(sub.Customer),
				SubscriptionID:    sub.ID,
				Plan:              sub.firstPriceID(),
				State:             state,
				CurrentPeriodEnd:  periodEnd,
				CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
			},
		}, true, nil

	default:
		return events.BillingEvent{}, false, nil
	}
}

func subscriptionEventType(t stripe.EventType) string {
	switch t {
	case "customer.subscription.created":
		return events.TypeSubscriptionCreated
	case "customer.subscription.deleted":
		return events.TypeSubscriptionDeleted
	default:
		return events.TypeSubscriptionUpdated
	}
}

// statusFrom projects a billing event onto the mirror row it implies.
func statusFrom(evt events.BillingEvent) entitlement.Status {
	return entitlement.Status{
		Subject:           evt.Subscription.Subject,
		CustomerID:        evt.Subscription.CustomerID,
		SubscriptionID:    evt.Subscription.SubscriptionID,
		Plan:              evt.Subscription.Plan,
		State:             entitlement.State(evt.Subscription.State),
		CurrentPeriodEnd:  evt.Subscription.CurrentPeriodEnd,
		CancelAtPeriodEnd: evt.Subscription.CancelAtPeriodEnd,
		UpdatedAt:         evt.OccurredAt,
	}
}
