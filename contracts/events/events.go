// Package events defines the billing event contract published by the
// gateway and consumed by downstream services. The module is dependency-free
// so consumers can import it without pulling in the gateway's stack.
package events

import "time"

// TopicBilling is the Kafka topic carrying normalized billing events.
const TopicBilling = "gatehouse.billing.events"

// Event types emitted on TopicBilling. Provider-specific event names are
// translated to these before publishing.
const (
	TypeCheckoutCompleted   = "billing.checkout.completed"
	TypeSubscriptionCreated = "billing.subscription.created"
	TypeSubscriptionUpdated = "billing.subscription.updated"
	TypeSubscriptionDeleted = "billing.subscription.deleted"
)

// BillingEvent is the normalized envelope for a payment-provider event.
// ProviderEventID is the provider's delivery identifier and doubles as the
// idempotency key for consumers.
type BillingEvent struct {
	ProviderEventID string               `json:"provider_event_id"`
	Type            string               `json:"type"`
	OccurredAt      time.Time            `json:"occurred_at"`
	Subscription    SubscriptionSnapshot `json:"subscription"`
}

// SubscriptionSnapshot is the subscription state carried by a billing event.
// Subject is the gateway-side user identifier the subscription belongs to.
type SubscriptionSnapshot struct {
	Subject           string    `json:"subject"`
	CustomerID        string    `json:"customer_id"`
	SubscriptionID    string    `json:"subscription_id"`
	Plan              string    `json:"plan,omitempty"`
	State             string    `json:"state"`
	CurrentPeriodEnd  time.Time `json:"current_period_end"`
	CancelAtPeriodEnd bool      `json:"cancel_at_period_end"`
}

// Key returns the Kafka partition key for the event. Events for the same
// subject land on the same partition so consumers observe them in order;
// events not yet bound to a subject partition by provider customer instead.
func (e BillingEvent) Key() string {
	if e.Subscription.Subject != "" {
		return e.Subscription.Subject
	}
	return e.Subscription.CustomerID
}
