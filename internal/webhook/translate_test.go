package webhook

import (
	"encoding/json"
	"testing"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stretchr/testify/require"

	"gatehouse/contracts/events"
	"gatehouse/internal/entitlement"
)

func providerEvent(t *testing.T, id string, eventType stripe.EventType, object map[string]any) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	return stripe.Event{
		ID:      id,
		Type:    eventType,
		Created: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Unix(),
		Data:    &stripe.EventData{Raw: raw},
	}
}

func TestTranslateCheckoutCompleted(t *testing.T) {
	t.Run("subscription checkout binds the subject", func(t *testing.T) {
		event := providerEvent(t, "evt_1", "checkout.session.completed", map[string]any{
			"id":                  "cs_1",
			"mode":                "subscription",
			"customer":            "cus_123",
			"subscription":        "sub_123",
			"client_reference_id": "user-1",
		})

		evt, handled, err := translate(event)
		require.NoError(t, err)
		require.True(t, handled)
		require.Equal(t, events.TypeCheckoutCompleted, evt.Type)
		require.Equal(t, "evt_1", evt.ProviderEventID)
		require.Equal(t, "user-1", evt.Subscription.Subject)
		require.Equal(t, "cus_123", evt.Subscription.CustomerID)
		require.Equal(t, "sub_123", evt.Subscription.SubscriptionID)
		require.Equal(t, string(entitlement.StateActive), evt.Subscription.State)
		require.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), evt.OccurredAt)
	})

	t.Run("subject falls back to session metadata", func(t *testing.T) {
		event := providerEvent(t, "evt_2", "checkout.session.completed", map[string]any{
			"id":       "cs_2",
			"mode":     "subscription",
			"customer": "cus_123",
			"metadata": map[string]any{"subject": "user-2"},
		})

		evt, handled, err := translate(event)
		require.NoError(t, err)
		require.True(t, handled)
		require.Equal(t, "user-2", evt.Subscription.Subject)
	})

	t.Run("one-time payment checkout is not handled", func(t *testing.T) {
		event := providerEvent(t, "evt_3", "checkout.session.completed", map[string]any{
			"id":   "cs_3",
			"mode": "payment",
		})

		_, handled, err := translate(event)
		require.NoError(t, err)
		require.False(t, handled)
	})

	t.Run("malformed session payload is an error", func(t *testing.T) {
		event := stripe.Event{
			ID:   "evt_4",
			Type: "checkout.session.completed",
			Data: &stripe.EventData{Raw: json.RawMessage(`{"mode": 42}`)},
		}

		_, _, err := translate(event)
		require.Error(t, err)
	})
}

func TestTranslateSubscriptionLifecycle(t *testing.T) {
	periodEnd := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	object := map[string]any{
		"id":                   "sub_123",
		"customer":             "cus_123",
		"status":               "past_due",
		"current_period_end":   periodEnd.Unix(),
		"cancel_at_period_end": true,
		"items": map[string]any{
			"data": []map[string]any{
				{"price": map[string]any{"id": "price_pro"}},
			},
		},
		"metadata": map[string]any{"subject": "user-1"},
	}

	t.Run("updated carries the provider state", func(t *testing.T) {
		event := providerEvent(t, "evt_5", "customer.subscription.updated", object)

		evt, handled, err := translate(event)
		require.NoError(t, err)
		require.True(t, handled)
		require.Equal(t, events.TypeSubscriptionUpdated, evt.Type)
		require.Equal(t, "user-1", evt.Subscription.Subject)
		require.Equal(t, "price_pro", evt.Subscription.Plan)
		require.Equal(t, "past_due", evt.Subscription.State)
		require.Equal(t, periodEnd, evt.Subscription.CurrentPeriodEnd)
		require.True(t, evt.Subscription.CancelAtPeriodEnd)
	})

	t.Run("created maps to its own contract type", func(t *testing.T) {
		event := providerEvent(t, "evt_6", "customer.subscription.created", object)

		evt, handled, err := translate(event)
		require.NoError(t, err)
		require.True(t, handled)
		require.Equal(t, events.TypeSubscriptionCreated, evt.Type)
	})

	t.Run("deleted forces the canceled state", func(t *testing.T) {
		event := providerEvent(t, "evt_7", "customer.subscription.deleted", object)

		evt, handled, err := translate(event)
		require.NoError(t, err)
		require.True(t, handled)
		require.Equal(t, events.TypeSubscriptionDeleted, evt.Type)
		require.Equal(t, string(entitlement.StateCanceled), evt.Subscription.State)
	})

	t.Run("missing period end stays zero", func(t *testing.T) {
		event := providerEvent(t, "evt_8", "customer.subscription.updated", map[string]any{
			"id":       "sub_456",
			"customer": "cus_456",
			"status":   "active",
		})

		evt, handled, err := translate(event)
		require.NoError(t, err)
		require.True(t, handled)
		require.True(t, evt.Subscription.CurrentPeriodEnd.IsZero())
		require.Empty(t, evt.Subscription.Plan)
	})
}

func TestTranslateUnknownType(t *testing.T) {
	event := providerEvent(t, "evt_9", "invoice.paid", map[string]any{"id": "in_1"})

	_, handled, err := translate(event)
	require.NoError(t, err)
	require.False(t, handled)
}

func TestStatusFrom(t *testing.T) {
	occurred := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	evt := events.BillingEvent{
		Type:       events.TypeSubscriptionUpdated,
		OccurredAt: occurred,
		Subscription: events.SubscriptionSnapshot{
			Subject:           "user-1",
			CustomerID:        "cus_123",
			SubscriptionID:    "sub_123",
			Plan:              "price_pro",
			State:             "active",
			CancelAtPeriodEnd: true,
		},
	}

	status := statusFrom(evt)
	require.Equal(t, "user-1", status.Subject)
	require.Equal(t, entitlement.StateActive, status.State)
	require.Equal(t, "price_pro", status.Plan)
	require.True(t, status.CancelAtPeriodEnd)
	require.Equal(t, occurred, status.UpdatedAt)
}
