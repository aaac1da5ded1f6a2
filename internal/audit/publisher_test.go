package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatehouse/pkg/requestcontext"
)

const testUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func TestPublisher_RecordEnrichesFromContext(t *testing.T) {
	pub := NewPublisher(WithBufferSize(10))

	ctx := requestcontext.WithRequestID(context.Background(), "req-1")
	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.7", testUserAgent)

	pub.Record(ctx, Event{
		Action: ActionRedirectToSignIn,
		Path:   "/dashboard",
		Reason: "unauthenticated",
	})

	select {
	case event := <-pub.Events():
		assert.NotEmpty(t, event.ID)
		assert.False(t, event.Timestamp.IsZero())
		assert.Equal(t, "req-1", event.RequestID)
		assert.Equal(t, "203.0.113.7", event.ClientIP)
		assert.Equal(t, testUserAgent, event.UserAgent)
		assert.Contains(t, event.Device, "Chrome")
	default:
		t.Fatal("expected one event in the buffer")
	}
}

func TestPublisher_DropsWhenBufferFull(t *testing.T) {
	pub := NewPublisher(WithBufferSize(1))
	ctx := context.Background()

	pub.Record(ctx, Event{Action: ActionRedirectToSignIn})
	pub.Record(ctx, Event{Action: ActionRedirectToSignIn})

	require.Len(t, pub.Events(), 1)
}

func TestPublisher_SamplerDropsAllows(t *testing.T) {
	sampler := NewSampler(1.0)
	sampler.SetRate(ActionAllow, 0)
	pub := NewPublisher(WithBufferSize(10), WithSampler(sampler))
	ctx := context.Background()

	pub.Record(ctx, Event{Action: ActionAllow, Subject: "user-1"})
	require.Empty(t, pub.Events())

	pub.Record(ctx, Event{Action: ActionRedirectToSubscription, Subject: "user-1"})
	require.Len(t, pub.Events(), 1)
}

func TestPublisher_KeepsProvidedFields(t *testing.T) {
	pub := NewPublisher(WithBufferSize(1))

	ctx := requestcontext.WithRequestID(context.Background(), "req-ctx")
	pub.Record(ctx, Event{
		Action:    ActionAllow,
		Subject:   "user-1",
		RequestID: "req-explicit",
	})

	event := <-pub.Events()
	assert.Equal(t, "req-explicit", event.RequestID)
	assert.Equal(t, "user-1", event.Subject)
}
