package audit_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatehouse/internal/audit"
	"gatehouse/internal/audit/sink/memory"
)

func TestWorker_DrainsInboxToSink(t *testing.T) {
	inbox := make(chan audit.Event, 10)
	sink := memory.New()
	worker := audit.NewWorker(inbox, sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	inbox <- audit.Event{ID: "a", Action: audit.ActionAllow}
	inbox <- audit.Event{ID: "b", Action: audit.ActionRedirectToSignIn}
	inbox <- audit.Event{ID: "c", Action: audit.ActionRedirectToSubscription}

	time.Sleep(100 * time.Millisecond)

	events := sink.Events()
	require.Len(t, events, 3)
	assert.Equal(t, "a", events[0].ID)
	assert.Equal(t, audit.ActionRedirectToSubscription, events[2].Action)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWorker_SinkFailureDoesNotStopConsumption(t *testing.T) {
	inbox := make(chan audit.Event, 10)
	sink := memory.New()
	worker := audit.NewWorker(inbox, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	sink.FailWith(errors.New("disk full"))
	inbox <- audit.Event{ID: "lost", Action: audit.ActionAllow}
	time.Sleep(100 * time.Millisecond)

	sink.FailWith(nil)
	inbox <- audit.Event{ID: "kept", Action: audit.ActionAllow}
	time.Sleep(100 * time.Millisecond)

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "kept", events[0].ID)
}

func TestWorker_DrainsBufferedEventsOnShutdown(t *testing.T) {
	inbox := make(chan audit.Event, 10)
	for i := range 5 {
		inbox <- audit.Event{ID: fmt.Sprintf("event-%d", i), Action: audit.ActionAllow}
	}

	sink := memory.New()
	worker := audit.NewWorker(inbox, sink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := worker.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, sink.Events(), 5)
}
