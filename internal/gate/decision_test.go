package gate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"gatehouse/internal/identity"
)

func TestDecisionContext(t *testing.T) {
	d := Allow(identity.Identity{Subject: "user-1"}, nil)

	ctx := WithDecision(context.Background(), d)
	assert.Equal(t, d, DecisionFromContext(ctx))

	assert.Equal(t, Decision{}, DecisionFromContext(context.Background()))
}
