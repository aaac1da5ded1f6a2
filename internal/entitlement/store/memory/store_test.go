package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"gatehouse/internal/entitlement"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *Store
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = New()
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) TestGet() {
	ctx := context.Background()

	s.Run("returns nil for unknown subject", func() {
		status, err := s.store.Get(ctx, "nobody")
		s.Require().NoError(err)
		s.Nil(status)
	})

	s.Run("returns the stored status", func() {
		stored := entitlement.Status{
			Subject:   "user-1",
			Plan:      "pro",
			State:     entitlement.StateActive,
			UpdatedAt: time.Now(),
		}
		s.Require().NoError(s.store.Upsert(ctx, stored))

		status, err := s.store.Get(ctx, "user-1")
		s.Require().NoError(err)
		s.Require().NotNil(status)
		s.Equal(stored, *status)
	})

	s.Run("returned status is a copy", func() {
		s.Require().NoError(s.store.Upsert(ctx, entitlement.Status{
			Subject: "user-2",
			State:   entitlement.StateActive,
		}))

		first, err := s.store.Get(ctx, "user-2")
		s.Require().NoError(err)
		first.State = entitlement.StateCanceled

		second, err := s.store.Get(ctx, "user-2")
		s.Require().NoError(err)
		s.Equal(entitlement.StateActive, second.State)
	})
}

func (s *MemoryStoreSuite) TestGetByCustomerID() {
	ctx := context.Background()

	s.Run("returns nil for unknown customer", func() {
		status, err := s.store.GetByCustomerID(ctx, "cus_unknown")
		s.Require().NoError(err)
		s.Nil(status)
	})

	s.Run("finds the subject bound to a customer", func() {
		s.Require().NoError(s.store.Upsert(ctx, entitlement.Status{
			Subject:    "user-1",
			CustomerID: "cus_123",
			State:      entitlement.StateActive,
		}))

		status, err := s.store.GetByCustomerID(ctx, "cus_123")
		s.Require().NoError(err)
		s.Require().NotNil(status)
		s.Equal("user-1", status.Subject)
	})
}

func (s *MemoryStoreSuite) TestUpsert() {
	ctx := context.Background()

	s.Run("replaces an existing record", func() {
		s.Require().NoError(s.store.Upsert(ctx, entitlement.Status{
			Subject: "user-1",
			State:   entitlement.StateTrialing,
		}))
		s.Require().NoError(s.store.Upsert(ctx, entitlement.Status{
			Subject: "user-1",
			State:   entitlement.StateCanceled,
		}))

		status, err := s.store.Get(ctx, "user-1")
		s.Require().NoError(err)
		s.Equal(entitlement.StateCanceled, status.State)
	})
}
