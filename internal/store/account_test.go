package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCreateAndFindAccountByEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.CreateAccount(ctx, "acc1", "a@example.com", "google")
	require.NoError(t, err)
	require.Equal(t, "free", a.Plan)

	found, err := s.FindAccountByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, "acc1", found.ID)
}

func TestUpsertSessionReplacesPrior(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()
	_, err := s.CreateAccount(ctx, "acc1", "a@example.com", "google")
	require.NoError(t, err)

	require.NoError(t, s.UpsertSession(ctx, "hash1", "acc1", now.Add(time.Hour)))
	require.NoError(t, s.UpsertSession(ctx, "hash2", "acc1", now.Add(time.Hour)))

	acc, err := s.ResolveSession(ctx, "hash1", now)
	require.NoError(t, err)
	require.Nil(t, acc, "the first session digest must have been replaced")

	acc, err = s.ResolveSession(ctx, "hash2", now)
	require.NoError(t, err)
	require.NotNil(t, acc)
	require.Equal(t, "acc1", acc.ID)
}

func TestAccountAgentLinkingAndCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateAccount(ctx, "acc1", "a@example.com", "google")
	require.NoError(t, err)

	require.NoError(t, s.LinkAccountAgent(ctx, "acc1", "a1"))
	require.NoError(t, s.LinkAccountAgent(ctx, "acc1", "a1")) // idempotent

	linked, err := s.IsAgentLinked(ctx, "acc1", "a1")
	require.NoError(t, err)
	require.True(t, linked)

	count, err := s.CountAccountAgents(ctx, "acc1")
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestReplaceAccountAgents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateAccount(ctx, "acc1", "a@example.com", "google")
	require.NoError(t, err)
	require.NoError(t, s.LinkAccountAgent(ctx, "acc1", "old-agent"))

	require.NoError(t, s.ReplaceAccountAgents(ctx, "acc1", []string{"a1", "a2"}))

	count, err := s.CountAccountAgents(ctx, "acc1")
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	linked, err := s.IsAgentLinked(ctx, "acc1", "old-agent")
	require.NoError(t, err)
	require.False(t, linked)
}

func TestUpdateAccountBilling(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateAccount(ctx, "acc1", "a@example.com", "google")
	require.NoError(t, err)

	require.NoError(t, s.UpdateAccountBilling(ctx, "acc1", "cus_1", "sub_1", "pro", "active"))

	a, err := s.FindAccountByID(ctx, "acc1")
	require.NoError(t, err)
	require.Equal(t, "pro", a.Plan)
	require.Equal(t, "active", a.SubscriptionStatus)
	require.Equal(t, "cus_1", a.StripeCustomerID)

	byCustomer, err := s.FindAccountByStripeCustomerID(ctx, "cus_1")
	require.NoError(t, err)
	require.Equal(t, "acc1", byCustomer.ID)
}
