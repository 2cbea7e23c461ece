package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestStore opens an in-memory sqlite database and runs every migration,
// giving each test its own isolated schema.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return New(db)
}

func TestUpsertAgentCreateThenUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.UpsertAgent(ctx, "a1", "first", "hash1", "t1")
	require.NoError(t, err)
	require.Equal(t, "first", a.DisplayName)

	a, err = s.UpsertAgent(ctx, "a1", "second", "hash1", "t1")
	require.NoError(t, err)
	require.Equal(t, "second", a.DisplayName)
}

func TestUpsertAgentRejectsMismatchedSecret(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertAgent(ctx, "a1", "first", "hash1", "t1")
	require.NoError(t, err)

	_, err = s.UpsertAgent(ctx, "a1", "first", "hash2", "t1")
	require.Error(t, err)
}

func TestFindAgentByIDMissingReturnsNilNil(t *testing.T) {
	s := newTestStore(t)
	a, err := s.FindAgentByID(context.Background(), "nope")
	require.NoError(t, err)
	require.Nil(t, a)
}

func TestAgentsByTenant(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.UpsertAgent(ctx, "a1", "one", "h", "tenant-a")
	require.NoError(t, err)
	_, err = s.UpsertAgent(ctx, "a2", "two", "h", "tenant-b")
	require.NoError(t, err)

	agents, err := s.AgentsByTenant(ctx, "tenant-a")
	require.NoError(t, err)
	require.Len(t, agents, 1)
	require.Equal(t, "a1", agents[0].ID)
}
