package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFindRefreshTokenExpiredIsAbsent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.StoreRefreshToken(ctx, "hash1", "d1", "a1", now.Add(-time.Minute)))

	rt, err := s.FindRefreshToken(ctx, "hash1", now)
	require.NoError(t, err)
	require.Nil(t, rt)
}

func TestRotateRefreshTokenSwapsDigestAtomically(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.StoreRefreshToken(ctx, "old", "d1", "a1", now.Add(time.Hour)))
	require.NoError(t, s.RotateRefreshToken(ctx, "old", "new", "d1", "a1", now.Add(2*time.Hour)))

	old, err := s.FindRefreshToken(ctx, "old", now)
	require.NoError(t, err)
	require.Nil(t, old)

	fresh, err := s.FindRefreshToken(ctx, "new", now)
	require.NoError(t, err)
	require.NotNil(t, fresh)
	require.Equal(t, "d1", fresh.DeviceID)
}
