package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"agentrelay/internal/apierr"
)

func TestWithRetrySucceedsOnSecondAttemptAfterTransientError(t *testing.T) {
	attempts := 0
	err := withRetry(func() error {
		attempts++
		if attempts == 1 {
			return errors.New("database is locked")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
}

func TestWithRetryGivesUpAfterSecondTransientFailure(t *testing.T) {
	attempts := 0
	err := withRetry(func() error {
		attempts++
		return errors.New("database is locked")
	})
	require.Error(t, err)
	require.Equal(t, 2, attempts)
}

func TestWithRetryNeverRetriesDomainErrors(t *testing.T) {
	attempts := 0
	err := withRetry(func() error {
		attempts++
		return apierr.New(apierr.AgentSecretMismatch, "agent secret does not match stored secret")
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts, "a domain/validation error must not be retried")
}
