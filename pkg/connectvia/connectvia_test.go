package connectvia

import (
	"context"
	"errors"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCliPolicyDoesNotRetry(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Cli(), func() error {
		attempts++
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestClusterPolicyRetriesUntilSuccess(t *testing.T) {
	attempts := 0
	policy := Policy{Retry: true, MaxElapsed: backoff.WithMaxRetries(backoff.NewConstantBackOff(0), 5)}

	err := Do(context.Background(), policy, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestClusterPolicyGivesUpAfterMaxRetries(t *testing.T) {
	attempts := 0
	policy := Policy{Retry: true, MaxElapsed: backoff.WithMaxRetries(backoff.NewConstantBackOff(0), 2)}

	err := Do(context.Background(), policy, func() error {
		attempts++
		return errors.New("always fails")
	})
	assert.Error(t, err)
	assert.Equal(t, 3, attempts) // initial attempt + 2 retries
}

func TestDoDefaultsMaxElapsedWhenNil(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Policy{Retry: true}, func() error {
		attempts++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}
