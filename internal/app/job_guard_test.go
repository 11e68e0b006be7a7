package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalJobGuardSingleFlight(t *testing.T) {
	guard := NewLocalJobGuard()
	ctx := context.Background()

	release, err := guard.TryAcquire(ctx, "run-1")
	require.NoError(t, err)

	_, err = guard.TryAcquire(ctx, "run-2")
	assert.ErrorIs(t, err, ErrRetrainInProgress)

	release()
	release()

	release3, err := guard.TryAcquire(ctx, "run-3")
	require.NoError(t, err)

	// A late release from an earlier holder must not free the current one.
	release()
	_, err = guard.TryAcquire(ctx, "run-4")
	assert.ErrorIs(t, err, ErrRetrainInProgress)
	release3()
}

func TestNoopJobGuardAdmitsEveryone(t *testing.T) {
	guard := NewNoopJobGuard()
	for i := 0; i < 3; i++ {
		release, err := guard.TryAcquire(context.Background(), "run")
		require.NoError(t, err)
		release()
	}
}
