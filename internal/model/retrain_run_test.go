package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrainRunHappyPath(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	run := NewRetrainRun("run-1", start)

	require.NoError(t, run.Advance(RetrainConnecting, start))
	require.NoError(t, run.Advance(RetrainStreaming, start.Add(time.Second)))
	assert.Nil(t, run.FinishedAt)
	assert.Zero(t, run.Duration())

	require.NoError(t, run.Advance(RetrainCompleted, start.Add(time.Minute)))
	require.NotNil(t, run.FinishedAt)
	assert.Equal(t, time.Minute, run.Duration())
	assert.True(t, run.State.Terminal())
}

func TestRetrainRunRejectsIllegalTransitions(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name string
		path []RetrainState
		bad  RetrainState
	}{
		{"idle straight to streaming", nil, RetrainStreaming},
		{"connecting to completed", []RetrainState{RetrainConnecting}, RetrainCompleted},
		{"completed is terminal", []RetrainState{RetrainConnecting, RetrainStreaming, RetrainCompleted}, RetrainFailed},
		{"failed is terminal", []RetrainState{RetrainConnecting, RetrainFailed}, RetrainConnecting},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			run := NewRetrainRun("run", now)
			for _, st := range tc.path {
				require.NoError(t, run.Advance(st, now))
			}
			before := run.State
			assert.Error(t, run.Advance(tc.bad, now))
			assert.Equal(t, before, run.State)
		})
	}
}
