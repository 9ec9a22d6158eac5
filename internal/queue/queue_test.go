package queue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRunsJobs(t *testing.T) {
	q := NewMemory(4, 16, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	var done atomic.Int64
	for i := 0; i < 10; i++ {
		require.NoError(t, q.Push(func(context.Context) {
			done.Add(1)
		}))
	}

	require.Eventually(t, func() bool {
		return done.Load() == 10
	}, 5*time.Second, 5*time.Millisecond)
}

func TestMemoryPushAfterStop(t *testing.T) {
	q := NewMemory(1, 1, zerolog.Nop())
	q.Start(context.Background())
	q.Stop()

	err := q.Push(func(context.Context) {})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestMemoryStopWaitsForInFlightJobs(t *testing.T) {
	q := NewMemory(1, 1, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	started := make(chan struct{})
	var finished atomic.Bool
	require.NoError(t, q.Push(func(context.Context) {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
	}))

	<-started
	q.Stop()
	assert.True(t, finished.Load(), "Stop must wait for running jobs")
}
