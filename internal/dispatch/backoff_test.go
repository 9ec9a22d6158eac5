package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffDelayBounds(t *testing.T) {
	tests := []struct {
		n    int
		base time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 32 * time.Second},
		{6, 60 * time.Second}, // 64s nominal, capped
		{10, 60 * time.Second},
		{40, 60 * time.Second}, // shift would overflow without the guard
	}

	for _, tc := range tests {
		// Jitter is random; assert the bounded range, not an exact value.
		for i := 0; i < 50; i++ {
			d := backoffDelay(tc.n, 0)
			assert.GreaterOrEqual(t, d, tc.base, "n=%d", tc.n)
			assert.LessOrEqual(t, d, tc.base+maxJitter, "n=%d", tc.n)
		}
	}
}

func TestBackoffDelayCustomBase(t *testing.T) {
	for i := 0; i < 50; i++ {
		d := backoffDelay(1, 5*time.Second)
		assert.GreaterOrEqual(t, d, 10*time.Second)
		assert.LessOrEqual(t, d, 10*time.Second+maxJitter)
	}
}

func TestSleepHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := sleep(ctx, 10*time.Second)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSleepCompletes(t *testing.T) {
	assert.NoError(t, sleep(context.Background(), time.Millisecond))
}
