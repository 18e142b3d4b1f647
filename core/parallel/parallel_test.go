package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParallelize_CoversEveryItemOnce(t *testing.T) {
	for _, items := range []int{0, 1, 7, 1000} {
		hits := make([]int32, items)
		Parallelize(items, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&hits[i], 1)
			}
		})
		for i, h := range hits {
			if h != 1 {
				t.Fatalf("items=%d: index %d visited %d times", items, i, h)
			}
		}
	}
}

func TestParallelizeWithThreshold_Sequential(t *testing.T) {
	calls := 0
	ParallelizeWithThreshold(10, 100, func(start, end int) {
		calls++
		assert.Equal(t, 0, start)
		assert.Equal(t, 10, end)
	})
	assert.Equal(t, 1, calls)
}

func TestForEach(t *testing.T) {
	var sum int64
	err := ForEach(context.Background(), 100, 4, func(_ context.Context, i int) error {
		atomic.AddInt64(&sum, int64(i))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4950), sum)
}

func TestForEach_FirstErrorWins(t *testing.T) {
	boom := errors.New("boom")
	err := ForEach(context.Background(), 50, 2, func(_ context.Context, i int) error {
		if i == 3 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestForEach_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls int32
	err := ForEach(ctx, 10, 0, func(_ context.Context, _ int) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, atomic.LoadInt32(&calls))
}
