package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_KeepsOrder(t *testing.T) {
	inputs := []int{5, 4, 3, 2, 1}
	out, err := Map(context.Background(), inputs, DefaultPoolConfig().WithWorkers(4), func(ctx context.Context, i int) (int, error) {
		time.Sleep(time.Duration(i) * time.Millisecond)
		return i * 2, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int{10, 8, 6, 4, 2}, out)
}

func TestMap_Empty(t *testing.T) {
	out, err := Map(context.Background(), nil, PoolConfig{}, func(ctx context.Context, i int) (int, error) {
		return i, nil
	})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestMap_BoundsConcurrency(t *testing.T) {
	var running, peak atomic.Int64
	inputs := make([]int, 32)

	_, err := Map(context.Background(), inputs, PoolConfig{MaxWorkers: 3}, func(ctx context.Context, i int) (int, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		running.Add(-1)
		return i, nil
	})

	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int64(3))
}

func TestMap_FirstErrorCancelsRemaining(t *testing.T) {
	boom := errors.New("boom")
	var started atomic.Int64

	inputs := make([]int, 100)
	for i := range inputs {
		inputs[i] = i
	}
	_, err := Map(context.Background(), inputs, PoolConfig{MaxWorkers: 1}, func(ctx context.Context, i int) (int, error) {
		started.Add(1)
		if i == 3 {
			return 0, boom
		}
		return i, nil
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(4), started.Load())
}

func TestMap_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Map(ctx, []int{1, 2}, DefaultPoolConfig(), func(ctx context.Context, i int) (int, error) {
		return i, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPoolConfig_WithWorkers(t *testing.T) {
	assert.Equal(t, 3, DefaultPoolConfig().WithWorkers(3).MaxWorkers)
	assert.Equal(t, DefaultPoolConfig().MaxWorkers, DefaultPoolConfig().WithWorkers(0).MaxWorkers)

	cfg := DefaultPoolConfig()
	assert.GreaterOrEqual(t, cfg.MaxWorkers, 2)
	assert.LessOrEqual(t, cfg.MaxWorkers, 8)
}
