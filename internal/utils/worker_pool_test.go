package utils

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_RunsEveryTask(t *testing.T) {
	pool := NewWorkerPool(3)
	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, pool.Submit(context.Background(), func() { ran.Add(1) }))
	}
	pool.Shutdown()

	assert.Equal(t, int32(10), ran.Load())
}

func TestMap_KeepsOrder(t *testing.T) {
	ids := []string{"1", "2", "3", "4", "5"}

	out, err := Map(context.Background(), 2, ids, func(_ context.Context, id string) (string, error) {
		time.Sleep(time.Millisecond)
		return "org-" + id, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"org-1", "org-2", "org-3", "org-4", "org-5"}, out)
}

func TestMap_BoundsConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	items := make([]int, 12)

	_, err := Map(context.Background(), 3, items, func(context.Context, int) (int, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return 0, nil
	})

	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestMap_JoinsErrors(t *testing.T) {
	notFound := errors.New("not found")

	out, err := Map(context.Background(), 4, []int{1, 2, 3}, func(_ context.Context, n int) (string, error) {
		if n == 2 {
			return "", notFound
		}
		return fmt.Sprint(n), nil
	})

	assert.ErrorIs(t, err, notFound)
	assert.Equal(t, []string{"1", "", "3"}, out)
}

func TestMap_Empty(t *testing.T) {
	out, err := Map(context.Background(), 4, nil, func(context.Context, int) (int, error) { return 1, nil })

	require.NoError(t, err)
	assert.Empty(t, out)
}
