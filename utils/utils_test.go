package utils

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextRetry(t *testing.T) {
	assert.Equal(t, 250*time.Millisecond, NextRetry(0))

	for step := 1; step < 5; step++ {
		delay := NextRetry(step)

		assert.GreaterOrEqual(t, delay, time.Duration(1<<step)*time.Second)
		assert.LessOrEqual(t, delay, time.Duration(2<<step)*time.Second)
	}
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SortedKeys(map[string]int{"c": 1, "a": 2, "b": 3}))
	assert.Empty(t, SortedKeys(map[string]bool{}))
}

func TestGoPool(t *testing.T) {
	pool := NewGoPool("test", 4)

	assert.Equal(t, "test", pool.Name())
	assert.Equal(t, 4, pool.Size())

	var wg sync.WaitGroup
	var done int64

	for i := 0; i < 100; i++ {
		wg.Add(1)
		pool.Schedule(func() {
			atomic.AddInt64(&done, 1)
			wg.Done()
		})
	}

	wg.Wait()

	assert.Equal(t, int64(100), atomic.LoadInt64(&done))
}

func TestGoPoolScheduleTimeout(t *testing.T) {
	pool := NewGoPool("test", 1)

	block := make(chan struct{})
	defer close(block)

	// occupy the only worker and the queue slot
	pool.Schedule(func() { <-block })
	pool.Schedule(func() { <-block })

	err := pool.ScheduleTimeout(50*time.Millisecond, func() {})

	assert.ErrorIs(t, err, ErrScheduleTimeout)
}

func TestGracefulSignalsShutdown(t *testing.T) {
	signals := NewGracefulSignals(time.Second)

	calls := make([]string, 0)

	signals.Handle(func(ctx context.Context) error {
		calls = append(calls, "first")
		return errors.New("failed")
	})

	signals.Handle(func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		require.True(t, ok)

		calls = append(calls, "second")
		return nil
	})

	signals.Shutdown()
	signals.Shutdown()

	assert.Equal(t, []string{"first", "second"}, calls)
}
