package pool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEach_RunsAllItems(t *testing.T) {
	p, err := NewPool("test", IndexPoolConfig(3))
	require.NoError(t, err)
	defer p.Release(time.Second)

	var sum atomic.Int64
	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	err = Each(context.Background(), p, items, func(_ context.Context, v int) {
		sum.Add(int64(v))
	})
	require.NoError(t, err)
	assert.Equal(t, int64(55), sum.Load())
	assert.Equal(t, int64(10), p.Stats().Completed)
}

func TestEach_CancelledContext(t *testing.T) {
	p, err := NewPool("test", IndexPoolConfig(1))
	require.NoError(t, err)
	defer p.Release(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int64
	err = Each(ctx, p, []int{1, 2, 3}, func(context.Context, int) { calls.Add(1) })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls.Load())
}

func TestSubmit_AfterRelease(t *testing.T) {
	p, err := NewPool("test", nil)
	require.NoError(t, err)
	require.NoError(t, p.Release(time.Second))
	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolClosed)
}

func TestSubmit_PanicIsRecovered(t *testing.T) {
	p, err := NewPool("test", IndexPoolConfig(1))
	require.NoError(t, err)
	defer p.Release(time.Second)

	done := make(chan struct{})
	require.NoError(t, p.Submit(func() {
		defer close(done)
		panic("boom")
	}))
	<-done
	assert.Eventually(t, func() bool { return p.Stats().Panics == 1 }, time.Second, 10*time.Millisecond)
}
