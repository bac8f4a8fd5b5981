package llm

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slowEmbedder struct {
	calls atomic.Int32
	gate  chan struct{}
}

func (s *slowEmbedder) Name() string { return "slow" }

func (s *slowEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := s.EmbedSingle(ctx, t)
		out[i] = v
	}
	return out, nil
}

func (s *slowEmbedder) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	s.calls.Add(1)
	<-s.gate
	return []float32{float32(len(text))}, nil
}

func TestCachedEmbeddingProvider_CoalescesConcurrentCalls(t *testing.T) {
	inner := &slowEmbedder{gate: make(chan struct{})}
	p := NewCachedEmbeddingProvider(inner, nil, nil)

	const n = 8
	var wg sync.WaitGroup
	results := make([][]float32, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := p.EmbedSingle(context.Background(), "однаковий запит")
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	// 等待第一个调用进入供应商后再放行
	require.Eventually(t, func() bool { return inner.calls.Load() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(inner.gate)
	wg.Wait()

	assert.LessOrEqual(t, inner.calls.Load(), int32(n))
	for _, r := range results {
		assert.Equal(t, results[0], r)
	}
}

func TestCachedEmbeddingProvider_PassthroughWithoutRedis(t *testing.T) {
	inner := &slowEmbedder{gate: make(chan struct{})}
	close(inner.gate)
	p := NewCachedEmbeddingProvider(inner, nil, nil)

	out, err := p.Embed(context.Background(), []string{"a", "bb"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}}, out)
	assert.Equal(t, "slow", p.Name())

	deleted, err := p.ClearCache(context.Background())
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
