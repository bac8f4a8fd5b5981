package resilience

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazysoft/consultant/pkg/llm"
	"github.com/lazysoft/consultant/pkg/utils/httpclient"
)

var errUpstream = &httpclient.StatusError{StatusCode: http.StatusBadGateway, Body: "bad gateway"}

func fastRetry(attempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

// fakeClock 让熔断器的超时判断可控。
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(maxFailures int) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	cb := NewCircuitBreaker(&CircuitBreakerConfig{
		Name:             "test",
		MaxFailures:      maxFailures,
		Timeout:          time.Minute,
		HalfOpenMaxCalls: 1,
	})
	cb.now = clock.now
	return cb, clock
}

func TestCircuitBreaker_OpenOnMaxFailures(t *testing.T) {
	cb, _ := newTestBreaker(3)
	testErr := errors.New("test error")
	for i := 0; i < 3; i++ {
		assert.Error(t, cb.Execute(func() error { return testErr }))
	}
	assert.Equal(t, StateOpen, cb.State())

	// 熔断器打开后拒绝新请求，fn 不会被调用
	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitBreakerOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_HalfOpen(t *testing.T) {
	tests := []struct {
		name  string
		probe error
		want  CircuitBreakerState
	}{
		{"success closes", nil, StateClosed},
		{"failure reopens", errors.New("still down"), StateOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, clock := newTestBreaker(2)
			for i := 0; i < 2; i++ {
				_ = cb.Execute(func() error { return errors.New("x") })
			}
			require.Equal(t, StateOpen, cb.State())

			clock.advance(2 * time.Minute)
			_ = cb.Execute(func() error { return tt.probe })
			assert.Equal(t, tt.want, cb.State())
		})
	}
}

func TestCircuitBreaker_IgnoredErrorsDoNotCount(t *testing.T) {
	cb, _ := newTestBreaker(1)
	err := cb.Execute(func() error { return context.Canceled }, isCallerCancel)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
}

func TestCircuitBreaker_StateChangeHook(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(&CircuitBreakerConfig{
		Name:        "hook",
		MaxFailures: 1,
		Timeout:     time.Minute,
		OnStateChange: func(_ string, from, to CircuitBreakerState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	_ = cb.Execute(func() error { return errors.New("x") })
	cb.Reset()
	assert.Equal(t, []string{"closed->open", "open->closed"}, transitions)
}

func TestRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("eventual success", func(t *testing.T) {
		calls := 0
		v, err := Retry(ctx, fastRetry(3), func() (int, error) {
			calls++
			if calls < 3 {
				return 0, errUpstream
			}
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, v)
		assert.Equal(t, 3, calls)
	})

	t.Run("max attempts", func(t *testing.T) {
		calls := 0
		_, err := Retry(ctx, fastRetry(2), func() (int, error) {
			calls++
			return 0, errUpstream
		})
		require.Error(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("non retryable", func(t *testing.T) {
		calls := 0
		badReq := &httpclient.StatusError{StatusCode: http.StatusBadRequest}
		_, err := Retry(ctx, fastRetry(3), func() (int, error) {
			calls++
			return 0, badReq
		})
		assert.ErrorIs(t, err, badReq)
		assert.Equal(t, 1, calls)
	})
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"5xx", errUpstream, true},
		{"429", &httpclient.StatusError{StatusCode: http.StatusTooManyRequests}, true},
		{"408", &httpclient.StatusError{StatusCode: http.StatusRequestTimeout}, true},
		{"401", &httpclient.StatusError{StatusCode: http.StatusUnauthorized}, false},
		{"breaker open", ErrCircuitBreakerOpen, false},
		{"deadline", context.DeadlineExceeded, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryableError(tt.err))
		})
	}
}

type flakyChat struct {
	fails int
	calls int
}

func (f *flakyChat) Name() string { return "flaky" }

func (f *flakyChat) Chat(_ context.Context, _ []llm.Message, opts ...llm.ChatOption) (*llm.ChatResponse, error) {
	f.calls++
	if f.calls <= f.fails {
		return nil, errUpstream
	}
	o := llm.ApplyChatOptions(llm.ChatOptions{Model: "default"}, opts...)
	return &llm.ChatResponse{Content: "ok", Model: o.Model}, nil
}

func TestResilientChatProvider(t *testing.T) {
	inner := &flakyChat{fails: 1}
	p := NewResilientChatProvider(inner, fastRetry(3), nil)

	resp, err := p.Chat(context.Background(), nil, llm.WithModel("small"))
	require.NoError(t, err)
	assert.Equal(t, "small", resp.Model)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, "flaky", p.Name())
	assert.Equal(t, StateClosed, p.CircuitBreaker().State())
}

func BenchmarkCircuitBreaker_Execute(b *testing.B) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())
	for i := 0; i < b.N; i++ {
		_ = cb.Execute(func() error { return nil })
	}
}
