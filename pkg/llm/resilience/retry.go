package resilience

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/kart-io/logger"

	"github.com/lazysoft/consultant/pkg/utils/httpclient"
)

// RetryConfig 重试配置。
type RetryConfig struct {
	// MaxAttempts 最大尝试次数（包括首次调用）。
	MaxAttempts int
	// InitialDelay 初始延迟。
	InitialDelay time.Duration
	// MaxDelay 单次最大延迟。
	MaxDelay time.Duration
	// Multiplier 指数退避倍数。
	Multiplier float64
	// Retryable 判断错误是否可重试，为空时使用 IsRetryableError。
	Retryable func(error) bool
}

// DefaultRetryConfig 返回默认重试配置。
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Retryable:    IsRetryableError,
	}
}

func (c *RetryConfig) backOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.InitialDelay
	eb.MaxInterval = c.MaxDelay
	if c.Multiplier > 0 {
		eb.Multiplier = c.Multiplier
	}
	return eb
}

// Retry 以指数退避执行 fn，直到成功、不可重试或达到最大次数。
func Retry[T any](ctx context.Context, config *RetryConfig, fn func() (T, error)) (T, error) {
	if config == nil {
		config = DefaultRetryConfig()
	}
	retryable := config.Retryable
	if retryable == nil {
		retryable = IsRetryableError
	}
	attempts := max(config.MaxAttempts, 1)

	attempt := 0
	op := func() (T, error) {
		attempt++
		v, err := fn()
		if err == nil {
			return v, nil
		}
		if !retryable(err) {
			return v, backoff.Permanent(err)
		}
		if attempt < attempts {
			logger.Debugw("retrying llm call", "attempt", attempt, "error", err.Error())
		}
		return v, err
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(config.backOff()),
		backoff.WithMaxTries(uint(attempts)),
	)
}

// IsRetryableError 判断错误是否可重试：网络错误、5xx、429 和 408。
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCircuitBreakerOpen) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable() || statusErr.StatusCode == 408
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// isCallerCancel 判断错误是否来自调用方取消，这类错误不应计入熔断。
func isCallerCancel(err error) bool {
	return errors.Is(err, context.Canceled)
}
