package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	"golang.org/x/time/rate"

	"github.com/lazysoft/consultant/pkg/utils/errors"
	"github.com/lazysoft/consultant/pkg/utils/response"
)

// RateLimitConfig defines the configuration for rate limiting middleware.
type RateLimitConfig struct {
	// Rate is the number of requests per second allowed for one key.
	Rate float64

	// Burst is the token bucket size.
	Burst int

	// KeyFunc extracts the rate limit key. Default: client IP.
	KeyFunc func(c *gin.Context) string

	// IdleTTL evicts limiters of keys not seen for this long.
	// Default: 10 minutes
	IdleTTL time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedLimiter holds one token bucket per key.
type KeyedLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	lastGC   time.Time
}

// NewKeyedLimiter creates a limiter allowing r events per second per key.
func NewKeyedLimiter(r float64, burst int, idleTTL time.Duration) *KeyedLimiter {
	if burst <= 0 {
		burst = 1
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &KeyedLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(r),
		burst:    burst,
		idleTTL:  idleTTL,
		lastGC:   time.Now(),
	}
}

// Allow reports whether an event for key may happen now.
func (l *KeyedLimiter) Allow(key string) bool {
	now := time.Now()

	l.mu.Lock()
	if now.Sub(l.lastGC) > l.idleTTL {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > l.idleTTL {
				delete(l.visitors, k)
			}
		}
		l.lastGC = now
	}
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	l.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

// RateLimit returns a per-key token bucket middleware. A non-positive rate
// disables limiting.
func RateLimit(config RateLimitConfig) gin.HandlerFunc {
	if config.Rate <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if config.KeyFunc == nil {
		config.KeyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}
	limiter := NewKeyedLimiter(config.Rate, config.Burst, config.IdleTTL)

	return func(c *gin.Context) {
		key := config.KeyFunc(c)
		if key == "" {
			key = c.ClientIP()
		}
		if !limiter.Allow(key) {
			logger.Warnw("rate limit exceeded", "key", key, "path", c.Request.URL.Path)
			response.Fail(c, errors.ErrTooManyRequests)
			c.Abort()
			return
		}
		c.Next()
	}
}
