package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/lazysoft/consultant/pkg/utils/errors"
	"github.com/lazysoft/consultant/pkg/utils/response"
)

// RecoveryConfig defines the config for Recovery middleware.
type RecoveryConfig struct {
	// EnableStackTrace includes stack trace in error response (for development).
	EnableStackTrace bool

	// OnPanic is called when a panic occurs.
	OnPanic func(c *gin.Context, err interface{}, stack []byte)
}

// Recovery returns a middleware that recovers from panics and logs them.
func Recovery() gin.HandlerFunc {
	return RecoveryWithConfig(RecoveryConfig{
		OnPanic: func(c *gin.Context, err interface{}, stack []byte) {
			logger.Errorw("panic recovered",
				"path", c.Request.URL.Path,
				"request_id", c.GetString(ContextKeyRequestID),
				"panic", fmt.Sprint(err),
				"stack", string(stack),
			)
		},
	})
}

// RecoveryWithConfig returns a Recovery middleware with custom config.
// It converts panics to JSON error responses using the error code system.
func RecoveryWithConfig(config RecoveryConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				if config.OnPanic != nil {
					config.OnPanic(c, r, stack)
				}

				var err *errors.Errno
				if config.EnableStackTrace {
					err = errors.ErrPanic.WithMessage(fmt.Sprintf("panic: %v\n%s", r, string(stack)))
				} else {
					err = errors.ErrPanic
				}
				response.Fail(c, err)
				c.Abort()
			}
		}()
		c.Next()
	}
}
