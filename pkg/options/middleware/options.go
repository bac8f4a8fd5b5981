// Package middleware provides middleware configuration options.
package middleware

import (
	"fmt"
	"slices"

	"github.com/spf13/pflag"

	"github.com/lazysoft/consultant/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// 中间件名称常量。
const (
	MiddlewareRecovery  = "recovery"
	MiddlewareRequestID = "request-id"
	MiddlewareTracing   = "tracing"
	MiddlewareLogger    = "logger"
)

var knownMiddleware = []string{MiddlewareRecovery, MiddlewareRequestID, MiddlewareTracing, MiddlewareLogger}

// Options 中间件配置。Middleware 同时决定启用哪些中间件及其顺序。
type Options struct {
	// Middleware 指定中间件的应用顺序。
	// 示例: ["recovery", "request-id", "tracing", "logger"]
	Middleware []string `json:"enabled" mapstructure:"enabled"`

	// EnableStackTrace 在 panic 响应中返回堆栈，仅用于开发环境。
	EnableStackTrace bool `json:"enable-stack-trace" mapstructure:"enable-stack-trace"`

	// LogSkipPaths 不记录访问日志的路径。
	LogSkipPaths []string `json:"log-skip-paths" mapstructure:"log-skip-paths"`

	// TraceSkipPaths 不创建 span 的路径。
	TraceSkipPaths []string `json:"trace-skip-paths" mapstructure:"trace-skip-paths"`
}

// NewOptions 创建默认中间件选项。
func NewOptions() *Options {
	return &Options{
		Middleware:     slices.Clone(knownMiddleware),
		LogSkipPaths:   []string{"/healthz", "/metrics"},
		TraceSkipPaths: []string{"/healthz", "/metrics", "/version"},
	}
}

// AddFlags adds flags for middleware options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(append(prefixes, "middleware")...)
	fs.StringSliceVar(&o.Middleware, p+"enabled", o.Middleware, "Ordered list of enabled middleware: recovery, request-id, tracing, logger.")
	fs.BoolVar(&o.EnableStackTrace, p+"enable-stack-trace", o.EnableStackTrace, "Enable stack trace in panic responses.")
	fs.StringSliceVar(&o.LogSkipPaths, p+"log-skip-paths", o.LogSkipPaths, "Paths excluded from the access log.")
	fs.StringSliceVar(&o.TraceSkipPaths, p+"trace-skip-paths", o.TraceSkipPaths, "Paths excluded from tracing.")
}

// Validate validates the middleware options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	seen := make(map[string]bool, len(o.Middleware))
	for _, name := range o.Middleware {
		if !slices.Contains(knownMiddleware, name) {
			errs = append(errs, fmt.Errorf("middleware %q is not supported", name))
		}
		if seen[name] {
			errs = append(errs, fmt.Errorf("middleware %q is listed twice", name))
		}
		seen[name] = true
	}
	return errs
}

// IsEnabled reports whether the named middleware is enabled.
func (o *Options) IsEnabled(name string) bool {
	return slices.Contains(o.Middleware, name)
}
