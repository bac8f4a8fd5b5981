// Package server runs the gin HTTP server together with background
// components under one start/stop lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/lazysoft/consultant/pkg/infra/middleware"
	mwopts "github.com/lazysoft/consultant/pkg/options/middleware"
	httpopts "github.com/lazysoft/consultant/pkg/options/server/http"
	apierrors "github.com/lazysoft/consultant/pkg/utils/errors"
	"github.com/lazysoft/consultant/pkg/utils/response"
)

// Runnable is a background component started and stopped with the server.
type Runnable interface {
	// Name returns the component name for identification.
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Manager owns the gin engine, the net/http server and the runnables.
type Manager struct {
	opts            *httpopts.Options
	engine          *gin.Engine
	server          *http.Server
	runnables       []Runnable
	shutdownTimeout time.Duration
	errCh           chan error

	mu      sync.Mutex
	started bool
}

// NewManager creates the engine and installs the configured middleware.
func NewManager(opts *httpopts.Options, mw *mwopts.Options, shutdownTimeout time.Duration) *Manager {
	if opts == nil {
		opts = httpopts.NewOptions()
	}
	if mw == nil {
		mw = mwopts.NewOptions()
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}

	gin.SetMode(opts.Mode)
	engine := gin.New()
	for _, name := range mw.Middleware {
		switch name {
		case mwopts.MiddlewareRecovery:
			if mw.EnableStackTrace {
				engine.Use(middleware.RecoveryWithConfig(middleware.RecoveryConfig{EnableStackTrace: true}))
			} else {
				engine.Use(middleware.Recovery())
			}
		case mwopts.MiddlewareRequestID:
			engine.Use(middleware.RequestID())
		case mwopts.MiddlewareTracing:
			engine.Use(middleware.Tracing(mw.TraceSkipPaths...))
		case mwopts.MiddlewareLogger:
			engine.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{SkipPaths: mw.LogSkipPaths}))
		}
	}
	engine.NoRoute(func(c *gin.Context) {
		response.Fail(c, apierrors.ErrRouteNotFound)
	})

	return &Manager{
		opts:            opts,
		engine:          engine,
		shutdownTimeout: shutdownTimeout,
		errCh:           make(chan error, 1),
	}
}

// Engine returns the gin engine for route registration.
func (m *Manager) Engine() *gin.Engine {
	return m.engine
}

// AddServer adds a background component. Components start after the HTTP
// listener and stop before it.
func (m *Manager) AddServer(r Runnable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runnables = append(m.runnables, r)
}

// Start starts the HTTP listener and all runnables.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("server manager already started")
	}
	m.started = true
	runnables := append([]Runnable(nil), m.runnables...)
	m.mu.Unlock()

	m.server = &http.Server{
		Addr:         m.opts.Addr,
		Handler:      m.engine,
		ReadTimeout:  m.opts.ReadTimeout,
		WriteTimeout: m.opts.WriteTimeout,
		IdleTimeout:  m.opts.IdleTimeout,
	}
	go func() {
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.errCh <- err
		}
	}()
	logger.Infow("HTTP server started", "addr", m.opts.Addr)

	for i, r := range runnables {
		if err := r.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = runnables[j].Stop(ctx)
			}
			_ = m.server.Shutdown(ctx)
			return fmt.Errorf("failed to start %s: %w", r.Name(), err)
		}
		logger.Infow("Component started", "name", r.Name())
	}
	return nil
}

// Stop stops the runnables in reverse order, then the HTTP server.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = false
	runnables := append([]Runnable(nil), m.runnables...)
	m.mu.Unlock()

	var errs []error
	for i := len(runnables) - 1; i >= 0; i-- {
		if err := runnables[i].Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop %s: %w", runnables[i].Name(), err))
		}
	}
	if m.server != nil {
		if err := m.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop HTTP server: %w", err))
		}
		logger.Info("HTTP server stopped")
	}
	return errors.Join(errs...)
}

// Run starts everything and blocks until ctx is cancelled or the listener
// fails, then shuts down within the configured timeout.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Server shutting down...")
	case runErr = <-m.errCh:
		logger.Errorw("HTTP server failed", "error", runErr.Error())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), m.shutdownTimeout)
	defer cancel()
	if err := m.Stop(shutdownCtx); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}
