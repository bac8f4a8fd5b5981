// Package app provides the consultant server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lazysoft/consultant/cmd/consultant/app/options"
	"github.com/lazysoft/consultant/pkg/infra/app"
)

const (
	// Name is the name of the application.
	Name = "consultant"

	// commandDesc is the description of the command.
	commandDesc = `LazySoft Consultant

The retrieval-augmented sales consultant behind the LazySoft website chat.

This server provides:
  - Multilingual dialogue turns grounded in the indexed catalog
  - Pricing clarification and quote requests with lead delivery
  - Index maintenance and retrieval debugging endpoints
  - Pattern learning from past conversations with manual review
  - Support for multiple LLM providers (OpenAI, Gemini, Ollama)`
)

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	application := app.NewApp(
		app.WithName(Name),
		app.WithShortDescription("LazySoft RAG consultant"),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
		app.WithCommands(commands(opts)...),
	)

	return application
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		// Load the configuration options
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx := setupSignalContext()

		// Build the server using the configuration
		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		// Run the server with signal context for graceful shutdown
		return server.Run(ctx)
	}
}

// setupSignalContext returns a context that is cancelled on SIGINT or SIGTERM.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
