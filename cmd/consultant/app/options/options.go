// Package options contains flags and options for initializing the consultant server.
package options

import (
	"fmt"
	"time"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/lazysoft/consultant/internal/consultant"
	cliflag "github.com/lazysoft/consultant/pkg/app/cliflag"
	consultantopts "github.com/lazysoft/consultant/pkg/options/consultant"
	dbopts "github.com/lazysoft/consultant/pkg/options/database"
	learningopts "github.com/lazysoft/consultant/pkg/options/learning"
	llmopts "github.com/lazysoft/consultant/pkg/options/llm"
	logopts "github.com/lazysoft/consultant/pkg/options/logger"
	middlewareopts "github.com/lazysoft/consultant/pkg/options/middleware"
	milvusopts "github.com/lazysoft/consultant/pkg/options/milvus"
	quoteopts "github.com/lazysoft/consultant/pkg/options/quote"
	redisopts "github.com/lazysoft/consultant/pkg/options/redis"
	httpopts "github.com/lazysoft/consultant/pkg/options/server/http"
	tracingopts "github.com/lazysoft/consultant/pkg/options/tracing"
)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// HTTPOptions contains HTTP server configuration.
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`

	// MiddlewareOptions selects and orders the HTTP middleware.
	MiddlewareOptions *middlewareopts.Options `json:"middleware" mapstructure:"middleware"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// DatabaseOptions contains the relational database configuration.
	DatabaseOptions *dbopts.Options `json:"database" mapstructure:"database"`

	// RedisOptions contains redis configuration (session locks, embedding cache, lead stream).
	RedisOptions *redisopts.Options `json:"redis" mapstructure:"redis"`

	// MilvusOptions is used when consultant.vector-backend is milvus.
	MilvusOptions *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// EmbeddingOptions contains embedding provider configuration.
	EmbeddingOptions *llmopts.EmbeddingOptions `json:"embedding" mapstructure:"embedding"`

	// ChatOptions contains chat provider configuration.
	ChatOptions *llmopts.ChatOptions `json:"chat" mapstructure:"chat"`

	ConsultantOptions *consultantopts.Options `json:"consultant" mapstructure:"consultant"`
	LearningOptions   *learningopts.Options   `json:"learning" mapstructure:"learning"`
	QuoteOptions      *quoteopts.Options      `json:"quote" mapstructure:"quote"`
	TracingOptions    *tracingopts.Options    `json:"tracing" mapstructure:"tracing"`

	// ShutdownTimeout is the timeout for graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTPOptions:       httpopts.NewOptions(),
		MiddlewareOptions: middlewareopts.NewOptions(),
		LogOptions:        logopts.NewOptions(),
		DatabaseOptions:   dbopts.NewOptions(),
		RedisOptions:      redisopts.NewOptions(),
		MilvusOptions:     milvusopts.NewOptions(),
		EmbeddingOptions:  llmopts.NewEmbeddingOptions(),
		ChatOptions:       llmopts.NewChatOptions(),
		ConsultantOptions: consultantopts.NewOptions(),
		LearningOptions:   learningopts.NewOptions(),
		QuoteOptions:      quoteopts.NewOptions(),
		TracingOptions:    tracingopts.NewOptions(),
		ShutdownTimeout:   30 * time.Second,
	}
}

// Flags returns flags for a specific server by section name.
func (o *ServerOptions) Flags() (fss cliflag.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"))
	o.MiddlewareOptions.AddFlags(fss.FlagSet("middleware"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.DatabaseOptions.AddFlags(fss.FlagSet("database"))
	o.RedisOptions.AddFlags(fss.FlagSet("redis"))
	o.MilvusOptions.AddFlags(fss.FlagSet("milvus"))
	o.EmbeddingOptions.AddFlags(fss.FlagSet("embedding"))
	o.ChatOptions.AddFlags(fss.FlagSet("chat"))
	o.ConsultantOptions.AddFlags(fss.FlagSet("consultant"))
	o.LearningOptions.AddFlags(fss.FlagSet("learning"))
	o.QuoteOptions.AddFlags(fss.FlagSet("quote"))
	o.TracingOptions.AddFlags(fss.FlagSet("tracing"))

	// misc flags
	fs := fss.FlagSet("misc")
	fs.DurationVar(&o.ShutdownTimeout, "shutdown-timeout", o.ShutdownTimeout, "Graceful shutdown timeout")

	return fss
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	if err := o.HTTPOptions.Complete(); err != nil {
		return err
	}
	if err := o.LogOptions.Complete(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := o.EmbeddingOptions.Complete(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := o.ChatOptions.Complete(); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	return nil
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	errs := []error{}

	errs = append(errs, o.HTTPOptions.Validate()...)
	errs = append(errs, o.MiddlewareOptions.Validate()...)
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, o.DatabaseOptions.Validate()...)
	errs = append(errs, o.RedisOptions.Validate()...)
	errs = append(errs, o.EmbeddingOptions.Validate()...)
	errs = append(errs, o.ChatOptions.Validate()...)
	errs = append(errs, o.ConsultantOptions.Validate()...)
	errs = append(errs, o.LearningOptions.Validate()...)
	errs = append(errs, o.QuoteOptions.Validate()...)
	errs = append(errs, o.TracingOptions.Validate()...)

	switch o.ConsultantOptions.VectorBackend {
	case consultantopts.VectorBackendMilvus:
		errs = append(errs, o.MilvusOptions.Validate()...)
	case consultantopts.VectorBackendPGVector:
		if o.DatabaseOptions.Driver != dbopts.DriverPostgres {
			errs = append(errs, fmt.Errorf("consultant.vector-backend pgvector requires database.driver postgres"))
		}
	}

	return utilerrors.NewAggregate(errs)
}

// Config builds a consultant.Config based on ServerOptions.
func (o *ServerOptions) Config() (*consultant.Config, error) {
	return &consultant.Config{
		HTTPOptions:       o.HTTPOptions,
		MiddlewareOptions: o.MiddlewareOptions,
		LogOptions:        o.LogOptions,
		DatabaseOptions:   o.DatabaseOptions,
		RedisOptions:      o.RedisOptions,
		MilvusOptions:     o.MilvusOptions,
		EmbeddingOptions:  o.EmbeddingOptions,
		ChatOptions:       o.ChatOptions,
		ConsultantOptions: o.ConsultantOptions,
		LearningOptions:   o.LearningOptions,
		QuoteOptions:      o.QuoteOptions,
		TracingOptions:    o.TracingOptions,
		ShutdownTimeout:   o.ShutdownTimeout,
	}, nil
}
