// Package tracing provides OpenTelemetry tracing options.
package tracing

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/lazysoft/consultant/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Exporters.
const (
	ExporterOTLPGRPC = "otlp-grpc"
	ExporterOTLPHTTP = "otlp-http"
	ExporterStdout   = "stdout"
)

// Options 定义链路追踪配置。
type Options struct {
	Enabled     bool    `json:"enabled" mapstructure:"enabled"`
	Exporter    string  `json:"exporter" mapstructure:"exporter"`
	Endpoint    string  `json:"endpoint" mapstructure:"endpoint"`
	Insecure    bool    `json:"insecure" mapstructure:"insecure"`
	SampleRatio float64 `json:"sample-ratio" mapstructure:"sample-ratio"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Exporter:    ExporterOTLPGRPC,
		Endpoint:    "localhost:4317",
		Insecure:    true,
		SampleRatio: 1,
	}
}

// AddFlags adds flags for tracing options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(append(prefixes, "tracing")...)
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Enable OpenTelemetry tracing.")
	fs.StringVar(&o.Exporter, p+"exporter", o.Exporter, "Span exporter: otlp-grpc, otlp-http or stdout.")
	fs.StringVar(&o.Endpoint, p+"endpoint", o.Endpoint, "OTLP collector endpoint.")
	fs.BoolVar(&o.Insecure, p+"insecure", o.Insecure, "Disable TLS towards the collector.")
	fs.Float64Var(&o.SampleRatio, p+"sample-ratio", o.SampleRatio, "Fraction of traces sampled.")
}

// Validate checks if the options are valid.
func (o *Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}
	var errs []error
	switch o.Exporter {
	case ExporterOTLPGRPC, ExporterOTLPHTTP:
		if o.Endpoint == "" {
			errs = append(errs, fmt.Errorf("tracing.endpoint is required for %s", o.Exporter))
		}
	case ExporterStdout:
	default:
		errs = append(errs, fmt.Errorf("tracing.exporter %q is not supported", o.Exporter))
	}
	if o.SampleRatio < 0 || o.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample-ratio must be within [0, 1]"))
	}
	return errs
}
