// Package quote provides configuration of the lead capture sinks.
package quote

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/pflag"

	"github.com/lazysoft/consultant/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options defines where captured quote requests are delivered besides the database.
type Options struct {
	// WebhookURL receives a JSON POST for each quote request (empty disables).
	WebhookURL     string        `json:"webhook-url" mapstructure:"webhook-url"`
	WebhookTimeout time.Duration `json:"webhook-timeout" mapstructure:"webhook-timeout"`
	WebhookRetries int           `json:"webhook-retries" mapstructure:"webhook-retries"`

	// StreamKey is the redis stream quote requests are appended to (needs redis.enabled).
	StreamKey string `json:"stream-key" mapstructure:"stream-key"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		WebhookTimeout: 5 * time.Second,
		WebhookRetries: 2,
		StreamKey:      "consultant:leads",
	}
}

// AddFlags adds flags for quote options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(append(prefixes, "quote")...)
	fs.StringVar(&o.WebhookURL, p+"webhook-url", o.WebhookURL, "Webhook notified about new quote requests.")
	fs.DurationVar(&o.WebhookTimeout, p+"webhook-timeout", o.WebhookTimeout, "Webhook request timeout.")
	fs.IntVar(&o.WebhookRetries, p+"webhook-retries", o.WebhookRetries, "Webhook retries on 5xx.")
	fs.StringVar(&o.StreamKey, p+"stream-key", o.StreamKey, "Redis stream receiving quote requests.")
}

// Validate checks if the options are valid.
func (o *Options) Validate() []error {
	if o == nil || o.WebhookURL == "" {
		return nil
	}
	u, err := url.Parse(o.WebhookURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return []error{fmt.Errorf("quote.webhook-url %q is not an absolute URL", o.WebhookURL)}
	}
	return nil
}
