// Package learning provides configuration of the pattern learning loop.
package learning

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"

	"github.com/lazysoft/consultant/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options 定义学习循环及定时任务配置。
type Options struct {
	// AnalyzeWindow 每次分析的会话时间窗口。
	AnalyzeWindow time.Duration `json:"analyze-window" mapstructure:"analyze-window"`

	// AutoApprove 满足频次和成功率时自动审核通过。
	AutoApprove  bool    `json:"auto-approve" mapstructure:"auto-approve"`
	MinFrequency int     `json:"min-frequency" mapstructure:"min-frequency"`
	MinSuccess   float64 `json:"min-success" mapstructure:"min-success"`

	// Retention 被拒绝模式的保留时长。
	Retention time.Duration `json:"retention" mapstructure:"retention"`

	// Cron 表达式（含秒）。
	AnalyzeSchedule string `json:"analyze-schedule" mapstructure:"analyze-schedule"`
	CleanupSchedule string `json:"cleanup-schedule" mapstructure:"cleanup-schedule"`
	ReindexSchedule string `json:"reindex-schedule" mapstructure:"reindex-schedule"`
	ExpirySchedule  string `json:"expiry-schedule" mapstructure:"expiry-schedule"`

	// EnableScheduler 关闭后仅能通过 CLI 或 HTTP 手动触发。
	EnableScheduler bool `json:"enable-scheduler" mapstructure:"enable-scheduler"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		AnalyzeWindow:   24 * time.Hour,
		AutoApprove:     true,
		MinFrequency:    3,
		MinSuccess:      0.8,
		Retention:       60 * 24 * time.Hour,
		AnalyzeSchedule: "0 0 3 * * *",
		CleanupSchedule: "0 30 3 * * *",
		ReindexSchedule: "0 0 4 * * 0",
		ExpirySchedule:  "0 */10 * * * *",
		EnableScheduler: true,
	}
}

// AddFlags adds flags for learning options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(append(prefixes, "learning")...)
	fs.DurationVar(&o.AnalyzeWindow, p+"analyze-window", o.AnalyzeWindow, "Time window of sessions analyzed per run.")
	fs.BoolVar(&o.AutoApprove, p+"auto-approve", o.AutoApprove, "Approve frequent and successful patterns automatically.")
	fs.IntVar(&o.MinFrequency, p+"min-frequency", o.MinFrequency, "Minimum frequency for auto-approval.")
	fs.Float64Var(&o.MinSuccess, p+"min-success", o.MinSuccess, "Minimum success rate for auto-approval.")
	fs.DurationVar(&o.Retention, p+"retention", o.Retention, "Rejected patterns older than this are deleted.")
	fs.StringVar(&o.AnalyzeSchedule, p+"analyze-schedule", o.AnalyzeSchedule, "Cron spec (with seconds) of the analysis job.")
	fs.StringVar(&o.CleanupSchedule, p+"cleanup-schedule", o.CleanupSchedule, "Cron spec of the cleanup job.")
	fs.StringVar(&o.ReindexSchedule, p+"reindex-schedule", o.ReindexSchedule, "Cron spec of the reindex and sweep job.")
	fs.StringVar(&o.ExpirySchedule, p+"expiry-schedule", o.ExpirySchedule, "Cron spec of the session expiry job.")
	fs.BoolVar(&o.EnableScheduler, p+"enable-scheduler", o.EnableScheduler, "Run the background jobs inside the server.")
}

// Validate checks if the options are valid.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	if o.MinFrequency < 1 {
		errs = append(errs, fmt.Errorf("learning.min-frequency must be at least 1"))
	}
	if o.MinSuccess < 0 || o.MinSuccess > 1 {
		errs = append(errs, fmt.Errorf("learning.min-success must be within [0, 1]"))
	}
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	for name, spec := range map[string]string{
		"analyze-schedule": o.AnalyzeSchedule,
		"cleanup-schedule": o.CleanupSchedule,
		"reindex-schedule": o.ReindexSchedule,
		"expiry-schedule":  o.ExpirySchedule,
	} {
		if spec == "" {
			continue
		}
		if _, err := parser.Parse(spec); err != nil {
			errs = append(errs, fmt.Errorf("learning.%s: %w", name, err))
		}
	}
	return errs
}
