package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/kart-io/logger"
	"github.com/spf13/cobra"

	"github.com/lazysoft/consultant/cmd/consultant/app/options"
	"github.com/lazysoft/consultant/internal/consultant"
	"github.com/lazysoft/consultant/internal/consultant/scheduler"
	"github.com/lazysoft/consultant/pkg/infra/app"
	"github.com/lazysoft/consultant/pkg/utils/json"
)

// commands 维护子命令，与服务共用配置，执行一次后退出。
func commands(opts *options.ServerOptions) []*app.Command {
	return []*app.Command{
		{
			Name:  "reindex",
			Short: "Rebuild the vector index for the given kinds (all when none)",
			Run: withRuntime(opts, func(ctx context.Context, rt *consultant.Runtime, args []string) (any, error) {
				start := time.Now()
				n, err := rt.Service.Indexer().ReindexAll(ctx, args...)
				if err != nil {
					return nil, err
				}
				return map[string]any{"processed": n, "duration_ms": time.Since(start).Milliseconds()}, nil
			}),
		},
		{
			Name:  "sweep",
			Short: "Delete index rows whose source objects no longer exist",
			Args:  cobra.NoArgs,
			Run: withRuntime(opts, func(ctx context.Context, rt *consultant.Runtime, _ []string) (any, error) {
				n, err := rt.Service.Indexer().SweepOrphans(ctx)
				return map[string]any{"deleted": n}, err
			}),
		},
		{
			Name:  "learn",
			Short: "Analyze recent conversations and clean up rejected patterns",
			Args:  cobra.NoArgs,
			Run: withRuntime(opts, func(ctx context.Context, rt *consultant.Runtime, _ []string) (any, error) {
				if err := rt.Scheduler.RunNow(ctx, scheduler.JobAnalyze); err != nil {
					return nil, err
				}
				if err := rt.Scheduler.RunNow(ctx, scheduler.JobCleanup); err != nil {
					return nil, err
				}
				patterns, err := rt.Service.Learner().Patterns(ctx)
				return map[string]any{"patterns": len(patterns)}, err
			}),
		},
		{
			Name:  "expire",
			Short: "Close sessions idle for longer than the session TTL",
			Args:  cobra.NoArgs,
			Run: withRuntime(opts, func(ctx context.Context, rt *consultant.Runtime, _ []string) (any, error) {
				n, err := rt.Service.ExpireSessions(ctx)
				return map[string]any{"expired": n}, err
			}),
		},
		{
			Name:  "stats",
			Short: "Print session, index and pattern statistics",
			Args:  cobra.NoArgs,
			Run: withRuntime(opts, func(ctx context.Context, rt *consultant.Runtime, _ []string) (any, error) {
				return rt.Service.Stats(ctx)
			}),
		},
	}
}

// withRuntime 构建运行时，执行 fn 并把结果以 JSON 打印到标准输出。
func withRuntime(
	opts *options.ServerOptions,
	fn func(ctx context.Context, rt *consultant.Runtime, args []string) (any, error),
) func(args []string) error {
	return func(args []string) error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		ctx := setupSignalContext()

		rt, err := cfg.NewRuntime(ctx)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := rt.Close(closeCtx); err != nil {
				logger.Warnw("failed to release resources", "error", err)
			}
		}()

		out, err := fn(ctx, rt, args)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		return enc.Encode(out)
	}
}
