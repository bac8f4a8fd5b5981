package scheduler

import (
	"context"

	"github.com/kart-io/logger"

	"github.com/lazysoft/consultant/internal/consultant/biz"
	"github.com/lazysoft/consultant/pkg/options/learning"
)

// 任务名称。
const (
	JobAnalyze = "learning-analyze"
	JobCleanup = "learning-cleanup"
	JobReindex = "index-rebuild"
	JobExpiry  = "session-expiry"
)

// Jobs builds the maintenance jobs of the consultant service.
func Jobs(svc *biz.Service, opts *learning.Options) []Job {
	return []Job{
		{
			Name: JobAnalyze,
			Spec: opts.AnalyzeSchedule,
			Run: func(ctx context.Context) error {
				res, err := svc.Analyze(ctx)
				if err != nil {
					return err
				}
				logger.Infow("learning analysis completed",
					"sessions", res.Sessions,
					"pairs", res.Pairs,
					"created", res.Created,
					"updated", res.Updated,
					"auto_approved", res.AutoApproved,
				)
				return nil
			},
		},
		{
			Name: JobCleanup,
			Spec: opts.CleanupSchedule,
			Run: func(ctx context.Context) error {
				_, err := svc.Learner().Cleanup(ctx)
				return err
			},
		},
		{
			Name: JobReindex,
			Spec: opts.ReindexSchedule,
			Run: func(ctx context.Context) error {
				n, err := svc.Indexer().ReindexAll(ctx)
				if err != nil {
					return err
				}
				removed, err := svc.Indexer().SweepOrphans(ctx)
				if err != nil {
					return err
				}
				logger.Infow("index rebuilt", "chunks", n, "orphans_removed", removed)
				return nil
			},
		},
		{
			Name: JobExpiry,
			Spec: opts.ExpirySchedule,
			Run: func(ctx context.Context) error {
				_, err := svc.ExpireSessions(ctx)
				return err
			},
		},
	}
}
