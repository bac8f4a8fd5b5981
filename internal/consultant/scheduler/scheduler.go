// Package scheduler runs the consultant's periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/logger"
	"github.com/robfig/cron/v3"

	"github.com/lazysoft/consultant/pkg/utils/errors"
)

// Job 定时任务，Spec 为含秒的 cron 表达式，为空时不注册。
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Scheduler 基于 robfig/cron 的任务调度器，实现 server.Runnable。
// 同一任务上一次尚未结束时跳过本次触发。
type Scheduler struct {
	jobs []Job

	mu      sync.Mutex
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	entries map[string]cron.EntryID
}

// New creates a scheduler for the given jobs.
func New(jobs ...Job) *Scheduler {
	return &Scheduler{jobs: jobs, entries: make(map[string]cron.EntryID)}
}

// Name implements server.Runnable.
func (s *Scheduler) Name() string { return "scheduler" }

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return errors.ErrConfig.WithMessage("scheduler already started")
	}

	log := cronLogger{}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)
	runCtx, cancel := context.WithCancel(ctx)
	for _, job := range s.jobs {
		if job.Spec == "" {
			logger.Infow("scheduled job disabled", "job", job.Name)
			continue
		}
		id, err := c.AddFunc(job.Spec, s.wrap(runCtx, job))
		if err != nil {
			cancel()
			return errors.ErrConfig.WithCause(err).WithMessagef("invalid schedule %q for job %s", job.Spec, job.Name)
		}
		s.entries[job.Name] = id
	}

	s.cron, s.ctx, s.cancel = c, runCtx, cancel
	c.Start()
	logger.Infow("scheduler started", "jobs", len(s.entries))
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}

	cancel()
	select {
	case <-c.Stop().Done():
		logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow runs the named job synchronously outside the schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	for _, job := range s.jobs {
		if job.Name == name {
			return run(ctx, job)
		}
	}
	return errors.ErrInvalidParam.WithMessagef("unknown job %q", name)
}

// Next returns the next activation time of a registered job.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.entries[name]
	if !ok || s.cron == nil {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

func (s *Scheduler) wrap(ctx context.Context, job Job) func() {
	return func() {
		if ctx.Err() != nil {
			return
		}
		_ = run(ctx, job)
	}
}

func run(ctx context.Context, job Job) error {
	start := time.Now()
	logger.Infow("job started", "job", job.Name)
	err := job.Run(ctx)
	if err != nil {
		logger.Errorw("job failed", "job", job.Name, "duration", time.Since(start).String(), "error", err)
		return err
	}
	logger.Infow("job finished", "job", job.Name, "duration", time.Since(start).String())
	return nil
}

// cronLogger 把 cron 内部日志接到 kart-io/logger。
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debugw("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Errorw(fmt.Sprintf("cron: %s", msg), append(keysAndValues, "error", err)...)
}
