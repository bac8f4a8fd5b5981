package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"
)

// Config defines the configuration for the worker pool.
type Config struct {
	// Capacity 池容量（最大并发 goroutine 数）
	Capacity int
	// ExpiryDuration goroutine 空闲过期时间
	ExpiryDuration time.Duration
	// Nonblocking 提交任务是否非阻塞（若池满则返回错误）
	Nonblocking bool
	// MaxBlockingTasks 当 Nonblocking=false 时，最大等待任务数（0 表示无限制）
	MaxBlockingTasks int
}

// IndexPoolConfig 返回批量索引池配置
func IndexPoolConfig(workers int) *Config {
	if workers <= 0 {
		workers = 4
	}
	return &Config{
		Capacity:       workers,
		ExpiryDuration: 30 * time.Second,
	}
}

// BackgroundPoolConfig 返回后台任务池配置（线索投递、会话统计等）
func BackgroundPoolConfig() *Config {
	return &Config{
		Capacity:         32,
		ExpiryDuration:   60 * time.Second,
		Nonblocking:      true,
		MaxBlockingTasks: 256,
	}
}

// Pool represents a worker pool.
type Pool struct {
	name   string
	pool   *ants.Pool
	closed atomic.Bool

	submitted atomic.Int64
	completed atomic.Int64
	rejected  atomic.Int64
	panics    atomic.Int64
}

// Stats contains statistics about the worker pool.
type Stats struct {
	Running   int
	Submitted int64
	Completed int64
	Rejected  int64
	Panics    int64
}

// NewPool creates a new worker pool with the given configuration.
func NewPool(name string, config *Config) (*Pool, error) {
	if config == nil {
		config = BackgroundPoolConfig()
	}

	p := &Pool{name: name}
	pool, err := ants.NewPool(config.Capacity,
		ants.WithExpiryDuration(config.ExpiryDuration),
		ants.WithNonblocking(config.Nonblocking),
		ants.WithMaxBlockingTasks(config.MaxBlockingTasks),
		ants.WithPanicHandler(func(r interface{}) {
			p.panics.Add(1)
			logger.Errorw("Worker panic recovered", "pool", name, "panic", r)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create pool %s: %w", name, err)
	}
	p.pool = pool

	logger.Infow("Worker pool created", "name", name, "capacity", config.Capacity)
	return p, nil
}

// Name 返回池名称
func (p *Pool) Name() string {
	return p.name
}

// Submit 提交任务到池中执行
func (p *Pool) Submit(task func()) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	p.submitted.Add(1)
	err := p.pool.Submit(func() {
		defer p.completed.Add(1)
		task()
	})
	if err != nil {
		p.submitted.Add(-1)
		if errors.Is(err, ants.ErrPoolOverload) {
			p.rejected.Add(1)
			return ErrPoolOverload
		}
		if errors.Is(err, ants.ErrPoolClosed) {
			return ErrPoolClosed
		}
		return err
	}
	return nil
}

// Each runs fn for every item with at most Capacity items in flight and
// waits for all of them. It stops submitting once ctx is done. The returned
// error is the first submit failure or ctx.Err(); fn errors are the caller's
// concern.
func Each[T any](ctx context.Context, p *Pool, items []T, fn func(context.Context, T)) error {
	var wg sync.WaitGroup
	var err error
	for _, item := range items {
		if ctx.Err() != nil {
			err = ctx.Err()
			break
		}
		wg.Add(1)
		if serr := p.Submit(func() {
			defer wg.Done()
			fn(ctx, item)
		}); serr != nil {
			wg.Done()
			err = serr
			break
		}
	}
	wg.Wait()
	return err
}

// Release 带超时关闭池，等待任务完成
func (p *Pool) Release(timeout time.Duration) error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	logger.Infow("Worker pool released", "name", p.name)
	return p.pool.ReleaseTimeout(timeout)
}

// Stats 返回池统计信息快照
func (p *Pool) Stats() Stats {
	return Stats{
		Running:   p.pool.Running(),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Rejected:  p.rejected.Load(),
		Panics:    p.panics.Load(),
	}
}
