package scheduler

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazysoft/consultant/pkg/options/learning"
	"github.com/lazysoft/consultant/pkg/utils/errors"
)

func TestScheduler_RunsJobs(t *testing.T) {
	var runs atomic.Int32
	s := New(
		Job{Name: "tick", Spec: "* * * * * *", Run: func(context.Context) error {
			runs.Add(1)
			return nil
		}},
		Job{Name: "off", Run: func(context.Context) error {
			t.Error("disabled job must not run")
			return nil
		}},
	)

	require.NoError(t, s.Start(context.Background()))
	next, ok := s.Next("tick")
	assert.True(t, ok)
	assert.False(t, next.IsZero())
	_, ok = s.Next("off")
	assert.False(t, ok)

	assert.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx), "second stop is a no-op")
}

func TestScheduler_InvalidSpec(t *testing.T) {
	s := New(Job{Name: "broken", Spec: "every now and then", Run: func(context.Context) error { return nil }})
	err := s.Start(context.Background())
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrConfig))
}

func TestScheduler_StartTwice(t *testing.T) {
	s := New()
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()
	assert.Error(t, s.Start(context.Background()))
}

func TestScheduler_RunNow(t *testing.T) {
	boom := stderrors.New("boom")
	var seen string
	s := New(
		Job{Name: "ok", Run: func(context.Context) error { seen = "ok"; return nil }},
		Job{Name: "fail", Run: func(context.Context) error { return boom }},
	)

	require.NoError(t, s.RunNow(context.Background(), "ok"))
	assert.Equal(t, "ok", seen)
	assert.ErrorIs(t, s.RunNow(context.Background(), "fail"), boom)
	assert.True(t, stderrors.Is(s.RunNow(context.Background(), "missing"), errors.ErrInvalidParam))
}

func TestScheduler_StopCancelsRunningJob(t *testing.T) {
	started := make(chan struct{})
	s := New(Job{Name: "slow", Spec: "* * * * * *", Run: func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return ctx.Err()
	}})
	require.NoError(t, s.Start(context.Background()))

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}

func TestJobs_Specs(t *testing.T) {
	opts := learning.NewOptions()
	opts.CleanupSchedule = ""
	jobs := Jobs(nil, opts)

	specs := make(map[string]string, len(jobs))
	for _, j := range jobs {
		specs[j.Name] = j.Spec
		assert.NotNil(t, j.Run, j.Name)
	}
	assert.Equal(t, map[string]string{
		JobAnalyze: opts.AnalyzeSchedule,
		JobCleanup: "",
		JobReindex: opts.ReindexSchedule,
		JobExpiry:  opts.ExpirySchedule,
	}, specs)
}
