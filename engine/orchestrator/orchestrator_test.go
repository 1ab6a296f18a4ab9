package orchestrator_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"
	"go.trai.ch/fanout"
	"go.trai.ch/fanout/adapters/cache"
	"go.trai.ch/fanout/core/domain"
	"go.trai.ch/fanout/core/ports/mocks"
	"go.trai.ch/fanout/engine/orchestrator"
	"go.uber.org/mock/gomock"
)

// funcAssessor adapts a closure into a ports.Assessor for tests that need
// scripted work-function behavior.
type funcAssessor struct {
	kind string
	fn   func(ctx context.Context, payload any) (any, error)
}

func (f funcAssessor) Kind() string { return f.kind }

func (f funcAssessor) Assess(ctx context.Context, payload any) (any, error) {
	return f.fn(ctx, payload)
}

func newCache(t *testing.T, opts fanout.Options) *cache.Cache {
	t.Helper()
	c, err := cache.New(opts.MaxCacheSize, opts.CleanupInterval)
	require.NoError(t, err)
	return c
}

func makeTasks(kind string, n int) []*domain.Task {
	tasks := make([]*domain.Task, n)
	for i := range tasks {
		tasks[i] = &domain.Task{Kind: kind, Payload: map[string]any{"index": i}}
	}
	return tasks
}

func TestNew_RejectsInvalidOptions(t *testing.T) {
	opts := fanout.DefaultOptions()
	opts.MaxConcurrency = 0

	_, err := orchestrator.New(opts, newCache(t, fanout.DefaultOptions()), nil, nil, nil)
	require.ErrorIs(t, err, fanout.ErrInvalidOptions)
}

func TestNew_RejectsNilCache(t *testing.T) {
	_, err := orchestrator.New(fanout.DefaultOptions(), nil, nil, nil, nil)
	require.ErrorIs(t, err, fanout.ErrInvalidOptions)
}

func TestNew_RejectsDuplicateKind(t *testing.T) {
	opts := fanout.DefaultOptions()
	a := funcAssessor{kind: "policy", fn: nil}
	b := funcAssessor{kind: "policy", fn: nil}

	_, err := orchestrator.New(opts, newCache(t, opts), nil, nil, nil, a, b)
	require.ErrorIs(t, err, domain.ErrDuplicateKind)
}

func TestSubmit_RejectsInvalidMode(t *testing.T) {
	opts := fanout.DefaultOptions()
	o, err := orchestrator.New(opts, newCache(t, opts), nil, nil, nil)
	require.NoError(t, err)

	_, err = o.Submit(context.Background(), nil, orchestrator.Mode("batched"))
	require.ErrorIs(t, err, domain.ErrInvalidMode)
}

func TestSubmit_RejectsMalformedTask(t *testing.T) {
	opts := fanout.DefaultOptions()
	o, err := orchestrator.New(opts, newCache(t, opts), nil, nil, nil)
	require.NoError(t, err)

	_, err = o.Submit(context.Background(), []*domain.Task{{Kind: ""}}, orchestrator.ModeParallel)
	require.ErrorIs(t, err, domain.ErrInvalidTask)

	_, err = o.Submit(context.Background(), []*domain.Task{nil}, orchestrator.ModeParallel)
	require.ErrorIs(t, err, domain.ErrInvalidTask)
}

func TestSubmit_EmptyBatchCompletes(t *testing.T) {
	opts := fanout.DefaultOptions()
	o, err := orchestrator.New(opts, newCache(t, opts), nil, nil, nil)
	require.NoError(t, err)

	result, err := o.Submit(context.Background(), nil, orchestrator.ModeParallel)
	require.NoError(t, err)
	require.Equal(t, domain.BatchCompleted, result.Status)
	require.Empty(t, result.Tasks)
}

func TestSubmit_CacheHitSkipsWorkFunction(t *testing.T) {
	ctrl := gomock.NewController(t)
	assessor := mocks.NewMockAssessor(ctrl)
	assessor.EXPECT().Kind().Return("policy").AnyTimes()
	// No Assess expectation: any dispatch of cached work is a test failure.

	opts := fanout.DefaultOptions()
	c := newCache(t, opts)
	o, err := orchestrator.New(opts, c, nil, nil, nil, assessor)
	require.NoError(t, err)

	tasks := makeTasks("policy", 5)
	for _, task := range tasks {
		fp, err := domain.Fingerprint(task.Kind, task.Payload)
		require.NoError(t, err)
		require.NoError(t, c.Set(fp, "memoized", 0))
	}

	result, err := o.Submit(context.Background(), tasks, orchestrator.ModeParallel)
	require.NoError(t, err)

	require.Equal(t, domain.BatchCompleted, result.Status)
	require.Equal(t, uint64(5), result.Metrics.CacheHits)
	require.Zero(t, result.Metrics.CacheMisses)
	for _, task := range result.Tasks {
		require.True(t, task.CacheHit)
		require.Equal(t, "memoized", task.Result)
		require.Zero(t, task.RetryCount)
	}
}

func TestSubmit_RetriesTransientWithExponentialBackoff(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var attempts atomic.Int64
		assessor := funcAssessor{kind: "policy", fn: func(context.Context, any) (any, error) {
			attempts.Add(1)
			return nil, errors.New("upstream flaked")
		}}

		opts := fanout.DefaultOptions()
		opts.MaxRetries = 2
		opts.BackoffBase = 2.0
		o, err := orchestrator.New(opts, newCache(t, opts), nil, nil, nil, assessor)
		require.NoError(t, err)

		start := time.Now()
		result, err := o.Submit(context.Background(), makeTasks("policy", 1), orchestrator.ModeParallel)
		require.NoError(t, err)

		// Attempts at t=0, t=2s, t=6s: delays of 2^1 and 2^2 seconds.
		require.Equal(t, int64(3), attempts.Load())
		require.Equal(t, 6*time.Second, time.Since(start))

		task := result.Tasks[0]
		require.Equal(t, domain.StatusFailed, task.Status)
		require.Equal(t, 2, task.RetryCount)
		require.Equal(t, domain.BatchFailed, result.Status)
	})
}

func TestSubmit_BackoffDelayIsCapped(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var attempts atomic.Int64
		assessor := funcAssessor{kind: "policy", fn: func(context.Context, any) (any, error) {
			attempts.Add(1)
			return nil, errors.New("upstream flaked")
		}}

		opts := fanout.DefaultOptions()
		opts.MaxRetries = 3
		opts.BackoffBase = 10.0
		opts.BackoffCap = 5 * time.Second
		o, err := orchestrator.New(opts, newCache(t, opts), nil, nil, nil, assessor)
		require.NoError(t, err)

		start := time.Now()
		_, err = o.Submit(context.Background(), makeTasks("policy", 1), orchestrator.ModeSequential)
		require.NoError(t, err)

		require.Equal(t, int64(4), attempts.Load())
		require.Equal(t, 15*time.Second, time.Since(start))
	})
}

func TestSubmit_PermanentFailureShortCircuits(t *testing.T) {
	var attempts atomic.Int64
	cause := errors.New("payload rejected")
	assessor := funcAssessor{kind: "policy", fn: func(context.Context, any) (any, error) {
		attempts.Add(1)
		return nil, domain.Permanent(cause)
	}}

	opts := fanout.DefaultOptions()
	opts.MaxRetries = 5
	o, err := orchestrator.New(opts, newCache(t, opts), nil, nil, nil, assessor)
	require.NoError(t, err)

	result, err := o.Submit(context.Background(), makeTasks("policy", 1), orchestrator.ModeParallel)
	require.NoError(t, err)

	require.Equal(t, int64(1), attempts.Load())
	task := result.Tasks[0]
	require.Equal(t, domain.StatusFailed, task.Status)
	require.Zero(t, task.RetryCount)
	require.ErrorIs(t, task.Cause, cause)
}

func TestSubmit_TaskRetryOverrides(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var attempts atomic.Int64
		assessor := funcAssessor{kind: "policy", fn: func(context.Context, any) (any, error) {
			attempts.Add(1)
			return nil, errors.New("upstream flaked")
		}}

		opts := fanout.DefaultOptions()
		opts.MaxRetries = 4
		o, err := orchestrator.New(opts, newCache(t, opts), nil, nil, nil, assessor)
		require.NoError(t, err)

		// Negative MaxRetries disables retries entirely for this task.
		tasks := []*domain.Task{{Kind: "policy", Payload: "no-retry", MaxRetries: -1}}
		result, err := o.Submit(context.Background(), tasks, orchestrator.ModeSequential)
		require.NoError(t, err)

		require.Equal(t, int64(1), attempts.Load())
		require.Equal(t, domain.StatusFailed, result.Tasks[0].Status)
	})
}

func TestSubmit_UnknownKindFailsTask(t *testing.T) {
	opts := fanout.DefaultOptions()
	o, err := orchestrator.New(opts, newCache(t, opts), nil, nil, nil)
	require.NoError(t, err)

	result, err := o.Submit(context.Background(), makeTasks("unregistered", 1), orchestrator.ModeParallel)
	require.NoError(t, err)

	task := result.Tasks[0]
	require.Equal(t, domain.StatusFailed, task.Status)
	require.ErrorIs(t, task.Cause, domain.ErrUnknownKind)
	require.True(t, domain.IsPermanent(task.Cause))
}

func TestSubmit_ParallelConcurrencyIsBounded(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var current, peak atomic.Int64
		assessor := funcAssessor{kind: "policy", fn: func(ctx context.Context, _ any) (any, error) {
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			current.Add(-1)
			return "ok", nil
		}}

		opts := fanout.DefaultOptions()
		opts.MaxConcurrency = 4
		o, err := orchestrator.New(opts, newCache(t, opts), nil, nil, nil, assessor)
		require.NoError(t, err)

		result, err := o.Submit(context.Background(), makeTasks("policy", 20), orchestrator.ModeParallel)
		require.NoError(t, err)

		require.Equal(t, domain.BatchCompleted, result.Status)
		require.LessOrEqual(t, peak.Load(), int64(4))
	})
}

func TestSubmit_SequentialPreservesOrder(t *testing.T) {
	var order []int
	assessor := funcAssessor{kind: "policy", fn: func(_ context.Context, payload any) (any, error) {
		order = append(order, payload.(map[string]any)["index"].(int))
		return "ok", nil
	}}

	opts := fanout.DefaultOptions()
	o, err := orchestrator.New(opts, newCache(t, opts), nil, nil, nil, assessor)
	require.NoError(t, err)

	result, err := o.Submit(context.Background(), makeTasks("policy", 6), orchestrator.ModeSequential)
	require.NoError(t, err)

	require.Equal(t, domain.BatchCompleted, result.Status)
	require.Equal(t, []int{0, 1, 2, 3, 4, 5}, order)
}

func TestSubmit_PartialBatchEndToEnd(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		failures := make(map[int]int)
		assessor := funcAssessor{kind: "policy", fn: func(_ context.Context, payload any) (any, error) {
			i := payload.(map[string]any)["index"].(int)
			switch {
			case i == 9:
				return nil, errors.New("always down")
			case i >= 6 && failures[i] < 2:
				failures[i]++
				return nil, errors.New("upstream flaked")
			default:
				return fmt.Sprintf("assessed-%d", i), nil
			}
		}}

		opts := fanout.DefaultOptions()
		opts.MaxRetries = 2
		o, err := orchestrator.New(opts, newCache(t, opts), nil, nil, nil, assessor)
		require.NoError(t, err)

		// Sequential keeps the scripted failure map race-free.
		result, err := o.Submit(context.Background(), makeTasks("policy", 10), orchestrator.ModeSequential)
		require.NoError(t, err)

		require.Equal(t, domain.BatchPartial, result.Status)
		require.Equal(t, 9, result.Metrics.CompletedTasks)
		require.Equal(t, 1, result.Metrics.FailedTasks)
		require.Equal(t, uint64(10), result.Metrics.CacheMisses)
		require.Zero(t, result.Metrics.CacheHits)

		for i, task := range result.Tasks {
			if i == 9 {
				require.Equal(t, domain.StatusFailed, task.Status)
				require.Equal(t, 2, task.RetryCount)
				continue
			}
			require.Equal(t, domain.StatusCompleted, task.Status)
			require.Equal(t, fmt.Sprintf("assessed-%d", i), task.Result)
		}

		// Resubmitting the same batch is served from the cache except for the
		// poisoned task; failures are never memoized.
		require.Equal(t, 1, o.Metrics().FailedTasks)

		rerun, err := o.Submit(context.Background(), makeTasks("policy", 10), orchestrator.ModeSequential)
		require.NoError(t, err)
		require.Equal(t, uint64(9), rerun.Metrics.CacheHits)
		require.Equal(t, uint64(1), rerun.Metrics.CacheMisses)
	})
}

func TestSubmit_OverallDeadlineFailsUndispatchedTasks(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		assessor := funcAssessor{kind: "policy", fn: func(ctx context.Context, _ any) (any, error) {
			select {
			case <-time.After(100 * time.Millisecond):
				return "ok", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}}

		opts := fanout.DefaultOptions()
		opts.MaxConcurrency = 1
		opts.MaxRetries = 0
		opts.OverallDeadline = 250 * time.Millisecond
		o, err := orchestrator.New(opts, newCache(t, opts), nil, nil, nil, assessor)
		require.NoError(t, err)

		result, err := o.Submit(context.Background(), makeTasks("policy", 5), orchestrator.ModeParallel)
		require.NoError(t, err)

		completed, failed := 0, 0
		for _, task := range result.Tasks {
			switch task.Status {
			case domain.StatusCompleted:
				completed++
			case domain.StatusFailed:
				failed++
				require.ErrorIs(t, task.Cause, context.DeadlineExceeded)
			}
		}
		require.Equal(t, 2, completed)
		require.Equal(t, 3, failed)
		require.Equal(t, domain.BatchPartial, result.Status)
	})
}

func TestSubmit_AssignsStableIDsAndKeepsExplicitOnes(t *testing.T) {
	assessor := funcAssessor{kind: "policy", fn: func(context.Context, any) (any, error) {
		return "ok", nil
	}}

	opts := fanout.DefaultOptions()
	o, err := orchestrator.New(opts, newCache(t, opts), nil, nil, nil, assessor)
	require.NoError(t, err)

	tasks := []*domain.Task{
		{ID: "caller-chosen", Kind: "policy", Payload: "a"},
		{Kind: "policy", Payload: "b"},
	}
	result, err := o.Submit(context.Background(), tasks, orchestrator.ModeSequential)
	require.NoError(t, err)

	require.Equal(t, "caller-chosen", result.Tasks[0].ID)
	short, err := domain.ShortID("policy", "b")
	require.NoError(t, err)
	require.Equal(t, short+"-1", result.Tasks[1].ID)
}

func TestMetrics_AccumulateAcrossBatches(t *testing.T) {
	assessor := funcAssessor{kind: "policy", fn: func(context.Context, any) (any, error) {
		return "ok", nil
	}}

	opts := fanout.DefaultOptions()
	o, err := orchestrator.New(opts, newCache(t, opts), nil, nil, nil, assessor)
	require.NoError(t, err)

	_, err = o.Submit(context.Background(), makeTasks("policy", 3), orchestrator.ModeParallel)
	require.NoError(t, err)
	_, err = o.Submit(context.Background(), makeTasks("policy", 3), orchestrator.ModeParallel)
	require.NoError(t, err)

	lifetime := o.Metrics()
	require.Equal(t, 6, lifetime.TotalTasks)
	require.Equal(t, 6, lifetime.CompletedTasks)
	require.Equal(t, uint64(3), lifetime.CacheMisses)
	require.Equal(t, uint64(3), lifetime.CacheHits)
	require.Equal(t, 6, lifetime.PerKind["policy"].Count)
}
