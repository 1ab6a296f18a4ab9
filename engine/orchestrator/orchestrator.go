// Package orchestrator fans out batches of independent tasks under bounded
// concurrency, memoizing results through the shared result cache.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.trai.ch/fanout"
	"go.trai.ch/fanout/core/domain"
	"go.trai.ch/fanout/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/semaphore"
)

// Mode selects how a batch is scheduled.
type Mode string

const (
	// ModeParallel runs tasks concurrently, gated by the counting semaphore.
	ModeParallel Mode = "parallel"
	// ModeSequential runs tasks one at a time in input order.
	ModeSequential Mode = "sequential"
)

// Orchestrator dispatches batches of tasks to registered assessors. One
// instance carries one lifetime PipelineMetrics; the cache is the only
// resource it shares with the sidecar queue.
type Orchestrator struct {
	assessors  map[string]ports.Assessor
	cache      ports.ResultCache
	logger     ports.Logger
	tracer     ports.Tracer
	classifier domain.Classifier
	opts       fanout.Options
	metrics    *domain.PipelineMetrics
}

// New creates an Orchestrator. The classifier may be nil, in which case every
// failure not marked permanent is retried. Assessor kinds must be unique.
func New(
	opts fanout.Options,
	cache ports.ResultCache,
	logger ports.Logger,
	tracer ports.Tracer,
	classifier domain.Classifier,
	assessors ...ports.Assessor,
) (*Orchestrator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if cache == nil {
		return nil, zerr.With(fanout.ErrInvalidOptions, "dependency", "cache")
	}
	if logger == nil {
		logger = noopLogger{}
	}
	if tracer == nil {
		tracer = noopTracer{}
	}
	if classifier == nil {
		classifier = domain.DefaultClassifier
	}

	registry := make(map[string]ports.Assessor, len(assessors))
	for _, a := range assessors {
		kind := a.Kind()
		if _, dup := registry[kind]; dup {
			return nil, zerr.With(domain.ErrDuplicateKind, "kind", kind)
		}
		registry[kind] = a
	}

	return &Orchestrator{
		assessors:  registry,
		cache:      cache,
		logger:     logger,
		tracer:     tracer,
		classifier: classifier,
		opts:       opts,
		metrics:    domain.NewPipelineMetrics(),
	}, nil
}

// Metrics returns a snapshot of the orchestrator's lifetime counters.
func (o *Orchestrator) Metrics() domain.MetricsSnapshot {
	return o.metrics.Snapshot()
}

// Submit runs a batch to completion and returns the aggregate result.
// Individual task failures are captured on the task records and never
// surface as a Submit error; only misuse does. The returned tasks are the
// caller's own, in input order.
func (o *Orchestrator) Submit(ctx context.Context, tasks []*domain.Task, mode Mode) (*domain.BatchResult, error) {
	if mode != ModeParallel && mode != ModeSequential {
		return nil, zerr.With(domain.ErrInvalidMode, "mode", string(mode))
	}
	for i, t := range tasks {
		if t == nil || t.Kind == "" {
			return nil, zerr.With(domain.ErrInvalidTask, "index", i)
		}
	}

	if o.opts.OverallDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.OverallDeadline)
		defer cancel()
	}

	o.assignIDs(tasks)

	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	o.tracer.EmitPlan(ctx, ids)

	batchStart := time.Now()
	metrics := domain.NewPipelineMetrics()

	switch mode {
	case ModeParallel:
		sem := semaphore.NewWeighted(int64(o.opts.MaxConcurrency))
		var wg sync.WaitGroup
		for _, t := range tasks {
			wg.Add(1)
			go func(t *domain.Task) {
				defer wg.Done()
				o.runTask(ctx, t, sem, metrics)
			}(t)
		}
		wg.Wait()
	case ModeSequential:
		for _, t := range tasks {
			o.runTask(ctx, t, nil, metrics)
		}
	}

	snapshot := metrics.Snapshot()
	o.metrics.Merge(snapshot)

	return &domain.BatchResult{
		Status:   batchStatus(tasks),
		Tasks:    tasks,
		Metrics:  snapshot,
		Duration: time.Since(batchStart),
	}, nil
}

// assignIDs fills empty task IDs with a compact fingerprint-derived form.
// The index suffix keeps IDs unique when a batch repeats a logical request.
func (o *Orchestrator) assignIDs(tasks []*domain.Task) {
	for i, t := range tasks {
		if t.ID != "" {
			continue
		}
		short, err := domain.ShortID(t.Kind, t.Payload)
		if err != nil {
			short = t.Kind
		}
		t.ID = fmt.Sprintf("%s-%d", short, i)
	}
}

func batchStatus(tasks []*domain.Task) domain.BatchStatus {
	completed := 0
	for _, t := range tasks {
		if t.Status == domain.StatusCompleted {
			completed++
		}
	}
	switch completed {
	case len(tasks):
		return domain.BatchCompleted
	case 0:
		if len(tasks) == 0 {
			return domain.BatchCompleted
		}
		return domain.BatchFailed
	default:
		return domain.BatchPartial
	}
}

type noopLogger struct{}

func (noopLogger) Info(string) {}
func (noopLogger) Warn(string) {}
func (noopLogger) Error(error) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string, _ ...ports.SpanOption) (context.Context, ports.Span) {
	return ctx, noopSpan{}
}
func (noopTracer) EmitPlan(context.Context, []string) {}

type noopSpan struct{}

func (noopSpan) End()                    {}
func (noopSpan) RecordError(error)       {}
func (noopSpan) SetAttribute(string, any) {}
