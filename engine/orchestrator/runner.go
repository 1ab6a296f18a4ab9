package orchestrator

import (
	"context"
	"math"
	"time"

	"go.trai.ch/fanout/core/domain"
	"go.trai.ch/fanout/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/semaphore"
)

// runTask drives one task to a terminal state: cache lookup, then a bounded
// attempt loop with classification-driven retries. The semaphore is acquired
// only around work-function attempts, so cache hits never consume a slot.
// In sequential mode sem is nil.
func (o *Orchestrator) runTask(ctx context.Context, t *domain.Task, sem *semaphore.Weighted, metrics *domain.PipelineMetrics) {
	ctx, span := o.tracer.Start(ctx, t.ID)
	defer span.End()
	span.SetAttribute("fanout.kind", t.Kind)

	t.Status = domain.StatusInProgress
	t.StartTime = time.Now()

	complete := func(result any, cached bool) {
		t.Result = result
		t.CacheHit = cached
		t.Status = domain.StatusCompleted
		t.EndTime = time.Now()
		metrics.TaskCompleted(t.Kind, t.Duration())
	}
	fail := func(cause error) {
		t.Cause = cause
		t.Err = cause.Error()
		t.Status = domain.StatusFailed
		t.EndTime = time.Now()
		metrics.TaskFailed(t.Kind, t.Duration())
		span.RecordError(cause)
	}

	fp, err := domain.Fingerprint(t.Kind, t.Payload)
	if err != nil {
		fail(domain.Permanent(err))
		return
	}
	t.Fingerprint = fp

	if value, found := o.cache.Get(fp); found {
		metrics.CacheHit()
		span.SetAttribute("fanout.cached", true)
		complete(value, true)
		return
	}
	metrics.CacheMiss()

	assessor, ok := o.assessors[t.Kind]
	if !ok {
		fail(domain.Permanent(zerr.With(domain.ErrUnknownKind, "kind", t.Kind)))
		return
	}

	if sem != nil {
		// Tasks that never get a slot before the deadline fires are failed
		// here without ever dispatching the work function.
		if err := sem.Acquire(ctx, 1); err != nil {
			fail(zerr.Wrap(context.Cause(ctx), domain.ErrTaskNeverDispatched.Error()))
			return
		}
		defer sem.Release(1)
	}

	maxRetries := t.MaxRetries
	if maxRetries == 0 {
		maxRetries = o.opts.MaxRetries
	} else if maxRetries < 0 {
		maxRetries = 0
	}

	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			fail(zerr.Wrap(context.Cause(ctx), "canceled before attempt"))
			return
		}

		result, err := o.attempt(ctx, assessor, t.Payload)
		if err == nil {
			o.memoize(fp, result, t.TTL)
			complete(result, false)
			return
		}
		span.SetAttribute("fanout.attempt", attempt+1)

		// A running attempt finishes cooperatively, but once cancellation is
		// observed the task is not retried further.
		if ctx.Err() != nil {
			fail(zerr.Wrap(err, "canceled during attempt"))
			return
		}
		if o.classifier(err) == domain.ClassPermanent || attempt >= maxRetries {
			fail(err)
			return
		}

		t.RetryCount++
		if !o.backoff(ctx, t.RetryCount) {
			fail(zerr.Wrap(context.Cause(ctx), "canceled during backoff"))
			return
		}
	}
}

// attempt runs the work function once under the per-attempt timeout.
func (o *Orchestrator) attempt(ctx context.Context, assessor ports.Assessor, payload any) (any, error) {
	if o.opts.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.AttemptTimeout)
		defer cancel()
	}
	return assessor.Assess(ctx, payload)
}

// memoize stores a successful result. The cache only rejects misuse, which
// cannot recover by retrying, so a rejection is logged and the task still
// completes.
func (o *Orchestrator) memoize(fp string, result any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = o.opts.DefaultTTL
	}
	if err := o.cache.Set(fp, result, ttl); err != nil {
		o.logger.Error(zerr.With(zerr.Wrap(err, "failed to memoize result"), "fingerprint", fp))
	}
}

// backoff sleeps backoffBase^retryCount seconds, capped, as an explicit loop
// state rather than recursive self-invocation. It returns false when the
// context fired first.
func (o *Orchestrator) backoff(ctx context.Context, retryCount int) bool {
	delay := time.Duration(math.Pow(o.opts.BackoffBase, float64(retryCount)) * float64(time.Second))
	if o.opts.BackoffCap > 0 && delay > o.opts.BackoffCap {
		delay = o.opts.BackoffCap
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
