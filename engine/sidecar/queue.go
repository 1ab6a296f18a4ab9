// Package sidecar runs lower-priority background analysis off the
// orchestrator's critical path: a priority queue per kind, drained by
// dedicated workers, with responses retained until polled.
package sidecar

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.trai.ch/fanout"
	"go.trai.ch/fanout/core/domain"
	"go.trai.ch/fanout/core/ports"
	"go.trai.ch/zerr"
)

// Queue accepts analysis requests and hands them to workers bound to one
// kind each. Each kind owns its own priority queue, so a starved kind can
// never have its items bounced around by mismatched workers.
type Queue struct {
	logger    ports.Logger
	analyzers map[string]ports.Analyzer
	queues    map[string]*kindQueue

	mu      sync.Mutex
	results map[string]domain.SidecarResponse

	active atomic.Bool
	stop   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
	seq    atomic.Uint64

	pollTimeout time.Duration
}

// New creates a Queue and starts opts.PerKindWorkers workers for every
// registered analyzer kind. Workers run until Shutdown.
func New(opts fanout.Options, logger ports.Logger, analyzers ...ports.Analyzer) (*Queue, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = nopLogger{}
	}

	registry := make(map[string]ports.Analyzer, len(analyzers))
	queues := make(map[string]*kindQueue, len(analyzers))
	for _, a := range analyzers {
		kind := a.Kind()
		if _, dup := registry[kind]; dup {
			return nil, zerr.With(domain.ErrDuplicateKind, "kind", kind)
		}
		registry[kind] = a
		queues[kind] = newKindQueue()
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		logger:      logger,
		analyzers:   registry,
		queues:      queues,
		results:     make(map[string]domain.SidecarResponse),
		stop:        make(chan struct{}),
		cancel:      cancel,
		pollTimeout: opts.QueuePollTimeout,
	}
	q.active.Store(true)

	for kind := range registry {
		for i := 0; i < opts.PerKindWorkers; i++ {
			q.wg.Add(1)
			go q.worker(ctx, kind)
		}
	}
	return q, nil
}

// Submit enqueues a request and returns its ID immediately. It fails with
// ErrQueueShutdown after Shutdown and ErrUnknownKind for unregistered kinds.
func (q *Queue) Submit(kind string, payload any, priority domain.Priority) (string, error) {
	if !q.active.Load() {
		return "", domain.ErrQueueShutdown
	}
	kq, ok := q.queues[kind]
	if !ok {
		return "", zerr.With(domain.ErrUnknownKind, "kind", kind)
	}

	req := &domain.SidecarRequest{
		ID:        uuid.NewString(),
		Kind:      kind,
		Priority:  priority,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
	kq.push(&queued{req: req, seq: q.seq.Add(1)})
	return req.ID, nil
}

// Poll returns the response for a request ID once a worker has produced it.
// A returned response is consumed: polling the same ID again reports not
// ready. Requests whose analysis failed never become ready; the failure is
// logged by the worker.
func (q *Queue) Poll(requestID string) (domain.SidecarResponse, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	resp, ok := q.results[requestID]
	if ok {
		delete(q.results, requestID)
	}
	return resp, ok
}

// Pending returns how many requests are queued but not yet picked up.
func (q *Queue) Pending() int {
	total := 0
	for _, kq := range q.queues {
		total += kq.len()
	}
	return total
}

// Shutdown stops accepting submissions and joins the workers. Workers finish
// the item they are processing; queued items are abandoned. It returns
// ErrShutdownTimeout if the workers do not stop in time. Shutdown is
// idempotent.
func (q *Queue) Shutdown(timeout time.Duration) error {
	if !q.active.CompareAndSwap(true, false) {
		return nil
	}
	close(q.stop)
	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		return zerr.With(domain.ErrShutdownTimeout, "timeout", timeout.String())
	}
}

// worker drains the queue of one kind until shutdown. Failures are confined
// to the item that caused them: the loop survives both errors and panics.
func (q *Queue) worker(ctx context.Context, kind string) {
	defer q.wg.Done()

	kq := q.queues[kind]
	analyzer := q.analyzers[kind]

	for {
		select {
		case <-q.stop:
			return
		default:
		}

		req, ok := kq.pop(q.pollTimeout, q.stop)
		if !ok {
			// Timed out or stopping; loop to re-check the shutdown flag.
			continue
		}
		q.process(ctx, analyzer, req)
	}
}

func (q *Queue) process(ctx context.Context, analyzer ports.Analyzer, req *domain.SidecarRequest) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error(zerr.With(
				zerr.New(fmt.Sprintf("analyzer panicked: %v", r)),
				"request", req.ID,
			))
		}
	}()

	start := time.Now()
	analysis, err := analyzer.Analyze(ctx, req.Payload)
	if err != nil {
		q.logger.Error(zerr.With(
			zerr.With(zerr.Wrap(err, "sidecar analysis failed"), "kind", req.Kind),
			"request", req.ID,
		))
		return
	}

	resp := domain.SidecarResponse{
		ID:             req.ID,
		Kind:           req.Kind,
		Result:         analysis.Result,
		Confidence:     analysis.Confidence,
		ProcessingTime: time.Since(start),
		CompletedAt:    time.Now(),
	}

	q.mu.Lock()
	q.results[req.ID] = resp
	q.mu.Unlock()
}

type nopLogger struct{}

func (nopLogger) Info(string) {}
func (nopLogger) Warn(string) {}
func (nopLogger) Error(error) {}
