package fanout

import (
	"errors"
	"time"

	"go.trai.ch/zerr"
)

// ErrInvalidOptions is returned when the configuration surface is misused.
var ErrInvalidOptions = errors.New("invalid options")

// Options is the single configuration surface for the orchestration core.
// There is no implicit environment coupling; callers either fill this struct
// directly or load it from a file via adapters/config.
type Options struct {
	// MaxCacheSize bounds the number of resident entries in the result cache.
	MaxCacheSize int
	// DefaultTTL is applied to cached results when a task does not set its own.
	DefaultTTL time.Duration
	// CleanupInterval is the minimum time between expired-entry sweeps
	// piggybacked on cache writes.
	CleanupInterval time.Duration
	// MaxConcurrency bounds how many work functions execute simultaneously in
	// a parallel batch, independent of batch size.
	MaxConcurrency int
	// MaxRetries is the default retry budget per task. A task may override it.
	MaxRetries int
	// BackoffBase is the base of the exponential backoff, in seconds. The
	// delay before retry n is BackoffBase^n seconds, capped at BackoffCap.
	BackoffBase float64
	// BackoffCap caps the inter-attempt delay.
	BackoffCap time.Duration
	// AttemptTimeout bounds a single work-function attempt. Exceeding it is a
	// transient failure subject to the normal retry budget. Zero disables it.
	AttemptTimeout time.Duration
	// OverallDeadline bounds a whole Submit call. Zero disables it.
	OverallDeadline time.Duration
	// PerKindWorkers is the number of sidecar workers dedicated to each kind.
	PerKindWorkers int
	// QueuePollTimeout is how long a sidecar worker blocks on an empty queue
	// before re-checking the shutdown flag.
	QueuePollTimeout time.Duration
}

// DefaultOptions returns the options used when a field is left unset.
func DefaultOptions() Options {
	return Options{
		MaxCacheSize:     1024,
		DefaultTTL:       15 * time.Minute,
		CleanupInterval:  time.Minute,
		MaxConcurrency:   8,
		MaxRetries:       2,
		BackoffBase:      2.0,
		BackoffCap:       30 * time.Second,
		AttemptTimeout:   time.Minute,
		OverallDeadline:  0,
		PerKindWorkers:   1,
		QueuePollTimeout: 250 * time.Millisecond,
	}
}

// Validate checks the options for misuse. It reports the first offending
// field; misuse is a top-level error, never a per-task failure.
func (o Options) Validate() error {
	switch {
	case o.MaxCacheSize <= 0:
		return zerr.With(ErrInvalidOptions, "field", "max_cache_size")
	case o.MaxConcurrency <= 0:
		return zerr.With(ErrInvalidOptions, "field", "max_concurrency")
	case o.MaxRetries < 0:
		return zerr.With(ErrInvalidOptions, "field", "max_retries")
	case o.BackoffBase <= 0:
		return zerr.With(ErrInvalidOptions, "field", "backoff_base")
	case o.BackoffCap < 0:
		return zerr.With(ErrInvalidOptions, "field", "backoff_cap")
	case o.AttemptTimeout < 0:
		return zerr.With(ErrInvalidOptions, "field", "attempt_timeout")
	case o.OverallDeadline < 0:
		return zerr.With(ErrInvalidOptions, "field", "overall_deadline")
	case o.PerKindWorkers <= 0:
		return zerr.With(ErrInvalidOptions, "field", "per_kind_worker_count")
	case o.QueuePollTimeout <= 0:
		return zerr.With(ErrInvalidOptions, "field", "queue_poll_timeout")
	case o.CleanupInterval < 0:
		return zerr.With(ErrInvalidOptions, "field", "cleanup_interval")
	}
	return nil
}
