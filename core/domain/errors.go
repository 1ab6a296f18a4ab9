package domain

import (
	"errors"
)

var (
	// ErrUnknownKind is returned when a task or sidecar request names a kind
	// with no registered handler.
	ErrUnknownKind = errors.New("no handler registered for kind")

	// ErrDuplicateKind is returned when two handlers register the same kind.
	ErrDuplicateKind = errors.New("duplicate kind registration")

	// ErrQueueShutdown is returned when a request is submitted to a sidecar
	// queue after shutdown.
	ErrQueueShutdown = errors.New("sidecar queue is shut down")

	// ErrShutdownTimeout is returned when sidecar workers do not drain within
	// the shutdown timeout.
	ErrShutdownTimeout = errors.New("sidecar workers did not stop within timeout")

	// ErrInvalidKey is returned by the cache when a key is empty.
	ErrInvalidKey = errors.New("cache key must not be empty")

	// ErrInvalidCacheSize is returned when a cache is constructed without
	// room for a single entry.
	ErrInvalidCacheSize = errors.New("cache must hold at least one entry")

	// ErrInvalidTask is returned when a submitted batch contains a nil task
	// or a task without a kind.
	ErrInvalidTask = errors.New("invalid task")

	// ErrInvalidMode is returned when Submit is called with an unknown mode.
	ErrInvalidMode = errors.New("invalid execution mode")

	// ErrTaskNeverDispatched marks a task that was still waiting for a slot
	// when the batch deadline fired.
	ErrTaskNeverDispatched = errors.New("task not dispatched before deadline")

	// ErrNotCanonicalizable is returned when a payload cannot be serialized
	// into canonical form for fingerprinting.
	ErrNotCanonicalizable = errors.New("payload is not canonicalizable")
)

// ErrorClass determines whether a failure is eligible for retry.
type ErrorClass int

const (
	// ClassTransient failures are retried until the budget is exhausted.
	ClassTransient ErrorClass = iota
	// ClassPermanent failures short-circuit remaining retries.
	ClassPermanent
)

// Classifier maps a work-function failure to its retry class.
type Classifier func(error) ErrorClass

// PermanentError marks a failure as non-retryable. Assessors wrap invalid
// payloads and logic errors with Permanent to short-circuit the retry loop.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as a non-retryable failure. It returns nil for nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err is marked permanent anywhere in its chain.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// DefaultClassifier treats every failure as transient unless it is marked
// permanent. Timeouts and transient I/O therefore consume retry budget, while
// Permanent-wrapped errors fail immediately.
func DefaultClassifier(err error) ErrorClass {
	if IsPermanent(err) {
		return ClassPermanent
	}
	return ClassTransient
}
