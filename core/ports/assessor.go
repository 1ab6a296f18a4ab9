// Package ports defines the interfaces between the orchestration core and
// its collaborators.
package ports

import (
	"context"

	"go.trai.ch/fanout/core/domain"
)

// Assessor executes one kind of unit of work. The surrounding application
// registers one Assessor per kind; the orchestrator dispatches tasks to the
// Assessor whose Kind matches, so there is no runtime string-dispatch table
// to fall through.
//
//go:generate mockgen -source=assessor.go -destination=mocks/mock_assessor.go -package=mocks
type Assessor interface {
	// Kind returns the task kind this assessor handles.
	Kind() string
	// Assess runs the unit of work. Implementations should honor ctx and
	// wrap non-retryable failures with domain.Permanent.
	Assess(ctx context.Context, payload any) (any, error)
}

// Analyzer executes one kind of lower-priority background analysis for the
// sidecar queue, producing a result with its own confidence.
type Analyzer interface {
	// Kind returns the request kind this analyzer handles.
	Kind() string
	// Analyze runs the analysis for one dequeued request.
	Analyze(ctx context.Context, payload any) (domain.Analysis, error)
}
