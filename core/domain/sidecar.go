package domain

import "time"

// Priority orders sidecar requests within a kind's queue. Higher priorities
// are delivered first; requests of equal priority are delivered in enqueue
// order.
type Priority int

const (
	// PriorityLow is for opportunistic background analysis.
	PriorityLow Priority = iota
	// PriorityNormal is the default.
	PriorityNormal
	// PriorityHigh jumps ahead of the default traffic.
	PriorityHigh
	// PriorityCritical is delivered before everything else.
	PriorityCritical
)

// String returns the priority name for log lines.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "normal"
	}
}

// SidecarRequest is one background analysis request. It is consumed exactly
// once by a worker bound to its kind.
type SidecarRequest struct {
	ID        string
	Kind      string
	Priority  Priority
	Payload   any
	CreatedAt time.Time
}

// SidecarResponse is the retained outcome of a sidecar request, keyed by
// request ID until polled.
type SidecarResponse struct {
	ID             string
	Kind           string
	Result         any
	Confidence     float64
	ProcessingTime time.Duration
	CompletedAt    time.Time
}

// Analysis is what an Analyzer produces: a result plus its own confidence.
// Any blending of confidences across analyses is caller policy, not part of
// the core.
type Analysis struct {
	Result     any
	Confidence float64
}
