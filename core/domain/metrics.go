package domain

import (
	"sync"
	"time"
)

// KindStats aggregates timings for one task kind.
type KindStats struct {
	Count int
	Total time.Duration
}

// MetricsSnapshot is an immutable copy of pipeline counters, safe to hand to
// callers after a batch completes.
type MetricsSnapshot struct {
	TotalTasks     int
	CompletedTasks int
	FailedTasks    int
	CacheHits      uint64
	CacheMisses    uint64
	PerKind        map[string]KindStats
}

// CacheHitRate returns hits/(hits+misses), or 0 when nothing was looked up.
func (s MetricsSnapshot) CacheHitRate() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total)
}

// PipelineMetrics accumulates batch counters under its own lock, independent
// of the cache's internal statistics. A batch owns a private instance during
// Submit and merges it into the orchestrator's lifetime instance at the end.
type PipelineMetrics struct {
	mu        sync.Mutex
	completed int
	failed    int
	hits      uint64
	misses    uint64
	perKind   map[string]KindStats
}

// NewPipelineMetrics returns an empty metrics accumulator.
func NewPipelineMetrics() *PipelineMetrics {
	return &PipelineMetrics{perKind: make(map[string]KindStats)}
}

// TaskCompleted records a successful task of the given kind.
func (m *PipelineMetrics) TaskCompleted(kind string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed++
	m.recordKindLocked(kind, d)
}

// TaskFailed records a terminally failed task of the given kind.
func (m *PipelineMetrics) TaskFailed(kind string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed++
	m.recordKindLocked(kind, d)
}

func (m *PipelineMetrics) recordKindLocked(kind string, d time.Duration) {
	ks := m.perKind[kind]
	ks.Count++
	ks.Total += d
	m.perKind[kind] = ks
}

// CacheHit records a memoized result that skipped the work function.
func (m *PipelineMetrics) CacheHit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits++
}

// CacheMiss records a fingerprint lookup that found nothing.
func (m *PipelineMetrics) CacheMiss() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.misses++
}

// Merge folds a snapshot into this instance.
func (m *PipelineMetrics) Merge(s MetricsSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed += s.CompletedTasks
	m.failed += s.FailedTasks
	m.hits += s.CacheHits
	m.misses += s.CacheMisses
	for kind, ks := range s.PerKind {
		cur := m.perKind[kind]
		cur.Count += ks.Count
		cur.Total += ks.Total
		m.perKind[kind] = cur
	}
}

// Snapshot returns a consistent copy of the counters.
func (m *PipelineMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	perKind := make(map[string]KindStats, len(m.perKind))
	for kind, ks := range m.perKind {
		perKind[kind] = ks
	}
	return MetricsSnapshot{
		TotalTasks:     m.completed + m.failed,
		CompletedTasks: m.completed,
		FailedTasks:    m.failed,
		CacheHits:      m.hits,
		CacheMisses:    m.misses,
		PerKind:        perKind,
	}
}
