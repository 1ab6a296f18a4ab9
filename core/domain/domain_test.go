package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.trai.ch/fanout/core/domain"
)

func TestTaskStatus_IsTerminal(t *testing.T) {
	require.False(t, domain.StatusPending.IsTerminal())
	require.False(t, domain.StatusInProgress.IsTerminal())
	require.True(t, domain.StatusCompleted.IsTerminal())
	require.True(t, domain.StatusFailed.IsTerminal())
}

func TestPermanent_Classification(t *testing.T) {
	base := errors.New("bad payload")

	require.Nil(t, domain.Permanent(nil))
	require.False(t, domain.IsPermanent(base))
	require.True(t, domain.IsPermanent(domain.Permanent(base)))

	// The mark survives further wrapping.
	wrapped := errors.Join(errors.New("outer"), domain.Permanent(base))
	require.True(t, domain.IsPermanent(wrapped))

	require.Equal(t, domain.ClassPermanent, domain.DefaultClassifier(domain.Permanent(base)))
	require.Equal(t, domain.ClassTransient, domain.DefaultClassifier(base))
}

func TestPermanent_PreservesCause(t *testing.T) {
	base := errors.New("bad payload")
	marked := domain.Permanent(base)

	require.True(t, errors.Is(marked, base))
	require.Equal(t, "bad payload", marked.Error())
}

func TestPriority_String(t *testing.T) {
	require.Equal(t, "low", domain.PriorityLow.String())
	require.Equal(t, "normal", domain.PriorityNormal.String())
	require.Equal(t, "high", domain.PriorityHigh.String())
	require.Equal(t, "critical", domain.PriorityCritical.String())
}

func TestPipelineMetrics_SnapshotAndMerge(t *testing.T) {
	m := domain.NewPipelineMetrics()
	m.TaskCompleted("scan", 2*time.Second)
	m.TaskCompleted("scan", time.Second)
	m.TaskFailed("report", 500*time.Millisecond)
	m.CacheHit()
	m.CacheHit()
	m.CacheMiss()

	s := m.Snapshot()
	require.Equal(t, 3, s.TotalTasks)
	require.Equal(t, 2, s.CompletedTasks)
	require.Equal(t, 1, s.FailedTasks)
	require.Equal(t, uint64(2), s.CacheHits)
	require.Equal(t, uint64(1), s.CacheMisses)
	require.Equal(t, domain.KindStats{Count: 2, Total: 3 * time.Second}, s.PerKind["scan"])
	require.Equal(t, domain.KindStats{Count: 1, Total: 500 * time.Millisecond}, s.PerKind["report"])
	require.InDelta(t, 2.0/3.0, s.CacheHitRate(), 1e-9)

	lifetime := domain.NewPipelineMetrics()
	lifetime.Merge(s)
	lifetime.Merge(s)
	merged := lifetime.Snapshot()
	require.Equal(t, 6, merged.TotalTasks)
	require.Equal(t, domain.KindStats{Count: 4, Total: 6 * time.Second}, merged.PerKind["scan"])
}

func TestMetricsSnapshot_HitRateEmpty(t *testing.T) {
	require.Zero(t, domain.MetricsSnapshot{}.CacheHitRate())
}

func TestTask_Duration(t *testing.T) {
	task := &domain.Task{}
	require.Zero(t, task.Duration())

	task.StartTime = time.Now()
	task.EndTime = task.StartTime.Add(3 * time.Second)
	require.Equal(t, 3*time.Second, task.Duration())
}
