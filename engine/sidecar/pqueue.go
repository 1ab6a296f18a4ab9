package sidecar

import (
	"container/heap"
	"sync"
	"time"

	"go.trai.ch/fanout/core/domain"
)

// queued is one heap element: a request plus the monotonic sequence number
// that breaks priority ties in enqueue order.
type queued struct {
	req *domain.SidecarRequest
	seq uint64
}

// requestHeap orders by priority descending, then sequence ascending.
type requestHeap []*queued

func (h requestHeap) Len() int { return len(h) }

func (h requestHeap) Less(i, j int) bool {
	if h[i].req.Priority != h[j].req.Priority {
		return h[i].req.Priority > h[j].req.Priority
	}
	return h[i].seq < h[j].seq
}

func (h requestHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *requestHeap) Push(x any) { *h = append(*h, x.(*queued)) }

func (h *requestHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// kindQueue is the priority queue feeding the workers of one kind. Workers
// block on a timed pop so they can periodically re-check the shutdown flag.
type kindQueue struct {
	mu     sync.Mutex
	items  requestHeap
	signal chan struct{}
}

func newKindQueue() *kindQueue {
	return &kindQueue{signal: make(chan struct{}, 1)}
}

func (q *kindQueue) push(item *queued) {
	q.mu.Lock()
	heap.Push(&q.items, item)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// pop removes the highest-priority request, blocking up to timeout for one to
// arrive. It returns ok=false on timeout or stop.
func (q *kindQueue) pop(timeout time.Duration, stop <-chan struct{}) (*domain.SidecarRequest, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		q.mu.Lock()
		if q.items.Len() > 0 {
			item := heap.Pop(&q.items).(*queued)
			q.mu.Unlock()
			return item.req, true
		}
		q.mu.Unlock()

		select {
		case <-q.signal:
		case <-deadline.C:
			return nil, false
		case <-stop:
			return nil, false
		}
	}
}

func (q *kindQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}
