// Package deferral implements the bounded FIFO of frame ids whose
// downlink-encoding scheduling was postponed because the frame window was
// saturated, per spec.md §3/§4.1.
package deferral

import "github.com/k9ran/phycore/internal/rflog"

// Queue is a bounded FIFO of frame ids. It is master-only (scheduler
// thread) state; no locking.
type Queue struct {
	capacity int
	items    []uint64
}

// NewQueue builds an empty deferral Queue with the given capacity.
func NewQueue(capacity int) *Queue {
	rflog.Assert(capacity > 0, "deferral.NewQueue: capacity must be positive")
	return &Queue{capacity: capacity}
}

// Push appends frame to the tail of the queue. Per spec.md §7, overflow is
// clamped at capacity; the caller (scheduler) is responsible for treating
// repeated overflow past a threshold as fatal.
func (q *Queue) Push(frame uint64) (ok bool) {
	if len(q.items) >= q.capacity {
		return false
	}
	q.items = append(q.items, frame)
	return true
}

// Pop removes and returns the head of the queue, in arrival order
// (spec.md §8 property 6: "Deferral FIFO"). ok is false if the queue is
// empty.
func (q *Queue) Pop() (frame uint64, ok bool) {
	if len(q.items) == 0 {
		return 0, false
	}
	frame = q.items[0]
	q.items = q.items[1:]
	return frame, true
}

// Peek returns the head of the queue without removing it.
func (q *Queue) Peek() (frame uint64, ok bool) {
	if len(q.items) == 0 {
		return 0, false
	}
	return q.items[0], true
}

// Len reports the number of deferred frame ids currently queued.
func (q *Queue) Len() int { return len(q.items) }

// Full reports whether the queue is at capacity.
func (q *Queue) Full() bool { return len(q.items) >= q.capacity }
