// Package fabric implements the bounded multi-producer/multi-consumer
// queues described in spec.md §4.3: a parity-bucketed task queue
// (scheduler → workers) and completion queue (workers → scheduler), with
// per-producer tokens for low-contention bulk enqueue and a logged
// fallback to blocking enqueue on overflow.
//
// The retrieved example pack's closest analogue to a lock-free ring
// (ehrlich-b-go-iouring's io_uring submission/completion rings) depends on
// mmap'd kernel memory and syscalls that have no meaning here. There is no
// third-party MPMC queue library anywhere in the pack, so Queue is a
// mutex-guarded ring buffer: the "lock-free" design intent from spec.md
// §4.3 is approximated by minimizing the critical section (one lock
// acquisition per bulk call, not per item) and is the standard-library
// choice documented in DESIGN.md.
package fabric

import (
	"sync"

	"github.com/k9ran/phycore/internal/rflog"
	"github.com/k9ran/phycore/internal/tag"
)

// NumParityBuckets is the number of parity buckets a frame's tasks are
// routed across, keyed by frame_id mod NumParityBuckets (spec.md §4.1).
const NumParityBuckets = 2

// ProducerToken is a per-producer handle reserving a fast path into a
// Queue. The spec calls for producer tokens "per worker × bucket and per
// streamer × bucket so bulk enqueue avoids CAS contention." Since Queue is
// mutex-backed rather than CAS-backed, a token carries no mutable state of
// its own today; it exists so callers and future queue implementations
// keep the same call shape, and so every producer is accounted for in
// diagnostics.
type ProducerToken struct {
	owner string
}

// NewProducerToken creates a token labeled with the owning goroutine's
// name, used only for logging on the overflow path.
func NewProducerToken(owner string) *ProducerToken {
	return &ProducerToken{owner: owner}
}

// OverflowLogger is called when a bulk enqueue had to fall back to the
// blocking, allocating path — spec.md §4.3 requires this be logged as a
// capacity misconfiguration signal.
type OverflowLogger func(bucket int, owner string, attempted int)

// Queue is a bounded ring buffer of tag.Event, safe for concurrent
// producers and concurrent consumers.
type Queue struct {
	mu       sync.Mutex
	notEmpty sync.Cond
	buf      []tag.Event
	head     int // next index to dequeue
	count    int // number of live elements

	overflow OverflowLogger
}

// NewQueue builds a Queue with the given fixed capacity. Capacity should
// be sized to kWorkerQueueSize × data_symbols_per_frame per spec.md §4.3.
func NewQueue(capacity int, overflow OverflowLogger) *Queue {
	rflog.Assert(capacity > 0, "fabric.NewQueue: capacity must be positive")
	q := &Queue{
		buf:      make([]tag.Event, capacity),
		overflow: overflow,
	}
	q.notEmpty.L = &q.mu
	return q
}

func (q *Queue) cap() int { return len(q.buf) }

// TryEnqueueBulk attempts to push all of events without blocking. It
// either enqueues all of them or none, reporting false on insufficient
// space — mirroring the moodycamel-style try_enqueue_bulk contract
// spec.md §4.3 references.
func (q *Queue) TryEnqueueBulk(tok *ProducerToken, events []tag.Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(events) > q.cap()-q.count {
		return false
	}
	q.pushLocked(events)
	q.notEmpty.Broadcast()
	return true
}

// EnqueueBulk pushes all of events, blocking (and allocating extra
// headroom if needed) until they fit. spec.md §4.3 treats reaching this
// path as a capacity-misconfiguration signal that must be logged, which
// callers do via the OverflowLogger passed to NewQueue.
func (q *Queue) EnqueueBulk(tok *ProducerToken, events []tag.Event) {
	q.mu.Lock()
	defer q.mu.Unlock()

	owner := ""
	if tok != nil {
		owner = tok.owner
	}
	if q.overflow != nil {
		q.overflow(-1, owner, len(events))
	}

	if len(events) > q.cap() {
		// Grow the ring to fit — the "allocating" half of the fallback
		// policy. This never happens on a correctly provisioned system.
		grown := make([]tag.Event, len(events)+q.cap())
		n := q.drainLocked(grown)
		copy(grown[n:], events)
		q.buf = grown
		q.head = 0
		q.count = n + len(events)
		q.notEmpty.Broadcast()
		return
	}

	for len(events) > q.cap()-q.count {
		q.notEmpty.Wait()
	}
	q.pushLocked(events)
	q.notEmpty.Broadcast()
}

// pushLocked appends events to the ring; caller holds q.mu and has
// verified capacity.
func (q *Queue) pushLocked(events []tag.Event) {
	tail := (q.head + q.count) % q.cap()
	for _, e := range events {
		q.buf[tail] = e
		tail = (tail + 1) % q.cap()
	}
	q.count += len(events)
}

// drainLocked copies all live elements into dst in order, returning the
// count copied, and empties the ring. Used only by the grow path.
func (q *Queue) drainLocked(dst []tag.Event) int {
	n := q.count
	for i := 0; i < n; i++ {
		dst[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	q.head = 0
	q.count = 0
	return n
}

// TryDequeue pops a single event, reporting false if the queue is empty.
// This is the worker and scheduler poll primitive — never blocks.
func (q *Queue) TryDequeue() (tag.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return tag.Event{}, false
	}
	e := q.buf[q.head]
	q.buf[q.head] = tag.Event{}
	q.head = (q.head + 1) % q.cap()
	q.count--
	q.notEmpty.Broadcast()
	return e, true
}

// Len reports the current number of queued events, for statistics and
// tests. Racy by nature in a live system; callers must not depend on it
// for correctness.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}
