package fabric

import (
	"github.com/k9ran/phycore/internal/kernel"
	"github.com/k9ran/phycore/internal/rflog"
	"github.com/k9ran/phycore/internal/tag"
)

// TaskFabric is the scheduler → workers direction of the message fabric.
// Tasks are routed into one of NumParityBuckets parity buckets keyed by
// frame_id mod NumParityBuckets (spec.md §4.4 "Parity routing"), and
// within a bucket into one sub-queue per kernel.Kind so a worker's fixed
// poll order (spec.md §4.4 step 1) can check each kernel independently.
type TaskFabric struct {
	buckets [NumParityBuckets][kernel.Count]*Queue
	log     *rflog.Logger
}

// NewTaskFabric builds a TaskFabric with the given per-sub-queue capacity.
func NewTaskFabric(capacity int, log *rflog.Logger) *TaskFabric {
	f := &TaskFabric{log: log}
	for b := 0; b < NumParityBuckets; b++ {
		for k := 0; k < kernel.Count; k++ {
			bucket, kind := b, kernel.Kind(k)
			f.buckets[b][k] = NewQueue(capacity, func(_ int, owner string, n int) {
				if log != nil {
					log.Warnf("task fabric overflow: bucket=%d kernel=%s owner=%s attempted=%d falling back to blocking enqueue", bucket, kind, owner, n)
				}
			})
		}
	}
	return f
}

// bucketFor returns the parity bucket a frame's tasks belong in.
func bucketFor(frame uint64) int { return int(frame % uint64(NumParityBuckets)) }

// kindFor maps an EventKind to the kernel sub-queue it's dispatched to.
// Only task-producing event kinds are valid here; completion-only kinds
// (e.g. EventPacketRX, EventToMac) never flow through TaskFabric.
func kindFor(ek tag.EventKind) kernel.Kind {
	switch ek {
	case tag.EventFFTPilot, tag.EventFFTData:
		return kernel.KindFFT
	case tag.EventBeam:
		return kernel.KindBeam
	case tag.EventDemul:
		return kernel.KindDemul
	case tag.EventDecode:
		return kernel.KindDecode
	case tag.EventEncode:
		return kernel.KindEncode
	case tag.EventPrecode:
		return kernel.KindPrecode
	case tag.EventIFFT:
		return kernel.KindIFFT
	default:
		rflog.Assert(false, "fabric: %s has no kernel sub-queue", ek)
		return 0
	}
}

// Submit enqueues a task event for the frame its tags belong to, routed by
// parity bucket and kernel kind. It tries the non-blocking bulk path first
// and falls back to the blocking one on overflow, per spec.md §4.3.
func (f *TaskFabric) Submit(tok *ProducerToken, frame uint64, ev tag.Event) {
	q := f.buckets[bucketFor(frame)][kindFor(ev.Kind)]
	if !q.TryEnqueueBulk(tok, []tag.Event{ev}) {
		q.EnqueueBulk(tok, []tag.Event{ev})
	}
}

// Poll attempts to dequeue one event for the given bucket and kernel kind,
// the worker's per-kernel poll primitive.
func (f *TaskFabric) Poll(bucket int, kind kernel.Kind) (tag.Event, bool) {
	return f.buckets[bucket][kind].TryDequeue()
}

// Len reports queue depth for a (bucket, kind), for statistics.
func (f *TaskFabric) Len(bucket int, kind kernel.Kind) int {
	return f.buckets[bucket][kind].Len()
}

// CompletionFabric is the workers → scheduler direction: one queue per
// parity bucket, multi-producer (every worker), single-consumer (the
// scheduler only).
type CompletionFabric struct {
	buckets [NumParityBuckets]*Queue
}

// NewCompletionFabric builds a CompletionFabric with the given per-bucket
// capacity.
func NewCompletionFabric(capacity int, log *rflog.Logger) *CompletionFabric {
	f := &CompletionFabric{}
	for b := 0; b < NumParityBuckets; b++ {
		bucket := b
		f.buckets[b] = NewQueue(capacity, func(_ int, owner string, n int) {
			if log != nil {
				log.Warnf("completion fabric overflow: bucket=%d owner=%s attempted=%d falling back to blocking enqueue", bucket, owner, n)
			}
		})
	}
	return f
}

// Complete enqueues a completion event into the bucket for frame.
func (f *CompletionFabric) Complete(tok *ProducerToken, frame uint64, ev tag.Event) {
	q := f.buckets[bucketFor(frame)]
	if !q.TryEnqueueBulk(tok, []tag.Event{ev}) {
		q.EnqueueBulk(tok, []tag.Event{ev})
	}
}

// Poll attempts to dequeue one completion event from the given bucket —
// the scheduler's single-consumer poll primitive.
func (f *CompletionFabric) Poll(bucket int) (tag.Event, bool) {
	return f.buckets[bucket].TryDequeue()
}

// Len reports queue depth for a bucket, for statistics.
func (f *CompletionFabric) Len(bucket int) int {
	return f.buckets[bucket].Len()
}

// StreamerFabric is the streamer → scheduler direction (RX packet events):
// multi-producer (every streamer thread), single-consumer (the
// scheduler), parity-bucketed the same way the completion queue is.
// It shares CompletionFabric's shape exactly, so it is the same type.
type StreamerFabric = CompletionFabric

// NewStreamerFabric builds the RX event queue the streamer's producer
// threads feed and the scheduler polls alongside the completion queue.
func NewStreamerFabric(capacity int, log *rflog.Logger) *StreamerFabric {
	return NewCompletionFabric(capacity, log)
}
