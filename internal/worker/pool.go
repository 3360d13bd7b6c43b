// Package worker implements the pinned worker threads described in
// spec.md §4.4: each worker holds a private instance of every DSP kernel
// and polls its kernel sub-queues in a fixed order, flipping its parity
// bucket after repeated empty polls.
package worker

import (
	"context"
	"strconv"
	"sync"

	"github.com/k9ran/phycore/internal/fabric"
	"github.com/k9ran/phycore/internal/kernel"
	"github.com/k9ran/phycore/internal/rflog"
	"github.com/k9ran/phycore/internal/tag"
)

// emptyPollsBeforeFlip is the fairness threshold from spec.md §4.3/§4.4:
// "workers pull from one parity bucket for up to 5 empty-polls, then flip
// to the other bucket."
const emptyPollsBeforeFlip = 5

// Worker is one pinned compute thread. It owns one Doer per kernel.Kind
// and has no synchronization with the scheduler beyond the task and
// completion queues (spec.md §4.4: "no shared mutable state").
type Worker struct {
	id      int
	coreID  int // OS CPU core this worker is pinned to, -1 to disable pinning
	doers   [kernel.Count]kernel.Doer
	tasks   *fabric.TaskFabric
	done    *fabric.CompletionFabric
	tok     *fabric.ProducerToken
	log     *rflog.Logger
	bucket  int
	emptyRounds int
}

// NewWorker builds a Worker with a Doer registered for every kernel.Kind
// in doers. coreID < 0 disables CPU affinity pinning (useful in tests and
// on platforms where it's unavailable).
func NewWorker(id, coreID int, doers []kernel.Doer, tasks *fabric.TaskFabric, done *fabric.CompletionFabric, log *rflog.Logger) *Worker {
	w := &Worker{id: id, coreID: coreID, tasks: tasks, done: done, log: log}
	w.tok = fabric.NewProducerToken(workerName(id))
	for _, d := range doers {
		w.doers[d.Kind()] = d
	}
	for k := 0; k < kernel.Count; k++ {
		rflog.Assert(w.doers[k] != nil, "worker %d: missing Doer for kernel %s", id, kernel.Kind(k))
	}
	return w
}

func workerName(id int) string { return "worker-" + strconv.Itoa(id) }

// Run is the worker's main loop (spec.md §4.4). It returns when ctx is
// canceled.
func (w *Worker) Run(ctx context.Context) {
	w.pin()
	for {
		if ctx.Err() != nil {
			return
		}
		if w.pollOnce() {
			w.emptyRounds = 0
		} else {
			w.emptyRounds++
			if w.emptyRounds >= emptyPollsBeforeFlip {
				w.bucket = 1 - w.bucket
				w.emptyRounds = 0
			}
		}
	}
}

// pollOnce attempts one task from each kernel sub-queue in the fixed
// spec.md §4.4 order, running at most one task per kernel per round, and
// reports whether any task ran.
func (w *Worker) pollOnce() bool {
	ranAny := false
	for _, kind := range kernel.PollOrder {
		ev, ok := w.tasks.Poll(w.bucket, kind)
		if !ok {
			continue
		}
		ranAny = true
		w.runTask(kind, ev)
	}
	return ranAny
}

func (w *Worker) runTask(kind kernel.Kind, ev tag.Event) {
	completionKind := w.doers[kind].Run(ev)
	frame := uint64(0)
	if len(ev.Tags) > 0 {
		frame = ev.Tags[0].Frame()
	}
	w.done.Complete(w.tok, frame, tag.Event{Kind: completionKind, Tags: ev.Tags})
}

// Pool owns and runs a fixed set of Workers.
type Pool struct {
	workers []*Worker
	wg      sync.WaitGroup
}

// NewPool builds a Pool of n workers, each given its own set of Doer
// instances from newDoers (called once per worker, since kernels are
// stateful only in their private scratch buffers). coreOffset is the
// first CPU core workers are pinned to, consecutively; -1 disables
// pinning for every worker.
func NewPool(n, coreOffset int, newDoers func(workerID int) []kernel.Doer, tasks *fabric.TaskFabric, done *fabric.CompletionFabric, log *rflog.Logger) *Pool {
	p := &Pool{}
	for i := 0; i < n; i++ {
		coreID := -1
		if coreOffset >= 0 {
			coreID = coreOffset + i
		}
		p.workers = append(p.workers, NewWorker(i, coreID, newDoers(i), tasks, done, log))
	}
	return p
}

// Start launches every worker's Run loop in its own goroutine.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Stop blocks until every worker goroutine has returned — callers cancel
// the shared context first. This is the "pinned threads joined" half of
// spec.md §7's clean-shutdown requirement.
func (p *Pool) Stop() {
	p.wg.Wait()
}
