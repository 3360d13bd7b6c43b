// Package counter implements the (FrameSlot × symbol)-indexed tallies the
// scheduler uses to detect stage closure, per spec.md §3/§4.2.
//
// A Set is single-writer (the master thread only) by design, matching the
// teacher's queue-ownership discipline of putting all mutation behind one
// thread and using explicit signaling instead of locks for cross-thread
// visibility — here there is no cross-thread visibility requirement at all
// because only the scheduler ever touches a Set.
package counter

import "github.com/k9ran/phycore/internal/rflog"

// cell holds the running task tally for one (slot, symbol).
type cell struct {
	tasksDone int
	closed    bool // true once Reset has been called for the owning frame, until Open
}

// Set is a 2-D grid indexed by (FrameSlot, SymbolIndex) for a single
// pipeline stage (e.g. "FFT of UL data symbols" or "Decode").
type Set struct {
	window     int
	numSymbols int
	taskLimit  []int // per-symbol task limit; len == numSymbols
	symbolLim  int   // symbols_done limit for a whole frame's stage
	cells      [][]cell // [slot][symbol]

	// slotSymbolsDone counts closed symbols per slot, tracked separately
	// from cells because Reset must clear it exactly once per frame
	// independent of any individual symbol's task tally.
	slotSymbolsDone []int
}

// NewSet builds a Set for window slots and numSymbols symbols per frame.
// taskLimit gives the per-symbol task count that closes that symbol;
// symbolLimit gives the number of symbols that must close to close the
// frame for this stage.
func NewSet(window, numSymbols int, taskLimit []int, symbolLimit int) *Set {
	rflog.Assert(window > 0, "counter.NewSet: window must be positive")
	rflog.Assert(len(taskLimit) == numSymbols, "counter.NewSet: taskLimit length must equal numSymbols")

	cells := make([][]cell, window)
	for s := range cells {
		cells[s] = make([]cell, numSymbols)
	}
	return &Set{
		window:          window,
		numSymbols:      numSymbols,
		taskLimit:       append([]int(nil), taskLimit...),
		symbolLim:       symbolLimit,
		cells:           cells,
		slotSymbolsDone: make([]int, window),
	}
}

func (s *Set) slot(frame uint64) int { return int(frame % uint64(s.window)) }

// CompleteTask increments tasks_done for (frame, symbol) and reports
// whether the symbol just closed (tasks_done == task_limit).
//
// Calling this on an already-closed symbol, or on a frame whose slot was
// reset and not yet re-admitted, is a bug per spec.md §4.2 and asserts.
func (s *Set) CompleteTask(frame uint64, symbol int) (symbolClosed bool) {
	c := &s.cells[s.slot(frame)][symbol]
	rflog.Assert(!c.closed, "counter: CompleteTask on closed symbol (frame=%d symbol=%d)", frame, symbol)

	c.tasksDone++
	limit := s.taskLimit[symbol]
	rflog.Assert(c.tasksDone <= limit, "counter: tasks_done exceeded task_limit (frame=%d symbol=%d)", frame, symbol)

	return c.tasksDone == limit
}

// CompleteSymbol increments symbols_done for frame's stage and reports
// whether the frame's stage just closed (symbols_done == symbol_limit).
// Callers invoke this exactly when CompleteTask returns true.
func (s *Set) CompleteSymbol(frame uint64) (stageClosed bool) {
	slot := s.slot(frame)
	rflog.Assert(s.numSymbols == 0 || !s.cells[slot][0].closed, "counter: CompleteSymbol on reset frame (frame=%d)", frame)
	s.slotSymbolsDone[slot]++
	rflog.Assert(s.slotSymbolsDone[slot] <= s.symbolLim, "counter: symbols_done exceeded symbol_limit (frame=%d)", frame)
	return s.slotSymbolsDone[slot] == s.symbolLim
}

// Reset clears all entries for frame's FrameSlot. Must be called exactly
// once per frame in the retirement path (spec.md §3). After Reset, any
// further CompleteTask/CompleteSymbol call for that (frame, any symbol) of
// this stage is a bug and asserts, enforced by marking cells closed.
func (s *Set) Reset(frame uint64) {
	slot := s.slot(frame)
	for sym := range s.cells[slot] {
		s.cells[slot][sym] = cell{closed: true}
	}
	s.slotSymbolsDone[slot] = 0
}

// Open marks the slot's cells as accepting new task completions again,
// called when a new frame is admitted into that slot. This is the
// counterpart to Reset's closed=true: without it every symbol in a reused
// slot would permanently assert on its first CompleteTask.
func (s *Set) Open(frame uint64) {
	slot := s.slot(frame)
	for sym := range s.cells[slot] {
		s.cells[slot][sym] = cell{}
	}
	s.slotSymbolsDone[slot] = 0
}

// TasksDone and SymbolsDone expose read-only snapshots for statistics and
// tests; never used on a path that mutates state.
func (s *Set) TasksDone(frame uint64, symbol int) int {
	return s.cells[s.slot(frame)][symbol].tasksDone
}

func (s *Set) SymbolsDoneCount(frame uint64) int {
	return s.slotSymbolsDone[s.slot(frame)]
}
