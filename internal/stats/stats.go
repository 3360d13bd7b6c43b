// Package stats implements the periodic CSV statistics snapshot described
// in SPEC_FULL.md's ambient stack: a low-frequency (spec.md-unspecified,
// teacher defaults to 1 Hz) report of queue depths and frame-window
// occupancy, grounded on the teacher's audio_stats.go interval-reporting
// idea and src/log.go's encoding/csv writer (the only CSV library anywhere
// in the retrieved pack; there is no third-party alternative to reach for).
package stats

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"
)

// Snapshot is one row of the statistics report. It deliberately carries
// only aggregate counts cheap enough to compute inline on the scheduler's
// master loop — see internal/scheduler.Master.EnableStats, the only
// producer today.
type Snapshot struct {
	Time               time.Time
	CurProcFrame       uint64
	DeferralQueueDepth int
	TaskQueueDepth     int
	// WeightedTaskDepth is TaskQueueDepth with each kernel's backlog
	// scaled by its kernel.CostClass.Weight(), so a Decode/Beam-heavy
	// backlog reads as more significant than the same raw depth of
	// Encode tasks (spec.md §1 frames kernels by "cost class").
	WeightedTaskDepth int
	CompletionDepth   int
	StreamerDepth     int
}

var header = []string{"time", "cur_proc_frame", "deferral_depth", "task_depth", "weighted_task_depth", "completion_depth", "streamer_depth"}

// Writer appends Snapshot rows to an underlying io.Writer as CSV, matching
// src/log.go's csv.NewWriter(g_log_fp) usage. The header is written once,
// on the first Write call.
type Writer struct {
	w           *csv.Writer
	wroteHeader bool
}

// NewWriter wraps dest. dest is typically a freshly created or
// append-opened *os.File; Writer never closes it.
func NewWriter(dest io.Writer) *Writer {
	return &Writer{w: csv.NewWriter(dest)}
}

// Write appends one row and flushes, so a reader tailing the file sees
// each sample promptly rather than waiting for an internal buffer to fill.
func (s *Writer) Write(snap Snapshot) error {
	if !s.wroteHeader {
		if err := s.w.Write(header); err != nil {
			return fmt.Errorf("stats: write header: %w", err)
		}
		s.wroteHeader = true
	}
	row := []string{
		snap.Time.UTC().Format(time.RFC3339),
		fmt.Sprintf("%d", snap.CurProcFrame),
		fmt.Sprintf("%d", snap.DeferralQueueDepth),
		fmt.Sprintf("%d", snap.TaskQueueDepth),
		fmt.Sprintf("%d", snap.WeightedTaskDepth),
		fmt.Sprintf("%d", snap.CompletionDepth),
		fmt.Sprintf("%d", snap.StreamerDepth),
	}
	if err := s.w.Write(row); err != nil {
		return fmt.Errorf("stats: write row: %w", err)
	}
	s.w.Flush()
	return s.w.Error()
}

// Drain reads Snapshots off ch, writing each one through s, until ch is
// closed or ctx is canceled. The scheduler is the only producer expected to
// feed ch (see scheduler.Master.EnableStats); Drain runs on its own
// goroutine so the scheduler's single-threaded master loop never blocks on
// file I/O. A write error is reported to onErr (if non-nil) and does not
// stop the loop — a transient write failure shouldn't take down the
// scheduler it's reporting on.
func (s *Writer) Drain(ctx context.Context, ch <-chan Snapshot, onErr func(error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			if err := s.Write(snap); err != nil && onErr != nil {
				onErr(err)
			}
		}
	}
}
