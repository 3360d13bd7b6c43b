//go:build linux

package worker

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// pin locks the calling goroutine to its OS thread and sets that thread's
// CPU affinity, matching spec.md §5's "affinity-pinned CPU core ... no
// thread migrates." Pinning is a startup-adjacent concern (it happens
// once, before the hot loop begins), consistent with spec.md §5 only
// disallowing blocking syscalls on the hot path itself.
func (w *Worker) pin() {
	if w.coreID < 0 {
		return
	}
	runtime.LockOSThread()
	var set unix.CPUSet
	set.Zero()
	set.Set(w.coreID)
	if err := unix.SchedSetaffinity(0, &set); err != nil && w.log != nil {
		w.log.Warnf("worker %d: failed to pin to core %d: %v", w.id, w.coreID, err)
	}
}
