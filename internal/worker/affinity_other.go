//go:build !linux

package worker

import "runtime"

// pin is a portability fallback: it still dedicates an OS thread to the
// worker goroutine but skips the Linux-only SchedSetaffinity call. Real
// deployments of this core run on Linux per spec.md §5; this keeps
// non-Linux builds (tests on a developer laptop) compiling.
func (w *Worker) pin() {
	runtime.LockOSThread()
	if w.coreID >= 0 && w.log != nil {
		w.log.Debugf("worker %d: CPU affinity pinning is not supported on this platform", w.id)
	}
}
