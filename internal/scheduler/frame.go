package scheduler

// frameState is the master's per-FrameSlot bookkeeping for one frame in
// flight: which branches of the dependency graph (spec.md §4.1) have
// closed, and which symbols are waiting on a stage that hasn't closed yet.
type frameState struct {
	frameID  uint64
	admitted bool
	retired  bool

	beamDone bool

	// pendingDemul/pendingPrecode hold symbol indices whose upstream stage
	// (FFT, Encode) closed before Beam did. Beam's completion drains both.
	pendingDemul   []int
	pendingPrecode []int

	// ulDone/dlDone/calibDone are this frame's terminal-stage flags;
	// retirement requires all three. A branch with zero symbols is
	// pre-asserted true at admission (spec.md §4.1).
	ulDone    bool
	dlDone    bool
	calibDone bool

	dlScheduleDone bool
	dlBits         []byte

	// fftBatchers coalesce RX antenna arrivals into fft_block_size-wide FFT
	// tasks, one batcher per pilot/uplink/calibration symbol index (spec.md
	// §3's FftQueue).
	fftBatchers map[int]*fftBatcher
}

func newFrameState(frame uint64, fftBlockSize int, pilot, uplink, calibration []int) *frameState {
	fs := &frameState{
		frameID:     frame,
		admitted:    true,
		fftBatchers: make(map[int]*fftBatcher, len(pilot)+len(uplink)+len(calibration)),
	}
	for _, s := range pilot {
		fs.fftBatchers[s] = newFFTBatcher(fftBlockSize)
	}
	for _, s := range uplink {
		fs.fftBatchers[s] = newFFTBatcher(fftBlockSize)
	}
	for _, s := range calibration {
		fs.fftBatchers[s] = newFFTBatcher(fftBlockSize)
	}
	return fs
}
