// Package scheduler implements the single-threaded master event loop
// described in spec.md §4.1-§4.3: it owns the frame-window cursor, the
// per-stage completion counters, and the deferral queue, and it is the
// only component that ever calls TaskFabric.Submit. Everything here runs
// on one goroutine; concurrency happens only at the fabric boundary.
package scheduler

import (
	"context"
	"time"

	"github.com/k9ran/phycore/internal/config"
	"github.com/k9ran/phycore/internal/counter"
	"github.com/k9ran/phycore/internal/deferral"
	"github.com/k9ran/phycore/internal/fabric"
	"github.com/k9ran/phycore/internal/kernel"
	"github.com/k9ran/phycore/internal/mac"
	"github.com/k9ran/phycore/internal/rflog"
	"github.com/k9ran/phycore/internal/stats"
	"github.com/k9ran/phycore/internal/streamer"
	"github.com/k9ran/phycore/internal/tag"
)

// Master is the scheduler. Build one with New per running core instance;
// it is not safe for concurrent use — every exported method here is
// intended to run from a single goroutine (production: Run's loop; tests:
// direct calls).
type Master struct {
	cfg *config.Config
	log *rflog.Logger

	window        uint64
	pilotSymbols  []int
	ulSymbols     []int
	dlSymbols     []int
	calibSymbols  []int
	isPilot       map[int]bool
	isUplink      map[int]bool
	isCalibration map[int]bool

	// deferThreshold is kScheduleQueues from spec.md §4.1: a downlink
	// payload for a frame at or beyond cur_proc_frame+deferThreshold is
	// postponed rather than scheduled immediately, leaving slack before the
	// hard out-of-window boundary at cur_proc_frame+window. Not specified
	// numerically by the spec; recorded as an Open Question decision in
	// DESIGN.md.
	deferThreshold uint64

	curProcFrame uint64
	states       []*frameState

	rxCounter         *counter.Set
	fftCounter        *counter.Set
	pilotFFTCounter   *counter.Set
	beamCounter       *counter.Set
	demulCounter      *counter.Set
	decodeCounter     *counter.Set
	ulTerminalCounter *counter.Set
	calibCounter      *counter.Set
	encodeCounter     *counter.Set
	precodeCounter    *counter.Set
	ifftCounter       *counter.Set
	txCounter         *counter.Set
	allCounters       []*counter.Set

	taskFabric       *fabric.TaskFabric
	completionFabric *fabric.CompletionFabric
	streamerFabric   *fabric.StreamerFabric
	macLink          *mac.Link
	txConsumer       streamer.TxConsumer
	tok              *fabric.ProducerToken

	deferralQ *deferral.Queue

	curULMcs, curDLMcs int

	preferStreamer bool
	shutdown       bool
	shutdownReason string

	statsCh     chan<- stats.Snapshot
	statsEvery  time.Duration
	lastStatsAt time.Time
}

// New builds a Master for cfg, wired to the given fabrics. macLink and
// txConsumer may be nil (no MAC collaborator / no TX sink, e.g. in tests
// that only exercise the uplink branch).
func New(cfg *config.Config, taskFabric *fabric.TaskFabric, completionFabric *fabric.CompletionFabric, streamerFabric *fabric.StreamerFabric, macLink *mac.Link, txConsumer streamer.TxConsumer, log *rflog.Logger) *Master {
	window := uint64(cfg.WindowDepth)
	numSymbols := len(cfg.Schedule())
	pilot := cfg.PilotSymbols()
	uplink := cfg.UplinkSymbols()
	downlink := cfg.DownlinkDataSymbols()
	calibration := cfg.CalibrationSymbols()

	m := &Master{
		cfg:           cfg,
		log:           log,
		window:        window,
		pilotSymbols:  pilot,
		ulSymbols:     uplink,
		dlSymbols:     downlink,
		calibSymbols:  calibration,
		isPilot:       toSet(pilot),
		isUplink:      toSet(uplink),
		isCalibration: toSet(calibration),
		states:        make([]*frameState, window),

		taskFabric:       taskFabric,
		completionFabric: completionFabric,
		streamerFabric:   streamerFabric,
		macLink:          macLink,
		txConsumer:       txConsumer,
		tok:              fabric.NewProducerToken("scheduler"),
		deferralQ:        deferral.NewQueue(int(window) * 4),

		curULMcs: cfg.ULMcs,
		curDLMcs: cfg.DLMcs,
	}
	if window > 1 {
		m.deferThreshold = window - 1
	} else {
		m.deferThreshold = 1
	}

	rxLimit := make([]int, numSymbols)
	fftLimit := make([]int, numSymbols)
	for _, s := range append(append(append([]int{}, pilot...), uplink...), calibration...) {
		rxLimit[s] = cfg.BSAntNum
		fftLimit[s] = blockCount(cfg.BSAntNum, cfg.FFTBlockSize)
	}
	m.rxCounter = counter.NewSet(int(window), numSymbols, rxLimit, len(pilot)+len(uplink)+len(calibration))
	m.fftCounter = counter.NewSet(int(window), numSymbols, fftLimit, len(pilot)+len(uplink)+len(calibration))
	m.pilotFFTCounter = counter.NewSet(int(window), 1, []int{len(pilot)}, 1)
	m.beamCounter = counter.NewSet(int(window), 1, []int{blockCount(cfg.OFDMDataNum, cfg.BeamBlockSize)}, 1)

	demulLimit := make([]int, numSymbols)
	decodeLimit := make([]int, numSymbols)
	for _, s := range uplink {
		demulLimit[s] = blockCount(cfg.OFDMDataNum, cfg.DemulBlockSize)
		decodeLimit[s] = blockCount(cfg.UEAntNum, cfg.EncodeBlockSize)
	}
	m.demulCounter = counter.NewSet(int(window), numSymbols, demulLimit, len(uplink))
	m.decodeCounter = counter.NewSet(int(window), numSymbols, decodeLimit, len(uplink))
	m.ulTerminalCounter = counter.NewSet(int(window), 1, []int{len(uplink)}, 1)
	// calibCounter is the calibration branch's terminal closure: each
	// calibration symbol's FFT completion counts as one task against this
	// single-symbol Set, per spec.md §3's calibration symbol kind rejoining
	// at frame completion the same way the UL/DL branches do.
	m.calibCounter = counter.NewSet(int(window), 1, []int{len(calibration)}, 1)

	encodeLimit := make([]int, numSymbols)
	precodeLimit := make([]int, numSymbols)
	ifftLimit := make([]int, numSymbols)
	txLimit := make([]int, numSymbols)
	for _, s := range downlink {
		encodeLimit[s] = blockCount(cfg.UEAntNum, cfg.EncodeBlockSize)
		precodeLimit[s] = blockCount(cfg.OFDMDataNum, cfg.DemulBlockSize)
		ifftLimit[s] = blockCount(cfg.BSAntNum, cfg.FFTBlockSize)
		txLimit[s] = 1
	}
	m.encodeCounter = counter.NewSet(int(window), numSymbols, encodeLimit, len(downlink))
	m.precodeCounter = counter.NewSet(int(window), numSymbols, precodeLimit, len(downlink))
	m.ifftCounter = counter.NewSet(int(window), numSymbols, ifftLimit, len(downlink))
	m.txCounter = counter.NewSet(int(window), numSymbols, txLimit, len(downlink))

	m.allCounters = []*counter.Set{
		m.rxCounter, m.fftCounter, m.pilotFFTCounter, m.beamCounter,
		m.demulCounter, m.decodeCounter, m.ulTerminalCounter, m.calibCounter,
		m.encodeCounter, m.precodeCounter, m.ifftCounter, m.txCounter,
	}
	return m
}

func toSet(idxs []int) map[int]bool {
	out := make(map[int]bool, len(idxs))
	for _, i := range idxs {
		out[i] = true
	}
	return out
}

func (m *Master) slot(frame uint64) int { return int(frame % m.window) }

func (m *Master) stateAt(frame uint64) *frameState {
	st := m.states[m.slot(frame)]
	if st == nil || st.frameID != frame {
		return nil
	}
	return st
}

// ShutdownRequested reports whether the scheduler has hit a fatal
// condition (spec.md §7: out-of-window RX, deferral queue overflow past
// capacity) and should stop admitting new work.
func (m *Master) ShutdownRequested() (bool, string) { return m.shutdown, m.shutdownReason }

// EnableStats arranges for Run to push a stats.Snapshot onto ch roughly
// every interval. ch should be buffered by at least 1 so a slow consumer
// never stalls the master loop; a full channel simply drops that sample,
// same tradeoff spec.md §7 makes for the streamer fabric.
func (m *Master) EnableStats(ch chan<- stats.Snapshot, interval time.Duration) {
	m.statsCh = ch
	m.statsEvery = interval
}

// snapshot reports the current frame-window cursor, deferral queue depth
// and total queue occupancy across both parity buckets. Called only from
// the goroutine driving Run, same as every other Master method.
func (m *Master) snapshot() stats.Snapshot {
	var taskDepth, weightedTaskDepth, completionDepth, streamerDepth int
	for b := 0; b < fabric.NumParityBuckets; b++ {
		for _, k := range kernel.PollOrder {
			depth := m.taskFabric.Len(b, k)
			taskDepth += depth
			weightedTaskDepth += depth * kernel.Costs[k].Weight()
		}
		completionDepth += m.completionFabric.Len(b)
		if m.streamerFabric != nil {
			streamerDepth += m.streamerFabric.Len(b)
		}
	}
	return stats.Snapshot{
		Time:               time.Now(),
		CurProcFrame:       m.curProcFrame,
		DeferralQueueDepth: m.deferralQ.Len(),
		TaskQueueDepth:     taskDepth,
		WeightedTaskDepth:  weightedTaskDepth,
		CompletionDepth:    completionDepth,
		StreamerDepth:      streamerDepth,
	}
}

// maybeReportStats sends a snapshot if statsCh is configured and interval
// has elapsed since the last one. Non-blocking: a full channel drops the
// sample rather than stalling the master loop.
func (m *Master) maybeReportStats() {
	if m.statsCh == nil {
		return
	}
	now := time.Now()
	if now.Sub(m.lastStatsAt) < m.statsEvery {
		return
	}
	m.lastStatsAt = now
	select {
	case m.statsCh <- m.snapshot():
	default:
	}
}

func (m *Master) triggerFatal(frame uint64, reason string) {
	if m.shutdown {
		return
	}
	m.shutdown = true
	m.shutdownReason = reason
	if m.log != nil {
		m.log.Errorf("scheduler: fatal, shutting down: %s (frame=%d cur_proc_frame=%d window=%d)", reason, frame, m.curProcFrame, m.window)
	}
}

// admissible reports whether frame is still within the live window
// [cur_proc_frame, cur_proc_frame+window). A frame older than
// cur_proc_frame is a stale/ghost event and is silently dropped; a frame
// at or beyond the upper edge is the out-of-window condition spec.md §7
// calls fatal.
func (m *Master) admissible(frame uint64) bool {
	if frame < m.curProcFrame {
		return false
	}
	if frame >= m.curProcFrame+m.window {
		m.triggerFatal(frame, "RX event outside the live frame window")
		return false
	}
	return true
}

// admitFrame returns the frameState for frame, creating it (and Open-ing
// every per-stage counter for its slot) the first time any event
// references this frame id.
func (m *Master) admitFrame(frame uint64) *frameState {
	if st := m.stateAt(frame); st != nil {
		return st
	}
	slot := m.slot(frame)
	st := newFrameState(frame, m.cfg.FFTBlockSize, m.pilotSymbols, m.ulSymbols, m.calibSymbols)
	m.states[slot] = st
	for _, c := range m.allCounters {
		c.Open(frame)
	}
	if len(m.pilotSymbols) == 0 {
		st.beamDone = true
	}
	if !m.cfg.HasUplink() {
		st.ulDone = true
	}
	if !m.cfg.HasDownlink() {
		st.dlDone = true
	}
	if !m.cfg.HasCalibration() {
		st.calibDone = true
	}
	m.tryRetire(frame)
	return st
}

func (m *Master) resetCounters(frame uint64) {
	for _, c := range m.allCounters {
		c.Reset(frame)
	}
}

// --- streamer-side (RX) dispatch -------------------------------------

func (m *Master) handleStreamerEvent(ev tag.Event) {
	rflog.Assert(ev.Kind == tag.EventPacketRX, "scheduler: streamer fabric carried non-RX event kind %s", ev.Kind)
	for _, t := range ev.Tags {
		m.handleRXTag(t)
	}
}

func (m *Master) handleRXTag(t tag.Tag) {
	frame := t.Frame()
	if !m.admissible(frame) {
		return
	}
	st := m.admitFrame(frame)
	symbol := int(t.Symbol())

	kind := tag.EventFFTData
	if m.isPilot[symbol] {
		kind = tag.EventFFTPilot
	}

	if batcher, ok := st.fftBatchers[symbol]; ok {
		if ev, ready := batcher.Append(kind, t); ready {
			m.taskFabric.Submit(m.tok, frame, ev)
		}
	}

	if m.rxCounter.CompleteTask(frame, symbol) {
		m.rxCounter.CompleteSymbol(frame)
		if batcher, ok := st.fftBatchers[symbol]; ok {
			if ev, ready := batcher.Flush(kind); ready {
				m.taskFabric.Submit(m.tok, frame, ev)
			}
		}
	}
}

// --- completion-side dispatch ------------------------------------------

func (m *Master) handleCompletionEvent(ev tag.Event) {
	rflog.Assert(ev.Kind.Valid(), "scheduler: invalid event kind in completion queue")
	if len(ev.Tags) == 0 {
		return
	}
	frame := ev.Tags[0].Frame()
	symbol := int(ev.Tags[0].Symbol())
	switch ev.Kind {
	case tag.EventFFTPilot, tag.EventFFTData:
		m.onFFTDone(frame, symbol)
	case tag.EventBeam:
		m.onBeamDone(frame)
	case tag.EventDemul:
		m.onDemulDone(frame, symbol)
	case tag.EventDecode:
		m.onDecodeDone(frame, symbol)
	case tag.EventEncode:
		m.onEncodeDone(frame, symbol)
	case tag.EventPrecode:
		m.onPrecodeDone(frame, symbol)
	case tag.EventIFFT:
		m.onIFFTDone(frame, symbol)
	default:
		rflog.Assert(false, "scheduler: unexpected completion event kind %s", ev.Kind)
	}
}

func (m *Master) onFFTDone(frame uint64, symbol int) {
	if !m.fftCounter.CompleteTask(frame, symbol) {
		return
	}
	m.fftCounter.CompleteSymbol(frame)

	if m.isPilot[symbol] {
		if m.pilotFFTCounter.CompleteTask(frame, 0) {
			m.pilotFFTCounter.CompleteSymbol(frame)
			m.onBeamReady(frame)
		}
		return
	}

	if m.isCalibration[symbol] {
		m.completeCalibSymbol(frame)
		return
	}

	st := m.stateAt(frame)
	if st.beamDone {
		m.scheduleDemul(frame, symbol)
	} else {
		st.pendingDemul = append(st.pendingDemul, symbol)
	}
}

func (m *Master) onBeamReady(frame uint64) {
	events := partitionTags(tag.EventBeam, m.cfg.OFDMDataNum, m.cfg.BeamBlockSize, func(i int) tag.Tag {
		return tag.New(frame, 0, uint32(i))
	})
	for _, ev := range events {
		m.taskFabric.Submit(m.tok, frame, ev)
	}
}

func (m *Master) onBeamDone(frame uint64) {
	if !m.beamCounter.CompleteTask(frame, 0) {
		return
	}
	m.beamCounter.CompleteSymbol(frame)

	st := m.stateAt(frame)
	st.beamDone = true

	pendingDemul := st.pendingDemul
	st.pendingDemul = nil
	for _, symbol := range pendingDemul {
		m.scheduleDemul(frame, symbol)
	}

	pendingPrecode := st.pendingPrecode
	st.pendingPrecode = nil
	for _, symbol := range pendingPrecode {
		m.schedulePrecode(frame, symbol)
	}
}

func (m *Master) scheduleDemul(frame uint64, symbol int) {
	events := partitionTags(tag.EventDemul, m.cfg.OFDMDataNum, m.cfg.DemulBlockSize, func(i int) tag.Tag {
		return tag.New(frame, uint32(symbol), uint32(i))
	})
	for _, ev := range events {
		m.taskFabric.Submit(m.tok, frame, ev)
	}
}

func (m *Master) onDemulDone(frame uint64, symbol int) {
	if !m.demulCounter.CompleteTask(frame, symbol) {
		return
	}
	m.demulCounter.CompleteSymbol(frame)

	if m.cfg.HardDemod {
		m.completeULSymbol(frame, symbol)
		return
	}
	events := partitionTags(tag.EventDecode, m.cfg.UEAntNum, m.cfg.EncodeBlockSize, func(i int) tag.Tag {
		return tag.New(frame, uint32(symbol), uint32(i))
	})
	for _, ev := range events {
		m.taskFabric.Submit(m.tok, frame, ev)
	}
}

func (m *Master) onDecodeDone(frame uint64, symbol int) {
	if !m.decodeCounter.CompleteTask(frame, symbol) {
		return
	}
	m.decodeCounter.CompleteSymbol(frame)

	if m.cfg.MacEnabled && m.macLink != nil {
		select {
		case m.macLink.Request <- mac.ToMacEvent{Kind: mac.ToMacPacket, Frame: frame, Symbol: symbol}:
		default:
			if m.log != nil {
				m.log.Warnf("scheduler: ToMac request queue full, dropping frame=%d symbol=%d", frame, symbol)
			}
		}
	}
	m.completeULSymbol(frame, symbol)
}

func (m *Master) completeULSymbol(frame uint64, symbol int) {
	if m.ulTerminalCounter.CompleteTask(frame, 0) {
		m.ulTerminalCounter.CompleteSymbol(frame)
		m.stateAt(frame).ulDone = true
		m.tryRetire(frame)
	}
}

// completeCalibSymbol closes the calibration branch's terminal counter
// once every calibration symbol's FFT has completed. Calibration symbols
// have no downstream stage of their own (spec.md §3 lists calibration as
// a frame symbol kind alongside pilot/uplink/downlink; their FFT output
// feeds the beam-weight kernel's reciprocity correction, an out-of-scope
// DSP detail per spec.md §1), so this is the branch's only completion
// handler and it rejoins retirement directly, the same as the UL and DL
// terminal stages.
func (m *Master) completeCalibSymbol(frame uint64) {
	if m.calibCounter.CompleteTask(frame, 0) {
		m.calibCounter.CompleteSymbol(frame)
		m.stateAt(frame).calibDone = true
		m.tryRetire(frame)
	}
}

// DeliverDLPayload is the entry point for a MAC-supplied downlink payload
// (spec.md §4.1: "MAC delivers DL frame -> Encode all DL symbols of that
// frame"). If the window is saturated or an earlier frame is already
// waiting, encode scheduling is postponed via the deferral queue instead.
func (m *Master) DeliverDLPayload(frame uint64, bits []byte) {
	if !m.admissible(frame) {
		return
	}
	st := m.admitFrame(frame)

	if frame >= m.curProcFrame+m.deferThreshold || m.deferralQ.Len() > 0 {
		st.dlBits = bits
		if !m.deferralQ.Push(frame) {
			m.triggerFatal(frame, "deferral queue overflow")
			return
		}
		if m.log != nil {
			m.log.Infof("scheduler: deferring downlink encode scheduling for frame=%d", frame)
		}
		return
	}
	m.scheduleDLEncode(frame, bits)
}

func (m *Master) scheduleDLEncode(frame uint64, bits []byte) {
	st := m.admitFrame(frame)
	st.dlBits = bits
	st.dlScheduleDone = true
	for _, symbol := range m.dlSymbols {
		events := partitionTags(tag.EventEncode, m.cfg.UEAntNum, m.cfg.EncodeBlockSize, func(i int) tag.Tag {
			return tag.New(frame, uint32(symbol), uint32(i))
		})
		for _, ev := range events {
			m.taskFabric.Submit(m.tok, frame, ev)
		}
	}
}

func (m *Master) onEncodeDone(frame uint64, symbol int) {
	if !m.encodeCounter.CompleteTask(frame, symbol) {
		return
	}
	m.encodeCounter.CompleteSymbol(frame)

	st := m.stateAt(frame)
	if st.beamDone {
		m.schedulePrecode(frame, symbol)
	} else {
		st.pendingPrecode = append(st.pendingPrecode, symbol)
	}
}

func (m *Master) schedulePrecode(frame uint64, symbol int) {
	events := partitionTags(tag.EventPrecode, m.cfg.OFDMDataNum, m.cfg.DemulBlockSize, func(i int) tag.Tag {
		return tag.New(frame, uint32(symbol), uint32(i))
	})
	for _, ev := range events {
		m.taskFabric.Submit(m.tok, frame, ev)
	}
}

func (m *Master) onPrecodeDone(frame uint64, symbol int) {
	if !m.precodeCounter.CompleteTask(frame, symbol) {
		return
	}
	m.precodeCounter.CompleteSymbol(frame)

	events := partitionTags(tag.EventIFFT, m.cfg.BSAntNum, m.cfg.FFTBlockSize, func(i int) tag.Tag {
		return tag.New(frame, uint32(symbol), uint32(i))
	})
	for _, ev := range events {
		m.taskFabric.Submit(m.tok, frame, ev)
	}
}

func (m *Master) onIFFTDone(frame uint64, symbol int) {
	if !m.ifftCounter.CompleteTask(frame, symbol) {
		return
	}
	m.ifftCounter.CompleteSymbol(frame)
	m.scheduleTX(frame, symbol)
}

func (m *Master) scheduleTX(frame uint64, symbol int) {
	tags := make([]tag.Tag, m.cfg.BSAntNum)
	for i := range tags {
		tags[i] = tag.New(frame, uint32(symbol), uint32(i))
	}
	if m.txConsumer != nil {
		m.txConsumer.ConsumeTX(tag.Event{Kind: tag.EventPacketTX, Tags: tags})
	}
	if m.txCounter.CompleteTask(frame, symbol) && m.txCounter.CompleteSymbol(frame) {
		m.stateAt(frame).dlDone = true
		m.tryRetire(frame)
	}
}

// tryRetire closes out frame once its UL, DL and calibration branches (if
// present) have all reached their terminal stage, per spec.md §4.1's
// retirement rule. Retirement is per-frame: frame N+1 may retire before
// frame N (spec.md §5's "no cross-frame ordering").
func (m *Master) tryRetire(frame uint64) {
	st := m.stateAt(frame)
	if st == nil || st.retired || !st.ulDone || !st.dlDone || !st.calibDone {
		return
	}
	st.retired = true
	m.resetCounters(frame)
	m.advanceCurProcFrame()
}

func (m *Master) advanceCurProcFrame() {
	for {
		st := m.states[m.slot(m.curProcFrame)]
		if st == nil || st.frameID != m.curProcFrame || !st.retired {
			return
		}
		m.curProcFrame++
		m.releaseDeferred()
	}
}

// releaseDeferred releases at most one FIFO-order deferred frame per
// retirement, once it is within deferThreshold of the advancing cursor
// (spec.md §8 "Deferral FIFO").
func (m *Master) releaseDeferred() {
	frame, ok := m.deferralQ.Peek()
	if !ok {
		return
	}
	if frame >= m.curProcFrame+m.deferThreshold {
		return
	}
	m.deferralQ.Pop()
	st := m.stateAt(frame)
	var bits []byte
	if st != nil {
		bits = st.dlBits
	}
	m.scheduleDLEncode(frame, bits)
}

// --- MAC response polling ----------------------------------------------

func (m *Master) pollMacResponse() bool {
	if m.macLink == nil {
		return false
	}
	select {
	case resp := <-m.macLink.Response:
		switch resp.Kind {
		case mac.FromMacDLPayload:
			m.DeliverDLPayload(resp.Frame, resp.Bits)
		case mac.FromMacRANUpdate:
			m.curULMcs = resp.NewULMcs
			m.curDLMcs = resp.NewDLMcs
		}
		return true
	default:
		return false
	}
}

// --- main loop -----------------------------------------------------------

func (m *Master) pollStreamerFabric() (tag.Event, bool) {
	for b := 0; b < fabric.NumParityBuckets; b++ {
		if ev, ok := m.streamerFabric.Poll(b); ok {
			return ev, true
		}
	}
	return tag.Event{}, false
}

func (m *Master) pollCompletionFabric() (tag.Event, bool) {
	for b := 0; b < fabric.NumParityBuckets; b++ {
		if ev, ok := m.completionFabric.Poll(b); ok {
			return ev, true
		}
	}
	return tag.Event{}, false
}

// RunOnce services at most one event, alternating strictly which source
// (streamer or completion fabric) gets first refusal each call, per
// spec.md §4.1's master loop. It reports whether it did anything.
func (m *Master) RunOnce() bool {
	preferStreamer := m.preferStreamer
	m.preferStreamer = !m.preferStreamer

	if preferStreamer {
		if ev, ok := m.pollStreamerFabric(); ok {
			m.handleStreamerEvent(ev)
			return true
		}
		if ev, ok := m.pollCompletionFabric(); ok {
			m.handleCompletionEvent(ev)
			return true
		}
		return false
	}
	if ev, ok := m.pollCompletionFabric(); ok {
		m.handleCompletionEvent(ev)
		return true
	}
	if ev, ok := m.pollStreamerFabric(); ok {
		m.handleStreamerEvent(ev)
		return true
	}
	return false
}

// RunN drives up to n scheduling steps (one MAC-response check plus one
// RunOnce each), stopping early once shutdown is requested, and reports
// how many steps actually did work. Tests use this instead of Run's
// unbounded busy loop to drain a fixed, known amount of traffic
// deterministically.
func (m *Master) RunN(n int) int {
	did := 0
	for i := 0; i < n; i++ {
		if m.shutdown {
			break
		}
		acted := m.pollMacResponse()
		if m.RunOnce() {
			acted = true
		}
		if acted {
			did++
		}
	}
	return did
}

// Run drives the scheduler until ctx is canceled or a fatal condition is
// hit. Production entry point; busy-spins like the teacher's direwolf
// receive loop, since the hot path must never block.
func (m *Master) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if m.shutdown {
			return
		}
		m.pollMacResponse()
		m.RunOnce()
		m.maybeReportStats()
	}
}
