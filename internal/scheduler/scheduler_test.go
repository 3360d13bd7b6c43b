package scheduler

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k9ran/phycore/internal/config"
	"github.com/k9ran/phycore/internal/deferral"
	"github.com/k9ran/phycore/internal/fabric"
	"github.com/k9ran/phycore/internal/kernel"
	"github.com/k9ran/phycore/internal/rflog"
	"github.com/k9ran/phycore/internal/stats"
	"github.com/k9ran/phycore/internal/tag"
)

// harness bundles a Master with the fabrics its tests drive directly,
// without a real worker pool: tests pop a task off taskFabric, inspect
// it, and push the matching completion event back in by hand. This keeps
// each scenario deterministic and lets it assert on exactly what the
// scheduler emitted, per spec.md §8's testable properties.
type harness struct {
	t      *testing.T
	cfg    *config.Config
	m      *Master
	tasks  *fabric.TaskFabric
	done   *fabric.CompletionFabric
	rx     *fabric.StreamerFabric
	rxTok  *fabric.ProducerToken
	tx     []tag.Event
}

type fakeTX struct{ h *harness }

func (f fakeTX) ConsumeTX(ev tag.Event) { f.h.tx = append(f.h.tx, ev) }

func newHarness(t *testing.T, cfg *config.Config) *harness {
	t.Helper()
	tasks := fabric.NewTaskFabric(256, nil)
	done := fabric.NewCompletionFabric(256, nil)
	rx := fabric.NewStreamerFabric(256, nil)
	h := &harness{t: t, cfg: cfg, tasks: tasks, done: done, rx: rx, rxTok: fabric.NewProducerToken("rx-test")}
	h.m = New(cfg, tasks, done, rx, nil, fakeTX{h: h}, nil)
	return h
}

// rxFrame pushes one PacketRX event per (symbol, antenna) for every pilot
// and uplink symbol in cfg's schedule, simulating a full frame's worth of
// antenna arrivals landing on the streamer fabric.
func (h *harness) rxFrame(frame uint64) {
	for _, symbols := range [][]int{h.cfg.PilotSymbols(), h.cfg.UplinkSymbols()} {
		for _, sym := range symbols {
			for ant := 0; ant < h.cfg.BSAntNum; ant++ {
				t := tag.New(frame, uint32(sym), uint32(ant))
				h.rx.Complete(h.rxTok, frame, tag.Event{Kind: tag.EventPacketRX, Tags: []tag.Tag{t}})
			}
		}
	}
}

// drainKind pops every currently-queued task event of kind k across both
// parity buckets and immediately completes it, feeding the matching
// completion event back to the scheduler's completion fabric — standing
// in for a worker pool that always succeeds instantly. It returns the
// task events it observed, so tests can assert on batching/ordering.
func (h *harness) drainKind(k kernel.Kind, completion tag.EventKind) []tag.Event {
	var seen []tag.Event
	for b := 0; b < fabric.NumParityBuckets; b++ {
		for {
			ev, ok := h.tasks.Poll(b, k)
			if !ok {
				break
			}
			seen = append(seen, ev)
			frame := ev.Tags[0].Frame()
			h.done.Complete(fabric.NewProducerToken("worker-test"), frame, tag.Event{Kind: completion, Tags: ev.Tags})
		}
	}
	return seen
}

func ulOnlyConfig(t *testing.T) *config.Config {
	t.Helper()
	c, err := config.Parse([]byte(`{
		"bs_ant_num": 4,
		"ue_ant_num": 4,
		"ofdm_data_num": 64,
		"frame_schedule": "PUUUUUUUUUUUUUUUU",
		"fft_block_size": 2,
		"demul_block_size": 64,
		"beam_block_size": 64,
		"encode_block_size": 4,
		"window_depth": 4,
		"mac_enabled": false
	}`))
	require.NoError(t, err)
	return c
}

// Test_S1_UplinkOnlySingleFrame mirrors spec.md §8 scenario S1: a pilot
// symbol plus 16 UL symbols, 4 BS antennas, 4 UEs. Feeding one frame's RX
// traffic through FFT -> Beam -> Demul -> Decode must retire the frame and
// advance cur_proc_frame from 0 to 1, with no DL traffic emitted.
func Test_S1_UplinkOnlySingleFrame(t *testing.T) {
	cfg := ulOnlyConfig(t)
	h := newHarness(t, cfg)

	h.rxFrame(0)
	h.m.RunN(1000)

	fftEvents := h.drainKind(kernel.KindFFT, tag.EventFFTPilot)
	require.NotEmpty(t, fftEvents, "pilot FFT should have been scheduled")
	h.m.RunN(1000)

	beamEvents := h.drainKind(kernel.KindBeam, tag.EventBeam)
	require.NotEmpty(t, beamEvents, "beam should have been scheduled once pilot FFT closed")
	h.m.RunN(1000)

	// UL data symbols' FFT now unblocks (it may have already been queued
	// ahead of beam; drain whatever kind is pending until quiescent).
	for round := 0; round < 5; round++ {
		h.drainKind(kernel.KindFFT, tag.EventFFTData)
		h.m.RunN(1000)
		h.drainKind(kernel.KindDemul, tag.EventDemul)
		h.m.RunN(1000)
	}

	decodeEvents := h.drainKind(kernel.KindDecode, tag.EventDecode)
	h.m.RunN(1000)
	require.Len(t, decodeEvents, len(cfg.UplinkSymbols()), "exactly one Decode completion per UL symbol")

	assert.Empty(t, h.tx, "a UL-only frame emits no TX traffic")
	assert.Equal(t, uint64(1), h.m.curProcFrame, "cur_proc_frame should advance from 0 to 1")
}

func dlOnlyConfig(t *testing.T) *config.Config {
	t.Helper()
	c, err := config.Parse([]byte(`{
		"bs_ant_num": 4,
		"ue_ant_num": 4,
		"ofdm_data_num": 64,
		"frame_schedule": "PDDDD",
		"fft_block_size": 2,
		"demul_block_size": 64,
		"beam_block_size": 64,
		"encode_block_size": 4,
		"window_depth": 4,
		"mac_enabled": false
	}`))
	require.NoError(t, err)
	return c
}

// Test_S2_DownlinkOnlySchedulesInOrder mirrors spec.md §8 scenario S2:
// pilot plus 4 DL symbols, MAC disabled so the test supplies the DL
// payload directly via DeliverDLPayload. Expected stage order is
// Encode -> Precode -> IFFT -> TX for every DL symbol.
func Test_S2_DownlinkOnlySchedulesInOrder(t *testing.T) {
	cfg := dlOnlyConfig(t)
	h := newHarness(t, cfg)

	// Pilot RX closes FFT -> Beam, making Beam available before Encode
	// completes (so Precode never waits in st.pendingPrecode below).
	for _, sym := range cfg.PilotSymbols() {
		for ant := 0; ant < cfg.BSAntNum; ant++ {
			h.rx.Complete(h.rxTok, 0, tag.Event{Kind: tag.EventPacketRX, Tags: []tag.Tag{tag.New(0, uint32(sym), uint32(ant))}})
		}
	}
	h.m.RunN(1000)
	h.drainKind(kernel.KindFFT, tag.EventFFTPilot)
	h.m.RunN(1000)
	h.drainKind(kernel.KindBeam, tag.EventBeam)
	h.m.RunN(1000)

	h.m.DeliverDLPayload(0, []byte("hello"))
	h.m.RunN(1000)

	encodeEvents := h.drainKind(kernel.KindEncode, tag.EventEncode)
	require.NotEmpty(t, encodeEvents, "encode should run before precode")
	h.m.RunN(1000)

	precodeEvents := h.drainKind(kernel.KindPrecode, tag.EventPrecode)
	require.NotEmpty(t, precodeEvents, "precode should run after encode and after beam")
	h.m.RunN(1000)

	ifftEvents := h.drainKind(kernel.KindIFFT, tag.EventIFFT)
	require.NotEmpty(t, ifftEvents, "ifft should run after precode")
	h.m.RunN(1000)

	require.NotEmpty(t, h.tx, "tx should have fired after ifft")
	assert.Equal(t, uint64(1), h.m.curProcFrame, "DL-only frame should retire")
}

// Test_S3_DeferralReleasedOnRetirement mirrors spec.md §8 scenario S3:
// with window=4, a frame stuck mid-pipeline causes later frames' DL
// scheduling to land on the deferral queue; retiring the stuck frame
// releases the oldest deferred frame.
func Test_S3_DeferralReleasedOnRetirement(t *testing.T) {
	cfg := dlOnlyConfig(t)
	cfg.WindowDepth = 4
	h := newHarness(t, cfg)

	// Admit frame 0 but never retire it (no pilot RX, no DL payload) --
	// it occupies slot 0 and blocks cur_proc_frame from advancing.
	h.m.admitFrame(0)

	// Frame 4 shares slot 0 with frame 0 under window=4, so we instead
	// push a DL payload for a frame within the live window to observe
	// deferral without a slot collision; frame 3 is at
	// cur_proc_frame(0)+deferThreshold(3), so it defers immediately.
	h.m.DeliverDLPayload(3, []byte("a"))
	assert.Equal(t, 1, h.m.deferralQ.Len(), "frame at the defer threshold should be deferred")

	h.m.admitFrame(0).ulDone = true // pretend frame 0's UL branch is done; DL still pending
	// Retiring frame 0 requires both branches closed; force it directly
	// to exercise releaseDeferred in isolation.
	h.m.tryRetire(0)
	// Frame 0 is DL-only config (ulDone pre-asserted true already since
	// HasUplink()==false); dlDone is false until TX, so force it to
	// observe release semantics.
	h.m.stateAt(0).dlDone = true
	h.m.tryRetire(0)

	assert.Equal(t, uint64(1), h.m.curProcFrame, "frame 0 should have retired")
	assert.Equal(t, 0, h.m.deferralQ.Len(), "the deferred frame should have been released")
}

// Test_S4_ParityRouting mirrors spec.md §8 scenario S4 / property 8:
// every task for frame f must land in bucket f mod 2.
func Test_S4_ParityRouting(t *testing.T) {
	cfg := ulOnlyConfig(t)
	h := newHarness(t, cfg)

	for _, f := range []uint64{0, 1, 2, 3} {
		h.m.admitFrame(f)
		h.m.scheduleDemul(f, cfg.UplinkSymbols()[0])
	}

	for b := 0; b < fabric.NumParityBuckets; b++ {
		for {
			ev, ok := h.tasks.Poll(b, kernel.KindDemul)
			if !ok {
				break
			}
			frame := ev.Tags[0].Frame()
			assert.Equal(t, int(frame%fabric.NumParityBuckets), b, "frame %d task must be in bucket %d", frame, frame%2)
		}
	}
}

// Test_S5_QueueOverflowFallback mirrors spec.md §8 scenario S5 at the
// scheduler's own entry point: Submit must deliver a task even when the
// underlying sub-queue's try-path is saturated and falls back to the
// blocking enqueue (internal/fabric's Test_OverflowFallback_S5 covers the
// queue primitive itself in isolation).
func Test_S5_QueueOverflowFallback(t *testing.T) {
	// NewTaskFabric reports each fallback to the blocking enqueue as a
	// "task fabric overflow" warning on its logger; count those lines.
	var logBuf bytes.Buffer
	tasks := fabric.NewTaskFabric(1, rflog.New(&logBuf, rflog.LevelWarn, false))
	tok := fabric.NewProducerToken("t")

	done := make(chan struct{})
	var drained []uint64
	go func() {
		defer close(done)
		for len(drained) < 10 {
			for b := 0; b < fabric.NumParityBuckets; b++ {
				if ev, ok := tasks.Poll(b, kernel.KindDemul); ok {
					drained = append(drained, ev.Tags[0].Frame())
				}
			}
		}
	}()

	for i := 0; i < 10; i++ {
		tasks.Submit(tok, uint64(i*2), tag.Event{Kind: tag.EventDemul, Tags: []tag.Tag{tag.New(uint64(i*2), 0, 0)}})
	}
	<-done

	require.Len(t, drained, 10, "every submitted task must still arrive despite the queue falling back")
	overflowed := strings.Count(logBuf.String(), "task fabric overflow")
	assert.Greater(t, overflowed, 0, "a capacity-1 sub-queue fed 10 sequential submits must have overflowed at least once")
}

// Test_S6_OutOfWindowRXTriggersShutdown mirrors spec.md §8 scenario S6.
func Test_S6_OutOfWindowRXTriggersShutdown(t *testing.T) {
	cfg := ulOnlyConfig(t)
	cfg.WindowDepth = 4
	h := newHarness(t, cfg)

	h.m.curProcFrame = 3
	h.m.handleRXTag(tag.New(8, 0, 0))

	shutdown, reason := h.m.ShutdownRequested()
	assert.True(t, shutdown)
	assert.NotEmpty(t, reason)
}

// Test_WindowBoundInvariant is spec.md §8 property 1: a frame at or
// beyond cur_proc_frame+window must never be admitted without tripping
// the fatal out-of-window path, keeping every live frame's id within
// [cur_proc_frame, cur_proc_frame+window).
func Test_WindowBoundInvariant(t *testing.T) {
	cfg := ulOnlyConfig(t)
	cfg.WindowDepth = 4
	h := newHarness(t, cfg)

	// Frame 3 is the last frame id inside the window starting at
	// cur_proc_frame=0; it must be admitted without tripping shutdown.
	h.m.handleRXTag(tag.New(3, 0, 0))
	shutdown, _ := h.m.ShutdownRequested()
	require.False(t, shutdown, "frame at cur_proc_frame+window-1 is still in-window")
	assert.LessOrEqual(t, uint64(3), h.m.curProcFrame+h.m.window-1)

	// Frame 4 == cur_proc_frame+window is the first out-of-window id.
	h.m.handleRXTag(tag.New(4, 0, 0))
	shutdown, _ = h.m.ShutdownRequested()
	assert.True(t, shutdown, "frame at cur_proc_frame+window must trip the fatal path")
}

// Test_ResetExclusivity is spec.md §8 property 4: once a stage's counter
// is reset for a frame, further completions of that stage for that frame
// must assert.
func Test_ResetExclusivity(t *testing.T) {
	cfg := ulOnlyConfig(t)
	h := newHarness(t, cfg)

	h.m.admitFrame(0)
	h.m.resetCounters(0)

	assert.Panics(t, func() {
		h.m.rxCounter.CompleteTask(0, 0)
	}, "completions after Reset must assert per spec.md §4.2")
}

// Test_IdempotentRetirement is spec.md §8 property 7.
func Test_IdempotentRetirement(t *testing.T) {
	cfg := dlOnlyConfig(t)
	h := newHarness(t, cfg)

	st := h.m.admitFrame(0)
	st.ulDone = true
	st.dlDone = true
	h.m.tryRetire(0)
	require.True(t, st.retired)

	assert.NotPanics(t, func() {
		h.m.tryRetire(0)
	}, "retiring an already-retired frame must be a no-op")
}

// Test_BatchingCorrectness is spec.md §8 property 5: fft_block_size
// divides the antenna count exactly here (4 antennas, block size 2), so
// every FFT event must carry exactly fft_block_size tags and the total
// across events must equal the antenna count.
func Test_BatchingCorrectness(t *testing.T) {
	cfg := ulOnlyConfig(t)
	h := newHarness(t, cfg)

	// Only the pilot symbol's antennas, so every batched FFT event
	// observed below belongs to the one symbol under test.
	pilotSymbol := cfg.PilotSymbols()[0]
	for ant := 0; ant < cfg.BSAntNum; ant++ {
		h.rx.Complete(h.rxTok, 0, tag.Event{Kind: tag.EventPacketRX, Tags: []tag.Tag{tag.New(0, uint32(pilotSymbol), uint32(ant))}})
	}
	h.m.RunN(2000)

	events := h.drainKind(kernel.KindFFT, tag.EventFFTPilot)
	total := 0
	for _, ev := range events {
		assert.Equal(t, cfg.FFTBlockSize, len(ev.Tags), "fft_block_size divides the antenna count, so every event is full")
		total += len(ev.Tags)
	}
	assert.Equal(t, cfg.BSAntNum, total, "total FFT tags across events must equal the antenna count")
}

// Test_BatchingCorrectness_Remainder covers the "fft_block_size does not
// divide the antenna count" half of property 5: the last event must carry
// the remainder and the total must still equal the antenna count.
func Test_BatchingCorrectness_Remainder(t *testing.T) {
	c, err := config.Parse([]byte(`{
		"bs_ant_num": 5,
		"ue_ant_num": 4,
		"ofdm_data_num": 64,
		"frame_schedule": "PUUUUUUUUUUUUUUUU",
		"fft_block_size": 2,
		"demul_block_size": 64,
		"encode_block_size": 4,
		"window_depth": 4
	}`))
	require.NoError(t, err)
	h := newHarness(t, c)

	for ant := 0; ant < c.BSAntNum; ant++ {
		h.rx.Complete(h.rxTok, 0, tag.Event{Kind: tag.EventPacketRX, Tags: []tag.Tag{tag.New(0, 0, uint32(ant))}})
	}
	h.m.RunN(2000)

	events := h.drainKind(kernel.KindFFT, tag.EventFFTPilot)
	require.NotEmpty(t, events)
	total := 0
	for i, ev := range events {
		if i < len(events)-1 {
			assert.Equal(t, c.FFTBlockSize, len(ev.Tags))
		} else {
			assert.Equal(t, c.BSAntNum%c.FFTBlockSize, len(ev.Tags), "last event carries the remainder")
		}
		total += len(ev.Tags)
	}
	assert.Equal(t, c.BSAntNum, total)
}

// Test_UnknownEventKindAborts is spec.md §4.1/§7: an unexpected EventKind
// reaching the completion dispatcher is a programming error.
func Test_UnknownEventKindAborts(t *testing.T) {
	cfg := ulOnlyConfig(t)
	h := newHarness(t, cfg)

	assert.Panics(t, func() {
		h.m.handleCompletionEvent(tag.Event{Kind: tag.EventPacketRX, Tags: []tag.Tag{tag.New(0, 0, 0)}})
	})
}

// Test_DeferralQueueOverflowIsFatal is spec.md §7's deferral-overflow
// escalation: pushing past the deferral queue's capacity must trip the
// scheduler's shutdown flag.
func Test_DeferralQueueOverflowIsFatal(t *testing.T) {
	cfg := ulOnlyConfig(t)
	h := newHarness(t, cfg)
	h.m.deferralQ = deferral.NewQueue(1)

	h.m.DeliverDLPayload(3, nil)
	require.False(t, h.m.shutdown)
	// Frame 1 is still well within the live window, but the deferral
	// queue is already at capacity (1) from the frame-3 push above, and
	// any frame is deferred once an earlier one is already waiting
	// (spec.md §4.1) — so this second push must overflow.
	h.m.DeliverDLPayload(1, nil)
	assert.True(t, h.m.shutdown, "deferral queue overflow should be fatal")
}

// Test_StatsAreRateLimited is the stats-snapshot analogue of spec.md §7's
// "never stall the master loop": maybeReportStats must skip samples until
// statsEvery has elapsed, and never block when the channel is full.
func Test_StatsAreRateLimited(t *testing.T) {
	cfg := ulOnlyConfig(t)
	h := newHarness(t, cfg)

	ch := make(chan stats.Snapshot, 1)
	h.m.EnableStats(ch, time.Hour)

	h.m.maybeReportStats()
	require.Len(t, ch, 1)
	got := <-ch
	assert.Equal(t, h.m.curProcFrame, got.CurProcFrame)

	// Still well within the hour window: no second sample.
	h.m.maybeReportStats()
	assert.Len(t, ch, 0)
}

// Test_StatsDoNotBlockOnFullChannel covers the non-blocking send: a
// consumer that never drains the channel must never stall the scheduler.
func Test_StatsDoNotBlockOnFullChannel(t *testing.T) {
	cfg := ulOnlyConfig(t)
	h := newHarness(t, cfg)

	ch := make(chan stats.Snapshot, 1)
	h.m.EnableStats(ch, 0)

	done := make(chan struct{})
	go func() {
		h.m.maybeReportStats()
		h.m.maybeReportStats()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("maybeReportStats blocked on a full channel")
	}
}

// Test_CalibrationSymbolsRetireTheFrame covers spec.md §3's calibration
// symbol kind: a frame with only pilot and calibration symbols (no UL, no
// DL) must still retire once the calibration branch's FFT closes, even
// though calibration has no downstream Demul/Decode/Encode stage of its
// own.
func Test_CalibrationSymbolsRetireTheFrame(t *testing.T) {
	cfg, err := config.Parse([]byte(`{
		"bs_ant_num": 4,
		"frame_schedule": "PL",
		"fft_block_size": 2,
		"demul_block_size": 1,
		"encode_block_size": 1
	}`))
	require.NoError(t, err)
	require.True(t, cfg.HasCalibration())
	require.False(t, cfg.HasUplink())
	require.False(t, cfg.HasDownlink())

	h := newHarness(t, cfg)

	for _, symbols := range [][]int{cfg.PilotSymbols(), cfg.CalibrationSymbols()} {
		for _, sym := range symbols {
			for ant := 0; ant < cfg.BSAntNum; ant++ {
				tg := tag.New(0, uint32(sym), uint32(ant))
				h.rx.Complete(h.rxTok, 0, tag.Event{Kind: tag.EventPacketRX, Tags: []tag.Tag{tg}})
			}
		}
	}
	h.m.RunN(1000)

	h.drainKind(kernel.KindFFT, tag.EventFFTPilot)
	h.m.RunN(1000)
	h.drainKind(kernel.KindFFT, tag.EventFFTData)
	h.m.RunN(1000)

	assert.Equal(t, uint64(1), h.m.curProcFrame, "frame should retire once its calibration branch closes")
}
