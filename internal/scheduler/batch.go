package scheduler

import "github.com/k9ran/phycore/internal/tag"

// partitionTags splits [0, total) into ascending, blockSize-wide chunks
// and returns one Event per chunk, each carrying the tags mk builds for
// its range. This is the "partition the OFDM data subcarriers into
// block_size-wide chunks ... emitted sequentially with stride block_size"
// policy from spec.md §4.1 for Demul/Precode/Beam, and the
// encode_block_size code-block batching for Encode/Decode.
func partitionTags(kind tag.EventKind, total, blockSize int, mk func(i int) tag.Tag) []tag.Event {
	if total <= 0 || blockSize <= 0 {
		return nil
	}
	var events []tag.Event
	for start := 0; start < total; start += blockSize {
		end := start + blockSize
		if end > total {
			end = total
		}
		tags := make([]tag.Tag, 0, end-start)
		for i := start; i < end; i++ {
			tags = append(tags, mk(i))
		}
		events = append(events, tag.Event{Kind: kind, Tags: tags})
	}
	return events
}

// blockCount returns ceil(total/blockSize), the task_limit a counter.Set
// needs for a partitioned stage.
func blockCount(total, blockSize int) int {
	if total <= 0 || blockSize <= 0 {
		return 0
	}
	return (total + blockSize - 1) / blockSize
}

// fftBatcher coalesces RX antenna tags arriving for one (frame, symbol)
// into fft_block_size-wide FFT task events as they arrive, per spec.md §3
// ("FftQueue — per-FrameSlot FIFO of incoming RX packet tags awaiting FFT
// batching") and §4.1's batching policy. When the symbol's RX arrivals are
// all in, Flush emits the remainder so "the last event carries the
// remainder, and the total tag count equals the antenna count"
// (spec.md §8 property 5).
type fftBatcher struct {
	blockSize int
	pending   []tag.Tag
}

func newFFTBatcher(blockSize int) *fftBatcher {
	return &fftBatcher{blockSize: blockSize}
}

// Append adds t to the pending batch and returns a ready event if the
// batch just reached blockSize.
func (b *fftBatcher) Append(kind tag.EventKind, t tag.Tag) (tag.Event, bool) {
	b.pending = append(b.pending, t)
	if len(b.pending) < b.blockSize {
		return tag.Event{}, false
	}
	ev := tag.Event{Kind: kind, Tags: b.pending}
	b.pending = nil
	return ev, true
}

// Flush emits whatever remains in the batch (possibly empty) and resets
// it. Callers only call Flush once all expected tags for the (frame,
// symbol) have arrived.
func (b *fftBatcher) Flush(kind tag.EventKind) (tag.Event, bool) {
	if len(b.pending) == 0 {
		return tag.Event{}, false
	}
	ev := tag.Event{Kind: kind, Tags: b.pending}
	b.pending = nil
	return ev, true
}
