package streamer

import (
	"context"
	"sync"

	"github.com/k9ran/phycore/internal/fabric"
	"github.com/k9ran/phycore/internal/tag"
)

// FakeStreamer is a deterministic, in-process Streamer used by the
// cmd/phycore demo harness. Instead of capturing real I/Q samples it plays
// back a pre-built sequence of RX events and records every TX event it is
// handed, so a caller can inject known traffic and read back the emitted
// TX order with TXEvents.
type FakeStreamer struct {
	Script []tag.Event // RX events to emit, in order; each StartTxRx call replays all of them

	txMu sync.Mutex // guards TX below; ConsumeTX may be called from the worker/master path
	TX   []tag.Event
}

// StartTxRx replays Script onto rx synchronously and returns. Real
// streamers would instead run until ctx is canceled; the fake completes
// immediately because its traffic is fixed and known in advance.
func (f *FakeStreamer) StartTxRx(ctx context.Context, rx *fabric.StreamerFabric, tok *fabric.ProducerToken) error {
	for _, ev := range f.Script {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		frame := uint64(0)
		if len(ev.Tags) > 0 {
			frame = ev.Tags[0].Frame()
		}
		rx.Complete(tok, frame, ev)
	}
	return nil
}

// ConsumeTX records ev for later assertions.
func (f *FakeStreamer) ConsumeTX(ev tag.Event) {
	f.txMu.Lock()
	defer f.txMu.Unlock()
	f.TX = append(f.TX, ev)
}

// TXEvents returns a snapshot of every TX event recorded so far.
func (f *FakeStreamer) TXEvents() []tag.Event {
	f.txMu.Lock()
	defer f.txMu.Unlock()
	return append([]tag.Event(nil), f.TX...)
}
