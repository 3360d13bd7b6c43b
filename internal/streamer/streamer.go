// Package streamer defines the boundary contract between the radio/network
// I/O thread pool and the core (spec.md §4.5). Real SDR/USRP/DPDK capture
// and transmit drivers are out of scope per spec.md §1; this package
// specifies only the interface those drivers satisfy, plus a synthetic
// implementation (FakeStreamer) used by cmd/phycore to exercise the
// pipeline end-to-end.
package streamer

import (
	"context"

	"github.com/k9ran/phycore/internal/fabric"
	"github.com/k9ran/phycore/internal/tag"
)

// Streamer is the contract spec.md §4.5 describes: StartTxRx arms
// hardware and starts internal I/O threads; RX packet events are pushed
// onto rx as EventPacketRX events (one tag per packet, header carrying
// frame/symbol/antenna — spec.md §4.5's "a tag pointing to a packet");
// TX packet events are consumed from the core by whatever production
// implementation wraps real hardware.
type Streamer interface {
	// StartTxRx arms the hardware/socket layer and starts producing RX
	// events onto rx using tok, until ctx is canceled.
	StartTxRx(ctx context.Context, rx *fabric.StreamerFabric, tok *fabric.ProducerToken) error
}

// TxConsumer is satisfied by implementations that accept completed TX
// events for transmission (spec.md §4.5's "TX consumer").
type TxConsumer interface {
	ConsumeTX(ev tag.Event)
}
