// Package mac defines the contract-only boundary to the MAC layer
// (spec.md §4.6): a separate event loop communicating via two
// single-producer/single-consumer channels. The MAC layer itself is out
// of scope per spec.md §1.
package mac

import "github.com/k9ran/phycore/internal/tag"

// ToMac events: core → MAC.
type ToMacKind uint8

const (
	ToMacPacket ToMacKind = iota // decoded UL payload ready
	ToMacSNRReport
)

// ToMacEvent carries a decoded UL payload or an SNR report from the core
// to the MAC loop.
type ToMacEvent struct {
	Kind    ToMacKind
	Frame   uint64
	Symbol  int
	UserTag tag.Tag
	Bits    []byte  // valid when Kind == ToMacPacket
	SNR     float64 // valid when Kind == ToMacSNRReport
}

// FromMac events: MAC → core.
type FromMacKind uint8

const (
	FromMacDLPayload FromMacKind = iota // DL payload for a frame ready
	FromMacRANUpdate                    // MCS changes
)

// FromMacEvent carries a DL payload or an MCS update from the MAC loop
// back to the core.
type FromMacEvent struct {
	Kind      FromMacKind
	Frame     uint64
	Bits      []byte // valid when Kind == FromMacDLPayload, per DL symbol concatenated
	NewULMcs  int    // valid when Kind == FromMacRANUpdate
	NewDLMcs  int    // valid when Kind == FromMacRANUpdate
}

// Link is the pair of SPSC channels connecting the core to a MAC loop.
// Request is core → MAC; Response is MAC → core. Channels rather than
// internal/fabric's bounded ring are used here because spec.md §4.6
// specifies this boundary as single-producer/single-consumer, which is
// exactly what a Go channel models directly — fabric.Queue's
// parity-bucketed MPMC machinery would be solving a problem this
// boundary doesn't have.
type Link struct {
	Request  chan ToMacEvent
	Response chan FromMacEvent
}

// NewLink builds a Link with the given channel buffering.
func NewLink(bufferSize int) *Link {
	return &Link{
		Request:  make(chan ToMacEvent, bufferSize),
		Response: make(chan FromMacEvent, bufferSize),
	}
}
