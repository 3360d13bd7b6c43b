// Package tag implements the packed 64-bit task descriptor that flows
// through the message fabric.
//
// A Tag carries (frame_id, symbol_id, inner_id) where inner_id is
// context-dependent: antenna index, subcarrier base, code-block index, or
// user index depending on the event kind it travels with. Tags are values,
// not references, and are cheap to copy across queues.
//
// Bit layout (MSB to LSB), chosen to keep frame_id monotonically
// increasing when the whole tag is compared as an unsigned integer, which
// is convenient for log output and deterministic test fixtures:
//
//	bits 63..24  frame_id   (40 bits)
//	bits 23..12  symbol_id  (12 bits)
//	bits 11..0   inner_id   (12 bits)
package tag

const (
	innerBits  = 12
	symbolBits = 12

	innerMask  = 1<<innerBits - 1
	symbolMask = 1<<symbolBits - 1

	symbolShift = innerBits
	frameShift  = innerBits + symbolBits
)

// Tag is a packed task descriptor. The zero value is not a valid tag for
// frame 0 symbol 0 inner 0 only by coincidence; callers should always
// construct tags with New.
type Tag uint64

// New packs a (frame, symbol, inner) triple into a Tag. Values that do not
// fit their field width are truncated by the caller's responsibility to
// keep frame/symbol/inner counts within the configured limits; New itself
// does not validate range, matching the zero-overhead packing the hot path
// needs.
func New(frame uint64, symbol, inner uint32) Tag {
	return Tag(frame<<frameShift | uint64(symbol&symbolMask)<<symbolShift | uint64(inner&innerMask))
}

// Frame returns the frame id component.
func (t Tag) Frame() uint64 { return uint64(t) >> frameShift }

// Symbol returns the symbol id component.
func (t Tag) Symbol() uint32 { return uint32(uint64(t)>>symbolShift) & symbolMask }

// Inner returns the context-dependent inner id (antenna, subcarrier base,
// code-block index, or user index).
func (t Tag) Inner() uint32 { return uint32(t) & innerMask }

// WithInner returns a copy of t with the inner id replaced, keeping frame
// and symbol unchanged. Used by batching helpers that derive a run of tags
// sharing a (frame, symbol).
func (t Tag) WithInner(inner uint32) Tag {
	return New(t.Frame(), t.Symbol(), inner)
}

// Kind identifies what a Tag's inner id means and, combined with an
// EventKind, what operation it participates in.
type Kind uint8

const (
	KindAntenna Kind = iota
	KindSubcarrierBlock
	KindCodeBlock
	KindUser
)

// EventKind enumerates the distinct task/completion event types the
// scheduler and workers exchange. The set is fixed by the physical-layer
// dependency graph in spec.md §4.1 and is never extended at runtime.
type EventKind uint8

const (
	EventPacketRX EventKind = iota
	EventPacketTX
	EventFFTPilot
	EventFFTData
	EventBeam
	EventDemul
	EventDecode
	EventToMac
	EventMacDLReady
	EventEncode
	EventPrecode
	EventIFFT
	EventTXDone
	eventKindCount
)

// String renders an EventKind for logs and test failure messages.
func (k EventKind) String() string {
	names := [eventKindCount]string{
		"PacketRX", "PacketTX", "FFTPilot", "FFTData", "Beam",
		"Demul", "Decode", "ToMac", "MacDLReady", "Encode",
		"Precode", "IFFT", "TXDone",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "EventKind(?)"
}

// Valid reports whether k is one of the fixed event kinds. An event
// carrying an invalid kind is a programming error per spec.md §4.1 and
// §7 ("Unknown event kind: programming error — abort.").
func (k EventKind) Valid() bool { return k < eventKindCount }

// MaxTagsPerEvent is the nominal upper bound on the number of tags a
// single bulk-coalesced Event (e.g. an FFT over a block of antennas)
// carries. Nothing in this package or the scheduler checks it; an event's
// tag count is set by the configured block sizes.
const MaxTagsPerEvent = 64

// Event is a (kind, tags) pair emitted onto the message fabric. The tag
// slice length is not checked against MaxTagsPerEvent.
type Event struct {
	Kind EventKind
	Tags []Tag
}
