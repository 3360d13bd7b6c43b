// Package wire implements the little-endian RX/TX packet framing from
// spec.md §6: a 16-byte header (frame_id, symbol_id, cell_id, ant_id, each
// 4 bytes) followed by samps_per_symbol interleaved int16 I/Q pairs.
//
// The teacher frames AX.25/KISS packets byte-by-byte in src/kiss_frame.go
// and src/ax25_pad.go using encoding/binary-style manual little-endian
// packing; this package follows the same manual-packing idiom rather than
// reaching for a serialization library, since the wire format is a fixed
// flat header plus a raw sample array, not a self-describing or evolving
// schema — exactly the case encoding/binary.Read/Write (and manual offset
// math, where the teacher needed bit-level control binary.Read can't give)
// is meant for.
package wire

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed byte length of a packet header.
const HeaderSize = 16

// Packet is one decoded RX or TX radio packet.
type Packet struct {
	FrameID  uint32
	SymbolID uint32
	CellID   uint32
	AntID    uint32
	IQ       []int16 // interleaved I, Q, I, Q, ... length == 2*samps_per_symbol
}

// Marshal encodes p into the little-endian wire format.
func (p Packet) Marshal() []byte {
	buf := make([]byte, HeaderSize+len(p.IQ)*2)
	binary.LittleEndian.PutUint32(buf[0:4], p.FrameID)
	binary.LittleEndian.PutUint32(buf[4:8], p.SymbolID)
	binary.LittleEndian.PutUint32(buf[8:12], p.CellID)
	binary.LittleEndian.PutUint32(buf[12:16], p.AntID)
	for i, s := range p.IQ {
		binary.LittleEndian.PutUint16(buf[HeaderSize+i*2:], uint16(s))
	}
	return buf
}

// Unmarshal decodes buf into a Packet. sampsPerSymbol is the expected
// number of complex samples (so 2*sampsPerSymbol int16 values); a short
// or malformed buffer returns an error rather than panicking, since this
// is a system boundary (spec.md §7 treats malformed input as a streamer
// concern, not a scheduler invariant violation).
func Unmarshal(buf []byte, sampsPerSymbol int) (Packet, error) {
	wantLen := HeaderSize + sampsPerSymbol*2*2
	if len(buf) != wantLen {
		return Packet{}, fmt.Errorf("wire: packet length %d, want %d for %d samples/symbol", len(buf), wantLen, sampsPerSymbol)
	}
	p := Packet{
		FrameID:  binary.LittleEndian.Uint32(buf[0:4]),
		SymbolID: binary.LittleEndian.Uint32(buf[4:8]),
		CellID:   binary.LittleEndian.Uint32(buf[8:12]),
		AntID:    binary.LittleEndian.Uint32(buf[12:16]),
		IQ:       make([]int16, sampsPerSymbol*2),
	}
	for i := range p.IQ {
		p.IQ[i] = int16(binary.LittleEndian.Uint16(buf[HeaderSize+i*2:]))
	}
	return p, nil
}
