// Package buffers implements the fixed-size, pre-allocated multi-stage
// buffers described in spec.md §3: CSI, beam matrices, equalized samples,
// demod LLRs, decoded bits, IFFT output, and socket (I/Q sample) buffers.
//
// Ownership follows spec.md §3 exactly: buffers are allocated once at
// startup, indexed by (FrameSlot, symbol, ...), and exclusively mutated by
// one task kind per stage; downstream stages only read. There are no
// locks — safety follows from the scheduler never releasing a dependent
// stage until the producing stage's counter closes (see internal/counter
// and internal/scheduler), exactly the "borrowing discipline" spec.md §9
// describes.
package buffers

import "github.com/k9ran/phycore/internal/rflog"

// Grid is a fixed-size (slot × symbol) grid of equal-length sample
// buffers, generic over the sample type so the same shape serves complex
// I/Q samples, real LLRs, or raw bytes.
type Grid[T any] struct {
	window      int
	numSymbols  int
	elemsPerBuf int
	data        [][][]T // [slot][symbol][elem]
}

// NewGrid allocates a Grid with window slots, numSymbols symbols per
// frame, and elemsPerBuf elements in each (slot, symbol) buffer.
func NewGrid[T any](window, numSymbols, elemsPerBuf int) *Grid[T] {
	rflog.Assert(window > 0 && numSymbols > 0 && elemsPerBuf >= 0, "buffers.NewGrid: invalid dimensions")
	g := &Grid[T]{window: window, numSymbols: numSymbols, elemsPerBuf: elemsPerBuf}
	g.data = make([][][]T, window)
	for s := range g.data {
		g.data[s] = make([][]T, numSymbols)
		for sym := range g.data[s] {
			g.data[s][sym] = make([]T, elemsPerBuf)
		}
	}
	return g
}

func (g *Grid[T]) slot(frame uint64) int { return int(frame % uint64(g.window)) }

// View returns the mutable slice for (frame, symbol). Callers must only
// write while the owning stage's counter for (frame, symbol) is open, and
// must treat the result as read-only once the scheduler has observed that
// stage's closure — this discipline is enforced by construction (only the
// one Doer implementation for that stage ever calls View to write) rather
// than by a runtime lock.
func (g *Grid[T]) View(frame uint64, symbol int) []T {
	return g.data[g.slot(frame)][symbol]
}

// Pool groups every named buffer grid a base station frame pipeline uses.
// Per spec.md §9's "Singleton-like config object" note, a Pool is
// constructed once from Dims and passed by reference — never stored as
// package-level state.
type Pool struct {
	CSI        *Grid[complex64] // channel state info, per pilot symbol
	BeamWeights *Grid[complex64] // beamforming matrices, per subcarrier group
	Equalized  *Grid[complex64] // post-beamforming UL samples
	LLR        *Grid[int8]      // demodulated log-likelihood ratios
	Decoded    *Grid[byte]      // decoded UL bits
	EncodedDL  *Grid[byte]      // encoded DL bits, pre-precode
	Precoded   *Grid[complex64] // precoded DL antenna streams
	IFFTOut    *Grid[complex64] // time-domain DL samples, ready for TX
	SocketIQ   *Grid[int16]     // raw interleaved I/Q samples from/to the wire
}

// Dims sizes every grid in a Pool.
type Dims struct {
	Window         int
	SymbolsPerFrame int
	BSAntNum       int
	FFTSize        int
	OFDMDataNum    int
	CodedBitsPerBlock int
	SamplesPerSymbol int
}

// NewPool allocates every buffer in the pool up front, per spec.md §3
// ("allocated once at startup").
func NewPool(d Dims) *Pool {
	return &Pool{
		CSI:         NewGrid[complex64](d.Window, d.SymbolsPerFrame, d.BSAntNum),
		BeamWeights: NewGrid[complex64](d.Window, d.SymbolsPerFrame, d.BSAntNum*d.OFDMDataNum),
		Equalized:   NewGrid[complex64](d.Window, d.SymbolsPerFrame, d.OFDMDataNum),
		LLR:         NewGrid[int8](d.Window, d.SymbolsPerFrame, d.CodedBitsPerBlock),
		Decoded:     NewGrid[byte](d.Window, d.SymbolsPerFrame, d.CodedBitsPerBlock/8+1),
		EncodedDL:   NewGrid[byte](d.Window, d.SymbolsPerFrame, d.CodedBitsPerBlock/8+1),
		Precoded:    NewGrid[complex64](d.Window, d.SymbolsPerFrame, d.BSAntNum*d.OFDMDataNum),
		IFFTOut:     NewGrid[complex64](d.Window, d.SymbolsPerFrame, d.BSAntNum*d.FFTSize),
		SocketIQ:    NewGrid[int16](d.Window, d.SymbolsPerFrame, d.SamplesPerSymbol*2),
	}
}
