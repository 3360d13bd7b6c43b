// Package kernel defines the Doer contract for the stateless DSP compute
// units the worker pool dispatches, and the fixed polling order the spec
// requires (spec.md §4.4). The actual DSP math (FFT, LDPC, beamforming,
// QAM) is out of scope per spec.md §1 — kernels here are specified only
// by their input/output contract and cost class, so each concrete Doer is
// a thin stand-in that a real implementation plugs into.
package kernel

import (
	"github.com/k9ran/phycore/internal/tag"
)

// Kind enumerates the seven DSP kernels every worker owns a private
// instance of.
type Kind uint8

const (
	KindBeam Kind = iota
	KindFFT
	KindDecode
	KindDemul
	KindIFFT
	KindPrecode
	KindEncode
	kindCount
)

// PollOrder is the fixed order workers poll their per-kernel sub-queues in,
// per spec.md §4.4 step 1: "Beam, FFT, Decode, Demul, IFFT, Precode,
// Encode."
var PollOrder = [kindCount]Kind{KindBeam, KindFFT, KindDecode, KindDemul, KindIFFT, KindPrecode, KindEncode}

func (k Kind) String() string {
	names := [kindCount]string{"Beam", "FFT", "Decode", "Demul", "IFFT", "Precode", "Encode"}
	if int(k) < len(names) {
		return names[k]
	}
	return "Kind(?)"
}

// Count is the number of distinct kernel kinds, for sizing per-kernel
// sub-queue arrays.
const Count = int(kindCount)

// Doer is a stateless compute unit: given an event's tags, it performs the
// DSP operation on the buffer slice the tags address and returns the
// EventKind to emit on completion. Doers are stateless across frames
// except for scratch buffers owned exclusively by the worker that holds
// them (spec.md §4.4).
type Doer interface {
	Kind() Kind
	// Run executes the kernel for one batched event and returns the
	// completion EventKind to emit. Implementations never block and
	// never touch another worker's scratch state.
	Run(in tag.Event) (completion tag.EventKind)
}

// CostClass approximates relative per-task CPU cost, used by
// internal/stats to weight queue-depth reporting — the spec treats
// kernels as external collaborators and does not require real timing, but
// does frame them by "cost class" (spec.md §1), so a backlog of Decode
// tasks should read as more significant than the same depth of Encode
// tasks in the periodic statistics snapshot.
type CostClass int

const (
	CostLight CostClass = iota
	CostModerate
	CostHeavy
)

// Weight returns the nominal relative-cost multiplier for a CostClass,
// used to turn a raw per-kernel queue depth into the cost-weighted depth
// internal/stats.Snapshot reports.
func (c CostClass) Weight() int {
	switch c {
	case CostHeavy:
		return 4
	case CostModerate:
		return 2
	default:
		return 1
	}
}

// Costs gives the nominal CostClass of each kernel kind, per spec.md §1's
// framing of FFT/LDPC/beamforming as "cost classes."
var Costs = [kindCount]CostClass{
	KindBeam:    CostHeavy,
	KindFFT:     CostModerate,
	KindDecode:  CostHeavy,
	KindDemul:   CostModerate,
	KindIFFT:    CostModerate,
	KindPrecode: CostModerate,
	KindEncode:  CostLight,
}
