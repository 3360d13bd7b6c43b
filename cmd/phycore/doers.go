package main

import (
	"github.com/k9ran/phycore/internal/buffers"
	"github.com/k9ran/phycore/internal/kernel"
	"github.com/k9ran/phycore/internal/tag"
)

// newDoers builds the seven-kernel set every worker owns, per kernel.Kind.
// Real FFT/LDPC/beamforming/QAM math is out of scope (spec.md §1); each
// Doer is a kernel.Stub, but the FFT, Decode and IFFT stages touch pool so
// a demo run has something real to dump and inspect instead of an always-
// zero buffer pool.
func newDoers(pool *buffers.Pool) []kernel.Doer {
	fft := kernel.NewStub(kernel.KindFFT, tag.EventFFTData).WithHook(func(ev tag.Event) {
		for _, t := range ev.Tags {
			csi := pool.CSI.View(t.Frame(), int(t.Symbol()))
			for i := range csi {
				csi[i] = complex(float32(t.Frame()%251), float32(i))
			}
		}
	})
	decode := kernel.NewStub(kernel.KindDecode, tag.EventDecode).WithHook(func(ev tag.Event) {
		for _, t := range ev.Tags {
			bits := pool.Decoded.View(t.Frame(), int(t.Symbol()))
			for i := range bits {
				bits[i] = byte(t.Frame()+uint64(i)) ^ byte(t.Inner())
			}
		}
	})
	ifft := kernel.NewStub(kernel.KindIFFT, tag.EventIFFT).WithHook(func(ev tag.Event) {
		for _, t := range ev.Tags {
			samples := pool.IFFTOut.View(t.Frame(), int(t.Symbol()))
			for i := range samples {
				samples[i] = complex(float32(t.Frame()%251), float32(t.Symbol()))
			}
		}
	})

	return []kernel.Doer{
		kernel.NewStub(kernel.KindBeam, tag.EventBeam),
		fft,
		decode,
		kernel.NewStub(kernel.KindDemul, tag.EventDemul),
		ifft,
		kernel.NewStub(kernel.KindPrecode, tag.EventPrecode),
		kernel.NewStub(kernel.KindEncode, tag.EventEncode),
	}
}
