package main

import (
	"github.com/k9ran/phycore/internal/buffers"
	"github.com/k9ran/phycore/internal/config"
	"github.com/k9ran/phycore/internal/stats"
	"github.com/k9ran/phycore/internal/streamer"
	"github.com/k9ran/phycore/internal/tag"
	"github.com/k9ran/phycore/internal/wire"
)

// txSink wraps a streamer.TxConsumer, additionally framing each completed
// TX antenna stream as a wire.Packet and appending it to the configured
// dump file (spec.md §6's tx_data_dump_path), mirroring the way the
// scheduler hands TX events to the real transmit driver in production.
type txSink struct {
	inner streamer.TxConsumer
	pool  *buffers.Pool
	cfg   *config.Config
	dump  *stats.DumpWriter
}

func (s *txSink) ConsumeTX(ev tag.Event) {
	if s.dump != nil {
		for _, t := range ev.Tags {
			samples := s.pool.IFFTOut.View(t.Frame(), int(t.Symbol()))
			ant := int(t.Inner())
			start := ant * s.cfg.FFTSize
			end := start + s.cfg.FFTSize
			if start < 0 || end > len(samples) {
				continue
			}
			iq := make([]int16, 0, s.cfg.FFTSize*2)
			for _, c := range samples[start:end] {
				iq = append(iq, int16(real(c)), int16(imag(c)))
			}
			s.dump.WritePacket(wire.Packet{
				FrameID:  uint32(t.Frame()),
				SymbolID: t.Symbol(),
				CellID:   0,
				AntID:    uint32(ant),
				IQ:       iq,
			})
		}
	}
	if s.inner != nil {
		s.inner.ConsumeTX(ev)
	}
}
