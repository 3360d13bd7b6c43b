package main

import (
	"context"

	"github.com/k9ran/phycore/internal/buffers"
	"github.com/k9ran/phycore/internal/config"
	"github.com/k9ran/phycore/internal/mac"
	"github.com/k9ran/phycore/internal/rflog"
	"github.com/k9ran/phycore/internal/stats"
	"github.com/k9ran/phycore/internal/wire"
)

// demoDLPayloadSize is an arbitrary synthetic downlink payload length — the
// real payload comes from the MAC layer, out of scope per spec.md §1.
const demoDLPayloadSize = 16

// bytesToPacket frames a raw byte slice as a wire.Packet for dumping,
// reinterpreting byte pairs as the IQ samples wire.Packet already knows how
// to marshal rather than inventing a second on-disk format for decoded
// payload dumps.
func bytesToPacket(frame uint64, symbol uint32, b []byte) wire.Packet {
	iq := make([]int16, 0, (len(b)+1)/2)
	for i := 0; i < len(b); i += 2 {
		lo := int16(b[i])
		hi := int16(0)
		if i+1 < len(b) {
			hi = int16(b[i+1])
		}
		iq = append(iq, lo|hi<<8)
	}
	return wire.Packet{FrameID: uint32(frame), SymbolID: symbol, IQ: iq}
}

// runDemoMac stands in for the real MAC loop spec.md §1 puts out of scope:
// it drains decoded UL payloads and, when the configured schedule carries
// downlink data symbols, hands back one synthetic DL payload per frame (on
// that frame's first decoded payload) so a demo run exercises the full
// UL+DL dependency graph rather than just the uplink branch. It returns
// when ctx is canceled.
func runDemoMac(ctx context.Context, link *mac.Link, cfg *config.Config, pool *buffers.Pool, decodeDump *stats.DumpWriter, log *rflog.Logger) {
	// replied holds the frames that already got their DL payload; a frame
	// sends one ToMac request per decoded UL symbol.
	replied := make(map[uint64]bool)
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-link.Request:
			switch req.Kind {
			case mac.ToMacPacket:
				if log != nil {
					log.Debugf("mac: received decoded payload frame=%d symbol=%d", req.Frame, req.Symbol)
				}
				if decodeDump != nil {
					bits := pool.Decoded.View(req.Frame, req.Symbol)
					decodeDump.WritePacket(bytesToPacket(req.Frame, uint32(req.Symbol), bits))
				}
				if cfg.HasDownlink() && !replied[req.Frame] {
					replied[req.Frame] = true
					for f := range replied {
						if f+uint64(cfg.WindowDepth) < req.Frame {
							delete(replied, f)
						}
					}
					payload := make([]byte, len(cfg.DownlinkDataSymbols())*demoDLPayloadSize)
					select {
					case link.Response <- mac.FromMacEvent{Kind: mac.FromMacDLPayload, Frame: req.Frame, Bits: payload}:
					case <-ctx.Done():
						return
					}
				}
			case mac.ToMacSNRReport:
				if log != nil {
					log.Debugf("mac: SNR report %.2f dB", req.SNR)
				}
			}
		}
	}
}
