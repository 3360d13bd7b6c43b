package main

import (
	"github.com/k9ran/phycore/internal/config"
	"github.com/k9ran/phycore/internal/tag"
)

// buildRXScript synthesizes the RX traffic FakeStreamer replays for a demo
// run: one EventPacketRX per (symbol, antenna) for every pilot and uplink
// symbol of every frame in [0, frames), mirroring what a real capture
// thread would push onto the streamer fabric after framing raw I/Q
// samples (spec.md §4.5).
func buildRXScript(cfg *config.Config, frames uint64) []tag.Event {
	pilot := cfg.PilotSymbols()
	uplink := cfg.UplinkSymbols()
	var script []tag.Event
	for frame := uint64(0); frame < frames; frame++ {
		for _, symbols := range [][]int{pilot, uplink} {
			for _, sym := range symbols {
				for ant := 0; ant < cfg.BSAntNum; ant++ {
					t := tag.New(frame, uint32(sym), uint32(ant))
					script = append(script, tag.Event{Kind: tag.EventPacketRX, Tags: []tag.Tag{t}})
				}
			}
		}
	}
	return script
}
