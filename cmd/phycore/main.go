// Command phycore is the reference wiring for the base station's per-frame
// pipeline scheduler: it loads a configuration document, allocates the
// fixed buffer pool and message fabrics, starts a pinned worker pool, and
// drives the scheduler's master loop against a synthetic streamer so the
// full dependency graph (RX -> FFT -> Beam -> Demul -> Decode -> [MAC] ->
// Encode -> Precode -> IFFT -> TX) can be exercised end-to-end without real
// radio hardware, matching how the teacher's kissutil.go stands in for a
// real TNC client against a live KISS TNC.
//
// Downlink payloads come only from the demo MAC loop (runDemoMac), which
// answers decoded uplink payloads. Without mac_enabled, or with no uplink
// symbols in the schedule, a schedule that has downlink data symbols gets
// no payload and its frames do not retire.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/k9ran/phycore/internal/buffers"
	"github.com/k9ran/phycore/internal/config"
	"github.com/k9ran/phycore/internal/fabric"
	"github.com/k9ran/phycore/internal/kernel"
	"github.com/k9ran/phycore/internal/mac"
	"github.com/k9ran/phycore/internal/rflog"
	"github.com/k9ran/phycore/internal/scheduler"
	"github.com/k9ran/phycore/internal/stats"
	"github.com/k9ran/phycore/internal/streamer"
	"github.com/k9ran/phycore/internal/worker"
)

// statsInterval is how often cmd/phycore samples the scheduler for the CSV
// report; spec.md does not fix this rate, so it follows the teacher's own
// audio_stats.go default of a 1-second interval.
const statsInterval = time.Second

// Exit codes, per spec.md §6.
const (
	exitOK            = 0
	exitFatalShutdown = 1
	exitConfigError   = 2
)

// drainGrace is how long the main loop waits after the synthetic streamer
// exhausts its script before cancelling the run, giving in-flight tasks a
// chance to retire their frames.
const drainGrace = 200 * time.Millisecond

// fabricCapacity sizes every task/completion/streamer sub-queue as
// kWorkerQueueSize × (all symbols in the schedule) × bs_ant_num, and never
// below kWorkerQueueSize.
func fabricCapacity(cfg *config.Config) int {
	const kWorkerQueueSize = 64
	n := kWorkerQueueSize * len(cfg.Schedule()) * cfg.BSAntNum
	if n < kWorkerQueueSize {
		n = kWorkerQueueSize
	}
	return n
}

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = pflag.StringP("config", "c", "phycore.json", "Path to the base station configuration document")
		frames     = pflag.IntP("frames", "n", 0, "Override frames_to_test from the configuration (0 = use the configured value)")
		timeFmt    = pflag.StringP("timestamp-format", "T", "", "strftime pattern for log timestamps (default %H:%M:%S)")
		verbose    = pflag.BoolP("verbose", "v", false, "Enable debug-level logging")
		noColor    = pflag.Bool("no-color", false, "Disable ANSI color in console output")
		statsPath  = pflag.String("stats-path", "", "Write a periodic CSV statistics snapshot to this path (disabled if empty)")
		help       = pflag.Bool("help", false, "Display help text")
	)
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - software base station per-frame pipeline scheduler.\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Drives the scheduler, worker pool and message fabric against a synthetic\n")
		fmt.Fprintf(os.Stderr, "RX traffic script for a fixed number of frames, for development and testing\n")
		fmt.Fprintf(os.Stderr, "without real radio hardware attached.\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if *help {
		pflag.Usage()
		return exitOK
	}

	level := rflog.LevelInfo
	if *verbose {
		level = rflog.LevelDebug
	}
	var log *rflog.Logger
	if *timeFmt != "" {
		l, err := rflog.NewWithTimeFormat(os.Stderr, level, !*noColor, *timeFmt)
		if err != nil {
			fmt.Fprintf(os.Stderr, "phycore: %v\n", err)
			return exitConfigError
		}
		log = l
	} else {
		log = rflog.New(os.Stderr, level, !*noColor)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Errorf("config: %v", err)
		return exitConfigError
	}
	framesToTest := uint64(cfg.FramesToTest)
	if *frames > 0 {
		framesToTest = uint64(*frames)
	}
	if framesToTest == 0 {
		framesToTest = 1
	}

	pool := buffers.NewPool(buffers.Dims{
		Window:            cfg.WindowDepth,
		SymbolsPerFrame:   len(cfg.Schedule()),
		BSAntNum:          cfg.BSAntNum,
		FFTSize:           cfg.FFTSize,
		OFDMDataNum:       cfg.OFDMDataNum,
		CodedBitsPerBlock: 8 * cfg.EncodeBlockSize,
		SamplesPerSymbol:  cfg.FFTSize + cfg.CPSize,
	})
	log.Infof("phycore: allocated buffer pool for window=%d symbols_per_frame=%d", cfg.WindowDepth, len(cfg.Schedule()))

	queueCap := fabricCapacity(cfg)
	tasks := fabric.NewTaskFabric(queueCap, log)
	completions := fabric.NewCompletionFabric(queueCap, log)
	rx := fabric.NewStreamerFabric(queueCap, log)

	var macLink *mac.Link
	if cfg.MacEnabled {
		macLink = mac.NewLink(queueCap)
	}

	txDump, err := stats.NewDumpWriter(cfg.TxDataDumpPath, log)
	if err != nil {
		log.Errorf("%v", err)
		return exitConfigError
	}
	decodeDump, err := stats.NewDumpWriter(cfg.DecodeDataDumpPath, log)
	if err != nil {
		log.Errorf("%v", err)
		return exitConfigError
	}
	defer txDump.Close()
	defer decodeDump.Close()

	script := buildRXScript(cfg, framesToTest)
	fakeStreamer := &streamer.FakeStreamer{Script: script}
	var strm streamer.Streamer = fakeStreamer
	txConsumer := &txSink{inner: fakeStreamer, pool: pool, cfg: cfg, dump: txDump}

	sched := scheduler.New(cfg, tasks, completions, rx, macLink, txConsumer, log)

	var statsCh chan stats.Snapshot
	if *statsPath != "" {
		f, err := os.OpenFile(*statsPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			log.Errorf("stats: %v", err)
			return exitConfigError
		}
		defer f.Close()
		statsCh = make(chan stats.Snapshot, 8)
		sched.EnableStats(statsCh, statsInterval)
		writer := stats.NewWriter(f)
		go writer.Drain(context.Background(), statsCh, func(err error) {
			log.Errorf("stats: %v", err)
		})
	}

	pinOffset := -1
	if cfg.CoreOffset > 0 {
		pinOffset = cfg.CoreOffset
	}
	workers := worker.NewPool(cfg.WorkerThreadNum, pinOffset, func(int) []kernel.Doer {
		return newDoers(pool)
	}, tasks, completions, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	workers.Start(ctx)
	if macLink != nil {
		go runDemoMac(ctx, macLink, cfg, pool, decodeDump, log)
	}

	streamerDone := make(chan error, 1)
	rxTok := fabric.NewProducerToken("phycore-streamer")
	go func() { streamerDone <- strm.StartTxRx(ctx, rx, rxTok) }()

	go func() {
		select {
		case <-streamerDone:
			time.Sleep(drainGrace)
			cancel()
		case <-ctx.Done():
		}
	}()

	sched.Run(ctx)
	cancel()
	workers.Stop()

	if fatal, reason := sched.ShutdownRequested(); fatal {
		log.Errorf("phycore: stopped on fatal condition: %s", reason)
		return exitFatalShutdown
	}
	log.Infof("phycore: run complete (%d frames scripted)", framesToTest)
	return exitOK
}
