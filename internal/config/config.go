// Package config loads the JSON configuration document described in
// spec.md §6 and derives the fixed per-frame symbol schedule from it.
//
// The teacher parses its own `direwolf.conf` with a large hand-rolled
// line-oriented parser (src/config.go) but uses gopkg.in/yaml.v3 for a
// structured on-disk database elsewhere (src/deviceid.go). Since YAML 1.2
// is a JSON superset, this package decodes the spec's JSON document with
// yaml.v3 rather than hand-rolling a grammar or reaching for the stdlib
// encoding/json — it is the library the teacher already trusts for
// structured configuration, pointed at the document shape the spec
// requires.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Symbol identifies the role of one OFDM symbol within a frame's fixed
// schedule, per the frame_schedule characters in spec.md §6.
type Symbol byte

const (
	SymPilot       Symbol = 'P'
	SymUplinkData  Symbol = 'U'
	SymDownlinkCtl Symbol = 'C'
	SymDownlinkData Symbol = 'D'
	SymCalibration Symbol = 'L'
	SymGuard       Symbol = 'G'
)

func (s Symbol) String() string { return string(rune(s)) }

// Valid reports whether s is one of the recognized schedule characters.
func (s Symbol) Valid() bool {
	switch s {
	case SymPilot, SymUplinkData, SymDownlinkCtl, SymDownlinkData, SymCalibration, SymGuard:
		return true
	default:
		return false
	}
}

// Config is the fully parsed, read-only configuration for one base
// station instance. Per the spec's design note on the "singleton-like
// config object," a Config is read once at startup and then passed by
// reference into every component — it is never mutated on the hot path
// and never stored as package-level state.
type Config struct {
	BSRadioNum int `yaml:"bs_radio_num"`
	UERadioNum int `yaml:"ue_radio_num"`
	BSAntNum   int `yaml:"bs_ant_num"`
	UEAntNum   int `yaml:"ue_ant_num"`

	FFTSize      int `yaml:"fft_size"`
	OFDMDataNum  int `yaml:"ofdm_data_num"`
	CPSize       int `yaml:"cp_size"`
	SampleRate   int `yaml:"sample_rate"`

	FrameSchedule string `yaml:"frame_schedule"`

	ULMcs int `yaml:"ul_mcs"`
	DLMcs int `yaml:"dl_mcs"`

	WorkerThreadNum int `yaml:"worker_thread_num"`
	SocketThreadNum int `yaml:"socket_thread_num"`
	CoreOffset      int `yaml:"core_offset"`

	BeamBlockSize   int `yaml:"beam_block_size"`
	DemulBlockSize  int `yaml:"demul_block_size"`
	FFTBlockSize    int `yaml:"fft_block_size"`
	EncodeBlockSize int `yaml:"encode_block_size"`

	FramesToTest int `yaml:"frames_to_test"`

	// WindowDepth is W, the frame-window depth (spec.md §3). Typically
	// 4 or 8; zero means "use the default of 4."
	WindowDepth int `yaml:"window_depth"`

	// MacEnabled toggles whether decoded UL payloads are handed to a MAC
	// collaborator (spec.md §4.1's "ToMac (if MAC enabled)").
	MacEnabled bool `yaml:"mac_enabled"`

	// HardDemod skips the Decode stage entirely (spec.md §4.1's
	// "Decode ... skipped if hard-demod mode").
	HardDemod bool `yaml:"hard_demod"`

	// TxDataDumpPath / DecodeDataDumpPath, when non-empty, enable the
	// persisted raw dumps described in spec.md §6.
	TxDataDumpPath     string `yaml:"tx_data_dump_path"`
	DecodeDataDumpPath string `yaml:"decode_data_dump_path"`
}

// Load reads and parses the configuration document at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a JSON (or YAML — the two are compatible here) document
// into a Config and fills in defaults, then validates it.
func Parse(data []byte) (*Config, error) {
	c := &Config{
		WindowDepth: 4,
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if c.WindowDepth == 0 {
		c.WindowDepth = 4
	}
	if c.WorkerThreadNum == 0 {
		c.WorkerThreadNum = 1
	}
	if c.BeamBlockSize == 0 {
		c.BeamBlockSize = c.OFDMDataNum
	}
	if c.DemulBlockSize == 0 {
		c.DemulBlockSize = c.OFDMDataNum
	}
	if c.FFTBlockSize == 0 {
		c.FFTBlockSize = c.BSAntNum
	}
	if c.EncodeBlockSize == 0 {
		c.EncodeBlockSize = 1
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate enforces the invariants the scheduler and counters depend on.
// A fatal configuration error (spec.md §6 exit codes) should come from
// here, not from a later nil-pointer panic deep in the scheduler.
func (c *Config) Validate() error {
	if c.WindowDepth <= 0 {
		return fmt.Errorf("config: window_depth must be positive, got %d", c.WindowDepth)
	}
	if c.BSAntNum <= 0 {
		return fmt.Errorf("config: bs_ant_num must be positive, got %d", c.BSAntNum)
	}
	if c.FrameSchedule == "" {
		return fmt.Errorf("config: frame_schedule must not be empty")
	}
	for i, r := range c.FrameSchedule {
		if !Symbol(r).Valid() {
			return fmt.Errorf("config: frame_schedule[%d] = %q is not a recognized symbol type", i, r)
		}
	}
	if c.FFTBlockSize <= 0 {
		return fmt.Errorf("config: fft_block_size must be positive, got %d", c.FFTBlockSize)
	}
	if c.DemulBlockSize <= 0 {
		return fmt.Errorf("config: demul_block_size must be positive, got %d", c.DemulBlockSize)
	}
	if c.EncodeBlockSize <= 0 {
		return fmt.Errorf("config: encode_block_size must be positive, got %d", c.EncodeBlockSize)
	}
	return nil
}

// Schedule returns the parsed per-slot symbol sequence.
func (c *Config) Schedule() []Symbol {
	out := make([]Symbol, len(c.FrameSchedule))
	for i, r := range c.FrameSchedule {
		out[i] = Symbol(r)
	}
	return out
}

// PilotSymbols, UplinkSymbols and DownlinkDataSymbols return the symbol
// indices (position within Schedule) of each kind, in ascending order.
// The scheduler uses these to know which symbol indices participate in
// each branch of the dependency graph (spec.md §4.1).
func (c *Config) PilotSymbols() []int       { return c.symbolsOf(SymPilot) }
func (c *Config) UplinkSymbols() []int      { return c.symbolsOf(SymUplinkData) }
func (c *Config) DownlinkDataSymbols() []int { return c.symbolsOf(SymDownlinkData) }
func (c *Config) CalibrationSymbols() []int { return c.symbolsOf(SymCalibration) }

func (c *Config) symbolsOf(want Symbol) []int {
	var idxs []int
	for i, r := range c.FrameSchedule {
		if Symbol(r) == want {
			idxs = append(idxs, i)
		}
	}
	return idxs
}

// HasUplink and HasDownlink report whether the frame schedule contains any
// symbols of that direction. Per spec.md §4.1, "either flag is
// pre-asserted when that direction has zero symbols."
func (c *Config) HasUplink() bool      { return len(c.UplinkSymbols()) > 0 }
func (c *Config) HasDownlink() bool    { return len(c.DownlinkDataSymbols()) > 0 }
func (c *Config) HasCalibration() bool { return len(c.CalibrationSymbols()) > 0 }
