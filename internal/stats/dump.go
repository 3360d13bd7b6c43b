package stats

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lestrrat-go/strftime"

	"github.com/k9ran/phycore/internal/rflog"
	"github.com/k9ran/phycore/internal/wire"
)

// dailyDumpPattern names one dump file per UTC day, the same daily-file
// strategy the teacher's log.go uses for its receive log ("2006-01-02.log"),
// expressed as a strftime pattern since lestrrat-go/strftime is already the
// library this tree depends on for that kind of formatting.
const dailyDumpPattern = "%Y-%m-%d.bin"

// DumpWriter appends wire.Packet-framed records to a daily file under dir,
// opened for append the same way the teacher's log_term/open dance does
// (os.OpenFile with O_RDWR|O_APPEND|O_CREATE), closing and reopening a new
// file when the UTC date rolls over. It is the persisted-raw-dump half of
// this package (tx_data.bin / decode_data.bin, spec.md §6), alongside the
// periodic CSV snapshot Writer.
type DumpWriter struct {
	dir  string
	log  *rflog.Logger
	mu   sync.Mutex
	fp   *os.File
	name string
}

// NewDumpWriter returns nil if dir is empty, matching Config's
// "non-empty enables the dump" convention (spec.md §6).
func NewDumpWriter(dir string, log *rflog.Logger) (*DumpWriter, error) {
	if dir == "" {
		return nil, nil
	}
	if _, err := strftime.Format(dailyDumpPattern, time.Unix(0, 0)); err != nil {
		return nil, fmt.Errorf("stats: invalid dump pattern %q: %w", dailyDumpPattern, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("stats: create dump directory %q: %w", dir, err)
	}
	return &DumpWriter{dir: dir, log: log}, nil
}

func (d *DumpWriter) open(now time.Time) error {
	name, err := strftime.Format(dailyDumpPattern, now.UTC())
	if err != nil {
		return fmt.Errorf("stats: format dump name: %w", err)
	}
	if d.fp != nil && name == d.name {
		return nil
	}
	if d.fp != nil {
		d.fp.Close()
		d.fp = nil
	}
	full := filepath.Join(d.dir, name)
	f, err := os.OpenFile(full, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("stats: open dump %q: %w", full, err)
	}
	d.fp = f
	d.name = name
	if d.log != nil {
		d.log.Infof("stats: writing dump to %s", full)
	}
	return nil
}

// WritePacket appends p's wire encoding to today's file.
func (d *DumpWriter) WritePacket(p wire.Packet) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.open(time.Now()); err != nil {
		if d.log != nil {
			d.log.Errorf("%v", err)
		}
		return
	}
	if _, err := d.fp.Write(p.Marshal()); err != nil && d.log != nil {
		d.log.Errorf("stats: dump write: %v", err)
	}
}

// Close releases the current file handle, if any.
func (d *DumpWriter) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fp != nil {
		d.fp.Close()
		d.fp = nil
	}
}
