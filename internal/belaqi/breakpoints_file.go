package belaqi

import (
	"fmt"
	"io"
	"os"

	"github.com/naoina/toml"
)

// A breakpoint file overrides or extends a table:
//
//	[[table]]
//	pollutant = "bc"
//	period = "hourly"
//	lower = [0.0, 1.0, 2.0, 3.0]
//	classes = [1, 4, 7, 10]
//
// Lower edges are floats; each band ends where the next starts and the last is unbounded.
type breakpointFile struct {
	Table []breakpointFileEntry `toml:"table"`
}

type breakpointFileEntry struct {
	Pollutant string    `toml:"pollutant"`
	Period    string    `toml:"period"`
	Lower     []float64 `toml:"lower"`
	Classes   []int     `toml:"classes"`
}

// LoadTable decodes a breakpoint file and applies it on top of a copy of base.
// A nil base starts from an empty table.
func LoadTable(r io.Reader, base *Table) (*Table, error) {
	var f breakpointFile
	if err := toml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode breakpoint file: %w", err)
	}

	t := NewTable()
	if base != nil {
		t = base.Clone()
	}
	for i, e := range f.Table {
		p, err := ParsePollutant(e.Pollutant)
		if err != nil {
			return nil, fmt.Errorf("table entry %d: %w", i, err)
		}
		period, err := ParsePeriod(e.Period)
		if err != nil {
			return nil, fmt.Errorf("table entry %d: %w", i, err)
		}
		classes := make([]IndexClass, len(e.Classes))
		for j, c := range e.Classes {
			classes[j] = IndexClass(c)
		}
		bps, err := FromLowerBounds(e.Lower, classes)
		if err != nil {
			return nil, fmt.Errorf("table entry %d (%s/%s): %w", i, p, period, err)
		}
		if err := t.Register(p, period, bps); err != nil {
			return nil, fmt.Errorf("table entry %d: %w", i, err)
		}
	}
	return t, nil
}

// LoadTableFile reads a breakpoint file from disk. See LoadTable.
func LoadTableFile(path string, base *Table) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadTable(f, base)
}
