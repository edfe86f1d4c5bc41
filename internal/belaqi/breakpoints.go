package belaqi

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Breakpoint is one band of a table: concentrations in [Lower, Upper) map to Class.
// The last band of a table has Upper = +Inf and also includes its upper edge.
type Breakpoint struct {
	Lower float64    `json:"lower"`
	Upper float64    `json:"upper"`
	Class IndexClass `json:"class"`
}

// Unbounded reports whether the band is the open-ended top band.
func (b Breakpoint) Unbounded() bool {
	return math.IsInf(b.Upper, 1)
}

type breakpointWire struct {
	Lower float64    `json:"lower"`
	Upper *float64   `json:"upper"` // null for the unbounded top band
	Class IndexClass `json:"class"`
}

// MarshalJSON encodes the unbounded upper edge as null.
func (b Breakpoint) MarshalJSON() ([]byte, error) {
	w := breakpointWire{Lower: b.Lower, Class: b.Class}
	if !b.Unbounded() {
		u := b.Upper
		w.Upper = &u
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a null upper edge as +Inf.
func (b *Breakpoint) UnmarshalJSON(data []byte) error {
	var w breakpointWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	b.Lower, b.Class, b.Upper = w.Lower, w.Class, math.Inf(1)
	if w.Upper != nil {
		b.Upper = *w.Upper
	}
	return nil
}

// Combination is a pollutant/period pair that has a table.
type Combination struct {
	Pollutant Pollutant `json:"pollutant"`
	Period    Period    `json:"period"`
}

// Table holds the breakpoint sequences per pollutant and averaging period.
// Register everything before sharing a Table; lookups are then safe for concurrent use.
type Table struct {
	bands map[Combination][]Breakpoint
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{bands: make(map[Combination][]Breakpoint)}
}

// Register validates bps and stores a copy for the pair, replacing any existing sequence.
func (t *Table) Register(p Pollutant, period Period, bps []Breakpoint) error {
	if err := validateBands(bps); err != nil {
		return fmt.Errorf("%s/%s: %w", p, period, err)
	}
	cp := make([]Breakpoint, len(bps))
	copy(cp, bps)
	t.bands[Combination{p, period}] = cp
	return nil
}

// Lookup returns the ordered breakpoints for the pair.
func (t *Table) Lookup(p Pollutant, period Period) ([]Breakpoint, error) {
	bps, ok := t.bands[Combination{p, period}]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnsupportedCombination, p, period)
	}
	cp := make([]Breakpoint, len(bps))
	copy(cp, bps)
	return cp, nil
}

// Supports reports whether the pair has a table.
func (t *Table) Supports(p Pollutant, period Period) bool {
	_, ok := t.bands[Combination{p, period}]
	return ok
}

// Combinations lists the registered pairs in canonical pollutant order, then by period.
func (t *Table) Combinations() []Combination {
	out := make([]Combination, 0, len(t.bands))
	for c := range t.bands {
		out = append(out, c)
	}
	rank := make(map[Pollutant]int, len(Pollutants))
	for i, p := range Pollutants {
		rank[p] = i
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pollutant != out[j].Pollutant {
			return rank[out[i].Pollutant] < rank[out[j].Pollutant]
		}
		return out[i].Period < out[j].Period
	})
	return out
}

// Clone returns an independent copy of the table.
func (t *Table) Clone() *Table {
	c := NewTable()
	for k, v := range t.bands {
		cp := make([]Breakpoint, len(v))
		copy(cp, v)
		c.bands[k] = cp
	}
	return c
}

// FromLowerBounds builds a contiguous band sequence from ascending lower edges.
// Each band ends where the next one starts; the last one is unbounded.
func FromLowerBounds(lowers []float64, classes []IndexClass) ([]Breakpoint, error) {
	if len(lowers) != len(classes) {
		return nil, fmt.Errorf("%w: %d lower bounds for %d classes", ErrInvalidTable, len(lowers), len(classes))
	}
	bps := make([]Breakpoint, len(lowers))
	for i := range lowers {
		upper := math.Inf(1)
		if i+1 < len(lowers) {
			upper = lowers[i+1]
		}
		bps[i] = Breakpoint{Lower: lowers[i], Upper: upper, Class: classes[i]}
	}
	return bps, validateBands(bps)
}

func validateBands(bps []Breakpoint) error {
	if len(bps) == 0 {
		return fmt.Errorf("%w: no breakpoints", ErrInvalidTable)
	}
	if bps[0].Lower != 0 {
		return fmt.Errorf("%w: first band starts at %g, not 0", ErrInvalidTable, bps[0].Lower)
	}
	for i, b := range bps {
		if !b.Class.Valid() {
			return fmt.Errorf("%w: band %d has class %d", ErrInvalidTable, i, b.Class)
		}
		if !(b.Lower < b.Upper) {
			return fmt.Errorf("%w: band %d is empty [%g, %g)", ErrInvalidTable, i, b.Lower, b.Upper)
		}
		if i == 0 {
			continue
		}
		prev := bps[i-1]
		if b.Lower != prev.Upper {
			return fmt.Errorf("%w: band %d starts at %g but band %d ends at %g", ErrInvalidTable, i, b.Lower, i-1, prev.Upper)
		}
		if b.Class < prev.Class {
			return fmt.Errorf("%w: class decreases at band %d", ErrInvalidTable, i)
		}
	}
	if !bps[len(bps)-1].Unbounded() {
		return fmt.Errorf("%w: last band is bounded at %g", ErrInvalidTable, bps[len(bps)-1].Upper)
	}
	return nil
}

var oneToTen = []IndexClass{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

// BelAQI lower edges in µg/m³, IRCEL-CELINE scale. Published bands are integer
// ranges ("11-20"), so each class starts at the first value of its range.
var (
	no2Lowers  = []float64{0, 21, 51, 91, 121, 151, 181, 201, 251, 301}
	o3Lowers   = []float64{0, 31, 61, 71, 121, 161, 181, 241, 281, 321}
	pm10Lowers = []float64{0, 11, 21, 31, 41, 51, 61, 71, 81, 101}
	pm25Lowers = []float64{0, 6, 11, 16, 26, 36, 41, 51, 61, 71}
)

var defaultTable = buildDefaultTable()

func buildDefaultTable() *Table {
	t := NewTable()
	mustRegister := func(p Pollutant, period Period, lowers []float64) {
		bps, err := FromLowerBounds(lowers, oneToTen)
		if err == nil {
			err = t.Register(p, period, bps)
		}
		if err != nil {
			panic(err)
		}
	}
	mustRegister(NO2, Hourly, no2Lowers)
	mustRegister(O3, Hourly, o3Lowers)
	mustRegister(PM10, Daily, pm10Lowers)
	mustRegister(PM10, Hourly, pm10Lowers)
	mustRegister(PM25, Daily, pm25Lowers)
	mustRegister(PM25, Hourly, pm25Lowers)
	return t
}

// DefaultTable returns a copy of the built-in BelAQI table.
func DefaultTable() *Table {
	return defaultTable.Clone()
}

// Lookup returns the built-in breakpoints for the pair.
func Lookup(p Pollutant, period Period) ([]Breakpoint, error) {
	return defaultTable.Lookup(p, period)
}
