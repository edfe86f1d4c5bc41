package belaqi

import (
	"fmt"
	"math"
	"sort"
)

// Categorize classifies one concentration for the pair.
//
// A nil or NaN concentration yields Missing. Negative values fail with
// ErrInvalidConcentration. A value equal to a band's lower edge belongs to that
// band, so boundaries always resolve to the higher class.
func (t *Table) Categorize(p Pollutant, period Period, c *float64) (IndexClass, error) {
	bps, ok := t.bands[Combination{p, period}]
	if !ok {
		return Missing, fmt.Errorf("%w: %s/%s", ErrUnsupportedCombination, p, period)
	}
	if c == nil || math.IsNaN(*c) {
		return Missing, nil
	}
	v := *c
	if v < 0 {
		return Missing, fmt.Errorf("%w: %s %g", ErrInvalidConcentration, p, v)
	}
	i := sort.Search(len(bps), func(i int) bool { return v < bps[i].Upper })
	if i == len(bps) {
		// +Inf lands on the unbounded top band.
		i = len(bps) - 1
	}
	return bps[i].Class, nil
}

// CategorizeValue classifies a present concentration.
func (t *Table) CategorizeValue(p Pollutant, period Period, c float64) (IndexClass, error) {
	return t.Categorize(p, period, &c)
}

// Categorize classifies one concentration with the built-in table.
func Categorize(p Pollutant, period Period, c *float64) (IndexClass, error) {
	return defaultTable.Categorize(p, period, c)
}

// CategorizeValue classifies a present concentration with the built-in table.
func CategorizeValue(p Pollutant, period Period, c float64) (IndexClass, error) {
	return defaultTable.Categorize(p, period, &c)
}
