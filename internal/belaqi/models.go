package belaqi

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Pollutant identifies a tracked substance.
type Pollutant string

const (
	NO2  Pollutant = "no2"
	O3   Pollutant = "o3"
	PM10 Pollutant = "pm10"
	PM25 Pollutant = "pm25"
	BC   Pollutant = "bc"
)

// Pollutants lists every pollutant in canonical order.
var Pollutants = []Pollutant{NO2, O3, PM10, PM25, BC}

// ParsePollutant accepts the usual spellings of a pollutant name.
func ParsePollutant(s string) (Pollutant, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(".", "", "_", "", " ", "", "₂", "2", "₃", "3").Replace(norm)
	switch norm {
	case "no2":
		return NO2, nil
	case "o3":
		return O3, nil
	case "pm10":
		return PM10, nil
	case "pm25":
		return PM25, nil
	case "bc":
		return BC, nil
	}
	return "", fmt.Errorf("unknown pollutant %q", s)
}

// Period is the averaging window of a concentration.
type Period string

const (
	Hourly Period = "hourly"
	Daily  Period = "24hour"
	Annual Period = "annual"
)

// ParsePeriod accepts period names as well as map layer suffixes (hmean, 24hmean, anmean).
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hourly", "hour", "1h", "hmean", "maxhmean":
		return Hourly, nil
	case "24hour", "daily", "day", "24h", "24hmean", "dmean":
		return Daily, nil
	case "annual", "yearly", "year", "anmean":
		return Annual, nil
	}
	return "", fmt.Errorf("unknown averaging period %q", s)
}

// IndexClass is a BelAQI class from 1 (excellent) to 10 (horrible).
// The zero value is Missing and is never a numeric class.
type IndexClass int

const (
	Missing  IndexClass = 0
	MinClass IndexClass = 1
	MaxClass IndexClass = 10
)

// Valid reports whether c is a numeric class.
func (c IndexClass) Valid() bool {
	return c >= MinClass && c <= MaxClass
}

func (c IndexClass) String() string {
	if !c.Valid() {
		return "missing"
	}
	return strconv.Itoa(int(c))
}

// MarshalJSON encodes Missing as null.
func (c IndexClass) MarshalJSON() ([]byte, error) {
	if !c.Valid() {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(int(c))), nil
}

// UnmarshalJSON decodes null as Missing and rejects numbers outside 1..10.
func (c *IndexClass) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = Missing
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("index class: %w", err)
	}
	v := IndexClass(n)
	if !v.Valid() {
		return fmt.Errorf("index class %d out of range %d..%d", n, MinClass, MaxClass)
	}
	*c = v
	return nil
}

// Measurement is one concentration value delivered by a source.
// A nil Concentration means the value is absent (sensor gap, forecast unavailable).
type Measurement struct {
	Pollutant     Pollutant `json:"pollutant"`
	Period        Period    `json:"period"`
	Timestamp     time.Time `json:"timestamp"`
	Concentration *float64  `json:"concentration"`
	Source        string    `json:"source,omitempty"`
}

// Present reports whether the measurement carries a usable value.
func (m Measurement) Present() bool {
	return m.Concentration != nil && !math.IsNaN(*m.Concentration)
}

// IndexResult is the aggregated index of one bucket.
type IndexResult struct {
	Bucket         TimeBucket               `json:"bucket"`
	Pollutants     map[Pollutant]IndexClass `json:"pollutants"`
	Concentrations map[Pollutant]float64    `json:"concentrations,omitempty"`
	Overall        IndexClass               `json:"overall"`
	Governing      []Pollutant              `json:"governing,omitempty"`
}

// Location is a place for which timelines are computed.
type Location struct {
	Label string  `json:"label"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
}

// Key returns a canonical string key for indexing this location in stores.
func (l Location) Key() string {
	if l.Label != "" {
		return l.Label
	}
	return l.coordinateKey()
}

// Keys returns Key followed by the coordinate key when a labelled location
// also carries coordinates, so stores can find it either way.
func (l Location) Keys() []string {
	if l.Label == "" || (l.Lat == 0 && l.Lon == 0) {
		return []string{l.Key()}
	}
	return []string{l.Label, l.coordinateKey()}
}

func (l Location) coordinateKey() string {
	return fmt.Sprintf("%.4f,%.4f", l.Lat, l.Lon)
}

// Timeline is the result of one refresh for one location.
type Timeline struct {
	RunID      string        `json:"runId"`
	Location   Location      `json:"location"`
	ComputedAt time.Time     `json:"computedAt"` // always UTC
	Results    []IndexResult `json:"results"`

	// Sources that took part in this refresh.
	Sources []SourceContribution `json:"sources,omitempty"`
}

// SourceContribution describes what a single source delivered during a refresh.
type SourceContribution struct {
	Name         string `json:"source"`
	Measurements int    `json:"measurements"`
	Error        string `json:"error,omitempty"`
}
