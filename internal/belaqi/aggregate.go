package belaqi

import (
	"fmt"
	"math"
)

// Aggregate combines per-pollutant classes into the overall index.
// The worst (highest) present class governs; Missing entries are ignored.
// An empty mapping, or one with only Missing entries, yields Missing.
func Aggregate(classes map[Pollutant]IndexClass) IndexClass {
	overall := Missing
	for _, c := range classes {
		if c.Valid() && c > overall {
			overall = c
		}
	}
	return overall
}

// Governing returns the pollutants holding the overall class, in canonical order.
func Governing(classes map[Pollutant]IndexClass) []Pollutant {
	overall := Aggregate(classes)
	if !overall.Valid() {
		return nil
	}
	var out []Pollutant
	for _, p := range Pollutants {
		if classes[p] == overall {
			out = append(out, p)
		}
	}
	return out
}

// Policy names, per bucket kind, the averaging period each pollutant is
// classified with. Pollutants absent from a kind do not take part in it.
type Policy map[BucketKind]map[Pollutant]Period

// DefaultPolicy follows the BelAQI definition: hourly maxima for NO2 and O3,
// 24-hour means for particulate matter. BC does not enter hour or day buckets.
// It has no year row because the built-in table has no annual bands; see PolicyFor.
var DefaultPolicy = Policy{
	BucketHour: {NO2: Hourly, O3: Hourly, PM10: Daily, PM25: Daily},
	BucketDay:  {NO2: Hourly, O3: Hourly, PM10: Daily, PM25: Daily},
}

// AnnualPeriods is the year row a policy gets for pollutants with annual bands.
var AnnualPeriods = map[Pollutant]Period{NO2: Annual, PM10: Annual, PM25: Annual, BC: Annual}

// PolicyFor returns DefaultPolicy plus a year row holding the AnnualPeriods
// pairs t supports. Without annual bands, year buckets come out Missing.
func PolicyFor(t *Table) Policy {
	p := make(Policy, len(DefaultPolicy)+1)
	for kind, row := range DefaultPolicy {
		p[kind] = row
	}
	year := make(map[Pollutant]Period)
	for pollutant, period := range AnnualPeriods {
		if t.Supports(pollutant, period) {
			year[pollutant] = period
		}
	}
	if len(year) > 0 {
		p[BucketYear] = year
	}
	return p
}

// Aggregator builds index timelines from a breakpoint table and a policy.
// It holds no mutable state and is safe for concurrent use.
type Aggregator struct {
	table  *Table
	policy Policy
}

// NewAggregator creates an Aggregator. A nil table selects the built-in one,
// a nil policy selects PolicyFor(table).
func NewAggregator(table *Table, policy Policy) *Aggregator {
	if table == nil {
		table = defaultTable
	}
	if policy == nil {
		policy = PolicyFor(table)
	}
	return &Aggregator{table: table, policy: policy}
}

// Table returns the breakpoint table used by the aggregator.
func (a *Aggregator) Table() *Table {
	return a.table
}

// BuildTimeline computes one IndexResult per bucket, in bucket order.
//
// A measurement counts for a bucket when the bucket contains its timestamp and
// its period is the one the policy names for its pollutant and the bucket kind.
// Several measurements of one pollutant in a bucket resolve to the highest class.
// The output does not depend on the order of measurements.
func (a *Aggregator) BuildTimeline(measurements []Measurement, buckets []TimeBucket) ([]IndexResult, error) {
	if len(buckets) == 0 {
		return nil, ErrEmptyBucketList
	}

	results := make([]IndexResult, len(buckets))
	for i, b := range buckets {
		r, err := a.aggregateBucket(measurements, b)
		if err != nil {
			return nil, fmt.Errorf("bucket %s: %w", b, err)
		}
		results[i] = r
	}
	return results, nil
}

func (a *Aggregator) aggregateBucket(measurements []Measurement, b TimeBucket) (IndexResult, error) {
	periods := a.policy[b.Kind]

	classes := make(map[Pollutant]IndexClass, len(periods))
	for p := range periods {
		classes[p] = Missing
	}
	concentrations := make(map[Pollutant]float64)

	for _, m := range measurements {
		period, ok := periods[m.Pollutant]
		if !ok || period != m.Period || !b.Contains(m.Timestamp) {
			continue
		}
		c, err := a.table.Categorize(m.Pollutant, m.Period, m.Concentration)
		if err != nil {
			return IndexResult{}, err
		}
		if !c.Valid() {
			continue
		}
		if c > classes[m.Pollutant] {
			classes[m.Pollutant] = c
		}
		v := *m.Concentration
		if math.IsInf(v, 1) {
			// +Inf has no JSON encoding
			continue
		}
		if prev, seen := concentrations[m.Pollutant]; !seen || v > prev {
			concentrations[m.Pollutant] = v
		}
	}

	res := IndexResult{
		Bucket:     b,
		Pollutants: classes,
		Overall:    Aggregate(classes),
		Governing:  Governing(classes),
	}
	if len(concentrations) > 0 {
		res.Concentrations = concentrations
	}
	return res, nil
}

// BuildTimeline builds a timeline with the built-in table and DefaultPolicy.
// Year buckets come out Missing since that table has no annual bands.
func BuildTimeline(measurements []Measurement, buckets []TimeBucket) ([]IndexResult, error) {
	return NewAggregator(nil, nil).BuildTimeline(measurements, buckets)
}
