package belaqi

import "errors"

var (
	// ErrInvalidConcentration is returned for negative concentrations. They are never clamped.
	ErrInvalidConcentration = errors.New("invalid concentration")

	// ErrUnsupportedCombination is returned when no breakpoint table exists for a pollutant/period pair.
	ErrUnsupportedCombination = errors.New("unsupported pollutant/period combination")

	// ErrEmptyBucketList is returned when a timeline is requested without buckets.
	ErrEmptyBucketList = errors.New("empty bucket list")

	// ErrInvalidTable is returned when a breakpoint sequence breaks the table invariants.
	ErrInvalidTable = errors.New("invalid breakpoint table")

	// ErrNoSources is returned when a refresh is requested without any measurement source.
	ErrNoSources = errors.New("no measurement sources configured")

	// ErrNoData is returned when every source failed during a refresh.
	ErrNoData = errors.New("no source delivered data")
)
