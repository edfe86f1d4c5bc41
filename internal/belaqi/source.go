package belaqi

import (
	"context"
	"time"
)

// Source fetches measurements for a location. A source picks the buckets it
// can serve and ignores the rest; absent values come back with a nil concentration.
type Source interface {
	Name() string
	Fetch(ctx context.Context, loc Location, buckets []TimeBucket) ([]Measurement, error)
}

// Store is the contract the in-memory store (and any future persistent store) must satisfy.
type Store interface {
	SaveTimeline(loc Location, timeline Timeline)
	GetLatest(loc Location) (Timeline, error)
	GetRange(loc Location, from, to time.Time) ([]Timeline, error)
}
