package belaqi

import (
	"fmt"
	"time"
)

// BucketKind is the granularity of a time bucket.
type BucketKind string

const (
	BucketHour BucketKind = "hour"
	BucketDay  BucketKind = "day"
	BucketYear BucketKind = "year"
)

// Labels used by ForecastTimeline.
const (
	LabelCurrent  = "current"
	LabelToday    = "today"
	LabelTomorrow = "tomorrow"
)

// TimeBucket is a discrete interval for which one index is computed.
// Start carries the time zone the bucket is aligned to.
type TimeBucket struct {
	Kind  BucketKind `json:"kind" validate:"required,oneof=hour day year"`
	Start time.Time  `json:"start" validate:"required"`
	Label string     `json:"label,omitempty"`
}

// End returns the exclusive end of the bucket.
func (b TimeBucket) End() time.Time {
	switch b.Kind {
	case BucketHour:
		return b.Start.Add(time.Hour)
	case BucketDay:
		return b.Start.AddDate(0, 0, 1)
	case BucketYear:
		return b.Start.AddDate(1, 0, 0)
	}
	return b.Start
}

// Contains reports whether Start <= t < End.
func (b TimeBucket) Contains(t time.Time) bool {
	return !t.Before(b.Start) && t.Before(b.End())
}

func (b TimeBucket) String() string {
	switch b.Kind {
	case BucketHour:
		return b.Start.Format("2006-01-02T15:04Z07:00")
	case BucketDay:
		return b.Start.Format("2006-01-02")
	case BucketYear:
		return b.Start.Format("2006")
	}
	return fmt.Sprintf("%s@%s", b.Kind, b.Start.Format(time.RFC3339))
}

// HourBucket returns the hour bucket containing t, aligned in t's zone.
func HourBucket(t time.Time) TimeBucket {
	return TimeBucket{
		Kind:  BucketHour,
		Start: time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location()),
	}
}

// DayBucket returns the calendar day containing t in t's zone.
func DayBucket(t time.Time) TimeBucket {
	return TimeBucket{
		Kind:  BucketDay,
		Start: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()),
	}
}

// YearBucket returns the calendar year containing t in t's zone.
func YearBucket(t time.Time) TimeBucket {
	return TimeBucket{
		Kind:  BucketYear,
		Start: time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location()),
	}
}

// ForecastTimeline returns the current hour followed by today and the next
// days: current, today, tomorrow, today+2, ... today+days.
func ForecastTimeline(now time.Time, days int) []TimeBucket {
	if days < 0 {
		days = 0
	}
	current := HourBucket(now)
	current.Label = LabelCurrent

	buckets := make([]TimeBucket, 0, days+2)
	buckets = append(buckets, current)

	today := DayBucket(now)
	for i := 0; i <= days; i++ {
		day := DayBucket(today.Start.AddDate(0, 0, i))
		switch i {
		case 0:
			day.Label = LabelToday
		case 1:
			day.Label = LabelTomorrow
		default:
			day.Label = fmt.Sprintf("%s+%d", LabelToday, i)
		}
		buckets = append(buckets, day)
	}
	return buckets
}
