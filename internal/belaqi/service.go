package belaqi

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DumoulinR/aq-mobile-be/internal/logging"
)

// ServiceOptions tunes how a Service builds its timelines.
type ServiceOptions struct {
	// ForecastDays is the number of days after today in each timeline.
	ForecastDays int
	// Zone aligns hour and day buckets. Defaults to UTC.
	Zone *time.Location
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// Service orchestrates fetching from all sources and storing computed timelines.
type Service struct {
	store      Store
	sources    []Source
	aggregator *Aggregator
	opts       ServiceOptions
}

// NewService creates a new Service. A nil aggregator uses the built-in table and policy.
func NewService(store Store, sources []Source, aggregator *Aggregator, opts ServiceOptions) *Service {
	if aggregator == nil {
		aggregator = NewAggregator(nil, nil)
	}
	if opts.Zone == nil {
		opts.Zone = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:      store,
		sources:    sources,
		aggregator: aggregator,
		opts:       opts,
	}
}

// Aggregator returns the aggregator the service computes with.
func (s *Service) Aggregator() *Aggregator {
	return s.aggregator
}

// Refresh fetches from every source concurrently, waits for all of them, and
// builds the timeline once from the complete measurement set.
// If every source fails, the last stored timeline is kept and ErrNoData is returned.
func (s *Service) Refresh(ctx context.Context, loc Location) (Timeline, error) {
	log := logging.L()

	if len(s.sources) == 0 {
		log.Errorf("no sources available to refresh %s", loc.Key())
		return Timeline{}, ErrNoSources
	}

	now := s.opts.Now().In(s.opts.Zone)
	buckets := ForecastTimeline(now, s.opts.ForecastDays)
	runID := uuid.NewString()
	log.Debugf("refresh %s for %s: %d buckets, %d sources", runID, loc.Key(), len(buckets), len(s.sources))

	var (
		wg            sync.WaitGroup
		mu            sync.Mutex
		measurements  []Measurement
		contributions = make([]SourceContribution, 0, len(s.sources))
		succeeded     int
	)

	for _, src := range s.sources {
		src := src
		wg.Add(1)
		go func() {
			defer wg.Done()

			ms, err := src.Fetch(ctx, loc, buckets)

			mu.Lock()
			defer mu.Unlock()

			contrib := SourceContribution{Name: src.Name(), Measurements: len(ms)}
			if err != nil {
				// Log and continue; partial data still gives a timeline.
				log.Warnf("source %s fetch failed for %s: %v", src.Name(), loc.Key(), err)
				contrib.Error = err.Error()
			} else {
				succeeded++
			}
			measurements = append(measurements, ms...)
			contributions = append(contributions, contrib)
		}()
	}

	wg.Wait()

	if succeeded == 0 {
		log.Errorf("no source delivered data for %s; keeping last timeline if any", loc.Key())
		return Timeline{}, fmt.Errorf("%w for %s", ErrNoData, loc.Key())
	}

	results, err := s.aggregator.BuildTimeline(measurements, buckets)
	if err != nil {
		return Timeline{}, fmt.Errorf("build timeline for %s: %w", loc.Key(), err)
	}

	sort.Slice(contributions, func(i, j int) bool { return contributions[i].Name < contributions[j].Name })

	timeline := Timeline{
		RunID:      runID,
		Location:   loc,
		ComputedAt: now.UTC(),
		Results:    results,
		Sources:    contributions,
	}
	s.store.SaveTimeline(loc, timeline)
	log.Infof("refresh %s for %s done: %d measurements", runID, loc.Key(), len(measurements))
	return timeline, nil
}

// GetLatest delegates to the underlying store.
func (s *Service) GetLatest(loc Location) (Timeline, error) {
	return s.store.GetLatest(loc)
}

// GetRange delegates to the underlying store.
func (s *Service) GetRange(loc Location, from, to time.Time) ([]Timeline, error) {
	return s.store.GetRange(loc, from, to)
}
