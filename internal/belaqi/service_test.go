package belaqi

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeStore struct {
	mu    sync.Mutex
	saved []Timeline
}

func (s *fakeStore) SaveTimeline(_ Location, tl Timeline) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, tl)
}

func (s *fakeStore) GetLatest(Location) (Timeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saved) == 0 {
		return Timeline{}, errors.New("none")
	}
	return s.saved[len(s.saved)-1], nil
}

func (s *fakeStore) GetRange(_ Location, from, to time.Time) ([]Timeline, error) {
	return nil, nil
}

type fakeSource struct {
	name string
	kind BucketKind
	ms   func(b TimeBucket) []Measurement
	err  error
}

func (s fakeSource) Name() string { return s.name }

func (s fakeSource) Fetch(_ context.Context, _ Location, buckets []TimeBucket) ([]Measurement, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []Measurement
	for _, b := range buckets {
		if b.Kind == s.kind {
			out = append(out, s.ms(b)...)
		}
	}
	return out, nil
}

var fixedNow = time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)

func observed(b TimeBucket) []Measurement {
	return []Measurement{
		{Pollutant: NO2, Period: Hourly, Timestamp: b.Start, Concentration: f(55)}, // class 3
		{Pollutant: PM10, Period: Daily, Timestamp: b.Start, Concentration: nil},
	}
}

func forecast(b TimeBucket) []Measurement {
	return []Measurement{
		{Pollutant: O3, Period: Hourly, Timestamp: b.Start.Add(13 * time.Hour), Concentration: f(165)}, // class 6
	}
}

func newTestService(store Store, sources ...Source) *Service {
	return NewService(store, sources, nil, ServiceOptions{
		ForecastDays: 2,
		Now:          func() time.Time { return fixedNow },
	})
}

func TestService_Refresh(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store,
		fakeSource{name: "observed", kind: BucketHour, ms: observed},
		fakeSource{name: "forecast", kind: BucketDay, ms: forecast},
	)
	loc := Location{Label: "brussels", Lat: 50.85, Lon: 4.35}

	tl, err := svc.Refresh(context.Background(), loc)
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if tl.RunID == "" || !tl.ComputedAt.Equal(fixedNow) || tl.Location != loc {
		t.Errorf("unexpected timeline header %+v", tl)
	}
	if len(tl.Results) != 4 {
		t.Fatalf("expected current + 3 days, got %d results", len(tl.Results))
	}

	// current: NO2 3; today: NO2 3 and O3 6; later days: O3 6.
	want := []IndexClass{3, 6, 6, 6}
	for i, r := range tl.Results {
		if r.Overall != want[i] {
			t.Errorf("%s: overall = %v, want %v", r.Bucket.Label, r.Overall, want[i])
		}
	}

	if len(tl.Sources) != 2 || tl.Sources[0].Name != "forecast" || tl.Sources[1].Name != "observed" {
		t.Errorf("unexpected sources %+v", tl.Sources)
	}
	if len(store.saved) != 1 {
		t.Errorf("expected one saved timeline, got %d", len(store.saved))
	}
}

func TestService_RefreshPartialFailure(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store,
		fakeSource{name: "observed", kind: BucketHour, ms: observed},
		fakeSource{name: "forecast", err: errors.New("timeout")},
	)

	tl, err := svc.Refresh(context.Background(), Location{Label: "gent"})
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	for _, r := range tl.Results[2:] {
		if r.Overall != Missing {
			t.Errorf("%s: expected Missing without forecast, got %v", r.Bucket.Label, r.Overall)
		}
	}
	if tl.Sources[0].Error != "timeout" {
		t.Errorf("failed source not recorded: %+v", tl.Sources)
	}
}

func TestService_RefreshAllSourcesFail(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store,
		fakeSource{name: "a", err: errors.New("down")},
		fakeSource{name: "b", err: errors.New("down")},
	)

	if _, err := svc.Refresh(context.Background(), Location{Label: "liege"}); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if len(store.saved) != 0 {
		t.Error("nothing should be stored when every source fails")
	}
}

func TestService_RefreshNoSources(t *testing.T) {
	svc := newTestService(&fakeStore{})
	if _, err := svc.Refresh(context.Background(), Location{Label: "x"}); !errors.Is(err, ErrNoSources) {
		t.Fatalf("expected ErrNoSources, got %v", err)
	}
}

func TestService_RefreshInvalidData(t *testing.T) {
	bad := func(b TimeBucket) []Measurement {
		return []Measurement{{Pollutant: NO2, Period: Hourly, Timestamp: b.Start, Concentration: f(-4)}}
	}
	store := &fakeStore{}
	svc := newTestService(store, fakeSource{name: "bad", kind: BucketHour, ms: bad})

	if _, err := svc.Refresh(context.Background(), Location{Label: "x"}); !errors.Is(err, ErrInvalidConcentration) {
		t.Fatalf("expected ErrInvalidConcentration, got %v", err)
	}
	if len(store.saved) != 0 {
		t.Error("invalid data should not be stored")
	}
}

// The current hour lies inside today, so an observation above the forecast
// raises today's index too.
func TestService_TodayIncludesObservedHour(t *testing.T) {
	observedHigh := func(b TimeBucket) []Measurement {
		return []Measurement{{Pollutant: NO2, Period: Hourly, Timestamp: b.Start, Concentration: f(160)}} // class 6
	}
	forecastLow := func(b TimeBucket) []Measurement {
		return []Measurement{{Pollutant: NO2, Period: Hourly, Timestamp: b.Start.Add(13 * time.Hour), Concentration: f(30)}} // class 2
	}
	svc := newTestService(&fakeStore{},
		fakeSource{name: "observed", kind: BucketHour, ms: observedHigh},
		fakeSource{name: "forecast", kind: BucketDay, ms: forecastLow},
	)

	tl, err := svc.Refresh(context.Background(), Location{Label: "antwerp"})
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	want := []IndexClass{6, 6, 2, 2}
	for i, r := range tl.Results {
		if r.Overall != want[i] {
			t.Errorf("%s: overall = %v, want %v", r.Bucket.Label, r.Overall, want[i])
		}
	}
	if got := tl.Results[1].Concentrations[NO2]; got != 160 {
		t.Errorf("today NO2 concentration = %v, want the observed 160", got)
	}
}
