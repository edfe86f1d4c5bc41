package store

import (
	"errors"
	"sync"
	"time"

	"github.com/DumoulinR/aq-mobile-be/internal/belaqi"
)

var (
	// ErrNotFound is returned when no timeline is available for a given location.
	ErrNotFound = errors.New("no index timeline for location")
)

// TimelineHistory holds the timelines of a location, oldest first.
type TimelineHistory struct {
	Timelines []belaqi.Timeline
}

// MemoryStore is a concurrency-safe in-memory store of computed timelines.
type MemoryStore struct {
	mu sync.RWMutex

	// key: location key, value: history
	data map[string]*TimelineHistory

	// coordinate key of a labelled location -> its label key
	aliases map[string]string

	// retention configuration
	maxHistory int           // max number of timelines per location
	maxAge     time.Duration // optional max age for timelines

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*TimelineHistory),
		aliases:    make(map[string]string),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// SaveTimeline appends a timeline for a location and enforces retention.
// A labelled location with coordinates can later be read back by either.
func (s *MemoryStore) SaveTimeline(loc belaqi.Location, timeline belaqi.Timeline) {
	keys := loc.Keys()
	key := keys[0]

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, alias := range keys[1:] {
		s.aliases[alias] = key
	}

	history, ok := s.data[key]
	if !ok {
		history = &TimelineHistory{}
		s.data[key] = history
	}

	history.Timelines = append(history.Timelines, timeline)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.Timelines) > s.maxHistory {
		over := len(history.Timelines) - s.maxHistory
		history.Timelines = history.Timelines[over:]
	}

	// Enforce retention by age; the newest timeline is always kept.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.Timelines)-1; i++ {
			if !history.Timelines[i].ComputedAt.Before(cutoff) {
				break
			}
		}
		history.Timelines = history.Timelines[i:]
	}
}

// GetLatest returns the most recent timeline for a location.
func (s *MemoryStore) GetLatest(loc belaqi.Location) (belaqi.Timeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.lookup(loc)
	if !ok || len(history.Timelines) == 0 {
		return belaqi.Timeline{}, ErrNotFound
	}
	return history.Timelines[len(history.Timelines)-1], nil
}

// GetRange returns all timelines for a location computed between from and to (inclusive).
func (s *MemoryStore) GetRange(loc belaqi.Location, from, to time.Time) ([]belaqi.Timeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.lookup(loc)
	if !ok || len(history.Timelines) == 0 {
		return nil, ErrNotFound
	}

	var result []belaqi.Timeline
	for _, tl := range history.Timelines {
		if !tl.ComputedAt.Before(from) && !tl.ComputedAt.After(to) {
			result = append(result, tl)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}

// lookup finds the history of loc by its own keys, then by alias.
// Callers hold s.mu.
func (s *MemoryStore) lookup(loc belaqi.Location) (*TimelineHistory, bool) {
	keys := loc.Keys()
	for _, k := range keys {
		if h, ok := s.data[k]; ok {
			return h, true
		}
	}
	for _, k := range keys {
		if primary, ok := s.aliases[k]; ok {
			h, found := s.data[primary]
			return h, found
		}
	}
	return nil, false
}
