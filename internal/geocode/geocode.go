// Package geocode turns configured addresses into coordinates.
package geocode

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/DumoulinR/aq-mobile-be/internal/belaqi"
)

var (
	ErrNoAPIKey      = errors.New("geocoder api key not configured")
	ErrEmptyAddress  = errors.New("address has no city")
	ErrNoCoordinates = errors.New("geocoder returned no coordinates")
)

// Address is a city/country pair as configured.
type Address struct {
	City    string
	Country string
}

func (a Address) String() string {
	if a.Country == "" {
		return a.City
	}
	return a.City + ", " + a.Country
}

// LookupFunc resolves an address with the Google geocoding API.
type LookupFunc func(geocoder.Address) (geocoder.Location, error)

// Resolver resolves and caches addresses.
type Resolver struct {
	lookup LookupFunc

	mu    sync.Mutex
	cache map[Address]belaqi.Location
}

// NewResolver creates a Resolver backed by github.com/kelvins/geocoder.
// The key is process-wide; the geocoder package keeps it in a global.
func NewResolver(apiKey string) (*Resolver, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	geocoder.ApiKey = apiKey
	return NewResolverWithLookup(geocoder.Geocoding), nil
}

// NewResolverWithLookup creates a Resolver around an arbitrary lookup.
func NewResolverWithLookup(lookup LookupFunc) *Resolver {
	return &Resolver{
		lookup: lookup,
		cache:  make(map[Address]belaqi.Location),
	}
}

// Resolve returns the location of addr, labelled with the lower-cased city name.
func (r *Resolver) Resolve(addr Address) (belaqi.Location, error) {
	if strings.TrimSpace(addr.City) == "" {
		return belaqi.Location{}, ErrEmptyAddress
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if loc, ok := r.cache[addr]; ok {
		return loc, nil
	}

	res, err := r.lookup(geocoder.Address{City: addr.City, Country: addr.Country})
	if err != nil {
		return belaqi.Location{}, fmt.Errorf("geocode %s: %w", addr, err)
	}
	if res.Latitude == 0 && res.Longitude == 0 {
		return belaqi.Location{}, fmt.Errorf("geocode %s: %w", addr, ErrNoCoordinates)
	}

	loc := belaqi.Location{
		Label: strings.ToLower(strings.TrimSpace(addr.City)),
		Lat:   res.Latitude,
		Lon:   res.Longitude,
	}
	r.cache[addr] = loc
	return loc, nil
}

// ResolveAll resolves every address, stopping at the first failure.
func (r *Resolver) ResolveAll(addrs []Address) ([]belaqi.Location, error) {
	locs := make([]belaqi.Location, 0, len(addrs))
	for _, a := range addrs {
		loc, err := r.Resolve(a)
		if err != nil {
			return nil, err
		}
		locs = append(locs, loc)
	}
	return locs, nil
}
