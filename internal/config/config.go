package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"github.com/DumoulinR/aq-mobile-be/internal/belaqi"
	"github.com/DumoulinR/aq-mobile-be/internal/common"
	"github.com/DumoulinR/aq-mobile-be/internal/geocode"
	"github.com/DumoulinR/aq-mobile-be/internal/logging"
)

type AppConfig struct {
	Port string

	// FetchInterval controls how often timelines are refreshed for each location.
	FetchInterval time.Duration
	// HTTPTimeout bounds every outbound WMS request.
	HTTPTimeout time.Duration

	// In-memory store retention.
	StoreMaxHistory int           // max number of timelines per location (0 = unlimited)
	StoreMaxAge     time.Duration // max age of timelines (0 = unlimited)

	// ForecastDays is the number of days after today in each timeline.
	ForecastDays int
	// Zone aligns hour and day buckets.
	Zone *time.Location

	CurrentWMSURL  string
	ForecastWMSURL string

	// BreakpointsFile optionally overrides or extends the built-in table.
	BreakpointsFile string

	// Locations to track, plus addresses resolved at startup.
	Locations      []belaqi.Location
	Addresses      []geocode.Address
	GeocoderAPIKey string

	LogDebug bool
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		logging.L().Infof("no .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}
	var err error

	cfg.Port = getenvDefault("PORT", "8080")

	if cfg.FetchInterval, err = getenvDuration("FETCH_INTERVAL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	// Store retention.
	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 96) // roughly 24h at 15-minute intervals
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", 24*time.Hour); err != nil {
		return nil, err
	}

	cfg.ForecastDays = getenvInt("FORECAST_DAYS", 3)
	if cfg.ForecastDays < 0 {
		return nil, fmt.Errorf("invalid FORECAST_DAYS: %d", cfg.ForecastDays)
	}

	zoneName := getenvDefault("TIMEZONE", "Europe/Brussels")
	if cfg.Zone, err = time.LoadLocation(zoneName); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	cfg.CurrentWMSURL = os.Getenv("RIO_WMS_URL")
	cfg.ForecastWMSURL = os.Getenv("FORECAST_WMS_URL")
	cfg.BreakpointsFile = os.Getenv("BREAKPOINTS_FILE")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")
	cfg.LogDebug = getenvBool("LOG_DEBUG", false)

	if cfg.Locations, err = ParseLocations(os.Getenv("LOCATIONS")); err != nil {
		return nil, err
	}
	if cfg.Addresses, err = ParseAddresses(os.Getenv("LOCATION_ADDRESSES")); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ParseLocations parses "label@lat,lon;lat,lon;...".
func ParseLocations(s string) ([]belaqi.Location, error) {
	var locs []belaqi.Location
	for _, item := range common.SplitList(s, ";") {
		label, coords := "", item
		if i := strings.Index(item, "@"); i >= 0 {
			label, coords = strings.TrimSpace(item[:i]), item[i+1:]
		}
		parts := strings.Split(coords, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid location %q: want label@lat,lon", item)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil || lat < -90 || lat > 90 {
			return nil, fmt.Errorf("invalid latitude in location %q", item)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil || lon < -180 || lon > 180 {
			return nil, fmt.Errorf("invalid longitude in location %q", item)
		}
		locs = append(locs, belaqi.Location{Label: label, Lat: lat, Lon: lon})
	}
	return locs, nil
}

// ParseAddresses parses "city|country;city;...".
func ParseAddresses(s string) ([]geocode.Address, error) {
	var addrs []geocode.Address
	for _, item := range common.SplitList(s, ";") {
		parts := strings.Split(item, "|")
		if len(parts) > 2 {
			return nil, fmt.Errorf("invalid address %q: want city|country", item)
		}
		a := geocode.Address{City: strings.TrimSpace(parts[0])}
		if len(parts) == 2 {
			a.Country = strings.TrimSpace(parts[1])
		}
		if a.City == "" {
			return nil, fmt.Errorf("invalid address %q: missing city", item)
		}
		addrs = append(addrs, a)
	}
	return addrs, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}
