package providers

import (
	"context"
	"net/http"
	"time"

	"github.com/DumoulinR/aq-mobile-be/internal/belaqi"
)

// DefaultForecastURL is the IRCEL-CELINE forecast service.
const DefaultForecastURL = "https://geo5.irceline.be/forecast/wms"

// Daily maxima of hourly means for the gases, daily means for particulate matter.
var forecastLayers = []wmsLayer{
	{Name: "no2_maxhmean", Pollutant: belaqi.NO2, Period: belaqi.Hourly},
	{Name: "o3_maxhmean", Pollutant: belaqi.O3, Period: belaqi.Hourly},
	{Name: "pm10_dmean", Pollutant: belaqi.PM10, Period: belaqi.Daily},
	{Name: "pm25_dmean", Pollutant: belaqi.PM25, Period: belaqi.Daily},
}

// ForecastProvider implements belaqi.Source for daily forecasts.
// It serves day buckets only.
type ForecastProvider struct {
	wms wmsClient
}

// NewForecastProvider creates a provider against baseURL, or DefaultForecastURL if empty.
func NewForecastProvider(client *http.Client, baseURL string) *ForecastProvider {
	if baseURL == "" {
		baseURL = DefaultForecastURL
	}
	return &ForecastProvider{wms: newWMSClient("forecast", baseURL, client)}
}

// WithBackoff replaces the retry policy.
func (p *ForecastProvider) WithBackoff(b BackoffConfig) *ForecastProvider {
	p.wms.httpCfg.Backoff = b
	return p
}

func (p *ForecastProvider) Name() string {
	return p.wms.name
}

// Fetch queries every layer for each day bucket. Forecast values must not land
// in a requested hour bucket, so each day is stamped at an hour none of them covers.
func (p *ForecastProvider) Fetch(ctx context.Context, loc belaqi.Location, buckets []belaqi.TimeBucket) ([]belaqi.Measurement, error) {
	var hours []belaqi.TimeBucket
	for _, b := range buckets {
		if b.Kind == belaqi.BucketHour {
			hours = append(hours, b)
		}
	}

	var queries []wmsQuery
	for _, b := range buckets {
		if b.Kind != belaqi.BucketDay {
			continue
		}
		stamp := dayStamp(b, hours)
		for _, l := range forecastLayers {
			queries = append(queries, wmsQuery{
				layer:     l,
				timeParam: b.Start.Format("2006-01-02"),
				stamp:     stamp,
			})
		}
	}
	return p.wms.fetchAll(ctx, loc, queries)
}

// dayStamp returns local noon of day, or the next hour of the day that no
// bucket in hours contains.
func dayStamp(day belaqi.TimeBucket, hours []belaqi.TimeBucket) time.Time {
	base := day.Start
	for i := 0; i < 24; i++ {
		h := (12 + i) % 24
		t := time.Date(base.Year(), base.Month(), base.Day(), h, 0, 0, 0, base.Location())
		covered := false
		for _, hb := range hours {
			if hb.Contains(t) {
				covered = true
				break
			}
		}
		if !covered {
			return t
		}
	}
	return time.Date(base.Year(), base.Month(), base.Day(), 12, 0, 0, 0, base.Location())
}
