package providers

import (
	"context"
	"net/http"
	"time"

	"github.com/DumoulinR/aq-mobile-be/internal/belaqi"
)

// DefaultCurrentURL is the IRCEL-CELINE RIO-IFDM interpolation service.
const DefaultCurrentURL = "https://geo5.irceline.be/rioifdm/wms"

// currentLayers holds only pairs the hour policy reads; hourly PM and BC
// layers exist but never reach an index.
var currentLayers = []wmsLayer{
	{Name: "no2_hmean", Pollutant: belaqi.NO2, Period: belaqi.Hourly},
	{Name: "o3_hmean", Pollutant: belaqi.O3, Period: belaqi.Hourly},
	{Name: "pm10_24hmean", Pollutant: belaqi.PM10, Period: belaqi.Daily},
	{Name: "pm25_24hmean", Pollutant: belaqi.PM25, Period: belaqi.Daily},
}

// CurrentProvider implements belaqi.Source for interpolated hourly values.
// It serves hour buckets only.
type CurrentProvider struct {
	wms wmsClient
}

// NewCurrentProvider creates a provider against baseURL, or DefaultCurrentURL if empty.
func NewCurrentProvider(client *http.Client, baseURL string) *CurrentProvider {
	if baseURL == "" {
		baseURL = DefaultCurrentURL
	}
	return &CurrentProvider{wms: newWMSClient("rioifdm", baseURL, client)}
}

// WithBackoff replaces the retry policy.
func (p *CurrentProvider) WithBackoff(b BackoffConfig) *CurrentProvider {
	p.wms.httpCfg.Backoff = b
	return p
}

func (p *CurrentProvider) Name() string {
	return p.wms.name
}

// Fetch queries every layer for each hour bucket. Measurements are stamped at
// the bucket start.
func (p *CurrentProvider) Fetch(ctx context.Context, loc belaqi.Location, buckets []belaqi.TimeBucket) ([]belaqi.Measurement, error) {
	var queries []wmsQuery
	for _, b := range buckets {
		if b.Kind != belaqi.BucketHour {
			continue
		}
		for _, l := range currentLayers {
			queries = append(queries, wmsQuery{
				layer:     l,
				timeParam: b.Start.UTC().Format(time.RFC3339),
				stamp:     b.Start,
			})
		}
	}
	return p.wms.fetchAll(ctx, loc, queries)
}
