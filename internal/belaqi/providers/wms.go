package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/DumoulinR/aq-mobile-be/internal/belaqi"
)

// wmsNoData is the sentinel raster value the IRCEL-CELINE layers use for "no value".
const wmsNoData = -999

// Half-width in degrees of the bounding box queried around a location.
const bboxHalfWidth = 0.0005

// wmsLayer maps a WMS layer to the pollutant and averaging period it holds.
type wmsLayer struct {
	Name      string
	Pollutant belaqi.Pollutant
	Period    belaqi.Period
}

// wmsClient queries point values from a WMS GetFeatureInfo endpoint.
type wmsClient struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func newWMSClient(name, baseURL string, client *http.Client) wmsClient {
	return wmsClient{
		name:    name,
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{Client: client, Backoff: DefaultBackoff},
		circuit: newCircuit(name),
	}
}

// featureInfo returns the raster value of layer at loc. A nil value means the
// service reported no data for that pixel.
func (c *wmsClient) featureInfo(ctx context.Context, loc belaqi.Location, layer, timeParam string) (*float64, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("SERVICE", "WMS")
		values.Set("VERSION", "1.1.1")
		values.Set("REQUEST", "GetFeatureInfo")
		values.Set("LAYERS", layer)
		values.Set("QUERY_LAYERS", layer)
		values.Set("STYLES", "")
		values.Set("SRS", "EPSG:4326")
		values.Set("BBOX", fmt.Sprintf("%f,%f,%f,%f",
			loc.Lon-bboxHalfWidth, loc.Lat-bboxHalfWidth,
			loc.Lon+bboxHalfWidth, loc.Lat+bboxHalfWidth))
		values.Set("WIDTH", "1")
		values.Set("HEIGHT", "1")
		values.Set("X", "0")
		values.Set("Y", "0")
		values.Set("INFO_FORMAT", "application/json")
		values.Set("FEATURE_COUNT", "1")
		if timeParam != "" {
			values.Set("TIME", timeParam)
		}

		u := fmt.Sprintf("%s?%s", c.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Features []struct {
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode %s feature info: %w", layer, err)
	}
	if len(payload.Features) == 0 {
		return nil, nil
	}
	return rasterValue(payload.Features[0].Properties)
}

// rasterValue extracts the pixel value from GeoServer feature properties.
func rasterValue(props map[string]interface{}) (*float64, error) {
	raw, ok := props["GRAY_INDEX"]
	if !ok {
		// Some layers name the band differently; accept a single unnamed band.
		if len(props) != 1 {
			return nil, nil
		}
		for _, v := range props {
			raw = v
			break
		}
	}

	var v float64
	switch x := raw.(type) {
	case nil:
		return nil, nil
	case float64:
		v = x
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return nil, fmt.Errorf("non-numeric raster value %q", x)
		}
		v = f
	default:
		return nil, fmt.Errorf("unexpected raster value type %T", raw)
	}
	if v <= wmsNoData {
		return nil, nil
	}
	return &v, nil
}

// wmsQuery is one GetFeatureInfo call and the measurement it yields.
type wmsQuery struct {
	layer     wmsLayer
	timeParam string
	stamp     time.Time
}

// fetchAll runs the queries concurrently. Failed queries are dropped and leave
// their values missing; an error is returned only if every query failed.
func (c *wmsClient) fetchAll(ctx context.Context, loc belaqi.Location, queries []wmsQuery) ([]belaqi.Measurement, error) {
	if len(queries) == 0 {
		return nil, nil
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		out     = make([]belaqi.Measurement, 0, len(queries))
		errs    []error
		success int
	)

	for _, q := range queries {
		q := q
		wg.Add(1)
		go func() {
			defer wg.Done()

			v, err := c.featureInfo(ctx, loc, q.layer.Name, q.timeParam)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", q.layer.Name, err))
				return
			}
			success++
			out = append(out, belaqi.Measurement{
				Pollutant:     q.layer.Pollutant,
				Period:        q.layer.Period,
				Timestamp:     q.stamp,
				Concentration: v,
				Source:        c.name,
			})
		}()
	}

	wg.Wait()

	if success == 0 {
		return nil, fmt.Errorf("%s: all %d requests failed: %w", c.name, len(queries), errors.Join(errs...))
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		if out[i].Pollutant != out[j].Pollutant {
			return out[i].Pollutant < out[j].Pollutant
		}
		return out[i].Period < out[j].Period
	})
	return out, nil
}
