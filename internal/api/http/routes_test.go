package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/DumoulinR/aq-mobile-be/internal/belaqi"
	"github.com/DumoulinR/aq-mobile-be/internal/store"
)

type stubSource struct{}

func (stubSource) Name() string { return "stub" }

// Fetch returns NO2 45 (class 2) and O3 130 (class 5) for the first bucket.
func (stubSource) Fetch(_ context.Context, _ belaqi.Location, buckets []belaqi.TimeBucket) ([]belaqi.Measurement, error) {
	no2, o3 := 45.0, 130.0
	at := buckets[0].Start
	return []belaqi.Measurement{
		{Pollutant: belaqi.NO2, Period: belaqi.Hourly, Timestamp: at, Concentration: &no2},
		{Pollutant: belaqi.O3, Period: belaqi.Hourly, Timestamp: at, Concentration: &o3},
	}, nil
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})

	memStore := store.NewMemoryStore(10, time.Hour)
	svc := belaqi.NewService(memStore, []belaqi.Source{stubSource{}}, nil, belaqi.ServiceOptions{ForecastDays: 1})
	RegisterRoutes(app, svc)
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, target, body string) (int, map[string]interface{}) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	out := map[string]interface{}{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response of %s %s: %v", method, target, err)
	}
	return resp.StatusCode, out
}

func TestCategorize(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name      string
		query     string
		status    int
		wantClass interface{}
		wantLabel string
	}{
		{name: "boundary", query: "pollutant=no2&period=hourly&value=21", status: http.StatusOK, wantClass: 2.0, wantLabel: "very good"},
		{name: "top band", query: "pollutant=pm2.5&period=24hour&value=900", status: http.StatusOK, wantClass: 10.0, wantLabel: "horrible"},
		{name: "missing value", query: "pollutant=o3&period=hourly", status: http.StatusOK, wantClass: nil},
		{name: "negative", query: "pollutant=no2&period=hourly&value=-1", status: http.StatusUnprocessableEntity},
		{name: "unsupported", query: "pollutant=bc&period=hourly&value=1", status: http.StatusNotFound},
		{name: "unknown pollutant", query: "pollutant=co&period=hourly&value=1", status: http.StatusBadRequest},
		{name: "not a number", query: "pollutant=no2&period=hourly&value=abc", status: http.StatusBadRequest},
		{name: "NaN", query: "pollutant=no2&period=hourly&value=NaN", status: http.StatusBadRequest},
		{name: "infinite", query: "pollutant=no2&period=hourly&value=Inf", status: http.StatusBadRequest},
		{name: "negative infinite", query: "pollutant=no2&period=hourly&value=-Inf", status: http.StatusBadRequest},
		{name: "no period", query: "pollutant=no2&value=1", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doRequest(t, app, http.MethodGet, "/api/v1/categorize?"+tt.query, "")
			if status != tt.status {
				t.Fatalf("expected status %d, got %d (%v)", tt.status, status, body)
			}
			if status != http.StatusOK {
				if body["error"] != true {
					t.Errorf("expected error envelope, got %v", body)
				}
				return
			}
			if body["class"] != tt.wantClass {
				t.Errorf("class = %v, want %v", body["class"], tt.wantClass)
			}
			if tt.wantLabel != "" && body["label"] != tt.wantLabel {
				t.Errorf("label = %v, want %v", body["label"], tt.wantLabel)
			}
		})
	}
}

func TestBreakpoints(t *testing.T) {
	app := newTestApp(t)

	status, body := doRequest(t, app, http.MethodGet, "/api/v1/breakpoints?pollutant=NO2&period=hourly", "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	bands, ok := body["breakpoints"].([]interface{})
	if !ok || len(bands) != 10 {
		t.Fatalf("expected 10 bands, got %v", body["breakpoints"])
	}
	last := bands[len(bands)-1].(map[string]interface{})
	if last["upper"] != nil || last["class"] != 10.0 {
		t.Errorf("unexpected top band %v", last)
	}

	status, body = doRequest(t, app, http.MethodGet, "/api/v1/breakpoints", "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if combos, ok := body["combinations"].([]interface{}); !ok || len(combos) == 0 {
		t.Errorf("expected combinations, got %v", body)
	}

	if status, _ = doRequest(t, app, http.MethodGet, "/api/v1/breakpoints?pollutant=bc&period=annual", ""); status != http.StatusNotFound {
		t.Errorf("expected 404 for unsupported pair, got %d", status)
	}
}

func TestAggregate(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		body   string
		status int
		want   interface{}
	}{
		{body: `{"classes":{}}`, status: http.StatusOK, want: nil},
		{body: `{"classes":{"no2":3,"pm10":null}}`, status: http.StatusOK, want: 3.0},
		{body: `{"classes":{"no2":3,"pm10":7}}`, status: http.StatusOK, want: 7.0},
		{body: `{"classes":{"no2":11}}`, status: http.StatusBadRequest},
		{body: `{"classes":{"xx":1}}`, status: http.StatusBadRequest},
		{body: `{"classes":{"NO2":3,"no2":7}}`, status: http.StatusBadRequest},
		{body: `{"classes":{"pm2.5":3,"PM25":7}}`, status: http.StatusBadRequest},
		{body: `{}`, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		status, body := doRequest(t, app, http.MethodPost, "/api/v1/aggregate", tt.body)
		if status != tt.status {
			t.Errorf("%s: expected status %d, got %d", tt.body, tt.status, status)
			continue
		}
		if status == http.StatusOK && body["overall"] != tt.want {
			t.Errorf("%s: overall = %v, want %v", tt.body, body["overall"], tt.want)
		}
	}
}

func TestTimeline(t *testing.T) {
	app := newTestApp(t)

	body := `{
		"measurements": [
			{"pollutant":"no2","period":"hourly","timestamp":"2024-06-01T10:00:00Z","concentration":30},
			{"pollutant":"o3","period":"hourly","timestamp":"2024-06-01T14:00:00Z","concentration":100},
			{"pollutant":"pm10","period":"24hour","timestamp":"2024-06-01T00:00:00Z","concentration":null}
		],
		"buckets": [{"kind":"day","start":"2024-06-01T00:00:00Z","label":"today"}]
	}`
	status, resp := doRequest(t, app, http.MethodPost, "/api/v1/timeline", body)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", status, resp)
	}
	results := resp["results"].([]interface{})
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
	r := results[0].(map[string]interface{})
	if r["overall"] != 4.0 {
		t.Errorf("overall = %v, want 4", r["overall"])
	}
	if pm10 := r["pollutants"].(map[string]interface{})["pm10"]; pm10 != nil {
		t.Errorf("pm10 should be null, got %v", pm10)
	}

	if status, _ = doRequest(t, app, http.MethodPost, "/api/v1/timeline", `{"measurements":[],"buckets":[]}`); status != http.StatusBadRequest {
		t.Errorf("expected 400 for empty buckets, got %d", status)
	}
	if status, _ = doRequest(t, app, http.MethodPost, "/api/v1/timeline", `{"buckets":[{"kind":"week","start":"2024-06-01T00:00:00Z"}]}`); status != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown bucket kind, got %d", status)
	}

	negative := `{"measurements":[{"pollutant":"no2","period":"hourly","timestamp":"2024-06-01T10:00:00Z","concentration":-5}],
		"buckets":[{"kind":"day","start":"2024-06-01T00:00:00Z"}]}`
	if status, _ = doRequest(t, app, http.MethodPost, "/api/v1/timeline", negative); status != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for negative concentration, got %d", status)
	}
}

func TestLocations(t *testing.T) {
	app := newTestApp(t)
	q := "label=brussels&lat=50.85&lon=4.35"

	if status, _ := doRequest(t, app, http.MethodGet, "/api/v1/locations/latest?"+q, ""); status != http.StatusNotFound {
		t.Fatalf("expected 404 before refresh, got %d", status)
	}

	status, tl := doRequest(t, app, http.MethodPost, "/api/v1/locations/refresh?"+q, "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", status, tl)
	}
	results := tl["results"].([]interface{})
	if len(results) != 3 {
		t.Fatalf("expected current, today and tomorrow, got %d results", len(results))
	}
	current := results[0].(map[string]interface{})
	if current["overall"] != 5.0 {
		t.Errorf("current overall = %v, want 5", current["overall"])
	}

	status, latest := doRequest(t, app, http.MethodGet, "/api/v1/locations/latest?label=brussels", "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if latest["runId"] != tl["runId"] {
		t.Errorf("latest runId %v, want %v", latest["runId"], tl["runId"])
	}

	status, byCoords := doRequest(t, app, http.MethodGet, "/api/v1/locations/latest?lat=50.85&lon=4.35", "")
	if status != http.StatusOK {
		t.Fatalf("latest by coordinates of a labelled location: expected 200, got %d", status)
	}
	if byCoords["runId"] != tl["runId"] {
		t.Errorf("latest by coordinates runId %v, want %v", byCoords["runId"], tl["runId"])
	}

	from := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	to := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	status, hist := doRequest(t, app, http.MethodGet, "/api/v1/locations/history?label=brussels&from="+from+"&to="+to, "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", status, hist)
	}
	if n := len(hist["timelines"].([]interface{})); n != 1 {
		t.Errorf("expected one timeline, got %d", n)
	}

	for _, target := range []string{
		"/api/v1/locations/latest",
		"/api/v1/locations/latest?lat=50.85",
		"/api/v1/locations/latest?lat=95&lon=4",
		"/api/v1/locations/history?label=brussels&from=" + to + "&to=" + from,
		"/api/v1/locations/history?label=brussels",
	} {
		if status, _ := doRequest(t, app, http.MethodGet, target, ""); status != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, status)
		}
	}

	if status, _ := doRequest(t, app, http.MethodPost, "/api/v1/locations/refresh?label=brussels", ""); status != http.StatusBadRequest {
		t.Errorf("refresh without coordinates: expected 400, got %d", status)
	}
}

func TestRefreshWithoutSources(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	svc := belaqi.NewService(store.NewMemoryStore(0, 0), nil, nil, belaqi.ServiceOptions{})
	RegisterRoutes(app, svc)

	status, body := doRequest(t, app, http.MethodPost, "/api/v1/locations/refresh?lat=50&lon=4", "")
	if status != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d (%v)", status, body)
	}
}
