package httpapi

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/DumoulinR/aq-mobile-be/internal/belaqi"
	"github.com/DumoulinR/aq-mobile-be/internal/store"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *belaqi.Service) {
	h := &handlers{service: service}
	v1 := app.Group("/api/v1")

	v1.Get("/breakpoints", h.breakpoints)
	v1.Get("/categorize", h.categorize)
	v1.Post("/aggregate", h.aggregate)
	v1.Post("/timeline", h.timeline)

	v1.Post("/locations/refresh", h.refresh)
	v1.Get("/locations/latest", h.latest)
	v1.Get("/locations/history", h.history)
}

// ErrorHandler renders every error as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

// statusError maps domain errors onto HTTP errors.
func statusError(err error) error {
	switch {
	case errors.Is(err, belaqi.ErrUnsupportedCombination), errors.Is(err, store.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, belaqi.ErrInvalidConcentration):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, belaqi.ErrEmptyBucketList):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, belaqi.ErrNoData):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	case errors.Is(err, belaqi.ErrNoSources):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}

type handlers struct {
	service *belaqi.Service
}

// pairQuery names a pollutant and averaging period.
type pairQuery struct {
	Pollutant string `validate:"required"`
	Period    string `validate:"required"`
}

func (q pairQuery) parse() (belaqi.Pollutant, belaqi.Period, error) {
	if err := validate.Struct(q); err != nil {
		return "", "", err
	}
	p, err := belaqi.ParsePollutant(q.Pollutant)
	if err != nil {
		return "", "", err
	}
	period, err := belaqi.ParsePeriod(q.Period)
	if err != nil {
		return "", "", err
	}
	return p, period, nil
}

// GET /breakpoints lists the supported pairs; with pollutant and period it
// returns that pair's bands.
func (h *handlers) breakpoints(c *fiber.Ctx) error {
	table := h.service.Aggregator().Table()

	q := pairQuery{Pollutant: c.Query("pollutant"), Period: c.Query("period")}
	if q.Pollutant == "" && q.Period == "" {
		return c.JSON(fiber.Map{"combinations": table.Combinations()})
	}

	p, period, err := q.parse()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	bps, err := table.Lookup(p, period)
	if err != nil {
		return statusError(err)
	}
	return c.JSON(fiber.Map{
		"pollutant":   p,
		"period":      period,
		"breakpoints": bps,
	})
}

type categorizeResponse struct {
	Pollutant belaqi.Pollutant  `json:"pollutant"`
	Period    belaqi.Period     `json:"period"`
	Value     *float64          `json:"value"`
	Class     belaqi.IndexClass `json:"class"`
	Label     string            `json:"label,omitempty"`
	Color     string            `json:"color,omitempty"`
}

// GET /categorize classifies a single value. An absent value yields a null class.
func (h *handlers) categorize(c *fiber.Ctx) error {
	q := pairQuery{Pollutant: c.Query("pollutant"), Period: c.Query("period")}
	p, period, err := q.parse()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	var value *float64
	if raw := strings.TrimSpace(c.Query("value")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return fiber.NewError(fiber.StatusBadRequest, "value must be a finite number")
		}
		value = &v
	}

	class, err := h.service.Aggregator().Table().Categorize(p, period, value)
	if err != nil {
		return statusError(err)
	}

	resp := categorizeResponse{Pollutant: p, Period: period, Value: value, Class: class}
	if cat, ok := belaqi.Describe(class); ok {
		resp.Label = cat.Label
		resp.Color = cat.Color
	}
	return c.JSON(resp)
}

type aggregateRequest struct {
	Classes map[string]belaqi.IndexClass `json:"classes" validate:"required"`
}

// POST /aggregate combines per-pollutant classes into the overall index.
// Pollutant names are case-insensitive; naming one twice is rejected.
func (h *handlers) aggregate(c *fiber.Ctx) error {
	var req aggregateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	classes := make(map[belaqi.Pollutant]belaqi.IndexClass, len(req.Classes))
	for name, class := range req.Classes {
		p, err := belaqi.ParsePollutant(name)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if _, dup := classes[p]; dup {
			return fiber.NewError(fiber.StatusBadRequest, "pollutant "+string(p)+" given more than once")
		}
		classes[p] = class
	}

	return c.JSON(fiber.Map{
		"overall":   belaqi.Aggregate(classes),
		"governing": belaqi.Governing(classes),
	})
}

type timelineRequest struct {
	Measurements []belaqi.Measurement `json:"measurements"`
	Buckets      []belaqi.TimeBucket  `json:"buckets" validate:"dive"`
}

// POST /timeline runs the aggregator over caller-supplied data.
func (h *handlers) timeline(c *fiber.Ctx) error {
	var req timelineRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	results, err := h.service.Aggregator().BuildTimeline(req.Measurements, req.Buckets)
	if err != nil {
		return statusError(err)
	}
	return c.JSON(fiber.Map{"results": results})
}

// POST /locations/refresh recomputes and stores the timeline of a location.
func (h *handlers) refresh(c *fiber.Ctx) error {
	q, err := parseLocationQuery(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if q.Lat == nil || q.Lon == nil {
		return fiber.NewError(fiber.StatusBadRequest, "lat and lon are required to refresh")
	}

	tl, err := h.service.Refresh(c.UserContext(), q.toLocation())
	if err != nil {
		return statusError(err)
	}
	return c.JSON(tl)
}

func (h *handlers) latest(c *fiber.Ctx) error {
	q, err := parseLocationQuery(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	tl, err := h.service.GetLatest(q.toLocation())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "no index data for requested location")
		}
		return statusError(err)
	}
	return c.JSON(tl)
}

func (h *handlers) history(c *fiber.Ctx) error {
	var req historyQuery
	if err := req.bind(c); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	loc := req.Location.toLocation()
	timelines, err := h.service.GetRange(loc, req.From, req.To)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "no index history for requested range")
		}
		return statusError(err)
	}

	return c.JSON(fiber.Map{
		"location":  loc,
		"from":      req.From,
		"to":        req.To,
		"timelines": timelines,
	})
}

// locationQuery identifies a location by label, coordinates, or both.
type locationQuery struct {
	Label string
	Lat   *float64 `validate:"omitempty,gte=-90,lte=90"`
	Lon   *float64 `validate:"omitempty,gte=-180,lte=180"`
}

func (l locationQuery) toLocation() belaqi.Location {
	loc := belaqi.Location{Label: l.Label}
	if l.Lat != nil && l.Lon != nil {
		loc.Lat, loc.Lon = *l.Lat, *l.Lon
	}
	return loc
}

func parseLocationQuery(c *fiber.Ctx) (locationQuery, error) {
	var q locationQuery

	q.Label = strings.TrimSpace(c.Query("label"))
	for _, f := range []struct {
		name string
		dst  **float64
	}{{"lat", &q.Lat}, {"lon", &q.Lon}} {
		raw := c.Query(f.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return q, errors.New(f.name + " must be a number")
		}
		*f.dst = &v
	}

	if (q.Lat == nil) != (q.Lon == nil) {
		return q, errors.New("lat and lon must be given together")
	}
	if q.Label == "" && q.Lat == nil {
		return q, errors.New("label or lat and lon are required")
	}
	if err := validate.Struct(q); err != nil {
		return q, err
	}

	return q, nil
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	Location locationQuery
	From     time.Time `validate:"required"`
	To       time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	loc, err := parseLocationQuery(c)
	if err != nil {
		return err
	}
	h.Location = loc

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
