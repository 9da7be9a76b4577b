package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/fire-data-etl/internal/domain"
	"github.com/couchcryptid/fire-data-etl/internal/grid"
	"github.com/couchcryptid/fire-data-etl/internal/heatmap"
	"github.com/couchcryptid/fire-data-etl/internal/mapquery"
	"github.com/couchcryptid/fire-data-etl/internal/stats"
)

// MaxDaysPerRequest bounds how many days a single request may load.
const MaxDaysPerRequest = 93

const (
	maxLimitPerCell = 1000
	weightFloor     = 0.02
	weightCeiling   = 1.0
	defaultDivisor  = 200.0
	defaultQuantile = 0.9
)

// FocusService loads and purges records by day.
type FocusService interface {
	GetFocuses(ctx context.Context, dates []time.Time) (map[time.Time][]domain.FireFocus, error)
	GetAvailableFocuses(ctx context.Context, dates []time.Time) (map[time.Time][]domain.FireFocus, []time.Time, error)
	Purge(ctx context.Context, dates []time.Time) ([]string, error)
}

// MapService answers viewport queries against stored records.
type MapService interface {
	Pins(ctx context.Context, vp grid.Viewport, zoom int, days []time.Time, limitPerCell int) ([]domain.FireFocus, error)
	Heatmap(ctx context.Context, vp grid.Viewport, zoom int, days []time.Time) ([]domain.HeatCell, error)
}

// StatsService builds period reports.
type StatsService interface {
	Report(ctx context.Context, req stats.ReportRequest) (stats.Report, error)
	PresetRange(days int) (start, end time.Time)
}

// Services groups the application services behind the API.
type Services struct {
	Focuses FocusService
	Map     MapService
	Stats   StatsService
}

type handlers struct {
	svc    Services
	logger *slog.Logger
}

type focusesResponse struct {
	Count int                           `json:"count"`
	Days  map[string][]domain.FireFocus `json:"days"`
}

type purgeResponse struct {
	Deleted int      `json:"deleted"`
	IDs     []string `json:"ids"`
}

type pinsResponse struct {
	Mode  mapquery.Mode      `json:"mode"`
	Zoom  int                `json:"zoom"`
	Count int                `json:"count"`
	Pins  []domain.FireFocus `json:"pins"`
}

type heatmapResponse struct {
	Mode   mapquery.Mode           `json:"mode"`
	Zoom   int                     `json:"zoom"`
	Cells  []domain.HeatCell       `json:"cells,omitempty"`
	Points []heatmap.WeightedPoint `json:"points,omitempty"`
}

func (h *handlers) getFocuses(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(r.URL.Query())
	if err != nil {
		badRequest(w, err)
		return
	}
	byDay, err := h.svc.Focuses.GetFocuses(r.Context(), days)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := focusesResponse{Days: make(map[string][]domain.FireFocus, len(byDay))}
	for day, recs := range byDay {
		resp.Days[domain.FormatDay(day)] = recs
		resp.Count += len(recs)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) purgeFocuses(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(r.URL.Query())
	if err != nil {
		badRequest(w, err)
		return
	}
	ids, err := h.svc.Focuses.Purge(r.Context(), days)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, purgeResponse{Deleted: len(ids), IDs: ids})
}

func (h *handlers) getPins(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	vp, zoom, days, err := parseMapQuery(q)
	if err != nil {
		badRequest(w, err)
		return
	}
	limit, err := intParam(q, "limit", mapquery.DefaultLimitPerCell, 1, maxLimitPerCell)
	if err != nil {
		badRequest(w, err)
		return
	}
	if !h.ensureLoaded(w, r, days) {
		return
	}

	pins, err := h.svc.Map.Pins(r.Context(), vp, zoom, days, limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if pins == nil {
		pins = []domain.FireFocus{}
	}
	writeJSON(w, http.StatusOK, pinsResponse{
		Mode:  mapquery.DisplayMode(vp, mapquery.DefaultHeatmapThreshold),
		Zoom:  zoom,
		Count: len(pins),
		Pins:  pins,
	})
}

func (h *handlers) getHeatmap(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	vp, zoom, days, err := parseMapQuery(q)
	if err != nil {
		badRequest(w, err)
		return
	}
	weighted := q.Get("weights") == "1" || q.Get("weights") == "true"

	var (
		strategy  heatmap.Strategy
		transform heatmap.Transform
	)
	if weighted {
		strategy, transform, err = parseWeighting(q)
		if err != nil {
			badRequest(w, err)
			return
		}
	}
	if !h.ensureLoaded(w, r, days) {
		return
	}

	resp := heatmapResponse{
		Mode: mapquery.DisplayMode(vp, mapquery.DefaultHeatmapThreshold),
		Zoom: zoom,
	}
	if weighted {
		pins, err := h.svc.Map.Pins(r.Context(), vp, zoom, days, math.MaxInt32)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		resp.Points = heatmap.Weights(pins, weightFloor, weightCeiling, strategy, transform)
		if resp.Points == nil {
			resp.Points = []heatmap.WeightedPoint{}
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	cells, err := h.svc.Map.Heatmap(r.Context(), vp, zoom, days)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	resp.Cells = cells
	if resp.Cells == nil {
		resp.Cells = []domain.HeatCell{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) getStats(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseStatsQuery(r.URL.Query())
	if err != nil {
		badRequest(w, err)
		return
	}
	report, err := h.svc.Stats.Report(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ensureLoaded makes sure the requested days are in the store before a map
// query reads it. Days the source has not published yet are skipped.
func (h *handlers) ensureLoaded(w http.ResponseWriter, r *http.Request, days []time.Time) bool {
	_, unpublished, err := h.svc.Focuses.GetAvailableFocuses(r.Context(), days)
	if err != nil {
		h.writeServiceError(w, r, err)
		return false
	}
	if len(unpublished) > 0 {
		h.logger.Debug("map query over unpublished days", "path", r.URL.Path, "unpublished", len(unpublished))
	}
	return true
}

func (h *handlers) parseStatsQuery(q url.Values) (stats.ReportRequest, error) {
	var req stats.ReportRequest

	if p := q.Get("preset"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || !validPreset(n) {
			return req, fmt.Errorf("preset must be one of %v", stats.PresetDays)
		}
		req.Start, req.End = h.svc.Stats.PresetRange(n)
	}
	if q.Has("start") || q.Has("end") {
		start, err := dayParam(q, "start")
		if err != nil {
			return req, err
		}
		end, err := dayParam(q, "end")
		if err != nil {
			return req, err
		}
		if len(domain.UTC.DatesBetween(start, end)) > MaxDaysPerRequest {
			return req, fmt.Errorf("period exceeds %d days", MaxDaysPerRequest)
		}
		req.Start, req.End = start, end
	}

	if v := q.Get("state"); v != "" {
		st, ok := domain.StateFromCSV(v)
		if !ok {
			return req, fmt.Errorf("unknown state %q", v)
		}
		req.State = &st
	}
	if v := q.Get("biome"); v != "" {
		b, ok := domain.ParseBiome(v)
		if !ok {
			return req, fmt.Errorf("unknown biome %q", v)
		}
		req.Biome = &b
	}

	top, err := intParam(q, "top", 10, 1, 100)
	if err != nil {
		return req, err
	}
	req.TopN = top

	order, err := stats.ParseOrderBy(q.Get("order"))
	if err != nil {
		return req, err
	}
	req.OrderBy = order
	return req, nil
}

func validPreset(n int) bool {
	for _, d := range stats.PresetDays {
		if d == n {
			return true
		}
	}
	return false
}

// parseDays reads repeated or comma-separated date parameters.
func parseDays(q url.Values) ([]time.Time, error) {
	var days []time.Time
	for _, raw := range q["date"] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			d, err := domain.ParseDay(part)
			if err != nil {
				return nil, fmt.Errorf("invalid date %q: want %s", part, domain.DayLayout)
			}
			days = append(days, d)
		}
	}
	days = domain.UTC.UniqueDays(days)
	switch {
	case len(days) == 0:
		return nil, errors.New("at least one date is required")
	case len(days) > MaxDaysPerRequest:
		return nil, fmt.Errorf("at most %d dates per request", MaxDaysPerRequest)
	}
	return days, nil
}

func parseMapQuery(q url.Values) (grid.Viewport, int, []time.Time, error) {
	bounds := make(map[string]float64, 4)
	for _, name := range []string{"minLat", "maxLat", "minLon", "maxLon"} {
		v, err := floatParam(q, name)
		if err != nil {
			return grid.Viewport{}, 0, nil, err
		}
		bounds[name] = v
	}
	if bounds["minLat"] > bounds["maxLat"] || bounds["minLon"] > bounds["maxLon"] {
		return grid.Viewport{}, 0, nil, errors.New("min bounds must not exceed max bounds")
	}
	if bounds["minLat"] < -90 || bounds["maxLat"] > 90 || bounds["minLon"] < -180 || bounds["maxLon"] > 180 {
		return grid.Viewport{}, 0, nil, errors.New("bounds out of range")
	}
	vp := grid.ViewportFromBounds(bounds["minLat"], bounds["maxLat"], bounds["minLon"], bounds["maxLon"])

	zoom, err := intParam(q, "zoom", mapquery.ZoomForSpan(vp.LatDelta), 0, 22)
	if err != nil {
		return grid.Viewport{}, 0, nil, err
	}
	days, err := parseDays(q)
	if err != nil {
		return grid.Viewport{}, 0, nil, err
	}
	return vp, zoom, days, nil
}

func parseWeighting(q url.Values) (heatmap.Strategy, heatmap.Transform, error) {
	transform, err := heatmap.ParseTransform(q.Get("transform"))
	if err != nil {
		return nil, 0, err
	}
	switch strings.ToLower(q.Get("strategy")) {
	case "", "quantile":
		p := defaultQuantile
		if q.Has("p") {
			if p, err = floatParam(q, "p"); err != nil {
				return nil, 0, err
			}
		}
		return heatmap.Quantile(p), transform, nil
	case "fixed":
		d := defaultDivisor
		if q.Has("divisor") {
			if d, err = floatParam(q, "divisor"); err != nil {
				return nil, 0, err
			}
			if d <= 0 {
				return nil, 0, errors.New("divisor must be positive")
			}
		}
		return heatmap.FixedDivisor(d), transform, nil
	default:
		return nil, 0, fmt.Errorf("unknown strategy %q: want fixed or quantile", q.Get("strategy"))
	}
}

func floatParam(q url.Values, name string) (float64, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	return v, nil
}

func intParam(q url.Values, name string, def, lo, hi int) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || v > hi {
		return 0, fmt.Errorf("%s must be an integer in [%d, %d]", name, lo, hi)
	}
	return v, nil
}

func dayParam(q url.Values, name string) (time.Time, error) {
	raw := q.Get(name)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%s is required", name)
	}
	d, err := domain.ParseDay(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q: want %s", name, raw, domain.DayLayout)
	}
	return d, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func (h *handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrTransport):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "path", r.URL.Path, "error", err)
	} else {
		h.logger.Warn("request failed", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
