package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/doorline/knock/internal/geo"
	"github.com/doorline/knock/internal/pin"
	"github.com/doorline/knock/internal/proximity"
	"github.com/doorline/knock/internal/tracking"
	"github.com/doorline/knock/internal/visitlog"
)

// apiError writes a JSON error response.
func apiError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	resp := map[string]string{"error": msg}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
	}
}

// apiJSON writes a JSON response with the given status code.
func apiJSON(w http.ResponseWriter, data interface{}, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
	}
}

// apiGeoJSON writes a GeoJSON document.
func apiGeoJSON(w http.ResponseWriter, fc *geojson.FeatureCollection) {
	data, err := fc.MarshalJSON()
	if err != nil {
		apiError(w, fmt.Sprintf("encoding geojson: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// apiFail maps a domain error to its status code.
func apiFail(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, pin.ErrInvalidEntry):
		code = http.StatusBadRequest
	case errors.Is(err, visitlog.ErrEntryNotFound):
		code = http.StatusNotFound
	case errors.Is(err, visitlog.ErrDuplicateEntry),
		errors.Is(err, tracking.ErrNotArmed),
		errors.Is(err, tracking.ErrNoPendingPin):
		code = http.StatusConflict
	case errors.Is(err, visitlog.ErrStorageUnavailable):
		code = http.StatusServiceUnavailable
	}
	apiError(w, err.Error(), code)
}

// dayParam returns the ?day= query value, defaulting to today.
func (s *Server) dayParam(r *http.Request) (string, bool) {
	day := r.URL.Query().Get("day")
	if day == "" {
		return s.store.Today(), true
	}
	return day, pin.ValidDayKey(day)
}

// handleAPIPins routes /api/pins requests.
func (s *Server) handleAPIPins(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/pins")
	path = strings.TrimPrefix(path, "/")

	// /api/pins: list or log
	if path == "" {
		switch r.Method {
		case http.MethodGet:
			s.apiListPins(w, r)
		case http.MethodPost:
			s.apiLogPin(w, r)
		default:
			apiError(w, "method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	// /api/pins/nearby
	if path == "nearby" {
		if r.Method != http.MethodGet {
			apiError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.apiNearbyPins(w, r)
		return
	}

	// /api/pins/{timestamp}: show or edit
	ts, err := strconv.ParseInt(path, 10, 64)
	if err != nil {
		apiError(w, "invalid pin timestamp", http.StatusBadRequest)
		return
	}
	switch r.Method {
	case http.MethodGet:
		s.apiGetPin(w, r, ts)
	case http.MethodPut:
		s.apiEditPin(w, r, ts)
	default:
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// apiListPins returns one day's pins with derived colors.
func (s *Server) apiListPins(w http.ResponseWriter, r *http.Request) {
	day, ok := s.dayParam(r)
	if !ok {
		apiError(w, "day must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	apiJSON(w, pin.RenderAll(day, s.store.Day(day)), http.StatusOK)
}

// logRequest is the body of POST /api/pins and /api/session/commit.
type logRequest struct {
	Lng      *float64 `json:"lng"`
	Lat      *float64 `json:"lat"`
	Status   string   `json:"status"`
	Severity *int     `json:"severity"`
	Notes    string   `json:"notes"`
}

func (req logRequest) entry(pos geo.Position) (pin.Entry, error) {
	status, ok := pin.ParseStatus(req.Status)
	if !ok {
		return pin.Entry{}, fmt.Errorf("%w: unknown status %q", pin.ErrInvalidEntry, req.Status)
	}
	return pin.Entry{Position: pos, Status: status, Severity: req.Severity, Notes: req.Notes}, nil
}

// apiLogPin appends a pin at the given coordinates.
func (s *Server) apiLogPin(w http.ResponseWriter, r *http.Request) {
	var req logRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Lng == nil || req.Lat == nil {
		apiError(w, "lng and lat are required", http.StatusBadRequest)
		return
	}

	e, err := req.entry(geo.Position{Lng: *req.Lng, Lat: *req.Lat})
	if err != nil {
		apiFail(w, err)
		return
	}
	view, err := s.appendEntry(e)
	if err != nil {
		apiFail(w, err)
		return
	}
	apiJSON(w, view, http.StatusCreated)
}

// appendEntry stores e and queues its address lookup.
func (s *Server) appendEntry(e pin.Entry) (pin.Rendered, error) {
	stored, err := s.store.Append(e)
	if err != nil {
		return pin.Rendered{}, err
	}

	day := stored.Day(s.store.Location())
	s.backfill.Resolve(day, stored.Timestamp, stored.Position)
	return stored.Render(day), nil
}

// apiGetPin returns one pin.
func (s *Server) apiGetPin(w http.ResponseWriter, r *http.Request, ts int64) {
	day, ok := s.dayParam(r)
	if !ok {
		apiError(w, "day must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	e, err := s.store.Get(day, ts)
	if err != nil {
		apiFail(w, err)
		return
	}
	apiJSON(w, e.Render(day), http.StatusOK)
}

// editRequest is the body of PUT /api/pins/{timestamp}. Absent fields keep
// their stored value.
type editRequest struct {
	Status   *string `json:"status"`
	Severity *int    `json:"severity"`
	Notes    *string `json:"notes"`
}

// apiEditPin replaces the editable fields of a pin.
func (s *Server) apiEditPin(w http.ResponseWriter, r *http.Request, ts int64) {
	day, ok := s.dayParam(r)
	if !ok {
		apiError(w, "day must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	var status pin.Status
	if req.Status != nil {
		parsed, ok := pin.ParseStatus(*req.Status)
		if !ok {
			apiError(w, "unknown status "+strconv.Quote(*req.Status), http.StatusBadRequest)
			return
		}
		status = parsed
	}

	stored, err := s.store.Edit(day, ts, func(e *pin.Entry) error {
		if req.Status != nil {
			e.Status = status
		}
		if req.Severity != nil {
			e.Severity = req.Severity
		} else if e.Status.SolicitsSeverity() && e.Severity == nil {
			sev := pin.DefaultSeverity
			e.Severity = &sev
		}
		if req.Notes != nil {
			e.Notes = *req.Notes
		}
		return nil
	})
	if err != nil {
		apiFail(w, err)
		return
	}
	apiJSON(w, stored.Render(day), http.StatusOK)
}

// apiNearbyPins returns the pins around a position, or around the last GPS
// fix when lng and lat are omitted.
func (s *Server) apiNearbyPins(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	day, ok := s.dayParam(r)
	if !ok {
		apiError(w, "day must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	current := s.session.Current()
	if q.Get("lng") != "" || q.Get("lat") != "" {
		lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
		lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
		if errLng != nil || errLat != nil {
			apiError(w, "lng and lat must both be numbers", http.StatusBadRequest)
			return
		}
		current = &geo.Position{Lng: lng, Lat: lat}
		if !current.Valid() {
			apiError(w, "lng and lat must be a valid WGS84 position", http.StatusBadRequest)
			return
		}
	}

	radius := s.radius
	if v := q.Get("radius"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			apiError(w, "radius must be a finite number", http.StatusBadRequest)
			return
		}
		radius = f
	}

	var view *geo.Bounds
	if v := q.Get("bbox"); v != "" {
		b, err := geo.ParseBBox(v)
		if err != nil {
			apiError(w, err.Error(), http.StatusBadRequest)
			return
		}
		view = &b
	}

	entries := proximity.Nearby(current, s.store.Day(day), radius, view)
	apiJSON(w, pin.RenderAll(day, entries), http.StatusOK)
}

// handleAPIDays routes /api/days requests.
func (s *Server) handleAPIDays(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/days")
	path = strings.TrimPrefix(path, "/")

	// /api/days: summaries
	if path == "" {
		if r.Method != http.MethodGet {
			apiError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		apiJSON(w, s.store.Summaries(), http.StatusOK)
		return
	}

	day, action, _ := strings.Cut(path, "/")
	if day == "today" {
		day = s.store.Today()
	}
	if !pin.ValidDayKey(day) {
		apiError(w, "day must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	switch action {
	case "geojson":
		if r.Method != http.MethodGet {
			apiError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		apiGeoJSON(w, pin.FeatureCollection(s.store.Day(day)))
	case "backfill":
		if r.Method != http.MethodPost {
			apiError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.apiBackfillDay(w, r, day)
	case "":
		if r.Method != http.MethodGet {
			apiError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		apiJSON(w, visitlog.Summarize(day, s.store.Day(day)), http.StatusOK)
	default:
		apiError(w, "not found", http.StatusNotFound)
	}
}

// apiBackfillDay resolves missing addresses for a day.
func (s *Server) apiBackfillDay(w http.ResponseWriter, r *http.Request, day string) {
	if !s.backfill.Enabled() {
		apiError(w, "address lookup not available (geocode token not configured)", http.StatusServiceUnavailable)
		return
	}

	n, err := s.backfill.BackfillDay(r.Context(), day, s.store.Day(day))
	if err != nil && !errors.Is(err, context.Canceled) {
		apiFail(w, err)
		return
	}
	apiJSON(w, map[string]int{"attached": n}, http.StatusOK)
}
