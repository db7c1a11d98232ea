package web

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/doorline/knock/internal/geo"
	"github.com/doorline/knock/internal/tracking"
)

// positionRequest is a GPS update pushed by the browser.
type positionRequest struct {
	Lng      *float64 `json:"lng"`
	Lat      *float64 `json:"lat"`
	Accuracy float64  `json:"accuracy"`
	// Error is "denied" or "unavailable" when the browser reported a failure.
	Error string `json:"error"`
}

// handleAPIPosition feeds one browser GPS update into the session.
func (s *Server) handleAPIPosition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req positionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	fix := tracking.Fix{Accuracy: req.Accuracy, At: time.Now()}
	switch strings.ToLower(req.Error) {
	case "":
		if req.Lng == nil || req.Lat == nil {
			apiError(w, "lng and lat are required", http.StatusBadRequest)
			return
		}
		fix.Position = geo.Position{Lng: *req.Lng, Lat: *req.Lat}
		if !fix.Position.Valid() {
			apiError(w, "position out of range", http.StatusBadRequest)
			return
		}
	case "denied":
		fix.Err = tracking.ErrGeolocationDenied
	case "unavailable":
		fix.Err = tracking.ErrGeolocationUnavailable
	default:
		apiError(w, "error must be denied or unavailable", http.StatusBadRequest)
		return
	}

	// A good fix after the stream stopped means location access is back.
	if fix.Err != nil && !s.session.Watching() {
		s.session.HandleFix(fix)
		apiJSON(w, map[string]int{"delivered": 0}, http.StatusAccepted)
		return
	}
	if fix.Err == nil {
		if _, err := s.session.EnsureWatching(s.watchCtx, s.feed, s.logFix); err != nil {
			apiError(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}

	delivered := s.feed.Push(fix)
	apiJSON(w, map[string]int{"delivered": delivered}, http.StatusAccepted)
}

// handleAPISession routes /api/session requests.
func (s *Server) handleAPISession(w http.ResponseWriter, r *http.Request) {
	action := strings.TrimPrefix(r.URL.Path, "/api/session")
	action = strings.TrimPrefix(action, "/")

	if action == "" {
		if r.Method != http.MethodGet {
			apiError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		apiJSON(w, s.session.Snapshot(), http.StatusOK)
		return
	}

	if action == "trail" {
		switch r.Method {
		case http.MethodGet:
			apiGeoJSON(w, s.session.TrailGeoJSON())
		case http.MethodPost:
			s.session.ToggleTrail()
			apiJSON(w, s.session.Snapshot(), http.StatusOK)
		case http.MethodDelete:
			s.session.ClearTrail()
			apiJSON(w, s.session.Snapshot(), http.StatusOK)
		default:
			apiError(w, "method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	if r.Method != http.MethodPost {
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch action {
	case "follow":
		s.session.ToggleFollow()
	case "drag":
		s.session.Drag()
	case "arm":
		s.session.ArmLog()
	case "cancel":
		s.session.CancelLog()
	case "stop":
		s.session.StopWatching()
	case "pending":
		s.apiPlacePending(w, r)
		return
	case "commit":
		s.apiCommitPending(w, r)
		return
	default:
		apiError(w, "not found", http.StatusNotFound)
		return
	}

	apiJSON(w, s.session.Snapshot(), http.StatusOK)
}

// apiPlacePending drops the pending pin where the rep tapped.
func (s *Server) apiPlacePending(w http.ResponseWriter, r *http.Request) {
	var req geo.Position
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if !req.Valid() {
		apiError(w, "position out of range", http.StatusBadRequest)
		return
	}

	if err := s.session.PlacePending(req); err != nil {
		apiFail(w, err)
		return
	}
	apiJSON(w, s.session.Snapshot(), http.StatusOK)
}

// apiCommitPending turns the pending pin into an entry with the chosen status.
func (s *Server) apiCommitPending(w http.ResponseWriter, r *http.Request) {
	var req logRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	pos, ok := s.session.Pending()
	if !ok {
		apiFail(w, tracking.ErrNoPendingPin)
		return
	}

	e, err := req.entry(pos)
	if err != nil {
		apiFail(w, err)
		return
	}

	// The pin stays pending until it is stored, so a failed write can be retried.
	view, err := s.appendEntry(e)
	if err != nil {
		apiFail(w, err)
		return
	}
	if _, err := s.session.TakePending(); err != nil {
		s.logger.Debug("pending pin already taken", "error", err)
	}
	apiJSON(w, view, http.StatusCreated)
}
