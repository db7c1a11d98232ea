package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/doorline/knock/internal/geo"
)

var (
	// ErrNotArmed is returned when a pending pin is placed without arming first.
	ErrNotArmed = errors.New("log mode is not armed")
	// ErrNoPendingPin is returned when committing with no pending pin placed.
	ErrNoPendingPin = errors.New("no pending pin")
)

// Segment is one continuous stretch of the recorded trail.
type Segment struct {
	ID     string         `json:"id"`
	Points []geo.Position `json:"points"`
}

// Session is the state of one rep's map session. All methods are safe for
// concurrent use.
type Session struct {
	logger *slog.Logger

	mu        sync.Mutex
	following bool
	recording bool
	trail     []Segment
	armed     bool
	pending   *geo.Position
	lastFix   *Fix
	lastErr   error

	watchMu     sync.Mutex
	watchCancel context.CancelFunc
	watchDone   chan struct{}
}

// NewSession returns a session with follow mode on and nothing recorded.
func NewSession(logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{logger: logger, following: true}
}

// Following reports whether the map recenters on each fix.
func (s *Session) Following() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.following
}

// SetFollowing turns follow mode on or off.
func (s *Session) SetFollowing(on bool) {
	s.mu.Lock()
	s.following = on
	s.mu.Unlock()
}

// ToggleFollow flips follow mode and returns the new value.
func (s *Session) ToggleFollow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.following = !s.following
	return s.following
}

// Drag records that the rep moved the map by hand, which ends follow mode.
func (s *Session) Drag() {
	s.SetFollowing(false)
}

// Recording reports whether fixes are being added to the trail.
func (s *Session) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

// ToggleTrail starts a new trail segment or ends the current one, and
// returns whether recording is now on.
func (s *Session) ToggleTrail() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recording {
		s.recording = false
		return false
	}
	s.recording = true
	s.trail = append(s.trail, Segment{ID: uuid.NewString(), Points: []geo.Position{}})
	return true
}

// ClearTrail drops every recorded segment. Recording continues in a fresh
// segment if it was on.
func (s *Session) ClearTrail() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trail = nil
	if s.recording {
		s.trail = append(s.trail, Segment{ID: uuid.NewString(), Points: []geo.Position{}})
	}
}

// Trail returns a copy of the recorded segments.
func (s *Session) Trail() []Segment {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Segment, len(s.trail))
	for i, seg := range s.trail {
		out[i] = Segment{ID: seg.ID, Points: append([]geo.Position(nil), seg.Points...)}
	}
	return out
}

// TrailGeoJSON renders the trail as one LineString feature per segment.
func (s *Session) TrailGeoJSON() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, seg := range s.Trail() {
		line := make(orb.LineString, 0, len(seg.Points))
		for _, p := range seg.Points {
			line = append(line, p.Point())
		}
		f := geojson.NewFeature(line)
		f.ID = seg.ID
		f.Properties["points"] = len(seg.Points)
		fc.Append(f)
	}
	return fc
}

// ArmLog enters log mode: the next map tap places a pending pin.
func (s *Session) ArmLog() {
	s.mu.Lock()
	s.armed = true
	s.mu.Unlock()
}

// Armed reports whether log mode is on.
func (s *Session) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

// PlacePending puts the pending pin at pos, replacing any earlier one.
func (s *Session) PlacePending(pos geo.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.armed {
		return ErrNotArmed
	}
	s.pending = &pos
	return nil
}

// Pending returns the pending pin position.
func (s *Session) Pending() (geo.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		return geo.Position{}, false
	}
	return *s.pending, true
}

// CancelLog leaves log mode and discards the pending pin.
func (s *Session) CancelLog() {
	s.mu.Lock()
	s.armed = false
	s.pending = nil
	s.mu.Unlock()
}

// TakePending returns the pending pin and leaves log mode. The caller
// turns it into an entry once a status is chosen.
func (s *Session) TakePending() (geo.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		return geo.Position{}, ErrNoPendingPin
	}
	pos := *s.pending
	s.pending = nil
	s.armed = false
	return pos, nil
}

// LastFix returns the most recent successful fix.
func (s *Session) LastFix() (Fix, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastFix == nil {
		return Fix{}, false
	}
	return *s.lastFix, true
}

// Current returns the last known position, or nil before the first fix.
func (s *Session) Current() *geo.Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastFix == nil {
		return nil
	}
	pos := s.lastFix.Position
	return &pos
}

// LastError returns the last geolocation error, cleared by the next good fix.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// HandleFix applies one fix and reports whether the map should recenter.
// Repeated fixes at the same coordinate are harmless.
func (s *Session) HandleFix(fix Fix) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fix.Err != nil {
		s.lastErr = fix.Err
		return false
	}

	s.lastErr = nil
	s.lastFix = &fix

	if s.recording && len(s.trail) > 0 {
		seg := &s.trail[len(s.trail)-1]
		if n := len(seg.Points); n == 0 || seg.Points[n-1] != fix.Position {
			seg.Points = append(seg.Points, fix.Position)
		}
	}

	return s.following
}

// StartWatching subscribes to src and applies each fix to the session,
// then calls onFix (which may be nil). Any previous watch is stopped first.
// A stream error is recorded and ends the watch; it is not retried.
// onFix runs on the watch goroutine and must not call StartWatching or StopWatching.
func (s *Session) StartWatching(ctx context.Context, src Source, onFix func(Fix)) error {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	s.stopLocked()
	return s.startLocked(ctx, src, onFix)
}

// EnsureWatching starts a watch like StartWatching unless one is already
// running, and reports whether it started one. Concurrent callers start at
// most one watch.
func (s *Session) EnsureWatching(ctx context.Context, src Source, onFix func(Fix)) (bool, error) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	if s.watchingLocked() {
		return false, nil
	}
	s.stopLocked()
	if err := s.startLocked(ctx, src, onFix); err != nil {
		return false, err
	}
	return true, nil
}

// startLocked must be called with watchMu held and no watch running.
func (s *Session) startLocked(ctx context.Context, src Source, onFix func(Fix)) error {
	watchCtx, cancel := context.WithCancel(ctx)
	ch, err := src.Watch(watchCtx)
	if err != nil {
		cancel()
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		return fmt.Errorf("watching position: %w", err)
	}

	done := make(chan struct{})
	s.watchCancel = cancel
	s.watchDone = done

	go func() {
		defer close(done)
		defer cancel()

		for {
			select {
			case <-watchCtx.Done():
				return
			case fix, ok := <-ch:
				if !ok {
					return
				}
				s.HandleFix(fix)
				if onFix != nil {
					onFix(fix)
				}
				if fix.Err != nil {
					s.logger.Warn("position stream stopped", "error", fix.Err)
					return
				}
			}
		}
	}()

	return nil
}

// StopWatching releases the position subscription and waits for the watch
// goroutine to exit. It is safe to call when not watching.
func (s *Session) StopWatching() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	s.stopLocked()
}

// stopLocked must be called with watchMu held.
func (s *Session) stopLocked() {
	if s.watchCancel == nil {
		return
	}
	s.watchCancel()
	<-s.watchDone
	s.watchCancel = nil
	s.watchDone = nil
}

// Watching reports whether a watch goroutine is running.
func (s *Session) Watching() bool {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	return s.watchingLocked()
}

func (s *Session) watchingLocked() bool {
	if s.watchDone == nil {
		return false
	}
	select {
	case <-s.watchDone:
		return false
	default:
		return true
	}
}

// State is a snapshot of the session for the API.
type State struct {
	Following bool          `json:"following"`
	Recording bool          `json:"recording"`
	Watching  bool          `json:"watching"`
	Armed     bool          `json:"armed"`
	Pending   *geo.Position `json:"pending,omitempty"`
	LastFix   *Fix          `json:"last_fix,omitempty"`
	LastError string        `json:"last_error,omitempty"`
	Segments  int           `json:"segments"`
}

// Snapshot returns the current state.
func (s *Session) Snapshot() State {
	watching := s.Watching()

	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Following: s.following,
		Recording: s.recording,
		Watching:  watching,
		Armed:     s.armed,
		Segments:  len(s.trail),
	}
	if s.pending != nil {
		p := *s.pending
		st.Pending = &p
	}
	if s.lastFix != nil {
		f := *s.lastFix
		st.LastFix = &f
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}
