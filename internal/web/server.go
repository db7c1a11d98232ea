// Package web provides the HTTP API used by the map front end and the
// read-only manager page.
package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/doorline/knock/internal/geocode"
	"github.com/doorline/knock/internal/proximity"
	"github.com/doorline/knock/internal/tracking"
	"github.com/doorline/knock/internal/visitlog"
)

//go:embed templates/*.html
var templateFS embed.FS

// Options holds the collaborators of a Server.
type Options struct {
	Store    *visitlog.Store
	Session  *tracking.Session
	Feed     *tracking.Feed
	Backfill *geocode.Backfiller
	// RadiusMeters is the default nearby radius.
	RadiusMeters float64
	Logger       *slog.Logger
}

// Server is the HTTP server for one rep's visit log.
type Server struct {
	store     *visitlog.Store
	session   *tracking.Session
	feed      *tracking.Feed
	backfill  *geocode.Backfiller
	radius    float64
	logger    *slog.Logger
	templates *template.Template
	mux       *http.ServeMux

	// watchCtx outlives requests; position pushes restart the watch with it.
	watchCtx context.Context
}

// NewServer creates a server. Store is required; the other collaborators
// get defaults.
func NewServer(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if opts.Session == nil {
		opts.Session = tracking.NewSession(opts.Logger)
	}
	if opts.Feed == nil {
		opts.Feed = tracking.NewFeed(16)
	}
	if opts.Backfill == nil {
		opts.Backfill = geocode.NewBackfiller(nil, opts.Store, 1, opts.Logger)
	}
	if opts.RadiusMeters <= 0 {
		opts.RadiusMeters = proximity.DefaultRadiusMeters
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	tmpl, err := template.New("").Funcs(template.FuncMap{
		"statusColor": tmplStatusColor,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	s := &Server{
		store:     opts.Store,
		session:   opts.Session,
		feed:      opts.Feed,
		backfill:  opts.Backfill,
		radius:    opts.RadiusMeters,
		logger:    opts.Logger,
		templates: tmpl,
		mux:       http.NewServeMux(),
		watchCtx:  context.Background(),
	}

	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/manager", s.handleManager)
	s.mux.HandleFunc("/api/pins", s.handleAPIPins)
	s.mux.HandleFunc("/api/pins/", s.handleAPIPins)
	s.mux.HandleFunc("/api/days", s.handleAPIDays)
	s.mux.HandleFunc("/api/days/", s.handleAPIDays)
	s.mux.HandleFunc("/api/position", s.handleAPIPosition)
	s.mux.HandleFunc("/api/session", s.handleAPISession)
	s.mux.HandleFunc("/api/session/", s.handleAPISession)

	return s, nil
}

// Start begins consuming the position feed. ctx bounds the watch.
func (s *Server) Start(ctx context.Context) error {
	s.watchCtx = ctx
	return s.session.StartWatching(ctx, s.feed, s.logFix)
}

// Close stops watching positions and waits for pending address lookups.
func (s *Server) Close() {
	s.session.StopWatching()
	s.backfill.Wait()
}

// Session returns the live session.
func (s *Server) Session() *tracking.Session {
	return s.session
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) logFix(fix tracking.Fix) {
	if fix.Err != nil {
		s.logger.Warn("geolocation error", "error", fix.Err)
		return
	}
	s.logger.Debug("position", "position", fix.Position.String(), "accuracy", fix.Accuracy)
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	apiJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}
