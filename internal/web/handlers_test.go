package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/doorline/knock/internal/db"
	"github.com/doorline/knock/internal/geo"
	"github.com/doorline/knock/internal/geocode"
	"github.com/doorline/knock/internal/kv"
	"github.com/doorline/knock/internal/pin"
	"github.com/doorline/knock/internal/tracking"
	"github.com/doorline/knock/internal/visitlog"
)

var testNow = time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t)

	r := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q, want application/json", ct)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %q, want status ok", w.Body.String())
	}
}

func TestNewServerRequiresStore(t *testing.T) {
	if _, err := NewServer(Options{}); err == nil {
		t.Fatal("expected error without a store")
	}
}

func TestManagerEmpty(t *testing.T) {
	srv := testServer(t)

	r := httptest.NewRequest("GET", "/manager", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "No activity recorded yet.") {
		t.Error("expected empty state message")
	}
	if !strings.Contains(w.Body.String(), "Manager view is read-only.") {
		t.Error("expected read-only note")
	}
}

func TestManagerWithActivity(t *testing.T) {
	srv := testServer(t)
	at := testNow
	for _, st := range []pin.Status{pin.Walked, pin.SoftSet, pin.NoAnswer} {
		if _, err := srv.store.Append(pin.New(geo.Position{Lng: -97.7431, Lat: 30.2672}, st, at)); err != nil {
			t.Fatal(err)
		}
		at = at.Add(time.Minute)
	}

	r := httptest.NewRequest("GET", "/manager", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)

	body := w.Body.String()
	for _, want := range []string{"Knocks: 3", "Talks: 1", "Walks: 1", "2026-03-14", "Soft Set"} {
		if !strings.Contains(body, want) {
			t.Errorf("manager page missing %q", want)
		}
	}
}

func TestManagerMethodNotAllowed(t *testing.T) {
	srv := testServer(t)

	r := httptest.NewRequest("POST", "/manager", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}

// test helpers

// fakeLookup answers every coordinate with a fixed address.
type fakeLookup struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeLookup) Lookup(_ context.Context, lng, lat float64) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return "100 Congress Ave, Austin, TX", nil
}

func (f *fakeLookup) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func pos(lng, lat float64) geo.Position {
	return geo.Position{Lng: lng, Lat: lat}
}

func testServer(t *testing.T) *Server {
	t.Helper()
	srv, _ := testServerWithSubstrate(t, nil)
	return srv
}

// testServerWithSubstrate builds a server over sub, or over a fresh sqlite
// database when sub is nil. The clock is fixed at testNow in UTC.
func testServerWithSubstrate(t *testing.T, sub kv.Substrate) (*Server, *fakeLookup) {
	t.Helper()

	if sub == nil {
		d, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
		if err != nil {
			t.Fatalf("open db: %v", err)
		}
		t.Cleanup(func() {
			if err := d.Close(); err != nil {
				t.Errorf("close db: %v", err)
			}
		})
		sub = kv.NewSQLite(d)
	}

	store := visitlog.NewStore(sub,
		visitlog.WithLocation(time.UTC),
		visitlog.WithClock(func() time.Time { return testNow }),
	)
	lookup := &fakeLookup{}

	srv, err := NewServer(Options{
		Store:    store,
		Session:  tracking.NewSession(nil),
		Feed:     tracking.NewFeed(8),
		Backfill: geocode.NewBackfiller(lookup, store, 2, nil),
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(srv.Close)

	return srv, lookup
}

func apiRequest(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = &bytes.Buffer{}
	}

	r := httptest.NewRequest(method, path, reqBody)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v (body %q)", err, w.Body.String())
	}
	return v
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
