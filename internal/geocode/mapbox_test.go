package geocode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewMapbox(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"valid token", "pk.test", false},
		{"empty token", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMapbox(tt.token, 0)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if m == nil {
				t.Fatal("expected client, got nil")
			}
		})
	}
}

func TestMapboxLookup(t *testing.T) {
	tests := []struct {
		name       string
		response   string
		statusCode int
		want       string
		wantErr    bool
	}{
		{
			name: "first feature wins",
			response: `{"features": [
				{"place_name": "100 Congress Ave, Austin, Texas 78701, United States"},
				{"place_name": "Austin, Texas, United States"}
			]}`,
			statusCode: http.StatusOK,
			want:       "100 Congress Ave, Austin, Texas 78701, United States",
		},
		{
			name:       "no features",
			response:   `{"features": []}`,
			statusCode: http.StatusOK,
			wantErr:    true,
		},
		{
			name:       "empty place name",
			response:   `{"features": [{"place_name": ""}]}`,
			statusCode: http.StatusOK,
			wantErr:    true,
		},
		{
			name:       "unauthorized",
			response:   `{"message": "Not Authorized - Invalid Token"}`,
			statusCode: http.StatusUnauthorized,
			wantErr:    true,
		},
		{
			name:       "invalid json",
			response:   `not json`,
			statusCode: http.StatusOK,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/geocoding/v5/mapbox.places/-97.7431,30.2672.json" {
					t.Errorf("path = %q", r.URL.Path)
				}
				if got := r.URL.Query().Get("access_token"); got != "pk.test" {
					t.Errorf("access_token = %q, want %q", got, "pk.test")
				}
				w.WriteHeader(tt.statusCode)
				writeResponse(t, w, tt.response)
			}))
			defer server.Close()

			m := testMapbox(t, server.URL)

			got, err := m.Lookup(context.Background(), -97.7431, 30.2672)
			if tt.wantErr {
				if !errors.Is(err, ErrAddressLookupFailed) {
					t.Fatalf("err = %v, want ErrAddressLookupFailed", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("address = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMapboxLookupCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeResponse(t, w, `{"features": [{"place_name": "x"}]}`)
	}))
	defer server.Close()

	m := testMapbox(t, server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.Lookup(ctx, 1, 2); !errors.Is(err, ErrAddressLookupFailed) {
		t.Errorf("err = %v, want ErrAddressLookupFailed", err)
	}
}

// writeResponse writes a string to an http.ResponseWriter in tests.
func writeResponse(t *testing.T, w http.ResponseWriter, s string) {
	t.Helper()
	if _, err := fmt.Fprint(w, s); err != nil {
		t.Errorf("write response: %v", err)
	}
}

// testMapbox creates an unthrottled client pointed at a test server.
func testMapbox(t *testing.T, baseURL string) *Mapbox {
	t.Helper()
	m, err := NewMapbox("pk.test", 0)
	if err != nil {
		t.Fatalf("new mapbox: %v", err)
	}
	SetTestURL(m, baseURL)
	return m
}
