package pin

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/doorline/knock/internal/geo"
)

var austin = geo.Position{Lng: -97.7431, Lat: 30.2672}

func intPtr(i int) *int { return &i }

func TestParseStatus(t *testing.T) {
	tests := []struct {
		input string
		want  Status
		ok    bool
	}{
		{"Walked", Walked, true},
		{"no answer", NoAnswer, true},
		{"no_answer", NoAnswer, true},
		{"SOFT-SET", SoftSet, true},
		{"  Contract ", Contract, true},
		{"not interested", NotInterested, true},
		{"maybe", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseStatus(tt.input)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ParseStatus(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestNewClampsSeverity(t *testing.T) {
	at := time.Date(2026, 3, 2, 15, 4, 5, 0, time.UTC)

	high := New(austin, NoAnswer, at, WithSeverity(42))
	if high.Severity == nil || *high.Severity != MaxSeverity {
		t.Errorf("severity = %v, want %d", high.Severity, MaxSeverity)
	}

	low := New(austin, NotInterested, at, WithSeverity(-3))
	if low.Severity == nil || *low.Severity != MinSeverity {
		t.Errorf("severity = %v, want %d", low.Severity, MinSeverity)
	}

	if high.Timestamp != at.UnixMilli() {
		t.Errorf("timestamp = %d, want %d", high.Timestamp, at.UnixMilli())
	}
}

func TestNewDropsSeverityForNonSolicitingStatus(t *testing.T) {
	e := New(austin, Contract, time.Now(), WithSeverity(8), WithNotes("  signed  "))
	if e.Severity != nil {
		t.Errorf("severity = %d, want nil", *e.Severity)
	}
	if e.Notes != "signed" {
		t.Errorf("notes = %q, want %q", e.Notes, "signed")
	}
}

func TestDayKey(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Skipf("tz database unavailable: %v", err)
	}

	// 03:00 UTC is still the previous evening in Chicago.
	at := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)
	if got := DayKey(at, time.UTC); got != "2026-03-02" {
		t.Errorf("utc day = %q", got)
	}
	if got := DayKey(at, chicago); got != "2026-03-01" {
		t.Errorf("chicago day = %q", got)
	}

	e := New(austin, Walked, at)
	if got := e.Day(chicago); got != "2026-03-01" {
		t.Errorf("entry day = %q", got)
	}
}

func TestValidDayKey(t *testing.T) {
	if !ValidDayKey("2026-02-28") {
		t.Error("expected valid day")
	}
	for _, bad := range []string{"", "2026-2-8", "2026-02-30", "today"} {
		if ValidDayKey(bad) {
			t.Errorf("expected %q to be invalid", bad)
		}
	}
}

func TestValidate(t *testing.T) {
	at := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		entry   Entry
		wantErr bool
	}{
		{"valid", New(austin, Walked, at), false},
		{"valid with severity", New(austin, NoAnswer, at, WithSeverity(3)), false},
		{"unknown status", Entry{Position: austin, Status: "Maybe", Timestamp: 1}, true},
		{"missing status", Entry{Position: austin, Timestamp: 1}, true},
		{"zero timestamp", Entry{Position: austin, Status: Walked}, true},
		{"bad latitude", Entry{Position: geo.Position{Lng: 0, Lat: 91}, Status: Walked, Timestamp: 1}, true},
		{"bad longitude", Entry{Position: geo.Position{Lng: -181, Lat: 0}, Status: Walked, Timestamp: 1}, true},
		{"severity out of range", Entry{Position: austin, Status: NoAnswer, Timestamp: 1, Severity: intPtr(11)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidEntry) {
					t.Fatalf("error = %v, want ErrInvalidEntry", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestJSONShape(t *testing.T) {
	e := New(austin, NoAnswer, time.UnixMilli(1767225600000), WithSeverity(8))

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	want := `{"position":{"lng":-97.7431,"lat":30.2672},"status":"No Answer","timestamp":1767225600000,"severity":8}`
	if string(data) != want {
		t.Errorf("json = %s\nwant   %s", data, want)
	}
}

func TestUnmarshalLegacyFields(t *testing.T) {
	legacy := `{
		"lngLat": {"lng": -97.745, "lat": 30.268},
		"color": "#dc2626",
		"status": "No Answer",
		"time": 1767225600000,
		"severity": null,
		"notes": null,
		"address": "100 Congress Ave, Austin, Texas"
	}`

	var got Entry
	if err := json.Unmarshal([]byte(legacy), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	want := Entry{
		Position:  geo.Position{Lng: -97.745, Lat: 30.268},
		Status:    NoAnswer,
		Timestamp: 1767225600000,
		Address:   "100 Congress Ave, Austin, Texas",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("entry mismatch (-want +got):\n%s", diff)
	}
}
