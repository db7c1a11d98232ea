package proximity

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/doorline/knock/internal/geo"
	"github.com/doorline/knock/internal/pin"
)

var (
	current = geo.Position{Lng: -97.7431, Lat: 30.2672}
	near    = geo.Position{Lng: -97.7450, Lat: 30.2680}
	far     = geo.Position{Lng: -97.9000, Lat: 30.4000}
	base    = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
)

func entryAt(pos geo.Position, i int) pin.Entry {
	return pin.New(pos, pin.Walked, base.Add(time.Duration(i)*time.Second))
}

func timestamps(entries []pin.Entry) []int64 {
	out := make([]int64, len(entries))
	for i, e := range entries {
		out[i] = e.Timestamp
	}
	return out
}

func TestFilterAustinScenario(t *testing.T) {
	a := entryAt(near, 0)
	b := entryAt(far, 1)

	got := Filter(&current, []pin.Entry{a, b}, 4000, Everywhere)
	if diff := cmp.Diff([]pin.Entry{a}, got); diff != "" {
		t.Errorf("Filter (-want +got):\n%s", diff)
	}
}

func TestFilter(t *testing.T) {
	entries := []pin.Entry{
		entryAt(near, 0),
		entryAt(far, 1),
		entryAt(current, 2),
		entryAt(near, 3),
	}
	westOfCurrent := func(p geo.Position) bool { return p.Lng < current.Lng }

	tests := []struct {
		name    string
		current *geo.Position
		radius  float64
		inView  InView
		want    []int64
	}{
		{"keeps order and duplicates", &current, 4000, Everywhere, []int64{entries[0].Timestamp, entries[2].Timestamp, entries[3].Timestamp}},
		{"view predicate applied", &current, 4000, westOfCurrent, []int64{entries[0].Timestamp, entries[3].Timestamp}},
		{"nil predicate means everywhere", &current, 4000, nil, []int64{entries[0].Timestamp, entries[2].Timestamp, entries[3].Timestamp}},
		{"large radius includes far", &current, 50000, Everywhere, timestamps(entries)},
		{"tiny radius keeps exact match", &current, 1, Everywhere, []int64{entries[2].Timestamp}},
		{"no fix", nil, 4000, Everywhere, []int64{}},
		{"zero radius", &current, 0, Everywhere, []int64{}},
		{"negative radius", &current, -10, Everywhere, []int64{}},
		{"NaN radius", &current, math.NaN(), Everywhere, []int64{}},
		{"NaN fix", &geo.Position{Lng: math.NaN(), Lat: 0}, 4000, Everywhere, []int64{}},
		{"infinite radius with NaN fix", &geo.Position{Lng: 0, Lat: math.NaN()}, math.Inf(1), Everywhere, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := timestamps(Filter(tt.current, entries, tt.radius, tt.inView))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Filter (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFilterEmptyInput(t *testing.T) {
	got := Filter(&current, nil, 4000, Everywhere)
	if got == nil || len(got) != 0 {
		t.Errorf("Filter(nil) = %#v, want empty slice", got)
	}
}

func TestFilterExcludesBeyondRadius(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	always := func(geo.Position) bool { return true }

	for i := 0; i < 500; i++ {
		c := geo.Position{Lng: rng.Float64()*360 - 180, Lat: rng.Float64()*180 - 90}
		p := geo.Position{Lng: c.Lng + rng.Float64()*0.2 - 0.1, Lat: c.Lat + rng.Float64()*0.2 - 0.1}
		if p.Lat > 90 || p.Lat < -90 {
			continue
		}
		radius := rng.Float64() * 15000

		got := Filter(&c, []pin.Entry{entryAt(p, i)}, radius, always)
		d := geo.Haversine(c, p)
		if d > radius && len(got) != 0 {
			t.Fatalf("entry at %.1fm included with radius %.1fm", d, radius)
		}
		if d <= radius && len(got) != 1 {
			t.Fatalf("entry at %.1fm excluded with radius %.1fm", d, radius)
		}
	}
}

func TestNearby(t *testing.T) {
	entries := []pin.Entry{entryAt(near, 0), entryAt(current, 1)}

	view := geo.NewBounds(geo.Position{Lng: -97.746, Lat: 30.267}, geo.Position{Lng: -97.744, Lat: 30.269})
	got := timestamps(Nearby(&current, entries, 4000, &view))
	if diff := cmp.Diff([]int64{entries[0].Timestamp}, got); diff != "" {
		t.Errorf("Nearby with bounds (-want +got):\n%s", diff)
	}

	got = timestamps(Nearby(&current, entries, 4000, nil))
	if len(got) != 2 {
		t.Errorf("Nearby without bounds = %v, want both", got)
	}
}
