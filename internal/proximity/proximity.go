// Package proximity selects the entries worth rendering around the rep.
package proximity

import (
	"github.com/doorline/knock/internal/geo"
	"github.com/doorline/knock/internal/pin"
)

// DefaultRadiusMeters is the radius the map uses around the current fix.
const DefaultRadiusMeters = 4000

// InView reports whether a position is inside the visible map region.
type InView func(geo.Position) bool

// Everywhere is an InView that accepts every position.
func Everywhere(geo.Position) bool { return true }

// Filter returns the entries within radiusMeters of current that are also
// in view, in their input order. A nil current position or a non-positive
// or NaN radius yields an empty result. An entry is kept only when its
// distance is known to be within the radius, so NaN coordinates never match.
// Entries at identical coordinates are all kept.
func Filter(current *geo.Position, entries []pin.Entry, radiusMeters float64, inView InView) []pin.Entry {
	out := []pin.Entry{}
	if current == nil || !(radiusMeters > 0) {
		return out
	}
	if inView == nil {
		inView = Everywhere
	}

	for _, e := range entries {
		if d := geo.Haversine(*current, e.Position); !(d <= radiusMeters) {
			continue
		}
		if !inView(e.Position) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Nearby filters with the view given as bounds. Nil bounds means the whole map.
func Nearby(current *geo.Position, entries []pin.Entry, radiusMeters float64, view *geo.Bounds) []pin.Entry {
	if view == nil {
		return Filter(current, entries, radiusMeters, Everywhere)
	}
	return Filter(current, entries, radiusMeters, view.Contains)
}
