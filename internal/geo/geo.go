// Package geo provides coordinates, great-circle distance and map view bounds.
package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// EarthRadiusMeters is the mean earth radius used for distances.
const EarthRadiusMeters = 6_371_000.0

// Position is a geographic coordinate. Longitude comes first, matching
// the {lng, lat} order used on the wire.
type Position struct {
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
}

// Point converts p to an orb.Point.
func (p Position) Point() orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

// FromPoint converts an orb.Point to a Position.
func FromPoint(pt orb.Point) Position {
	return Position{Lng: pt.Lon(), Lat: pt.Lat()}
}

// String formats the position as "lng,lat".
func (p Position) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lng, p.Lat)
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Haversine returns the great-circle distance between a and b in meters.
func Haversine(a, b Position) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*sinLng*sinLng

	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// Bounds is the rectangular region currently visible on the map.
type Bounds struct {
	bound orb.Bound
}

// NewBounds creates bounds from south-west and north-east corners.
func NewBounds(sw, ne Position) Bounds {
	return Bounds{bound: orb.Bound{Min: sw.Point(), Max: ne.Point()}}
}

// Contains reports whether p is inside the bounds (edges included).
func (b Bounds) Contains(p Position) bool {
	return b.bound.Contains(p.Point())
}

// SouthWest returns the minimum corner.
func (b Bounds) SouthWest() Position {
	return FromPoint(b.bound.Min)
}

// NorthEast returns the maximum corner.
func (b Bounds) NorthEast() Position {
	return FromPoint(b.bound.Max)
}

// ParseBBox parses "minLng,minLat,maxLng,maxLat".
func ParseBBox(s string) (Bounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Bounds{}, fmt.Errorf("bbox must have 4 comma-separated values, got %d", len(parts))
	}

	var v [4]float64
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return Bounds{}, fmt.Errorf("parsing bbox value %q: %w", part, err)
		}
		v[i] = f
	}

	if v[0] > v[2] || v[1] > v[3] {
		return Bounds{}, fmt.Errorf("bbox minimum exceeds maximum: %s", s)
	}

	return NewBounds(Position{Lng: v[0], Lat: v[1]}, Position{Lng: v[2], Lat: v[3]}), nil
}

// Valid reports whether the coordinate is within WGS84 ranges.
func (p Position) Valid() bool {
	return p.Lng >= -180 && p.Lng <= 180 && p.Lat >= -90 && p.Lat <= 90 &&
		!math.IsNaN(p.Lng) && !math.IsNaN(p.Lat)
}
