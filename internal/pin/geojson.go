package pin

import (
	"github.com/paulmach/orb/geojson"
)

// FeatureCollection renders entries as GeoJSON points carrying their
// status, derived color and timestamp as properties.
func FeatureCollection(entries []Entry) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, e := range entries {
		f := geojson.NewFeature(e.Position.Point())
		tag := e.Tag()
		f.Properties["status"] = string(e.Status)
		f.Properties["timestamp"] = e.Timestamp
		f.Properties["color"] = tag.Hex
		if tag.Band != BandNone {
			f.Properties["band"] = string(tag.Band)
		}
		if e.Severity != nil {
			f.Properties["severity"] = *e.Severity
		}
		if e.Notes != "" {
			f.Properties["notes"] = e.Notes
		}
		if e.Address != "" {
			f.Properties["address"] = e.Address
		}
		fc.Append(f)
	}
	return fc
}
