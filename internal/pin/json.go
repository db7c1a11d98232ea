package pin

import (
	"encoding/json"

	"github.com/doorline/knock/internal/geo"
)

// entryWire accepts both the current field names and the ones written by
// the legacy browser client (lngLat, time, and a stored color that is ignored).
type entryWire struct {
	Position  *geo.Position `json:"position"`
	LngLat    *geo.Position `json:"lngLat"`
	Status    Status        `json:"status"`
	Timestamp int64         `json:"timestamp"`
	Time      int64         `json:"time"`
	Severity  *int          `json:"severity"`
	Notes     *string       `json:"notes"`
	Address   *string       `json:"address"`
}

// UnmarshalJSON decodes an entry, accepting legacy field names.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var w entryWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*e = Entry{Status: w.Status, Timestamp: w.Timestamp, Severity: w.Severity}
	switch {
	case w.Position != nil:
		e.Position = *w.Position
	case w.LngLat != nil:
		e.Position = *w.LngLat
	}
	if e.Timestamp == 0 {
		e.Timestamp = w.Time
	}
	if w.Notes != nil {
		e.Notes = *w.Notes
	}
	if w.Address != nil {
		e.Address = *w.Address
	}
	return nil
}
