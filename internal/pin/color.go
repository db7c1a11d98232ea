package pin

import "github.com/doorline/knock/internal/geo"

// Band is the severity band of a derived color.
type Band string

const (
	BandNone   Band = ""
	BandLow    Band = "low"
	BandMedium Band = "medium"
	BandHigh   Band = "high"
)

// Tag is the derived presentation color of an entry.
type Tag struct {
	Band Band   `json:"band,omitempty"`
	Hex  string `json:"color"`
}

var statusColors = map[Status]string{
	Walked:        "#16a34a",
	NoAnswer:      "#dc2626",
	SoftSet:       "#0ea5e9",
	Contingency:   "#7c3aed",
	Contract:      "#d4af37",
	NotInterested: "#4b5563",
}

var bandColors = map[Band]string{
	BandLow:    "#16a34a",
	BandMedium: "#facc15",
	BandHigh:   "#dc2626",
}

// unknownColor marks pins whose status is not recognized, and pending pins.
const unknownColor = "#9ca3af"

// Color returns the fixed color of the status label.
func (s Status) Color() string {
	if c, ok := statusColors[s]; ok {
		return c
	}
	return unknownColor
}

// SeverityBand maps a rating to its band.
func SeverityBand(sev int) Band {
	switch {
	case sev >= 7:
		return BandHigh
	case sev >= 4:
		return BandMedium
	default:
		return BandLow
	}
}

// ColorTag derives the color of a pin. It is never stored.
func ColorTag(status Status, severity *int) Tag {
	if !status.SolicitsSeverity() || severity == nil {
		return Tag{Band: BandNone, Hex: status.Color()}
	}
	band := SeverityBand(ClampSeverity(*severity))
	return Tag{Band: band, Hex: bandColors[band]}
}

// Rendered is an entry with its day and derived color, as served to map clients.
type Rendered struct {
	Day       string       `json:"day"`
	Position  geo.Position `json:"position"`
	Status    Status       `json:"status"`
	Timestamp int64        `json:"timestamp"`
	Severity  *int         `json:"severity,omitempty"`
	Notes     string       `json:"notes,omitempty"`
	Address   string       `json:"address,omitempty"`
	Color     string       `json:"color"`
	Band      Band         `json:"band,omitempty"`
}

// Render attaches the derived color to e.
func (e Entry) Render(day string) Rendered {
	tag := e.Tag()
	return Rendered{
		Day:       day,
		Position:  e.Position,
		Status:    e.Status,
		Timestamp: e.Timestamp,
		Severity:  e.Severity,
		Notes:     e.Notes,
		Address:   e.Address,
		Color:     tag.Hex,
		Band:      tag.Band,
	}
}

// RenderAll renders a day's entries in order.
func RenderAll(day string, entries []Entry) []Rendered {
	out := make([]Rendered, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Render(day))
	}
	return out
}
