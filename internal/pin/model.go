// Package pin provides the visit-log entry domain model.
package pin

import (
	"strings"
	"time"

	"github.com/doorline/knock/internal/geo"
)

// Status is the outcome recorded for a house.
type Status string

const (
	Walked        Status = "Walked"
	NoAnswer      Status = "No Answer"
	SoftSet       Status = "Soft Set"
	Contingency   Status = "Contingency"
	Contract      Status = "Contract"
	NotInterested Status = "Not Interested"
)

// Statuses is the set of allowed statuses in display order.
var Statuses = []Status{Walked, NoAnswer, SoftSet, Contingency, Contract, NotInterested}

// IsValid checks if a status is recognized.
func (s Status) IsValid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// ParseStatus matches a label case-insensitively, also accepting
// underscores or dashes in place of spaces ("no_answer").
func ParseStatus(label string) (Status, bool) {
	norm := strings.NewReplacer("_", " ", "-", " ").Replace(strings.TrimSpace(label))
	for _, v := range Statuses {
		if strings.EqualFold(norm, string(v)) {
			return v, true
		}
	}
	return "", false
}

// SolicitsSeverity reports whether the status asks the rep for a severity rating.
func (s Status) SolicitsSeverity() bool {
	return s == NoAnswer || s == NotInterested
}

// Conversation reports whether the status implies the rep talked to someone.
func (s Status) Conversation() bool {
	switch s {
	case SoftSet, Contingency, Contract, NotInterested:
		return true
	}
	return false
}

const (
	MinSeverity = 0
	MaxSeverity = 10
	// DefaultSeverity is the value the severity editor starts from.
	DefaultSeverity = 5
)

// Entry is one recorded observation about a house.
//
// Timestamp is the creation instant in unix milliseconds and identifies
// the entry within its day. Position and Timestamp never change after creation.
type Entry struct {
	Position  geo.Position `json:"position"`
	Status    Status       `json:"status" validate:"required,pinstatus"`
	Timestamp int64        `json:"timestamp" validate:"gt=0"`
	Severity  *int         `json:"severity,omitempty" validate:"omitempty,gte=0,lte=10"`
	Notes     string       `json:"notes,omitempty"`
	Address   string       `json:"address,omitempty"`
}

// Option customizes an entry built by New.
type Option func(*Entry)

// WithSeverity records a severity rating.
func WithSeverity(severity int) Option {
	return func(e *Entry) {
		e.Severity = &severity
	}
}

// WithNotes records free-text notes.
func WithNotes(notes string) Option {
	return func(e *Entry) {
		e.Notes = notes
	}
}

// New builds a normalized entry created at the given instant.
func New(pos geo.Position, status Status, at time.Time, opts ...Option) Entry {
	e := Entry{
		Position:  pos,
		Status:    status,
		Timestamp: at.UnixMilli(),
	}
	for _, opt := range opts {
		opt(&e)
	}
	e.Normalize()
	return e
}

// Normalize clamps severity into range and drops it for statuses that don't ask for one.
func (e *Entry) Normalize() {
	e.Notes = strings.TrimSpace(e.Notes)
	if e.Severity == nil {
		return
	}
	if !e.Status.SolicitsSeverity() {
		e.Severity = nil
		return
	}
	sev := ClampSeverity(*e.Severity)
	e.Severity = &sev
}

// ClampSeverity limits a rating to [MinSeverity, MaxSeverity].
func ClampSeverity(sev int) int {
	if sev < MinSeverity {
		return MinSeverity
	}
	if sev > MaxSeverity {
		return MaxSeverity
	}
	return sev
}

// CreatedAt returns the creation instant.
func (e Entry) CreatedAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Day returns the day partition key of the entry in loc.
func (e Entry) Day(loc *time.Location) string {
	return DayKey(e.CreatedAt(), loc)
}

// Tag returns the presentation color derived from status and severity.
func (e Entry) Tag() Tag {
	return ColorTag(e.Status, e.Severity)
}

// DayLayout is the format of day partition keys.
const DayLayout = "2006-01-02"

// DayKey formats t as a YYYY-MM-DD key in loc (time.Local when nil).
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DayLayout)
}

// ValidDayKey checks that day is a YYYY-MM-DD date.
func ValidDayKey(day string) bool {
	_, err := time.Parse(DayLayout, day)
	return err == nil
}
