// Package visitlog persists visit-log entries partitioned by local day.
package visitlog

import (
	"sort"

	"github.com/doorline/knock/internal/pin"
)

// DailyLog maps a YYYY-MM-DD day key to that day's entries in append order.
type DailyLog map[string][]pin.Entry

// Days returns the day keys in ascending order.
func (l DailyLog) Days() []string {
	days := make([]string, 0, len(l))
	for d := range l {
		days = append(days, d)
	}
	sort.Strings(days)
	return days
}

// Find returns the index of the entry with timestamp ts in day, or -1.
func (l DailyLog) Find(day string, ts int64) int {
	for i, e := range l[day] {
		if e.Timestamp == ts {
			return i
		}
	}
	return -1
}

// Clone returns a copy that shares no slices with l.
func (l DailyLog) Clone() DailyLog {
	out := make(DailyLog, len(l))
	for d, entries := range l {
		out[d] = append([]pin.Entry(nil), entries...)
	}
	return out
}

// Summary is the per-day activity read back by the manager view.
type Summary struct {
	Day       string             `json:"day"`
	Knocks    int                `json:"knocks"`
	Talks     int                `json:"talks"`
	Walks     int                `json:"walks"`
	NoAnswers int                `json:"no_answers"`
	ByStatus  map[pin.Status]int `json:"by_status"`
}

// Summarize counts a day's entries. Every entry is a knock; statuses that
// imply a conversation are talks; Walked entries are walks.
func Summarize(day string, entries []pin.Entry) Summary {
	s := Summary{Day: day, ByStatus: make(map[pin.Status]int)}
	for _, e := range entries {
		s.Knocks++
		s.ByStatus[e.Status]++
		switch {
		case e.Status == pin.Walked:
			s.Walks++
		case e.Status == pin.NoAnswer:
			s.NoAnswers++
		case e.Status.Conversation():
			s.Talks++
		}
	}
	return s
}
