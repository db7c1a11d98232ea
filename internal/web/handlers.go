package web

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/doorline/knock/internal/pin"
	"github.com/doorline/knock/internal/visitlog"
)

type managerData struct {
	Today    string
	Totals   visitlog.Summary
	Days     []visitlog.Summary
	Statuses []pin.Status
	Entries  []pin.Rendered
}

// handleManager renders the read-only manager summary.
func (s *Server) handleManager(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	today := s.store.Today()
	days := s.store.Summaries()

	totals := visitlog.Summary{Day: "all", ByStatus: make(map[pin.Status]int)}
	for _, d := range days {
		totals.Knocks += d.Knocks
		totals.Talks += d.Talks
		totals.Walks += d.Walks
		totals.NoAnswers += d.NoAnswers
		for st, n := range d.ByStatus {
			totals.ByStatus[st] += n
		}
	}

	s.render(w, "manager.html", managerData{
		Today:    today,
		Totals:   totals,
		Days:     days,
		Statuses: pin.Statuses,
		Entries:  pin.RenderAll(today, s.store.Day(today)),
	})
}

// render executes a template into a buffer first so a failure does not
// leave a half-written page.
func (s *Server) render(w http.ResponseWriter, name string, data interface{}) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		http.Error(w, fmt.Sprintf("Error rendering page: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func tmplStatusColor(s pin.Status) string {
	return s.Color()
}
