package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/doorline/knock/internal/pin"
	"github.com/doorline/knock/internal/visitlog"
)

// printJSON marshals v as indented JSON and writes it to out.
func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printPin prints a single pin in text format.
func printPin(out io.Writer, p *pin.Rendered) {
	fmt.Fprintf(out, "Pin %d (%s)\n", p.Timestamp, p.Day)
	fmt.Fprintf(out, "  Status:   %s\n", p.Status)
	fmt.Fprintf(out, "  Position: %.6f, %.6f\n", p.Position.Lat, p.Position.Lng)
	if p.Severity != nil {
		fmt.Fprintf(out, "  Severity: %d (%s)\n", *p.Severity, p.Band)
	}
	fmt.Fprintf(out, "  Color:    %s\n", p.Color)
	if p.Address != "" {
		fmt.Fprintf(out, "  Address:  %s\n", p.Address)
	}
	if p.Notes != "" {
		fmt.Fprintf(out, "  Notes:    %s\n", p.Notes)
	}
}

// printPinTable prints pins as a formatted table.
func printPinTable(out io.Writer, pins []pin.Rendered) error {
	if len(pins) == 0 {
		fmt.Fprintln(out, "No pins found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "TIME\tTIMESTAMP\tSTATUS\tSEV\tWHERE\tNOTES"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	if _, err := fmt.Fprintln(w, "----\t---------\t------\t---\t-----\t-----"); err != nil {
		return fmt.Errorf("writing table separator: %w", err)
	}

	for _, p := range pins {
		where := p.Address
		if where == "" {
			where = fmt.Sprintf("%.5f, %.5f", p.Position.Lat, p.Position.Lng)
		}
		if _, err := fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n",
			formatClock(p.Timestamp), p.Timestamp, p.Status, formatSeverity(p.Severity),
			truncate(where, 40), truncate(p.Notes, 30)); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}

	fmt.Fprintf(out, "\nTotal: %d pins\n", len(pins))
	return nil
}

// printDayTable prints per-day summaries.
func printDayTable(out io.Writer, days []visitlog.Summary) error {
	if len(days) == 0 {
		fmt.Fprintln(out, "No activity recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "DAY\tKNOCKS\tTALKS\tWALKS\tNO ANSWER"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	if _, err := fmt.Fprintln(w, "---\t------\t-----\t-----\t---------"); err != nil {
		return fmt.Errorf("writing table separator: %w", err)
	}

	var total visitlog.Summary
	for _, d := range days {
		total.Knocks += d.Knocks
		total.Talks += d.Talks
		total.Walks += d.Walks
		total.NoAnswers += d.NoAnswers
		if _, err := fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", d.Day, d.Knocks, d.Talks, d.Walks, d.NoAnswers); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}

	fmt.Fprintf(out, "\nTotal: %d knocks, %d talks, %d walks over %d days\n",
		total.Knocks, total.Talks, total.Walks, len(days))
	return nil
}

// formatSeverity renders an optional severity.
func formatSeverity(sev *int) string {
	if sev == nil {
		return "-"
	}
	return strconv.Itoa(*sev)
}

// formatClock renders a unix-millisecond timestamp as local wall time.
func formatClock(ms int64) string {
	return time.UnixMilli(ms).Local().Format("15:04")
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
