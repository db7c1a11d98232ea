package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/doorline/knock/internal/client"
	"github.com/doorline/knock/internal/pin"
)

func newEditCmd() *cobra.Command {
	var (
		day      string
		status   string
		severity int
		notes    string
	)

	cmd := &cobra.Command{
		Use:   "edit <timestamp>",
		Short: "Edit a logged visit",
		Long:  "Change the status, severity or notes of a pin. The pin is identified by its timestamp (see 'knock pins') and its day (default today).",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req client.EditRequest
			if cmd.Flags().Changed("status") {
				req.Status = &status
			}
			if cmd.Flags().Changed("severity") {
				req.Severity = &severity
			}
			if cmd.Flags().Changed("notes") {
				req.Notes = &notes
			}
			return runEdit(cmd.OutOrStdout(), args[0], day, req)
		},
	}

	cmd.Flags().StringVar(&day, "day", "", "day of the pin (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().IntVar(&severity, "severity", pin.DefaultSeverity, "new severity 0-10")
	cmd.Flags().StringVar(&notes, "notes", "", "new notes")

	return cmd
}

func runEdit(out io.Writer, tsArg, day string, req client.EditRequest) error {
	ts, err := strconv.ParseInt(tsArg, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid pin timestamp: %s", tsArg)
	}
	if day != "" && !pin.ValidDayKey(day) {
		return fmt.Errorf("invalid day %q (want YYYY-MM-DD)", day)
	}
	if req.Status == nil && req.Severity == nil && req.Notes == nil {
		return fmt.Errorf("nothing to change: pass --status, --severity or --notes")
	}
	if req.Status != nil {
		status, ok := pin.ParseStatus(*req.Status)
		if !ok {
			return fmt.Errorf("unknown status %q", *req.Status)
		}
		label := string(status)
		req.Status = &label
	}

	p, err := newAPIClient().EditPin(day, ts, req)
	if err != nil {
		return err
	}

	if isJSON() {
		return printJSON(out, p)
	}

	fmt.Fprintln(out, "Updated.")
	printPin(out, p)
	return nil
}
