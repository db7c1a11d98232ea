package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/doorline/knock/internal/client"
	"github.com/doorline/knock/internal/pin"
)

func newLogCmd() *cobra.Command {
	var (
		severity int
		notes    string
	)

	cmd := &cobra.Command{
		Use:   "log <lng> <lat> <status>",
		Short: "Log a visit at a position",
		Long: `Log the outcome at the house at the given longitude and latitude.

Status is one of: Walked, "No Answer", "Soft Set", Contingency, Contract, "Not Interested".
Use -- before a negative longitude:  knock log -- -97.7431 30.2672 "No Answer" --severity 8`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var sev *int
			if cmd.Flags().Changed("severity") {
				sev = &severity
			}
			return runLog(cmd.OutOrStdout(), args, sev, notes)
		},
	}

	cmd.Flags().IntVar(&severity, "severity", pin.DefaultSeverity, "severity 0-10 (No Answer, Not Interested)")
	cmd.Flags().StringVar(&notes, "notes", "", "free-text notes")

	return cmd
}

func runLog(out io.Writer, args []string, severity *int, notes string) error {
	lng, lat, err := parseLngLat(args[0], args[1])
	if err != nil {
		return err
	}

	status, ok := pin.ParseStatus(args[2])
	if !ok {
		return fmt.Errorf("unknown status %q", args[2])
	}
	if severity != nil && !status.SolicitsSeverity() {
		return fmt.Errorf("status %q does not take a severity", status)
	}

	p, err := newAPIClient().LogPin(client.LogRequest{
		Lng:      lng,
		Lat:      lat,
		Status:   string(status),
		Severity: severity,
		Notes:    notes,
	})
	if err != nil {
		return err
	}

	if isJSON() {
		return printJSON(out, p)
	}

	fmt.Fprintln(out, "Logged.")
	printPin(out, p)
	return nil
}

// parseLngLat parses a longitude and latitude argument pair.
func parseLngLat(lngArg, latArg string) (lng, lat float64, err error) {
	lng, err = strconv.ParseFloat(lngArg, 64)
	if err != nil || lng < -180 || lng > 180 {
		return 0, 0, fmt.Errorf("invalid longitude: %s", lngArg)
	}
	lat, err = strconv.ParseFloat(latArg, 64)
	if err != nil || lat < -90 || lat > 90 {
		return 0, 0, fmt.Errorf("invalid latitude: %s", latArg)
	}
	return lng, lat, nil
}
