package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/doorline/knock/internal/pin"
)

func newExportCmd() *cobra.Command {
	var day string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a day's pins as GeoJSON",
		Long:  "Write a day's pins (default today) to stdout as a GeoJSON FeatureCollection.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.OutOrStdout(), day)
		},
	}

	cmd.Flags().StringVar(&day, "day", "", "day to export (YYYY-MM-DD, default today)")

	return cmd
}

func runExport(out io.Writer, day string) error {
	if day != "" && !pin.ValidDayKey(day) {
		return fmt.Errorf("invalid day %q (want YYYY-MM-DD)", day)
	}

	fc, err := newAPIClient().DayGeoJSON(day)
	if err != nil {
		return err
	}

	// GeoJSON is already JSON; --format only changes indentation.
	if isJSON() {
		return printJSON(out, fc)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encoding geojson: %w", err)
	}
	if _, err := fmt.Fprintln(out, string(data)); err != nil {
		return fmt.Errorf("writing geojson: %w", err)
	}
	return nil
}
