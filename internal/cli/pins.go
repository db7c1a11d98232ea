package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/doorline/knock/internal/pin"
)

func newPinsCmd() *cobra.Command {
	var day string

	cmd := &cobra.Command{
		Use:   "pins",
		Short: "List a day's pins",
		Long:  "List the pins logged on a day (default today), oldest first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPins(cmd.OutOrStdout(), day)
		},
	}

	cmd.Flags().StringVar(&day, "day", "", "day to list (YYYY-MM-DD, default today)")

	return cmd
}

func runPins(out io.Writer, day string) error {
	if day != "" && !pin.ValidDayKey(day) {
		return fmt.Errorf("invalid day %q (want YYYY-MM-DD)", day)
	}

	pins, err := newAPIClient().ListPins(day)
	if err != nil {
		return err
	}

	if isJSON() {
		return printJSON(out, pins)
	}

	return printPinTable(out, pins)
}
