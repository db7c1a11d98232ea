package cli

import (
	"io"

	"github.com/spf13/cobra"
)

func newDaysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "days",
		Short: "Summarize activity per day",
		Long:  "Show knocks, talks, walks and no-answers for every day with activity, newest first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDays(cmd.OutOrStdout())
		},
	}
}

func runDays(out io.Writer) error {
	days, err := newAPIClient().Days()
	if err != nil {
		return err
	}

	if isJSON() {
		return printJSON(out, days)
	}

	return printDayTable(out, days)
}
