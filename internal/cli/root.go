// Package cli defines the cobra command tree for knock.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/doorline/knock/internal/client"
)

var (
	flagFormat string
	flagConfig string
)

// NewRootCmd creates the root cobra command with global flags.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "knock",
		Short:         "Track door-to-door visits",
		Long:          "A tool for door-to-door sales reps. Log the outcome at each house, see what you already knocked nearby, and read back daily activity.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format (text|json)")
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "server config file (YAML)")

	root.AddCommand(
		newServeCmd(),
		newLogCmd(),
		newEditCmd(),
		newPinsCmd(),
		newNearbyCmd(),
		newDaysCmd(),
		newExportCmd(),
		newStatusCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)

	return root
}

// newAPIClient creates an HTTP client for the knock API.
func newAPIClient() *client.Client {
	return client.New(getServerURL())
}

// isJSON returns true if the --format flag is set to json.
func isJSON() bool {
	return flagFormat == "json"
}
