package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the server connection",
		Long:  "Tests the connection to the server and shows the live tracking state.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.OutOrStdout())
		},
	}
}

func runStatus(out io.Writer) error {
	c := newAPIClient()
	serverURL := getServerURL()

	if err := c.Health(); err != nil {
		if isJSON() {
			return printJSON(out, map[string]interface{}{"server": serverURL, "reachable": false, "error": err.Error()})
		}
		fmt.Fprintf(out, "Server:   %s\n", serverURL)
		fmt.Fprintf(out, "Status:   ✗ cannot reach server (%v)\n", err)
		return nil
	}

	state, err := c.Session()
	if err != nil {
		return err
	}

	if isJSON() {
		return printJSON(out, map[string]interface{}{"server": serverURL, "reachable": true, "session": state})
	}

	fmt.Fprintf(out, "Server:   %s\n", serverURL)
	fmt.Fprintln(out, "Status:   ✓ connected")
	fmt.Fprintf(out, "GPS:      %s\n", onOff(state.Watching, "watching", "stopped"))
	if state.LastFix != nil {
		fmt.Fprintf(out, "Last fix: %.6f, %.6f at %s\n",
			state.LastFix.Position.Lat, state.LastFix.Position.Lng, state.LastFix.At.Local().Format("15:04:05"))
	}
	if state.LastError != "" {
		fmt.Fprintf(out, "GPS err:  %s\n", state.LastError)
	}
	fmt.Fprintf(out, "Follow:   %s\n", onOff(state.Following, "on", "off"))
	fmt.Fprintf(out, "Trail:    %s (%d segments)\n", onOff(state.Recording, "recording", "off"), state.Segments)

	return nil
}

func onOff(on bool, yes, no string) string {
	if on {
		return yes
	}
	return no
}
