package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/doorline/knock/internal/client"
	"github.com/doorline/knock/internal/geo"
	"github.com/doorline/knock/internal/pin"
)

func newNearbyCmd() *cobra.Command {
	var opts client.NearbyOptions

	cmd := &cobra.Command{
		Use:   "nearby [<lng> <lat>]",
		Short: "List pins near a position",
		Long:  "List the day's pins within a radius of a position. Without a position the server's last GPS fix is used.",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("accepts 0 or 2 arg(s), received %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNearby(cmd.OutOrStdout(), args, opts)
		},
	}

	cmd.Flags().Float64Var(&opts.Radius, "radius", 0, "radius in meters (default: server setting)")
	cmd.Flags().StringVar(&opts.BBox, "bbox", "", "only pins in view: minLng,minLat,maxLng,maxLat")
	cmd.Flags().StringVar(&opts.Day, "day", "", "day to search (YYYY-MM-DD, default today)")

	return cmd
}

func runNearby(out io.Writer, args []string, opts client.NearbyOptions) error {
	if len(args) == 2 {
		lng, lat, err := parseLngLat(args[0], args[1])
		if err != nil {
			return err
		}
		opts.Lng, opts.Lat = &lng, &lat
	}
	if opts.Radius < 0 {
		return fmt.Errorf("radius must not be negative")
	}
	if opts.BBox != "" {
		if _, err := geo.ParseBBox(opts.BBox); err != nil {
			return err
		}
	}
	if opts.Day != "" && !pin.ValidDayKey(opts.Day) {
		return fmt.Errorf("invalid day %q (want YYYY-MM-DD)", opts.Day)
	}

	pins, err := newAPIClient().Nearby(opts)
	if err != nil {
		return err
	}

	if isJSON() {
		return printJSON(out, pins)
	}

	return printPinTable(out, pins)
}
