package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nihonguide/travel-api-client/pkg/config"
	"github.com/nihonguide/travel-api-client/pkg/fallback"
	"github.com/spf13/cobra"
)

func newLookupCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	var noFallback bool

	cmd := &cobra.Command{
		Use:   "lookup <place|details|weather|rate> [args...]",
		Short: "Run a single upstream lookup and print it as JSON",
		Example: `  travel-gateway lookup place "Tokyo Tower"
  travel-gateway lookup details ChIJ-tokyo
  travel-gateway lookup weather Kyoto
  travel-gateway lookup rate`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			travelClient, _, cleanup, err := buildClient(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			arg := strings.Join(args[1:], " ")

			var result any
			switch args[0] {
			case "place":
				if noFallback {
					result, err = travelClient.SearchPlace(ctx, arg)
				} else {
					result = fallback.ResolvePlace(ctx, travelClient, arg)
				}
			case "details":
				result, err = travelClient.GetPlaceDetails(ctx, arg)
			case "weather":
				result, err = travelClient.GetWeather(ctx, arg)
			case "rate":
				result, err = travelClient.GetExchangeRate(ctx)
			default:
				return fmt.Errorf("unknown lookup kind %q", args[0])
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().BoolVar(&noFallback, "no-fallback", false, "Fail instead of printing a placeholder place")
	return cmd
}
