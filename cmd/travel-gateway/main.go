// Command travel-gateway serves the travel data API to page renderers and
// offers one-shot lookups from the command line.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/nihonguide/travel-api-client/pkg/client"
	"github.com/nihonguide/travel-api-client/pkg/config"
	"github.com/nihonguide/travel-api-client/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "travel-gateway",
		Short:         "Travel data gateway with request coalescing and rate-limit retry",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("TRAVEL_CONFIG"), "Path to YAML config file")

	loadConfig := func() (*config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		logCfg := cfg.LoggingConfig()
		logCfg.Service = "travel-gateway"
		logging.Setup(logCfg)
		return cfg, nil
	}

	root.AddCommand(newServeCmd(loadConfig), newLookupCmd(loadConfig))
	return root
}

// buildClient connects the shared tier, if configured, and creates the client.
// The returned cleanup closes both.
func buildClient(ctx context.Context, cfg *config.Config) (*client.Client, *redis.Client, func(), error) {
	opts, err := cfg.RedisOptions()
	if err != nil {
		return nil, nil, nil, err
	}

	var redisClient *redis.Client
	if opts != nil {
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return nil, nil, nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
		}
	}

	clientCfg := cfg.ClientConfig()
	clientCfg.Redis = redisClient

	travelClient, err := client.New(clientCfg)
	if err != nil {
		if redisClient != nil {
			redisClient.Close()
		}
		return nil, nil, nil, fmt.Errorf("create travel client: %w", err)
	}

	cleanup := func() {
		travelClient.Close()
		if redisClient != nil {
			redisClient.Close()
		}
	}
	return travelClient, redisClient, cleanup, nil
}
