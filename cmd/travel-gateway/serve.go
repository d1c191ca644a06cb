package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nihonguide/travel-api-client/pkg/batch"
	"github.com/nihonguide/travel-api-client/pkg/config"
	"github.com/nihonguide/travel-api-client/pkg/logging"
	"github.com/spf13/cobra"
)

func newServeCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := logging.NewLogger("gateway")

	travelClient, redisClient, cleanup, err := buildClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if redisClient != nil {
		logger.Info().Msg("Connected to Redis shared tier")
	}

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: newServer(serverDeps{
			client:     travelClient,
			redis:      redisClient,
			batch:      batch.NewFetcher(travelClient, cfg.BatchConfig()),
			configured: cfg.API.APIKey != "",
		}).routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("upstream", cfg.API.BaseURL).
			Msg("Starting travel gateway")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down travel gateway")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
