// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"net/url"

	"github.com/ManuGH/courtrec/internal/daemon"
	xglog "github.com/ManuGH/courtrec/internal/log"
	"github.com/ManuGH/courtrec/internal/validation"
	"github.com/ManuGH/courtrec/internal/version"
	"github.com/spf13/cobra"
)

// maskURL removes user info from a URL string for safe logging.
func maskURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	u.User = nil
	return u.String()
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var noScheduler, skipChecks bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the booking API and run the hourly acquisition scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c, err := opts.bootstrap(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close(context.WithoutCancel(ctx)) }()

			logger := xglog.WithComponent("daemon")
			cfg := c.Config
			logger.Info().
				Str(xglog.FieldEvent, "startup").
				Str("version", version.Version).
				Str("commit", version.Commit).
				Str("build_date", version.Date).
				Str("addr", cfg.Server.ListenAddr).
				Msg("starting courtrec")
			logger.Info().Msgf("→ NAS: %s (account: %s)", maskURL(cfg.Surveillance.BaseURL()), cfg.Surveillance.Account)
			logger.Info().Msgf("→ Destination: %s", cfg.Transfer.DestFolder)
			logger.Info().Msgf("→ Booking API: %s", maskURL(cfg.BookingAPI.BaseURL))
			logger.Info().Msgf("→ Schedule: hourly at :%02d (%s)", cfg.Acquisition.ScheduleMinute, cfg.Timezone)
			if cfg.Server.Username == "" {
				logger.Warn().Str("security", "weak").Msg("→ Service credential: NOT configured (auth disabled)")
			}
			if cfg.Redis.Addr != "" {
				logger.Info().Msgf("→ Run lock: redis %s", cfg.Redis.Addr)
			}

			if !skipChecks {
				if err := validation.PerformStartupChecks(ctx, cfg, validation.Targets{NAS: c.Locator, Store: c.Store}); err != nil {
					return err
				}
			}

			var background []daemon.Background
			if !noScheduler {
				background = append(background, c.Scheduler)
			}
			app, err := daemon.NewApp(logger, cfg.Server.ListenAddr, c.Handler, background...)
			if err != nil {
				return err
			}
			if err := app.Run(ctx); err != nil {
				return err
			}
			logger.Info().Msg("server exiting")
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipChecks, "skip-checks", false, "skip pre-flight data directory and NAS checks")
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "serve the API only, without hourly runs")
	return cmd
}
