// SPDX-License-Identifier: MIT

// Package daemon wires the acquisition pipeline together and owns the process lifecycle.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"time"

	"github.com/ManuGH/courtrec/internal/acquisition"
	"github.com/ManuGH/courtrec/internal/api"
	"github.com/ManuGH/courtrec/internal/booking"
	"github.com/ManuGH/courtrec/internal/config"
	"github.com/ManuGH/courtrec/internal/download"
	xglog "github.com/ManuGH/courtrec/internal/log"
	"github.com/ManuGH/courtrec/internal/resilience"
	"github.com/ManuGH/courtrec/internal/runlock"
	"github.com/ManuGH/courtrec/internal/store"
	"github.com/ManuGH/courtrec/internal/surveillance"
	"github.com/ManuGH/courtrec/internal/telemetry"
	"golang.org/x/time/rate"
)

const (
	loginFailureThreshold = 3
	loginBackoff          = 5 * time.Minute
)

// ShutdownHook performs cleanup during graceful shutdown. Hooks run in
// reverse registration order.
type ShutdownHook func(ctx context.Context) error

type namedHook struct {
	name string
	hook ShutdownHook
}

// Components is the fully wired object graph.
type Components struct {
	Config    config.AppConfig
	Location  *time.Location
	Store     *store.Store
	Sessions  *surveillance.SessionManager
	Locator   *surveillance.Locator
	Transfer  *surveillance.Transfer
	Downloads *download.Service
	Driver    *acquisition.Driver
	Scheduler *acquisition.Scheduler
	Handler   http.Handler

	hooks []namedHook
}

func (c *Components) onShutdown(name string, hook ShutdownHook) {
	c.hooks = append(c.hooks, namedHook{name: name, hook: hook})
}

// Close runs the shutdown hooks in LIFO order and joins their errors.
func (c *Components) Close(ctx context.Context) error {
	logger := xglog.WithComponent("daemon")
	var errs []error
	for i := len(c.hooks) - 1; i >= 0; i-- {
		h := c.hooks[i]
		if err := h.hook(ctx); err != nil {
			logger.Warn().Err(err).Str("hook", h.name).Msg("shutdown hook failed")
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
			continue
		}
		logger.Debug().Str("hook", h.name).Msg("shutdown hook completed")
	}
	c.hooks = nil
	return errors.Join(errs...)
}

// Bootstrap builds every component from cfg. On error, whatever was already
// opened is closed again.
func Bootstrap(ctx context.Context, cfg config.AppConfig) (_ *Components, err error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	c := &Components{Config: cfg, Location: loc}
	defer func() {
		if err != nil {
			_ = c.Close(context.WithoutCancel(ctx))
		}
	}()

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: cfg.Version,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,

		SurveillanceHost: cfg.Surveillance.Host,
		Timezone:         cfg.Timezone,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	c.onShutdown("telemetry", tp.Shutdown)

	st, err := store.Open(ctx, cfg.Store.Path, store.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	c.Store = st
	c.onShutdown("store", func(context.Context) error { return st.Close() })

	client := surveillance.NewClient(cfg.Surveillance.BaseURL(), surveillance.Options{
		Timeout:    cfg.Surveillance.Timeout,
		MaxRetries: cfg.Surveillance.MaxRetries,
		RateLimit:  rate.Limit(cfg.Surveillance.RateLimit),
		UserAgent:  "courtrec/" + cfg.Version,
	})
	c.Sessions = surveillance.NewSessionManager(client, surveillance.Credentials{
		Account:  cfg.Surveillance.Account,
		Password: cfg.Surveillance.Password,
	}, surveillance.WithLoginBreaker(resilience.NewCircuitBreaker("surveillance-login", loginFailureThreshold, loginBackoff)))
	c.onShutdown("surveillance-sessions", func(ctx context.Context) error {
		c.Sessions.Logout(ctx)
		return nil
	})
	c.Locator = surveillance.NewLocator(c.Sessions)
	c.Transfer = surveillance.NewTransfer(c.Sessions, surveillance.CopyPolicy{
		Interval:    cfg.Transfer.PollInterval,
		MaxAttempts: cfg.Transfer.MaxPolls,
	})
	c.Downloads = download.NewService(st, c.Locator, c.Transfer, path.Clean(cfg.Transfer.DestFolder), loc)

	c.Handler = api.NewServer(api.Config{
		Username:    cfg.Server.Username,
		Password:    cfg.Server.Password,
		RateLimit:   cfg.Server.RateLimit,
		SummaryPath: cfg.Acquisition.SummaryFile,
		Version:     cfg.Version,
	}, api.Deps{
		Bookings:   st,
		Downloader: c.Downloads,
		Health:     st,
	}).Routes()

	creds := booking.Credentials{Username: cfg.BookingAPI.Username, Password: cfg.BookingAPI.Password}
	c.Driver = acquisition.NewDriver(acquisition.Deps{
		Source:          booking.NewSourceClient(cfg.BookingAPI.BaseURL, creds, cfg.BookingAPI.Timeout, nil),
		Downloader:      acquisition.NewHTTPDownloader(cfg.BookingAPI.BaseURL, creds, cfg.Acquisition.DispatchTimeout, nil),
		Pacer:           acquisition.NewIntervalPacer(cfg.Acquisition.Pacing),
		Location:        loc,
		DispatchTimeout: cfg.Acquisition.DispatchTimeout,
		SummaryPath:     cfg.Acquisition.SummaryFile,
	})

	var locker acquisition.Locker
	if cfg.Redis.Addr != "" {
		lock, err := runlock.New(ctx, runlock.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.LockTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("connect run lock: %w", err)
		}
		c.onShutdown("runlock", func(context.Context) error { return lock.Close() })
		locker = lock
	}
	c.Scheduler = acquisition.NewScheduler(c.Driver, cfg.Acquisition.ScheduleMinute, loc, locker)

	return c, nil
}
