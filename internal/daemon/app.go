// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	defaultShutdownTimeout = 30 * time.Second
	readHeaderTimeout      = 10 * time.Second
	idleTimeout            = 120 * time.Second
)

// Background is a long-running subsystem stopped via ctx.
type Background interface {
	Run(ctx context.Context) error
}

// App owns the HTTP server and background subsystems for one process.
type App struct {
	logger          zerolog.Logger
	listenAddr      string
	handler         http.Handler
	background      []Background
	shutdownTimeout time.Duration

	mu    sync.Mutex
	addr  net.Addr
	ready chan struct{}
}

// NewApp creates the lifecycle owner. background may be empty.
func NewApp(logger zerolog.Logger, listenAddr string, handler http.Handler, background ...Background) (*App, error) {
	if handler == nil {
		return nil, ErrMissingHandler
	}
	return &App{
		logger:          logger,
		listenAddr:      listenAddr,
		handler:         handler,
		background:      background,
		shutdownTimeout: defaultShutdownTimeout,
		ready:           make(chan struct{}),
	}, nil
}

// Ready is closed once the listener is open.
func (a *App) Ready() <-chan struct{} { return a.ready }

// Addr returns the bound listener address, or nil before Ready.
func (a *App) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addr
}

// Run blocks until ctx is cancelled or a subsystem fails, then shuts the
// server down within the shutdown timeout.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.listenAddr)
	if err != nil {
		return fmt.Errorf("%w: listen %s: %v", ErrServerStartFailed, a.listenAddr, err)
	}
	a.mu.Lock()
	a.addr = ln.Addr()
	a.mu.Unlock()
	close(a.ready)

	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info().Str("addr", ln.Addr().String()).Msg("API server listening (HTTP)")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Str("event", "api.server.failed").Msg("API server failed")
			return fmt.Errorf("API server: %w", err)
		}
		return nil
	})

	for _, bg := range a.background {
		bg := bg
		g.Go(func() error { return bg.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info().Msg("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown API server: %w", err)
		}
		return nil
	})

	return g.Wait()
}
