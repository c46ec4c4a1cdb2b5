// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the collaborator endpoints the acquisition driver talks
// to, plus health, metrics and the last run summary.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ManuGH/courtrec/internal/booking"
	"github.com/ManuGH/courtrec/internal/download"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AutoDownloader runs the auto-download operation.
type AutoDownloader interface {
	AutoDownload(ctx context.Context, bookingID int64) (*download.Result, error)
}

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config configures the router.
type Config struct {
	Username string
	Password string
	// RateLimit is requests per minute per client IP; zero disables it.
	RateLimit int
	// SummaryPath is the file served by GET /runs/last.
	SummaryPath string
	Version     string
}

// Deps are the handlers' collaborators.
type Deps struct {
	Bookings   booking.Lister
	Downloader AutoDownloader
	Health     Pinger
}

// Server holds handler state.
type Server struct {
	cfg  Config
	deps Deps
}

// NewServer creates the handler set.
func NewServer(cfg Config, deps Deps) *Server {
	return &Server{cfg: cfg, deps: deps}
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)
	r.Use(requestContext)
	r.Use(observe)
	if s.cfg.RateLimit > 0 {
		r.Use(rateLimit(s.cfg.RateLimit, time.Minute))
	}

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if s.cfg.Username != "" {
			r.Use(chimw.BasicAuth("courtrec", map[string]string{s.cfg.Username: s.cfg.Password}))
		}
		r.Get("/bookings-for-date", s.handleBookingsForDate)
		r.Post("/videos/auto-download", s.handleAutoDownload)
		r.Get("/runs/last", s.handleLastRun)
	})
	return r
}
