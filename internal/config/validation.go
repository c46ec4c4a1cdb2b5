// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
)

// Validate checks the resolved configuration and joins every problem found.
func Validate(cfg AppConfig) error {
	var errs []error
	fail := func(field, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s: %s", ErrInvalidConfig, field, fmt.Sprintf(format, args...)))
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		fail("timezone", "unknown location %q", cfg.Timezone)
	}

	if strings.TrimSpace(cfg.Surveillance.Host) == "" {
		fail("surveillance.host", "must not be empty")
	}
	if s := cfg.Surveillance.Scheme; s != "http" && s != "https" {
		fail("surveillance.scheme", "unsupported scheme %q", s)
	}
	if p := cfg.Surveillance.Port; p < 0 || p > 65535 {
		fail("surveillance.port", "out of range: %d", p)
	}
	if cfg.Surveillance.Timeout <= 0 {
		fail("surveillance.timeout", "must be positive")
	}

	if !path.IsAbs(cfg.Transfer.DestFolder) {
		fail("transfer.destFolder", "must be an absolute path, got %q", cfg.Transfer.DestFolder)
	}
	if cfg.Transfer.PollInterval <= 0 {
		fail("transfer.pollInterval", "must be positive")
	}
	if cfg.Transfer.MaxPolls <= 0 {
		fail("transfer.maxPolls", "must be positive")
	}

	if err := validateHTTPURL(cfg.BookingAPI.BaseURL); err != nil {
		fail("bookingApi.baseUrl", "%v", err)
	}
	if cfg.Acquisition.DispatchTimeout <= 0 {
		fail("acquisition.dispatchTimeout", "must be positive")
	}
	if cfg.Acquisition.Pacing < 0 {
		fail("acquisition.pacing", "must not be negative")
	}
	if m := cfg.Acquisition.ScheduleMinute; m < 0 || m > 59 {
		fail("acquisition.scheduleMinute", "must be within 0..59, got %d", m)
	}

	if cfg.Server.Password != "" && cfg.Server.Username == "" {
		fail("server.username", "required when server.password is set")
	}

	if t := cfg.Telemetry; t.Enabled {
		if t.Exporter != "grpc" && t.Exporter != "http" {
			fail("telemetry.exporter", "unsupported exporter %q", t.Exporter)
		}
		if t.Endpoint == "" {
			fail("telemetry.endpoint", "must not be empty when telemetry is enabled")
		}
	}

	return errors.Join(errs...)
}

func validateHTTPURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("url is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q is missing host", raw)
	}
	return nil
}
