// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package validation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ManuGH/courtrec/internal/config"
	"github.com/ManuGH/courtrec/internal/log"
	"github.com/ManuGH/courtrec/internal/surveillance"
	"github.com/rs/zerolog"
)

const probeTimeout = 10 * time.Second

// CameraLister is the catalog call used to prove the NAS accepts our credentials.
type CameraLister interface {
	Cameras(ctx context.Context) ([]surveillance.Camera, error)
}

// IntegrityChecker reports SQLite corruption diagnostics; nil means healthy.
type IntegrityChecker interface {
	VerifyIntegrity(ctx context.Context, mode string) ([]string, error)
}

// Targets are the dependencies probed at startup. A nil Store is skipped.
type Targets struct {
	NAS   CameraLister
	Store IntegrityChecker
}

// PerformStartupChecks validates the environment and dependencies before starting the server.
func PerformStartupChecks(ctx context.Context, cfg config.AppConfig, t Targets) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	for _, dir := range []string{cfg.DataDir, filepath.Dir(cfg.Store.Path), filepath.Dir(cfg.Acquisition.SummaryFile)} {
		if err := checkWritableDir(logger, dir); err != nil {
			return fmt.Errorf("data directory check failed: %w", err)
		}
	}

	if t.Store != nil {
		issues, err := t.Store.VerifyIntegrity(ctx, "quick")
		if err != nil {
			return fmt.Errorf("store integrity check failed: %w", err)
		}
		if len(issues) > 0 {
			return fmt.Errorf("store integrity check failed: %s", strings.Join(issues, "; "))
		}
		logger.Debug().Str("path", cfg.Store.Path).Msg("store passed quick_check")
	}

	if err := checkSurveillance(ctx, logger, cfg, t.NAS); err != nil {
		return fmt.Errorf("surveillance check failed: %w", err)
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkWritableDir(logger zerolog.Logger, path string) error {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)

	logger.Debug().Str("path", path).Msg("directory is writable")
	return nil
}

func checkSurveillance(ctx context.Context, logger zerolog.Logger, cfg config.AppConfig, nas CameraLister) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cams, err := nas.Cameras(ctx)
	if err != nil {
		return fmt.Errorf("failed to reach surveillance system at %s: %w", cfg.Surveillance.BaseURL(), err)
	}
	enabled := 0
	for _, c := range cams {
		if c.Enabled {
			enabled++
		}
	}
	logger.Info().
		Str("nas", cfg.Surveillance.BaseURL()).
		Int("cameras", len(cams)).
		Int("enabled", enabled).
		Msg("surveillance system is reachable")
	if enabled == 0 {
		logger.Warn().Msg("no enabled cameras reported; every acquisition will fail with not_found")
	}
	return nil
}
