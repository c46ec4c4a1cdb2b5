// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ManuGH/courtrec/internal/config"
	"github.com/ManuGH/courtrec/internal/daemon"
	xglog "github.com/ManuGH/courtrec/internal/log"
	"github.com/ManuGH/courtrec/internal/version"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "courtrec",
		Short:         "Acquire court booking recordings from the surveillance NAS",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file (YAML)")

	cmd.AddCommand(
		newServeCmd(opts),
		newRunCmd(opts),
		newImportCmd(opts),
		newCamerasCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// resolveConfigPath prefers --config, then ${COURTREC_DATA}/config.yaml if it exists.
func resolveConfigPath(explicit string) string {
	if p := strings.TrimSpace(explicit); p != "" {
		return p
	}
	dataDir := strings.TrimSpace(config.ParseString(config.EnvDataDir, config.Defaults().DataDir))
	autoPath := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(autoPath); err == nil {
		return autoPath
	}
	return ""
}

func (o *rootOptions) load() (config.AppConfig, error) {
	path := resolveConfigPath(o.configPath)
	cfg, err := config.NewLoader(path, version.Version).Load()
	if err != nil {
		return cfg, err
	}
	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: cfg.Version,
	})
	source := "env+defaults"
	if path != "" {
		source = "file"
	}
	logger := xglog.WithComponent("cli")
	logger.Info().
		Str(xglog.FieldEvent, "config.loaded").
		Str("source", source).
		Str("path", path).
		Msg("loaded configuration")
	return cfg, nil
}

// bootstrap loads config and wires components. The caller must Close them.
func (o *rootOptions) bootstrap(ctx context.Context) (*daemon.Components, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return daemon.Bootstrap(ctx, cfg)
}
