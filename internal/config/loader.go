// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownConfigField classifies strict YAML parse failures caused by unknown keys.
	// Use errors.Is(err, ErrUnknownConfigField) instead of string matching.
	ErrUnknownConfigField = errors.New("unknown config field")

	// ErrInvalidConfig is wrapped by every validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Loader handles configuration loading with precedence ENV > File > Defaults.
type Loader struct {
	configPath string
	version    string
}

// NewLoader creates a new configuration loader. configPath may be empty.
func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: strings.TrimSpace(configPath), version: version}
}

// Load resolves defaults, the optional YAML file and environment overrides, then validates.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		fileCfg, err := loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		mergeFileConfig(&cfg, fileCfg)
	}

	mergeEnvConfig(&cfg)
	cfg.Version = l.version

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	if cfg.Store.Path != "" && !filepath.IsAbs(cfg.Store.Path) {
		cfg.Store.Path = filepath.Join(cfg.DataDir, cfg.Store.Path)
	}
	if cfg.Acquisition.SummaryFile != "" && !filepath.IsAbs(cfg.Acquisition.SummaryFile) {
		cfg.Acquisition.SummaryFile = filepath.Join(cfg.DataDir, cfg.Acquisition.SummaryFile)
	}

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile loads configuration from a YAML file with STRICT parsing.
// Unknown fields will cause a fatal error to prevent misconfiguration.
func loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if err == io.EOF {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return &fileCfg, nil
}

func mergeFileConfig(dst *AppConfig, src *FileConfig) {
	setString(&dst.LogLevel, src.LogLevel)
	setString(&dst.LogService, src.LogService)
	setString(&dst.DataDir, src.DataDir)
	setString(&dst.Timezone, src.Timezone)

	if s := src.Surveillance; s != nil {
		setString(&dst.Surveillance.Scheme, s.Scheme)
		setString(&dst.Surveillance.Host, s.Host)
		setInt(&dst.Surveillance.Port, s.Port)
		setString(&dst.Surveillance.Account, s.Account)
		setString(&dst.Surveillance.Password, s.Password)
		if s.Timeout > 0 {
			dst.Surveillance.Timeout = s.Timeout
		}
		setInt(&dst.Surveillance.MaxRetries, s.MaxRetries)
		if s.RateLimit > 0 {
			dst.Surveillance.RateLimit = s.RateLimit
		}
	}
	if t := src.Transfer; t != nil {
		setString(&dst.Transfer.DestFolder, t.DestFolder)
		if t.PollInterval > 0 {
			dst.Transfer.PollInterval = t.PollInterval
		}
		setInt(&dst.Transfer.MaxPolls, t.MaxPolls)
	}
	if b := src.BookingAPI; b != nil {
		setString(&dst.BookingAPI.BaseURL, b.BaseURL)
		setString(&dst.BookingAPI.Username, b.Username)
		setString(&dst.BookingAPI.Password, b.Password)
		if b.Timeout > 0 {
			dst.BookingAPI.Timeout = b.Timeout
		}
	}
	if a := src.Acquisition; a != nil {
		if a.DispatchTimeout > 0 {
			dst.Acquisition.DispatchTimeout = a.DispatchTimeout
		}
		if a.Pacing > 0 {
			dst.Acquisition.Pacing = a.Pacing
		}
		setInt(&dst.Acquisition.ScheduleMinute, a.ScheduleMinute)
		setString(&dst.Acquisition.SummaryFile, a.SummaryFile)
	}
	if s := src.Server; s != nil {
		setString(&dst.Server.ListenAddr, s.ListenAddr)
		setString(&dst.Server.Username, s.Username)
		setString(&dst.Server.Password, s.Password)
		setInt(&dst.Server.RateLimit, s.RateLimit)
	}
	if s := src.Store; s != nil {
		setString(&dst.Store.Path, s.Path)
	}
	if r := src.Redis; r != nil {
		setString(&dst.Redis.Addr, r.Addr)
		setString(&dst.Redis.Password, r.Password)
		setInt(&dst.Redis.DB, r.DB)
		if r.LockTTL > 0 {
			dst.Redis.LockTTL = r.LockTTL
		}
	}
	if t := src.Telemetry; t != nil {
		dst.Telemetry.Enabled = t.Enabled
		setString(&dst.Telemetry.Exporter, t.Exporter)
		setString(&dst.Telemetry.Endpoint, t.Endpoint)
		if t.SamplingRate > 0 {
			dst.Telemetry.SamplingRate = t.SamplingRate
		}
	}
}

func mergeEnvConfig(cfg *AppConfig) {
	cfg.LogLevel = ParseString(EnvLogLevel, cfg.LogLevel)
	cfg.LogService = ParseString(EnvLogService, cfg.LogService)
	cfg.DataDir = ParseString(EnvDataDir, cfg.DataDir)
	cfg.Timezone = ParseString(EnvTimezone, cfg.Timezone)

	cfg.Surveillance.Scheme = ParseString(EnvNASScheme, cfg.Surveillance.Scheme)
	cfg.Surveillance.Host = ParseString(EnvNASHost, cfg.Surveillance.Host)
	cfg.Surveillance.Port = ParseInt(EnvNASPort, cfg.Surveillance.Port)
	cfg.Surveillance.Account = ParseString(EnvNASAccount, cfg.Surveillance.Account)
	cfg.Surveillance.Password = ParseString(EnvNASPassword, cfg.Surveillance.Password)
	cfg.Surveillance.Timeout = ParseDuration(EnvNASTimeout, cfg.Surveillance.Timeout)
	cfg.Surveillance.MaxRetries = ParseInt(EnvNASMaxRetries, cfg.Surveillance.MaxRetries)
	cfg.Surveillance.RateLimit = ParseFloat(EnvNASRateLimit, cfg.Surveillance.RateLimit)

	cfg.Transfer.DestFolder = ParseString(EnvDestFolder, cfg.Transfer.DestFolder)
	cfg.Transfer.PollInterval = ParseDuration(EnvPollInterval, cfg.Transfer.PollInterval)
	cfg.Transfer.MaxPolls = ParseInt(EnvMaxPolls, cfg.Transfer.MaxPolls)

	cfg.BookingAPI.BaseURL = ParseString(EnvBookingAPIURL, cfg.BookingAPI.BaseURL)
	cfg.BookingAPI.Username = ParseString(EnvBookingAPIUser, cfg.BookingAPI.Username)
	cfg.BookingAPI.Password = ParseString(EnvBookingAPIPassword, cfg.BookingAPI.Password)
	cfg.BookingAPI.Timeout = ParseDuration(EnvBookingAPITimeout, cfg.BookingAPI.Timeout)

	cfg.Acquisition.DispatchTimeout = ParseDuration(EnvDispatchTimeout, cfg.Acquisition.DispatchTimeout)
	cfg.Acquisition.Pacing = ParseDuration(EnvPacing, cfg.Acquisition.Pacing)
	cfg.Acquisition.ScheduleMinute = ParseInt(EnvScheduleMinute, cfg.Acquisition.ScheduleMinute)
	cfg.Acquisition.SummaryFile = ParseString(EnvSummaryFile, cfg.Acquisition.SummaryFile)

	cfg.Server.ListenAddr = ParseString(EnvListenAddr, cfg.Server.ListenAddr)
	cfg.Server.Username = ParseString(EnvServerUser, cfg.Server.Username)
	cfg.Server.Password = ParseString(EnvServerPassword, cfg.Server.Password)
	cfg.Server.RateLimit = ParseInt(EnvServerRateLimit, cfg.Server.RateLimit)

	cfg.Store.Path = ParseString(EnvStorePath, cfg.Store.Path)

	cfg.Redis.Addr = ParseString(EnvRedisAddr, cfg.Redis.Addr)
	cfg.Redis.Password = ParseString(EnvRedisPassword, cfg.Redis.Password)
	cfg.Redis.DB = ParseInt(EnvRedisDB, cfg.Redis.DB)
	cfg.Redis.LockTTL = ParseDuration(EnvRedisLockTTL, cfg.Redis.LockTTL)

	cfg.Telemetry.Enabled = ParseBool(EnvTelemetryEnabled, cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = ParseString(EnvTelemetryExporter, cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = ParseString(EnvTelemetryEndpoint, cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = ParseFloat(EnvTelemetrySampling, cfg.Telemetry.SamplingRate)
}

func setString(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
