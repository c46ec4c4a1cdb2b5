// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // scratch images ship without zoneinfo
)

// AppConfig is the fully resolved runtime configuration.
type AppConfig struct {
	Version    string
	LogLevel   string
	LogService string
	DataDir    string
	Timezone   string

	Surveillance SurveillanceConfig
	Transfer     TransferConfig
	BookingAPI   BookingAPIConfig
	Acquisition  AcquisitionConfig
	Server       ServerConfig
	Store        StoreConfig
	Redis        RedisConfig
	Telemetry    TelemetryConfig
}

// SurveillanceConfig describes how to reach the external video system.
type SurveillanceConfig struct {
	Scheme     string        `yaml:"scheme,omitempty"`
	Host       string        `yaml:"host,omitempty"`
	Port       int           `yaml:"port,omitempty"`
	Account    string        `yaml:"account,omitempty"`
	Password   string        `yaml:"password,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
	MaxRetries int           `yaml:"maxRetries,omitempty"`
	RateLimit  float64       `yaml:"rateLimit,omitempty"` // requests per second
}

// BaseURL renders scheme://host:port for the surveillance client.
func (s SurveillanceConfig) BaseURL() string {
	scheme := s.Scheme
	if scheme == "" {
		scheme = "http"
	}
	host := s.Host
	if s.Port > 0 {
		host = net.JoinHostPort(strings.Trim(s.Host, "[]"), strconv.Itoa(s.Port))
	}
	return fmt.Sprintf("%s://%s", scheme, host)
}

// TransferConfig bounds the asynchronous copy polling.
type TransferConfig struct {
	DestFolder   string        `yaml:"destFolder,omitempty"`
	PollInterval time.Duration `yaml:"pollInterval,omitempty"`
	MaxPolls     int           `yaml:"maxPolls,omitempty"`
}

// BookingAPIConfig points at the collaborator service exposing bookings and auto-download.
type BookingAPIConfig struct {
	BaseURL  string        `yaml:"baseUrl,omitempty"`
	Username string        `yaml:"username,omitempty"`
	Password string        `yaml:"password,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
}

// AcquisitionConfig tunes the scheduled driver.
type AcquisitionConfig struct {
	DispatchTimeout time.Duration `yaml:"dispatchTimeout,omitempty"`
	Pacing          time.Duration `yaml:"pacing,omitempty"`
	ScheduleMinute  int           `yaml:"scheduleMinute,omitempty"`
	SummaryFile     string        `yaml:"summaryFile,omitempty"`
}

// ServerConfig configures the collaborator HTTP surface.
type ServerConfig struct {
	ListenAddr string `yaml:"listenAddr,omitempty"`
	Username   string `yaml:"username,omitempty"`
	Password   string `yaml:"password,omitempty"`
	RateLimit  int    `yaml:"rateLimit,omitempty"` // requests per minute per IP
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `yaml:"path,omitempty"`
}

// RedisConfig enables the distributed run lock when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr,omitempty"`
	Password string        `yaml:"password,omitempty"`
	DB       int           `yaml:"db,omitempty"`
	LockTTL  time.Duration `yaml:"lockTtl,omitempty"`
}

// TelemetryConfig mirrors telemetry.Config.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled,omitempty"`
	Exporter     string  `yaml:"exporter,omitempty"`
	Endpoint     string  `yaml:"endpoint,omitempty"`
	SamplingRate float64 `yaml:"samplingRate,omitempty"`
}

// FileConfig is the on-disk YAML shape. Every field is optional.
type FileConfig struct {
	LogLevel     string              `yaml:"logLevel,omitempty"`
	LogService   string              `yaml:"logService,omitempty"`
	DataDir      string              `yaml:"dataDir,omitempty"`
	Timezone     string              `yaml:"timezone,omitempty"`
	Surveillance *SurveillanceConfig `yaml:"surveillance,omitempty"`
	Transfer     *TransferConfig     `yaml:"transfer,omitempty"`
	BookingAPI   *BookingAPIConfig   `yaml:"bookingApi,omitempty"`
	Acquisition  *AcquisitionConfig  `yaml:"acquisition,omitempty"`
	Server       *ServerConfig       `yaml:"server,omitempty"`
	Store        *StoreConfig        `yaml:"store,omitempty"`
	Redis        *RedisConfig        `yaml:"redis,omitempty"`
	Telemetry    *TelemetryConfig    `yaml:"telemetry,omitempty"`
}

// Defaults returns the documented fallback configuration.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel:   "info",
		LogService: "courtrec",
		DataDir:    "/var/lib/courtrec",
		Timezone:   "Europe/Madrid",
		Surveillance: SurveillanceConfig{
			Scheme:     "http",
			Host:       "127.0.0.1",
			Port:       5000,
			Account:    "admin",
			Timeout:    30 * time.Second,
			MaxRetries: 2,
			RateLimit:  5,
		},
		Transfer: TransferConfig{
			DestFolder:   "/video/courtrec",
			PollInterval: time.Second,
			MaxPolls:     120,
		},
		BookingAPI: BookingAPIConfig{
			BaseURL: "http://127.0.0.1:8080",
			Timeout: 10 * time.Minute,
		},
		Acquisition: AcquisitionConfig{
			DispatchTimeout: 10 * time.Minute,
			Pacing:          5 * time.Second,
			ScheduleMinute:  5,
			SummaryFile:     "last_run.json",
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
			RateLimit:  120,
		},
		Store: StoreConfig{
			Path: "courtrec.sqlite",
		},
		Redis: RedisConfig{
			LockTTL: 55 * time.Minute,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}

// Location loads the configured timezone.
func (c AppConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
