// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/courtrec/internal/log"
	"github.com/rs/zerolog"
)

// Environment keys. Every key is optional; unset keys keep the file/default value.
const (
	EnvLogLevel   = "COURTREC_LOG_LEVEL"
	EnvLogService = "COURTREC_LOG_SERVICE"
	EnvDataDir    = "COURTREC_DATA"
	EnvTimezone   = "COURTREC_TIMEZONE"

	EnvNASScheme     = "COURTREC_NAS_SCHEME"
	EnvNASHost       = "COURTREC_NAS_HOST"
	EnvNASPort       = "COURTREC_NAS_PORT"
	EnvNASAccount    = "COURTREC_NAS_ACCOUNT"
	EnvNASPassword   = "COURTREC_NAS_PASSWORD"
	EnvNASTimeout    = "COURTREC_NAS_TIMEOUT"
	EnvNASMaxRetries = "COURTREC_NAS_MAX_RETRIES"
	EnvNASRateLimit  = "COURTREC_NAS_RATE_LIMIT"

	EnvDestFolder   = "COURTREC_DEST_FOLDER"
	EnvPollInterval = "COURTREC_COPY_POLL_INTERVAL"
	EnvMaxPolls     = "COURTREC_COPY_MAX_POLLS"

	EnvBookingAPIURL      = "COURTREC_API_URL"
	EnvBookingAPIUser     = "COURTREC_API_USER"
	EnvBookingAPIPassword = "COURTREC_API_PASSWORD"
	EnvBookingAPITimeout  = "COURTREC_API_TIMEOUT"

	EnvDispatchTimeout = "COURTREC_DISPATCH_TIMEOUT"
	EnvPacing          = "COURTREC_PACING"
	EnvScheduleMinute  = "COURTREC_SCHEDULE_MINUTE"
	EnvSummaryFile     = "COURTREC_SUMMARY_FILE"

	EnvListenAddr      = "COURTREC_LISTEN"
	EnvServerUser      = "COURTREC_SERVICE_USER"
	EnvServerPassword  = "COURTREC_SERVICE_PASSWORD"
	EnvServerRateLimit = "COURTREC_SERVER_RATE_LIMIT"

	EnvStorePath = "COURTREC_DB_PATH"

	EnvRedisAddr     = "COURTREC_REDIS_ADDR"
	EnvRedisPassword = "COURTREC_REDIS_PASSWORD"
	EnvRedisDB       = "COURTREC_REDIS_DB"
	EnvRedisLockTTL  = "COURTREC_REDIS_LOCK_TTL"

	EnvTelemetryEnabled  = "COURTREC_OTEL_ENABLED"
	EnvTelemetryExporter = "COURTREC_OTEL_EXPORTER"
	EnvTelemetryEndpoint = "COURTREC_OTEL_ENDPOINT"
	EnvTelemetrySampling = "COURTREC_OTEL_SAMPLING"
)

func isSensitive(key string) bool {
	lowerKey := strings.ToLower(key)
	return strings.Contains(lowerKey, "token") || strings.Contains(lowerKey, "password")
}

// ParseString reads a string from environment variable or returns default value.
// It logs the source (environment or default) for observability.
func ParseString(key, defaultValue string) string {
	return parseStringWithLogger(log.WithComponent("config"), key, defaultValue)
}

func parseStringWithLogger(logger zerolog.Logger, key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		switch {
		case value == "":
			logger.Debug().
				Str("key", key).
				Str("source", "default").
				Msg("using default value (environment variable is empty)")
			return defaultValue
		case isSensitive(key):
			// For sensitive vars, just log that it was set
			logger.Debug().
				Str("key", key).
				Str("source", "environment").
				Bool("sensitive", true).
				Msg("using environment variable")
		default:
			logger.Debug().
				Str("key", key).
				Str("value", value).
				Str("source", "environment").
				Msg("using environment variable")
		}
		return value
	}
	return defaultValue
}

// ParseInt reads an integer from environment variable or returns default value.
// It validates the input and falls back to default on parse errors.
func ParseInt(key string, defaultValue int) int {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Int("default", defaultValue).
			Msg("invalid integer in environment variable, using default")
		return defaultValue
	}
	logger.Debug().Str("key", key).Int("value", i).Str("source", "environment").Msg("using environment variable")
	return i
}

// ParseDuration reads a duration from environment variable in Go duration format (e.g. "5s").
// It falls back to default on parse errors or empty variables and logs the choice.
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Dur("default", defaultValue).
			Msg("invalid duration in environment variable, using default")
		return defaultValue
	}
	logger.Debug().Str("key", key).Dur("value", d).Str("source", "environment").Msg("using environment variable")
	return d
}

// ParseBool reads a boolean from environment variable or returns default value.
// It accepts "true", "false", "1", "0", "yes", "no" (case-insensitive).
func ParseBool(key string, defaultValue bool) bool {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Bool("default", defaultValue).
			Msg("invalid boolean in environment variable, using default")
		return defaultValue
	}
}

// ParseFloat reads a float64 from environment variable or returns default value.
func ParseFloat(key string, defaultValue float64) float64 {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Float64("default", defaultValue).
			Msg("invalid float in environment variable, using default")
		return defaultValue
	}
	return f
}
