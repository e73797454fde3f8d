// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/adscheduler/internal/log"
)

// Environment keys.
const (
	EnvPreloadTime      = "ADSCHED_PRELOAD_TIME"
	EnvPreloadAds       = "ADSCHED_PRELOAD_ADS"
	EnvPreloadPostroll  = "ADSCHED_PRELOAD_POSTROLL"
	EnvForwardOnly      = "ADSCHED_FORWARD_ONLY"
	EnvSeekToAdPosition = "ADSCHED_SEEK_TO_AD_POSITION"
	EnvInterruptScrub   = "ADSCHED_INTERRUPT_SCRUB"
	EnvStartTimeout     = "ADSCHED_START_TIMEOUT"
	EnvLogLevel         = "ADSCHED_LOG_LEVEL"

	EnvTelemetryEnabled      = "ADSCHED_TELEMETRY_ENABLED"
	EnvTelemetryExporter     = "ADSCHED_TELEMETRY_EXPORTER"
	EnvTelemetryEndpoint     = "ADSCHED_TELEMETRY_ENDPOINT"
	EnvTelemetrySamplingRate = "ADSCHED_TELEMETRY_SAMPLING_RATE"
)

// ParseString reads a string from environment variable or returns default value.
func ParseString(key, defaultValue string) string {
	logger := log.WithComponent("config")
	if v, ok := os.LookupEnv(key); ok && v != "" {
		logger.Debug().
			Str("key", key).
			Str("value", v).
			Str("source", "environment").
			Msg("using environment variable")
		return v
	}
	return defaultValue
}

// ParseDuration reads a Go duration ("5s", "1m30s") from environment
// variable. Invalid values fall back to the default with a warning.
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Dur("default", defaultValue).
			Msg("invalid duration in environment variable, using default")
		return defaultValue
	}
	logger.Debug().
		Str("key", key).
		Dur("value", d).
		Str("source", "environment").
		Msg("using environment variable")
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
	switch strings.ToLower(v) {
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

// ParseFloat reads a float from environment variable or returns default value.
func ParseFloat(key string, defaultValue float64) float64 {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(v, 64)
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
