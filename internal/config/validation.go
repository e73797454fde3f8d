// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// ValidationError is one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks settings the loader cannot fix up on its own.
func Validate(cfg Settings) error {
	var errs []error
	if cfg.Schedule.PreloadTime < 0 {
		errs = append(errs, ValidationError{"schedule.preloadTime", "must be >= 0"})
	}
	if cfg.StartTimeout < 0 {
		errs = append(errs, ValidationError{"handler.startTimeout", "must be >= 0"})
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level)); err != nil {
		errs = append(errs, ValidationError{"log.level", fmt.Sprintf("unknown level %q", cfg.Log.Level)})
	}
	if r := cfg.Telemetry.SamplingRate; r < 0 || r > 1 {
		errs = append(errs, ValidationError{"telemetry.samplingRate", "must be within [0,1]"})
	}
	if cfg.Telemetry.Enabled {
		switch cfg.Telemetry.Exporter {
		case "grpc", "http":
		default:
			errs = append(errs, ValidationError{"telemetry.exporter", fmt.Sprintf("unsupported exporter %q", cfg.Telemetry.Exporter)})
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
