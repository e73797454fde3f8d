// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads scheduler settings with precedence ENV > file >
// defaults and hot-reloads the file.
package config

import (
	"time"

	"github.com/ManuGH/adscheduler/internal/domain/ads/schedule"
)

// Settings is the effective configuration.
type Settings struct {
	Schedule     ScheduleSettings
	StartTimeout time.Duration
	Log          LogSettings
	Telemetry    TelemetrySettings
}

// ScheduleSettings mirrors schedule.Options.
type ScheduleSettings struct {
	PreloadTime           time.Duration
	PreloadAds            bool
	PreloadPostroll       bool
	EvaluateOnForwardOnly bool
	SeekToAdPosition      bool
	InterruptScrub        bool
}

type LogSettings struct {
	Level string
}

type TelemetrySettings struct {
	Enabled      bool
	Exporter     string
	Endpoint     string
	SamplingRate float64
}

// Options converts the schedule settings for the controller.
func (s Settings) Options() schedule.Options {
	return schedule.Options{
		PreloadTime:           s.Schedule.PreloadTime,
		PreloadAds:            s.Schedule.PreloadAds,
		PreloadPostroll:       s.Schedule.PreloadPostroll,
		EvaluateOnForwardOnly: s.Schedule.EvaluateOnForwardOnly,
		SeekToAdPosition:      s.Schedule.SeekToAdPosition,
		InterruptScrub:        s.Schedule.InterruptScrub,
	}
}

// FileConfig is the YAML document. Pointer fields distinguish "unset" from
// zero values during merge.
type FileConfig struct {
	Schedule  *ScheduleFileConfig  `yaml:"schedule,omitempty"`
	Handler   *HandlerFileConfig   `yaml:"handler,omitempty"`
	Log       *LogFileConfig       `yaml:"log,omitempty"`
	Telemetry *TelemetryFileConfig `yaml:"telemetry,omitempty"`
}

type ScheduleFileConfig struct {
	PreloadTime           *time.Duration `yaml:"preloadTime,omitempty"`
	PreloadAds            *bool          `yaml:"preloadAds,omitempty"`
	PreloadPostroll       *bool          `yaml:"preloadPostroll,omitempty"`
	EvaluateOnForwardOnly *bool          `yaml:"evaluateOnForwardOnly,omitempty"`
	SeekToAdPosition      *bool          `yaml:"seekToAdPosition,omitempty"`
	InterruptScrub        *bool          `yaml:"interruptScrub,omitempty"`
}

type HandlerFileConfig struct {
	StartTimeout *time.Duration `yaml:"startTimeout,omitempty"`
}

type LogFileConfig struct {
	Level string `yaml:"level,omitempty"`
}

type TelemetryFileConfig struct {
	Enabled      *bool    `yaml:"enabled,omitempty"`
	Exporter     string   `yaml:"exporter,omitempty"`
	Endpoint     string   `yaml:"endpoint,omitempty"`
	SamplingRate *float64 `yaml:"samplingRate,omitempty"`
}
