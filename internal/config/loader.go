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
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/adscheduler/internal/domain/ads/schedule"
)

// DefaultStartTimeout bounds how long an ad may take to start.
const DefaultStartTimeout = 8 * time.Second

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader. An empty path loads
// defaults and environment only.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath:      configPath,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the watched file, if any.
func (l *Loader) Path() string { return l.configPath }

// Defaults returns the built-in settings.
func Defaults() Settings {
	opts := schedule.DefaultOptions()
	return Settings{
		Schedule: ScheduleSettings{
			PreloadTime:           opts.PreloadTime,
			PreloadAds:            opts.PreloadAds,
			PreloadPostroll:       opts.PreloadPostroll,
			EvaluateOnForwardOnly: opts.EvaluateOnForwardOnly,
			SeekToAdPosition:      opts.SeekToAdPosition,
			InterruptScrub:        opts.InterruptScrub,
		},
		StartTimeout: DefaultStartTimeout,
		Log:          LogSettings{Level: "info"},
		Telemetry: TelemetrySettings{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}

// Load loads configuration with precedence: ENV > File > Defaults
// It enforces Strict Validated Order: Parse File (Strict) -> Apply Env -> Validate
func (l *Loader) Load() (Settings, error) {
	cfg := Defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		mergeFileConfig(&cfg, fileCfg)
	}

	l.mergeEnvConfig(&cfg)

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (l *Loader) loadFile(path string) (*FileConfig, error) {
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
	return decodeStrict(data)
}

func decodeStrict(data []byte) (*FileConfig, error) {
	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, errors.New("config file contains multiple documents or trailing content")
	}
	return &fileCfg, nil
}

func mergeFileConfig(dst *Settings, src *FileConfig) {
	if s := src.Schedule; s != nil {
		setIf(&dst.Schedule.PreloadTime, s.PreloadTime)
		setIf(&dst.Schedule.PreloadAds, s.PreloadAds)
		setIf(&dst.Schedule.PreloadPostroll, s.PreloadPostroll)
		setIf(&dst.Schedule.EvaluateOnForwardOnly, s.EvaluateOnForwardOnly)
		setIf(&dst.Schedule.SeekToAdPosition, s.SeekToAdPosition)
		setIf(&dst.Schedule.InterruptScrub, s.InterruptScrub)
	}
	if h := src.Handler; h != nil {
		setIf(&dst.StartTimeout, h.StartTimeout)
	}
	if lg := src.Log; lg != nil && lg.Level != "" {
		dst.Log.Level = lg.Level
	}
	if t := src.Telemetry; t != nil {
		setIf(&dst.Telemetry.Enabled, t.Enabled)
		setIf(&dst.Telemetry.SamplingRate, t.SamplingRate)
		if t.Exporter != "" {
			dst.Telemetry.Exporter = t.Exporter
		}
		if t.Endpoint != "" {
			dst.Telemetry.Endpoint = t.Endpoint
		}
	}
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func (l *Loader) mergeEnvConfig(cfg *Settings) {
	s := &cfg.Schedule
	s.PreloadTime = l.envDuration(EnvPreloadTime, s.PreloadTime)
	s.PreloadAds = l.envBool(EnvPreloadAds, s.PreloadAds)
	s.PreloadPostroll = l.envBool(EnvPreloadPostroll, s.PreloadPostroll)
	s.EvaluateOnForwardOnly = l.envBool(EnvForwardOnly, s.EvaluateOnForwardOnly)
	s.SeekToAdPosition = l.envBool(EnvSeekToAdPosition, s.SeekToAdPosition)
	s.InterruptScrub = l.envBool(EnvInterruptScrub, s.InterruptScrub)
	cfg.StartTimeout = l.envDuration(EnvStartTimeout, cfg.StartTimeout)
	cfg.Log.Level = l.envString(EnvLogLevel, cfg.Log.Level)

	t := &cfg.Telemetry
	t.Enabled = l.envBool(EnvTelemetryEnabled, t.Enabled)
	t.Exporter = l.envString(EnvTelemetryExporter, t.Exporter)
	t.Endpoint = l.envString(EnvTelemetryEndpoint, t.Endpoint)
	t.SamplingRate = l.envFloat(EnvTelemetrySamplingRate, t.SamplingRate)
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}
