// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package labeling

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/AleutianAI/ifeed/services/labeling/inference"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Configuration
// =============================================================================

// Config holds labeling service configuration options.
//
// # Description
//
// Config centralizes all configuration for the labeling service. Values
// come from an optional YAML file, are overridden by IFEED_* environment
// variables, and missing values are filled by applyConfigDefaults.
//
// # Examples
//
//	# ifeed.yaml
//	port: 8080
//	database_path: /var/lib/ifeed/ifeed.db
//	engine_url: http://engine:8081/
//	engine_timeout: 45s
//	log_level: debug
//
//	IFEED_ENGINE_URL=http://localhost:8081/ ifeed serve
type Config struct {
	// Port is the HTTP server port. Default: 12310
	Port int `yaml:"port" env:"IFEED_PORT"`

	// DatabasePath is the SQLite file. Default: "./ifeed.db"
	DatabasePath string `yaml:"database_path" env:"IFEED_DB_PATH"`

	// EngineURL is where evaluation requests are POSTed. When empty, every
	// evaluate action fails with engine_unavailable.
	EngineURL string `yaml:"engine_url" env:"IFEED_ENGINE_URL"`

	// EngineTimeout bounds one engine call. Default: 30s
	EngineTimeout time.Duration `yaml:"engine_timeout" env:"IFEED_ENGINE_TIMEOUT"`

	// EngineRateLimit caps engine calls per second. Zero disables the limit.
	EngineRateLimit float64 `yaml:"engine_rate_limit" env:"IFEED_ENGINE_RATE_LIMIT"`

	// EngineBurst is the number of calls allowed above the rate at once.
	// Default: 1
	EngineBurst int `yaml:"engine_burst" env:"IFEED_ENGINE_BURST"`

	// OTelEndpoint is the OpenTelemetry collector (host:port) used by the
	// "otlp" exporter.
	OTelEndpoint string `yaml:"otel_endpoint" env:"IFEED_OTEL_ENDPOINT"`

	// TraceExporter is "otlp", "stdout" or "none". Default: "otlp" when
	// OTelEndpoint is set, otherwise "none".
	TraceExporter string `yaml:"trace_exporter" env:"IFEED_TRACE_EXPORTER"`

	// GinMode is "debug", "release" or "test". Default: "release"
	GinMode string `yaml:"gin_mode" env:"IFEED_GIN_MODE"`

	// LogLevel is "debug", "info", "warn" or "error". Default: "info"
	LogLevel string `yaml:"log_level" env:"IFEED_LOG_LEVEL"`

	// LogDir enables daily JSON log files in this directory.
	LogDir string `yaml:"log_dir" env:"IFEED_LOG_DIR"`

	// LogJSON switches stderr output to JSON.
	LogJSON bool `yaml:"log_json" env:"IFEED_LOG_JSON"`

	// DisableMetrics removes the /metrics endpoint.
	DisableMetrics bool `yaml:"disable_metrics" env:"IFEED_DISABLE_METRICS"`
}

const (
	defaultPort         = 12310
	defaultDatabasePath = "./ifeed.db"
	defaultGinMode      = "release"
	defaultLogLevel     = "info"
	serviceName         = "ifeed-labeling"
)

// Trace exporters.
const (
	TraceExporterOTLP   = "otlp"
	TraceExporterStdout = "stdout"
	TraceExporterNone   = "none"
)

// LoadConfig reads path (optional), applies IFEED_* overrides and fills
// defaults.
//
// # Inputs
//
//   - path: YAML file. Empty or missing means environment and defaults only.
//
// # Outputs
//
//   - Config: The merged configuration.
//   - error: Non-nil when the file is unreadable or malformed, or when an
//     environment variable does not parse.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return applyConfigDefaults(cfg), nil
}

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = defaultDatabasePath
	}
	if cfg.EngineTimeout <= 0 {
		cfg.EngineTimeout = 30 * time.Second
	}
	if cfg.EngineBurst <= 0 {
		cfg.EngineBurst = 1
	}
	if cfg.GinMode == "" {
		cfg.GinMode = defaultGinMode
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	if cfg.TraceExporter == "" {
		cfg.TraceExporter = TraceExporterNone
		if cfg.OTelEndpoint != "" {
			cfg.TraceExporter = TraceExporterOTLP
		}
	}
	return cfg
}

// GatewayConfig derives the engine client settings.
func (c Config) GatewayConfig() inference.GatewayConfig {
	return inference.GatewayConfig{
		URL:       c.EngineURL,
		Timeout:   c.EngineTimeout,
		RateLimit: c.EngineRateLimit,
		Burst:     c.EngineBurst,
	}
}
