// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command ifeed starts the iFeed labeling HTTP server.
//
// Configuration comes from an optional YAML file, overridden by IFEED_*
// environment variables.
//
// # Environment Variables
//
//   - IFEED_CONFIG: YAML config file (default: ./ifeed.yaml, optional)
//   - IFEED_PORT: HTTP server port (default: 12310)
//   - IFEED_DB_PATH: SQLite database file (default: ./ifeed.db)
//   - IFEED_ENGINE_URL: Inference engine endpoint
//   - IFEED_OTEL_ENDPOINT: OpenTelemetry collector, tracing off when empty
//   - IFEED_LOG_LEVEL, IFEED_LOG_DIR, IFEED_LOG_JSON: logging
//
// # Usage
//
//	go build -o ifeed ./cmd/ifeed
//	IFEED_ENGINE_URL=http://localhost:8000/ ./ifeed
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/AleutianAI/ifeed/pkg/logging"
	"github.com/AleutianAI/ifeed/services/labeling"
)

func main() {
	if err := run(); err != nil {
		slog.Error("ifeed stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	path := os.Getenv("IFEED_CONFIG")
	if path == "" {
		path = "ifeed.yaml"
	}
	cfg, err := labeling.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.LogDir,
		Service: "ifeed",
		JSON:    cfg.LogJSON,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	slog.Info("Starting ifeed",
		"port", cfg.Port,
		"database", cfg.DatabasePath,
		"engine_url", cfg.EngineURL,
	)

	svc, err := labeling.New(cfg, nil)
	if err != nil {
		return fmt.Errorf("create labeling service: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return svc.Run(ctx)
}
