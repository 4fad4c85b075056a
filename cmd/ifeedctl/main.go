// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command ifeedctl administers an iFeed database.
//
// It works directly on the SQLite file the server uses and reads the same
// configuration (YAML file plus IFEED_* environment variables).
//
// # Usage
//
//	ifeedctl seed --demo-rows 200 --demo-dims 4
//	ifeedctl grid 5
//	ifeedctl status 12
//	ifeedctl evaluate 12
//	ifeedctl evaluate --setup 3
//	ifeedctl reset --yes
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/AleutianAI/ifeed/pkg/logging"
	"github.com/AleutianAI/ifeed/pkg/ux"
	"github.com/AleutianAI/ifeed/services/labeling"
	"github.com/AleutianAI/ifeed/services/labeling/storage/sqlite"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		ux.NewPrinter(os.Stderr).Error(err.Error())
		os.Exit(1)
	}
}

// app carries the global flags and the state built from them.
type app struct {
	configPath   string
	databasePath string
	verbose      bool

	config labeling.Config
	logger *logging.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "ifeedctl",
		Short:         "Administer an iFeed labeling database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Close()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "ifeed.yaml", "YAML configuration file")
	root.PersistentFlags().StringVar(&a.databasePath, "db", "", "SQLite database file (overrides configuration)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log to stderr")

	root.AddCommand(
		newSeedCmd(a),
		newResetCmd(a),
		newGridCmd(a),
		newEvaluateCmd(a),
		newStatusCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := labeling.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.databasePath != "" {
		cfg.DatabasePath = a.databasePath
	}
	a.config = cfg

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.LogDir,
		Service: "ifeedctl",
		Quiet:   !a.verbose,
		Output:  cmd.ErrOrStderr(),
	})
	slog.SetDefault(a.logger.Slog())
	return nil
}

func (a *app) openStore() (*sqlite.Store, error) {
	store, err := sqlite.Open(a.config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", a.config.DatabasePath, err)
	}
	return store, nil
}
