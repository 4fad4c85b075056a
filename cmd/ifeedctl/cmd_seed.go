// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/AleutianAI/ifeed/pkg/ux"
	"github.com/AleutianAI/ifeed/services/labeling/seed"
	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// newSeedCmd installs the default catalog and, optionally, a demo dataset.
//
// # Examples
//
//	ifeedctl seed
//	ifeedctl seed --admin-password s3cret
//	ifeedctl seed --demo-rows 200 --demo-dims 4 --demo-name blobs
func newSeedCmd(a *app) *cobra.Command {
	var (
		adminPassword string
		demoName      string
		demoRows      int
		demoDims      int
		demoType      string
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Install default dataset types, params, models and the admin account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			rep, err := seed.Defaults(ctx, store, seed.Options{AdminPassword: adminPassword})
			if err != nil {
				return err
			}

			p := ux.NewPrinter(cmd.OutOrStdout())
			p.Title("Default objects")
			p.KeyValues([][2]string{
				{"dataset types", strconv.Itoa(rep.DatasetTypes)},
				{"params", strconv.Itoa(rep.Params)},
				{"classifiers", strconv.Itoa(rep.Classifiers)},
				{"query strategies", strconv.Itoa(rep.QueryStrategies)},
				{"admins", strconv.Itoa(rep.Admins)},
			})

			if demoRows > 0 {
				d, err := seed.Demo(ctx, store, seed.DemoOptions{
					Name:       demoName,
					Dimensions: demoDims,
					Rows:       demoRows,
					TypeName:   demoType,
				})
				if err != nil {
					return err
				}
				p.Success(fmt.Sprintf("demo dataset %q created with id %d (%dx%d)",
					d.Name, d.ID, d.RowCount(), d.ColumnCount()))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&adminPassword, "admin-password", "", "password of the default admin (default \""+seed.DefaultAdminPassword+"\")")
	cmd.Flags().IntVar(&demoRows, "demo-rows", 0, "rows of a demo dataset to generate (0 skips it)")
	cmd.Flags().IntVar(&demoDims, "demo-dims", 3, "dimensions of the demo dataset")
	cmd.Flags().StringVar(&demoName, "demo-name", "demo", "name of the demo dataset")
	cmd.Flags().StringVar(&demoType, "demo-type", "image", "dataset type of the demo dataset")
	return cmd
}

// newResetCmd wipes every table. Without --yes it asks for confirmation
// on a terminal and refuses otherwise.
func newResetCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all records from the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				confirmed, err := confirmReset(cmd, a.config.DatabasePath)
				if err != nil {
					return err
				}
				if !confirmed {
					return errors.New("reset deletes every record; pass --yes to confirm")
				}
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := seed.Reset(cmd.Context(), store); err != nil {
				return err
			}
			ux.NewPrinter(cmd.OutOrStdout()).Success("all tables reset in " + a.config.DatabasePath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}

// confirmReset prompts on an interactive stdin and reports false otherwise.
func confirmReset(cmd *cobra.Command, path string) (bool, error) {
	in, ok := cmd.InOrStdin().(*os.File)
	if !ok || !isatty.IsTerminal(in.Fd()) {
		return false, nil
	}
	var confirmed bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(fmt.Sprintf("Delete every record in %s?", path)).
			Affirmative("Delete").
			Negative("Cancel").
			Value(&confirmed),
	))
	if err := form.Run(); err != nil {
		return false, fmt.Errorf("confirm reset: %w", err)
	}
	return confirmed, nil
}
