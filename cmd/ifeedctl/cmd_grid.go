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
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/AleutianAI/ifeed/pkg/ux"
	"github.com/AleutianAI/ifeed/services/labeling/grid"
	"github.com/spf13/cobra"
)

// newGridCmd prints the subspaces a setup with d dimensions gets. With
// --json it prints the full grid.Result a setup would store.
func newGridCmd(_ *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "grid <dimensions>",
		Short: "Show the subspaces and grids generated for a dimension count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("dimensions must be an integer: %w", err)
			}
			res, err := grid.Generate(d)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				return enc.Encode(map[string]any{
					"subspaces":               res.Subspaces,
					"subspaceGrids":           res.Grids,
					"subspaceGridsNormalized": res.NormalizedGrids,
				})
			}

			p := ux.NewPrinter(cmd.OutOrStdout())
			p.Title(fmt.Sprintf("%d dimensions", d))
			p.KeyValues([][2]string{
				{"subspaces", strconv.Itoa(len(res.Subspaces))},
				{"points per grid", strconv.Itoa(grid.PointsPerGrid)},
			})
			rows := make([][]string, len(res.Subspaces))
			for i, s := range res.Subspaces {
				rows[i] = []string{strconv.Itoa(i), strconv.Itoa(s[0]), strconv.Itoa(s[1])}
			}
			p.Table([]string{"index", "x", "y"}, rows)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print subspaces and grids as JSON")
	return cmd
}
