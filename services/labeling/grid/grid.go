// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package grid generates the 2D subspaces and evaluation grids of a setup.
//
// # Description
//
// A setup over d features is inspected through every pair of features. Each
// pair (a subspace) is evaluated on the same 21x21 lattice, so the geometry
// is computed once and shared. The raw grid spans [-7, 7] in steps of 0.7;
// the normalized grid is the absolute value of the lattice index scaled to
// [0, 1] in steps of 0.1.
//
// The package is pure: no I/O, no shared state.
package grid

import (
	"math"

	"github.com/AleutianAI/ifeed/services/labeling/datatypes"
)

const (
	// Extent is the largest lattice index; indices run from -Extent to Extent.
	Extent = 10

	// Side is the number of lattice points per axis.
	Side = 2*Extent + 1

	// PointsPerGrid is the number of points in every subspace grid.
	PointsPerGrid = Side * Side

	rawStep        = 0.7
	normalizedStep = 0.1

	// MinDimensions is the smallest dimensionality with at least one pair.
	MinDimensions = 2
)

// Result is the output of Generate.
type Result struct {
	Subspaces       []datatypes.Subspace
	Grids           []datatypes.Grid
	NormalizedGrids []datatypes.Grid
}

// Generate builds the subspaces and grids for d features.
//
// # Description
//
// Subspaces are all 2-combinations of 1..d in lexicographic order. Grids
// and NormalizedGrids hold one entry per subspace; every entry is the same
// 441-point lattice in row-major order over i then j.
//
// # Inputs
//
//   - d: Number of features spanned. Must be at least 2.
//
// # Outputs
//
//   - Result: subspaces and the two grid lists, all of length d*(d-1)/2.
//   - error: validation *datatypes.Error when d < 2.
//
// # Examples
//
//	res, _ := grid.Generate(3)
//	res.Subspaces          // [[1 2] [1 3] [2 3]]
//	res.Grids[0][0]        // [-7 -7]
//	res.NormalizedGrids[0][0] // [1 1]
//
// # Limitations
//
//   - The subspace grids share backing arrays; callers must not mutate them.
func Generate(d int) (Result, error) {
	if d < MinDimensions {
		return Result{}, datatypes.NewError(datatypes.CodeValidation,
			"subspaceDimensionCount must be at least %d, got %d", MinDimensions, d)
	}

	subspaces := Subspaces(d)
	raw, normalized := Lattice()

	res := Result{
		Subspaces:       subspaces,
		Grids:           make([]datatypes.Grid, len(subspaces)),
		NormalizedGrids: make([]datatypes.Grid, len(subspaces)),
	}
	for i := range subspaces {
		res.Grids[i] = raw
		res.NormalizedGrids[i] = normalized
	}
	return res, nil
}

// Subspaces returns every pair (a, b) with 1 <= a < b <= d in
// lexicographic order.
func Subspaces(d int) []datatypes.Subspace {
	if d < MinDimensions {
		return nil
	}
	out := make([]datatypes.Subspace, 0, Count(d))
	for a := 1; a <= d; a++ {
		for b := a + 1; b <= d; b++ {
			out = append(out, datatypes.Subspace{a, b})
		}
	}
	return out
}

// Count returns d choose 2.
func Count(d int) int {
	if d < MinDimensions {
		return 0
	}
	return d * (d - 1) / 2
}

// Lattice returns the raw and normalized 441-point grids.
func Lattice() (raw, normalized datatypes.Grid) {
	raw = make(datatypes.Grid, 0, PointsPerGrid)
	normalized = make(datatypes.Grid, 0, PointsPerGrid)
	for i := -Extent; i <= Extent; i++ {
		for j := -Extent; j <= Extent; j++ {
			raw = append(raw, datatypes.Point{
				float64(i) * rawStep,
				float64(j) * rawStep,
			})
			normalized = append(normalized, datatypes.Point{
				math.Abs(float64(i) * normalizedStep),
				math.Abs(float64(j) * normalizedStep),
			})
		}
	}
	return raw, normalized
}
