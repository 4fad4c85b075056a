// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sessions

import (
	"math"
	"strconv"

	"github.com/AleutianAI/ifeed/services/labeling/datatypes"
)

// StatusOf returns the coarse status of a session: finished once finished,
// not started before the first advance, active otherwise.
func StatusOf(s datatypes.Session) datatypes.SessionStatus {
	switch {
	case s.Finished:
		return datatypes.StatusFinished
	case s.Iteration == 0:
		return datatypes.StatusNotStarted
	default:
		return datatypes.StatusActive
	}
}

// PercentFinished returns iteration/iterations as a rounded percentage.
// A finished session is always 100, even when closed early.
func PercentFinished(s datatypes.Session, iterations int) int {
	if s.Finished {
		return 100
	}
	if iterations <= 0 {
		return 0
	}
	p := int(math.Round(float64(s.Iteration) / float64(iterations) * 100))
	if p > 100 {
		return 100
	}
	return p
}

// ProgressOf summarizes a session against its setup.
func ProgressOf(s datatypes.Session, setup datatypes.Setup) datatypes.Progress {
	return datatypes.Progress{
		SessionID:  s.ID,
		Name:       s.Name,
		Iteration:  s.Iteration,
		Iterations: setup.Iterations,
		Percent:    PercentFinished(s, setup.Iterations),
		Status:     StatusOf(s),
		Pauses:     s.Pauses,
		Rewinds:    s.Rewinds,
		InProgress: s.InProgress,
	}
}

// CompareLabels computes agreement statistics between two final-label
// vectors.
//
// # Description
//
// Rows are classified into the four inlier/outlier combinations. Rows where
// either side is undefined are not counted. Agreement is the share of
// counted rows both sides label the same. Kappa is Cohen's kappa over the
// same table, and 1 when every counted row is an equal inlier or every one
// an equal outlier. Both are rounded to three significant digits.
//
// # Outputs
//
//   - datatypes.Comparison: Counts and ratios. SessionA and SessionB are
//     left for the caller to fill.
//   - error: ErrValidation when the vectors differ in length, ErrState when
//     no row has a defined label on both sides.
func CompareLabels(a, b datatypes.FinalLabels) (datatypes.Comparison, error) {
	if len(a) != len(b) {
		return datatypes.Comparison{}, datatypes.NewError(datatypes.CodeValidation,
			"final labels differ in length: %d vs %d", len(a), len(b))
	}
	c := datatypes.Comparison{Rows: len(a)}
	for i := range a {
		switch {
		case a[i] == datatypes.LabelInlier && b[i] == datatypes.LabelInlier:
			c.InlierInlier++
		case a[i] == datatypes.LabelOutlier && b[i] == datatypes.LabelOutlier:
			c.OutlierOutlier++
		case a[i] == datatypes.LabelInlier && b[i] == datatypes.LabelOutlier:
			c.InlierOutlier++
		case a[i] == datatypes.LabelOutlier && b[i] == datatypes.LabelInlier:
			c.OutlierInlier++
		}
	}
	total := c.InlierInlier + c.OutlierOutlier + c.InlierOutlier + c.OutlierInlier
	if total == 0 {
		return datatypes.Comparison{}, datatypes.NewError(datatypes.CodeState,
			"no row carries a final label in both sessions")
	}

	n := float64(total)
	p0 := float64(c.InlierInlier+c.OutlierOutlier) / n
	c.Agreement = roundSignificant(p0, 3)

	if c.InlierInlier == total || c.OutlierOutlier == total {
		c.Kappa = 1
		return c, nil
	}
	pIn := float64(c.InlierInlier+c.InlierOutlier) / n * float64(c.InlierInlier+c.OutlierInlier) / n
	pOut := float64(c.OutlierInlier+c.OutlierOutlier) / n * float64(c.InlierOutlier+c.OutlierOutlier) / n
	pe := pIn + pOut
	if pe == 1 {
		c.Kappa = 1
		return c, nil
	}
	c.Kappa = roundSignificant((p0-pe)/(1-pe), 3)
	return c, nil
}

// roundSignificant rounds v to digits significant digits.
func roundSignificant(v float64, digits int) float64 {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'g', digits, 64), 64)
	if err != nil {
		return v
	}
	return r
}

// ExportFileName names the label export download of a session.
func ExportFileName(sessionName string) string {
	return sessionName + "_labels.json"
}
