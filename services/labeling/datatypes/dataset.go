// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/json"
	"time"
)

// FeatureMatrix is a row-major numeric table with optional column titles.
type FeatureMatrix struct {
	Titles []string    `json:"titles,omitempty"`
	Values [][]float64 `json:"values"`
}

// Rows returns the number of rows.
func (m FeatureMatrix) Rows() int {
	return len(m.Values)
}

// Columns returns the column count of the first row, or 0 when empty.
func (m FeatureMatrix) Columns() int {
	if len(m.Values) == 0 {
		return 0
	}
	return len(m.Values[0])
}

// MinMax is the per-feature normalization factor, encoded as [min, max].
type MinMax [2]float64

// Dataset is a named, typed feature matrix plus its normalized twin.
//
// # Description
//
// Data and Normalized are row-aligned: row i of Normalized is the normalized
// form of row i of Data. The engine only ever sees Normalized. RawData and
// GroundTruth are opaque documents kept for display and offline scoring.
type Dataset struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	TypeID          int64           `json:"typeId"`
	Data            FeatureMatrix   `json:"dataset"`
	Normalized      FeatureMatrix   `json:"datasetNormalized"`
	NormalizeFactor []MinMax        `json:"normalizeFactor"`
	RawData         json.RawMessage `json:"rawData,omitempty"`
	GroundTruth     json.RawMessage `json:"groundtruth,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// RowCount returns the number of rows, which fixes the length of every
// session's label vector.
func (d Dataset) RowCount() int {
	return d.Data.Rows()
}

// ColumnCount returns the number of features.
func (d Dataset) ColumnCount() int {
	return d.Data.Columns()
}

// Validate checks the shape invariants: both matrices share the same
// non-empty rectangular shape, titles (when present) name every column, and
// there is one normalization factor per column.
func (d Dataset) Validate() error {
	if d.Name == "" {
		return NewError(CodeValidation, "dataset name is required")
	}
	if err := validateMatrix("dataset", d.Data); err != nil {
		return err
	}
	if err := validateMatrix("datasetNormalized", d.Normalized); err != nil {
		return err
	}
	if d.Data.Rows() != d.Normalized.Rows() || d.Data.Columns() != d.Normalized.Columns() {
		return NewError(CodeValidation,
			"dataset is %dx%d but datasetNormalized is %dx%d",
			d.Data.Rows(), d.Data.Columns(), d.Normalized.Rows(), d.Normalized.Columns())
	}
	if len(d.NormalizeFactor) != d.ColumnCount() {
		return NewError(CodeValidation,
			"normalizeFactor has %d entries, want %d", len(d.NormalizeFactor), d.ColumnCount())
	}
	for i, f := range d.NormalizeFactor {
		if f[0] > f[1] {
			return NewError(CodeValidation, "normalizeFactor[%d] has min > max", i)
		}
	}
	if len(d.RawData) > 0 && !json.Valid(d.RawData) {
		return NewError(CodeValidation, "rawData is not valid JSON")
	}
	if len(d.GroundTruth) > 0 && !json.Valid(d.GroundTruth) {
		return NewError(CodeValidation, "groundtruth is not valid JSON")
	}
	return nil
}

func validateMatrix(field string, m FeatureMatrix) error {
	if m.Rows() == 0 {
		return NewError(CodeValidation, "%s has no rows", field)
	}
	cols := m.Columns()
	if cols == 0 {
		return NewError(CodeValidation, "%s has no columns", field)
	}
	for i, row := range m.Values {
		if len(row) != cols {
			return NewError(CodeValidation, "%s row %d has %d columns, want %d", field, i, len(row), cols)
		}
	}
	if len(m.Titles) > 0 && len(m.Titles) != cols {
		return NewError(CodeValidation, "%s has %d titles for %d columns", field, len(m.Titles), cols)
	}
	return nil
}
