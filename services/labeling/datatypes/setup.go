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

import "time"

// Point is a 2D grid coordinate encoded as [x, y].
type Point [2]float64

// Grid is the set of points a subspace is evaluated on.
type Grid []Point

// Subspace is a pair of 1-based feature indices.
type Subspace [2]int

// UnlimitedAnswerTime is the MaxAnswerTime value meaning "no limit".
const UnlimitedAnswerTime = -1

// Setup is the configuration of one labeling campaign.
//
// # Description
//
// An administrator creates a Setup in draft form and finalizes it by setting
// FinishedCreation. Sessions can only be opened on finalized setups, and
// once finalized the classifier, query strategy, dataset and all
// grid-derived fields are frozen.
//
// Subspaces, SubspaceGrids and SubspaceGridsNormalized always have the same
// length. They are generated once, when the setup is created.
//
// # Fields
//
//   - Params: values for the classifier and query-strategy parameters, keyed
//     by parameter name.
//   - MaxAnswerTime: seconds per answer, UnlimitedAnswerTime for none. It is
//     informational and never enforced server-side.
//   - Iterations: number of advance steps after which a session finishes.
type Setup struct {
	ID                      int64          `json:"id"`
	Name                    string         `json:"name"`
	Description             string         `json:"description,omitempty"`
	ClassifierID            int64          `json:"classifierId"`
	QueryStrategyID         int64          `json:"queryStrategyId"`
	DatasetID               int64          `json:"datasetId"`
	CreatorID               int64          `json:"creatorId"`
	Params                  map[string]any `json:"params"`
	RawDataVisible          bool           `json:"rawDataVisible"`
	Rewindable              bool           `json:"rewindable"`
	SubspaceDimensionCount  int            `json:"subspaceDimensionCount"`
	Subspaces               []Subspace     `json:"subspaces"`
	SubspaceGrids           []Grid         `json:"subspaceGrids"`
	SubspaceGridsNormalized []Grid         `json:"subspaceGridsNormalized"`
	MaxAnswerTime           int            `json:"maxAnswerTime"`
	Iterations              int            `json:"iterations"`
	HistoryMode             HistoryMode    `json:"historyMode"`
	FeedbackMode            FeedbackMode   `json:"feedbackMode"`
	FinishedCreation        bool           `json:"finishedCreation"`
	CreatedAt               time.Time      `json:"createdAt"`
}

// SetupFilter narrows Setup listings. Zero values match everything.
type SetupFilter struct {
	Name      string
	CreatorID int64
	DatasetID int64
	Finalized *bool
}
