// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package inference

import (
	"encoding/json"

	"github.com/AleutianAI/ifeed/services/labeling/datatypes"
)

// Param keys the gateway adds to the setup params.
const (
	ParamClassifier    = "classifier"
	ParamQueryStrategy = "query_strategy"
)

// Response keys the gateway interprets. Everything else is passed through.
const (
	keyPredictionGlobal = "prediction_global"
	keyError            = "error"
	keyDetail           = "detail"
)

// EngineRequest is the body posted to the active-learning engine.
//
// # Description
//
// Data is the normalized dataset, Labels the current user tokens (one per
// row), QueryHistory the rows selected in each completed iteration, and
// SubspaceGrids the normalized grid of each subspace.
type EngineRequest struct {
	Data          [][]float64          `json:"data"`
	Labels        []string             `json:"labels"`
	Params        map[string]any       `json:"params"`
	QueryHistory  [][]int              `json:"query_history"`
	Subspaces     []datatypes.Subspace `json:"subspaces"`
	SubspaceGrids []datatypes.Grid     `json:"subspace_grids"`
}

// EngineResponse is a decoded engine reply.
//
// Fields holds every top-level key verbatim, including the recommendation
// fields the server does not interpret. Prediction is nil when the engine
// returned no prediction_global.
type EngineResponse struct {
	Fields     map[string]json.RawMessage
	Prediction datatypes.FinalLabels
}

// HasPrediction reports whether the engine returned prediction_global.
func (r EngineResponse) HasPrediction() bool {
	return r.Prediction != nil
}

// Evaluation is what an evaluate action returns to the caller.
//
// # Fields
//
//   - PredictionApplied: true when the session's final labels were replaced.
//     Always false for setup previews.
//   - FinalLabels: the session's final labels after the call, or the
//     preview prediction for a setup.
//   - Engine: the raw engine reply, recommendation fields included.
type Evaluation struct {
	SetupID           int64                      `json:"setupId"`
	SessionID         int64                      `json:"sessionId,omitempty"`
	PredictionApplied bool                       `json:"predictionApplied"`
	FinalLabels       datatypes.FinalLabels      `json:"finalLabels"`
	Engine            map[string]json.RawMessage `json:"engine"`
}
