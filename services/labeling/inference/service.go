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
	"context"
	"log/slog"
	"maps"
	"strconv"

	"github.com/AleutianAI/ifeed/services/labeling/datatypes"
	"github.com/AleutianAI/ifeed/services/labeling/observability"
	"github.com/AleutianAI/ifeed/services/labeling/storage"
	"golang.org/x/sync/singleflight"
)

// Repository is the persistence the inference service reads from, plus the
// one write it performs.
type Repository interface {
	GetSession(ctx context.Context, id int64) (datatypes.Session, error)
	GetSetup(ctx context.Context, id int64) (datatypes.Setup, error)
	GetDataset(ctx context.Context, id int64) (datatypes.Dataset, error)
	GetClassifier(ctx context.Context, id int64) (datatypes.Classifier, error)
	GetQueryStrategy(ctx context.Context, id int64) (datatypes.QueryStrategy, error)
	SetFinalLabels(ctx context.Context, id int64, labels datatypes.FinalLabels) (datatypes.Session, error)
}

// Service runs evaluate actions.
//
// # Description
//
// Evaluation is always explicit and always recomputed from persisted state;
// nothing is cached. Concurrent previews of the same setup share one engine
// call while it is in flight.
//
// # Thread Safety
//
// Safe for concurrent use.
type Service struct {
	repo     Repository
	engine   Engine
	metrics  *observability.Metrics
	previews singleflight.Group
}

// NewService creates an inference service. metrics may be nil.
func NewService(repo Repository, engine Engine, metrics *observability.Metrics) *Service {
	return &Service{repo: repo, engine: engine, metrics: metrics}
}

// EvaluateSession asks the engine about a session and applies its global
// prediction.
//
// # Description
//
// The request carries the normalized dataset, the session's current user
// labels and full history, and the setup's params, subspaces and
// normalized grids. When the reply has prediction_global it replaces the
// session's final labels and is persisted; recommendation fields are
// returned but not stored. Only the final labels are written, so a label
// recorded while the engine was thinking is kept.
//
// # Outputs
//
//   - Evaluation: The session's final labels after the call and the raw
//     engine reply.
//   - error: engine_unavailable when the engine fails, in which case the
//     session is unchanged; not_found for unknown ids.
func (s *Service) EvaluateSession(ctx context.Context, id int64) (Evaluation, error) {
	se, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return Evaluation{}, storage.Translate(err, "session %d", id)
	}
	setup, err := s.repo.GetSetup(ctx, se.SetupID)
	if err != nil {
		return Evaluation{}, storage.Translate(err, "setup %d", se.SetupID)
	}
	req, err := s.buildRequest(ctx, setup, se.Labels.Tokens(), se.History)
	if err != nil {
		return Evaluation{}, err
	}

	resp, err := s.engine.Evaluate(ctx, observability.TargetSession, req)
	if err != nil {
		return Evaluation{}, err
	}

	out := Evaluation{SetupID: setup.ID, SessionID: se.ID, FinalLabels: se.FinalLabels, Engine: resp.Fields}
	if resp.HasPrediction() {
		updated, err := s.repo.SetFinalLabels(ctx, se.ID, resp.Prediction)
		if err != nil {
			return Evaluation{}, storage.Translate(err, "session %d", se.ID)
		}
		out.FinalLabels = updated.FinalLabels
		out.PredictionApplied = true
		s.metrics.RecordFinalLabelsReplaced()
	}
	if out.FinalLabels == nil {
		out.FinalLabels = datatypes.FinalLabels{}
	}
	slog.Info("session evaluated",
		"session_id", se.ID,
		"iteration", se.Iteration,
		"prediction_applied", out.PredictionApplied)
	return out, nil
}

// EvaluateSetup previews a setup: every row unlabeled and no history.
// Nothing is persisted.
//
// Concurrent previews of one setup share a single engine call. The shared
// call ignores the cancellation of whichever caller started it and is
// bounded by the gateway timeout instead; each caller still stops waiting
// when its own ctx is done.
func (s *Service) EvaluateSetup(ctx context.Context, id int64) (Evaluation, error) {
	shared := context.WithoutCancel(ctx)
	ch := s.previews.DoChan(strconv.FormatInt(id, 10), func() (any, error) {
		return s.previewSetup(shared, id)
	})
	select {
	case <-ctx.Done():
		return Evaluation{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Evaluation{}, res.Err
		}
		if res.Shared {
			slog.Debug("setup preview shared an in-flight engine call", "setup_id", id)
		}
		return res.Val.(Evaluation), nil
	}
}

func (s *Service) previewSetup(ctx context.Context, id int64) (Evaluation, error) {
	setup, err := s.repo.GetSetup(ctx, id)
	if err != nil {
		return Evaluation{}, storage.Translate(err, "setup %d", id)
	}
	dataset, err := s.repo.GetDataset(ctx, setup.DatasetID)
	if err != nil {
		return Evaluation{}, storage.Translate(err, "dataset %d", setup.DatasetID)
	}
	labels := datatypes.NewUnlabeled(dataset.RowCount()).Tokens()
	req, err := s.requestFor(ctx, setup, dataset, labels, [][]int{})
	if err != nil {
		return Evaluation{}, err
	}

	resp, err := s.engine.Evaluate(ctx, observability.TargetSetup, req)
	if err != nil {
		return Evaluation{}, err
	}
	out := Evaluation{SetupID: setup.ID, FinalLabels: resp.Prediction, Engine: resp.Fields}
	if out.FinalLabels == nil {
		out.FinalLabels = datatypes.FinalLabels{}
	}
	slog.Info("setup evaluated", "setup_id", setup.ID, "prediction", resp.HasPrediction())
	return out, nil
}

// =============================================================================
// Request assembly
// =============================================================================

func (s *Service) buildRequest(ctx context.Context, setup datatypes.Setup, labels []string, history [][]int) (EngineRequest, error) {
	dataset, err := s.repo.GetDataset(ctx, setup.DatasetID)
	if err != nil {
		return EngineRequest{}, storage.Translate(err, "dataset %d", setup.DatasetID)
	}
	return s.requestFor(ctx, setup, dataset, labels, history)
}

func (s *Service) requestFor(ctx context.Context, setup datatypes.Setup, dataset datatypes.Dataset, labels []string, history [][]int) (EngineRequest, error) {
	classifier, err := s.repo.GetClassifier(ctx, setup.ClassifierID)
	if err != nil {
		return EngineRequest{}, storage.Translate(err, "classifier %d", setup.ClassifierID)
	}
	strategy, err := s.repo.GetQueryStrategy(ctx, setup.QueryStrategyID)
	if err != nil {
		return EngineRequest{}, storage.Translate(err, "query strategy %d", setup.QueryStrategyID)
	}
	return BuildRequest(setup, dataset, classifier.Name, strategy.Name, labels, history), nil
}

// BuildRequest assembles the engine request.
//
// # Description
//
// Params is a copy of the setup params with "classifier" and
// "query_strategy" set to the model names; the setup itself is never
// modified. Nil slices are sent as empty arrays.
//
// # Examples
//
//	req := inference.BuildRequest(setup, dataset, "SSAD", "RandomQs", labels, nil)
//	req.Params["classifier"] // "SSAD"
func BuildRequest(setup datatypes.Setup, dataset datatypes.Dataset, classifier, strategy string, labels []string, history [][]int) EngineRequest {
	params := make(map[string]any, len(setup.Params)+2)
	maps.Copy(params, setup.Params)
	params[ParamClassifier] = classifier
	params[ParamQueryStrategy] = strategy

	if labels == nil {
		labels = []string{}
	}
	if history == nil {
		history = [][]int{}
	}
	data := dataset.Normalized.Values
	if data == nil {
		data = [][]float64{}
	}
	subspaces := setup.Subspaces
	if subspaces == nil {
		subspaces = []datatypes.Subspace{}
	}
	grids := setup.SubspaceGridsNormalized
	if grids == nil {
		grids = []datatypes.Grid{}
	}
	return EngineRequest{
		Data:          data,
		Labels:        labels,
		Params:        params,
		QueryHistory:  history,
		Subspaces:     subspaces,
		SubspaceGrids: grids,
	}
}
