// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package setups is the configuration store for labeling campaigns.
//
// A Setup is created in draft form, may be edited freely until it is
// finalized, and from then on only its name and description can change.
// Subspace grids are generated once at creation and never recomputed.
package setups

import (
	"context"
	"log/slog"

	"github.com/AleutianAI/ifeed/services/labeling/datatypes"
	"github.com/AleutianAI/ifeed/services/labeling/grid"
	"github.com/AleutianAI/ifeed/services/labeling/observability"
	"github.com/AleutianAI/ifeed/services/labeling/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var setupsTracer = otel.Tracer("ifeed.labeling.setups")

// =============================================================================
// Interfaces
// =============================================================================

// Repository is the persistence the setup service needs: its own table plus
// read access to everything a setup references.
type Repository interface {
	storage.SetupStore
	GetClassifier(ctx context.Context, id int64) (datatypes.Classifier, error)
	GetQueryStrategy(ctx context.Context, id int64) (datatypes.QueryStrategy, error)
	GetDataset(ctx context.Context, id int64) (datatypes.Dataset, error)
	GetPerson(ctx context.Context, id int64) (datatypes.Person, error)
}

// =============================================================================
// Service
// =============================================================================

// Service implements the setup configuration operations.
//
// # Thread Safety
//
// Safe for concurrent use; all state lives in the repository.
type Service struct {
	repo    Repository
	metrics *observability.Metrics
}

// NewService creates a setup service. metrics may be nil.
func NewService(repo Repository, metrics *observability.Metrics) *Service {
	return &Service{repo: repo, metrics: metrics}
}

// Create validates a new setup and persists it with freshly generated grids.
//
// # Description
//
// Validation happens in this order, and nothing is written unless all of it
// passes:
//  1. request shape (required fields, enum values, iterations >= 1)
//  2. creator exists, is an admin and is not deactivated
//  3. classifier, query strategy and dataset exist (not_found otherwise)
//  4. subspaceDimensionCount is between 2 and the dataset column count
//  5. every parameter value matches its declared type and regex
//
// A zero subspaceDimensionCount defaults to the dataset column count.
// The setup is stored in draft form unless req.Finalize is set.
//
// # Inputs
//
//   - ctx: Context for cancellation and tracing.
//   - req: The setup description.
//
// # Outputs
//
//   - datatypes.Setup: The stored setup, including grids and id.
//   - error: *datatypes.Error with a taxonomy code.
//
// # Examples
//
//	s, err := svc.Create(ctx, datatypes.CreateSetupRequest{
//	    Name: "campaign", ClassifierID: 1, QueryStrategyID: 1, DatasetID: 1,
//	    CreatorID: 1, Iterations: 10, HistoryMode: "none", FeedbackMode: "system",
//	})
func (s *Service) Create(ctx context.Context, req datatypes.CreateSetupRequest) (datatypes.Setup, error) {
	ctx, span := setupsTracer.Start(ctx, "setups.Create")
	defer span.End()

	if err := req.Validate(); err != nil {
		return datatypes.Setup{}, err
	}
	if err := s.checkCreator(ctx, req.CreatorID); err != nil {
		return datatypes.Setup{}, err
	}
	dataset, params, err := s.checkReferences(ctx, req.ClassifierID, req.QueryStrategyID, req.DatasetID, req.Params)
	if err != nil {
		return datatypes.Setup{}, err
	}

	d := req.SubspaceDimensionCount
	if d == 0 {
		d = dataset.ColumnCount()
	}
	if d > dataset.ColumnCount() {
		return datatypes.Setup{}, datatypes.NewError(datatypes.CodeValidation,
			"subspaceDimensionCount %d exceeds the %d columns of dataset %d", d, dataset.ColumnCount(), dataset.ID)
	}
	grids, err := grid.Generate(d)
	if err != nil {
		return datatypes.Setup{}, err
	}

	created, err := s.repo.CreateSetup(ctx, datatypes.Setup{
		Name:                    req.Name,
		Description:             req.Description,
		ClassifierID:            req.ClassifierID,
		QueryStrategyID:         req.QueryStrategyID,
		DatasetID:               req.DatasetID,
		CreatorID:               req.CreatorID,
		Params:                  params,
		RawDataVisible:          req.RawDataVisible,
		Rewindable:              req.Rewindable,
		SubspaceDimensionCount:  d,
		Subspaces:               grids.Subspaces,
		SubspaceGrids:           grids.Grids,
		SubspaceGridsNormalized: grids.NormalizedGrids,
		MaxAnswerTime:           req.MaxAnswerTime,
		Iterations:              req.Iterations,
		HistoryMode:             req.HistoryMode,
		FeedbackMode:            req.FeedbackMode,
		FinishedCreation:        req.Finalize,
	})
	if err != nil {
		return datatypes.Setup{}, storage.Translate(err, "setup %q", req.Name)
	}

	span.SetAttributes(attribute.Int64("setup.id", created.ID), attribute.Int("setup.subspaces", len(created.Subspaces)))
	slog.Info("setup created",
		"setup_id", created.ID,
		"name", created.Name,
		"subspaces", len(created.Subspaces),
		"finalized", created.FinishedCreation)
	s.metrics.RecordSetupChange(observability.OpCreate)
	return created, nil
}

// Get returns one setup.
func (s *Service) Get(ctx context.Context, id int64) (datatypes.Setup, error) {
	setup, err := s.repo.GetSetup(ctx, id)
	if err != nil {
		return datatypes.Setup{}, storage.Translate(err, "setup %d", id)
	}
	return setup, nil
}

// List returns the setups matching filter.
func (s *Service) List(ctx context.Context, filter datatypes.SetupFilter) ([]datatypes.Setup, error) {
	out, err := s.repo.ListSetups(ctx, filter)
	if err != nil {
		return nil, storage.Translate(err, "setups")
	}
	return out, nil
}

// Update applies a partial update.
//
// # Description
//
// Finalized setups accept only name and description changes; anything else
// fails with immutable_state. For drafts, a changed classifier, query
// strategy, dataset or params set is revalidated as a whole. The subspace
// dimension count is fixed at creation because the grids derive from it.
//
// # Outputs
//
//   - datatypes.Setup: The setup after the update.
//   - error: *datatypes.Error with a taxonomy code.
func (s *Service) Update(ctx context.Context, id int64, req datatypes.UpdateSetupRequest) (datatypes.Setup, error) {
	ctx, span := setupsTracer.Start(ctx, "setups.Update", trace.WithAttributes(attribute.Int64("setup.id", id)))
	defer span.End()

	if err := req.Validate(); err != nil {
		return datatypes.Setup{}, err
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return datatypes.Setup{}, err
	}
	if current.FinishedCreation && req.TouchesFrozenFields() {
		return datatypes.Setup{}, datatypes.NewError(datatypes.CodeImmutable,
			"setup %d is finalized; only name and description may change", id)
	}
	if req.SubspaceDimensionCount != nil && *req.SubspaceDimensionCount != current.SubspaceDimensionCount {
		return datatypes.Setup{}, datatypes.NewError(datatypes.CodeImmutable,
			"subspaceDimensionCount is fixed at creation")
	}

	next := applyUpdate(current, req)
	if next.ClassifierID != current.ClassifierID || next.QueryStrategyID != current.QueryStrategyID ||
		next.DatasetID != current.DatasetID || req.Params != nil {
		dataset, params, err := s.checkReferences(ctx, next.ClassifierID, next.QueryStrategyID, next.DatasetID, next.Params)
		if err != nil {
			return datatypes.Setup{}, err
		}
		next.Params = params
		if next.SubspaceDimensionCount > dataset.ColumnCount() {
			return datatypes.Setup{}, datatypes.NewError(datatypes.CodeValidation,
				"dataset %d has only %d columns", dataset.ID, dataset.ColumnCount())
		}
	}

	if err := s.repo.UpdateSetup(ctx, next); err != nil {
		return datatypes.Setup{}, storage.Translate(err, "setup %d", id)
	}
	slog.Info("setup updated", "setup_id", id)
	s.metrics.RecordSetupChange(observability.OpUpdate)
	return s.Get(ctx, id)
}

// Finalize freezes a setup so sessions can be opened on it. Finalizing an
// already finalized setup is a no-op.
func (s *Service) Finalize(ctx context.Context, id int64) (datatypes.Setup, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return datatypes.Setup{}, err
	}
	if current.FinishedCreation {
		return current, nil
	}
	current.FinishedCreation = true
	if err := s.repo.UpdateSetup(ctx, current); err != nil {
		return datatypes.Setup{}, storage.Translate(err, "setup %d", id)
	}
	slog.Info("setup finalized", "setup_id", id, "name", current.Name)
	s.metrics.RecordSetupChange(observability.OpFinalize)
	return s.Get(ctx, id)
}

// Delete removes a setup. Its sessions are removed with it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteSetup(ctx, id); err != nil {
		return storage.Translate(err, "setup %d", id)
	}
	slog.Info("setup deleted", "setup_id", id)
	s.metrics.RecordSetupChange(observability.OpDelete)
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

func (s *Service) checkCreator(ctx context.Context, id int64) error {
	p, err := s.repo.GetPerson(ctx, id)
	if err != nil {
		return storage.Translate(err, "creator %d", id)
	}
	if p.Role != datatypes.RoleAdmin {
		return datatypes.NewError(datatypes.CodeValidation, "creator %d is not an admin", id)
	}
	if p.Deactivated {
		return datatypes.NewError(datatypes.CodeForbidden, "creator %d is deactivated", id)
	}
	return nil
}

// checkReferences loads the classifier, query strategy and dataset and
// validates params against their declarations, returning the canonical
// params.
func (s *Service) checkReferences(ctx context.Context, classifierID, strategyID, datasetID int64, params map[string]any) (datatypes.Dataset, map[string]any, error) {
	c, err := s.repo.GetClassifier(ctx, classifierID)
	if err != nil {
		return datatypes.Dataset{}, nil, storage.Translate(err, "classifier %d", classifierID)
	}
	q, err := s.repo.GetQueryStrategy(ctx, strategyID)
	if err != nil {
		return datatypes.Dataset{}, nil, storage.Translate(err, "query strategy %d", strategyID)
	}
	d, err := s.repo.GetDataset(ctx, datasetID)
	if err != nil {
		return datatypes.Dataset{}, nil, storage.Translate(err, "dataset %d", datasetID)
	}
	canonical, err := ValidateParams(params, DeclaredParams(c, q))
	if err != nil {
		return datatypes.Dataset{}, nil, err
	}
	return d, canonical, nil
}

func applyUpdate(s datatypes.Setup, req datatypes.UpdateSetupRequest) datatypes.Setup {
	if req.Name != nil {
		s.Name = *req.Name
	}
	if req.Description != nil {
		s.Description = *req.Description
	}
	if req.ClassifierID != nil {
		s.ClassifierID = *req.ClassifierID
	}
	if req.QueryStrategyID != nil {
		s.QueryStrategyID = *req.QueryStrategyID
	}
	if req.DatasetID != nil {
		s.DatasetID = *req.DatasetID
	}
	if req.Params != nil {
		s.Params = req.Params
	}
	if req.RawDataVisible != nil {
		s.RawDataVisible = *req.RawDataVisible
	}
	if req.Rewindable != nil {
		s.Rewindable = *req.Rewindable
	}
	if req.MaxAnswerTime != nil {
		s.MaxAnswerTime = *req.MaxAnswerTime
	}
	if req.Iterations != nil {
		s.Iterations = *req.Iterations
	}
	if req.HistoryMode != nil {
		s.HistoryMode = *req.HistoryMode
	}
	if req.FeedbackMode != nil {
		s.FeedbackMode = *req.FeedbackMode
	}
	return s
}
