// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package setups

import (
	"context"
	"errors"
	"testing"

	"github.com/AleutianAI/ifeed/services/labeling/datatypes"
	"github.com/AleutianAI/ifeed/services/labeling/grid"
	"github.com/AleutianAI/ifeed/services/labeling/observability"
	"github.com/AleutianAI/ifeed/services/labeling/storage/sqlite/sqlitetest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, sqlitetest.Fixture, *observability.Metrics) {
	t.Helper()
	store := sqlitetest.Open(t)
	f := sqlitetest.Seed(t, store)
	m := observability.NewMetrics(prometheus.NewRegistry())
	return NewService(store, m), f, m
}

func validRequest(f sqlitetest.Fixture) datatypes.CreateSetupRequest {
	return datatypes.CreateSetupRequest{
		Name:            "new campaign",
		ClassifierID:    f.Classifier.ID,
		QueryStrategyID: f.Strategy.ID,
		DatasetID:       f.Dataset.ID,
		CreatorID:       f.Admin.ID,
		Params:          map[string]any{"C": 2.0, "kernel": "rbf"},
		MaxAnswerTime:   30,
		Iterations:      5,
		HistoryMode:     datatypes.HistoryDecisions,
		FeedbackMode:    datatypes.FeedbackSystem,
	}
}

// =============================================================================
// Create
// =============================================================================

func TestCreate_GeneratesGrids(t *testing.T) {
	// Arrange
	svc, f, m := newTestService(t)
	req := validRequest(f)
	req.SubspaceDimensionCount = 3

	// Act
	s, err := svc.Create(context.Background(), req)

	// Assert
	require.NoError(t, err)
	assert.NotZero(t, s.ID)
	assert.False(t, s.FinishedCreation)
	assert.Equal(t, []datatypes.Subspace{{1, 2}, {1, 3}, {2, 3}}, s.Subspaces)
	require.Len(t, s.SubspaceGrids, 3)
	require.Len(t, s.SubspaceGridsNormalized, 3)
	for i := range s.Subspaces {
		assert.Len(t, s.SubspaceGrids[i], grid.PointsPerGrid)
		assert.Len(t, s.SubspaceGridsNormalized[i], grid.PointsPerGrid)
	}
	assert.Equal(t, datatypes.Point{-7, -7}, s.SubspaceGrids[0][0])
	assert.Equal(t, datatypes.Point{1, 1}, s.SubspaceGridsNormalized[0][0])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SetupChangesTotal.WithLabelValues("create")))
}

func TestCreate_DefaultsDimensionToColumns(t *testing.T) {
	svc, f, _ := newTestService(t)

	s, err := svc.Create(context.Background(), validRequest(f))

	require.NoError(t, err)
	assert.Equal(t, sqlitetest.Columns, s.SubspaceDimensionCount)
	assert.Len(t, s.Subspaces, grid.Count(sqlitetest.Columns))
}

func TestCreate_Finalized(t *testing.T) {
	svc, f, _ := newTestService(t)
	req := validRequest(f)
	req.Finalize = true

	s, err := svc.Create(context.Background(), req)

	require.NoError(t, err)
	assert.True(t, s.FinishedCreation)
}

func TestCreate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *datatypes.CreateSetupRequest, f sqlitetest.Fixture)
		want   error
	}{
		{"missing name", func(r *datatypes.CreateSetupRequest, _ sqlitetest.Fixture) { r.Name = "" }, datatypes.ErrValidation},
		{"zero iterations", func(r *datatypes.CreateSetupRequest, _ sqlitetest.Fixture) { r.Iterations = 0 }, datatypes.ErrValidation},
		{"bad history mode", func(r *datatypes.CreateSetupRequest, _ sqlitetest.Fixture) { r.HistoryMode = "all" }, datatypes.ErrValidation},
		{"unknown classifier", func(r *datatypes.CreateSetupRequest, _ sqlitetest.Fixture) { r.ClassifierID = 999 }, datatypes.ErrNotFound},
		{"unknown strategy", func(r *datatypes.CreateSetupRequest, _ sqlitetest.Fixture) { r.QueryStrategyID = 999 }, datatypes.ErrNotFound},
		{"unknown dataset", func(r *datatypes.CreateSetupRequest, _ sqlitetest.Fixture) { r.DatasetID = 999 }, datatypes.ErrNotFound},
		{"unknown creator", func(r *datatypes.CreateSetupRequest, _ sqlitetest.Fixture) { r.CreatorID = 999 }, datatypes.ErrNotFound},
		{"creator not admin", func(r *datatypes.CreateSetupRequest, f sqlitetest.Fixture) { r.CreatorID = f.User.ID }, datatypes.ErrValidation},
		{"dimension too small", func(r *datatypes.CreateSetupRequest, _ sqlitetest.Fixture) { r.SubspaceDimensionCount = 1 }, datatypes.ErrValidation},
		{"dimension above columns", func(r *datatypes.CreateSetupRequest, _ sqlitetest.Fixture) { r.SubspaceDimensionCount = 4 }, datatypes.ErrValidation},
		{"param regex", func(r *datatypes.CreateSetupRequest, _ sqlitetest.Fixture) { r.Params = map[string]any{"kernel": "poly"} }, datatypes.ErrValidation},
		{"undeclared param", func(r *datatypes.CreateSetupRequest, _ sqlitetest.Fixture) { r.Params = map[string]any{"gamma": 1.0} }, datatypes.ErrValidation},
		{"duplicate name", func(r *datatypes.CreateSetupRequest, _ sqlitetest.Fixture) { r.Name = "campaign" }, datatypes.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, f, _ := newTestService(t)
			req := validRequest(f)
			tt.mutate(&req, f)

			_, err := svc.Create(context.Background(), req)

			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)

			list, listErr := svc.List(context.Background(), datatypes.SetupFilter{})
			require.NoError(t, listErr)
			assert.Len(t, list, 3, "rejected create must not persist")
		})
	}
}

func TestCreate_StoresNumericParamsAsNumbers(t *testing.T) {
	svc, f, _ := newTestService(t)
	req := validRequest(f)
	req.Params = map[string]any{"C": "2.5", "n_neighbors": "4"}

	created, err := svc.Create(context.Background(), req)
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, 2.5, got.Params["C"])
	assert.EqualValues(t, 4, got.Params["n_neighbors"])
	assert.IsType(t, float64(0), got.Params["n_neighbors"])
}

// =============================================================================
// Update and finalize
// =============================================================================

func TestUpdate_DraftAcceptsWorkflowChanges(t *testing.T) {
	svc, f, _ := newTestService(t)
	iterations := 7
	rewindable := false

	s, err := svc.Update(context.Background(), f.Draft.ID, datatypes.UpdateSetupRequest{
		Iterations: &iterations,
		Rewindable: &rewindable,
		Params:     map[string]any{"C": 1.5},
	})

	require.NoError(t, err)
	assert.Equal(t, 7, s.Iterations)
	assert.False(t, s.Rewindable)
	assert.InDelta(t, 1.5, s.Params["C"], 1e-9)
	assert.Equal(t, f.Draft.Subspaces, s.Subspaces)
}

func TestUpdate_DraftRevalidatesParams(t *testing.T) {
	svc, f, _ := newTestService(t)

	_, err := svc.Update(context.Background(), f.Draft.ID, datatypes.UpdateSetupRequest{
		Params: map[string]any{"kernel": "sigmoid"},
	})

	assert.True(t, errors.Is(err, datatypes.ErrValidation))
}

func TestUpdate_FinalizedIsImmutable(t *testing.T) {
	svc, f, _ := newTestService(t)
	dataset := f.Dataset.ID
	iterations := 10

	for _, req := range []datatypes.UpdateSetupRequest{
		{DatasetID: &dataset},
		{Iterations: &iterations},
		{Params: map[string]any{}},
	} {
		_, err := svc.Update(context.Background(), f.Setup.ID, req)
		assert.True(t, errors.Is(err, datatypes.ErrImmutable), "got %v", err)
	}

	got, err := svc.Get(context.Background(), f.Setup.ID)
	require.NoError(t, err)
	assert.Equal(t, f.Setup.Iterations, got.Iterations)
}

func TestUpdate_FinalizedAcceptsMetadata(t *testing.T) {
	svc, f, _ := newTestService(t)
	name := "renamed"
	desc := "second round"

	s, err := svc.Update(context.Background(), f.Setup.ID, datatypes.UpdateSetupRequest{Name: &name, Description: &desc})

	require.NoError(t, err)
	assert.Equal(t, "renamed", s.Name)
	assert.Equal(t, "second round", s.Description)
	assert.True(t, s.FinishedCreation)
}

func TestUpdate_DimensionIsFixed(t *testing.T) {
	svc, f, _ := newTestService(t)
	d := 2

	_, err := svc.Update(context.Background(), f.Draft.ID, datatypes.UpdateSetupRequest{SubspaceDimensionCount: &d})

	assert.True(t, errors.Is(err, datatypes.ErrImmutable))
}

func TestFinalize_Idempotent(t *testing.T) {
	svc, f, m := newTestService(t)

	first, err := svc.Finalize(context.Background(), f.Draft.ID)
	require.NoError(t, err)
	second, err := svc.Finalize(context.Background(), f.Draft.ID)
	require.NoError(t, err)

	assert.True(t, first.FinishedCreation)
	assert.True(t, second.FinishedCreation)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SetupChangesTotal.WithLabelValues("finalize")))
}

// =============================================================================
// Read and delete
// =============================================================================

func TestList_Filters(t *testing.T) {
	svc, _, _ := newTestService(t)
	finalized := true

	list, err := svc.List(context.Background(), datatypes.SetupFilter{Finalized: &finalized})

	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestGetDelete_NotFound(t *testing.T) {
	svc, f, _ := newTestService(t)

	require.NoError(t, svc.Delete(context.Background(), f.Draft.ID))

	_, err := svc.Get(context.Background(), f.Draft.ID)
	assert.True(t, errors.Is(err, datatypes.ErrNotFound))
	assert.True(t, errors.Is(svc.Delete(context.Background(), f.Draft.ID), datatypes.ErrNotFound))
}
