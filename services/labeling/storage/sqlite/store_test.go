// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/AleutianAI/ifeed/services/labeling/datatypes"
	"github.com/AleutianAI/ifeed/services/labeling/grid"
	"github.com/AleutianAI/ifeed/services/labeling/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "ifeed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

type fixture struct {
	classifier datatypes.Classifier
	strategy   datatypes.QueryStrategy
	dataset    datatypes.Dataset
	admin      datatypes.Person
	user       datatypes.Person
	setup      datatypes.Setup
}

func seedFixture(t *testing.T, store *Store) fixture {
	t.Helper()
	ctx := context.Background()
	var f fixture

	dt, err := store.CreateDatasetType(ctx, "image")
	require.NoError(t, err)
	c, err := store.CreateParam(ctx, datatypes.Param{Name: "C", Type: datatypes.ParamDouble, Regex: `^\d`})
	require.NoError(t, err)

	f.classifier, err = store.CreateClassifier(ctx, "VanillaSVDD", []int64{c.ID})
	require.NoError(t, err)
	f.strategy, err = store.CreateQueryStrategy(ctx, "RandomQs", nil)
	require.NoError(t, err)

	f.dataset, err = store.CreateDataset(ctx, datatypes.Dataset{
		Name:            "toy",
		TypeID:          dt.ID,
		Data:            datatypes.FeatureMatrix{Values: [][]float64{{1, 2, 3}, {4, 5, 6}}},
		Normalized:      datatypes.FeatureMatrix{Values: [][]float64{{0, 0, 0}, {1, 1, 1}}},
		NormalizeFactor: []datatypes.MinMax{{1, 4}, {2, 5}, {3, 6}},
		GroundTruth:     json.RawMessage(`["inlier","outlier"]`),
	})
	require.NoError(t, err)

	cred, err := datatypes.NewCredential("secret")
	require.NoError(t, err)
	f.admin, err = store.CreatePerson(ctx, datatypes.Person{Name: "root", Role: datatypes.RoleAdmin, Credential: cred})
	require.NoError(t, err)
	f.user, err = store.CreatePerson(ctx, datatypes.Person{Name: "alice", Role: datatypes.RoleUser})
	require.NoError(t, err)

	g, err := grid.Generate(3)
	require.NoError(t, err)
	f.setup, err = store.CreateSetup(ctx, datatypes.Setup{
		Name:                    "campaign",
		ClassifierID:            f.classifier.ID,
		QueryStrategyID:         f.strategy.ID,
		DatasetID:               f.dataset.ID,
		CreatorID:               f.admin.ID,
		Params:                  map[string]any{"C": 0.5},
		Rewindable:              true,
		SubspaceDimensionCount:  3,
		Subspaces:               g.Subspaces,
		SubspaceGrids:           g.Grids,
		SubspaceGridsNormalized: g.NormalizedGrids,
		MaxAnswerTime:           datatypes.UnlimitedAnswerTime,
		Iterations:              3,
		HistoryMode:             datatypes.HistoryDecisions,
		FeedbackMode:            datatypes.FeedbackSystem,
		FinishedCreation:        true,
	})
	require.NoError(t, err)
	return f
}

// =============================================================================
// Catalog
// =============================================================================

func TestCatalog_ClassifierParams(t *testing.T) {
	store := openTestStore(t)
	f := seedFixture(t, store)

	got, err := store.GetClassifier(context.Background(), f.classifier.ID)
	require.NoError(t, err)
	assert.Equal(t, "VanillaSVDD", got.Name)
	require.Len(t, got.Params, 1)
	assert.Equal(t, "C", got.Params[0].Name)
	assert.Equal(t, datatypes.ParamDouble, got.Params[0].Type)

	list, err := store.ListQueryStrategies(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Params)
}

func TestCatalog_DuplicateName(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.CreateDatasetType(ctx, "image")
	require.NoError(t, err)
	_, err = store.CreateDatasetType(ctx, "image")
	assert.True(t, errors.Is(err, storage.ErrAlreadyExists))
}

func TestCatalog_UnknownParamIsNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.CreateClassifier(context.Background(), "SSAD", []int64{42})
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	list, err := store.ListClassifiers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list, "failed create must roll back")
}

// =============================================================================
// Datasets, persons, setups
// =============================================================================

func TestDataset_RoundTrip(t *testing.T) {
	store := openTestStore(t)
	f := seedFixture(t, store)

	got, err := store.GetDataset(context.Background(), f.dataset.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.RowCount())
	assert.Equal(t, 3, got.ColumnCount())
	assert.Equal(t, f.dataset.NormalizeFactor, got.NormalizeFactor)
	assert.JSONEq(t, `["inlier","outlier"]`, string(got.GroundTruth))
	assert.Nil(t, got.RawData)
}

func TestDataset_DeleteInUse(t *testing.T) {
	store := openTestStore(t)
	f := seedFixture(t, store)

	err := store.DeleteDataset(context.Background(), f.dataset.ID)
	assert.True(t, errors.Is(err, storage.ErrInUse))
}

func TestPerson_CredentialPersisted(t *testing.T) {
	store := openTestStore(t)
	f := seedFixture(t, store)
	ctx := context.Background()

	admin, err := store.GetPersonByName(ctx, "root")
	require.NoError(t, err)
	assert.True(t, admin.VerifyPassword("secret"))

	user, err := store.GetPerson(ctx, f.user.ID)
	require.NoError(t, err)
	assert.False(t, user.HasCredential())

	deactivated := false
	users, err := store.ListPersons(ctx, datatypes.PersonFilter{Role: datatypes.RoleUser, Deactivated: &deactivated})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Name)
}

func TestSetup_RoundTrip(t *testing.T) {
	store := openTestStore(t)
	f := seedFixture(t, store)

	got, err := store.GetSetup(context.Background(), f.setup.ID)
	require.NoError(t, err)
	assert.True(t, got.FinishedCreation)
	assert.True(t, got.Rewindable)
	assert.Equal(t, []datatypes.Subspace{{1, 2}, {1, 3}, {2, 3}}, got.Subspaces)
	require.Len(t, got.SubspaceGridsNormalized, 3)
	assert.Len(t, got.SubspaceGridsNormalized[2], grid.PointsPerGrid)
	assert.InDelta(t, 0.5, got.Params["C"], 1e-9)
	assert.Equal(t, datatypes.UnlimitedAnswerTime, got.MaxAnswerTime)
}

func TestSetup_ListFilter(t *testing.T) {
	store := openTestStore(t)
	f := seedFixture(t, store)
	ctx := context.Background()

	list, err := store.ListSetups(ctx, datatypes.SetupFilter{Name: "camp"})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = store.ListSetups(ctx, datatypes.SetupFilter{DatasetID: f.dataset.ID + 100})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSetup_MissingReferenceIsNotFound(t *testing.T) {
	store := openTestStore(t)
	f := seedFixture(t, store)

	su := f.setup
	su.ID = 0
	su.Name = "other"
	su.DatasetID = 999
	_, err := store.CreateSetup(context.Background(), su)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

// =============================================================================
// Sessions
// =============================================================================

func newSession(t *testing.T, store *Store, f fixture) datatypes.Session {
	t.Helper()
	se, err := store.CreateSession(context.Background(), datatypes.Session{
		SetupID: f.setup.ID,
		UserID:  f.user.ID,
		Labels:  datatypes.NewUnlabeled(f.dataset.RowCount()),
	})
	require.NoError(t, err)
	return se
}

func TestSession_CreateAndGet(t *testing.T) {
	store := openTestStore(t)
	f := seedFixture(t, store)

	se := newSession(t, store, f)

	assert.NotZero(t, se.ID)
	assert.Equal(t, []string{"U", "U"}, se.Labels.Tokens())
	assert.Empty(t, se.FinalLabels)
	assert.Empty(t, se.History)
	assert.Nil(t, se.ActiveSince)
}

func TestSession_OnePerUserAndSetup(t *testing.T) {
	store := openTestStore(t)
	f := seedFixture(t, store)
	newSession(t, store, f)

	_, err := store.CreateSession(context.Background(), datatypes.Session{
		SetupID: f.setup.ID,
		UserID:  f.user.ID,
		Labels:  datatypes.NewUnlabeled(2),
	})
	assert.True(t, errors.Is(err, storage.ErrAlreadyExists))
}

func TestSession_MutatePersists(t *testing.T) {
	store := openTestStore(t)
	f := seedFixture(t, store)
	se := newSession(t, store, f)
	ctx := context.Background()

	updated, err := store.MutateSession(ctx, se.ID, func(s *datatypes.Session) error {
		s.Labels[1] = datatypes.LabelOutlier
		s.History = append(s.History, []int{1})
		s.Heatmaps = append(s.Heatmaps, json.RawMessage(`["1_2"]`))
		s.UserLabelMatchesAPI = append(s.UserLabelMatchesAPI, []bool{false})
		s.Iteration++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Iteration)

	got, err := store.GetSession(ctx, se.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"U", "Lout"}, got.Labels.Tokens())
	assert.Equal(t, [][]int{{1}}, got.History)
	assert.JSONEq(t, `["1_2"]`, string(got.Heatmaps[0]))
	assert.Equal(t, [][]bool{{false}}, got.UserLabelMatchesAPI)
}

func TestSession_HeatmapsStoredVerbatim(t *testing.T) {
	store := openTestStore(t)
	f := seedFixture(t, store)
	se := newSession(t, store, f)
	ctx := context.Background()
	snapshots := []json.RawMessage{
		json.RawMessage("{\"a\": 1,\n \"b\": [1, 2]}"),
		json.RawMessage("null"),
		json.RawMessage("[ \"1_2\" ,\t\"2_3\" ]"),
	}

	_, err := store.MutateSession(ctx, se.ID, func(s *datatypes.Session) error {
		s.Heatmaps = snapshots
		return nil
	})
	require.NoError(t, err)

	got, err := store.GetSession(ctx, se.ID)
	require.NoError(t, err)
	require.Len(t, got.Heatmaps, len(snapshots))
	for i := range snapshots {
		assert.Equal(t, string(snapshots[i]), string(got.Heatmaps[i]))
	}
}

func TestSession_MutateErrorWritesNothing(t *testing.T) {
	store := openTestStore(t)
	f := seedFixture(t, store)
	se := newSession(t, store, f)
	ctx := context.Background()

	boom := datatypes.NewError(datatypes.CodeState, "finished")
	_, err := store.MutateSession(ctx, se.ID, func(s *datatypes.Session) error {
		s.Iteration = 99
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.GetSession(ctx, se.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Iteration)
}

func TestSession_MutateMissing(t *testing.T) {
	store := openTestStore(t)

	_, err := store.MutateSession(context.Background(), 404, func(s *datatypes.Session) error { return nil })
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestSession_SetFinalLabels(t *testing.T) {
	store := openTestStore(t)
	f := seedFixture(t, store)
	se := newSession(t, store, f)

	got, err := store.SetFinalLabels(context.Background(), se.ID,
		datatypes.FinalLabels{datatypes.LabelInlier, datatypes.LabelOutlier})
	require.NoError(t, err)
	assert.Equal(t, []string{"inlier", "outlier"}, got.FinalLabels.Tokens())
	assert.Equal(t, []string{"U", "U"}, got.Labels.Tokens())
}

func TestSession_CascadeOnSetupDelete(t *testing.T) {
	store := openTestStore(t)
	f := seedFixture(t, store)
	se := newSession(t, store, f)
	ctx := context.Background()

	require.NoError(t, store.DeleteSetup(ctx, f.setup.ID))

	_, err := store.GetSession(ctx, se.ID)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

// =============================================================================
// Reset
// =============================================================================

func TestReset_AllTables(t *testing.T) {
	store := openTestStore(t)
	f := seedFixture(t, store)
	newSession(t, store, f)
	ctx := context.Background()

	require.NoError(t, store.Reset(ctx, store.Tables()))

	sessions, err := store.ListSessions(ctx, datatypes.SessionFilter{})
	require.NoError(t, err)
	assert.Empty(t, sessions)
	types, err := store.ListDatasetTypes(ctx)
	require.NoError(t, err)
	assert.Empty(t, types)

	// Sequences restart.
	dt, err := store.CreateDatasetType(ctx, "timeline")
	require.NoError(t, err)
	assert.Equal(t, int64(1), dt.ID)
}

func TestReset_OnlyGivenTables(t *testing.T) {
	store := openTestStore(t)
	f := seedFixture(t, store)
	newSession(t, store, f)
	ctx := context.Background()

	require.NoError(t, store.Reset(ctx, []storage.Table{TableSessions}))

	sessions, err := store.ListSessions(ctx, datatypes.SessionFilter{})
	require.NoError(t, err)
	assert.Empty(t, sessions)

	setups, err := store.ListSetups(ctx, datatypes.SetupFilter{})
	require.NoError(t, err)
	assert.Len(t, setups, 1)
}

func TestReset_ParentBeforeChildFails(t *testing.T) {
	store := openTestStore(t)
	seedFixture(t, store)

	err := store.Reset(context.Background(), []storage.Table{TableDatasets})
	assert.True(t, errors.Is(err, storage.ErrInUse))
}

func TestReset_UnknownTable(t *testing.T) {
	store := openTestStore(t)

	err := store.Reset(context.Background(), []storage.Table{Table("sqlite_master")})
	assert.Error(t, err)
}

func TestOpen_MigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ifeed.db")

	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}
