// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sqlitetest provides a temporary SQLite store seeded with a small,
// known catalog for tests in other packages.
package sqlitetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/AleutianAI/ifeed/services/labeling/datatypes"
	"github.com/AleutianAI/ifeed/services/labeling/grid"
	"github.com/AleutianAI/ifeed/services/labeling/storage/sqlite"
	"github.com/stretchr/testify/require"
)

// Rows is the row count of the fixture dataset.
const Rows = 5

// Columns is the column count of the fixture dataset.
const Columns = 3

// Fixture holds the records created by Seed.
//
// Setup is finalized, rewindable and runs 3 iterations. Locked is finalized
// and not rewindable. Draft is not finalized.
type Fixture struct {
	Classifier datatypes.Classifier
	Strategy   datatypes.QueryStrategy
	Dataset    datatypes.Dataset
	Admin      datatypes.Person
	User       datatypes.Person
	Other      datatypes.Person
	Inactive   datatypes.Person
	Setup      datatypes.Setup
	Locked     datatypes.Setup
	Draft      datatypes.Setup
}

// Open returns an empty store in t.TempDir(), closed on cleanup.
func Open(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "ifeed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// Seed fills store with the fixture records.
func Seed(t *testing.T, store *sqlite.Store) Fixture {
	t.Helper()
	ctx := context.Background()
	var f Fixture

	dt, err := store.CreateDatasetType(ctx, "image")
	require.NoError(t, err)
	c, err := store.CreateParam(ctx, datatypes.Param{Name: "C", Type: datatypes.ParamDouble, Regex: `^\d+(\.\d+)?$`})
	require.NoError(t, err)
	kernel, err := store.CreateParam(ctx, datatypes.Param{Name: "kernel", Type: datatypes.ParamString, Regex: `^(rbf|linear)$`})
	require.NoError(t, err)
	n, err := store.CreateParam(ctx, datatypes.Param{Name: "n_neighbors", Type: datatypes.ParamInt})
	require.NoError(t, err)

	f.Classifier, err = store.CreateClassifier(ctx, "VanillaSVDD", []int64{c.ID, kernel.ID})
	require.NoError(t, err)
	f.Strategy, err = store.CreateQueryStrategy(ctx, "DecisionBoundaryQs", []int64{n.ID})
	require.NoError(t, err)

	f.Dataset, err = store.CreateDataset(ctx, datatypes.Dataset{
		Name:   "toy",
		TypeID: dt.ID,
		Data: datatypes.FeatureMatrix{
			Titles: []string{"a", "b", "c"},
			Values: [][]float64{{1, 10, 100}, {2, 20, 200}, {3, 30, 300}, {4, 40, 400}, {5, 50, 500}},
		},
		Normalized: datatypes.FeatureMatrix{
			Values: [][]float64{{0, 0, 0}, {0.25, 0.25, 0.25}, {0.5, 0.5, 0.5}, {0.75, 0.75, 0.75}, {1, 1, 1}},
		},
		NormalizeFactor: []datatypes.MinMax{{1, 5}, {10, 50}, {100, 500}},
	})
	require.NoError(t, err)

	cred, err := datatypes.NewCredential("secret")
	require.NoError(t, err)
	f.Admin, err = store.CreatePerson(ctx, datatypes.Person{Name: "root", Role: datatypes.RoleAdmin, Credential: cred})
	require.NoError(t, err)
	f.User, err = store.CreatePerson(ctx, datatypes.Person{Name: "alice", Role: datatypes.RoleUser})
	require.NoError(t, err)
	f.Other, err = store.CreatePerson(ctx, datatypes.Person{Name: "bob", Role: datatypes.RoleUser})
	require.NoError(t, err)
	f.Inactive, err = store.CreatePerson(ctx, datatypes.Person{Name: "carol", Role: datatypes.RoleUser, Deactivated: true})
	require.NoError(t, err)

	f.Setup = createSetup(t, store, f, "campaign", true, true)
	f.Locked = createSetup(t, store, f, "locked", false, true)
	f.Draft = createSetup(t, store, f, "draft", true, false)
	return f
}

func createSetup(t *testing.T, store *sqlite.Store, f Fixture, name string, rewindable, final bool) datatypes.Setup {
	t.Helper()
	g, err := grid.Generate(Columns)
	require.NoError(t, err)
	s, err := store.CreateSetup(context.Background(), datatypes.Setup{
		Name:                    name,
		ClassifierID:            f.Classifier.ID,
		QueryStrategyID:         f.Strategy.ID,
		DatasetID:               f.Dataset.ID,
		CreatorID:               f.Admin.ID,
		Params:                  map[string]any{"C": 0.5},
		Rewindable:              rewindable,
		SubspaceDimensionCount:  Columns,
		Subspaces:               g.Subspaces,
		SubspaceGrids:           g.Grids,
		SubspaceGridsNormalized: g.NormalizedGrids,
		MaxAnswerTime:           datatypes.UnlimitedAnswerTime,
		Iterations:              3,
		HistoryMode:             datatypes.HistoryHeatmaps,
		FeedbackMode:            datatypes.FeedbackHybrid,
		FinishedCreation:        final,
	})
	require.NoError(t, err)
	return s
}
