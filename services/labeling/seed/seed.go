// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package seed installs the default catalog, the default administrator and
// synthetic demo datasets, and wipes a store back to empty.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/AleutianAI/ifeed/services/labeling/datatypes"
	"github.com/AleutianAI/ifeed/services/labeling/storage"
)

// =============================================================================
// Default Objects
// =============================================================================

// DatasetTypes are the default dataset categories.
var DatasetTypes = []string{"image", "timeline"}

// Params are the default classifier parameters. Every default classifier
// takes all of them.
var Params = []datatypes.Param{
	{Name: "C", Type: datatypes.ParamDouble, Regex: `^(0(\.\d+)?)|(1(\.0+)?)`},
	{Name: "gamma", Type: datatypes.ParamDouble, Regex: `^([+-]?([0-9]*[.])?[0-9]+)$`},
}

// Classifiers are the default outlier-detection models.
var Classifiers = []string{"VanillaSVDD", "SVDDNeg", "SSAD"}

// QueryStrategies are the default active-learning strategies.
var QueryStrategies = []string{
	"MinimumMarginQs",
	"ExpectedMinimumMarginQs",
	"MaximumEntropyQs",
	"MinimumLossQs",
	"HighConfidenceQs",
	"DecisionBoundaryQs",
	"NeighborhoodBasedQs",
	"BoundaryNeighborCombination",
	"RandomQs",
	"RandomOutlierQs",
}

const (
	// DefaultAdminName is the administrator created by Defaults.
	DefaultAdminName = "admin"

	// DefaultAdminPassword is used when Options.AdminPassword is empty.
	DefaultAdminPassword = "root"
)

// Store is what seeding needs from storage.
type Store interface {
	storage.CatalogStore
	storage.DatasetStore
	storage.PersonStore
}

// Options tunes Defaults.
type Options struct {
	// AdminPassword replaces DefaultAdminPassword.
	AdminPassword string
}

// Report counts the records Defaults created.
type Report struct {
	DatasetTypes    int `json:"datasetTypes"`
	Params          int `json:"params"`
	Classifiers     int `json:"classifiers"`
	QueryStrategies int `json:"queryStrategies"`
	Admins          int `json:"admins"`
}

// Defaults installs the default catalog and administrator.
//
// # Description
//
// Records are matched by name, so running Defaults again only creates what
// is missing and never touches existing rows. Classifiers created here are
// linked to every default param.
//
// # Inputs
//
//   - ctx: Cancels the seeding between records.
//   - store: Target store.
//   - opts: Optional settings. Zero value uses DefaultAdminPassword.
//
// # Outputs
//
//   - Report: What was created.
//   - error: The first storage error, wrapped with the record it concerns.
func Defaults(ctx context.Context, store Store, opts Options) (Report, error) {
	var rep Report

	types, err := store.ListDatasetTypes(ctx)
	if err != nil {
		return rep, fmt.Errorf("list dataset types: %w", err)
	}
	typeNames := names(types, func(t datatypes.DatasetType) string { return t.Name })
	for _, name := range DatasetTypes {
		if typeNames[name] {
			continue
		}
		if _, err := store.CreateDatasetType(ctx, name); err != nil {
			return rep, fmt.Errorf("create dataset type %s: %w", name, err)
		}
		rep.DatasetTypes++
	}

	existingParams, err := store.ListParams(ctx)
	if err != nil {
		return rep, fmt.Errorf("list params: %w", err)
	}
	paramIDs := make(map[string]int64, len(existingParams))
	for _, p := range existingParams {
		paramIDs[p.Name] = p.ID
	}
	ids := make([]int64, 0, len(Params))
	for _, p := range Params {
		id, ok := paramIDs[p.Name]
		if !ok {
			created, err := store.CreateParam(ctx, p)
			if err != nil {
				return rep, fmt.Errorf("create param %s: %w", p.Name, err)
			}
			id = created.ID
			rep.Params++
		}
		ids = append(ids, id)
	}

	classifiers, err := store.ListClassifiers(ctx)
	if err != nil {
		return rep, fmt.Errorf("list classifiers: %w", err)
	}
	classifierNames := names(classifiers, func(c datatypes.Classifier) string { return c.Name })
	for _, name := range Classifiers {
		if classifierNames[name] {
			continue
		}
		if _, err := store.CreateClassifier(ctx, name, ids); err != nil {
			return rep, fmt.Errorf("create classifier %s: %w", name, err)
		}
		rep.Classifiers++
	}

	strategies, err := store.ListQueryStrategies(ctx)
	if err != nil {
		return rep, fmt.Errorf("list query strategies: %w", err)
	}
	strategyNames := names(strategies, func(q datatypes.QueryStrategy) string { return q.Name })
	for _, name := range QueryStrategies {
		if strategyNames[name] {
			continue
		}
		if _, err := store.CreateQueryStrategy(ctx, name, nil); err != nil {
			return rep, fmt.Errorf("create query strategy %s: %w", name, err)
		}
		rep.QueryStrategies++
	}

	_, err = store.GetPersonByName(ctx, DefaultAdminName)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		password := opts.AdminPassword
		if password == "" {
			password = DefaultAdminPassword
		}
		cred, err := datatypes.NewCredential(password)
		if err != nil {
			return rep, err
		}
		admin := datatypes.Person{Name: DefaultAdminName, Role: datatypes.RoleAdmin, Credential: cred}
		if _, err := store.CreatePerson(ctx, admin); err != nil {
			return rep, fmt.Errorf("create admin: %w", err)
		}
		rep.Admins++
	default:
		return rep, fmt.Errorf("look up admin: %w", err)
	}

	slog.Info("default objects seeded",
		"dataset_types", rep.DatasetTypes,
		"params", rep.Params,
		"classifiers", rep.Classifiers,
		"query_strategies", rep.QueryStrategies,
		"admins", rep.Admins)
	return rep, nil
}

func names[T any](items []T, name func(T) string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, it := range items {
		out[name(it)] = true
	}
	return out
}

// =============================================================================
// Demo Data
// =============================================================================

// demoExtent bounds the integer raw values of generated datasets.
const demoExtent = 7

// DemoOptions describes a synthetic dataset.
type DemoOptions struct {
	Name        string
	Dimensions  int
	Rows        int
	TitlePrefix string

	// TypeName names an existing dataset type. Default: "image".
	TypeName string

	// Rand supplies randomness. Default: an unseeded PCG source.
	Rand *rand.Rand
}

// Demo creates a random dataset.
//
// # Description
//
// Every cell is an integer x drawn uniformly from [-7, 8]. RawData keeps the
// integers; both Data and Normalized hold x/7, and every column's
// normalization factor is [-7, 7]. Columns are titled TitlePrefix+index.
//
// # Outputs
//
//   - datatypes.Dataset: The stored dataset.
//   - error: validation error for a bad shape, not_found when TypeName does
//     not exist, or a storage error.
func Demo(ctx context.Context, store Store, opts DemoOptions) (datatypes.Dataset, error) {
	if opts.Dimensions < 2 {
		return datatypes.Dataset{}, datatypes.NewError(datatypes.CodeValidation,
			"demo dataset needs at least 2 dimensions, got %d", opts.Dimensions)
	}
	if opts.Rows < 1 {
		return datatypes.Dataset{}, datatypes.NewError(datatypes.CodeValidation,
			"demo dataset needs at least 1 row, got %d", opts.Rows)
	}
	if opts.TypeName == "" {
		opts.TypeName = DatasetTypes[0]
	}
	if opts.TitlePrefix == "" {
		opts.TitlePrefix = "f"
	}
	r := opts.Rand
	if r == nil {
		r = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	typeID, err := datasetTypeID(ctx, store, opts.TypeName)
	if err != nil {
		return datatypes.Dataset{}, err
	}

	titles := make([]string, opts.Dimensions)
	factors := make([]datatypes.MinMax, opts.Dimensions)
	for i := range titles {
		titles[i] = fmt.Sprintf("%s%d", opts.TitlePrefix, i)
		factors[i] = datatypes.MinMax{-demoExtent, demoExtent}
	}
	values := make([][]float64, opts.Rows)
	raw := make([][]int, opts.Rows)
	for m := range values {
		values[m] = make([]float64, opts.Dimensions)
		raw[m] = make([]int, opts.Dimensions)
		for i := range values[m] {
			x := r.IntN(2*demoExtent+2) - demoExtent
			raw[m][i] = x
			values[m][i] = float64(x) / demoExtent
		}
	}
	rawJSON, err := json.Marshal(raw)
	if err != nil {
		return datatypes.Dataset{}, fmt.Errorf("encode raw data: %w", err)
	}

	d := datatypes.Dataset{
		Name:            opts.Name,
		Description:     "Automatically generated demo dataset",
		TypeID:          typeID,
		Data:            datatypes.FeatureMatrix{Titles: titles, Values: values},
		Normalized:      datatypes.FeatureMatrix{Titles: titles, Values: values},
		NormalizeFactor: factors,
		RawData:         rawJSON,
	}
	if err := d.Validate(); err != nil {
		return datatypes.Dataset{}, err
	}
	created, err := store.CreateDataset(ctx, d)
	if err != nil {
		return datatypes.Dataset{}, fmt.Errorf("create demo dataset %s: %w", d.Name, err)
	}
	slog.Info("demo dataset created", "dataset_id", created.ID, "rows", opts.Rows, "dimensions", opts.Dimensions)
	return created, nil
}

func datasetTypeID(ctx context.Context, store Store, name string) (int64, error) {
	types, err := store.ListDatasetTypes(ctx)
	if err != nil {
		return 0, fmt.Errorf("list dataset types: %w", err)
	}
	for _, t := range types {
		if t.Name == name {
			return t.ID, nil
		}
	}
	return 0, datatypes.NewError(datatypes.CodeNotFound, "dataset type %q does not exist", name)
}

// =============================================================================
// Reset
// =============================================================================

// TableStore exposes every table of a store for Reset.
type TableStore interface {
	storage.Resetter
	Tables() []storage.Table
}

// Reset deletes every row of every table.
func Reset(ctx context.Context, store TableStore) error {
	tables := store.Tables()
	if err := store.Reset(ctx, tables); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	slog.Warn("all tables reset", "tables", len(tables))
	return nil
}
