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
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/AleutianAI/ifeed/services/labeling/datatypes"
	"github.com/AleutianAI/ifeed/services/labeling/storage"
)

// =============================================================================
// Dataset types
// =============================================================================

// CreateDatasetType inserts a dataset category.
func (s *Store) CreateDatasetType(ctx context.Context, name string) (datatypes.DatasetType, error) {
	if err := ctx.Err(); err != nil {
		return datatypes.DatasetType{}, err
	}
	name = strings.TrimSpace(name)
	res, err := s.sqlDB.ExecContext(ctx, `INSERT INTO dataset_types (name) VALUES (?)`, name)
	if err != nil {
		return datatypes.DatasetType{}, classifyWrite("create dataset type", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return datatypes.DatasetType{}, fmt.Errorf("create dataset type: %w", err)
	}
	return datatypes.DatasetType{ID: id, Name: name}, nil
}

// GetDatasetType fetches a dataset category by id.
func (s *Store) GetDatasetType(ctx context.Context, id int64) (datatypes.DatasetType, error) {
	if err := ctx.Err(); err != nil {
		return datatypes.DatasetType{}, err
	}
	var dt datatypes.DatasetType
	err := s.sqlDB.QueryRowContext(ctx, `SELECT id, name FROM dataset_types WHERE id = ?`, id).
		Scan(&dt.ID, &dt.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return datatypes.DatasetType{}, fmt.Errorf("get dataset type %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return datatypes.DatasetType{}, fmt.Errorf("get dataset type %d: %w", id, err)
	}
	return dt, nil
}

// ListDatasetTypes returns all categories ordered by id.
func (s *Store) ListDatasetTypes(ctx context.Context) ([]datatypes.DatasetType, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT id, name FROM dataset_types ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list dataset types: %w", err)
	}
	defer rows.Close()

	out := []datatypes.DatasetType{}
	for rows.Next() {
		var dt datatypes.DatasetType
		if err := rows.Scan(&dt.ID, &dt.Name); err != nil {
			return nil, fmt.Errorf("scan dataset type: %w", err)
		}
		out = append(out, dt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list dataset types: %w", err)
	}
	return out, nil
}

// =============================================================================
// Params
// =============================================================================

// CreateParam inserts a parameter declaration.
func (s *Store) CreateParam(ctx context.Context, p datatypes.Param) (datatypes.Param, error) {
	if err := ctx.Err(); err != nil {
		return datatypes.Param{}, err
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO params (name, type, validation_regex) VALUES (?, ?, ?)`,
		strings.TrimSpace(p.Name), string(p.Type), p.Regex)
	if err != nil {
		return datatypes.Param{}, classifyWrite("create param", err)
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return datatypes.Param{}, fmt.Errorf("create param: %w", err)
	}
	p.Name = strings.TrimSpace(p.Name)
	return p, nil
}

// ListParams returns every parameter ordered by id.
func (s *Store) ListParams(ctx context.Context) ([]datatypes.Param, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, name, type, validation_regex FROM params ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list params: %w", err)
	}
	defer rows.Close()
	return scanParams(rows)
}

func scanParams(rows *sql.Rows) ([]datatypes.Param, error) {
	out := []datatypes.Param{}
	for rows.Next() {
		var p datatypes.Param
		var typ string
		if err := rows.Scan(&p.ID, &p.Name, &typ, &p.Regex); err != nil {
			return nil, fmt.Errorf("scan param: %w", err)
		}
		p.Type = datatypes.ParamType(typ)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan params: %w", err)
	}
	return out, nil
}

// =============================================================================
// Classifiers and query strategies
// =============================================================================

// modelTables names the two tables of a parameterized engine component.
type modelTables struct {
	kind      string
	table     string
	joinTable string
	joinKey   string
}

var (
	classifierTables = modelTables{
		kind: "classifier", table: "classifiers",
		joinTable: "classifier_params", joinKey: "classifier_id",
	}
	queryStrategyTables = modelTables{
		kind: "query strategy", table: "query_strategies",
		joinTable: "query_strategy_params", joinKey: "query_strategy_id",
	}
)

type model struct {
	id     int64
	name   string
	params []datatypes.Param
}

func (s *Store) createModel(ctx context.Context, t modelTables, name string, paramIDs []int64) (model, error) {
	if err := ctx.Err(); err != nil {
		return model{}, err
	}
	m := model{name: strings.TrimSpace(name)}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO `+t.table+` (name) VALUES (?)`, m.name)
		if err != nil {
			return classifyWrite("create "+t.kind, err)
		}
		if m.id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("create %s: %w", t.kind, err)
		}
		for _, pid := range paramIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO `+t.joinTable+` (`+t.joinKey+`, param_id) VALUES (?, ?)`,
				m.id, pid); err != nil {
				return classifyWrite(fmt.Sprintf("attach param %d to %s", pid, t.kind), err)
			}
		}
		m.params, err = loadModelParams(ctx, tx, t, m.id)
		return err
	})
	if err != nil {
		return model{}, err
	}
	return m, nil
}

func (s *Store) getModel(ctx context.Context, t modelTables, id int64) (model, error) {
	if err := ctx.Err(); err != nil {
		return model{}, err
	}
	m := model{}
	err := s.sqlDB.QueryRowContext(ctx, `SELECT id, name FROM `+t.table+` WHERE id = ?`, id).
		Scan(&m.id, &m.name)
	if errors.Is(err, sql.ErrNoRows) {
		return model{}, fmt.Errorf("get %s %d: %w", t.kind, id, storage.ErrNotFound)
	}
	if err != nil {
		return model{}, fmt.Errorf("get %s %d: %w", t.kind, id, err)
	}
	if m.params, err = loadModelParams(ctx, s.sqlDB, t, m.id); err != nil {
		return model{}, err
	}
	return m, nil
}

func (s *Store) listModels(ctx context.Context, t modelTables) ([]model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT id, name FROM `+t.table+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t.kind, err)
	}
	var out []model
	for rows.Next() {
		var m model
		if err := rows.Scan(&m.id, &m.name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan %s: %w", t.kind, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("list %s: %w", t.kind, err)
	}
	rows.Close()

	for i := range out {
		if out[i].params, err = loadModelParams(ctx, s.sqlDB, t, out[i].id); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func loadModelParams(ctx context.Context, q queryer, t modelTables, id int64) ([]datatypes.Param, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT p.id, p.name, p.type, p.validation_regex
		   FROM params p
		   JOIN `+t.joinTable+` j ON j.param_id = p.id
		  WHERE j.`+t.joinKey+` = ?
		  ORDER BY p.id`, id)
	if err != nil {
		return nil, fmt.Errorf("load %s params: %w", t.kind, err)
	}
	defer rows.Close()
	return scanParams(rows)
}

// CreateClassifier inserts a classifier and links its parameters.
func (s *Store) CreateClassifier(ctx context.Context, name string, paramIDs []int64) (datatypes.Classifier, error) {
	m, err := s.createModel(ctx, classifierTables, name, paramIDs)
	if err != nil {
		return datatypes.Classifier{}, err
	}
	return datatypes.Classifier{ID: m.id, Name: m.name, Params: m.params}, nil
}

// GetClassifier fetches a classifier with its parameters.
func (s *Store) GetClassifier(ctx context.Context, id int64) (datatypes.Classifier, error) {
	m, err := s.getModel(ctx, classifierTables, id)
	if err != nil {
		return datatypes.Classifier{}, err
	}
	return datatypes.Classifier{ID: m.id, Name: m.name, Params: m.params}, nil
}

// ListClassifiers returns every classifier with its parameters.
func (s *Store) ListClassifiers(ctx context.Context) ([]datatypes.Classifier, error) {
	models, err := s.listModels(ctx, classifierTables)
	if err != nil {
		return nil, err
	}
	out := make([]datatypes.Classifier, 0, len(models))
	for _, m := range models {
		out = append(out, datatypes.Classifier{ID: m.id, Name: m.name, Params: m.params})
	}
	return out, nil
}

// CreateQueryStrategy inserts a query strategy and links its parameters.
func (s *Store) CreateQueryStrategy(ctx context.Context, name string, paramIDs []int64) (datatypes.QueryStrategy, error) {
	m, err := s.createModel(ctx, queryStrategyTables, name, paramIDs)
	if err != nil {
		return datatypes.QueryStrategy{}, err
	}
	return datatypes.QueryStrategy{ID: m.id, Name: m.name, Params: m.params}, nil
}

// GetQueryStrategy fetches a query strategy with its parameters.
func (s *Store) GetQueryStrategy(ctx context.Context, id int64) (datatypes.QueryStrategy, error) {
	m, err := s.getModel(ctx, queryStrategyTables, id)
	if err != nil {
		return datatypes.QueryStrategy{}, err
	}
	return datatypes.QueryStrategy{ID: m.id, Name: m.name, Params: m.params}, nil
}

// ListQueryStrategies returns every query strategy with its parameters.
func (s *Store) ListQueryStrategies(ctx context.Context) ([]datatypes.QueryStrategy, error) {
	models, err := s.listModels(ctx, queryStrategyTables)
	if err != nil {
		return nil, err
	}
	out := make([]datatypes.QueryStrategy, 0, len(models))
	for _, m := range models {
		out = append(out, datatypes.QueryStrategy{ID: m.id, Name: m.name, Params: m.params})
	}
	return out, nil
}
