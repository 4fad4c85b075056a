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
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/AleutianAI/ifeed/services/labeling/datatypes"
	"github.com/AleutianAI/ifeed/services/labeling/storage"
)

const datasetColumns = `id, name, description, type_id, data_json, normalized_json,
	normalize_factor_json, raw_data_json, ground_truth_json, created_at`

// CreateDataset inserts a dataset. The caller validates its shape.
func (s *Store) CreateDataset(ctx context.Context, d datatypes.Dataset) (datatypes.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return datatypes.Dataset{}, err
	}
	data, err := encodeJSON(d.Data)
	if err != nil {
		return datatypes.Dataset{}, fmt.Errorf("encode dataset: %w", err)
	}
	normalized, err := encodeJSON(d.Normalized)
	if err != nil {
		return datatypes.Dataset{}, fmt.Errorf("encode normalized dataset: %w", err)
	}
	factors, err := encodeJSON(d.NormalizeFactor)
	if err != nil {
		return datatypes.Dataset{}, fmt.Errorf("encode normalize factor: %w", err)
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.now().UTC()
	}
	d.Name = strings.TrimSpace(d.Name)

	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO datasets (
		   name, description, type_id, data_json, normalized_json,
		   normalize_factor_json, raw_data_json, ground_truth_json, created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Name, d.Description, d.TypeID, data, normalized, factors,
		nullableJSON(d.RawData), nullableJSON(d.GroundTruth), toMillis(d.CreatedAt))
	if err != nil {
		return datatypes.Dataset{}, classifyWrite("create dataset", err)
	}
	if d.ID, err = res.LastInsertId(); err != nil {
		return datatypes.Dataset{}, fmt.Errorf("create dataset: %w", err)
	}
	d.CreatedAt = fromMillis(toMillis(d.CreatedAt))
	return d, nil
}

// GetDataset fetches one dataset.
func (s *Store) GetDataset(ctx context.Context, id int64) (datatypes.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return datatypes.Dataset{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+datasetColumns+` FROM datasets WHERE id = ?`, id)
	d, err := scanDataset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return datatypes.Dataset{}, fmt.Errorf("get dataset %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return datatypes.Dataset{}, fmt.Errorf("get dataset %d: %w", id, err)
	}
	return d, nil
}

// ListDatasets returns every dataset ordered by id.
func (s *Store) ListDatasets(ctx context.Context) ([]datatypes.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+datasetColumns+` FROM datasets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()

	out := []datatypes.Dataset{}
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	return out, nil
}

// UpdateDataset rewrites the descriptive fields of a dataset.
func (s *Store) UpdateDataset(ctx context.Context, d datatypes.Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE datasets SET name = ?, description = ? WHERE id = ?`,
		strings.TrimSpace(d.Name), d.Description, d.ID)
	if err != nil {
		return classifyWrite("update dataset", err)
	}
	return requireAffected("update dataset", res)
}

// DeleteDataset removes a dataset no setup references.
func (s *Store) DeleteDataset(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM datasets WHERE id = ?`, id)
	if err != nil {
		return classifyDelete("delete dataset", err)
	}
	return requireAffected("delete dataset", res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDataset(row rowScanner) (datatypes.Dataset, error) {
	var (
		d                         datatypes.Dataset
		data, normalized, factors string
		rawData, groundTruth      sql.NullString
		createdAt                 int64
	)
	if err := row.Scan(&d.ID, &d.Name, &d.Description, &d.TypeID, &data, &normalized,
		&factors, &rawData, &groundTruth, &createdAt); err != nil {
		return datatypes.Dataset{}, err
	}
	if err := decodeJSON(data, &d.Data); err != nil {
		return datatypes.Dataset{}, fmt.Errorf("decode dataset: %w", err)
	}
	if err := decodeJSON(normalized, &d.Normalized); err != nil {
		return datatypes.Dataset{}, fmt.Errorf("decode normalized dataset: %w", err)
	}
	if err := decodeJSON(factors, &d.NormalizeFactor); err != nil {
		return datatypes.Dataset{}, fmt.Errorf("decode normalize factor: %w", err)
	}
	if rawData.Valid {
		d.RawData = json.RawMessage(rawData.String)
	}
	if groundTruth.Valid {
		d.GroundTruth = json.RawMessage(groundTruth.String)
	}
	d.CreatedAt = fromMillis(createdAt)
	return d, nil
}

func nullableJSON(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}
