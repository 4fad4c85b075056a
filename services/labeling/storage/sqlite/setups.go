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

const setupColumns = `id, name, description, classifier_id, query_strategy_id, dataset_id,
	creator_id, params_json, raw_data_visible, rewindable, subspace_dimension_count,
	subspaces_json, grids_json, grids_normalized_json, max_answer_time, iterations,
	history_mode, feedback_mode, finished_creation, created_at`

type setupBlobs struct {
	params, subspaces, grids, gridsNormalized string
}

func encodeSetup(su datatypes.Setup) (setupBlobs, error) {
	var (
		b   setupBlobs
		err error
	)
	params := su.Params
	if params == nil {
		params = map[string]any{}
	}
	if b.params, err = encodeJSON(params); err != nil {
		return b, fmt.Errorf("encode params: %w", err)
	}
	if b.subspaces, err = encodeJSON(su.Subspaces); err != nil {
		return b, fmt.Errorf("encode subspaces: %w", err)
	}
	if b.grids, err = encodeJSON(su.SubspaceGrids); err != nil {
		return b, fmt.Errorf("encode grids: %w", err)
	}
	if b.gridsNormalized, err = encodeJSON(su.SubspaceGridsNormalized); err != nil {
		return b, fmt.Errorf("encode normalized grids: %w", err)
	}
	return b, nil
}

// CreateSetup inserts a setup with its generated grids.
func (s *Store) CreateSetup(ctx context.Context, su datatypes.Setup) (datatypes.Setup, error) {
	if err := ctx.Err(); err != nil {
		return datatypes.Setup{}, err
	}
	blobs, err := encodeSetup(su)
	if err != nil {
		return datatypes.Setup{}, fmt.Errorf("create setup: %w", err)
	}
	if su.CreatedAt.IsZero() {
		su.CreatedAt = s.now().UTC()
	}
	su.Name = strings.TrimSpace(su.Name)

	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO setups (
		   name, description, classifier_id, query_strategy_id, dataset_id, creator_id,
		   params_json, raw_data_visible, rewindable, subspace_dimension_count,
		   subspaces_json, grids_json, grids_normalized_json, max_answer_time, iterations,
		   history_mode, feedback_mode, finished_creation, created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		su.Name, su.Description, su.ClassifierID, su.QueryStrategyID, su.DatasetID, su.CreatorID,
		blobs.params, boolToInt(su.RawDataVisible), boolToInt(su.Rewindable), su.SubspaceDimensionCount,
		blobs.subspaces, blobs.grids, blobs.gridsNormalized, su.MaxAnswerTime, su.Iterations,
		string(su.HistoryMode), string(su.FeedbackMode), boolToInt(su.FinishedCreation),
		toMillis(su.CreatedAt))
	if err != nil {
		return datatypes.Setup{}, classifyWrite("create setup", err)
	}
	if su.ID, err = res.LastInsertId(); err != nil {
		return datatypes.Setup{}, fmt.Errorf("create setup: %w", err)
	}
	su.CreatedAt = fromMillis(toMillis(su.CreatedAt))
	return su, nil
}

// GetSetup fetches one setup.
func (s *Store) GetSetup(ctx context.Context, id int64) (datatypes.Setup, error) {
	if err := ctx.Err(); err != nil {
		return datatypes.Setup{}, err
	}
	su, err := scanSetup(s.sqlDB.QueryRowContext(ctx,
		`SELECT `+setupColumns+` FROM setups WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return datatypes.Setup{}, fmt.Errorf("get setup %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return datatypes.Setup{}, fmt.Errorf("get setup %d: %w", id, err)
	}
	return su, nil
}

// ListSetups returns setups matching filter, ordered by id.
func (s *Store) ListSetups(ctx context.Context, filter datatypes.SetupFilter) ([]datatypes.Setup, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query := `SELECT ` + setupColumns + ` FROM setups WHERE 1 = 1`
	var args []any
	if filter.Name != "" {
		query += ` AND name LIKE ?`
		args = append(args, "%"+filter.Name+"%")
	}
	if filter.CreatorID != 0 {
		query += ` AND creator_id = ?`
		args = append(args, filter.CreatorID)
	}
	if filter.DatasetID != 0 {
		query += ` AND dataset_id = ?`
		args = append(args, filter.DatasetID)
	}
	if filter.Finalized != nil {
		query += ` AND finished_creation = ?`
		args = append(args, boolToInt(*filter.Finalized))
	}
	query += ` ORDER BY id`

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list setups: %w", err)
	}
	defer rows.Close()

	out := []datatypes.Setup{}
	for rows.Next() {
		su, err := scanSetup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan setup: %w", err)
		}
		out = append(out, su)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list setups: %w", err)
	}
	return out, nil
}

// UpdateSetup rewrites every column of a setup except its creator and
// creation time. Immutability rules are enforced by the caller.
func (s *Store) UpdateSetup(ctx context.Context, su datatypes.Setup) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	blobs, err := encodeSetup(su)
	if err != nil {
		return fmt.Errorf("update setup: %w", err)
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE setups SET
		   name = ?, description = ?, classifier_id = ?, query_strategy_id = ?, dataset_id = ?,
		   params_json = ?, raw_data_visible = ?, rewindable = ?, subspace_dimension_count = ?,
		   subspaces_json = ?, grids_json = ?, grids_normalized_json = ?, max_answer_time = ?,
		   iterations = ?, history_mode = ?, feedback_mode = ?, finished_creation = ?
		 WHERE id = ?`,
		strings.TrimSpace(su.Name), su.Description, su.ClassifierID, su.QueryStrategyID, su.DatasetID,
		blobs.params, boolToInt(su.RawDataVisible), boolToInt(su.Rewindable), su.SubspaceDimensionCount,
		blobs.subspaces, blobs.grids, blobs.gridsNormalized, su.MaxAnswerTime,
		su.Iterations, string(su.HistoryMode), string(su.FeedbackMode), boolToInt(su.FinishedCreation),
		su.ID)
	if err != nil {
		return classifyWrite("update setup", err)
	}
	return requireAffected("update setup", res)
}

// DeleteSetup removes a setup and, by cascade, its sessions.
func (s *Store) DeleteSetup(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM setups WHERE id = ?`, id)
	if err != nil {
		return classifyDelete("delete setup", err)
	}
	return requireAffected("delete setup", res)
}

func scanSetup(row rowScanner) (datatypes.Setup, error) {
	var (
		su                                  datatypes.Setup
		params, subspaces, grids, gridsNorm string
		rawVisible, rewindable, finished    int
		historyMode, feedbackMode           string
		createdAt                           int64
	)
	if err := row.Scan(&su.ID, &su.Name, &su.Description, &su.ClassifierID, &su.QueryStrategyID,
		&su.DatasetID, &su.CreatorID, &params, &rawVisible, &rewindable, &su.SubspaceDimensionCount,
		&subspaces, &grids, &gridsNorm, &su.MaxAnswerTime, &su.Iterations,
		&historyMode, &feedbackMode, &finished, &createdAt); err != nil {
		return datatypes.Setup{}, err
	}
	if err := decodeJSON(params, &su.Params); err != nil {
		return datatypes.Setup{}, fmt.Errorf("decode params: %w", err)
	}
	if err := decodeJSON(subspaces, &su.Subspaces); err != nil {
		return datatypes.Setup{}, fmt.Errorf("decode subspaces: %w", err)
	}
	if err := decodeJSON(grids, &su.SubspaceGrids); err != nil {
		return datatypes.Setup{}, fmt.Errorf("decode grids: %w", err)
	}
	if err := decodeJSON(gridsNorm, &su.SubspaceGridsNormalized); err != nil {
		return datatypes.Setup{}, fmt.Errorf("decode normalized grids: %w", err)
	}
	su.RawDataVisible = rawVisible != 0
	su.Rewindable = rewindable != 0
	su.FinishedCreation = finished != 0
	su.HistoryMode = datatypes.HistoryMode(historyMode)
	su.FeedbackMode = datatypes.FeedbackMode(feedbackMode)
	su.CreatedAt = fromMillis(createdAt)
	return su, nil
}
