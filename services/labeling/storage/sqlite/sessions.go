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
	"time"

	"github.com/AleutianAI/ifeed/services/labeling/datatypes"
	"github.com/AleutianAI/ifeed/services/labeling/storage"
)

const sessionColumns = `id, setup_id, user_id, iteration, labels_json, final_labels_json,
	history_json, heatmaps_json, matches_json, pauses, rewinds, in_progress, active_since,
	finished, created_at, updated_at`

type sessionBlobs struct {
	labels, finalLabels, history, heatmaps, matches string
}

func encodeSession(se datatypes.Session) (sessionBlobs, error) {
	var (
		b   sessionBlobs
		err error
	)
	labels := se.Labels
	if labels == nil {
		labels = datatypes.UserLabels{}
	}
	finals := se.FinalLabels
	if finals == nil {
		finals = datatypes.FinalLabels{}
	}
	history := se.History
	if history == nil {
		history = [][]int{}
	}
	// Snapshots are kept as strings so their bytes round-trip unchanged.
	heatmaps := make([]string, len(se.Heatmaps))
	for i, h := range se.Heatmaps {
		heatmaps[i] = string(h)
	}
	matches := se.UserLabelMatchesAPI
	if matches == nil {
		matches = [][]bool{}
	}
	if b.labels, err = encodeJSON(labels); err != nil {
		return b, fmt.Errorf("encode labels: %w", err)
	}
	if b.finalLabels, err = encodeJSON(finals); err != nil {
		return b, fmt.Errorf("encode final labels: %w", err)
	}
	if b.history, err = encodeJSON(history); err != nil {
		return b, fmt.Errorf("encode history: %w", err)
	}
	if b.heatmaps, err = encodeJSON(heatmaps); err != nil {
		return b, fmt.Errorf("encode heatmaps: %w", err)
	}
	if b.matches, err = encodeJSON(matches); err != nil {
		return b, fmt.Errorf("encode matches: %w", err)
	}
	return b, nil
}

func activeSince(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

// CreateSession inserts a fresh session.
func (s *Store) CreateSession(ctx context.Context, se datatypes.Session) (datatypes.Session, error) {
	if err := ctx.Err(); err != nil {
		return datatypes.Session{}, err
	}
	blobs, err := encodeSession(se)
	if err != nil {
		return datatypes.Session{}, fmt.Errorf("create session: %w", err)
	}
	now := s.now().UTC()
	if se.CreatedAt.IsZero() {
		se.CreatedAt = now
	}
	se.UpdatedAt = se.CreatedAt

	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO sessions (
		   setup_id, user_id, iteration, labels_json, final_labels_json, history_json,
		   heatmaps_json, matches_json, pauses, rewinds, in_progress, active_since,
		   finished, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		se.SetupID, se.UserID, se.Iteration, blobs.labels, blobs.finalLabels, blobs.history,
		blobs.heatmaps, blobs.matches, se.Pauses, se.Rewinds, se.InProgress, activeSince(se.ActiveSince),
		boolToInt(se.Finished), toMillis(se.CreatedAt), toMillis(se.UpdatedAt))
	if err != nil {
		return datatypes.Session{}, classifyWrite("create session", err)
	}
	if se.ID, err = res.LastInsertId(); err != nil {
		return datatypes.Session{}, fmt.Errorf("create session: %w", err)
	}
	return s.GetSession(ctx, se.ID)
}

// GetSession fetches one session.
func (s *Store) GetSession(ctx context.Context, id int64) (datatypes.Session, error) {
	if err := ctx.Err(); err != nil {
		return datatypes.Session{}, err
	}
	return getSession(ctx, s.sqlDB, id)
}

func getSession(ctx context.Context, q queryer, id int64) (datatypes.Session, error) {
	se, err := scanSession(q.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return datatypes.Session{}, fmt.Errorf("get session %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return datatypes.Session{}, fmt.Errorf("get session %d: %w", id, err)
	}
	return se, nil
}

// ListSessions returns sessions matching filter, ordered by id.
func (s *Store) ListSessions(ctx context.Context, filter datatypes.SessionFilter) ([]datatypes.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE 1 = 1`
	var args []any
	if filter.SetupID != 0 {
		query += ` AND setup_id = ?`
		args = append(args, filter.SetupID)
	}
	if filter.UserID != 0 {
		query += ` AND user_id = ?`
		args = append(args, filter.UserID)
	}
	if filter.Finished != nil {
		query += ` AND finished = ?`
		args = append(args, boolToInt(*filter.Finished))
	}
	query += ` ORDER BY id`

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := []datatypes.Session{}
	for rows.Next() {
		se, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, se)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return out, nil
}

// MutateSession loads a session, applies fn and writes it back inside one
// immediate transaction. If fn fails nothing is written and its error is
// returned unchanged.
func (s *Store) MutateSession(ctx context.Context, id int64, fn storage.MutateFunc) (datatypes.Session, error) {
	if err := ctx.Err(); err != nil {
		return datatypes.Session{}, err
	}
	var out datatypes.Session
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		se, err := getSession(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(&se); err != nil {
			return err
		}
		se.ID = id
		se.UpdatedAt = s.now().UTC()
		if err := writeSession(ctx, tx, se); err != nil {
			return err
		}
		out = se
		return nil
	})
	if err != nil {
		return datatypes.Session{}, err
	}
	out.UpdatedAt = fromMillis(toMillis(out.UpdatedAt))
	return out, nil
}

// SetFinalLabels replaces only the final labels of a session, leaving any
// concurrent label or history changes intact.
func (s *Store) SetFinalLabels(ctx context.Context, id int64, labels datatypes.FinalLabels) (datatypes.Session, error) {
	if err := ctx.Err(); err != nil {
		return datatypes.Session{}, err
	}
	if labels == nil {
		labels = datatypes.FinalLabels{}
	}
	encoded, err := encodeJSON(labels)
	if err != nil {
		return datatypes.Session{}, fmt.Errorf("encode final labels: %w", err)
	}
	var out datatypes.Session
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE sessions SET final_labels_json = ?, updated_at = ? WHERE id = ?`,
			encoded, toMillis(s.now()), id)
		if err != nil {
			return fmt.Errorf("set final labels: %w", err)
		}
		if err := requireAffected("set final labels", res); err != nil {
			return err
		}
		out, err = getSession(ctx, tx, id)
		return err
	})
	if err != nil {
		return datatypes.Session{}, err
	}
	return out, nil
}

// DeleteSession removes a session.
func (s *Store) DeleteSession(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return classifyDelete("delete session", err)
	}
	return requireAffected("delete session", res)
}

func writeSession(ctx context.Context, tx *sql.Tx, se datatypes.Session) error {
	blobs, err := encodeSession(se)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET
		   iteration = ?, labels_json = ?, final_labels_json = ?, history_json = ?,
		   heatmaps_json = ?, matches_json = ?, pauses = ?, rewinds = ?, in_progress = ?,
		   active_since = ?, finished = ?, updated_at = ?
		 WHERE id = ?`,
		se.Iteration, blobs.labels, blobs.finalLabels, blobs.history,
		blobs.heatmaps, blobs.matches, se.Pauses, se.Rewinds, se.InProgress,
		activeSince(se.ActiveSince), boolToInt(se.Finished), toMillis(se.UpdatedAt),
		se.ID)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return requireAffected("write session", res)
}

func scanSession(row rowScanner) (datatypes.Session, error) {
	var (
		se                                         datatypes.Session
		labels, finals, history, heatmaps, matches string
		active                                     sql.NullInt64
		finished                                   int
		createdAt, updatedAt                       int64
	)
	if err := row.Scan(&se.ID, &se.SetupID, &se.UserID, &se.Iteration, &labels, &finals,
		&history, &heatmaps, &matches, &se.Pauses, &se.Rewinds, &se.InProgress, &active,
		&finished, &createdAt, &updatedAt); err != nil {
		return datatypes.Session{}, err
	}
	if err := decodeJSON(labels, &se.Labels); err != nil {
		return datatypes.Session{}, fmt.Errorf("decode labels: %w", err)
	}
	if err := decodeJSON(finals, &se.FinalLabels); err != nil {
		return datatypes.Session{}, fmt.Errorf("decode final labels: %w", err)
	}
	if err := decodeJSON(history, &se.History); err != nil {
		return datatypes.Session{}, fmt.Errorf("decode history: %w", err)
	}
	var snapshots []string
	if err := decodeJSON(heatmaps, &snapshots); err != nil {
		return datatypes.Session{}, fmt.Errorf("decode heatmaps: %w", err)
	}
	se.Heatmaps = make([]json.RawMessage, len(snapshots))
	for i, h := range snapshots {
		se.Heatmaps[i] = json.RawMessage(h)
	}
	if err := decodeJSON(matches, &se.UserLabelMatchesAPI); err != nil {
		return datatypes.Session{}, fmt.Errorf("decode matches: %w", err)
	}
	if active.Valid {
		t := fromMillis(active.Int64)
		se.ActiveSince = &t
	}
	se.Finished = finished != 0
	se.CreatedAt = fromMillis(createdAt)
	se.UpdatedAt = fromMillis(updatedAt)
	return se, nil
}
