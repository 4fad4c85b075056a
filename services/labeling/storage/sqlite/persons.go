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

const personColumns = `id, name, role, deactivated, credential_hash, created_at`

// CreatePerson inserts a user or administrator.
func (s *Store) CreatePerson(ctx context.Context, p datatypes.Person) (datatypes.Person, error) {
	if err := ctx.Err(); err != nil {
		return datatypes.Person{}, err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}
	p.Name = strings.TrimSpace(p.Name)
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO persons (name, role, deactivated, credential_hash, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		p.Name, string(p.Role), boolToInt(p.Deactivated), credentialBytes(p), toMillis(p.CreatedAt))
	if err != nil {
		return datatypes.Person{}, classifyWrite("create person", err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return datatypes.Person{}, fmt.Errorf("create person: %w", err)
	}
	p.CreatedAt = fromMillis(toMillis(p.CreatedAt))
	return p, nil
}

// GetPerson fetches a person by id.
func (s *Store) GetPerson(ctx context.Context, id int64) (datatypes.Person, error) {
	if err := ctx.Err(); err != nil {
		return datatypes.Person{}, err
	}
	p, err := scanPerson(s.sqlDB.QueryRowContext(ctx,
		`SELECT `+personColumns+` FROM persons WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return datatypes.Person{}, fmt.Errorf("get person %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return datatypes.Person{}, fmt.Errorf("get person %d: %w", id, err)
	}
	return p, nil
}

// GetPersonByName fetches a person by unique name.
func (s *Store) GetPersonByName(ctx context.Context, name string) (datatypes.Person, error) {
	if err := ctx.Err(); err != nil {
		return datatypes.Person{}, err
	}
	p, err := scanPerson(s.sqlDB.QueryRowContext(ctx,
		`SELECT `+personColumns+` FROM persons WHERE name = ?`, strings.TrimSpace(name)))
	if errors.Is(err, sql.ErrNoRows) {
		return datatypes.Person{}, fmt.Errorf("get person %q: %w", name, storage.ErrNotFound)
	}
	if err != nil {
		return datatypes.Person{}, fmt.Errorf("get person %q: %w", name, err)
	}
	return p, nil
}

// ListPersons returns persons matching filter, ordered by id.
func (s *Store) ListPersons(ctx context.Context, filter datatypes.PersonFilter) ([]datatypes.Person, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query := `SELECT ` + personColumns + ` FROM persons WHERE 1 = 1`
	var args []any
	if filter.Role != "" {
		query += ` AND role = ?`
		args = append(args, string(filter.Role))
	}
	if filter.Deactivated != nil {
		query += ` AND deactivated = ?`
		args = append(args, boolToInt(*filter.Deactivated))
	}
	query += ` ORDER BY id`

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	defer rows.Close()

	out := []datatypes.Person{}
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	return out, nil
}

// UpdatePerson rewrites name, deactivation and credential.
func (s *Store) UpdatePerson(ctx context.Context, p datatypes.Person) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE persons SET name = ?, deactivated = ?, credential_hash = ? WHERE id = ?`,
		strings.TrimSpace(p.Name), boolToInt(p.Deactivated), credentialBytes(p), p.ID)
	if err != nil {
		return classifyWrite("update person", err)
	}
	return requireAffected("update person", res)
}

// DeletePerson removes a person and, by cascade, their sessions. Persons
// who created setups cannot be deleted.
func (s *Store) DeletePerson(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM persons WHERE id = ?`, id)
	if err != nil {
		return classifyDelete("delete person", err)
	}
	return requireAffected("delete person", res)
}

func scanPerson(row rowScanner) (datatypes.Person, error) {
	var (
		p           datatypes.Person
		role        string
		deactivated int
		hash        []byte
		createdAt   int64
	)
	if err := row.Scan(&p.ID, &p.Name, &role, &deactivated, &hash, &createdAt); err != nil {
		return datatypes.Person{}, err
	}
	p.Role = datatypes.Role(role)
	p.Deactivated = deactivated != 0
	if len(hash) > 0 {
		p.Credential = &datatypes.Credential{Hash: hash}
	}
	p.CreatedAt = fromMillis(createdAt)
	return p, nil
}

func credentialBytes(p datatypes.Person) []byte {
	if !p.HasCredential() {
		return nil
	}
	return p.Credential.Hash
}
