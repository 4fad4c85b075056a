// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sqlite provides the SQLite-backed labeling store.
//
// # Description
//
// Every record type lives in its own table keyed by an autoincrement id.
// Array-valued fields (labels, history, grids, matrices) are stored as JSON
// text columns. Timestamps are Unix milliseconds in UTC.
//
// Transactions take the write lock up front (immediate mode), which is what
// serializes concurrent mutations of the same session.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/AleutianAI/ifeed/services/labeling/storage"
	"github.com/AleutianAI/ifeed/services/labeling/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const migrationTable = "schema_migrations"

// Store persists labeling state in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Table is a reset handle on one table.
type Table string

// TableName implements storage.Table.
func (t Table) TableName() string { return string(t) }

const (
	TableSessions        Table = "sessions"
	TableSetups          Table = "setups"
	TableDatasets        Table = "datasets"
	TablePersons         Table = "persons"
	TableClassifiers     Table = "classifiers"
	TableQueryStrategies Table = "query_strategies"
	TableParams          Table = "params"
	TableDatasetTypes    Table = "dataset_types"
)

// knownTables guards Reset against arbitrary identifiers.
var knownTables = map[string]bool{
	string(TableSessions):        true,
	string(TableSetups):          true,
	string(TableDatasets):        true,
	string(TablePersons):         true,
	string(TableClassifiers):     true,
	string(TableQueryStrategies): true,
	string(TableParams):          true,
	string(TableDatasetTypes):    true,
}

// Tables returns a handle for every table, dependents first, which is the
// order Reset needs to satisfy foreign keys.
func (s *Store) Tables() []storage.Table {
	return []storage.Table{
		TableSessions,
		TableSetups,
		TableDatasets,
		TablePersons,
		TableClassifiers,
		TableQueryStrategies,
		TableParams,
		TableDatasetTypes,
	}
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

// Reset deletes every row of the given tables, in order, and restarts their
// id sequences. Unknown handles fail the whole reset before anything is
// deleted.
func (s *Store) Reset(ctx context.Context, tables []storage.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, t := range tables {
		if !knownTables[t.TableName()] {
			return fmt.Errorf("reset: unknown table %q", t.TableName())
		}
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, t := range tables {
			name := t.TableName()
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+name); err != nil {
				if isForeignKeyViolation(err) {
					return fmt.Errorf("reset %s: %w", name, storage.ErrInUse)
				}
				return fmt.Errorf("reset %s: %w", name, err)
			}
			if _, err := tx.ExecContext(ctx, "DELETE FROM sqlite_sequence WHERE name = ?", name); err != nil {
				return fmt.Errorf("reset sequence %s: %w", name, err)
			}
		}
		return nil
	})
}

// withTx runs fn inside a transaction, committing on success.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// =============================================================================
// Migrations
// =============================================================================

// applyMigrations executes embedded migrations at most once per file.
func applyMigrations(sqlDB *sql.DB, migrationFS fs.FS) error {
	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var sqlFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			sqlFiles = append(sqlFiles, entry.Name())
		}
	}
	sort.Strings(sqlFiles)

	createSQL := `CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
);`
	if _, err := sqlDB.Exec(createSQL); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range sqlFiles {
		var found int
		err := sqlDB.QueryRow("SELECT 1 FROM "+migrationTable+" WHERE name = ?", file).Scan(&found)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %s: %w", file, err)
		}

		content, err := fs.ReadFile(migrationFS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		upSQL := extractUpMigration(string(content))
		if strings.TrimSpace(upSQL) == "" {
			continue
		}

		tx, err := sqlDB.BeginTx(context.Background(), nil)
		if err != nil {
			return fmt.Errorf("begin migration transaction %s: %w", file, err)
		}
		if _, err := tx.Exec(upSQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO "+migrationTable+" (name, applied_at) VALUES (?, ?)",
			file, toMillis(time.Now()),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

// extractUpMigration returns the SQL in the -- +migrate Up section.
func extractUpMigration(content string) string {
	upIdx := strings.Index(content, "-- +migrate Up")
	if upIdx == -1 {
		return content
	}
	downIdx := strings.Index(content, "-- +migrate Down")
	if downIdx == -1 {
		return content[upIdx+len("-- +migrate Up"):]
	}
	return content[upIdx+len("-- +migrate Up") : downIdx]
}

// =============================================================================
// Helpers
// =============================================================================

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint failed")
}

// classifyWrite maps constraint failures of an insert or update.
func classifyWrite(op string, err error) error {
	switch {
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	case isForeignKeyViolation(err):
		return fmt.Errorf("%s: referenced record: %w", op, storage.ErrNotFound)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// classifyDelete maps constraint failures of a delete.
func classifyDelete(op string, err error) error {
	if isForeignKeyViolation(err) {
		return fmt.Errorf("%s: %w", op, storage.ErrInUse)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// requireAffected turns a zero-row update or delete into ErrNotFound.
func requireAffected(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return nil
}

func encodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeJSON(raw string, v any) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), v)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

var _ storage.Store = (*Store)(nil)
