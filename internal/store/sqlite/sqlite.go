// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sqlite provides a SQLite store backend for single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tombarlow/stepwise/internal/store"
	"github.com/tombarlow/stepwise/pkg/errors"
	_ "modernc.org/sqlite"
)

var _ store.Backend = (*Backend)(nil)

// Backend is a SQLite store backend. db is either the top-level *sql.DB or,
// inside WithTx, a *sql.Tx wrapped in the same querier interface.
type Backend struct {
	db querier
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Config contains SQLite connection configuration.
type Config struct {
	// Path is the database file path. Use ":memory:" for an ephemeral store.
	Path string

	// WAL enables Write-Ahead Logging mode for concurrent reads.
	WAL bool
}

// New opens a SQLite backend and runs migrations.
func New(cfg Config) (*Backend, error) {
	rawDB, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite serializes writes; one connection avoids SQLITE_BUSY churn.
	rawDB.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rawDB.PingContext(ctx); err != nil {
		rawDB.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	b := &Backend{db: rawDB}

	if err := b.configurePragmas(ctx, rawDB, cfg.WAL); err != nil {
		rawDB.Close()
		return nil, fmt.Errorf("configure pragmas: %w", err)
	}
	if err := b.migrate(ctx, rawDB); err != nil {
		rawDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return b, nil
}

func (b *Backend) configurePragmas(ctx context.Context, db *sql.DB, enableWAL bool) error {
	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	if enableWAL {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("exec %s: %w", pragma, err)
		}
	}
	return nil
}

func (b *Backend) migrate(ctx context.Context, db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS workflows (
			id TEXT PRIMARY KEY,
			version INTEGER NOT NULL,
			name TEXT NOT NULL,
			start_step TEXT NOT NULL,
			definition TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS steps (
			workflow_id TEXT NOT NULL,
			step_id TEXT NOT NULL,
			type TEXT NOT NULL,
			name TEXT NOT NULL,
			next TEXT,
			config TEXT NOT NULL,
			PRIMARY KEY (workflow_id, step_id),
			FOREIGN KEY (workflow_id) REFERENCES workflows(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL,
			workflow_version INTEGER NOT NULL,
			status TEXT NOT NULL,
			current_step TEXT,
			idempotency_key TEXT,
			context TEXT NOT NULL,
			error TEXT,
			started_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (workflow_id) REFERENCES workflows(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_workflow_id ON runs(workflow_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_runs_idempotency ON runs(workflow_id, idempotency_key) WHERE idempotency_key IS NOT NULL`,
		`CREATE TABLE IF NOT EXISTS run_steps (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			step_id TEXT NOT NULL,
			type TEXT NOT NULL,
			status TEXT NOT NULL,
			output TEXT,
			error TEXT,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_steps_run_id ON run_steps(run_id, started_at)`,
	}
	for _, migration := range migrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database connection. Calling Close on a
// Backend obtained inside WithTx is a programming error; only the top-level
// Backend returned by New owns the connection.
func (b *Backend) Close() error {
	if db, ok := b.db.(*sql.DB); ok {
		return db.Close()
	}
	return nil
}

// WithTx runs fn against a *sql.Tx-backed Backend, committing on success and
// rolling back on error or panic. This is how the orchestrator guarantees
// that one advance-loop iteration's run/run_step writes land atomically.
func (b *Backend) WithTx(ctx context.Context, fn store.TxFunc) error {
	db, ok := b.db.(*sql.DB)
	if !ok {
		return fmt.Errorf("sqlite: WithTx called on a backend already inside a transaction")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &Backend{db: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
