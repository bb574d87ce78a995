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

// Package postgres provides a PostgreSQL store backend for multi-node
// deployments where several engine processes may drive the same runs table.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tombarlow/stepwise/internal/store"
	_ "github.com/jackc/pgx/v5/stdlib"
)

var _ store.Backend = (*Backend)(nil)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Backend is a PostgreSQL store backend.
type Backend struct {
	db querier
}

// Config contains PostgreSQL connection configuration.
type Config struct {
	ConnectionString string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// New opens a PostgreSQL backend and runs migrations.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	rawDB, err := sql.Open("pgx", cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		rawDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		rawDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		rawDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rawDB.PingContext(pingCtx); err != nil {
		rawDB.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	b := &Backend{db: rawDB}
	if err := b.migrate(ctx, rawDB); err != nil {
		rawDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return b, nil
}

func (b *Backend) migrate(ctx context.Context, db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS workflows (
			id TEXT PRIMARY KEY,
			version INTEGER NOT NULL,
			name TEXT NOT NULL,
			start_step TEXT NOT NULL,
			definition JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS steps (
			workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
			step_id TEXT NOT NULL,
			type TEXT NOT NULL,
			name TEXT NOT NULL,
			next TEXT,
			config JSONB NOT NULL,
			PRIMARY KEY (workflow_id, step_id)
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL REFERENCES workflows(id),
			workflow_version INTEGER NOT NULL,
			status TEXT NOT NULL,
			current_step TEXT,
			idempotency_key TEXT,
			context JSONB NOT NULL,
			error TEXT,
			started_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_workflow_id ON runs(workflow_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_runs_idempotency ON runs(workflow_id, idempotency_key) WHERE idempotency_key IS NOT NULL`,
		`CREATE TABLE IF NOT EXISTS run_steps (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			step_id TEXT NOT NULL,
			type TEXT NOT NULL,
			status TEXT NOT NULL,
			output JSONB,
			error TEXT,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ NOT NULL
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

// Close closes the underlying connection pool.
func (b *Backend) Close() error {
	if db, ok := b.db.(*sql.DB); ok {
		return db.Close()
	}
	return nil
}

// WithTx runs fn against a transaction-scoped Backend using
// sql.LevelSerializable, so two engine processes racing to advance the same
// run serialize against each other instead of interleaving writes; a
// serialization failure surfaces to the caller to retry the whole step.
func (b *Backend) WithTx(ctx context.Context, fn store.TxFunc) error {
	db, ok := b.db.(*sql.DB)
	if !ok {
		return fmt.Errorf("postgres: WithTx called on a backend already inside a transaction")
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &Backend{db: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

// isUniqueViolation reports whether err came from violating any unique
// constraint, such as a duplicate workflow or run id or the runs
// idempotency index (pgx surfaces this as SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	for err != nil {
		if pg, ok := err.(interface{ SQLState() string }); ok {
			return pg.SQLState() == "23505"
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
