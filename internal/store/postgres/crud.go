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

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tombarlow/stepwise/internal/store"
	"github.com/tombarlow/stepwise/pkg/errors"
)

func (b *Backend) CreateWorkflow(ctx context.Context, wf *store.Workflow, steps []*store.Step) error {
	if err := store.ValidateWorkflowGraph(wf, steps); err != nil {
		return err
	}
	if wf.CreatedAt.IsZero() {
		wf.CreatedAt = time.Now()
	}
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO workflows (id, version, name, start_step, definition, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		wf.ID, wf.Version, wf.Name, wf.StartStep, string(wf.Definition), wf.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &errors.ConflictError{Resource: "workflow", ID: wf.ID, Reason: "workflow already exists"}
		}
		return fmt.Errorf("create workflow: %w", err)
	}
	for _, s := range steps {
		_, err := b.db.ExecContext(ctx,
			`INSERT INTO steps (workflow_id, step_id, type, name, next, config) VALUES ($1, $2, $3, $4, $5, $6)`,
			wf.ID, s.StepID, s.Type, s.Name, nullString(s.Next), string(s.Config),
		)
		if err != nil {
			return fmt.Errorf("create step %s: %w", s.StepID, err)
		}
	}
	return nil
}

func (b *Backend) GetWorkflow(ctx context.Context, id string) (*store.Workflow, []*store.Step, error) {
	var wf store.Workflow
	var definition string
	err := b.db.QueryRowContext(ctx,
		`SELECT id, version, name, start_step, definition, created_at FROM workflows WHERE id = $1`, id,
	).Scan(&wf.ID, &wf.Version, &wf.Name, &wf.StartStep, &definition, &wf.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil, &errors.NotFoundError{Resource: "workflow", ID: id}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get workflow: %w", err)
	}
	wf.Definition = []byte(definition)

	rows, err := b.db.QueryContext(ctx,
		`SELECT step_id, type, name, next, config FROM steps WHERE workflow_id = $1`, id,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var steps []*store.Step
	for rows.Next() {
		s := &store.Step{WorkflowID: id}
		var next sql.NullString
		var config string
		if err := rows.Scan(&s.StepID, &s.Type, &s.Name, &next, &config); err != nil {
			return nil, nil, fmt.Errorf("scan step: %w", err)
		}
		s.Next = next.String
		s.Config = []byte(config)
		steps = append(steps, s)
	}
	return &wf, steps, rows.Err()
}

const runColumns = `id, workflow_id, workflow_version, status, current_step, idempotency_key, context, error, started_at, updated_at`

func (b *Backend) CreateRun(ctx context.Context, run *store.Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.UpdatedAt = run.StartedAt

	_, err := b.db.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, run.WorkflowID, run.WorkflowVersion, run.Status, nullString(run.CurrentStep),
		nullString(run.IdempotencyKey), string(run.Context), nullString(run.Error),
		run.StartedAt, run.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &errors.ConflictError{Resource: "run", ID: run.ID, Reason: "idempotency key already used for this workflow"}
		}
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

func (b *Backend) scanRun(row *sql.Row) (*store.Run, error) {
	var run store.Run
	var currentStep, idempotencyKey, errStr sql.NullString
	var context string

	err := row.Scan(&run.ID, &run.WorkflowID, &run.WorkflowVersion, &run.Status, &currentStep,
		&idempotencyKey, &context, &errStr, &run.StartedAt, &run.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.CurrentStep = currentStep.String
	run.IdempotencyKey = idempotencyKey.String
	run.Error = errStr.String
	run.Context = []byte(context)
	return &run, nil
}

func (b *Backend) GetRun(ctx context.Context, id string) (*store.Run, error) {
	row := b.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, id)
	run, err := b.scanRun(row)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, &errors.NotFoundError{Resource: "run", ID: id}
	}
	return run, nil
}

func (b *Backend) GetRunByIdempotencyKey(ctx context.Context, workflowID, key string) (*store.Run, error) {
	if key == "" {
		return nil, nil
	}
	row := b.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE workflow_id = $1 AND idempotency_key = $2`, workflowID, key)
	return b.scanRun(row)
}

func (b *Backend) UpdateRun(ctx context.Context, run *store.Run) error {
	run.UpdatedAt = time.Now()
	result, err := b.db.ExecContext(ctx,
		`UPDATE runs SET status = $1, current_step = $2, context = $3, error = $4, updated_at = $5 WHERE id = $6`,
		run.Status, nullString(run.CurrentStep), string(run.Context), nullString(run.Error), run.UpdatedAt, run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n == 0 {
		return &errors.NotFoundError{Resource: "run", ID: run.ID}
	}
	return nil
}

func (b *Backend) ListRuns(ctx context.Context, filter store.RunFilter) ([]*store.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE TRUE`
	var args []any
	argN := 1
	if filter.WorkflowID != "" {
		query += fmt.Sprintf(" AND workflow_id = $%d", argN)
		args = append(args, filter.WorkflowID)
		argN++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argN)
		args = append(args, filter.Status)
		argN++
	}
	query += " ORDER BY started_at"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argN)
		args = append(args, filter.Limit)
		argN++
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET $%d", argN)
			args = append(args, filter.Offset)
		}
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*store.Run
	for rows.Next() {
		var run store.Run
		var currentStep, idempotencyKey, errStr sql.NullString
		var context string
		if err := rows.Scan(&run.ID, &run.WorkflowID, &run.WorkflowVersion, &run.Status, &currentStep,
			&idempotencyKey, &context, &errStr, &run.StartedAt, &run.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.CurrentStep = currentStep.String
		run.IdempotencyKey = idempotencyKey.String
		run.Error = errStr.String
		run.Context = []byte(context)
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

func (b *Backend) AppendRunStep(ctx context.Context, rs *store.RunStep) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO run_steps (id, run_id, step_id, type, status, output, error, started_at, ended_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rs.ID, rs.RunID, rs.StepID, rs.Type, rs.Status, nullBytes(rs.Output), nullString(rs.Error),
		rs.StartedAt, rs.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("append run step: %w", err)
	}
	return nil
}

func (b *Backend) ListRunSteps(ctx context.Context, runID string) ([]*store.RunStep, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT id, run_id, step_id, type, status, output, error, started_at, ended_at
		 FROM run_steps WHERE run_id = $1 ORDER BY started_at`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list run steps: %w", err)
	}
	defer rows.Close()

	var history []*store.RunStep
	for rows.Next() {
		var rs store.RunStep
		var output, errStr sql.NullString
		if err := rows.Scan(&rs.ID, &rs.RunID, &rs.StepID, &rs.Type, &rs.Status, &output, &errStr, &rs.StartedAt, &rs.EndedAt); err != nil {
			return nil, fmt.Errorf("scan run step: %w", err)
		}
		if output.Valid {
			rs.Output = []byte(output.String)
		}
		rs.Error = errStr.String
		history = append(history, &rs)
	}
	return history, rows.Err()
}
