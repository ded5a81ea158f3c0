// internal/storage/postgres/client.go
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fawad-mazhar/runweave/internal/config"
	"github.com/fawad-mazhar/runweave/internal/models"
	_ "github.com/lib/pq"
)

// Client is the Postgres run archive. It stores finished workflow and task
// runs for long-term querying; the engine never reads it on the hot path.
type Client struct {
	db *sql.DB
}

func NewClient(cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	client := &Client{db: db}
	if err := client.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return client, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS workflow_runs (
			id            TEXT PRIMARY KEY,
			definition_id TEXT NOT NULL,
			status        TEXT NOT NULL,
			start_time    TIMESTAMPTZ NOT NULL,
			end_time      TIMESTAMPTZ,
			record        JSONB NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS task_runs (
			id              TEXT PRIMARY KEY,
			workflow_run_id TEXT NOT NULL,
			task_id         TEXT NOT NULL,
			status          TEXT NOT NULL,
			attempts        INT NOT NULL,
			start_time      TIMESTAMPTZ NOT NULL,
			end_time        TIMESTAMPTZ,
			stats           JSONB,
			record          JSONB NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_workflow_runs_definition
			ON workflow_runs (definition_id, start_time DESC);
		CREATE INDEX IF NOT EXISTS idx_task_runs_workflow
			ON task_runs (workflow_run_id);`

	_, err := c.db.Exec(schema)
	return err
}

// RecordTaskRun archives a finished task run record.
func (c *Client) RecordTaskRun(ctx context.Context, run *models.TaskRun) error {
	record, err := run.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal task run: %w", err)
	}

	stats, err := json.Marshal(run.Stats)
	if err != nil {
		return fmt.Errorf("failed to marshal task run stats: %w", err)
	}

	query := `
		INSERT INTO task_runs
		(id, workflow_run_id, task_id, status, attempts, start_time, end_time, stats, record)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
			attempts = EXCLUDED.attempts,
			end_time = EXCLUDED.end_time,
			stats = EXCLUDED.stats,
			record = EXCLUDED.record`

	_, err = c.db.ExecContext(ctx, query,
		run.ID,
		run.WorkflowRunID,
		run.Spec.ID,
		run.Status,
		len(run.Attempts),
		run.StartTime,
		run.EndTime,
		stats,
		record,
	)
	return err
}

// RecordWorkflowRun archives a finished workflow run record.
func (c *Client) RecordWorkflowRun(ctx context.Context, run *models.WorkflowRun) error {
	record, err := run.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal workflow run: %w", err)
	}

	query := `
		INSERT INTO workflow_runs
		(id, definition_id, status, start_time, end_time, record)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
			end_time = EXCLUDED.end_time,
			record = EXCLUDED.record`

	_, err = c.db.ExecContext(ctx, query,
		run.ID,
		run.DefinitionID,
		run.Status,
		run.StartTime,
		run.EndTime,
		record,
	)
	return err
}

// GetWorkflowRun returns an archived workflow run.
func (c *Client) GetWorkflowRun(ctx context.Context, id string) (*models.WorkflowRun, error) {
	query := `SELECT record FROM workflow_runs WHERE id = $1`

	var record []byte
	err := c.db.QueryRowContext(ctx, query, id).Scan(&record)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New("workflow run not found")
		}
		return nil, err
	}

	var run models.WorkflowRun
	if err := run.FromJSON(record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow run: %w", err)
	}
	return &run, nil
}

// ListWorkflowRuns returns archived runs for a definition, newest first.
func (c *Client) ListWorkflowRuns(ctx context.Context, definitionID string, limit int) ([]*models.WorkflowRun, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT record
		FROM workflow_runs
		WHERE definition_id = $1
		ORDER BY start_time DESC
		LIMIT $2`

	rows, err := c.db.QueryContext(ctx, query, definitionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.WorkflowRun
	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return nil, err
		}
		var run models.WorkflowRun
		if err := run.FromJSON(record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal workflow run: %w", err)
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// TaskRunStats returns the archived flat metric aggregates for one task id
// across its historical runs, oldest first, bounded by since.
func (c *Client) TaskRunStats(ctx context.Context, taskID string, since time.Time) ([]map[string]float64, error) {
	query := `
		SELECT stats
		FROM task_runs
		WHERE task_id = $1 AND start_time >= $2 AND stats IS NOT NULL
		ORDER BY start_time ASC`

	rows, err := c.db.QueryContext(ctx, query, taskID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]float64
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var stats models.ResourceStats
		if err := json.Unmarshal(raw, &stats); err != nil {
			continue
		}
		out = append(out, stats.Flat())
	}
	return out, rows.Err()
}
