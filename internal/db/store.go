package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/papaburgs/fluffy-miner/internal/types"
)

// Step statuses written to workflow_audit.
const (
	StepSucceeded = "succeeded"
	StepFailed    = "failed"
)

// StepRecord is one row of a run's audit trail.
type StepRecord struct {
	RunID      string    `json:"runId"`
	Step       string    `json:"step"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Store reads and writes the audit trail and agent history.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := InitSchema(db); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// RecordStep stores a single workflow step outcome.
func (s *Store) RecordStep(ctx context.Context, r StepRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workflow_audit (run_id, step, status, error, started_at, finished_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Step, r.Status, r.Error, r.StartedAt.UnixMilli(), r.FinishedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record step %s of run %s: %w", r.Step, r.RunID, err)
	}
	return nil
}

// ListRun returns the steps of one run in the order they finished.
func (s *Store) ListRun(ctx context.Context, runID string) ([]StepRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, step, status, error, started_at, finished_at FROM workflow_audit WHERE run_id = ? ORDER BY id ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []StepRecord
	for rows.Next() {
		var (
			r                 StepRecord
			errText           sql.NullString
			started, finished int64
		)
		if err := rows.Scan(&r.RunID, &r.Step, &r.Status, &errText, &started, &finished); err != nil {
			return nil, err
		}
		r.Error = errText.String
		r.StartedAt = time.UnixMilli(started).UTC()
		r.FinishedAt = time.UnixMilli(finished).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecordAgent stores an agent snapshot. A second snapshot in the same second
// replaces the first.
func (s *Store) RecordAgent(ctx context.Context, at time.Time, a types.Agent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO agent_history (timestamp, symbol, credits, ships) VALUES (?, ?, ?, ?)`,
		at.Unix(), a.Symbol, a.Credits, a.ShipCount,
	)
	if err != nil {
		return fmt.Errorf("failed to record agent %s: %w", a.Symbol, err)
	}
	return nil
}

// AgentHistory returns snapshots of symbol taken at or after since, oldest first.
func (s *Store) AgentHistory(ctx context.Context, symbol string, since time.Time) ([]types.AgentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT timestamp, ships, credits FROM agent_history WHERE symbol = ? AND timestamp >= ? ORDER BY timestamp ASC`,
		symbol, since.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query agent history: %w", err)
	}
	defer rows.Close()

	records := []types.AgentRecord{}
	for rows.Next() {
		var ts int64
		var r types.AgentRecord
		if err := rows.Scan(&ts, &r.ShipCount, &r.Credits); err != nil {
			return nil, err
		}
		r.Timestamp = time.Unix(ts, 0).UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}
