package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gunhoflash/Project-ComputerGraphics/pkg/model"
)

// CreateRun records a refresh run that just started.
func (s *Store) CreateRun(ctx context.Context, run model.RefreshRun) error {
	counters, err := json.Marshal(run.Counters)
	if err != nil {
		return fmt.Errorf("encode counters: %w", err)
	}
	query := fmt.Sprintf(`INSERT INTO refresh_runs (run_id, trigger_name, status, snapshot_id, counters, error_message, started_at, finished_at)
		VALUES (%s)`, s.placeholders(1, 8))
	if _, err := s.db.ExecContext(ctx, query,
		run.RunID, run.Trigger, run.Status, run.SnapshotID, string(counters), run.Error,
		unixNanos(run.StartedAt), unixNanos(run.FinishedAt),
	); err != nil {
		return fmt.Errorf("insert run %s: %w", run.RunID, err)
	}
	return nil
}

// UpdateRun overwrites the mutable fields of a run.
func (s *Store) UpdateRun(ctx context.Context, run model.RefreshRun) error {
	counters, err := json.Marshal(run.Counters)
	if err != nil {
		return fmt.Errorf("encode counters: %w", err)
	}
	query := fmt.Sprintf(`UPDATE refresh_runs SET status = %s, snapshot_id = %s, counters = %s, error_message = %s, finished_at = %s
		WHERE run_id = %s`, s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6))
	if _, err := s.db.ExecContext(ctx, query,
		run.Status, run.SnapshotID, string(counters), run.Error, unixNanos(run.FinishedAt), run.RunID,
	); err != nil {
		return fmt.Errorf("update run %s: %w", run.RunID, err)
	}
	return nil
}

// ListRuns returns the latest runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]model.RefreshRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT run_id, trigger_name, status, snapshot_id, counters, error_message, started_at, finished_at
		FROM refresh_runs ORDER BY started_at DESC LIMIT %d`, limit))
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []model.RefreshRun{}
	for rows.Next() {
		var (
			run                 model.RefreshRun
			counters            string
			startedAt, finished int64
		)
		if err := rows.Scan(&run.RunID, &run.Trigger, &run.Status, &run.SnapshotID, &counters, &run.Error, &startedAt, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(counters), &run.Counters); err != nil {
			return nil, fmt.Errorf("decode counters of %s: %w", run.RunID, err)
		}
		run.StartedAt = fromUnixNanos(startedAt)
		run.FinishedAt = fromUnixNanos(finished)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
