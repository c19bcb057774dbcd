package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"freshmart/internal/domain"
)

// ErrRunFinalized is returned when a run is finished a second time. The
// ledger is append-only: one finalization per run, never re-opened.
var ErrRunFinalized = errors.New("task run already finalized")

// StartRun appends a running history entry for the task and returns it.
func (s *Store) StartRun(ctx context.Context, taskID string, now time.Time) (domain.TaskRun, error) {
	run := domain.TaskRun{
		ID:        "run_" + uuid.NewString(),
		TaskID:    taskID,
		Status:    domain.RunRunning,
		StartedAt: now,
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO task_history (id,task_id,status,started_at) VALUES (?,?,?,?)`,
		run.ID, run.TaskID, string(run.Status), run.StartedAt)
	if err != nil {
		return domain.TaskRun{}, err
	}
	return run, nil
}

// FinishRun finalizes a run with its terminal status and serialized
// result (or error message). Finalizing twice fails with ErrRunFinalized.
func (s *Store) FinishRun(ctx context.Context, runID string, status domain.RunStatus, result string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE task_history SET status=?, result=?, completed_at=?
WHERE id=? AND completed_at IS NULL`, string(status), result, now, runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM task_history WHERE id=?`, runID).Scan(&exists); err == sql.ErrNoRows {
		return ErrNotFound
	}
	return ErrRunFinalized
}

// ListRuns returns up to limit history entries for a task, newest first.
func (s *Store) ListRuns(ctx context.Context, taskID string, limit int) ([]domain.TaskRun, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id,task_id,status,result,started_at,completed_at
FROM task_history WHERE task_id=? ORDER BY started_at DESC LIMIT ?`, taskID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.TaskRun
	for rows.Next() {
		var (
			r         domain.TaskRun
			status    string
			result    sql.NullString
			completed sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.TaskID, &status, &result, &r.StartedAt, &completed); err != nil {
			return nil, err
		}
		r.Status = domain.RunStatus(status)
		if result.Valid {
			r.Result = result.String
		}
		if completed.Valid {
			ca := completed.Time
			r.CompletedAt = &ca
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
