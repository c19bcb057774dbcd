package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"freshmart/internal/domain"
)

const taskColumns = `id,name,task_type,schedule,next_run,last_run,enabled,parameters,claimed_until,consecutive_failures,created_at,updated_at`

// CreateTask persists a new task. NextRun must already be computed by the
// caller, anchored at creation time.
func (s *Store) CreateTask(ctx context.Context, t domain.Task) (string, error) {
	id := t.ID
	if id == "" {
		id = "tsk_" + uuid.NewString()
	}
	if t.Parameters == nil {
		t.Parameters = domain.Params{}
	}
	params, err := json.Marshal(t.Parameters)
	if err != nil {
		return "", fmt.Errorf("marshal parameters: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO scheduled_tasks (id,name,task_type,schedule,next_run,enabled,parameters,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,CURRENT_TIMESTAMP,CURRENT_TIMESTAMP)
`, id, t.Name, string(t.Type), t.Schedule, t.NextRun, t.Enabled, string(params))
	if err != nil {
		return "", fmt.Errorf("insert task: %w", err)
	}
	return id, nil
}

func (s *Store) GetTask(ctx context.Context, id string) (domain.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM scheduled_tasks WHERE id=?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return domain.Task{}, ErrNotFound
	}
	return t, err
}

func (s *Store) ListTasks(ctx context.Context) ([]domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM scheduled_tasks ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Store) SetTaskEnabled(ctx context.Context, id string, enabled bool) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE scheduled_tasks SET enabled=?, updated_at=CURRENT_TIMESTAMP WHERE id=?`, enabled, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClaimDue selects the enabled tasks whose next_run has passed, narrowed
// by f, and claims each with a compare-and-set on next_run so that two
// concurrent invocations never run the same task. A row lost to another
// claimer is skipped silently.
func (s *Store) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, f domain.RunFilter) ([]domain.Task, error) {
	q := `SELECT ` + taskColumns + ` FROM scheduled_tasks WHERE enabled=1 AND next_run<=?`
	args := []any{now}
	if f.TaskID != "" {
		q += " AND id=?"
		args = append(args, f.TaskID)
	}
	if f.TaskType != "" {
		q += " AND task_type=?"
		args = append(args, string(f.TaskType))
	}
	q += " ORDER BY next_run"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	claimedUntil := now.Add(lease)
	var claimed []domain.Task
	for _, t := range candidates {
		res, err := s.db.ExecContext(ctx, `
UPDATE scheduled_tasks SET claimed_until=?, updated_at=CURRENT_TIMESTAMP
WHERE id=? AND next_run=? AND (claimed_until IS NULL OR claimed_until<=?)`,
			claimedUntil, t.ID, t.NextRun, now)
		if err != nil {
			return nil, err
		}
		if n, _ := res.RowsAffected(); n == 1 {
			t.ClaimedUntil = &claimedUntil
			claimed = append(claimed, t)
		}
	}
	return claimed, nil
}

// Reschedule finalizes a task after a run: records last_run, advances
// next_run, clears the claim, and bumps or resets the consecutive
// failure counter. Called after both success and failure.
func (s *Store) Reschedule(ctx context.Context, id string, lastRun, nextRun time.Time, failed bool) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE scheduled_tasks
SET last_run=?, next_run=?, claimed_until=NULL,
    consecutive_failures=CASE WHEN ? THEN consecutive_failures+1 ELSE 0 END,
    updated_at=CURRENT_TIMESTAMP
WHERE id=?`, lastRun, nextRun, failed, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReleaseExpiredClaims clears claims whose lease has passed, typically
// left behind by a crashed invocation. Run at boot.
func (s *Store) ReleaseExpiredClaims(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE scheduled_tasks SET claimed_until=NULL, updated_at=CURRENT_TIMESTAMP
WHERE claimed_until IS NOT NULL AND claimed_until<=?`, now)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanTask(row rowScanner) (domain.Task, error) {
	var (
		t        domain.Task
		taskType string
		params   string
		lastRun  sql.NullTime
		claimed  sql.NullTime
	)
	err := row.Scan(&t.ID, &t.Name, &taskType, &t.Schedule, &t.NextRun, &lastRun,
		&t.Enabled, &params, &claimed, &t.ConsecutiveFailures, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.Task{}, err
	}
	t.Type = domain.TaskType(taskType)
	if lastRun.Valid {
		lr := lastRun.Time
		t.LastRun = &lr
	}
	if claimed.Valid {
		cu := claimed.Time
		t.ClaimedUntil = &cu
	}
	if err := json.Unmarshal([]byte(params), &t.Parameters); err != nil {
		return domain.Task{}, fmt.Errorf("bad parameters column for task %s: %w", t.ID, err)
	}
	return t, nil
}
