// Package runner orchestrates scheduled task execution: it claims due
// tasks, opens a history entry per task, dispatches through the handler
// registry, finalizes the entry, and reschedules. It owns no timer; an
// external trigger (the periodic invoker in cmd, or a manual request)
// calls Run.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"freshmart/internal/domain"
	"freshmart/internal/schedule"
)

// TaskStore is the slice of the store the runner selects and reschedules
// tasks through.
type TaskStore interface {
	ClaimDue(ctx context.Context, now time.Time, lease time.Duration, f domain.RunFilter) ([]domain.Task, error)
	Reschedule(ctx context.Context, id string, lastRun, nextRun time.Time, failed bool) error
}

// HistoryLedger records execution attempts.
type HistoryLedger interface {
	StartRun(ctx context.Context, taskID string, now time.Time) (domain.TaskRun, error)
	FinishRun(ctx context.Context, runID string, status domain.RunStatus, result string, now time.Time) error
}

// Outcome is the per-task entry of an invocation's result list.
type Outcome struct {
	TaskID   string           `json:"task_id"`
	TaskName string           `json:"task_name"`
	Status   domain.RunStatus `json:"status"`
	Result   any              `json:"result,omitempty"`
	Error    string           `json:"error,omitempty"`
}

type Runner struct {
	tasks       TaskStore
	history     HistoryLedger
	registry    *Registry
	taskTimeout time.Duration
	claimLease  time.Duration
	now         func() time.Time
}

func New(tasks TaskStore, history HistoryLedger, registry *Registry, taskTimeout, claimLease time.Duration) *Runner {
	return &Runner{
		tasks:       tasks,
		history:     history,
		registry:    registry,
		taskTimeout: taskTimeout,
		claimLease:  claimLease,
		now:         time.Now,
	}
}

// Run executes every due, enabled task matching f, sequentially and in
// isolation: one failing handler marks its own run failed and the batch
// continues. The only error surfaced here is a failure to select/claim
// due tasks; an empty claim returns an empty outcome list with no side
// effects.
func (r *Runner) Run(ctx context.Context, f domain.RunFilter) ([]Outcome, error) {
	tasks, err := r.tasks.ClaimDue(ctx, r.now(), r.claimLease, f)
	if err != nil {
		return nil, fmt.Errorf("select due tasks: %w", err)
	}

	outcomes := make([]Outcome, 0, len(tasks))
	for _, t := range tasks {
		outcomes = append(outcomes, r.runOne(ctx, t))
	}
	return outcomes, nil
}

func (r *Runner) runOne(ctx context.Context, t domain.Task) Outcome {
	out := Outcome{TaskID: t.ID, TaskName: t.Name}

	run, err := r.history.StartRun(ctx, t.ID, r.now())
	if err != nil {
		// No ledger entry means no finalization and no reschedule; the
		// claim lease expires and the task is picked up again later.
		log.Error().Err(err).Str("task_id", t.ID).Msg("open history entry")
		out.Status = domain.RunFailed
		out.Error = err.Error()
		return out
	}

	result, runErr := r.dispatch(ctx, t)

	out.Status = domain.RunCompleted
	var payload string
	if runErr == nil {
		b, merr := json.Marshal(result)
		if merr != nil {
			runErr = fmt.Errorf("serialize result: %w", merr)
		} else {
			payload = string(b)
			out.Result = result
		}
	}
	if runErr != nil {
		out.Status = domain.RunFailed
		out.Error = runErr.Error()
		out.Result = nil
		payload = runErr.Error()
		log.Error().Err(runErr).Str("task_id", t.ID).Str("task_name", t.Name).Msg("task failed")
	}

	if err := r.history.FinishRun(ctx, run.ID, out.Status, payload, r.now()); err != nil {
		log.Error().Err(err).Str("run_id", run.ID).Msg("finalize history entry")
	}

	// Reschedule unconditionally, anchored at completion time. Success
	// and failure both advance the schedule; a failing task is retried
	// at its next natural slot.
	done := r.now()
	next, err := schedule.NextRunFrom(done, t.Schedule)
	if err != nil {
		log.Error().Err(err).Str("task_id", t.ID).Str("schedule", t.Schedule).Msg("stored schedule no longer parses")
		return out
	}
	if err := r.tasks.Reschedule(ctx, t.ID, done, next, out.Status == domain.RunFailed); err != nil {
		log.Error().Err(err).Str("task_id", t.ID).Msg("reschedule task")
		return out
	}

	log.Info().
		Str("task_id", t.ID).
		Str("task_name", t.Name).
		Str("status", string(out.Status)).
		Time("next_run", next).
		Msg("task finished")
	return out
}

// dispatch resolves the handler, re-validates parameters, and runs the
// handler under the per-task deadline. A panic inside a handler becomes
// a plain failed run.
func (r *Runner) dispatch(ctx context.Context, t domain.Task) (result any, err error) {
	h, err := r.registry.Resolve(t.Type)
	if err != nil {
		return nil, err
	}
	if err := h.ValidateParams(t.Parameters); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, r.taskTimeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			result = nil
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return h.Run(runCtx, t.Parameters)
}
