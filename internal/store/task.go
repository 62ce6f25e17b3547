package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"leadhub.app/aggregator/core/db"
	"leadhub.app/aggregator/internal/model"
)

type taskStore struct {
	q db.Querier
}

func newTaskStore(q db.Querier) TaskStore {
	return &taskStore{q: q}
}

const taskColumns = `id, task_id, task_type, payload, status, attempts, max_attempts, error_message, result, trace_id, scheduled_at, started_at, completed_at, created_at`

const staleErrorMessage = "processing timed out"

func (s *taskStore) Create(ctx context.Context, task *model.Task) (*model.Task, error) {
	row := s.q.QueryRow(ctx, `
		INSERT INTO tasks (id, task_id, task_type, payload, status, attempts, max_attempts, trace_id, scheduled_at)
		VALUES ($1, $2, $3, COALESCE($4, '{}'::jsonb), 'pending', 0, $5, $6, $7)
		RETURNING `+taskColumns,
		task.ID, task.TaskID, task.TaskType, []byte(task.Payload), task.MaxAttempts, task.TraceID, task.ScheduledAt,
	)
	return scanTask(row)
}

func (s *taskStore) GetByTaskID(ctx context.Context, taskID string) (*model.Task, error) {
	row := s.q.QueryRow(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE task_id = $1`,
		taskID,
	)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return task, nil
}

// ClaimReady atomically moves up to limit eligible tasks to processing and
// returns them. SKIP LOCKED keeps concurrent claimers disjoint without
// blocking each other; attempts counts exactly these claims.
func (s *taskStore) ClaimReady(ctx context.Context, limit int32) ([]model.Task, error) {
	rows, err := s.q.Query(ctx, `
		WITH ready AS (
			SELECT id
			FROM tasks
			WHERE status = 'pending' AND scheduled_at <= now()
			ORDER BY scheduled_at, id
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE tasks t
		SET status = 'processing', attempts = t.attempts + 1, started_at = now()
		FROM ready
		WHERE t.id = ready.id
		RETURNING t.id, t.task_id, t.task_type, t.payload, t.status, t.attempts, t.max_attempts,
		          t.error_message, t.result, t.trace_id, t.scheduled_at, t.started_at, t.completed_at, t.created_at`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// UPDATE ... RETURNING does not guarantee row order; restore the
	// earliest-scheduled-first order callers dispatch in.
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].ScheduledAt.Equal(tasks[j].ScheduledAt) {
			return tasks[i].ScheduledAt.Before(tasks[j].ScheduledAt)
		}
		return tasks[i].ID < tasks[j].ID
	})
	return tasks, nil
}

func (s *taskStore) Complete(ctx context.Context, taskID string, result json.RawMessage) (*model.Task, error) {
	row := s.q.QueryRow(ctx, `
		UPDATE tasks
		SET status = 'completed', result = $2, completed_at = now()
		WHERE task_id = $1 AND status = 'processing'
		RETURNING `+taskColumns,
		taskID, []byte(result),
	)
	return scanTransition(row)
}

func (s *taskStore) Fail(ctx context.Context, taskID, errMsg string) (*model.Task, error) {
	row := s.q.QueryRow(ctx, `
		UPDATE tasks
		SET status = 'failed', error_message = $2
		WHERE task_id = $1 AND status = 'processing'
		RETURNING `+taskColumns,
		taskID, errMsg,
	)
	return scanTransition(row)
}

func (s *taskStore) Requeue(ctx context.Context, taskID string, nextAt time.Time, lastErr string) (*model.Task, error) {
	row := s.q.QueryRow(ctx, `
		UPDATE tasks
		SET status = 'pending', scheduled_at = $2, error_message = $3
		WHERE task_id = $1 AND status = 'processing'
		RETURNING `+taskColumns,
		taskID, nextAt, lastErr,
	)
	return scanTransition(row)
}

func (s *taskStore) ListFailed(ctx context.Context, taskType *model.TaskType, limit int32) ([]model.Task, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE status = 'failed'
		  AND ($1::text IS NULL OR task_type = $1)
		ORDER BY scheduled_at, id
		LIMIT $2`,
		taskType, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func (s *taskStore) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := s.q.Query(ctx, `SELECT status, count(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// ReclaimStale rescues tasks stuck in processing after a worker crash.
// Exhausted tasks fail outright; the rest go back to pending for the next
// claim (which is what increments attempts again).
func (s *taskStore) ReclaimStale(ctx context.Context, olderThan time.Duration) (requeued, failed int64, err error) {
	failedTag, err := s.q.Exec(ctx, `
		UPDATE tasks
		SET status = 'failed', error_message = $2
		WHERE status = 'processing'
		  AND started_at <= now() - $1::interval
		  AND attempts >= max_attempts`,
		olderThan, staleErrorMessage,
	)
	if err != nil {
		return 0, 0, err
	}

	requeuedTag, err := s.q.Exec(ctx, `
		UPDATE tasks
		SET status = 'pending', scheduled_at = now(), error_message = $2
		WHERE status = 'processing'
		  AND started_at <= now() - $1::interval
		  AND attempts < max_attempts`,
		olderThan, staleErrorMessage,
	)
	if err != nil {
		return 0, failedTag.RowsAffected(), err
	}

	return requeuedTag.RowsAffected(), failedTag.RowsAffected(), nil
}

// scanTransition maps the no-rows case of a guarded transition to
// ErrNotFound: either the task id is unknown or the task is not in
// processing (terminal states never move again).
func scanTransition(row scanner) (*model.Task, error) {
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return task, nil
}

func scanTask(row scanner) (*model.Task, error) {
	var task model.Task
	var payload, result []byte

	err := row.Scan(
		&task.ID, &task.TaskID, &task.TaskType, &payload, &task.Status,
		&task.Attempts, &task.MaxAttempts, &task.ErrorMessage, &result,
		&task.TraceID, &task.ScheduledAt, &task.StartedAt, &task.CompletedAt,
		&task.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Payload = json.RawMessage(payload)
	if result != nil {
		task.Result = json.RawMessage(result)
	}
	return &task, nil
}

