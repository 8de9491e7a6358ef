package store

import (
	"context"
	"time"

	"github.com/fentz26/pacer/internal/apperr"
	"github.com/fentz26/pacer/internal/models"
)

const taskColumns = `id, client_name, title, description, status, value_tier, drain_type,
	effort_estimate, points_final, points_ai_guess, sort_order, created_at, updated_at, completed_at`

// InsertTask writes a new task row. Timestamps are stored in UTC.
func (q *Queries) InsertTask(ctx context.Context, t *models.Task) error {
	_, err := q.exec(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ClientName, t.Title, t.Description, t.Status, t.ValueTier, t.DrainType,
		t.EffortEstimate, t.PointsFinal, t.PointsAIGuess, t.SortOrder,
		t.CreatedAt.UTC(), t.UpdatedAt.UTC(), utcPtr(t.CompletedAt),
	)
	if err != nil {
		return apperr.Storage("insert task", err)
	}
	return nil
}

// GetTask retrieves a task by ID.
func (q *Queries) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var t models.Task
	err := q.get(ctx, &t, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	if isNoRows(err) {
		return nil, apperr.NotFound("get task", "task %s not found", id)
	}
	if err != nil {
		return nil, apperr.Storage("query task", err)
	}
	return &t, nil
}

// ListTasks returns tasks in display order, optionally filtered by status.
func (q *Queries) ListTasks(ctx context.Context, status models.Status) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY sort_order ASC, created_at DESC`

	var tasks []models.Task
	if err := q.selectAll(ctx, &tasks, query, args...); err != nil {
		return nil, apperr.Storage("query tasks", err)
	}
	return tasks, nil
}

// ListCompletedBetween returns done tasks with completed_at in [start, end).
func (q *Queries) ListCompletedBetween(ctx context.Context, start, end time.Time) ([]models.Task, error) {
	var tasks []models.Task
	err := q.selectAll(ctx, &tasks,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE status = ? AND completed_at >= ? AND completed_at < ?
		 ORDER BY completed_at ASC`,
		models.StatusDone, start.UTC(), end.UTC(),
	)
	if err != nil {
		return nil, apperr.Storage("query completed tasks", err)
	}
	return tasks, nil
}

// UpdateTask overwrites every mutable column of an existing task.
func (q *Queries) UpdateTask(ctx context.Context, t *models.Task) error {
	return q.execOne(ctx, "update task", "task", t.ID,
		`UPDATE tasks SET client_name = ?, title = ?, description = ?, status = ?, value_tier = ?,
		 drain_type = ?, effort_estimate = ?, points_final = ?, points_ai_guess = ?, sort_order = ?,
		 updated_at = ?, completed_at = ? WHERE id = ?`,
		t.ClientName, t.Title, t.Description, t.Status, t.ValueTier,
		t.DrainType, t.EffortEstimate, t.PointsFinal, t.PointsAIGuess, t.SortOrder,
		t.UpdatedAt.UTC(), utcPtr(t.CompletedAt), t.ID,
	)
}

// DeleteTask removes a live task row.
func (q *Queries) DeleteTask(ctx context.Context, id string) error {
	return q.execOne(ctx, "delete task", "task", id, `DELETE FROM tasks WHERE id = ?`, id)
}

// HeadSortOrder returns a sort order that places a task ahead of every
// existing task in status: min(sort_order) - 1, or -1 when empty.
func (q *Queries) HeadSortOrder(ctx context.Context, status models.Status) (int, error) {
	var head int
	err := q.get(ctx, &head, `SELECT COALESCE(MIN(sort_order), 0) - 1 FROM tasks WHERE status = ?`, status)
	if err != nil {
		return 0, apperr.Storage("query head sort order", err)
	}
	return head, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
