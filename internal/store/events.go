package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fentz26/pacer/internal/apperr"
	"github.com/fentz26/pacer/internal/models"
)

type eventRow struct {
	ID         string         `db:"id"`
	TaskID     string         `db:"task_id"`
	Kind       string         `db:"kind"`
	FromStatus string         `db:"from_status"`
	ToStatus   string         `db:"to_status"`
	Actor      string         `db:"actor"`
	Metadata   sql.NullString `db:"metadata"`
	CreatedAt  time.Time      `db:"created_at"`
}

func (r eventRow) toModel() (models.TaskEvent, error) {
	ev := models.TaskEvent{
		ID:         r.ID,
		TaskID:     r.TaskID,
		Kind:       models.EventKind(r.Kind),
		FromStatus: models.Status(r.FromStatus),
		ToStatus:   models.Status(r.ToStatus),
		Actor:      r.Actor,
		CreatedAt:  r.CreatedAt,
	}
	if r.Metadata.Valid && r.Metadata.String != "" {
		if err := json.Unmarshal([]byte(r.Metadata.String), &ev.Metadata); err != nil {
			return ev, fmt.Errorf("event %s metadata: %w", r.ID, err)
		}
	}
	return ev, nil
}

// InsertEvent appends an event. Events are never updated or deleted.
func (q *Queries) InsertEvent(ctx context.Context, ev *models.TaskEvent) error {
	var meta sql.NullString
	if len(ev.Metadata) > 0 {
		data, err := json.Marshal(ev.Metadata)
		if err != nil {
			return apperr.Invariant("insert event", "metadata not serializable: %v", err)
		}
		meta = sql.NullString{String: string(data), Valid: true}
	}

	_, err := q.exec(ctx,
		`INSERT INTO task_events (id, task_id, kind, from_status, to_status, actor, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.TaskID, ev.Kind, ev.FromStatus, ev.ToStatus, ev.Actor, meta, ev.CreatedAt.UTC(),
	)
	if err != nil {
		return apperr.Storage("insert event", err)
	}
	return nil
}

// ListEvents returns a task's events oldest first.
func (q *Queries) ListEvents(ctx context.Context, taskID string) ([]models.TaskEvent, error) {
	var rows []eventRow
	err := q.selectAll(ctx, &rows,
		`SELECT id, task_id, kind, from_status, to_status, actor, metadata, created_at
		 FROM task_events WHERE task_id = ? ORDER BY created_at ASC, id ASC`,
		taskID,
	)
	if err != nil {
		return nil, apperr.Storage("query events", err)
	}
	events := make([]models.TaskEvent, 0, len(rows))
	for _, r := range rows {
		ev, err := r.toModel()
		if err != nil {
			return nil, apperr.Invariant("list events", "%v", err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// CountEventsByTask returns, per task id, how many events of kind exist.
func (q *Queries) CountEventsByTask(ctx context.Context, kind models.EventKind) (map[string]int, error) {
	var rows []struct {
		TaskID string `db:"task_id"`
		N      int    `db:"n"`
	}
	err := q.selectAll(ctx, &rows,
		`SELECT task_id, COUNT(*) AS n FROM task_events WHERE kind = ? GROUP BY task_id`, kind)
	if err != nil {
		return nil, apperr.Storage("count events", err)
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.TaskID] = r.N
	}
	return counts, nil
}
