// Package audit writes the append-only task event log.
package audit

import (
	"context"

	"github.com/google/uuid"

	"github.com/fentz26/pacer/internal/clock"
	"github.com/fentz26/pacer/internal/models"
	"github.com/fentz26/pacer/internal/store"
)

// EventLog appends lifecycle events. It never updates or deletes them.
type EventLog struct {
	clock clock.Clock
}

// NewEventLog creates an event log stamped by c.
func NewEventLog(c clock.Clock) *EventLog {
	if c == nil {
		c = clock.System{}
	}
	return &EventLog{clock: c}
}

// Entry describes an event to append.
type Entry struct {
	TaskID   string
	Kind     models.EventKind
	From     models.Status
	To       models.Status
	Actor    string
	Metadata map[string]any
}

// Append writes one event through q, which may be a transaction. IDs are
// time-ordered so events sharing a timestamp keep their append order.
func (l *EventLog) Append(ctx context.Context, q *store.Queries, e Entry) (*models.TaskEvent, error) {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	ev := &models.TaskEvent{
		ID:         id.String(),
		TaskID:     e.TaskID,
		Kind:       e.Kind,
		FromStatus: e.From,
		ToStatus:   e.To,
		Actor:      e.Actor,
		Metadata:   e.Metadata,
		CreatedAt:  l.clock.Now().UTC(),
	}
	if err := q.InsertEvent(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// History returns a task's events oldest first.
func (l *EventLog) History(ctx context.Context, q *store.Queries, taskID string) ([]models.TaskEvent, error) {
	return q.ListEvents(ctx, taskID)
}

// DeferralCounts returns how many times each task has been demoted.
func (l *EventLog) DeferralCounts(ctx context.Context, q *store.Queries) (map[string]int, error) {
	return q.CountEventsByTask(ctx, models.EventDemoted)
}
