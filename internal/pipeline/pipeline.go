// Package pipeline enforces task status transitions and records their events.
package pipeline

import (
	"context"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/fentz26/pacer/internal/apperr"
	"github.com/fentz26/pacer/internal/audit"
	"github.com/fentz26/pacer/internal/clock"
	"github.com/fentz26/pacer/internal/models"
	"github.com/fentz26/pacer/internal/store"
)

// CompletionHook runs after a task reaches done and the change is committed.
type CompletionHook func(ctx context.Context, task *models.Task) error

// Machine owns every mutation of a live task.
type Machine struct {
	store      *store.Store
	events     *audit.EventLog
	clock      clock.Clock
	onComplete CompletionHook
}

// New creates a pipeline state machine.
func New(st *store.Store, events *audit.EventLog, c clock.Clock) *Machine {
	if c == nil {
		c = clock.System{}
	}
	return &Machine{store: st, events: events, clock: c}
}

// OnComplete registers the hook fed by completions.
func (m *Machine) OnComplete(fn CompletionHook) {
	m.onComplete = fn
}

// NewTask describes a task to create.
type NewTask struct {
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	ClientName    string        `json:"client_name"`
	ValueTier     string        `json:"value_tier"`
	DrainType     string        `json:"drain_type"`
	Effort        int           `json:"effort_estimate"`
	PointsFinal   *int          `json:"points_final,omitempty"`
	PointsAIGuess *int          `json:"points_ai_guess,omitempty"`
	Status        models.Status `json:"status,omitempty"`
}

// Create inserts a task at the head of its status and appends a created event.
func (m *Machine) Create(ctx context.Context, in NewTask, actor string) (*models.Task, error) {
	const op = "create task"
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Invariant(op, "title is required")
	}
	if in.Effort < 0 || in.Effort > 4 {
		return nil, apperr.Invariant(op, "effort estimate %d outside 1-4", in.Effort)
	}
	status := in.Status
	if status == "" {
		status = models.StatusBacklog
	}
	if !status.Valid() {
		return nil, apperr.InvalidTransition(op, "unknown status %q", status)
	}

	now := m.clock.Now().UTC()
	task := &models.Task{
		ID:             uuid.New().String(),
		ClientName:     optionalString(in.ClientName),
		Title:          title,
		Description:    in.Description,
		Status:         status,
		ValueTier:      in.ValueTier,
		DrainType:      in.DrainType,
		EffortEstimate: in.Effort,
		PointsFinal:    in.PointsFinal,
		PointsAIGuess:  in.PointsAIGuess,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if status == models.StatusDone {
		task.CompletedAt = &now
	}

	err := m.store.InTx(ctx, func(q *store.Queries) error {
		head, err := q.HeadSortOrder(ctx, status)
		if err != nil {
			return err
		}
		task.SortOrder = head
		if err := q.InsertTask(ctx, task); err != nil {
			return err
		}
		if status == models.StatusDone && task.ClientName != nil {
			if err := q.TouchClient(ctx, *task.ClientName, task.ID, now); err != nil {
				return err
			}
		}
		_, err = m.events.Append(ctx, q, audit.Entry{
			TaskID: task.ID,
			Kind:   models.EventCreated,
			To:     status,
			Actor:  actor,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if status == models.StatusDone {
		m.completed(ctx, task)
	}
	return task, nil
}

// Transition moves a task to target. Any jump between the four statuses is
// allowed; a request for the current status is a no-op without an event.
func (m *Machine) Transition(ctx context.Context, id string, target models.Status, actor string) (*models.Task, error) {
	if !target.Valid() {
		return nil, apperr.InvalidTransition("transition", "unknown status %q", target)
	}

	var task *models.Task
	changed := false
	err := m.store.InTx(ctx, func(q *store.Queries) error {
		var err error
		task, err = q.GetTask(ctx, id)
		if err != nil {
			return err
		}
		if task.Status == target {
			return nil
		}
		changed = true
		return m.move(ctx, q, task, target, actor)
	})
	if err != nil {
		return nil, err
	}

	if changed && target == models.StatusDone {
		m.completed(ctx, task)
	}
	return task, nil
}

// Promote moves a task one step toward done. Promoting a done task is a no-op.
func (m *Machine) Promote(ctx context.Context, id, actor string) (*models.Task, error) {
	return m.step(ctx, id, actor, models.Status.Next)
}

// Demote moves a task one step back toward backlog. Demoting a backlog or
// done task returns it unchanged.
func (m *Machine) Demote(ctx context.Context, id, actor string) (*models.Task, error) {
	return m.step(ctx, id, actor, models.Status.Prev)
}

func (m *Machine) step(ctx context.Context, id, actor string, next func(models.Status) (models.Status, bool)) (*models.Task, error) {
	var task *models.Task
	changed := false
	err := m.store.InTx(ctx, func(q *store.Queries) error {
		var err error
		task, err = q.GetTask(ctx, id)
		if err != nil {
			return err
		}
		target, ok := next(task.Status)
		if !ok {
			return nil
		}
		changed = true
		return m.move(ctx, q, task, target, actor)
	})
	if err != nil {
		return nil, err
	}

	if changed && task.Status == models.StatusDone {
		m.completed(ctx, task)
	}
	return task, nil
}

// move applies a status change to task in place and writes it with its event.
func (m *Machine) move(ctx context.Context, q *store.Queries, task *models.Task, target models.Status, actor string) error {
	from := task.Status
	now := m.clock.Now().UTC()

	head, err := q.HeadSortOrder(ctx, target)
	if err != nil {
		return err
	}
	task.Status = target
	task.SortOrder = head
	task.UpdatedAt = now
	if target == models.StatusDone {
		task.CompletedAt = &now
	} else {
		task.CompletedAt = nil
	}
	if err := q.UpdateTask(ctx, task); err != nil {
		return err
	}

	kind := models.EventPromoted
	switch {
	case target == models.StatusDone:
		kind = models.EventCompleted
	case target.Rank() < from.Rank():
		kind = models.EventDemoted
	}

	if client := task.Client(); client != "" {
		switch {
		case kind == models.EventCompleted:
			if err := q.TouchClient(ctx, client, task.ID, now); err != nil {
				return err
			}
		case kind == models.EventDemoted && from != models.StatusDone:
			if err := q.IncrementAvoidance(ctx, client, now); err != nil {
				return err
			}
		}
	}

	_, err = m.events.Append(ctx, q, audit.Entry{
		TaskID: task.ID,
		Kind:   kind,
		From:   from,
		To:     target,
		Actor:  actor,
	})
	return err
}

func (m *Machine) completed(ctx context.Context, task *models.Task) {
	if m.onComplete == nil {
		return
	}
	if err := m.onComplete(ctx, task); err != nil {
		log.Printf("[pipeline] completion hook for task %s failed: %v", task.ID, err)
	}
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
