package pipeline

import (
	"context"
	"strings"

	"github.com/fentz26/pacer/internal/apperr"
	"github.com/fentz26/pacer/internal/audit"
	"github.com/fentz26/pacer/internal/models"
	"github.com/fentz26/pacer/internal/store"
)

// Edit lists field changes. Nil fields are left alone. An empty ClientName
// clears the client.
type Edit struct {
	Title         *string `json:"title,omitempty"`
	Description   *string `json:"description,omitempty"`
	ValueTier     *string `json:"value_tier,omitempty"`
	DrainType     *string `json:"drain_type,omitempty"`
	ClientName    *string `json:"client_name,omitempty"`
	Effort        *int    `json:"effort_estimate,omitempty"`
	PointsFinal   *int    `json:"points_final,omitempty"`
	PointsAIGuess *int    `json:"points_ai_guess,omitempty"`
}

// Edit applies non-status changes. It appends one edited event naming the
// changed fields, or does nothing when no field actually changes.
func (m *Machine) Edit(ctx context.Context, id string, e Edit, actor string) (*models.Task, error) {
	const op = "edit task"
	if e.Title != nil && strings.TrimSpace(*e.Title) == "" {
		return nil, apperr.Invariant(op, "title cannot be empty")
	}
	if e.Effort != nil && (*e.Effort < 0 || *e.Effort > 4) {
		return nil, apperr.Invariant(op, "effort estimate %d outside 1-4", *e.Effort)
	}

	var task *models.Task
	err := m.store.InTx(ctx, func(q *store.Queries) error {
		var err error
		task, err = q.GetTask(ctx, id)
		if err != nil {
			return err
		}

		var fields []string
		setString := func(name string, dst *string, v *string) {
			if v != nil && *dst != *v {
				*dst = *v
				fields = append(fields, name)
			}
		}
		setInt := func(name string, dst **int, v *int) {
			if v != nil && (*dst == nil || **dst != *v) {
				val := *v
				*dst = &val
				fields = append(fields, name)
			}
		}

		if e.Title != nil {
			title := strings.TrimSpace(*e.Title)
			setString("title", &task.Title, &title)
		}
		setString("description", &task.Description, e.Description)
		setString("value_tier", &task.ValueTier, e.ValueTier)
		setString("drain_type", &task.DrainType, e.DrainType)
		if e.ClientName != nil {
			next := optionalString(*e.ClientName)
			if task.Client() != strings.TrimSpace(*e.ClientName) {
				task.ClientName = next
				fields = append(fields, "client_name")
			}
		}
		if e.Effort != nil && task.EffortEstimate != *e.Effort {
			task.EffortEstimate = *e.Effort
			fields = append(fields, "effort_estimate")
		}
		setInt("points_final", &task.PointsFinal, e.PointsFinal)
		setInt("points_ai_guess", &task.PointsAIGuess, e.PointsAIGuess)

		if len(fields) == 0 {
			return nil
		}

		task.UpdatedAt = m.clock.Now().UTC()
		if err := q.UpdateTask(ctx, task); err != nil {
			return err
		}
		_, err = m.events.Append(ctx, q, audit.Entry{
			TaskID:   task.ID,
			Kind:     models.EventEdited,
			From:     task.Status,
			To:       task.Status,
			Actor:    actor,
			Metadata: map[string]any{"fields": fields},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}
