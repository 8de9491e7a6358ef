package store

import (
	"context"
	"time"

	"github.com/fentz26/pacer/internal/apperr"
	"github.com/fentz26/pacer/internal/models"
)

const clientColumns = `name, tier, sentiment, importance, notes, avoidance_score, stale_days,
	last_touched_task, last_touched_at, created_at, updated_at`

// GetClient retrieves client memory by name.
func (q *Queries) GetClient(ctx context.Context, name string) (*models.ClientMemory, error) {
	var c models.ClientMemory
	err := q.get(ctx, &c, `SELECT `+clientColumns+` FROM client_memory WHERE name = ?`, name)
	if isNoRows(err) {
		return nil, apperr.NotFound("get client", "client %q not found", name)
	}
	if err != nil {
		return nil, apperr.Storage("query client", err)
	}
	return &c, nil
}

// ListClients returns all client memory rows by name.
func (q *Queries) ListClients(ctx context.Context) ([]models.ClientMemory, error) {
	var clients []models.ClientMemory
	if err := q.selectAll(ctx, &clients, `SELECT `+clientColumns+` FROM client_memory ORDER BY name ASC`); err != nil {
		return nil, apperr.Storage("query clients", err)
	}
	return clients, nil
}

// UpsertClientProfile writes the user-editable profile fields, creating the
// row if needed. Behavioral counters are left untouched on update.
func (q *Queries) UpsertClientProfile(ctx context.Context, c *models.ClientMemory, at time.Time) error {
	_, err := q.exec(ctx,
		`INSERT INTO client_memory (name, tier, sentiment, importance, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET
		   tier = excluded.tier,
		   sentiment = excluded.sentiment,
		   importance = excluded.importance,
		   notes = excluded.notes,
		   updated_at = excluded.updated_at`,
		c.Name, c.Tier, c.Sentiment, c.Importance, c.Notes, at.UTC(), at.UTC(),
	)
	if err != nil {
		return apperr.Storage("upsert client", err)
	}
	return nil
}

// TouchClient records a completion: stale counter reset, last-touched set.
func (q *Queries) TouchClient(ctx context.Context, name, taskID string, at time.Time) error {
	_, err := q.exec(ctx,
		`INSERT INTO client_memory (name, stale_days, last_touched_task, last_touched_at, created_at, updated_at)
		 VALUES (?, 0, ?, ?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET
		   stale_days = 0,
		   last_touched_task = excluded.last_touched_task,
		   last_touched_at = excluded.last_touched_at,
		   updated_at = excluded.updated_at`,
		name, taskID, at.UTC(), at.UTC(), at.UTC(),
	)
	if err != nil {
		return apperr.Storage("touch client", err)
	}
	return nil
}

// IncrementAvoidance records one deferral against a client.
func (q *Queries) IncrementAvoidance(ctx context.Context, name string, at time.Time) error {
	_, err := q.exec(ctx,
		`INSERT INTO client_memory (name, avoidance_score, created_at, updated_at)
		 VALUES (?, 1, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET
		   avoidance_score = client_memory.avoidance_score + 1,
		   updated_at = excluded.updated_at`,
		name, at.UTC(), at.UTC(),
	)
	if err != nil {
		return apperr.Storage("increment avoidance", err)
	}
	return nil
}

// ResetAvoidance zeroes a client's avoidance score.
func (q *Queries) ResetAvoidance(ctx context.Context, name string, at time.Time) error {
	return q.execOne(ctx, "reset avoidance", "client", name,
		`UPDATE client_memory SET avoidance_score = 0, updated_at = ? WHERE name = ?`, at.UTC(), name)
}

// SetStaleDays stores a recomputed stale-day counter.
func (q *Queries) SetStaleDays(ctx context.Context, name string, days int, at time.Time) error {
	return q.execOne(ctx, "set stale days", "client", name,
		`UPDATE client_memory SET stale_days = ?, updated_at = ? WHERE name = ?`, days, at.UTC(), name)
}
