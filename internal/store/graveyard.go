package store

import (
	"context"

	"github.com/fentz26/pacer/internal/apperr"
	"github.com/fentz26/pacer/internal/models"
)

const graveyardColumns = `id, original_task_id, title, description, client_name, value_tier, drain_type,
	effort_estimate, points_final, points_ai_guess, age_days, reason, archived_at`

// InsertGraveyard stores an archive snapshot.
func (q *Queries) InsertGraveyard(ctx context.Context, g *models.GraveyardEntry) error {
	_, err := q.exec(ctx,
		`INSERT INTO graveyard (`+graveyardColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.OriginalTaskID, g.Title, g.Description, g.ClientName, g.ValueTier, g.DrainType,
		g.EffortEstimate, g.PointsFinal, g.PointsAIGuess, g.AgeDays, g.Reason, g.ArchivedAt.UTC(),
	)
	if err != nil {
		return apperr.Storage("insert graveyard entry", err)
	}
	return nil
}

// GetGraveyard retrieves an archive snapshot by ID.
func (q *Queries) GetGraveyard(ctx context.Context, id string) (*models.GraveyardEntry, error) {
	var g models.GraveyardEntry
	err := q.get(ctx, &g, `SELECT `+graveyardColumns+` FROM graveyard WHERE id = ?`, id)
	if isNoRows(err) {
		return nil, apperr.NotFound("get graveyard entry", "graveyard entry %s not found", id)
	}
	if err != nil {
		return nil, apperr.Storage("query graveyard entry", err)
	}
	return &g, nil
}

// ListGraveyard returns archive snapshots newest first.
func (q *Queries) ListGraveyard(ctx context.Context) ([]models.GraveyardEntry, error) {
	var entries []models.GraveyardEntry
	err := q.selectAll(ctx, &entries, `SELECT `+graveyardColumns+` FROM graveyard ORDER BY archived_at DESC`)
	if err != nil {
		return nil, apperr.Storage("query graveyard", err)
	}
	return entries, nil
}

// DeleteGraveyard removes an archive snapshot.
func (q *Queries) DeleteGraveyard(ctx context.Context, id string) error {
	return q.execOne(ctx, "delete graveyard entry", "graveyard entry", id,
		`DELETE FROM graveyard WHERE id = ?`, id)
}
