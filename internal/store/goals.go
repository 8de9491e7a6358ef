package store

import (
	"context"
	"time"

	"github.com/fentz26/pacer/internal/apperr"
	"github.com/fentz26/pacer/internal/models"
)

const goalColumns = `date, target_points, earned_points, task_count, daily_debt, weekly_debt, pressure_level,
	current_streak, longest_streak, last_goal_hit_date, last_urgency_hour, updated_at`

// GetDailyGoal retrieves the record for a date key.
func (q *Queries) GetDailyGoal(ctx context.Context, date string) (*models.DailyGoalRecord, error) {
	var r models.DailyGoalRecord
	err := q.get(ctx, &r, `SELECT `+goalColumns+` FROM daily_goals WHERE date = ?`, date)
	if isNoRows(err) {
		return nil, apperr.NotFound("get daily goal", "no record for %s", date)
	}
	if err != nil {
		return nil, apperr.Storage("query daily goal", err)
	}
	return &r, nil
}

// LatestGoalBefore returns the most recent record strictly before date.
func (q *Queries) LatestGoalBefore(ctx context.Context, date string) (*models.DailyGoalRecord, error) {
	var r models.DailyGoalRecord
	err := q.get(ctx, &r,
		`SELECT `+goalColumns+` FROM daily_goals WHERE date < ? ORDER BY date DESC LIMIT 1`, date)
	if isNoRows(err) {
		return nil, apperr.NotFound("get previous daily goal", "no record before %s", date)
	}
	if err != nil {
		return nil, apperr.Storage("query previous daily goal", err)
	}
	return &r, nil
}

// ListGoalsBetween returns records with from <= date <= to, oldest first.
func (q *Queries) ListGoalsBetween(ctx context.Context, from, to string) ([]models.DailyGoalRecord, error) {
	var records []models.DailyGoalRecord
	err := q.selectAll(ctx, &records,
		`SELECT `+goalColumns+` FROM daily_goals WHERE date >= ? AND date <= ? ORDER BY date ASC`, from, to)
	if err != nil {
		return nil, apperr.Storage("query daily goals", err)
	}
	return records, nil
}

// RecentGoals returns up to limit records, newest first.
func (q *Queries) RecentGoals(ctx context.Context, limit int) ([]models.DailyGoalRecord, error) {
	var records []models.DailyGoalRecord
	err := q.selectAll(ctx, &records,
		`SELECT `+goalColumns+` FROM daily_goals ORDER BY date DESC LIMIT ?`, limit)
	if err != nil {
		return nil, apperr.Storage("query recent daily goals", err)
	}
	return records, nil
}

// UpsertDailyGoal writes the aggregate columns keyed by date. The urgency
// hour is owned by ClaimUrgencyHour and is never overwritten here.
func (q *Queries) UpsertDailyGoal(ctx context.Context, r *models.DailyGoalRecord) error {
	_, err := q.exec(ctx,
		`INSERT INTO daily_goals (date, target_points, earned_points, task_count, daily_debt, weekly_debt,
		   pressure_level, current_streak, longest_streak, last_goal_hit_date, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (date) DO UPDATE SET
		   target_points = excluded.target_points,
		   earned_points = excluded.earned_points,
		   task_count = excluded.task_count,
		   daily_debt = excluded.daily_debt,
		   weekly_debt = excluded.weekly_debt,
		   pressure_level = excluded.pressure_level,
		   current_streak = excluded.current_streak,
		   longest_streak = excluded.longest_streak,
		   last_goal_hit_date = excluded.last_goal_hit_date,
		   updated_at = excluded.updated_at`,
		r.Date, r.TargetPoints, r.EarnedPoints, r.TaskCount, r.DailyDebt, r.WeeklyDebt,
		r.PressureLevel, r.CurrentStreak, r.LongestStreak, r.LastGoalHitDate, r.UpdatedAt.UTC(),
	)
	if err != nil {
		return apperr.Storage("upsert daily goal", err)
	}
	return nil
}

// ClaimUrgencyHour sets last_urgency_hour to hour unless it already holds
// that value. It reports whether this caller made the change; only that
// caller may send the notification for the hour.
func (q *Queries) ClaimUrgencyHour(ctx context.Context, date string, hour int, at time.Time) (bool, error) {
	res, err := q.exec(ctx,
		`UPDATE daily_goals SET last_urgency_hour = ?, updated_at = ?
		 WHERE date = ? AND (last_urgency_hour IS NULL OR last_urgency_hour <> ?)`,
		hour, at.UTC(), date, hour,
	)
	if err != nil {
		return false, apperr.Storage("claim urgency hour", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Storage("claim urgency hour", err)
	}
	return n == 1, nil
}
