// Package goals maintains the per-day goal records: earned points, debts,
// pressure and streaks.
package goals

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/fentz26/pacer/internal/apperr"
	"github.com/fentz26/pacer/internal/clock"
	"github.com/fentz26/pacer/internal/models"
	"github.com/fentz26/pacer/internal/pace"
	"github.com/fentz26/pacer/internal/store"
)

// DefaultWorkDays is the number of work days in a week, counted from Monday.
const DefaultWorkDays = clock.DefaultWorkDays

// Tracker recomputes DailyGoalRecords from completed tasks.
type Tracker struct {
	store    *store.Store
	zone     *clock.WorkZone
	calc     *pace.Calculator
	workDays int
}

// NewTracker creates a Tracker. workDays <= 0 means DefaultWorkDays.
func NewTracker(st *store.Store, zone *clock.WorkZone, calc *pace.Calculator, workDays int) *Tracker {
	if workDays <= 0 {
		workDays = DefaultWorkDays
	}
	return &Tracker{store: st, zone: zone, calc: calc, workDays: workDays}
}

// Today returns today's date key in the work timezone.
func (t *Tracker) Today() string { return t.zone.Today() }

// IsWorkDay reports whether date is one of the configured work days. Invalid
// dates are not work days.
func (t *Tracker) IsWorkDay(date string) bool {
	ok, err := t.zone.IsWorkDay(date, t.workDays)
	return err == nil && ok
}

// UpdateDailyGoal recomputes and upserts the record for date. It is
// idempotent: streaks derive from the previous day's record, never from the
// record being rewritten. Rest days get a zero target and carry the streak
// forward; weekly debt only sums work days.
func (t *Tracker) UpdateDailyGoal(ctx context.Context, date string) (*models.DailyGoalRecord, error) {
	const op = "update daily goal"
	start, end, err := t.zone.DayBounds(date)
	if err != nil {
		return nil, apperr.Invariant(op, "%v", err)
	}
	weekStart, _ := t.zone.WeekStart(date)
	yesterday, _ := t.zone.AddDays(date, -1)
	prevWorkDay, _ := t.zone.PrevWorkDay(date, t.workDays)
	workDay := t.IsWorkDay(date)
	target := 0
	if workDay {
		target = t.calc.DailyTarget()
	}
	hour := t.hourFor(date)

	var record *models.DailyGoalRecord
	err = t.store.InTx(ctx, func(q *store.Queries) error {
		done, err := q.ListCompletedBetween(ctx, start, end)
		if err != nil {
			return err
		}
		prev, err := optional(q.LatestGoalBefore(ctx, date))
		if err != nil {
			return err
		}
		existing, err := optional(q.GetDailyGoal(ctx, date))
		if err != nil {
			return err
		}
		week, err := q.ListGoalsBetween(ctx, weekStart, yesterday)
		if err != nil {
			return err
		}

		r := &models.DailyGoalRecord{
			Date:         date,
			TargetPoints: target,
			EarnedPoints: pace.SumPoints(done),
			TaskCount:    len(done),
			UpdatedAt:    t.zone.Now().UTC(),
		}
		r.DailyDebt = max(0, target-r.EarnedPoints)
		r.WeeklyDebt = CalculateWeeklyDebt(append(t.workDaysOnly(week), *r))
		if workDay {
			r.PressureLevel = t.CalculatePressureLevel(r.EarnedPoints, r.DailyDebt, r.WeeklyDebt, hour)
		}
		applyStreak(r, prev, existing, prevWorkDay, workDay)

		if err := q.UpsertDailyGoal(ctx, r); err != nil {
			return err
		}
		record, err = q.GetDailyGoal(ctx, date)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// workDaysOnly drops records for rest days, including ones written before
// the work week was configured.
func (t *Tracker) workDaysOnly(records []models.DailyGoalRecord) []models.DailyGoalRecord {
	out := make([]models.DailyGoalRecord, 0, len(records))
	for _, r := range records {
		if t.IsWorkDay(r.Date) {
			out = append(out, r)
		}
	}
	return out
}

// applyStreak fills the streak columns of r from the latest earlier record.
// A streak continues when the previous work day was a hit. Rest days keep
// the streak as it stood after that work day.
func applyStreak(r, prev, existing *models.DailyGoalRecord, prevWorkDay string, workDay bool) {
	longest := 0
	if prev != nil {
		longest = prev.LongestStreak
		r.LastGoalHitDate = prev.LastGoalHitDate
	}
	if existing != nil && existing.LongestStreak > longest {
		longest = existing.LongestStreak
	}

	continues := prev != nil && prev.LastGoalHitDate != nil && *prev.LastGoalHitDate == prevWorkDay
	switch {
	case !workDay:
		r.CurrentStreak = 0
		if continues {
			r.CurrentStreak = prev.CurrentStreak
		}
	case !r.HitGoal():
		r.CurrentStreak = 0
	case continues:
		r.CurrentStreak = prev.CurrentStreak + 1
	default:
		r.CurrentStreak = 1
	}
	if r.HitGoal() {
		date := r.Date
		r.LastGoalHitDate = &date
	}
	r.LongestStreak = max(longest, r.CurrentStreak)
}

// hourFor returns the hour of day pressure is evaluated at. Past days are
// treated as finished, future days as not yet started.
func (t *Tracker) hourFor(date string) float64 {
	today := t.zone.Today()
	w := t.calc.Window()
	switch {
	case date < today:
		return w.EndHour
	case date > today:
		return w.StartHour
	default:
		return t.zone.HourOfDay()
	}
}

// EarnedOn returns the points and task count completed on date, without
// writing anything.
func (t *Tracker) EarnedOn(ctx context.Context, date string) (int, int, error) {
	start, end, err := t.zone.DayBounds(date)
	if err != nil {
		return 0, 0, apperr.Invariant("earned points", "%v", err)
	}
	done, err := t.store.ListCompletedBetween(ctx, start, end)
	if err != nil {
		return 0, 0, err
	}
	return pace.SumPoints(done), len(done), nil
}

// CalculateWeeklyDebt sums each day's shortfall; surplus days do not offset
// other days.
func CalculateWeeklyDebt(records []models.DailyGoalRecord) int {
	debt := 0
	for _, r := range records {
		debt += max(0, r.TargetPoints-r.EarnedPoints)
	}
	return debt
}

// CalculatePressureLevel returns a 0-5 level that never decreases as either
// debt or the hour grows.
func (t *Tracker) CalculatePressureLevel(earned, dailyDebt, weeklyDebt int, hour float64) int {
	return PressureLevel(t.calc.DailyTarget(), t.workDays, earned, dailyDebt, weeklyDebt, t.calc.Window().Progress(hour))
}

// PressureLevel scores debt against the target. lateness is the elapsed
// share of the work day in [0, 1].
func PressureLevel(target, workDays, earned, dailyDebt, weeklyDebt int, lateness float64) int {
	if target <= 0 {
		return 0
	}
	if workDays <= 0 {
		workDays = DefaultWorkDays
	}
	daily := math.Min(1, float64(dailyDebt)/float64(target))
	weekly := math.Min(1, float64(weeklyDebt)/float64(target*workDays))

	score := 2.5*daily + 1.5*weekly + 1.0*lateness*daily
	if earned == 0 && lateness > 0 {
		score += 0.5
	}
	level := int(math.Round(score))
	return max(0, min(5, level))
}

// History returns the last days records, newest first.
func (t *Tracker) History(ctx context.Context, days int) ([]models.DailyGoalRecord, error) {
	if days <= 0 {
		days = 7
	}
	return t.store.RecentGoals(ctx, days)
}

// HeatmapDay is the point total for one work-timezone day.
type HeatmapDay struct {
	Date   string `json:"date"`
	Points int    `json:"points"`
	Tasks  int    `json:"tasks"`
}

// Heatmap returns one entry per day in [from, to], including empty days.
func (t *Tracker) Heatmap(ctx context.Context, from, to string) ([]HeatmapDay, error) {
	const op = "heatmap"
	start, _, err := t.zone.DayBounds(from)
	if err != nil {
		return nil, apperr.Invariant(op, "%v", err)
	}
	_, end, err := t.zone.DayBounds(to)
	if err != nil {
		return nil, apperr.Invariant(op, "%v", err)
	}
	if !end.After(start) {
		return nil, apperr.Invariant(op, "range %s..%s is empty", from, to)
	}
	if end.Sub(start) > 366*24*time.Hour+time.Hour {
		return nil, apperr.Invariant(op, "range %s..%s exceeds one year", from, to)
	}

	done, err := t.store.ListCompletedBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int)
	var days []HeatmapDay
	for d := from; d <= to; d, _ = t.zone.AddDays(d, 1) {
		index[d] = len(days)
		days = append(days, HeatmapDay{Date: d})
	}
	for i := range done {
		task := &done[i]
		if task.CompletedAt == nil {
			continue
		}
		if j, ok := index[t.zone.DateKey(*task.CompletedAt)]; ok {
			days[j].Points += pace.PointValue(task.PointsFinal, task.PointsAIGuess, task.EffortEstimate)
			days[j].Tasks++
		}
	}
	return days, nil
}

// optional turns a NotFound lookup into a nil result.
func optional(r *models.DailyGoalRecord, err error) (*models.DailyGoalRecord, error) {
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	return r, err
}
