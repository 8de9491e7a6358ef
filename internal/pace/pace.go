// Package pace computes momentum: points earned so far today against the
// points expected for the elapsed share of the work day.
package pace

import (
	"math"

	"github.com/fentz26/pacer/internal/clock"
	"github.com/fentz26/pacer/internal/models"
)

// Status buckets a momentum percentage.
type Status string

const (
	StatusCrushing Status = "crushing"
	StatusOnTrack  Status = "on_track"
	StatusBehind   Status = "behind"
	StatusStalled  Status = "stalled"
)

// StatusFor buckets percent using inclusive lower bounds, high to low.
func StatusFor(percent int) Status {
	switch {
	case percent >= 120:
		return StatusCrushing
	case percent >= 80:
		return StatusOnTrack
	case percent >= 50:
		return StatusBehind
	default:
		return StatusStalled
	}
}

// Momentum is the pace snapshot for one instant.
type Momentum struct {
	Earned        int     `json:"earned"`
	Percent       int     `json:"percent"`
	Status        Status  `json:"status"`
	ExpectedByNow int     `json:"expected_by_now"`
	DayProgress   float64 `json:"day_progress"`
}

// Window is the work day in fractional hours, e.g. 9 to 18.
type Window struct {
	StartHour float64
	EndHour   float64
}

// Progress returns clamp((hour-start)/(end-start), 0, 1).
func (w Window) Progress(hour float64) float64 {
	span := w.EndHour - w.StartHour
	if span <= 0 {
		return 0
	}
	p := (hour - w.StartHour) / span
	return math.Max(0, math.Min(1, p))
}

// Calculator evaluates momentum against a daily target.
type Calculator struct {
	window      Window
	dailyTarget int
	zone        *clock.WorkZone
}

// NewCalculator creates a Calculator. zone supplies "now" for Calculate.
func NewCalculator(window Window, dailyTarget int, zone *clock.WorkZone) *Calculator {
	return &Calculator{window: window, dailyTarget: dailyTarget, zone: zone}
}

// Window returns the configured work window.
func (c *Calculator) Window() Window { return c.window }

// DailyTarget returns the configured daily point target.
func (c *Calculator) DailyTarget() int { return c.dailyTarget }

// Calculate evaluates momentum at the current work-timezone time.
func (c *Calculator) Calculate(earnedToday int) Momentum {
	return c.At(earnedToday, c.zone.HourOfDay())
}

// ExpectedAt returns round(dailyTarget * progress(hour)).
func (c *Calculator) ExpectedAt(hour float64) int {
	return int(math.Round(float64(c.dailyTarget) * c.window.Progress(hour)))
}

// At evaluates momentum at a fractional hour of day. It has no side effects.
func (c *Calculator) At(earnedToday int, hour float64) Momentum {
	progress := c.window.Progress(hour)
	expected := c.ExpectedAt(hour)

	var percent int
	switch {
	case expected > 0:
		percent = int(math.Round(float64(earnedToday) / float64(expected) * 100))
	case earnedToday > 0:
		// nothing expected yet, anything earned counts as fully on pace
		percent = 100
	default:
		percent = 0
	}

	return Momentum{
		Earned:        earnedToday,
		Percent:       percent,
		Status:        StatusFor(percent),
		ExpectedByNow: expected,
		DayProgress:   progress,
	}
}

// SumPoints totals the point value of tasks.
func SumPoints(tasks []models.Task) int {
	total := 0
	for i := range tasks {
		t := &tasks[i]
		total += PointValue(t.PointsFinal, t.PointsAIGuess, t.EffortEstimate)
	}
	return total
}
