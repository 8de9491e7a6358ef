// Package models defines the core domain types for pacer.
package models

import "time"

// Status is a pipeline position. The zero value is not a valid status.
type Status string

const (
	StatusBacklog Status = "backlog"
	StatusQueued  Status = "queued"
	StatusActive  Status = "active"
	StatusDone    Status = "done"
)

// Statuses lists the pipeline in order.
var Statuses = []Status{StatusBacklog, StatusQueued, StatusActive, StatusDone}

// ParseStatus validates s against the four-value enum.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusBacklog, StatusQueued, StatusActive, StatusDone:
		return Status(s), true
	}
	return "", false
}

// Valid reports whether s is one of the four pipeline statuses.
func (s Status) Valid() bool {
	_, ok := ParseStatus(string(s))
	return ok
}

// Rank gives the total order backlog < queued < active < done.
// Invalid statuses rank -1.
func (s Status) Rank() int {
	switch s {
	case StatusBacklog:
		return 0
	case StatusQueued:
		return 1
	case StatusActive:
		return 2
	case StatusDone:
		return 3
	}
	return -1
}

// Prev is the demotion target. Backlog and done have none.
func (s Status) Prev() (Status, bool) {
	switch s {
	case StatusQueued:
		return StatusBacklog, true
	case StatusActive:
		return StatusQueued, true
	}
	return s, false
}

// Next is the promotion target. Done has none.
func (s Status) Next() (Status, bool) {
	switch s {
	case StatusBacklog:
		return StatusQueued, true
	case StatusQueued:
		return StatusActive, true
	case StatusActive:
		return StatusDone, true
	}
	return s, false
}

// Task is a unit of work tracked through the pipeline.
type Task struct {
	ID             string     `json:"id" db:"id"`
	ClientName     *string    `json:"client_name,omitempty" db:"client_name"`
	Title          string     `json:"title" db:"title"`
	Description    string     `json:"description" db:"description"`
	Status         Status     `json:"status" db:"status"`
	ValueTier      string     `json:"value_tier,omitempty" db:"value_tier"`
	DrainType      string     `json:"drain_type,omitempty" db:"drain_type"`
	EffortEstimate int        `json:"effort_estimate" db:"effort_estimate"`
	PointsFinal    *int       `json:"points_final,omitempty" db:"points_final"`
	PointsAIGuess  *int       `json:"points_ai_guess,omitempty" db:"points_ai_guess"`
	SortOrder      int        `json:"sort_order" db:"sort_order"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// Client returns the client name or "" when unset.
func (t *Task) Client() string {
	if t.ClientName == nil {
		return ""
	}
	return *t.ClientName
}

// EventKind names a lifecycle event.
type EventKind string

const (
	EventCreated     EventKind = "created"
	EventPromoted    EventKind = "promoted"
	EventDemoted     EventKind = "demoted"
	EventCompleted   EventKind = "completed"
	EventEdited      EventKind = "edited"
	EventArchived    EventKind = "archived"
	EventResurrected EventKind = "resurrected"
)

// TaskEvent is an immutable audit record. It outlives its task.
type TaskEvent struct {
	ID         string         `json:"id"`
	TaskID     string         `json:"task_id"`
	Kind       EventKind      `json:"kind"`
	FromStatus Status         `json:"from_status,omitempty"`
	ToStatus   Status         `json:"to_status,omitempty"`
	Actor      string         `json:"actor,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ArchiveReason records why a task went to the graveyard.
type ArchiveReason string

const (
	ArchiveAutoDecay ArchiveReason = "auto_decay"
	ArchiveManual    ArchiveReason = "manual"
)

// Valid reports whether r is one of the known archive reasons.
func (r ArchiveReason) Valid() bool {
	return r == ArchiveAutoDecay || r == ArchiveManual
}

// GraveyardEntry is a snapshot of an archived task. It keeps everything a
// resurrected task needs to score the same points.
type GraveyardEntry struct {
	ID             string        `json:"id" db:"id"`
	OriginalTaskID string        `json:"original_task_id" db:"original_task_id"`
	Title          string        `json:"title" db:"title"`
	Description    string        `json:"description" db:"description"`
	ClientName     *string       `json:"client_name,omitempty" db:"client_name"`
	ValueTier      string        `json:"value_tier,omitempty" db:"value_tier"`
	DrainType      string        `json:"drain_type,omitempty" db:"drain_type"`
	EffortEstimate int           `json:"effort_estimate" db:"effort_estimate"`
	PointsFinal    *int          `json:"points_final,omitempty" db:"points_final"`
	PointsAIGuess  *int          `json:"points_ai_guess,omitempty" db:"points_ai_guess"`
	AgeDays        int           `json:"age_days" db:"age_days"`
	Reason         ArchiveReason `json:"reason" db:"reason"`
	ArchivedAt     time.Time     `json:"archived_at" db:"archived_at"`
}

// ClientMemory is per-client behavioral state, keyed by name.
type ClientMemory struct {
	Name            string     `json:"name" db:"name"`
	Tier            string     `json:"tier" db:"tier"`
	Sentiment       string     `json:"sentiment" db:"sentiment"`
	Importance      int        `json:"importance" db:"importance"`
	Notes           string     `json:"notes" db:"notes"`
	AvoidanceScore  int        `json:"avoidance_score" db:"avoidance_score"`
	StaleDays       int        `json:"stale_days" db:"stale_days"`
	LastTouchedTask *string    `json:"last_touched_task,omitempty" db:"last_touched_task"`
	LastTouchedAt   *time.Time `json:"last_touched_at,omitempty" db:"last_touched_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// DailyGoalRecord is the per-day pacing aggregate, keyed by work-timezone date.
type DailyGoalRecord struct {
	Date            string    `json:"date" db:"date"`
	TargetPoints    int       `json:"target_points" db:"target_points"`
	EarnedPoints    int       `json:"earned_points" db:"earned_points"`
	TaskCount       int       `json:"task_count" db:"task_count"`
	DailyDebt       int       `json:"daily_debt" db:"daily_debt"`
	WeeklyDebt      int       `json:"weekly_debt" db:"weekly_debt"`
	PressureLevel   int       `json:"pressure_level" db:"pressure_level"`
	CurrentStreak   int       `json:"current_streak" db:"current_streak"`
	LongestStreak   int       `json:"longest_streak" db:"longest_streak"`
	LastGoalHitDate *string   `json:"last_goal_hit_date,omitempty" db:"last_goal_hit_date"`
	LastUrgencyHour *int      `json:"last_urgency_hour,omitempty" db:"last_urgency_hour"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// HitGoal reports whether earned points reached the target. Rest days have
// no target and are never hits.
func (r *DailyGoalRecord) HitGoal() bool {
	return r.TargetPoints > 0 && r.EarnedPoints >= r.TargetPoints
}
