// Package controlplane provides the HTTP API and service layer for pacer.
package controlplane

import (
	"context"
	"time"

	"github.com/fentz26/pacer/internal/apperr"
	"github.com/fentz26/pacer/internal/audit"
	"github.com/fentz26/pacer/internal/clock"
	"github.com/fentz26/pacer/internal/decay"
	"github.com/fentz26/pacer/internal/goals"
	"github.com/fentz26/pacer/internal/models"
	"github.com/fentz26/pacer/internal/notify"
	"github.com/fentz26/pacer/internal/pace"
	"github.com/fentz26/pacer/internal/pipeline"
	"github.com/fentz26/pacer/internal/store"
)

// Options configures the engine components behind a Service.
type Options struct {
	Window      pace.Window
	DailyTarget int
	WorkDays    int
	Decay       decay.Thresholds
	Urgency     notify.Thresholds
	Relay       notify.Relay
}

// Service provides the caller-facing operations. It owns no rules of its
// own; every call is forwarded to the component that implements it.
type Service struct {
	store    *store.Store
	clock    clock.Clock
	zone     *clock.WorkZone
	events   *audit.EventLog
	pipeline *pipeline.Machine
	decay    *decay.Engine
	calc     *pace.Calculator
	tracker  *goals.Tracker
	notifier *notify.Notifier
}

// NewService wires the engine components together. Completions feed the
// day's goal record.
func NewService(s *store.Store, c clock.Clock, loc *time.Location, opts Options) *Service {
	if c == nil {
		c = clock.System{}
	}
	zone := clock.NewWorkZone(c, loc)
	events := audit.NewEventLog(c)
	calc := pace.NewCalculator(opts.Window, opts.DailyTarget, zone)
	tracker := goals.NewTracker(s, zone, calc, opts.WorkDays)

	svc := &Service{
		store:    s,
		clock:    c,
		zone:     zone,
		events:   events,
		pipeline: pipeline.New(s, events, c),
		decay:    decay.NewEngine(s, events, zone, opts.Decay),
		calc:     calc,
		tracker:  tracker,
		notifier: notify.NewNotifier(s, tracker, calc, zone, opts.Relay, opts.Urgency),
	}
	svc.pipeline.OnComplete(func(ctx context.Context, task *models.Task) error {
		_, err := tracker.UpdateDailyGoal(ctx, zone.DateKey(*task.CompletedAt))
		return err
	})
	return svc
}

// Health checks the database connection.
func (s *Service) Health(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Today returns today's work-timezone date key.
func (s *Service) Today() string { return s.zone.Today() }

// --- Task Operations ---

// CreateTask creates a task at the head of its status.
func (s *Service) CreateTask(ctx context.Context, in pipeline.NewTask, actor string) (*models.Task, error) {
	return s.pipeline.Create(ctx, in, actor)
}

// EditTask changes non-status fields of a task.
func (s *Service) EditTask(ctx context.Context, id string, e pipeline.Edit, actor string) (*models.Task, error) {
	return s.pipeline.Edit(ctx, id, e, actor)
}

// GetTask retrieves a task by ID.
func (s *Service) GetTask(ctx context.Context, id string) (*models.Task, error) {
	return s.store.GetTask(ctx, id)
}

// ListTasks returns tasks in display order, optionally filtered by status.
func (s *Service) ListTasks(ctx context.Context, status string) ([]models.Task, error) {
	if status != "" && !models.Status(status).Valid() {
		return nil, apperr.InvalidTransition("list tasks", "unknown status %q", status)
	}
	return s.store.ListTasks(ctx, models.Status(status))
}

// Transition moves a task to any status.
func (s *Service) Transition(ctx context.Context, id, status, actor string) (*models.Task, error) {
	return s.pipeline.Transition(ctx, id, models.Status(status), actor)
}

// Promote moves a task one step toward done.
func (s *Service) Promote(ctx context.Context, id, actor string) (*models.Task, error) {
	return s.pipeline.Promote(ctx, id, actor)
}

// Demote moves a task one step back toward backlog.
func (s *Service) Demote(ctx context.Context, id, actor string) (*models.Task, error) {
	return s.pipeline.Demote(ctx, id, actor)
}

// TaskEvents returns a task's event history, including after archival.
func (s *Service) TaskEvents(ctx context.Context, id string) ([]models.TaskEvent, error) {
	return s.events.History(ctx, s.store.Queries, id)
}

// --- Backlog Operations ---

// ComputeAging reports the age and tier of every backlog task.
func (s *Service) ComputeAging(ctx context.Context) (*decay.AgingReport, error) {
	return s.decay.ComputeAging(ctx)
}

// RunAutoDecay archives backlog tasks past the archive age.
func (s *Service) RunAutoDecay(ctx context.Context) (*decay.DecayResult, error) {
	return s.decay.RunAutoDecay(ctx)
}

// ArchiveTask moves a live task to the graveyard.
func (s *Service) ArchiveTask(ctx context.Context, id string, reason models.ArchiveReason) (*models.GraveyardEntry, error) {
	return s.decay.ArchiveTask(ctx, id, reason)
}

// ResurrectTask restores a graveyard entry to the backlog.
func (s *Service) ResurrectTask(ctx context.Context, graveyardID string) (*models.Task, error) {
	return s.decay.ResurrectTask(ctx, graveyardID)
}

// ListGraveyard returns archived tasks, newest first.
func (s *Service) ListGraveyard(ctx context.Context) ([]models.GraveyardEntry, error) {
	return s.decay.ListGraveyard(ctx)
}

// GroupedBacklog returns the backlog grouped by client, most neglected first.
func (s *Service) GroupedBacklog(ctx context.Context) ([]decay.ClientGroup, error) {
	return s.decay.GroupedBacklog(ctx)
}

// --- Pace & Goal Operations ---

// MomentumReport is today's momentum with the inputs it was computed from.
type MomentumReport struct {
	Date        string `json:"date"`
	DailyTarget int    `json:"daily_target"`
	TaskCount   int    `json:"task_count"`
	WorkDay     bool   `json:"work_day"`
	pace.Momentum
}

// CalculateMomentum evaluates today's pace. It reads but never writes.
func (s *Service) CalculateMomentum(ctx context.Context) (*MomentumReport, error) {
	date := s.zone.Today()
	earned, count, err := s.tracker.EarnedOn(ctx, date)
	if err != nil {
		return nil, err
	}
	return &MomentumReport{
		Date:        date,
		DailyTarget: s.calc.DailyTarget(),
		TaskCount:   count,
		WorkDay:     s.tracker.IsWorkDay(date),
		Momentum:    s.calc.Calculate(earned),
	}, nil
}

// UpdateDailyGoal recomputes the goal record for date, or today if empty.
func (s *Service) UpdateDailyGoal(ctx context.Context, date string) (*models.DailyGoalRecord, error) {
	if date == "" {
		date = s.zone.Today()
	}
	return s.tracker.UpdateDailyGoal(ctx, date)
}

// GoalHistory returns the most recent goal records, newest first.
func (s *Service) GoalHistory(ctx context.Context, days int) ([]models.DailyGoalRecord, error) {
	return s.tracker.History(ctx, days)
}

// Heatmap returns daily point totals for [from, to]. Empty bounds default to
// the 28 days ending today.
func (s *Service) Heatmap(ctx context.Context, from, to string) ([]goals.HeatmapDay, error) {
	if to == "" {
		to = s.zone.Today()
	}
	if from == "" {
		var err error
		if from, err = s.zone.AddDays(to, -27); err != nil {
			return nil, apperr.Invariant("heatmap", "%v", err)
		}
	}
	return s.tracker.Heatmap(ctx, from, to)
}

// CheckAndNotify runs the urgency check for hour, or the current hour if nil.
func (s *Service) CheckAndNotify(ctx context.Context, hour *int) (*notify.CheckResult, error) {
	if hour == nil {
		return s.notifier.CheckNow(ctx)
	}
	return s.notifier.CheckAndNotify(ctx, *hour)
}

// --- Client Operations ---

// ListClients returns all client memory rows.
func (s *Service) ListClients(ctx context.Context) ([]models.ClientMemory, error) {
	return s.store.ListClients(ctx)
}

// ClientProfile holds the user-editable client fields.
type ClientProfile struct {
	Tier       string `json:"tier"`
	Sentiment  string `json:"sentiment"`
	Importance int    `json:"importance"`
	Notes      string `json:"notes"`
}

// UpdateClient writes a client's profile, creating the client if needed.
func (s *Service) UpdateClient(ctx context.Context, name string, p ClientProfile) (*models.ClientMemory, error) {
	if name == "" {
		return nil, apperr.Invariant("update client", "client name is required")
	}
	err := s.store.UpsertClientProfile(ctx, &models.ClientMemory{
		Name:       name,
		Tier:       p.Tier,
		Sentiment:  p.Sentiment,
		Importance: p.Importance,
		Notes:      p.Notes,
	}, s.clock.Now())
	if err != nil {
		return nil, err
	}
	return s.store.GetClient(ctx, name)
}

// ResetAvoidance zeroes a client's avoidance score.
func (s *Service) ResetAvoidance(ctx context.Context, name string) (*models.ClientMemory, error) {
	if err := s.store.ResetAvoidance(ctx, name, s.clock.Now()); err != nil {
		return nil, err
	}
	return s.store.GetClient(ctx, name)
}
