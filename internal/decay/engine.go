package decay

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/fentz26/pacer/internal/apperr"
	"github.com/fentz26/pacer/internal/audit"
	"github.com/fentz26/pacer/internal/clock"
	"github.com/fentz26/pacer/internal/models"
	"github.com/fentz26/pacer/internal/store"
)

// Engine computes backlog aging and moves tasks to and from the graveyard.
type Engine struct {
	store      *store.Store
	events     *audit.EventLog
	zone       *clock.WorkZone
	thresholds Thresholds
}

// NewEngine creates a decay engine.
func NewEngine(st *store.Store, events *audit.EventLog, zone *clock.WorkZone, th Thresholds) *Engine {
	return &Engine{store: st, events: events, zone: zone, thresholds: th}
}

// Thresholds returns the configured tier thresholds.
func (e *Engine) Thresholds() Thresholds { return e.thresholds }

// AgedTask is a backlog task with its computed age.
type AgedTask struct {
	Task      models.Task `json:"task"`
	AgeDays   int         `json:"age_days"`
	Tier      Tier        `json:"tier"`
	Deferrals int         `json:"deferrals"`
}

// AgingReport describes the whole backlog at one instant.
type AgingReport struct {
	GeneratedAt time.Time    `json:"generated_at"`
	Tasks       []AgedTask   `json:"tasks"`
	Counts      map[Tier]int `json:"counts"`
	OldestID    string       `json:"oldest_id,omitempty"`
	OldestDays  int          `json:"oldest_days"`
}

// ComputeAging ages every backlog task against now.
func (e *Engine) ComputeAging(ctx context.Context) (*AgingReport, error) {
	now := e.zone.Now()
	tasks, err := e.store.ListTasks(ctx, models.StatusBacklog)
	if err != nil {
		return nil, err
	}
	deferrals, err := e.events.DeferralCounts(ctx, e.store.Queries)
	if err != nil {
		return nil, err
	}

	report := &AgingReport{
		GeneratedAt: now.UTC(),
		Tasks:       make([]AgedTask, 0, len(tasks)),
		Counts:      map[Tier]int{TierNormal: 0, TierAging: 0, TierStale: 0, TierCritical: 0},
	}
	for _, t := range tasks {
		age := clock.WholeDaysBetween(t.CreatedAt, now)
		tier := e.thresholds.TierFor(age)
		report.Tasks = append(report.Tasks, AgedTask{
			Task:      t,
			AgeDays:   age,
			Tier:      tier,
			Deferrals: deferrals[t.ID],
		})
		report.Counts[tier]++
		if report.OldestID == "" || age > report.OldestDays {
			report.OldestID = t.ID
			report.OldestDays = age
		}
	}
	return report, nil
}

// FailedArchive is a task the sweep could not archive.
type FailedArchive struct {
	TaskID string `json:"task_id"`
	Error  string `json:"error"`
}

// DecayResult summarizes one RunAutoDecay sweep.
type DecayResult struct {
	Archived []models.GraveyardEntry `json:"archived"`
	Failed   []FailedArchive         `json:"failed,omitempty"`
}

// RunAutoDecay archives every backlog task at or past the archive age, then
// refreshes client stale-day counters. A task that fails to archive is left
// live for the next sweep.
func (e *Engine) RunAutoDecay(ctx context.Context) (*DecayResult, error) {
	report, err := e.ComputeAging(ctx)
	if err != nil {
		return nil, err
	}

	result := &DecayResult{Archived: []models.GraveyardEntry{}}
	for _, aged := range report.Tasks {
		if aged.AgeDays < e.thresholds.ArchiveDays {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		entry, err := e.ArchiveTask(ctx, aged.Task.ID, models.ArchiveAutoDecay)
		if err != nil {
			log.Printf("[decay] archive task %s failed: %v", aged.Task.ID, err)
			result.Failed = append(result.Failed, FailedArchive{TaskID: aged.Task.ID, Error: err.Error()})
			continue
		}
		result.Archived = append(result.Archived, *entry)
	}
	if len(result.Archived) > 0 {
		log.Printf("[decay] archived %d task(s)", len(result.Archived))
	}

	if err := e.RefreshStaleDays(ctx); err != nil {
		log.Printf("[decay] refresh stale days failed: %v", err)
	}
	return result, nil
}

// RefreshStaleDays recomputes each client's whole days since last touched.
func (e *Engine) RefreshStaleDays(ctx context.Context) error {
	now := e.zone.Now()
	clients, err := e.store.ListClients(ctx)
	if err != nil {
		return err
	}
	for _, c := range clients {
		since := c.CreatedAt
		if c.LastTouchedAt != nil {
			since = *c.LastTouchedAt
		}
		days := clock.WholeDaysBetween(since, now)
		if days == c.StaleDays {
			continue
		}
		if err := e.store.SetStaleDays(ctx, c.Name, days, now); err != nil {
			return fmt.Errorf("client %q: %w", c.Name, err)
		}
	}
	return nil
}

// ArchiveTask moves a live task to the graveyard. The event, the snapshot
// and the delete commit together or not at all. An empty reason means manual.
func (e *Engine) ArchiveTask(ctx context.Context, id string, reason models.ArchiveReason) (*models.GraveyardEntry, error) {
	if reason == "" {
		reason = models.ArchiveManual
	}
	if !reason.Valid() {
		return nil, apperr.Invariant("archive task", "unknown archive reason %q", reason)
	}
	now := e.zone.Now().UTC()

	var entry *models.GraveyardEntry
	err := e.store.InTx(ctx, func(q *store.Queries) error {
		task, err := q.GetTask(ctx, id)
		if err != nil {
			return err
		}
		age := clock.WholeDaysBetween(task.CreatedAt, now)

		if _, err := e.events.Append(ctx, q, audit.Entry{
			TaskID:   task.ID,
			Kind:     models.EventArchived,
			From:     task.Status,
			Actor:    "decay",
			Metadata: map[string]any{"reason": string(reason), "age_days": age},
		}); err != nil {
			return err
		}

		entry = &models.GraveyardEntry{
			ID:             uuid.New().String(),
			OriginalTaskID: task.ID,
			Title:          task.Title,
			Description:    task.Description,
			ClientName:     task.ClientName,
			ValueTier:      task.ValueTier,
			DrainType:      task.DrainType,
			EffortEstimate: task.EffortEstimate,
			PointsFinal:    task.PointsFinal,
			PointsAIGuess:  task.PointsAIGuess,
			AgeDays:        age,
			Reason:         reason,
			ArchivedAt:     now,
		}
		if err := q.InsertGraveyard(ctx, entry); err != nil {
			return err
		}
		return q.DeleteTask(ctx, task.ID)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ResurrectTask restores a graveyard entry as a fresh backlog task under
// its original id.
func (e *Engine) ResurrectTask(ctx context.Context, graveyardID string) (*models.Task, error) {
	const op = "resurrect task"
	now := e.zone.Now().UTC()

	var task *models.Task
	err := e.store.InTx(ctx, func(q *store.Queries) error {
		entry, err := q.GetGraveyard(ctx, graveyardID)
		if err != nil {
			return err
		}
		if _, err := q.GetTask(ctx, entry.OriginalTaskID); err == nil {
			return apperr.Invariant(op, "task %s is already live", entry.OriginalTaskID)
		} else if apperr.KindOf(err) != apperr.KindNotFound {
			return err
		}

		head, err := q.HeadSortOrder(ctx, models.StatusBacklog)
		if err != nil {
			return err
		}
		task = &models.Task{
			ID:             entry.OriginalTaskID,
			ClientName:     entry.ClientName,
			Title:          entry.Title,
			Description:    entry.Description,
			Status:         models.StatusBacklog,
			ValueTier:      entry.ValueTier,
			DrainType:      entry.DrainType,
			EffortEstimate: entry.EffortEstimate,
			PointsFinal:    entry.PointsFinal,
			PointsAIGuess:  entry.PointsAIGuess,
			SortOrder:      head,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := q.InsertTask(ctx, task); err != nil {
			return err
		}
		if err := q.DeleteGraveyard(ctx, entry.ID); err != nil {
			return err
		}
		_, err = e.events.Append(ctx, q, audit.Entry{
			TaskID:   task.ID,
			Kind:     models.EventResurrected,
			To:       models.StatusBacklog,
			Actor:    "user",
			Metadata: map[string]any{"graveyard_id": entry.ID},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ListGraveyard returns archived tasks, newest first.
func (e *Engine) ListGraveyard(ctx context.Context) ([]models.GraveyardEntry, error) {
	return e.store.ListGraveyard(ctx)
}

// ClientGroup is the backlog of one client.
type ClientGroup struct {
	Client       string        `json:"client"`
	StaleDays    int           `json:"stale_days"`
	TouchedToday bool          `json:"touched_today"`
	Tasks        []models.Task `json:"tasks"`
}

// GroupedBacklog groups backlog tasks by client. Groups nobody touched today
// come first, most neglected first; ties sort by name.
func (e *Engine) GroupedBacklog(ctx context.Context) ([]ClientGroup, error) {
	tasks, err := e.store.ListTasks(ctx, models.StatusBacklog)
	if err != nil {
		return nil, err
	}
	clients, err := e.store.ListClients(ctx)
	if err != nil {
		return nil, err
	}
	start, end, err := e.zone.DayBounds(e.zone.Today())
	if err != nil {
		return nil, err
	}
	doneToday, err := e.store.ListCompletedBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}

	stale := make(map[string]int, len(clients))
	for _, c := range clients {
		stale[c.Name] = c.StaleDays
	}
	touched := make(map[string]bool)
	for _, t := range doneToday {
		touched[t.Client()] = true
	}

	index := make(map[string]int)
	var groups []ClientGroup
	for _, t := range tasks {
		name := t.Client()
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, ClientGroup{
				Client:       name,
				StaleDays:    stale[name],
				TouchedToday: touched[name],
			})
		}
		groups[i].Tasks = append(groups[i].Tasks, t)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if a.TouchedToday != b.TouchedToday {
			return !a.TouchedToday
		}
		if a.StaleDays != b.StaleDays {
			return a.StaleDays > b.StaleDays
		}
		return a.Client < b.Client
	})
	return groups, nil
}
