package decay

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fentz26/pacer/internal/apperr"
	"github.com/fentz26/pacer/internal/audit"
	"github.com/fentz26/pacer/internal/clock"
	"github.com/fentz26/pacer/internal/models"
	"github.com/fentz26/pacer/internal/store"
)

var now = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

type fixture struct {
	st     *store.Store
	clock  *clock.Manual
	events *audit.EventLog
	engine *Engine
	ctx    context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	mc := clock.NewManual(now)
	events := audit.NewEventLog(mc)
	return &fixture{
		st:     st,
		clock:  mc,
		events: events,
		engine: NewEngine(st, events, clock.NewWorkZone(mc, time.UTC), DefaultThresholds()),
		ctx:    context.Background(),
	}
}

func (f *fixture) addTask(t *testing.T, title, client string, status models.Status, age time.Duration) *models.Task {
	t.Helper()
	created := now.Add(-age)
	task := &models.Task{
		ID:             uuid.New().String(),
		Title:          title,
		Description:    title + " details",
		Status:         status,
		EffortEstimate: 3,
		CreatedAt:      created,
		UpdatedAt:      created,
	}
	if client != "" {
		task.ClientName = &client
	}
	if status == models.StatusDone {
		at := now.Add(-time.Hour)
		task.CompletedAt = &at
	}
	require.NoError(t, f.st.InsertTask(f.ctx, task))
	return task
}

func TestTierFor(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		age  int
		want Tier
	}{
		{0, TierNormal},
		{6, TierNormal},
		{7, TierAging},
		{13, TierAging},
		{14, TierStale},
		{20, TierStale},
		{21, TierCritical},
		{400, TierCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, th.TierFor(tt.age), "age %d", tt.age)
	}
}

func TestTierMonotonic(t *testing.T) {
	th := Thresholds{AgingDays: 3, StaleDays: 10, CriticalDays: 30, ArchiveDays: 30}
	prev := TierNormal
	for age := 0; age <= 60; age++ {
		tier := th.TierFor(age)
		assert.GreaterOrEqual(t, tier, prev, "age %d", age)
		prev = tier
	}
	assert.Equal(t, TierCritical, prev)
}

func TestTierText(t *testing.T) {
	b, err := json.Marshal(map[Tier]int{TierStale: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"stale":2}`, string(b))

	var tier Tier
	require.NoError(t, tier.UnmarshalText([]byte("critical")))
	assert.Equal(t, TierCritical, tier)
	assert.Error(t, tier.UnmarshalText([]byte("ancient")))
}

func TestThresholdsValidate(t *testing.T) {
	assert.NoError(t, DefaultThresholds().Validate())
	assert.Error(t, Thresholds{AgingDays: 7, StaleDays: 7, CriticalDays: 21, ArchiveDays: 21}.Validate())
	assert.Error(t, Thresholds{AgingDays: 7, StaleDays: 14, CriticalDays: 10, ArchiveDays: 21}.Validate())
	assert.Error(t, Thresholds{AgingDays: 7, StaleDays: 14, CriticalDays: 21}.Validate())
}

func TestComputeAging(t *testing.T) {
	f := newFixture(t)
	fresh := f.addTask(t, "fresh", "", models.StatusBacklog, 2*day)
	old := f.addTask(t, "old", "acme", models.StatusBacklog, 15*day)
	f.addTask(t, "almost", "", models.StatusBacklog, 7*day-time.Minute)
	f.addTask(t, "queued", "", models.StatusQueued, 40*day)

	for i := 0; i < 2; i++ {
		_, err := f.events.Append(f.ctx, f.st.Queries, audit.Entry{TaskID: old.ID, Kind: models.EventDemoted})
		require.NoError(t, err)
	}

	report, err := f.engine.ComputeAging(f.ctx)
	require.NoError(t, err)
	require.Len(t, report.Tasks, 3)
	assert.Equal(t, 2, report.Counts[TierNormal])
	assert.Equal(t, 1, report.Counts[TierStale])
	assert.Equal(t, 0, report.Counts[TierCritical])
	assert.Equal(t, old.ID, report.OldestID)
	assert.Equal(t, 15, report.OldestDays)

	byID := make(map[string]AgedTask)
	for _, a := range report.Tasks {
		byID[a.Task.ID] = a
	}
	assert.Equal(t, 2, byID[old.ID].Deferrals)
	assert.Equal(t, TierStale, byID[old.ID].Tier)
	assert.Equal(t, 2, byID[fresh.ID].AgeDays)
	assert.Equal(t, 0, byID[fresh.ID].Deferrals)
}

func TestRunAutoDecay(t *testing.T) {
	f := newFixture(t)
	doomed := f.addTask(t, "doomed", "acme", models.StatusBacklog, 21*day)
	keep := f.addTask(t, "keep", "acme", models.StatusBacklog, 20*day)
	active := f.addTask(t, "active", "", models.StatusActive, 90*day)

	result, err := f.engine.RunAutoDecay(f.ctx)
	require.NoError(t, err)
	require.Len(t, result.Archived, 1)
	assert.Empty(t, result.Failed)

	entry := result.Archived[0]
	assert.Equal(t, doomed.ID, entry.OriginalTaskID)
	assert.Equal(t, models.ArchiveAutoDecay, entry.Reason)
	assert.Equal(t, 21, entry.AgeDays)

	_, err = f.st.GetTask(f.ctx, doomed.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	_, err = f.st.GetTask(f.ctx, keep.ID)
	assert.NoError(t, err)
	_, err = f.st.GetTask(f.ctx, active.ID)
	assert.NoError(t, err)

	evs, err := f.st.ListEvents(f.ctx, doomed.ID)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, models.EventArchived, evs[0].Kind)
	assert.Equal(t, "auto_decay", evs[0].Metadata["reason"])

	again, err := f.engine.RunAutoDecay(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, again.Archived)
}

func TestRunAutoDecayHonorsArchiveDays(t *testing.T) {
	f := newFixture(t)
	th := DefaultThresholds()
	th.ArchiveDays = 30
	engine := NewEngine(f.st, f.events, clock.NewWorkZone(f.clock, time.UTC), th)

	f.addTask(t, "critical but young", "", models.StatusBacklog, 25*day)
	old := f.addTask(t, "ancient", "", models.StatusBacklog, 31*day)

	result, err := engine.RunAutoDecay(f.ctx)
	require.NoError(t, err)
	require.Len(t, result.Archived, 1)
	assert.Equal(t, old.ID, result.Archived[0].OriginalTaskID)
}

func TestRunAutoDecayRefreshesStaleDays(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.st.TouchClient(f.ctx, "acme", "t1", now.Add(-5*day)))
	require.NoError(t, f.st.UpsertClientProfile(f.ctx, &models.ClientMemory{Name: "globex"}, now.Add(-2*day)))

	_, err := f.engine.RunAutoDecay(f.ctx)
	require.NoError(t, err)

	acme, err := f.st.GetClient(f.ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 5, acme.StaleDays)

	globex, err := f.st.GetClient(f.ctx, "globex")
	require.NoError(t, err)
	assert.Equal(t, 2, globex.StaleDays)
}

func TestArchiveResurrectRoundTrip(t *testing.T) {
	f := newFixture(t)
	task := f.addTask(t, "revive me", "acme", models.StatusBacklog, 3*day)
	f.addTask(t, "other", "", models.StatusBacklog, day)

	entry, err := f.engine.ArchiveTask(f.ctx, task.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.ArchiveManual, entry.Reason)

	graveyard, err := f.engine.ListGraveyard(f.ctx)
	require.NoError(t, err)
	require.Len(t, graveyard, 1)

	f.clock.Advance(time.Hour)
	revived, err := f.engine.ResurrectTask(f.ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, revived.ID)
	assert.Equal(t, task.Title, revived.Title)
	assert.Equal(t, task.Description, revived.Description)
	assert.Equal(t, "acme", revived.Client())
	assert.Equal(t, task.EffortEstimate, revived.EffortEstimate)
	assert.Equal(t, models.StatusBacklog, revived.Status)
	assert.True(t, revived.CreatedAt.Equal(f.clock.Now()))

	backlog, err := f.st.ListTasks(f.ctx, models.StatusBacklog)
	require.NoError(t, err)
	require.Len(t, backlog, 2)
	assert.Equal(t, task.ID, backlog[0].ID)

	graveyard, err = f.engine.ListGraveyard(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, graveyard)

	evs, err := f.st.ListEvents(f.ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, models.EventArchived, evs[0].Kind)
	assert.Equal(t, models.EventResurrected, evs[1].Kind)

	report, err := f.engine.ComputeAging(f.ctx)
	require.NoError(t, err)
	for _, a := range report.Tasks {
		if a.Task.ID == task.ID {
			assert.Equal(t, 0, a.AgeDays)
		}
	}
}

func TestArchiveResurrectKeepsPoints(t *testing.T) {
	f := newFixture(t)
	final, guess := 8, 5
	task := &models.Task{
		ID:             uuid.New().String(),
		Title:          "scored",
		Status:         models.StatusQueued,
		ValueTier:      "high",
		DrainType:      "deep",
		EffortEstimate: 1,
		PointsFinal:    &final,
		PointsAIGuess:  &guess,
		CreatedAt:      now.Add(-day),
		UpdatedAt:      now.Add(-day),
	}
	require.NoError(t, f.st.InsertTask(f.ctx, task))

	entry, err := f.engine.ArchiveTask(f.ctx, task.ID, models.ArchiveManual)
	require.NoError(t, err)

	stored, err := f.st.GetGraveyard(f.ctx, entry.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PointsFinal)
	assert.Equal(t, 8, *stored.PointsFinal)

	revived, err := f.engine.ResurrectTask(f.ctx, entry.ID)
	require.NoError(t, err)
	require.NotNil(t, revived.PointsFinal)
	require.NotNil(t, revived.PointsAIGuess)
	assert.Equal(t, 8, *revived.PointsFinal)
	assert.Equal(t, 5, *revived.PointsAIGuess)
	assert.Equal(t, "high", revived.ValueTier)
	assert.Equal(t, "deep", revived.DrainType)

	live, err := f.st.GetTask(f.ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, live.PointsFinal)
	assert.Equal(t, 8, *live.PointsFinal)
}

func TestArchiveRejectsUnknownReason(t *testing.T) {
	f := newFixture(t)
	task := f.addTask(t, "keep", "", models.StatusBacklog, day)

	_, err := f.engine.ArchiveTask(f.ctx, task.ID, "whatever")
	assert.True(t, errors.Is(err, apperr.ErrInvariantViolation))

	_, err = f.st.GetTask(f.ctx, task.ID)
	assert.NoError(t, err, "rejected archive must leave the task live")
	graveyard, err := f.engine.ListGraveyard(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, graveyard)
}

func TestArchiveErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.ArchiveTask(f.ctx, "missing", models.ArchiveManual)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, err = f.engine.ResurrectTask(f.ctx, "missing")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	task := f.addTask(t, "dup", "", models.StatusBacklog, day)
	entry, err := f.engine.ArchiveTask(f.ctx, task.ID, models.ArchiveManual)
	require.NoError(t, err)
	require.NoError(t, f.st.InsertTask(f.ctx, task))

	_, err = f.engine.ResurrectTask(f.ctx, entry.ID)
	assert.True(t, errors.Is(err, apperr.ErrInvariantViolation))

	_, err = f.st.GetGraveyard(f.ctx, entry.ID)
	assert.NoError(t, err, "failed resurrect must keep the graveyard entry")
}

func TestGroupedBacklog(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.st.TouchClient(f.ctx, "acme", "x", now.Add(-10*day)))
	require.NoError(t, f.st.SetStaleDays(f.ctx, "acme", 10, now))
	require.NoError(t, f.st.TouchClient(f.ctx, "globex", "y", now.Add(-3*day)))
	require.NoError(t, f.st.SetStaleDays(f.ctx, "globex", 3, now))
	require.NoError(t, f.st.TouchClient(f.ctx, "initech", "z", now.Add(-30*day)))
	require.NoError(t, f.st.SetStaleDays(f.ctx, "initech", 30, now))

	f.addTask(t, "a1", "acme", models.StatusBacklog, day)
	f.addTask(t, "g1", "globex", models.StatusBacklog, day)
	f.addTask(t, "i1", "initech", models.StatusBacklog, day)
	f.addTask(t, "loose", "", models.StatusBacklog, day)
	f.addTask(t, "a2", "acme", models.StatusBacklog, 2*day)
	// initech got work done today, so its group sinks to the bottom
	f.addTask(t, "i-done", "initech", models.StatusDone, day)

	groups, err := f.engine.GroupedBacklog(f.ctx)
	require.NoError(t, err)

	var names []string
	for _, g := range groups {
		names = append(names, g.Client)
	}
	assert.Equal(t, []string{"acme", "globex", "", "initech"}, names)
	assert.Len(t, groups[0].Tasks, 2)
	assert.Equal(t, 10, groups[0].StaleDays)
	assert.True(t, groups[3].TouchedToday)
	assert.False(t, groups[0].TouchedToday)
}
