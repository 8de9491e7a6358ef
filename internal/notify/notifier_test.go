package notify

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fentz26/pacer/internal/apperr"
	"github.com/fentz26/pacer/internal/clock"
	"github.com/fentz26/pacer/internal/goals"
	"github.com/fentz26/pacer/internal/models"
	"github.com/fentz26/pacer/internal/pace"
	"github.com/fentz26/pacer/internal/store"
)

type recordingRelay struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (r *recordingRelay) Name() string { return "recording" }

func (r *recordingRelay) Send(_ context.Context, m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, m)
	return r.err
}

func (r *recordingRelay) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type fixture struct {
	st       *store.Store
	clock    *clock.Manual
	relay    *recordingRelay
	notifier *Notifier
	ctx      context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	mc := clock.NewManual(time.Date(2026, 10, 15, 15, 0, 0, 0, time.UTC))
	zone := clock.NewWorkZone(mc, time.UTC)
	calc := pace.NewCalculator(pace.Window{StartHour: 9, EndHour: 18}, 18, zone)
	tracker := goals.NewTracker(st, zone, calc, 5)
	relay := &recordingRelay{}
	return &fixture{
		st:       st,
		clock:    mc,
		relay:    relay,
		notifier: NewNotifier(st, tracker, calc, zone, relay, DefaultThresholds()),
		ctx:      context.Background(),
	}
}

func (f *fixture) complete(t *testing.T, points int) {
	t.Helper()
	at := f.clock.Now().Add(-time.Minute)
	task := &models.Task{
		ID:          uuid.New().String(),
		Title:       "done",
		Status:      models.StatusDone,
		PointsFinal: &points,
		CreatedAt:   at,
		UpdatedAt:   at,
		CompletedAt: &at,
	}
	require.NoError(t, f.st.InsertTask(f.ctx, task))
}

func TestClassify(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		deficit int
		want    Tier
	}{
		{-4, TierNone},
		{2, TierNone},
		{3, TierWarning},
		{4, TierWarning},
		{5, TierUrgent},
		{7, TierUrgent},
		{8, TierCritical},
		{30, TierCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, th.Classify(tt.deficit), "deficit %d", tt.deficit)
	}
}

func TestPriorityFor(t *testing.T) {
	assert.Equal(t, 0, PriorityFor(TierNone, 5))
	assert.Equal(t, 3, PriorityFor(TierWarning, 0))
	assert.Equal(t, 4, PriorityFor(TierWarning, 4))
	assert.Equal(t, 4, PriorityFor(TierUrgent, 3))
	assert.Equal(t, 5, PriorityFor(TierUrgent, 4))
	assert.Equal(t, 5, PriorityFor(TierCritical, 5))
}

func TestBuildMessageIsDeterministic(t *testing.T) {
	hit := "2026-10-14"
	s := Snapshot{
		Tier:     TierUrgent,
		Hour:     14,
		Deficit:  6,
		Momentum: pace.Momentum{Earned: 4, Percent: 40, Status: pace.StatusStalled, ExpectedByNow: 10},
		Record: models.DailyGoalRecord{
			EarnedPoints: 4, DailyDebt: 14, WeeklyDebt: 20, PressureLevel: 3,
			LongestStreak: 6, LastGoalHitDate: &hit,
		},
	}
	m := BuildMessage(s)
	assert.Equal(t, m, BuildMessage(s))
	assert.Equal(t, "Behind pace: 6 points to catch up", m.Title)
	assert.Equal(t, 4, m.Priority)
	assert.Equal(t, []string{"pacer", "warning"}, m.Tags)
	assert.Contains(t, m.Body, "4 of 10 points expected by 14:00 (40%, stalled)")
	assert.Contains(t, m.Body, "Daily debt 14, weekly debt 20, pressure 3/5.")
	assert.Contains(t, m.Body, "Last goal hit 2026-10-14, best streak 6 days.")
}

func TestCheckAndNotifySendsOncePerHour(t *testing.T) {
	f := newFixture(t)

	first, err := f.notifier.CheckAndNotify(f.ctx, 15)
	require.NoError(t, err)
	assert.True(t, first.Sent)
	assert.Equal(t, TierCritical, first.Tier)
	assert.Equal(t, 12, first.Deficit)
	assert.Equal(t, 5, first.Priority)
	require.NotNil(t, first.Message)

	f.clock.Advance(20 * time.Minute)
	second, err := f.notifier.CheckAndNotify(f.ctx, 15)
	require.NoError(t, err)
	assert.False(t, second.Sent)
	assert.Contains(t, second.Reason, "already notified")
	assert.Equal(t, 1, f.relay.count())

	f.clock.Advance(time.Hour)
	third, err := f.notifier.CheckAndNotify(f.ctx, 16)
	require.NoError(t, err)
	assert.True(t, third.Sent)
	assert.Equal(t, 2, f.relay.count())

	r, err := f.st.GetDailyGoal(f.ctx, "2026-10-15")
	require.NoError(t, err)
	require.NotNil(t, r.LastUrgencyHour)
	assert.Equal(t, 16, *r.LastUrgencyHour)
}

func TestCheckAndNotifySkipsRestDays(t *testing.T) {
	f := newFixture(t)
	// Saturday morning with nothing earned
	f.clock.Set(time.Date(2026, 10, 17, 11, 0, 0, 0, time.UTC))

	res, err := f.notifier.CheckAndNotify(f.ctx, 11)
	require.NoError(t, err)
	assert.False(t, res.Sent)
	assert.Equal(t, TierNone, res.Tier)
	assert.Equal(t, "not a work day", res.Reason)
	assert.Equal(t, 0, f.relay.count())

	r, err := f.st.GetDailyGoal(f.ctx, "2026-10-17")
	require.NoError(t, err)
	assert.Equal(t, 0, r.TargetPoints)
	assert.Equal(t, 0, r.DailyDebt)
	assert.Equal(t, 0, r.PressureLevel)
	assert.Nil(t, r.LastUrgencyHour)

	// Monday notifies again
	f.clock.Set(time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC))
	res, err = f.notifier.CheckAndNotify(f.ctx, 15)
	require.NoError(t, err)
	assert.True(t, res.Sent)
	assert.Equal(t, 1, f.relay.count())
}

func TestCheckAndNotifyConcurrentCallsSendOnce(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.notifier.CheckAndNotify(f.ctx, 15)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.relay.count())
}

func TestCheckAndNotifyOnPace(t *testing.T) {
	f := newFixture(t)
	f.complete(t, 11)

	res, err := f.notifier.CheckAndNotify(f.ctx, 15)
	require.NoError(t, err)
	assert.False(t, res.Sent)
	assert.Equal(t, TierNone, res.Tier)
	assert.Equal(t, "on pace", res.Reason)
	assert.Equal(t, 0, f.relay.count())

	r, err := f.st.GetDailyGoal(f.ctx, "2026-10-15")
	require.NoError(t, err)
	assert.Nil(t, r.LastUrgencyHour)
	assert.Equal(t, 11, r.EarnedPoints)
}

func TestCheckAndNotifyRelayFailureKeepsClaim(t *testing.T) {
	f := newFixture(t)
	f.relay.err = apperr.Relay("send", errors.New("connection refused"))

	res, err := f.notifier.CheckAndNotify(f.ctx, 15)
	require.NoError(t, err)
	assert.False(t, res.Sent)
	assert.Equal(t, "relay failed", res.Reason)
	assert.Contains(t, res.Error, "connection refused")

	res, err = f.notifier.CheckAndNotify(f.ctx, 15)
	require.NoError(t, err)
	assert.False(t, res.Sent)
	assert.Equal(t, 1, f.relay.count())
}

func TestCheckAndNotifyRejectsBadHour(t *testing.T) {
	f := newFixture(t)
	_, err := f.notifier.CheckAndNotify(f.ctx, 24)
	assert.True(t, errors.Is(err, apperr.ErrInvariantViolation))
}

func TestCheckNowUsesWorkZoneHour(t *testing.T) {
	f := newFixture(t)
	res, err := f.notifier.CheckNow(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 15, res.Hour)
}
