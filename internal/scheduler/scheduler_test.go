package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRejectsBadSpec(t *testing.T) {
	sch := New(nil)
	err := sch.Register(JobDecay, "not a cron spec", func(context.Context) (string, error) { return "", nil })
	assert.Error(t, err)
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	sch := New(nil)
	noop := func(context.Context) (string, error) { return "", nil }
	require.NoError(t, sch.Register(JobGoals, "@every 1h", noop))
	assert.Error(t, sch.Register(JobGoals, "@hourly", noop))
}

func TestRunNowRecordsStats(t *testing.T) {
	sch := New(&Config{Location: time.UTC, JobTimeout: time.Second})
	calls := 0
	require.NoError(t, sch.Register(JobUrgency, "0 * * * *", func(ctx context.Context) (string, error) {
		calls++
		if calls == 2 {
			return "", errors.New("relay down")
		}
		return "sent", nil
	}))
	require.NoError(t, sch.Register(JobDecay, "", func(context.Context) (string, error) {
		return "archived 0", nil
	}))

	out, err := sch.RunNow(JobUrgency)
	require.NoError(t, err)
	assert.Equal(t, "sent", out)

	_, err = sch.RunNow(JobUrgency)
	assert.Error(t, err)

	_, err = sch.RunNow("missing")
	assert.Error(t, err)

	stats := sch.GetStats()
	require.Len(t, stats, 2)
	assert.Equal(t, JobDecay, stats[0].Name)
	assert.True(t, stats[0].NextRun.IsZero(), "unscheduled job has no next run")

	urgency := stats[1]
	assert.Equal(t, 2, urgency.Runs)
	assert.Equal(t, 1, urgency.Failures)
	assert.Equal(t, "relay down", urgency.LastError)
	assert.Equal(t, "0 * * * *", urgency.Spec)
}

func TestNextRunUsesLocation(t *testing.T) {
	loc := time.FixedZone("+05:00", 5*3600)
	sch := New(&Config{Location: loc, JobTimeout: time.Second})
	require.NoError(t, sch.Register(JobDecay, "30 3 * * *", func(context.Context) (string, error) { return "", nil }))

	sch.Start()
	defer sch.Stop()

	next := sch.GetStats()[0].NextRun
	require.False(t, next.IsZero())
	local := next.In(loc)
	assert.Equal(t, 3, local.Hour())
	assert.Equal(t, 30, local.Minute())
}

func TestJobsDoNotOverlap(t *testing.T) {
	sch := New(&Config{Location: time.UTC, JobTimeout: 5 * time.Second})
	release := make(chan struct{})
	started := make(chan struct{})
	var runs int32
	require.NoError(t, sch.Register(JobGoals, "", func(ctx context.Context) (string, error) {
		if atomic.AddInt32(&runs, 1) == 1 {
			close(started)
		}
		<-release
		return "", nil
	}))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = sch.RunNow(JobGoals)
	}()
	<-started

	_, err := sch.RunNow(JobGoals)
	assert.ErrorIs(t, err, errBusy)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
}

func TestStopCancelsJobContext(t *testing.T) {
	sch := New(&Config{Location: time.UTC, JobTimeout: time.Minute})
	started := make(chan struct{})
	done := make(chan error, 1)
	require.NoError(t, sch.Register(JobDecay, "", func(ctx context.Context) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	}))

	go func() {
		_, err := sch.RunNow(JobDecay)
		done <- err
	}()
	<-started
	sch.Stop()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("job did not observe cancellation")
	}
}
