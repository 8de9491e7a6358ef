package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fentz26/pacer/internal/clock"
	"github.com/fentz26/pacer/internal/config"
	"github.com/fentz26/pacer/internal/controlplane"
	"github.com/fentz26/pacer/internal/notify"
	"github.com/fentz26/pacer/internal/scheduler"
)

func TestRegisterJobsRunsEngineOperations(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "pacer.db")

	st, err := openStore(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	mc := clock.NewManual(time.Date(2026, 10, 15, 20, 0, 0, 0, time.UTC))
	service := controlplane.NewService(st, mc, time.UTC, controlplane.Options{
		Window:      cfg.Window(),
		DailyTarget: cfg.Work.DailyTarget,
		WorkDays:    cfg.Work.WorkDays,
		Decay:       cfg.DecayThresholds(),
		Urgency:     cfg.UrgencyThresholds(),
		Relay:       notify.LogRelay{},
	})

	sched := scheduler.New(&scheduler.Config{Location: time.UTC, JobTimeout: time.Minute})
	require.NoError(t, registerJobs(sched, service, cfg.Schedule))
	assert.Len(t, sched.GetStats(), 3)

	out, err := sched.RunNow(scheduler.JobGoals)
	require.NoError(t, err)
	assert.Contains(t, out, "2026-10-15: 0/18 points")

	out, err = sched.RunNow(scheduler.JobDecay)
	require.NoError(t, err)
	assert.Equal(t, "archived 0, failed 0", out)

	out, err = sched.RunNow(scheduler.JobUrgency)
	require.NoError(t, err)
	assert.Equal(t, "sent critical nudge via log", out)
}

func TestRegisterJobsRejectsBadSpec(t *testing.T) {
	sched := scheduler.New(nil)
	err := registerJobs(sched, nil, config.ScheduleConfig{Decay: "not a spec"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decay")
}

func TestHeatBar(t *testing.T) {
	assert.Equal(t, "", heatBar(0, 10, 20))
	assert.Equal(t, "", heatBar(5, 0, 20))
	assert.Equal(t, 20, len([]rune(heatBar(10, 10, 20))))
	assert.Equal(t, 1, len([]rune(heatBar(1, 100, 20))))
}
