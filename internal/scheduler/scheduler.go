package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job names used by the daemon.
const (
	JobDecay   = "decay"
	JobUrgency = "urgency"
	JobGoals   = "goals"
)

// JobFunc runs one job and returns a short summary for the log.
type JobFunc func(ctx context.Context) (string, error)

// JobStats describes a registered job.
type JobStats struct {
	Name       string    `json:"name"`
	Spec       string    `json:"spec"`
	Runs       int       `json:"runs"`
	Failures   int       `json:"failures"`
	LastRun    time.Time `json:"last_run"`
	LastResult string    `json:"last_result,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
	NextRun    time.Time `json:"next_run"`
}

type job struct {
	name    string
	spec    string
	fn      JobFunc
	entryID cron.EntryID
	stats   JobStats
	running sync.Mutex
}

// Scheduler triggers registered jobs. A job never overlaps with itself.
type Scheduler struct {
	cron   *cron.Cron
	config *Config

	mu   sync.Mutex
	jobs map[string]*job

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new scheduler.
func New(cfg *Config) *Scheduler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	ctx, cancel := context.WithCancel(context.Background())
	logger := cron.PrintfLogger(log.Default())

	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		config: cfg,
		jobs:   make(map[string]*job),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register adds a job under a cron spec. An empty spec registers the job for
// RunNow only.
func (sch *Scheduler) Register(name, spec string, fn JobFunc) error {
	sch.mu.Lock()
	defer sch.mu.Unlock()

	if _, ok := sch.jobs[name]; ok {
		return fmt.Errorf("job %q already registered", name)
	}
	j := &job{name: name, spec: spec, fn: fn, stats: JobStats{Name: name, Spec: spec}}

	if spec != "" {
		id, err := sch.cron.AddFunc(spec, func() {
			if _, err := sch.run(j); err != nil && err != errBusy {
				log.Printf("[cron] job %s failed: %v", name, err)
			}
		})
		if err != nil {
			return fmt.Errorf("register job %s (%s): %w", name, spec, err)
		}
		j.entryID = id
	}
	sch.jobs[name] = j
	return nil
}

// Start begins firing jobs on schedule.
func (sch *Scheduler) Start() {
	sch.mu.Lock()
	n := len(sch.jobs)
	sch.mu.Unlock()

	sch.cron.Start()
	log.Printf("[cron] started with %d jobs", n)
}

// Stop stops the schedule and waits for running jobs.
func (sch *Scheduler) Stop() {
	sch.cancel()
	stopCtx := sch.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		log.Printf("[cron] stop timeout waiting for running jobs")
	}
	log.Printf("[cron] stopped")
}

// RunNow runs a registered job immediately.
func (sch *Scheduler) RunNow(name string) (string, error) {
	sch.mu.Lock()
	j, ok := sch.jobs[name]
	sch.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("unknown job %q", name)
	}
	return sch.run(j)
}

var errBusy = errors.New("job still running")

func (sch *Scheduler) run(j *job) (string, error) {
	if !j.running.TryLock() {
		log.Printf("[cron] skipping %s: previous run still in progress", j.name)
		return "", errBusy
	}
	defer j.running.Unlock()

	ctx, cancel := context.WithTimeout(sch.ctx, sch.config.JobTimeout)
	defer cancel()

	result, err := j.fn(ctx)

	sch.mu.Lock()
	j.stats.Runs++
	j.stats.LastRun = time.Now()
	j.stats.LastResult = result
	if err != nil {
		j.stats.Failures++
		j.stats.LastError = err.Error()
	} else {
		j.stats.LastError = ""
	}
	sch.mu.Unlock()

	if err == nil && result != "" {
		log.Printf("[cron] %s: %s", j.name, result)
	}
	return result, err
}

// GetStats returns per-job statistics sorted by name.
func (sch *Scheduler) GetStats() []JobStats {
	sch.mu.Lock()
	defer sch.mu.Unlock()

	stats := make([]JobStats, 0, len(sch.jobs))
	for _, j := range sch.jobs {
		s := j.stats
		if j.entryID != 0 {
			s.NextRun = sch.cron.Entry(j.entryID).Next
		}
		stats = append(stats, s)
	}
	sort.Slice(stats, func(a, b int) bool { return stats[a].Name < stats[b].Name })
	return stats
}
