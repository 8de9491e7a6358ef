// Package scheduler runs the periodic decay, goal and urgency jobs on cron
// schedules in the work timezone.
package scheduler

import "time"

// Config defines the scheduler configuration.
type Config struct {
	// Location is the timezone cron specs are evaluated in.
	Location *time.Location
	// JobTimeout bounds a single job run.
	JobTimeout time.Duration
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() *Config {
	return &Config{
		Location:   time.Local,
		JobTimeout: 2 * time.Minute,
	}
}
