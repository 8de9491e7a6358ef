// Package decay ages backlog tasks and archives the ones left untouched too long.
package decay

import "fmt"

// Tier is a backlog age bucket. Tiers are totally ordered.
type Tier int

const (
	TierNormal Tier = iota
	TierAging
	TierStale
	TierCritical
)

var tierNames = [...]string{"normal", "aging", "stale", "critical"}

func (t Tier) String() string {
	if t < TierNormal || t > TierCritical {
		return fmt.Sprintf("tier(%d)", int(t))
	}
	return tierNames[t]
}

// MarshalText encodes the tier by name.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a tier name.
func (t *Tier) UnmarshalText(b []byte) error {
	for i, name := range tierNames {
		if name == string(b) {
			*t = Tier(i)
			return nil
		}
	}
	return fmt.Errorf("unknown tier %q", b)
}

// Thresholds are the minimum ages, in whole days, of each tier.
type Thresholds struct {
	AgingDays    int `yaml:"aging_days"`
	StaleDays    int `yaml:"stale_days"`
	CriticalDays int `yaml:"critical_days"`
	ArchiveDays  int `yaml:"archive_days"`
}

// DefaultThresholds archives at the critical age.
func DefaultThresholds() Thresholds {
	return Thresholds{AgingDays: 7, StaleDays: 14, CriticalDays: 21, ArchiveDays: 21}
}

// Validate checks the thresholds are positive and strictly increasing.
func (th Thresholds) Validate() error {
	if th.AgingDays <= 0 {
		return fmt.Errorf("aging_days must be positive, got %d", th.AgingDays)
	}
	if th.StaleDays <= th.AgingDays {
		return fmt.Errorf("stale_days (%d) must exceed aging_days (%d)", th.StaleDays, th.AgingDays)
	}
	if th.CriticalDays <= th.StaleDays {
		return fmt.Errorf("critical_days (%d) must exceed stale_days (%d)", th.CriticalDays, th.StaleDays)
	}
	if th.ArchiveDays <= 0 {
		return fmt.Errorf("archive_days must be positive, got %d", th.ArchiveDays)
	}
	return nil
}

// TierFor buckets an age. The highest matching tier wins.
func (th Thresholds) TierFor(ageDays int) Tier {
	switch {
	case ageDays >= th.CriticalDays:
		return TierCritical
	case ageDays >= th.StaleDays:
		return TierStale
	case ageDays >= th.AgingDays:
		return TierAging
	default:
		return TierNormal
	}
}
