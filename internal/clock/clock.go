// Package clock converts wall-clock instants to the user's work timezone.
package clock

import (
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"
)

// DateLayout is the calendar-day key format used by daily records.
const DateLayout = "2006-01-02"

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Manual is a settable clock for tests and replays.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual returns a Manual clock set to t.
func NewManual(t time.Time) *Manual {
	return &Manual{now: t}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

var offsetPattern = regexp.MustCompile(`^([+-])(\d{2}):?(\d{2})$`)

// LoadLocation accepts an IANA zone name ("Europe/Berlin"), "UTC", or a
// fixed offset such as "+02:00" or "-0530".
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || name == "UTC" || name == "Z" {
		return time.UTC, nil
	}
	if m := offsetPattern.FindStringSubmatch(name); m != nil {
		hours, _ := strconv.Atoi(m[2])
		mins, _ := strconv.Atoi(m[3])
		if hours > 14 || mins > 59 {
			return nil, fmt.Errorf("invalid offset %q", name)
		}
		secs := hours*3600 + mins*60
		if m[1] == "-" {
			secs = -secs
		}
		return time.FixedZone(name, secs), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", name, err)
	}
	return loc, nil
}

// WorkZone binds a Clock to the work timezone. All day boundaries and
// hour-of-day math in the engine go through it.
type WorkZone struct {
	clock Clock
	loc   *time.Location
}

// NewWorkZone creates a WorkZone. A nil clock means the system clock.
func NewWorkZone(c Clock, loc *time.Location) *WorkZone {
	if c == nil {
		c = System{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &WorkZone{clock: c, loc: loc}
}

// Location returns the work timezone.
func (z *WorkZone) Location() *time.Location { return z.loc }

// Now returns the current instant in the work timezone.
func (z *WorkZone) Now() time.Time { return z.clock.Now().In(z.loc) }

// Today returns the current work-timezone date key.
func (z *WorkZone) Today() string { return z.DateKey(z.clock.Now()) }

// DateKey formats t as a work-timezone date key.
func (z *WorkZone) DateKey(t time.Time) string { return t.In(z.loc).Format(DateLayout) }

// ParseDate parses a date key as midnight in the work timezone.
func (z *WorkZone) ParseDate(date string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, date, z.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	return t, nil
}

// HourOfDay returns the current fractional hour, e.g. 14:30 -> 14.5.
func (z *WorkZone) HourOfDay() float64 {
	return FractionalHour(z.Now())
}

// FractionalHour returns t's hour plus minutes and seconds as a fraction.
func FractionalHour(t time.Time) float64 {
	return float64(t.Hour()) + float64(t.Minute())/60 + float64(t.Second())/3600
}

// DayBounds returns the UTC [start, end) range covering the work-timezone date.
func (z *WorkZone) DayBounds(date string) (time.Time, time.Time, error) {
	start, err := z.ParseDate(date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end := start.AddDate(0, 0, 1)
	return start.UTC(), end.UTC(), nil
}

// AddDays shifts a date key by n calendar days.
func (z *WorkZone) AddDays(date string, n int) (string, error) {
	t, err := z.ParseDate(date)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, n).Format(DateLayout), nil
}

// WeekStart returns the Monday on or before date.
func (z *WorkZone) WeekStart(date string) (string, error) {
	t, err := z.ParseDate(date)
	if err != nil {
		return "", err
	}
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset).Format(DateLayout), nil
}

// DefaultWorkDays is the length of the work week when none is configured.
const DefaultWorkDays = 5

// IsWorkDay reports whether date falls on one of the first workDays days of
// its Monday-based week. workDays outside 1-7 means DefaultWorkDays.
func (z *WorkZone) IsWorkDay(date string, workDays int) (bool, error) {
	t, err := z.ParseDate(date)
	if err != nil {
		return false, err
	}
	if workDays < 1 || workDays > 7 {
		workDays = DefaultWorkDays
	}
	return (int(t.Weekday())+6)%7 < workDays, nil
}

// PrevWorkDay returns the closest work day strictly before date.
func (z *WorkZone) PrevWorkDay(date string, workDays int) (string, error) {
	t, err := z.ParseDate(date)
	if err != nil {
		return "", err
	}
	for i := 1; i <= 7; i++ {
		d := t.AddDate(0, 0, -i).Format(DateLayout)
		if ok, _ := z.IsWorkDay(d, workDays); ok {
			return d, nil
		}
	}
	return t.AddDate(0, 0, -1).Format(DateLayout), nil
}

// WholeDaysBetween returns the number of complete 24h periods from a to b,
// never negative.
func WholeDaysBetween(a, b time.Time) int {
	d := b.Sub(a)
	if d <= 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}
