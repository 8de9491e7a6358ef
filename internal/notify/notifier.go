package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/fentz26/pacer/internal/apperr"
	"github.com/fentz26/pacer/internal/clock"
	"github.com/fentz26/pacer/internal/goals"
	"github.com/fentz26/pacer/internal/models"
	"github.com/fentz26/pacer/internal/pace"
	"github.com/fentz26/pacer/internal/store"
)

// Tier is the urgency of a pace deficit.
type Tier string

const (
	TierNone     Tier = "none"
	TierWarning  Tier = "warning"
	TierUrgent   Tier = "urgent"
	TierCritical Tier = "critical"
)

// Thresholds are the minimum point deficits of each tier.
type Thresholds struct {
	WarningDelta  int
	UrgentDelta   int
	CriticalDelta int
}

// DefaultThresholds returns the stock deficit thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{WarningDelta: 3, UrgentDelta: 5, CriticalDelta: 8}
}

// Classify maps a deficit (expected minus earned) to a tier.
func (th Thresholds) Classify(deficit int) Tier {
	switch {
	case deficit >= th.CriticalDelta:
		return TierCritical
	case deficit >= th.UrgentDelta:
		return TierUrgent
	case deficit >= th.WarningDelta:
		return TierWarning
	default:
		return TierNone
	}
}

// PriorityFor returns the ntfy priority (1-5) for a tier. High pressure
// bumps it by one.
func PriorityFor(tier Tier, pressure int) int {
	p := 0
	switch tier {
	case TierWarning:
		p = 3
	case TierUrgent:
		p = 4
	case TierCritical:
		p = 5
	default:
		return 0
	}
	if pressure >= 4 {
		p++
	}
	return min(p, 5)
}

// CheckResult reports what one check decided.
type CheckResult struct {
	Date     string        `json:"date"`
	Hour     int           `json:"hour"`
	Sent     bool          `json:"sent"`
	Tier     Tier          `json:"tier"`
	Priority int           `json:"priority,omitempty"`
	Deficit  int           `json:"deficit"`
	Reason   string        `json:"reason"`
	Error    string        `json:"error,omitempty"`
	Relay    string        `json:"relay,omitempty"`
	Momentum pace.Momentum `json:"momentum"`
	Pressure int           `json:"pressure"`
	Message  *Message      `json:"message,omitempty"`
}

// Notifier sends at most one pace notification per hour.
type Notifier struct {
	store      *store.Store
	tracker    *goals.Tracker
	calc       *pace.Calculator
	zone       *clock.WorkZone
	relay      Relay
	thresholds Thresholds
}

// NewNotifier creates a Notifier. A nil relay logs only.
func NewNotifier(st *store.Store, tracker *goals.Tracker, calc *pace.Calculator, zone *clock.WorkZone, relay Relay, th Thresholds) *Notifier {
	if relay == nil {
		relay = LogRelay{}
	}
	return &Notifier{store: st, tracker: tracker, calc: calc, zone: zone, relay: relay, thresholds: th}
}

// CheckNow runs CheckAndNotify for the current work-timezone hour.
func (n *Notifier) CheckNow(ctx context.Context) (*CheckResult, error) {
	return n.CheckAndNotify(ctx, n.zone.Now().Hour())
}

// CheckAndNotify refreshes today's goal record, classifies the deficit at
// hour and sends a notification if the hour has not been claimed yet. Rest
// days never notify. A relay failure is reported in the result; the hour
// stays claimed.
func (n *Notifier) CheckAndNotify(ctx context.Context, hour int) (*CheckResult, error) {
	if hour < 0 || hour > 23 {
		return nil, apperr.Invariant("check urgency", "hour %d outside 0-23", hour)
	}
	date := n.zone.Today()

	record, err := n.tracker.UpdateDailyGoal(ctx, date)
	if err != nil {
		return nil, err
	}
	if !n.tracker.IsWorkDay(date) {
		return &CheckResult{Date: date, Hour: hour, Tier: TierNone, Reason: "not a work day"}, nil
	}

	momentum := n.calc.At(record.EarnedPoints, float64(hour))
	deficit := momentum.ExpectedByNow - record.EarnedPoints
	tier := n.thresholds.Classify(deficit)

	result := &CheckResult{
		Date:     date,
		Hour:     hour,
		Tier:     tier,
		Deficit:  deficit,
		Momentum: momentum,
		Pressure: record.PressureLevel,
	}

	if record.LastUrgencyHour != nil && *record.LastUrgencyHour == hour {
		result.Reason = fmt.Sprintf("already notified at hour %d", hour)
		return result, nil
	}
	if tier == TierNone {
		result.Reason = "on pace"
		return result, nil
	}

	claimed, err := n.store.ClaimUrgencyHour(ctx, date, hour, n.zone.Now())
	if err != nil {
		return nil, err
	}
	if !claimed {
		result.Reason = fmt.Sprintf("already notified at hour %d", hour)
		return result, nil
	}

	msg := BuildMessage(Snapshot{Tier: tier, Hour: hour, Deficit: deficit, Momentum: momentum, Record: *record})
	result.Priority = msg.Priority
	result.Message = &msg
	result.Relay = n.relay.Name()

	if err := n.relay.Send(ctx, msg); err != nil {
		log.Printf("[urgency] %s relay failed for %s hour %d: %v", n.relay.Name(), date, hour, err)
		result.Reason = "relay failed"
		result.Error = apperr.Relay("send notification", err).Error()
		return result, nil
	}

	log.Printf("[urgency] sent %s notification for %s hour %d via %s", tier, date, hour, n.relay.Name())
	result.Sent = true
	result.Reason = fmt.Sprintf("%d points behind pace", deficit)
	return result, nil
}

// Snapshot is everything a notification message is built from.
type Snapshot struct {
	Tier     Tier
	Hour     int
	Deficit  int
	Momentum pace.Momentum
	Record   models.DailyGoalRecord
}

var tierTags = map[Tier][]string{
	TierWarning:  {"hourglass_flowing_sand"},
	TierUrgent:   {"warning"},
	TierCritical: {"rotating_light"},
}

// BuildMessage renders a snapshot. The same snapshot always gives the same
// message.
func BuildMessage(s Snapshot) Message {
	var title string
	switch s.Tier {
	case TierCritical:
		title = fmt.Sprintf("Critical: %d points behind pace", s.Deficit)
	case TierUrgent:
		title = fmt.Sprintf("Behind pace: %d points to catch up", s.Deficit)
	default:
		title = fmt.Sprintf("Pace check: %d points behind", s.Deficit)
	}

	r := s.Record
	body := fmt.Sprintf("%d of %d points expected by %02d:00 (%d%%, %s).\nDaily debt %d, weekly debt %d, pressure %d/5.",
		r.EarnedPoints, s.Momentum.ExpectedByNow, s.Hour, s.Momentum.Percent, s.Momentum.Status,
		r.DailyDebt, r.WeeklyDebt, r.PressureLevel)
	if r.LastGoalHitDate != nil {
		body += fmt.Sprintf("\nLast goal hit %s, best streak %d days.", *r.LastGoalHitDate, r.LongestStreak)
	}

	tags := append([]string{"pacer"}, tierTags[s.Tier]...)
	return Message{
		Title:    title,
		Body:     body,
		Priority: PriorityFor(s.Tier, r.PressureLevel),
		Tags:     tags,
	}
}
