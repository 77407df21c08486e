// Package triage classifies dated obligations into urgency tiers for
// display and sorting. It has no dependencies beyond the standard library
// and performs no I/O.
package triage

import (
	"math"
	"time"
)

// Tier is the urgency classification of a dated obligation.
type Tier string

const (
	TierLate        Tier = "LATE"
	TierUrgent      Tier = "URGENT"
	TierOnTime      Tier = "ON_TIME"
	TierUnscheduled Tier = "UNSCHEDULED"
)

// Rule sets the urgent window in days for one consumer of the triage.
type Rule struct {
	UrgentWindowDays int
}

var (
	// StockOrderRule applies to stock-replacement orders keyed by
	// expected delivery date.
	StockOrderRule = Rule{UrgentWindowDays: 3}
	// SpecialOrderRule applies to special orders keyed by the funeral
	// service date, a hard deadline.
	SpecialOrderRule = Rule{UrgentWindowDays: 7}
)

// Assessment is the triage result for one obligation.
type Assessment struct {
	Tier          Tier `json:"tier"`
	DaysRemaining int  `json:"days_remaining"`
}

// DaysRemaining counts whole days until the deadline, rounding partial
// days up. Negative means overdue.
func DaysRemaining(deadline, now time.Time) int {
	return int(math.Ceil(deadline.Sub(now).Hours() / 24))
}

// Assess classifies a deadline under the given rule. A nil deadline is a
// distinct UNSCHEDULED tier rather than a silent ON_TIME so that orders
// with no delivery commitment stay visible.
func Assess(deadline *time.Time, now time.Time, rule Rule) Assessment {
	if deadline == nil {
		return Assessment{Tier: TierUnscheduled}
	}
	days := DaysRemaining(*deadline, now)
	switch {
	case days < 0:
		return Assessment{Tier: TierLate, DaysRemaining: days}
	case days <= rule.UrgentWindowDays:
		return Assessment{Tier: TierUrgent, DaysRemaining: days}
	default:
		return Assessment{Tier: TierOnTime, DaysRemaining: days}
	}
}

var tierRank = map[Tier]int{
	TierLate:        0,
	TierUrgent:      1,
	TierOnTime:      2,
	TierUnscheduled: 3,
}

// Compare orders assessments for a combined listing: LATE first, then
// URGENT, then ON_TIME, unscheduled obligations last; within a tier the
// most overdue or soonest-due comes first. Returns <0, 0, or >0.
func Compare(a, b Assessment) int {
	if ra, rb := tierRank[a.Tier], tierRank[b.Tier]; ra != rb {
		return ra - rb
	}
	if a.Tier == TierUnscheduled {
		return 0
	}
	return a.DaysRemaining - b.DaysRemaining
}
