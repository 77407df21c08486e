package triage

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func datePtr(s string) *time.Time {
	d := date(s)
	return &d
}

func TestDaysRemaining(t *testing.T) {
	now := date("2024-01-10")

	require.Equal(t, -2, DaysRemaining(date("2024-01-08"), now))
	require.Equal(t, 0, DaysRemaining(date("2024-01-10"), now))
	require.Equal(t, 2, DaysRemaining(date("2024-01-12"), now))
	// Partial days round up.
	require.Equal(t, 1, DaysRemaining(date("2024-01-10").Add(6*time.Hour), now))
}

func TestAssessStockOrders(t *testing.T) {
	now := date("2024-01-10")

	a := Assess(datePtr("2024-01-08"), now, StockOrderRule)
	require.Equal(t, TierLate, a.Tier)
	require.Equal(t, -2, a.DaysRemaining)

	b := Assess(datePtr("2024-01-12"), now, StockOrderRule)
	require.Equal(t, TierUrgent, b.Tier)
	require.Equal(t, 2, b.DaysRemaining)

	c := Assess(datePtr("2024-01-20"), now, StockOrderRule)
	require.Equal(t, TierOnTime, c.Tier)

	// Due today is urgent, not late.
	d := Assess(datePtr("2024-01-10"), now, StockOrderRule)
	require.Equal(t, TierUrgent, d.Tier)
	require.Equal(t, 0, d.DaysRemaining)
}

func TestAssessSpecialOrderWindow(t *testing.T) {
	now := date("2024-01-10")

	// Five days out: urgent for a service date, on time for a delivery.
	deadline := datePtr("2024-01-15")
	require.Equal(t, TierUrgent, Assess(deadline, now, SpecialOrderRule).Tier)
	require.Equal(t, TierOnTime, Assess(deadline, now, StockOrderRule).Tier)
}

func TestAssessNilDeadline(t *testing.T) {
	a := Assess(nil, date("2024-01-10"), StockOrderRule)
	require.Equal(t, TierUnscheduled, a.Tier)
}

func TestCompareOrdering(t *testing.T) {
	now := date("2024-01-10")
	assessments := []Assessment{
		Assess(datePtr("2024-01-20"), now, StockOrderRule), // ON_TIME
		Assess(nil, now, StockOrderRule),                   // UNSCHEDULED
		Assess(datePtr("2024-01-12"), now, StockOrderRule), // URGENT +2
		Assess(datePtr("2024-01-08"), now, StockOrderRule), // LATE -2
		Assess(datePtr("2024-01-05"), now, StockOrderRule), // LATE -5
		Assess(datePtr("2024-01-10"), now, StockOrderRule), // URGENT 0
	}
	sort.SliceStable(assessments, func(i, j int) bool {
		return Compare(assessments[i], assessments[j]) < 0
	})

	tiers := make([]Tier, len(assessments))
	for i, a := range assessments {
		tiers[i] = a.Tier
	}
	require.Equal(t, []Tier{TierLate, TierLate, TierUrgent, TierUrgent, TierOnTime, TierUnscheduled}, tiers)
	require.Equal(t, -5, assessments[0].DaysRemaining)
	require.Equal(t, -2, assessments[1].DaysRemaining)
	require.Equal(t, 0, assessments[2].DaysRemaining)
}
