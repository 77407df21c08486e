package specialorder

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/caskwell/caskwell/internal/triage"
)

type memRepo struct {
	orders map[int64]SpecialOrder
	nextID int64
}

func newMemRepo() *memRepo {
	return &memRepo{orders: map[int64]SpecialOrder{}, nextID: 1}
}

func (m *memRepo) Create(_ context.Context, order SpecialOrder) (SpecialOrder, error) {
	order.ID = m.nextID
	m.nextID++
	m.orders[order.ID] = order
	return order, nil
}

func (m *memRepo) Get(_ context.Context, id int64) (SpecialOrder, error) {
	order, ok := m.orders[id]
	if !ok {
		return SpecialOrder{}, ErrNotFound
	}
	return order, nil
}

func (m *memRepo) List(_ context.Context, filter ListFilter) ([]SpecialOrder, int, error) {
	var out []SpecialOrder
	for i := int64(1); i < m.nextID; i++ {
		order, ok := m.orders[i]
		if !ok {
			continue
		}
		if filter.ActiveOnly && !order.Active() {
			continue
		}
		out = append(out, order)
	}
	return out, len(out), nil
}

func (m *memRepo) Transition(_ context.Context, id int64, to Status, from []Status) (SpecialOrder, error) {
	order, ok := m.orders[id]
	if !ok {
		return SpecialOrder{}, ErrNotFound
	}
	for _, st := range from {
		if order.Status == st {
			order.Status = to
			m.orders[id] = order
			return order, nil
		}
	}
	return SpecialOrder{}, fmt.Errorf("%w: cannot move %s order to %s", ErrInvalidState, order.Status, to)
}

func newTestService(repo *memRepo) *Service {
	svc := NewService(repo, nil)
	svc.clock = func() time.Time { return time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC) }
	return svc
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(newMemRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{FamilyName: "Ashford", ServiceDate: date(2024, 2, 1)})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, CreateInput{CasketName: "Cherry Deluxe", ServiceDate: date(2024, 2, 1)})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, CreateInput{CasketName: "Cherry Deluxe", FamilyName: "Ashford"})
	require.ErrorIs(t, err, ErrValidation)

	order, err := svc.Create(ctx, CreateInput{
		CasketName: "Cherry Deluxe", FamilyName: "Ashford",
		ServiceDate: date(2024, 2, 1), Actor: "marge",
	})
	require.NoError(t, err)
	require.Equal(t, StatusOrdered, order.Status)
}

func TestLifecycle(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	order, err := svc.Create(ctx, CreateInput{
		CasketName: "Cherry Deluxe", FamilyName: "Ashford",
		ServiceDate: date(2024, 2, 1), Actor: "marge",
	})
	require.NoError(t, err)

	delayed, err := svc.MarkDelayed(ctx, order.ID, "marge")
	require.NoError(t, err)
	require.Equal(t, StatusDelayed, delayed.Status)

	_, err = svc.MarkArrived(ctx, order.ID, "marge")
	require.ErrorIs(t, err, ErrInvalidState)

	shipped, err := svc.MarkShipped(ctx, order.ID, "marge")
	require.NoError(t, err)
	require.Equal(t, StatusShipped, shipped.Status)

	arrived, err := svc.MarkArrived(ctx, order.ID, "marge")
	require.NoError(t, err)
	require.Equal(t, StatusArrived, arrived.Status)
	require.False(t, arrived.Active())

	_, err = svc.MarkShipped(ctx, order.ID, "marge")
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = svc.MarkShipped(ctx, 999, "marge")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListTriageOrder(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	// now is 2024-01-10; the special order urgent window is seven days
	seed := func(family string, serviceDate time.Time) {
		_, err := svc.Create(ctx, CreateInput{
			CasketName: "Cherry Deluxe", FamilyName: family,
			ServiceDate: serviceDate, Actor: "marge",
		})
		require.NoError(t, err)
	}
	seed("OnTime", date(2024, 1, 25))
	seed("Urgent", date(2024, 1, 15))
	seed("Late", date(2024, 1, 8))

	listed, total, err := svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Equal(t, 3, total)

	require.Equal(t, "Late", listed[0].FamilyName)
	require.Equal(t, triage.TierLate, listed[0].Triage.Tier)
	require.Equal(t, "Urgent", listed[1].FamilyName)
	require.Equal(t, triage.TierUrgent, listed[1].Triage.Tier)
	require.Equal(t, "OnTime", listed[2].FamilyName)
	require.Equal(t, triage.TierOnTime, listed[2].Triage.Tier)
}

func TestListActiveOnly(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	order, err := svc.Create(ctx, CreateInput{
		CasketName: "Cherry Deluxe", FamilyName: "Ashford",
		ServiceDate: date(2024, 1, 20), Actor: "marge",
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{
		CasketName: "Oak Standard", FamilyName: "Bell",
		ServiceDate: date(2024, 1, 22), Actor: "marge",
	})
	require.NoError(t, err)

	_, err = svc.MarkArrived(ctx, order.ID, "marge")
	require.NoError(t, err)

	listed, total, err := svc.List(ctx, ListFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "Bell", listed[0].FamilyName)
}
