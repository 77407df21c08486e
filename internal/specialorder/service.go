package specialorder

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/caskwell/caskwell/internal/shared"
	"github.com/caskwell/caskwell/internal/triage"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Create(ctx context.Context, order SpecialOrder) (SpecialOrder, error)
	Get(ctx context.Context, id int64) (SpecialOrder, error)
	List(ctx context.Context, filter ListFilter) ([]SpecialOrder, int, error)
	// Transition moves the order to a new status only when it currently
	// holds one of the given states. ErrInvalidState otherwise.
	Transition(ctx context.Context, id int64, to Status, from []Status) (SpecialOrder, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates the special order lifecycle.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	clock func() time.Time
}

// NewService builds Service. Audit is optional.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, clock: func() time.Time { return time.Now().UTC() }}
}

// Create files a new special order in ORDERED state.
func (s *Service) Create(ctx context.Context, input CreateInput) (SpecialOrder, error) {
	if strings.TrimSpace(input.CasketName) == "" {
		return SpecialOrder{}, fmt.Errorf("%w: casket name required", ErrValidation)
	}
	if strings.TrimSpace(input.FamilyName) == "" {
		return SpecialOrder{}, fmt.Errorf("%w: family name required", ErrValidation)
	}
	if input.ServiceDate.IsZero() {
		return SpecialOrder{}, fmt.Errorf("%w: service date required", ErrValidation)
	}
	order := SpecialOrder{
		CasketName:          strings.TrimSpace(input.CasketName),
		Model:               input.Model,
		Supplier:            input.Supplier,
		FamilyName:          strings.TrimSpace(input.FamilyName),
		ServiceDate:         input.ServiceDate,
		ExpectedDelivery:    input.ExpectedDelivery,
		Notes:               input.Notes,
		SupplierOrderNumber: input.SupplierOrderNumber,
		Status:              StatusOrdered,
	}
	created, err := s.repo.Create(ctx, order)
	if err != nil {
		return SpecialOrder{}, err
	}
	s.recordAudit(ctx, input.Actor, "SPECIAL_ORDER_CREATE", created.ID, map[string]any{
		"family":       created.FamilyName,
		"casket":       created.CasketName,
		"service_date": created.ServiceDate.Format("2006-01-02"),
	})
	return created, nil
}

// MarkShipped moves an ordered or delayed order into transit.
func (s *Service) MarkShipped(ctx context.Context, id int64, actor string) (SpecialOrder, error) {
	return s.transition(ctx, id, actor, StatusShipped, []Status{StatusOrdered, StatusDelayed}, "SPECIAL_ORDER_SHIP")
}

// MarkArrived closes the order. Delayed orders re-enter through shipped.
func (s *Service) MarkArrived(ctx context.Context, id int64, actor string) (SpecialOrder, error) {
	return s.transition(ctx, id, actor, StatusArrived, []Status{StatusOrdered, StatusShipped}, "SPECIAL_ORDER_ARRIVE")
}

// MarkDelayed flags an ordered or shipped order as delayed.
func (s *Service) MarkDelayed(ctx context.Context, id int64, actor string) (SpecialOrder, error) {
	return s.transition(ctx, id, actor, StatusDelayed, []Status{StatusOrdered, StatusShipped}, "SPECIAL_ORDER_DELAY")
}

func (s *Service) transition(ctx context.Context, id int64, actor string, to Status, from []Status, auditAction string) (SpecialOrder, error) {
	order, err := s.repo.Transition(ctx, id, to, from)
	if err != nil {
		return SpecialOrder{}, err
	}
	s.recordAudit(ctx, actor, auditAction, order.ID, map[string]any{"family": order.FamilyName})
	return order, nil
}

// Get returns one special order.
func (s *Service) Get(ctx context.Context, id int64) (SpecialOrder, error) {
	return s.repo.Get(ctx, id)
}

// Listed pairs a special order with its urgency assessment.
type Listed struct {
	SpecialOrder
	Triage triage.Assessment `json:"triage"`
}

// List returns special orders sorted most urgent first: late service
// dates, then those inside the urgent window, then the rest.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Listed, int, error) {
	orders, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	now := s.clock()
	listed := make([]Listed, 0, len(orders))
	for _, order := range orders {
		listed = append(listed, Listed{SpecialOrder: order, Triage: order.Assess(now)})
	}
	sort.SliceStable(listed, func(i, j int) bool {
		return triage.Compare(listed[i].Triage, listed[j].Triage) < 0
	})
	return listed, total, nil
}

func (s *Service) recordAudit(ctx context.Context, actor, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   "specialorder",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
}
