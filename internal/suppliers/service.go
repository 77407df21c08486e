package suppliers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/caskwell/caskwell/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Create(ctx context.Context, supplier Supplier) (Supplier, error)
	Get(ctx context.Context, id int64) (Supplier, error)
	GetByName(ctx context.Context, name string) (Supplier, error)
	List(ctx context.Context) ([]Supplier, error)
	Update(ctx context.Context, id int64, supplier Supplier) (Supplier, error)
	Delete(ctx context.Context, id int64) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages the supplier directory.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service. Audit is optional.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

func validate(supplier Supplier) error {
	if strings.TrimSpace(supplier.Name) == "" {
		return fmt.Errorf("%w: name required", ErrValidation)
	}
	return nil
}

// Create adds a supplier to the directory.
func (s *Service) Create(ctx context.Context, supplier Supplier, actor string) (Supplier, error) {
	if err := validate(supplier); err != nil {
		return Supplier{}, err
	}
	supplier.Name = strings.TrimSpace(supplier.Name)
	created, err := s.repo.Create(ctx, supplier)
	if err != nil {
		return Supplier{}, err
	}
	s.recordAudit(ctx, actor, "SUPPLIER_CREATE", created.ID, map[string]any{"name": created.Name})
	return created, nil
}

// Get returns one supplier.
func (s *Service) Get(ctx context.Context, id int64) (Supplier, error) {
	return s.repo.Get(ctx, id)
}

// List returns all suppliers ordered by name.
func (s *Service) List(ctx context.Context) ([]Supplier, error) {
	return s.repo.List(ctx)
}

// Update replaces a supplier record.
func (s *Service) Update(ctx context.Context, id int64, supplier Supplier, actor string) (Supplier, error) {
	if err := validate(supplier); err != nil {
		return Supplier{}, err
	}
	supplier.Name = strings.TrimSpace(supplier.Name)
	updated, err := s.repo.Update(ctx, id, supplier)
	if err != nil {
		return Supplier{}, err
	}
	s.recordAudit(ctx, actor, "SUPPLIER_UPDATE", id, map[string]any{"name": updated.Name})
	return updated, nil
}

// Delete removes a supplier from the directory.
func (s *Service) Delete(ctx context.Context, id int64, actor string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "SUPPLIER_DELETE", id, nil)
	return nil
}

// InstructionsByName returns the standing ordering instructions for the
// named supplier. Unknown names resolve to empty rather than an error so
// items with a free-text supplier still render an order form.
func (s *Service) InstructionsByName(ctx context.Context, name string) (string, error) {
	supplier, err := s.repo.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return supplier.OrderingInstructions, nil
}

func (s *Service) recordAudit(ctx context.Context, actor, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   "suppliers",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
}
