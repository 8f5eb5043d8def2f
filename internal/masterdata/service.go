package masterdata

import (
	"context"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/brigade-erp/brigade-erp/internal/shared"
)

var hundred = decimal.NewFromInt(100)

// RepositoryPort abstracts master data persistence.
type RepositoryPort interface {
	InsertCategory(ctx context.Context, category Category) (int64, error)
	GetCategory(ctx context.Context, id int64) (Category, error)
	UpdateCategory(ctx context.Context, category Category) error
	DeleteCategory(ctx context.Context, id int64) error
	ListCategories(ctx context.Context, filters ListFilters) ([]Category, error)
	CategoryItemCount(ctx context.Context, id int64) (int64, error)

	InsertTax(ctx context.Context, tax Tax) (int64, error)
	GetTax(ctx context.Context, id int64) (Tax, error)
	UpdateTax(ctx context.Context, tax Tax) error
	DeleteTax(ctx context.Context, id int64) error
	ListTaxes(ctx context.Context, filters ListFilters) ([]Tax, error)

	InsertVendor(ctx context.Context, vendor Vendor) (int64, error)
	GetVendor(ctx context.Context, id int64) (Vendor, error)
	UpdateVendor(ctx context.Context, vendor Vendor) error
	DeleteVendor(ctx context.Context, id int64) error
	ListVendors(ctx context.Context, filters ListFilters) ([]Vendor, error)
}

// Service manages categories, taxes and vendors.
type Service struct {
	repo  RepositoryPort
	audit shared.AuditRecorder
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit shared.AuditRecorder) *Service {
	return &Service{repo: repo, audit: audit}
}

// CreateCategory adds a category.
func (s *Service) CreateCategory(ctx context.Context, category Category, actorID int64) (int64, error) {
	if category.Name == "" {
		return 0, shared.NewValidationError("name", "required")
	}
	id, err := s.repo.InsertCategory(ctx, category)
	if err != nil {
		return 0, err
	}
	s.recordAudit(ctx, actorID, "category:create", "category", id)
	return id, nil
}

// GetCategory returns a category.
func (s *Service) GetCategory(ctx context.Context, id int64) (Category, error) {
	return s.repo.GetCategory(ctx, id)
}

// UpdateCategory mutates a category, including its revenue-group link.
func (s *Service) UpdateCategory(ctx context.Context, category Category, actorID int64) error {
	if category.Name == "" {
		return shared.NewValidationError("name", "required")
	}
	if _, err := s.repo.GetCategory(ctx, category.ID); err != nil {
		return err
	}
	if err := s.repo.UpdateCategory(ctx, category); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "category:update", "category", category.ID)
	return nil
}

// DeleteCategory removes an empty category. Categories still holding items
// are refused; items must be moved or deleted first.
func (s *Service) DeleteCategory(ctx context.Context, id, actorID int64) error {
	if _, err := s.repo.GetCategory(ctx, id); err != nil {
		return err
	}
	count, err := s.repo.CategoryItemCount(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return &shared.ConsistencyError{Reason: "category still holds items"}
	}
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "category:delete", "category", id)
	return nil
}

// ListCategories lists categories.
func (s *Service) ListCategories(ctx context.Context, filters ListFilters) ([]Category, error) {
	return s.repo.ListCategories(ctx, filters)
}

// CreateTax adds a tax. The rate is a percentage in [0, 100).
func (s *Service) CreateTax(ctx context.Context, tax Tax, actorID int64) (int64, error) {
	if err := validateTax(tax); err != nil {
		return 0, err
	}
	id, err := s.repo.InsertTax(ctx, tax)
	if err != nil {
		return 0, err
	}
	s.recordAudit(ctx, actorID, "tax:create", "tax", id)
	return id, nil
}

// GetTax returns a tax.
func (s *Service) GetTax(ctx context.Context, id int64) (Tax, error) {
	return s.repo.GetTax(ctx, id)
}

// UpdateTax mutates the live record only; frozen entry snapshots keep their
// original rate.
func (s *Service) UpdateTax(ctx context.Context, tax Tax, actorID int64) error {
	if err := validateTax(tax); err != nil {
		return err
	}
	if _, err := s.repo.GetTax(ctx, tax.ID); err != nil {
		return err
	}
	if err := s.repo.UpdateTax(ctx, tax); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "tax:update", "tax", tax.ID)
	return nil
}

// DeleteTax removes a tax. History survives through snapshots; items that
// referenced it fall back to untaxed defaults.
func (s *Service) DeleteTax(ctx context.Context, id, actorID int64) error {
	if _, err := s.repo.GetTax(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeleteTax(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "tax:delete", "tax", id)
	return nil
}

// ListTaxes lists taxes.
func (s *Service) ListTaxes(ctx context.Context, filters ListFilters) ([]Tax, error) {
	return s.repo.ListTaxes(ctx, filters)
}

// CreateVendor adds a vendor.
func (s *Service) CreateVendor(ctx context.Context, vendor Vendor, actorID int64) (int64, error) {
	if vendor.Name == "" {
		return 0, shared.NewValidationError("name", "required")
	}
	id, err := s.repo.InsertVendor(ctx, vendor)
	if err != nil {
		return 0, err
	}
	s.recordAudit(ctx, actorID, "vendor:create", "vendor", id)
	return id, nil
}

// GetVendor returns a vendor.
func (s *Service) GetVendor(ctx context.Context, id int64) (Vendor, error) {
	return s.repo.GetVendor(ctx, id)
}

// UpdateVendor mutates a vendor.
func (s *Service) UpdateVendor(ctx context.Context, vendor Vendor, actorID int64) error {
	if vendor.Name == "" {
		return shared.NewValidationError("name", "required")
	}
	if _, err := s.repo.GetVendor(ctx, vendor.ID); err != nil {
		return err
	}
	if err := s.repo.UpdateVendor(ctx, vendor); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "vendor:update", "vendor", vendor.ID)
	return nil
}

// DeleteVendor removes a vendor. Entry snapshots keep the name.
func (s *Service) DeleteVendor(ctx context.Context, id, actorID int64) error {
	if _, err := s.repo.GetVendor(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeleteVendor(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "vendor:delete", "vendor", id)
	return nil
}

// ListVendors lists vendors.
func (s *Service) ListVendors(ctx context.Context, filters ListFilters) ([]Vendor, error) {
	return s.repo.ListVendors(ctx, filters)
}

func validateTax(tax Tax) error {
	if tax.Name == "" {
		return shared.NewValidationError("name", "required")
	}
	if tax.Rate.Sign() < 0 || !tax.Rate.LessThan(hundred) {
		return shared.NewValidationError("rate", "must be at least 0 and below 100")
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entity string, id int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(id, 10),
	})
}
