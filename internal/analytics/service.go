package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/brigade-erp/brigade-erp/internal/platform/cache"
	"github.com/brigade-erp/brigade-erp/internal/shared"
)

var hundred = decimal.NewFromInt(100)

// RepositoryPort abstracts analytics persistence.
type RepositoryPort interface {
	InsertGroup(ctx context.Context, group RevenueGroup) (int64, error)
	GetGroup(ctx context.Context, id int64) (RevenueGroup, error)
	UpdateGroup(ctx context.Context, group RevenueGroup) error
	DeleteGroup(ctx context.Context, id int64) error
	ListGroups(ctx context.Context) ([]RevenueGroup, error)

	UpsertRevenue(ctx context.Context, record RevenueRecord) (int64, error)
	GetRevenue(ctx context.Context, groupID int64, month shared.Month) (RevenueRecord, error)
	ListRevenue(ctx context.Context, groupID int64) ([]RevenueRecord, error)

	GroupForCategory(ctx context.Context, categoryID int64) (*int64, error)
	// ConsumptionNet sums the net cost of non-voided outbound entries over
	// the group's categories for one month.
	ConsumptionNet(ctx context.Context, groupID int64, month shared.Month) (decimal.Decimal, error)
}

// Service computes revenue-linked cost figures.
type Service struct {
	repo  RepositoryPort
	store *cache.Store
	audit shared.AuditRecorder
	sf    singleflight.Group
}

// NewService builds Service. store may be nil; figures are then always
// computed fresh.
func NewService(repo RepositoryPort, store *cache.Store, audit shared.AuditRecorder) *Service {
	return &Service{repo: repo, store: store, audit: audit}
}

// CreateGroup adds a revenue group.
func (s *Service) CreateGroup(ctx context.Context, name string, actorID int64) (int64, error) {
	if name == "" {
		return 0, shared.NewValidationError("name", "required")
	}
	id, err := s.repo.InsertGroup(ctx, RevenueGroup{Name: name})
	if err != nil {
		return 0, err
	}
	s.recordAudit(ctx, actorID, "revenue_group:create", id)
	return id, nil
}

// RenameGroup updates a group's name.
func (s *Service) RenameGroup(ctx context.Context, id int64, name string, actorID int64) error {
	if name == "" {
		return shared.NewValidationError("name", "required")
	}
	group, err := s.repo.GetGroup(ctx, id)
	if err != nil {
		return err
	}
	group.Name = name
	if err := s.repo.UpdateGroup(ctx, group); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "revenue_group:rename", id)
	return nil
}

// DeleteGroup removes a group and its revenue history. Categories pointing at
// it fall back to having no group.
func (s *Service) DeleteGroup(ctx context.Context, id, actorID int64) error {
	if _, err := s.repo.GetGroup(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeleteGroup(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "revenue_group:delete", id)
	return nil
}

// ListGroups lists all revenue groups.
func (s *Service) ListGroups(ctx context.Context) ([]RevenueGroup, error) {
	return s.repo.ListGroups(ctx)
}

// BookRevenue upserts a month's revenue for a group and drops any cached
// figure for that month.
func (s *Service) BookRevenue(ctx context.Context, input UpsertRevenueInput) (int64, error) {
	if input.Month.IsZero() {
		return 0, shared.NewValidationError("month", "required")
	}
	if input.Amount.Sign() < 0 {
		return 0, shared.NewValidationError("amount", "must not be negative")
	}
	if _, err := s.repo.GetGroup(ctx, input.GroupID); err != nil {
		return 0, err
	}
	id, err := s.repo.UpsertRevenue(ctx, RevenueRecord{
		GroupID: input.GroupID,
		Month:   input.Month,
		Amount:  input.Amount,
	})
	if err != nil {
		return 0, err
	}
	_ = s.store.Invalidate(ctx, costPercentageKey(input.GroupID, input.Month))
	s.recordAudit(ctx, input.ActorID, "revenue:book", id)
	return id, nil
}

// RevenueHistory lists a group's booked months.
func (s *Service) RevenueHistory(ctx context.Context, groupID int64) ([]RevenueRecord, error) {
	if _, err := s.repo.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return s.repo.ListRevenue(ctx, groupID)
}

// CostPercentageForCategory computes the month's consumed-stock net cost over
// booked revenue for the category's group. Missing links degrade to flagged
// zero figures instead of errors. Figures are cached per (group, month) and
// concurrent recomputation collapses into one flight.
func (s *Service) CostPercentageForCategory(ctx context.Context, categoryID int64, month shared.Month) (CostPercentage, error) {
	if month.IsZero() {
		return CostPercentage{}, shared.NewValidationError("month", "required")
	}
	groupID, err := s.repo.GroupForCategory(ctx, categoryID)
	if err != nil {
		return CostPercentage{}, err
	}
	if groupID == nil {
		return CostPercentage{CategoryID: categoryID, Month: month}, nil
	}
	figure, err := s.costPercentage(ctx, *groupID, month)
	if err != nil {
		return CostPercentage{}, err
	}
	figure.CategoryID = categoryID
	return figure, nil
}

// CostPercentageForGroup computes the figure for a group directly.
func (s *Service) CostPercentageForGroup(ctx context.Context, groupID int64, month shared.Month) (CostPercentage, error) {
	if month.IsZero() {
		return CostPercentage{}, shared.NewValidationError("month", "required")
	}
	if _, err := s.repo.GetGroup(ctx, groupID); err != nil {
		return CostPercentage{}, err
	}
	return s.costPercentage(ctx, groupID, month)
}

func (s *Service) costPercentage(ctx context.Context, groupID int64, month shared.Month) (CostPercentage, error) {
	key := costPercentageKey(groupID, month)
	if payload, err := s.store.Get(ctx, key); err == nil {
		var cached CostPercentage
		if json.Unmarshal(payload, &cached) == nil {
			return cached, nil
		}
	}

	v, err, _ := s.sf.Do(key, func() (any, error) {
		figure, err := s.computeCostPercentage(ctx, groupID, month)
		if err != nil {
			return CostPercentage{}, err
		}
		if payload, err := json.Marshal(figure); err == nil {
			_ = s.store.Set(ctx, key, payload)
		}
		return figure, nil
	})
	if err != nil {
		return CostPercentage{}, err
	}
	return v.(CostPercentage), nil
}

func (s *Service) computeCostPercentage(ctx context.Context, groupID int64, month shared.Month) (CostPercentage, error) {
	figure := CostPercentage{
		GroupID:         groupID,
		Month:           month,
		HasRevenueGroup: true,
	}
	cost, err := s.repo.ConsumptionNet(ctx, groupID, month)
	if err != nil {
		return CostPercentage{}, err
	}
	figure.CostNet = cost

	record, err := s.repo.GetRevenue(ctx, groupID, month)
	if err != nil {
		if shared.IsNotFound(err) {
			return figure, nil
		}
		return CostPercentage{}, err
	}
	figure.HasMonthAmount = true
	figure.Revenue = record.Amount
	if record.Amount.Sign() > 0 {
		figure.Percent = cost.Div(record.Amount).Mul(hundred)
	}
	return figure, nil
}

func costPercentageKey(groupID int64, month shared.Month) string {
	return fmt.Sprintf("analytics:costpct:%d:%s", groupID, month)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, id int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "analytics",
		EntityID: strconv.FormatInt(id, 10),
	})
}
