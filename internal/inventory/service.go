package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/brigade-erp/brigade-erp/internal/shared"
	"github.com/brigade-erp/brigade-erp/internal/uom"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetItem(ctx context.Context, id int64) (Item, error)
	ListEntries(ctx context.Context, filter EntryFilter) ([]LedgerEntry, error)
	StockTotals(ctx context.Context, itemID int64) (Stock, error)
	LowStockItems(ctx context.Context) ([]Item, error)
	TaxSnapshot(ctx context.Context, taxID int64) (TaxSnapshot, error)
	VendorSnapshot(ctx context.Context, vendorID int64) (VendorSnapshot, error)
}

// TxRepository exposes the operations available inside one atomic
// transaction. Item + opening entry, yield output + ingredient debits, and
// production void cascades all commit through here as single units.
type TxRepository interface {
	InsertItem(ctx context.Context, item Item) (int64, error)
	GetItemForUpdate(ctx context.Context, id int64) (Item, error)
	UpdateItem(ctx context.Context, item Item) error
	DeleteItem(ctx context.Context, id int64) error
	SetLastUnitCost(ctx context.Context, itemID int64, cost decimal.Decimal) error

	InsertEntry(ctx context.Context, entry LedgerEntry) (int64, error)
	GetEntry(ctx context.Context, id int64) (LedgerEntry, error)
	UpdateEntry(ctx context.Context, entry LedgerEntry) error
	MarkVoided(ctx context.Context, id int64) error
	VoidProduction(ctx context.Context, productionRef string) ([]int64, error)
	StockTotals(ctx context.Context, itemID int64) (Stock, error)

	RescaleEntries(ctx context.Context, itemID int64, factor decimal.Decimal) error
	RescaleIngredients(ctx context.Context, itemID int64, factor decimal.Decimal) error
	RescaleSpoilage(ctx context.Context, itemID int64, factor decimal.Decimal) error

	DeleteLedgerForItem(ctx context.Context, itemID int64) error
	DeleteIngredientsForItem(ctx context.Context, itemID int64) error
	DeleteSpoilageForItem(ctx context.Context, itemID int64) error
	SharedProductionRefs(ctx context.Context, itemID int64) (int64, error)

	InsertSpoilage(ctx context.Context, sp Spoilage) (int64, error)
}

// RecipePort supplies ingredient demands for production events.
type RecipePort interface {
	RequirementLines(ctx context.Context, recipeID int64, servings decimal.Decimal) ([]RequirementLine, error)
}

// Service coordinates the inventory ledger and costing engine.
type Service struct {
	repo        RepositoryPort
	recipes     RecipePort
	audit       shared.AuditRecorder
	idempotency *shared.IdempotencyStore
	policy      shared.InsertionPolicy
}

// NewService builds Service. A nil policy allows every insertion.
func NewService(repo RepositoryPort, recipes RecipePort, audit shared.AuditRecorder, idem *shared.IdempotencyStore, policy shared.InsertionPolicy) *Service {
	if policy == nil {
		policy = shared.AllowAllPolicy{}
	}
	return &Service{repo: repo, recipes: recipes, audit: audit, idempotency: idem, policy: policy}
}

// AddStock posts an inbound movement. The tax decomposition is computed here
// and frozen into the entry.
func (s *Service) AddStock(ctx context.Context, input AddStockInput) (MutationResult, error) {
	if input.Qty.Sign() <= 0 {
		return MutationResult{}, shared.NewValidationError("qty", "must be greater than zero")
	}
	if input.UnitCost.Sign() < 0 {
		return MutationResult{}, shared.NewValidationError("unit_cost", "must not be negative")
	}
	op := input.OperationID
	if op == 0 {
		op = OpPurchase
	}
	if op.Kind() != KindAddStock {
		return MutationResult{}, shared.NewValidationError("operation_id", "not an add-stock operation")
	}
	if op == OpYieldStock || op == OpInitialStock {
		return MutationResult{}, shared.NewValidationError("operation_id", "reserved for registration and production")
	}

	taxSnap, err := s.taxSnapshot(ctx, input.TaxID)
	if err != nil {
		return MutationResult{}, err
	}
	vendorSnap, err := s.vendorSnapshot(ctx, input.VendorID)
	if err != nil {
		return MutationResult{}, err
	}

	insertedKey, err := s.claimRequestKey(ctx, input.RequestKey)
	if err != nil {
		return MutationResult{}, err
	}

	var result MutationResult
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetItemForUpdate(ctx, input.ItemID)
		if err != nil {
			return err
		}
		qty := input.Qty
		if input.SecondaryUnit != nil {
			if !item.HasPerPiece() {
				return shared.NewValidationError("secondary_unit", "item has no per-piece measurement")
			}
			converted, err := uom.Convert(qty, *input.SecondaryUnit, *item.PerPieceUnit)
			if err != nil {
				return shared.NewValidationError("secondary_unit", err.Error())
			}
			qty = converted.Div(item.QtyPerPiece)
		}
		net, tax := DecomposeTax(input.UnitCost, taxSnap.Rate)
		entry := LedgerEntry{
			OperationID:   op,
			ItemID:        item.ID,
			Tax:           taxSnap,
			Vendor:        vendorSnap,
			UnitCost:      input.UnitCost,
			UnitCostNet:   net,
			UnitCostTax:   tax,
			TaxRate:       taxSnap.Rate,
			Quantity:      qty,
			MovedAt:       movementTime(input.MovedAt),
			ReceiptNumber: input.ReceiptNumber,
			Remarks:       input.Remarks,
		}
		id, err := tx.InsertEntry(ctx, entry)
		if err != nil {
			return err
		}
		if err := tx.SetLastUnitCost(ctx, item.ID, input.UnitCost); err != nil {
			return err
		}
		result = MutationResult{ItemID: item.ID, EntryID: id}
		return nil
	})
	if err != nil {
		s.releaseRequestKey(ctx, input.RequestKey, insertedKey)
		return MutationResult{}, err
	}
	s.recordAudit(ctx, input.ActorID, op, result.EntryID, map[string]any{
		"item_id": input.ItemID,
		"qty":     input.Qty.String(),
	})
	return result, nil
}

// RemoveStock posts an outbound movement costed at the item's current
// weighted-average unit cost. A removal that would drive stock negative is
// rejected and nothing is persisted.
func (s *Service) RemoveStock(ctx context.Context, input RemoveStockInput) (MutationResult, error) {
	op := input.OperationID
	if op == 0 {
		op = OpStockUsage
	}
	if op.Kind() != KindRemoveStock {
		return MutationResult{}, shared.NewValidationError("operation_id", "not a remove-stock operation")
	}

	insertedKey, err := s.claimRequestKey(ctx, input.RequestKey)
	if err != nil {
		return MutationResult{}, err
	}

	var result MutationResult
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		entryID, err := s.removeStockTx(ctx, tx, input.ItemID, op, input.Qty, nil, "", movementTime(input.MovedAt), input.Remarks)
		if err != nil {
			return err
		}
		result = MutationResult{ItemID: input.ItemID, EntryID: entryID}
		return nil
	})
	if err != nil {
		s.releaseRequestKey(ctx, input.RequestKey, insertedKey)
		return MutationResult{}, err
	}
	s.recordAudit(ctx, input.ActorID, op, result.EntryID, map[string]any{
		"item_id": input.ItemID,
		"qty":     input.Qty.String(),
	})
	return result, nil
}

// RecordSpoilage posts a spoilage removal and keeps a spoilage row alongside
// the ledger entry, both in one transaction.
func (s *Service) RecordSpoilage(ctx context.Context, input SpoilageInput) (MutationResult, error) {
	var result MutationResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		entryID, err := s.removeStockTx(ctx, tx, input.ItemID, OpSpoilage, input.Qty, nil, "", movementTime(input.MovedAt), input.Remarks)
		if err != nil {
			return err
		}
		if _, err := tx.InsertSpoilage(ctx, Spoilage{
			ItemID:     input.ItemID,
			EntryID:    entryID,
			Qty:        input.Qty,
			RecordedAt: movementTime(input.MovedAt),
			Remarks:    input.Remarks,
		}); err != nil {
			return err
		}
		result = MutationResult{ItemID: input.ItemID, EntryID: entryID}
		return nil
	})
	if err != nil {
		return MutationResult{}, err
	}
	s.recordAudit(ctx, input.ActorID, OpSpoilage, result.EntryID, map[string]any{
		"item_id": input.ItemID,
		"qty":     input.Qty.String(),
	})
	return result, nil
}

// removeStockTx writes one outbound entry inside an open transaction. The
// item row is locked first so the aggregate cannot race a concurrent writer.
func (s *Service) removeStockTx(ctx context.Context, tx TxRepository, itemID int64, op OperationID, qty decimal.Decimal, recipeID *int64, productionRef string, movedAt time.Time, remarks string) (int64, error) {
	if qty.Sign() <= 0 {
		return 0, shared.NewValidationError("qty", "must be greater than zero")
	}
	item, err := tx.GetItemForUpdate(ctx, itemID)
	if err != nil {
		return 0, err
	}
	totals, err := tx.StockTotals(ctx, item.ID)
	if err != nil {
		return 0, err
	}
	if qty.GreaterThan(totals.Qty) {
		return 0, &shared.InsufficientStockError{ItemID: item.ID, Requested: qty, Available: totals.Qty}
	}
	avg := totals.Average()
	entry := LedgerEntry{
		OperationID:   op,
		ItemID:        item.ID,
		RecipeID:      recipeID,
		ProductionRef: productionRef,
		UnitCost:      avg.Gross,
		UnitCostNet:   avg.Net,
		UnitCostTax:   avg.Tax,
		TaxRate:       avg.EffectiveRate(),
		Quantity:      qty,
		MovedAt:       movedAt,
		Remarks:       remarks,
	}
	return tx.InsertEntry(ctx, entry)
}

// UpdateEntry edits a non-voided entry in place, recomputing the net/tax
// decomposition. Initial-stock entries keep their pinned date.
func (s *Service) UpdateEntry(ctx context.Context, input UpdateEntryInput) (MutationResult, error) {
	var newTax *TaxSnapshot
	if input.TaxID != nil {
		snap, err := s.taxSnapshot(ctx, input.TaxID)
		if err != nil {
			return MutationResult{}, err
		}
		newTax = &snap
	}

	var result MutationResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		entry, err := tx.GetEntry(ctx, input.EntryID)
		if err != nil {
			return err
		}
		if entry.Voided {
			return &shared.ConsistencyError{EntryID: entry.ID, Reason: "cannot edit a voided entry"}
		}
		removal := entry.OperationID.Kind() == KindRemoveStock
		if input.Qty != nil && !input.Qty.Equal(entry.Quantity) {
			if input.Qty.Sign() <= 0 {
				return shared.NewValidationError("qty", "must be greater than zero")
			}
			if _, err := tx.GetItemForUpdate(ctx, entry.ItemID); err != nil {
				return err
			}
			totals, err := tx.StockTotals(ctx, entry.ItemID)
			if err != nil {
				return err
			}
			if removal {
				// Headroom is the balance with this removal undone.
				available := totals.Qty.Add(entry.Quantity)
				if input.Qty.GreaterThan(available) {
					return &shared.InsufficientStockError{ItemID: entry.ItemID, Requested: *input.Qty, Available: available}
				}
			} else if totals.Qty.Sub(entry.Quantity.Sub(*input.Qty)).Sign() < 0 {
				return &shared.ConsistencyError{EntryID: entry.ID, Reason: "edit would drive stock negative"}
			}
			entry.Quantity = *input.Qty
		}
		if input.UnitCost != nil {
			if removal {
				return shared.NewValidationError("unit_cost", "removal entries carry the weighted-average cost")
			}
			if input.UnitCost.Sign() < 0 {
				return shared.NewValidationError("unit_cost", "must not be negative")
			}
			entry.UnitCost = *input.UnitCost
		}
		if newTax != nil {
			if removal {
				return shared.NewValidationError("tax_id", "removal entries carry the weighted-average cost")
			}
			entry.Tax = *newTax
			entry.TaxRate = newTax.Rate
		}
		if !removal {
			entry.UnitCostNet, entry.UnitCostTax = DecomposeTax(entry.UnitCost, entry.TaxRate)
		}
		if input.MovedAt != nil {
			if entry.OperationID == OpInitialStock {
				// Pinned: the opening entry must sort before every
				// same-month movement.
				if entry.BeginningInventoryAt != nil {
					entry.MovedAt = initialStockDate(*entry.BeginningInventoryAt)
				}
			} else {
				entry.MovedAt = *input.MovedAt
			}
		}
		if input.ReceiptNumber != nil {
			entry.ReceiptNumber = *input.ReceiptNumber
		}
		if input.Remarks != nil {
			entry.Remarks = *input.Remarks
		}
		if err := tx.UpdateEntry(ctx, entry); err != nil {
			return err
		}
		result = MutationResult{ItemID: entry.ItemID, EntryID: entry.ID}
		return nil
	})
	if err != nil {
		return MutationResult{}, err
	}
	s.recordAudit(ctx, input.ActorID, 0, result.EntryID, map[string]any{"edited": true})
	return result, nil
}

// VoidEntry logically cancels an entry. Voiding is terminal. Voiding a
// production output cascades to every entry sharing its production reference;
// ingredient debits cannot be voided on their own.
func (s *Service) VoidEntry(ctx context.Context, entryID, actorID int64) ([]int64, error) {
	var voided []int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		entry, err := tx.GetEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if entry.Voided {
			return &shared.ConsistencyError{EntryID: entry.ID, Reason: "entry is already voided"}
		}
		if entry.ProductionRef != "" {
			if entry.OperationID != OpYieldStock {
				return &shared.ConsistencyError{EntryID: entry.ID, Reason: "production inputs are voided via their yield output"}
			}
			ids, err := tx.VoidProduction(ctx, entry.ProductionRef)
			if err != nil {
				return err
			}
			voided = ids
			return nil
		}
		if err := tx.MarkVoided(ctx, entry.ID); err != nil {
			return err
		}
		voided = []int64{entry.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, 0, entryID, map[string]any{"voided": voided})
	return voided, nil
}

// CurrentStock returns the quantity and cost aggregate of an item over its
// non-voided entries.
func (s *Service) CurrentStock(ctx context.Context, itemID int64) (Stock, error) {
	if _, err := s.repo.GetItem(ctx, itemID); err != nil {
		return Stock{}, err
	}
	return s.repo.StockTotals(ctx, itemID)
}

// AverageCost returns the weighted-average unit cost of an item. Defined is
// false when the item holds no stock.
func (s *Service) AverageCost(ctx context.Context, itemID int64) (AverageCost, error) {
	totals, err := s.CurrentStock(ctx, itemID)
	if err != nil {
		return AverageCost{}, err
	}
	return totals.Average(), nil
}

// ListEntries returns ledger entries for an item, newest first capped by the
// filter limit.
func (s *Service) ListEntries(ctx context.Context, filter EntryFilter) ([]LedgerEntry, error) {
	if filter.ItemID <= 0 {
		return nil, shared.NewValidationError("item_id", "required")
	}
	return s.repo.ListEntries(ctx, filter)
}

// LowStockItems lists items at or below their low-stock threshold.
func (s *Service) LowStockItems(ctx context.Context) ([]Item, error) {
	return s.repo.LowStockItems(ctx)
}

// GetItem returns item master data.
func (s *Service) GetItem(ctx context.Context, id int64) (Item, error) {
	return s.repo.GetItem(ctx, id)
}

// taxSnapshot freezes the live tax record. A missing reference degrades to an
// empty snapshot: the source may have been legitimately deleted after being
// used historically.
func (s *Service) taxSnapshot(ctx context.Context, taxID *int64) (TaxSnapshot, error) {
	if taxID == nil {
		return TaxSnapshot{}, nil
	}
	snap, err := s.repo.TaxSnapshot(ctx, *taxID)
	if err != nil {
		if shared.IsNotFound(err) {
			return TaxSnapshot{}, nil
		}
		return TaxSnapshot{}, err
	}
	return snap, nil
}

func (s *Service) vendorSnapshot(ctx context.Context, vendorID *int64) (VendorSnapshot, error) {
	if vendorID == nil {
		return VendorSnapshot{}, nil
	}
	snap, err := s.repo.VendorSnapshot(ctx, *vendorID)
	if err != nil {
		if shared.IsNotFound(err) {
			return VendorSnapshot{}, nil
		}
		return VendorSnapshot{}, err
	}
	return snap, nil
}

func (s *Service) claimRequestKey(ctx context.Context, key string) (bool, error) {
	if key == "" || s.idempotency == nil {
		return false, nil
	}
	if err := s.idempotency.CheckAndInsert(ctx, key, "inventory"); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) releaseRequestKey(ctx context.Context, key string, inserted bool) {
	if inserted {
		_ = s.idempotency.Delete(ctx, key)
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, op OperationID, entryID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	action := "ledger:mutation"
	if op != 0 {
		action = shared.LedgerAction(string(op.Kind()))
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "ledger_entry",
		EntityID: fmt.Sprintf("%d", entryID),
		Meta:     meta,
	})
}

func movementTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
