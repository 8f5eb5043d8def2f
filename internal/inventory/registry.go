package inventory

import (
	"context"
	"fmt"

	"github.com/brigade-erp/brigade-erp/internal/shared"
	"github.com/brigade-erp/brigade-erp/internal/uom"
)

// RegisterItem creates an item together with its opening ledger state. For a
// raw item that is one initial-stock entry dated to the day before the
// beginning inventory month; for a finished product it is a full production
// event consuming ingredient stock. An external policy deny returns a soft
// stop, not an error.
func (s *Service) RegisterItem(ctx context.Context, input RegisterItemInput) (RegisterResult, error) {
	item := input.Item
	if item.Name == "" {
		return RegisterResult{}, shared.NewValidationError("name", "required")
	}
	if !uom.Valid(item.BaseUnit) {
		return RegisterResult{}, shared.NewValidationError("base_unit", "unknown unit")
	}
	if err := validatePerPiece(item); err != nil {
		return RegisterResult{}, err
	}
	if input.InitialQty.Sign() < 0 {
		return RegisterResult{}, shared.NewValidationError("initial_qty", "must not be negative")
	}
	if item.IsFinishedProduct && item.RecipeID == nil {
		return RegisterResult{}, shared.NewValidationError("recipe_id", "finished products require a linked recipe")
	}

	decision, err := s.policy.AllowItemInsert(ctx, item.CategoryID)
	if err != nil {
		return RegisterResult{}, err
	}
	if !decision.Allowed {
		return RegisterResult{Denied: true, DenyMessage: decision.Message}, nil
	}

	taxSnap, err := s.taxSnapshot(ctx, item.DefaultTaxID)
	if err != nil {
		return RegisterResult{}, err
	}
	vendorSnap, err := s.vendorSnapshot(ctx, item.VendorID)
	if err != nil {
		return RegisterResult{}, err
	}

	var result RegisterResult
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item.LastUnitCost = input.InitialUnitCost
		itemID, err := tx.InsertItem(ctx, item)
		if err != nil {
			return err
		}
		item.ID = itemID
		result.ItemID = itemID

		if input.InitialQty.Sign() == 0 {
			return nil
		}

		if item.IsFinishedProduct {
			yield, err := s.postYield(ctx, tx, item, input.InitialQty, movementTime(input.BeginningInventory), input.Remarks)
			if err != nil {
				return err
			}
			result.EntryIDs = append([]int64{yield.OutputEntryID}, yield.DebitEntryIDs...)
			return nil
		}

		begin := movementTime(input.BeginningInventory)
		net, tax := DecomposeTax(input.InitialUnitCost, taxSnap.Rate)
		entry := LedgerEntry{
			OperationID:          OpInitialStock,
			ItemID:               itemID,
			Tax:                  taxSnap,
			Vendor:               vendorSnap,
			UnitCost:             input.InitialUnitCost,
			UnitCostNet:          net,
			UnitCostTax:          tax,
			TaxRate:              taxSnap.Rate,
			Quantity:             input.InitialQty,
			MovedAt:              initialStockDate(begin),
			BeginningInventoryAt: &begin,
			ReceiptNumber:        input.ReceiptNumber,
			Remarks:              input.Remarks,
		}
		entryID, err := tx.InsertEntry(ctx, entry)
		if err != nil {
			return err
		}
		result.EntryIDs = []int64{entryID}
		return nil
	})
	if err != nil {
		return RegisterResult{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "item:register",
			Entity:   "item",
			EntityID: fmt.Sprintf("%d", result.ItemID),
			Meta:     map[string]any{"initial_qty": input.InitialQty.String()},
		})
	}
	return result, nil
}

// UpdateItem mutates item master data. Changing the base unit to piece while
// a per-piece measurement is configured rewrites every historical ledger
// quantity into the per-piece basis; changing qty-per-piece rescales every
// ingredient and spoilage record referencing the item. Both rewrites are
// all-or-nothing.
func (s *Service) UpdateItem(ctx context.Context, input UpdateItemInput) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetItemForUpdate(ctx, input.ItemID)
		if err != nil {
			return err
		}
		prevBase := item.BaseUnit
		prevQtyPerPiece := item.QtyPerPiece

		if input.Name != nil {
			if *input.Name == "" {
				return shared.NewValidationError("name", "required")
			}
			item.Name = *input.Name
		}
		if input.Barcode != nil {
			item.Barcode = *input.Barcode
		}
		if input.CategoryID != nil {
			item.CategoryID = *input.CategoryID
		}
		if input.BaseUnit != nil {
			if !uom.Valid(*input.BaseUnit) {
				return shared.NewValidationError("base_unit", "unknown unit")
			}
			item.BaseUnit = *input.BaseUnit
		}
		if input.PerPieceUnit != nil {
			item.PerPieceUnit = input.PerPieceUnit
		}
		if input.QtyPerPiece != nil {
			item.QtyPerPiece = *input.QtyPerPiece
		}
		if input.DefaultTaxID != nil {
			item.DefaultTaxID = input.DefaultTaxID
		}
		if input.VendorID != nil {
			item.VendorID = input.VendorID
		}
		if input.LowStockThreshold != nil {
			item.LowStockThreshold = *input.LowStockThreshold
		}
		if err := validatePerPiece(item); err != nil {
			return err
		}

		// Retroactive rewrite: base unit moved onto the per-piece basis.
		if prevBase != uom.Piece && item.BaseUnit == uom.Piece && item.HasPerPiece() {
			factor := one.Div(item.QtyPerPiece)
			if err := tx.RescaleEntries(ctx, item.ID, factor); err != nil {
				return err
			}
		}

		// Qty-per-piece changed: re-derive dependent ingredient and
		// spoilage quantities, qty_new = qty_old * old / new.
		if item.HasPerPiece() && prevQtyPerPiece.Sign() > 0 && item.QtyPerPiece.Sign() > 0 &&
			!prevQtyPerPiece.Equal(item.QtyPerPiece) {
			factor := prevQtyPerPiece.Div(item.QtyPerPiece)
			if err := tx.RescaleIngredients(ctx, item.ID, factor); err != nil {
				return err
			}
			if err := tx.RescaleSpoilage(ctx, item.ID, factor); err != nil {
				return err
			}
		}

		return tx.UpdateItem(ctx, item)
	})
	if err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "item:update",
			Entity:   "item",
			EntityID: fmt.Sprintf("%d", input.ItemID),
		})
	}
	return nil
}

// DeleteItem hard-deletes the item and its entire ledger history. This is a
// deliberate break from the void-only discipline. Deletion is refused when
// any of the item's entries belongs to a production event shared with another
// item, since that would orphan half the event.
func (s *Service) DeleteItem(ctx context.Context, itemID, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetItemForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		linked, err := tx.SharedProductionRefs(ctx, item.ID)
		if err != nil {
			return err
		}
		if linked > 0 {
			return &shared.ConsistencyError{Reason: fmt.Sprintf("item %d participates in %d production events; void them first", item.ID, linked)}
		}
		// Spoilage rows reference ledger entries and must go first.
		if err := tx.DeleteSpoilageForItem(ctx, item.ID); err != nil {
			return err
		}
		if err := tx.DeleteLedgerForItem(ctx, item.ID); err != nil {
			return err
		}
		if err := tx.DeleteIngredientsForItem(ctx, item.ID); err != nil {
			return err
		}
		return tx.DeleteItem(ctx, item.ID)
	})
	if err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "item:delete",
			Entity:   "item",
			EntityID: fmt.Sprintf("%d", itemID),
		})
	}
	return nil
}

func validatePerPiece(item Item) error {
	if item.HasPerPiece() {
		if !uom.Valid(*item.PerPieceUnit) {
			return shared.NewValidationError("per_piece_unit", "unknown unit")
		}
		if item.QtyPerPiece.Sign() <= 0 {
			return shared.NewValidationError("qty_per_piece", "must be greater than zero when a per-piece unit is set")
		}
	}
	return nil
}
