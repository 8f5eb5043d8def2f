package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/brigade-erp/brigade-erp/internal/shared"
)

// ProduceYield runs one production event: one yield-stock output entry plus
// one stock-usage debit per ingredient, all sharing a production reference
// and committing as a single transaction. Each ingredient is costed at its
// weighted-average cost at production time.
func (s *Service) ProduceYield(ctx context.Context, input ProduceYieldInput) (YieldResult, error) {
	if input.Servings.Sign() <= 0 {
		return YieldResult{}, shared.NewValidationError("servings", "must be greater than zero")
	}
	var result YieldResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetItemForUpdate(ctx, input.ItemID)
		if err != nil {
			return err
		}
		if !item.IsFinishedProduct || item.RecipeID == nil {
			return shared.NewValidationError("item_id", "item is not a finished product with a linked recipe")
		}
		result, err = s.postYield(ctx, tx, item, input.Servings, movementTime(input.MovedAt), input.Remarks)
		return err
	})
	if err != nil {
		return YieldResult{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "ledger:yield",
			Entity:   "production_event",
			EntityID: result.ProductionRef,
			Meta: map[string]any{
				"item_id":  input.ItemID,
				"servings": input.Servings.String(),
			},
		})
	}
	return result, nil
}

// postYield writes a full production event inside an open transaction. The
// caller has already locked the output item.
func (s *Service) postYield(ctx context.Context, tx TxRepository, item Item, servings decimal.Decimal, movedAt time.Time, remarks string) (YieldResult, error) {
	if s.recipes == nil {
		return YieldResult{}, fmt.Errorf("inventory: recipe port not configured")
	}
	lines, err := s.recipes.RequirementLines(ctx, *item.RecipeID, servings)
	if err != nil {
		return YieldResult{}, err
	}
	if len(lines) == 0 {
		return YieldResult{}, shared.NewValidationError("recipe_id", "recipe has no ingredients")
	}

	ref := uuid.NewString()
	result := YieldResult{ProductionRef: ref}
	var costNet, costTax decimal.Decimal
	for _, line := range lines {
		ing, err := tx.GetItemForUpdate(ctx, line.ItemID)
		if err != nil {
			return YieldResult{}, err
		}
		totals, err := tx.StockTotals(ctx, ing.ID)
		if err != nil {
			return YieldResult{}, err
		}
		if line.Qty.GreaterThan(totals.Qty) {
			return YieldResult{}, &shared.InsufficientStockError{ItemID: ing.ID, Requested: line.Qty, Available: totals.Qty}
		}
		avg := totals.Average()
		debit := LedgerEntry{
			OperationID:   OpStockUsage,
			ItemID:        ing.ID,
			RecipeID:      item.RecipeID,
			ProductionRef: ref,
			UnitCost:      avg.Gross,
			UnitCostNet:   avg.Net,
			UnitCostTax:   avg.Tax,
			TaxRate:       avg.EffectiveRate(),
			Quantity:      line.Qty,
			MovedAt:       movedAt,
			Remarks:       remarks,
		}
		id, err := tx.InsertEntry(ctx, debit)
		if err != nil {
			return YieldResult{}, err
		}
		result.DebitEntryIDs = append(result.DebitEntryIDs, id)
		costNet = costNet.Add(avg.Net.Mul(line.Qty))
		costTax = costTax.Add(avg.Tax.Mul(line.Qty))
	}

	unitNet := costNet.Div(servings)
	unitTax := costTax.Div(servings)
	unitGross := unitNet.Add(unitTax)
	rate := decimal.Zero
	if unitNet.Sign() > 0 {
		rate = unitTax.Div(unitNet).Mul(hundred)
	}
	output := LedgerEntry{
		OperationID:   OpYieldStock,
		ItemID:        item.ID,
		RecipeID:      item.RecipeID,
		ProductionRef: ref,
		UnitCost:      unitGross,
		UnitCostNet:   unitNet,
		UnitCostTax:   unitTax,
		TaxRate:       rate,
		Quantity:      servings,
		MovedAt:       movedAt,
		Remarks:       remarks,
	}
	outputID, err := tx.InsertEntry(ctx, output)
	if err != nil {
		return YieldResult{}, err
	}
	result.OutputEntryID = outputID

	if err := tx.SetLastUnitCost(ctx, item.ID, unitGross); err != nil {
		return YieldResult{}, err
	}
	return result, nil
}
