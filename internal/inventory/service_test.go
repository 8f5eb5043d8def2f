package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/brigade-erp/brigade-erp/internal/shared"
	"github.com/brigade-erp/brigade-erp/internal/uom"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestService(repo *memRepo, recipes RecipePort) *Service {
	return NewService(repo, recipes, nil, nil, nil)
}

func registerRawItem(t *testing.T, svc *Service, name string, qty, cost string) int64 {
	t.Helper()
	result, err := svc.RegisterItem(context.Background(), RegisterItemInput{
		Item: Item{
			Name:       name,
			CategoryID: 1,
			BaseUnit:   uom.Gram,
		},
		InitialQty:         dec(qty),
		InitialUnitCost:    dec(cost),
		BeginningInventory: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.False(t, result.Denied)
	return result.ItemID
}

func TestAddRemoveStockKeepsWeightedAverage(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	itemID := registerRawItem(t, svc, "pork belly", "195", "15.38")

	_, err := svc.AddStock(ctx, AddStockInput{
		ItemID:   itemID,
		Qty:      dec("12"),
		UnitCost: dec("15.38"),
	})
	require.NoError(t, err)

	_, err = svc.RemoveStock(ctx, RemoveStockInput{ItemID: itemID, Qty: dec("90")})
	require.NoError(t, err)

	stock, err := svc.CurrentStock(ctx, itemID)
	require.NoError(t, err)
	require.True(t, stock.Qty.Equal(dec("117")), "qty = %s", stock.Qty)

	avg, err := svc.AverageCost(ctx, itemID)
	require.NoError(t, err)
	require.True(t, avg.Defined)
	require.True(t, avg.Gross.Equal(dec("15.38")), "avg = %s", avg.Gross)
}

func TestRemoveStockAtMixedAverage(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	itemID := registerRawItem(t, svc, "flour", "10", "10")
	_, err := svc.AddStock(ctx, AddStockInput{ItemID: itemID, Qty: dec("10"), UnitCost: dec("20")})
	require.NoError(t, err)

	result, err := svc.RemoveStock(ctx, RemoveStockInput{ItemID: itemID, Qty: dec("5")})
	require.NoError(t, err)

	var entry LedgerEntry
	for _, e := range repo.entries {
		if e.ID == result.EntryID {
			entry = e
		}
	}
	require.True(t, entry.UnitCost.Equal(dec("15")), "removal costed at %s", entry.UnitCost)

	stock, err := svc.CurrentStock(ctx, itemID)
	require.NoError(t, err)
	require.True(t, stock.Qty.Equal(dec("15")))
	avg, err := svc.AverageCost(ctx, itemID)
	require.NoError(t, err)
	require.True(t, avg.Gross.Equal(dec("15")))
}

func TestRemoveStockInsufficientLeavesLedgerUntouched(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	itemID := registerRawItem(t, svc, "basil", "207", "2.50")
	before := len(repo.entries)

	_, err := svc.RemoveStock(ctx, RemoveStockInput{ItemID: itemID, Qty: dec("300")})
	var insufficient *shared.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.True(t, insufficient.Available.Equal(dec("207")))
	require.True(t, insufficient.Requested.Equal(dec("300")))

	require.Len(t, repo.entries, before, "failed removal must not write")
	stock, err := svc.CurrentStock(ctx, itemID)
	require.NoError(t, err)
	require.True(t, stock.Qty.Equal(dec("207")))
}

func TestAddStockSnapshotsTaxAndDecomposes(t *testing.T) {
	repo := newMemRepo()
	taxID := int64(7)
	repo.taxes[taxID] = TaxSnapshot{TaxID: &taxID, Name: "VAT", Rate: dec("12")}
	svc := newTestService(repo, nil)
	ctx := context.Background()

	itemID := registerRawItem(t, svc, "oil", "0", "0")
	result, err := svc.AddStock(ctx, AddStockInput{
		ItemID:   itemID,
		Qty:      dec("10"),
		UnitCost: dec("112"),
		TaxID:    &taxID,
	})
	require.NoError(t, err)

	entry, err := (*memTx)(repo).GetEntry(ctx, result.EntryID)
	require.NoError(t, err)
	require.Equal(t, "VAT", entry.Tax.Name)
	require.True(t, entry.UnitCostNet.Equal(dec("100")), "net = %s", entry.UnitCostNet)
	require.True(t, entry.UnitCostTax.Equal(dec("12")), "tax = %s", entry.UnitCostTax)
	require.True(t, entry.UnitCostNet.Add(entry.UnitCostTax).Equal(entry.UnitCost))

	// Mutating the live tax later never changes the frozen snapshot.
	repo.taxes[taxID] = TaxSnapshot{TaxID: &taxID, Name: "VAT", Rate: dec("20")}
	entry, err = (*memTx)(repo).GetEntry(ctx, result.EntryID)
	require.NoError(t, err)
	require.True(t, entry.TaxRate.Equal(dec("12")))
}

func TestAddStockMissingTaxDegradesToNoTax(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	itemID := registerRawItem(t, svc, "salt", "0", "0")
	missing := int64(99)
	result, err := svc.AddStock(ctx, AddStockInput{
		ItemID:   itemID,
		Qty:      dec("5"),
		UnitCost: dec("3"),
		TaxID:    &missing,
	})
	require.NoError(t, err)

	entry, err := (*memTx)(repo).GetEntry(ctx, result.EntryID)
	require.NoError(t, err)
	require.True(t, entry.TaxRate.IsZero())
	require.True(t, entry.UnitCostNet.Equal(dec("3")))
}

func TestAddStockSecondaryUnitConversion(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	perPiece := uom.Milliliter
	result, err := svc.RegisterItem(ctx, RegisterItemInput{
		Item: Item{
			Name:         "olive oil bottle",
			CategoryID:   1,
			BaseUnit:     uom.Piece,
			PerPieceUnit: &perPiece,
			QtyPerPiece:  dec("750"),
		},
	})
	require.NoError(t, err)

	secondary := uom.Liter
	mut, err := svc.AddStock(ctx, AddStockInput{
		ItemID:        result.ItemID,
		Qty:           dec("1.5"),
		SecondaryUnit: &secondary,
		UnitCost:      dec("8"),
	})
	require.NoError(t, err)

	entry, err := (*memTx)(repo).GetEntry(ctx, mut.EntryID)
	require.NoError(t, err)
	require.True(t, entry.Quantity.Equal(dec("2")), "1.5 l over 750 ml pieces = %s", entry.Quantity)
}

func TestRegisterItemPinsInitialStockDate(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)

	result, err := svc.RegisterItem(context.Background(), RegisterItemInput{
		Item:               Item{Name: "rice", CategoryID: 1, BaseUnit: uom.Kilogram},
		InitialQty:         dec("25"),
		InitialUnitCost:    dec("1.10"),
		BeginningInventory: time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, result.EntryIDs, 1)

	entry, err := (*memTx)(repo).GetEntry(context.Background(), result.EntryIDs[0])
	require.NoError(t, err)
	require.Equal(t, OpInitialStock, entry.OperationID)
	require.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), entry.MovedAt)
	require.NotNil(t, entry.BeginningInventoryAt)
}

func TestRegisterItemPolicyDenyIsSoftStop(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, nil, nil, denyPolicy{message: "item limit reached for this plan"})

	result, err := svc.RegisterItem(context.Background(), RegisterItemInput{
		Item:       Item{Name: "saffron", CategoryID: 1, BaseUnit: uom.Gram},
		InitialQty: dec("5"),
	})
	require.NoError(t, err)
	require.True(t, result.Denied)
	require.Equal(t, "item limit reached for this plan", result.DenyMessage)
	require.Empty(t, repo.items)
	require.Empty(t, repo.entries)
}

func TestUpdateEntryRecomputesDecomposition(t *testing.T) {
	repo := newMemRepo()
	taxID := int64(1)
	repo.taxes[taxID] = TaxSnapshot{TaxID: &taxID, Name: "VAT", Rate: dec("10")}
	svc := newTestService(repo, nil)
	ctx := context.Background()

	itemID := registerRawItem(t, svc, "sugar", "0", "0")
	added, err := svc.AddStock(ctx, AddStockInput{ItemID: itemID, Qty: dec("4"), UnitCost: dec("11"), TaxID: &taxID})
	require.NoError(t, err)

	newCost := dec("22")
	_, err = svc.UpdateEntry(ctx, UpdateEntryInput{EntryID: added.EntryID, UnitCost: &newCost})
	require.NoError(t, err)

	entry, err := (*memTx)(repo).GetEntry(ctx, added.EntryID)
	require.NoError(t, err)
	require.True(t, entry.UnitCostNet.Equal(dec("20")))
	require.True(t, entry.UnitCostTax.Equal(dec("2")))
}

func TestUpdateEntryRejectsVoided(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	itemID := registerRawItem(t, svc, "milk", "0", "0")
	added, err := svc.AddStock(ctx, AddStockInput{ItemID: itemID, Qty: dec("2"), UnitCost: dec("1")})
	require.NoError(t, err)
	_, err = svc.VoidEntry(ctx, added.EntryID, 0)
	require.NoError(t, err)

	qty := dec("3")
	_, err = svc.UpdateEntry(ctx, UpdateEntryInput{EntryID: added.EntryID, Qty: &qty})
	var consistency *shared.ConsistencyError
	require.ErrorAs(t, err, &consistency)
}

func TestVoidIsTerminal(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	itemID := registerRawItem(t, svc, "butter", "10", "4")
	added, err := svc.AddStock(ctx, AddStockInput{ItemID: itemID, Qty: dec("10"), UnitCost: dec("4")})
	require.NoError(t, err)

	voided, err := svc.VoidEntry(ctx, added.EntryID, 0)
	require.NoError(t, err)
	require.Equal(t, []int64{added.EntryID}, voided)

	stock, err := svc.CurrentStock(ctx, itemID)
	require.NoError(t, err)
	require.True(t, stock.Qty.Equal(dec("10")), "voided entry excluded from aggregate")

	_, err = svc.VoidEntry(ctx, added.EntryID, 0)
	var consistency *shared.ConsistencyError
	require.ErrorAs(t, err, &consistency)
}

func yieldFixture(t *testing.T) (*memRepo, *Service, int64, int64, int64) {
	t.Helper()
	repo := newMemRepo()
	recipes := &memRecipes{lines: map[int64][]RequirementLine{}}
	svc := newTestService(repo, recipes)
	ctx := context.Background()

	ribsID := registerRawItem(t, svc, "ribs", "10", "300.50")
	sauceID := registerRawItem(t, svc, "bbq sauce", "2000", "0.12")

	recipeID := int64(1)
	recipes.lines[recipeID] = []RequirementLine{
		{ItemID: ribsID, Qty: dec("1")},
		{ItemID: sauceID, Qty: dec("105")},
	}

	result, err := svc.RegisterItem(ctx, RegisterItemInput{
		Item: Item{
			Name:              "baby back ribs",
			CategoryID:        2,
			BaseUnit:          uom.Piece,
			IsFinishedProduct: true,
			RecipeID:          &recipeID,
		},
	})
	require.NoError(t, err)
	return repo, svc, result.ItemID, ribsID, sauceID
}

func TestProduceYieldCostsFromIngredients(t *testing.T) {
	repo, svc, productID, ribsID, sauceID := yieldFixture(t)
	ctx := context.Background()

	result, err := svc.ProduceYield(ctx, ProduceYieldInput{ItemID: productID, Servings: dec("4")})
	require.NoError(t, err)
	require.NotEmpty(t, result.ProductionRef)
	require.Len(t, result.DebitEntryIDs, 2)

	output, err := (*memTx)(repo).GetEntry(ctx, result.OutputEntryID)
	require.NoError(t, err)
	require.Equal(t, OpYieldStock, output.OperationID)
	require.Equal(t, result.ProductionRef, output.ProductionRef)
	// 1 rib at 300.50 plus 105 ml sauce at 0.12 per serving.
	require.True(t, output.UnitCost.Equal(dec("313.10")), "unit cost = %s", output.UnitCost)
	require.True(t, output.UnitCostNet.Add(output.UnitCostTax).Equal(output.UnitCost))

	ribsStock, err := svc.CurrentStock(ctx, ribsID)
	require.NoError(t, err)
	require.True(t, ribsStock.Qty.Equal(dec("6")))
	sauceStock, err := svc.CurrentStock(ctx, sauceID)
	require.NoError(t, err)
	require.True(t, sauceStock.Qty.Equal(dec("1580")))
}

func TestProduceYieldInsufficientIngredientRollsBack(t *testing.T) {
	repo, svc, productID, _, _ := yieldFixture(t)
	before := len(repo.entries)

	_, err := svc.ProduceYield(context.Background(), ProduceYieldInput{ItemID: productID, Servings: dec("100")})
	var insufficient *shared.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Len(t, repo.entries, before, "partial production must not survive")
}

func TestVoidYieldOutputCascades(t *testing.T) {
	repo, svc, productID, ribsID, _ := yieldFixture(t)
	ctx := context.Background()

	result, err := svc.ProduceYield(ctx, ProduceYieldInput{ItemID: productID, Servings: dec("4")})
	require.NoError(t, err)

	voided, err := svc.VoidEntry(ctx, result.OutputEntryID, 0)
	require.NoError(t, err)
	require.Len(t, voided, 3, "output plus both debits")

	for _, e := range repo.entries {
		if e.ProductionRef == result.ProductionRef {
			require.True(t, e.Voided)
		}
	}
	ribsStock, err := svc.CurrentStock(ctx, ribsID)
	require.NoError(t, err)
	require.True(t, ribsStock.Qty.Equal(dec("10")), "ingredient stock restored")
}

func TestVoidIngredientDebitRejected(t *testing.T) {
	_, svc, productID, _, _ := yieldFixture(t)
	ctx := context.Background()

	result, err := svc.ProduceYield(ctx, ProduceYieldInput{ItemID: productID, Servings: dec("2")})
	require.NoError(t, err)

	_, err = svc.VoidEntry(ctx, result.DebitEntryIDs[0], 0)
	var consistency *shared.ConsistencyError
	require.ErrorAs(t, err, &consistency)
}

func TestRecordSpoilageWritesBothRows(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	itemID := registerRawItem(t, svc, "lettuce", "50", "0.80")
	result, err := svc.RecordSpoilage(ctx, SpoilageInput{ItemID: itemID, Qty: dec("8"), Remarks: "wilted"})
	require.NoError(t, err)

	entry, err := (*memTx)(repo).GetEntry(ctx, result.EntryID)
	require.NoError(t, err)
	require.Equal(t, OpSpoilage, entry.OperationID)
	require.Len(t, repo.spoilage, 1)
	require.Equal(t, result.EntryID, repo.spoilage[0].EntryID)

	stock, err := svc.CurrentStock(ctx, itemID)
	require.NoError(t, err)
	require.True(t, stock.Qty.Equal(dec("42")))
}

func TestUpdateItemBaseUnitToPieceRescalesLedger(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	perPiece := uom.Gram
	result, err := svc.RegisterItem(ctx, RegisterItemInput{
		Item: Item{
			Name:         "butter block",
			CategoryID:   1,
			BaseUnit:     uom.Gram,
			PerPieceUnit: &perPiece,
			QtyPerPiece:  dec("250"),
		},
		InitialQty:      dec("1000"),
		InitialUnitCost: dec("0.02"),
	})
	require.NoError(t, err)

	base := uom.Piece
	err = svc.UpdateItem(ctx, UpdateItemInput{ItemID: result.ItemID, BaseUnit: &base})
	require.NoError(t, err)

	stock, err := svc.CurrentStock(ctx, result.ItemID)
	require.NoError(t, err)
	require.True(t, stock.Qty.Equal(dec("4")), "1000 g becomes 4 pieces, got %s", stock.Qty)
}

func TestUpdateItemQtyPerPieceRescalesDependents(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	perPiece := uom.Milliliter
	result, err := svc.RegisterItem(ctx, RegisterItemInput{
		Item: Item{
			Name:         "wine bottle",
			CategoryID:   1,
			BaseUnit:     uom.Piece,
			PerPieceUnit: &perPiece,
			QtyPerPiece:  dec("750"),
		},
	})
	require.NoError(t, err)
	repo.ingredients[result.ItemID] = dec("0.2")

	newQty := dec("1500")
	err = svc.UpdateItem(ctx, UpdateItemInput{ItemID: result.ItemID, QtyPerPiece: &newQty})
	require.NoError(t, err)
	require.True(t, repo.ingredients[result.ItemID].Equal(dec("0.1")),
		"same volume, half as many pieces, got %s", repo.ingredients[result.ItemID])
}

func TestDeleteItemRefusedWhenProductionShared(t *testing.T) {
	_, svc, productID, ribsID, _ := yieldFixture(t)
	ctx := context.Background()

	_, err := svc.ProduceYield(ctx, ProduceYieldInput{ItemID: productID, Servings: dec("1")})
	require.NoError(t, err)

	err = svc.DeleteItem(ctx, ribsID, 0)
	var consistency *shared.ConsistencyError
	require.ErrorAs(t, err, &consistency)
}

func TestDeleteItemRemovesLedger(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	itemID := registerRawItem(t, svc, "cream", "10", "2")
	require.NoError(t, svc.DeleteItem(ctx, itemID, 0))

	_, err := svc.GetItem(ctx, itemID)
	require.True(t, shared.IsNotFound(err))
	require.Empty(t, repo.entries)
}

func TestDeleteItemWithSpoilageHistory(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	itemID := registerRawItem(t, svc, "spinach", "30", "0.60")
	_, err := svc.RecordSpoilage(ctx, SpoilageInput{ItemID: itemID, Qty: dec("6"), Remarks: "frost damage"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteItem(ctx, itemID, 0))

	_, err = svc.GetItem(ctx, itemID)
	require.True(t, shared.IsNotFound(err))
	require.Empty(t, repo.entries)
	require.Empty(t, repo.spoilage)
}

func TestUpdateEntryCannotGrowRemovalPastStock(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	itemID := registerRawItem(t, svc, "onions", "10", "1")
	removed, err := svc.RemoveStock(ctx, RemoveStockInput{ItemID: itemID, Qty: dec("5")})
	require.NoError(t, err)

	grown := dec("50")
	_, err = svc.UpdateEntry(ctx, UpdateEntryInput{EntryID: removed.EntryID, Qty: &grown})
	var insufficient *shared.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.True(t, insufficient.Available.Equal(dec("10")), "available = %s", insufficient.Available)

	stock, err := svc.CurrentStock(ctx, itemID)
	require.NoError(t, err)
	require.True(t, stock.Qty.Equal(dec("5")), "rejected edit must not change the balance")
}

func TestUpdateEntryRejectsRemovalCost(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	itemID := registerRawItem(t, svc, "garlic", "10", "2")
	removed, err := svc.RemoveStock(ctx, RemoveStockInput{ItemID: itemID, Qty: dec("4")})
	require.NoError(t, err)

	cost := dec("3")
	_, err = svc.UpdateEntry(ctx, UpdateEntryInput{EntryID: removed.EntryID, UnitCost: &cost})
	var validation *shared.ValidationError
	require.ErrorAs(t, err, &validation)
	require.Equal(t, "unit_cost", validation.Field)

	entry, err := (*memTx)(repo).GetEntry(ctx, removed.EntryID)
	require.NoError(t, err)
	require.True(t, entry.UnitCost.Equal(dec("2")), "removal keeps the average cost")
}

func TestUpdateEntryShrinkAdditionGuardsBalance(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	itemID := registerRawItem(t, svc, "celery", "0", "0")
	added, err := svc.AddStock(ctx, AddStockInput{ItemID: itemID, Qty: dec("10"), UnitCost: dec("1")})
	require.NoError(t, err)
	_, err = svc.RemoveStock(ctx, RemoveStockInput{ItemID: itemID, Qty: dec("8")})
	require.NoError(t, err)

	shrunk := dec("5")
	_, err = svc.UpdateEntry(ctx, UpdateEntryInput{EntryID: added.EntryID, Qty: &shrunk})
	var consistency *shared.ConsistencyError
	require.ErrorAs(t, err, &consistency)

	stock, err := svc.CurrentStock(ctx, itemID)
	require.NoError(t, err)
	require.True(t, stock.Qty.Equal(dec("2")))
}

func TestLowStockItems(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	lowID, err := svc.RegisterItem(ctx, RegisterItemInput{
		Item:            Item{Name: "vanilla", CategoryID: 1, BaseUnit: uom.Gram, LowStockThreshold: dec("20")},
		InitialQty:      dec("15"),
		InitialUnitCost: dec("1"),
	})
	require.NoError(t, err)
	_, err = svc.RegisterItem(ctx, RegisterItemInput{
		Item:            Item{Name: "cocoa", CategoryID: 1, BaseUnit: uom.Gram, LowStockThreshold: dec("20")},
		InitialQty:      dec("500"),
		InitialUnitCost: dec("1"),
	})
	require.NoError(t, err)

	items, err := svc.LowStockItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, lowID.ItemID, items[0].ID)
}
