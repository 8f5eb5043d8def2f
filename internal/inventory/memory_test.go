package inventory

import (
	"context"
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/brigade-erp/brigade-erp/internal/shared"
)

// memRepo is the in-memory repository used by the service tests. WithTx
// snapshots the state and restores it when the callback fails, matching the
// all-or-nothing behaviour of the real transaction.
type memRepo struct {
	nextItemID  int64
	nextEntryID int64
	items       map[int64]Item
	entries     []LedgerEntry
	spoilage    []Spoilage
	ingredients map[int64]decimal.Decimal
	taxes       map[int64]TaxSnapshot
	vendors     map[int64]VendorSnapshot
}

func newMemRepo() *memRepo {
	return &memRepo{
		items:       map[int64]Item{},
		ingredients: map[int64]decimal.Decimal{},
		taxes:       map[int64]TaxSnapshot{},
		vendors:     map[int64]VendorSnapshot{},
	}
}

func (m *memRepo) clone() *memRepo {
	cp := &memRepo{
		nextItemID:  m.nextItemID,
		nextEntryID: m.nextEntryID,
		items:       make(map[int64]Item, len(m.items)),
		entries:     append([]LedgerEntry(nil), m.entries...),
		spoilage:    append([]Spoilage(nil), m.spoilage...),
		ingredients: make(map[int64]decimal.Decimal, len(m.ingredients)),
		taxes:       m.taxes,
		vendors:     m.vendors,
	}
	for k, v := range m.items {
		cp.items[k] = v
	}
	for k, v := range m.ingredients {
		cp.ingredients[k] = v
	}
	return cp
}

func (m *memRepo) restore(snap *memRepo) {
	m.nextItemID = snap.nextItemID
	m.nextEntryID = snap.nextEntryID
	m.items = snap.items
	m.entries = snap.entries
	m.spoilage = snap.spoilage
	m.ingredients = snap.ingredients
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snap := m.clone()
	if err := fn(ctx, (*memTx)(m)); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memRepo) GetItem(_ context.Context, id int64) (Item, error) {
	item, ok := m.items[id]
	if !ok {
		return Item{}, &shared.NotFoundError{Entity: "item", ID: id}
	}
	return item, nil
}

func (m *memRepo) ListEntries(_ context.Context, filter EntryFilter) ([]LedgerEntry, error) {
	var out []LedgerEntry
	for _, e := range m.entries {
		if e.ItemID != filter.ItemID {
			continue
		}
		if e.Voided && !filter.IncludeVoided {
			continue
		}
		if !filter.From.IsZero() && e.MovedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !e.MovedAt.Before(filter.To) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].MovedAt.Equal(out[j].MovedAt) {
			return out[i].MovedAt.After(out[j].MovedAt)
		}
		return out[i].ID > out[j].ID
	})
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRepo) StockTotals(ctx context.Context, itemID int64) (Stock, error) {
	return (*memTx)(m).StockTotals(ctx, itemID)
}

func (m *memRepo) LowStockItems(_ context.Context) ([]Item, error) {
	var out []Item
	for _, item := range m.items {
		if item.LowStockThreshold.Sign() <= 0 {
			continue
		}
		var s Stock
		for _, e := range m.entries {
			if e.ItemID == item.ID {
				s = s.Apply(e)
			}
		}
		if !s.Qty.GreaterThan(item.LowStockThreshold) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memRepo) TaxSnapshot(_ context.Context, taxID int64) (TaxSnapshot, error) {
	snap, ok := m.taxes[taxID]
	if !ok {
		return TaxSnapshot{}, &shared.NotFoundError{Entity: "tax", ID: taxID}
	}
	return snap, nil
}

func (m *memRepo) VendorSnapshot(_ context.Context, vendorID int64) (VendorSnapshot, error) {
	snap, ok := m.vendors[vendorID]
	if !ok {
		return VendorSnapshot{}, &shared.NotFoundError{Entity: "vendor", ID: vendorID}
	}
	return snap, nil
}

type memTx memRepo

func (m *memTx) InsertItem(_ context.Context, item Item) (int64, error) {
	m.nextItemID++
	item.ID = m.nextItemID
	m.items[item.ID] = item
	return item.ID, nil
}

func (m *memTx) GetItemForUpdate(ctx context.Context, id int64) (Item, error) {
	return (*memRepo)(m).GetItem(ctx, id)
}

func (m *memTx) UpdateItem(_ context.Context, item Item) error {
	if _, ok := m.items[item.ID]; !ok {
		return &shared.NotFoundError{Entity: "item", ID: item.ID}
	}
	m.items[item.ID] = item
	return nil
}

func (m *memTx) DeleteItem(_ context.Context, id int64) error {
	delete(m.items, id)
	return nil
}

func (m *memTx) SetLastUnitCost(_ context.Context, itemID int64, cost decimal.Decimal) error {
	item, ok := m.items[itemID]
	if !ok {
		return &shared.NotFoundError{Entity: "item", ID: itemID}
	}
	item.LastUnitCost = cost
	m.items[itemID] = item
	return nil
}

func (m *memTx) InsertEntry(_ context.Context, entry LedgerEntry) (int64, error) {
	m.nextEntryID++
	entry.ID = m.nextEntryID
	m.entries = append(m.entries, entry)
	return entry.ID, nil
}

func (m *memTx) GetEntry(_ context.Context, id int64) (LedgerEntry, error) {
	for _, e := range m.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return LedgerEntry{}, &shared.NotFoundError{Entity: "ledger entry", ID: id}
}

func (m *memTx) UpdateEntry(_ context.Context, entry LedgerEntry) error {
	for i, e := range m.entries {
		if e.ID == entry.ID && !e.Voided {
			m.entries[i] = entry
			return nil
		}
	}
	return &shared.NotFoundError{Entity: "ledger entry", ID: entry.ID}
}

func (m *memTx) MarkVoided(_ context.Context, id int64) error {
	for i, e := range m.entries {
		if e.ID == id {
			if e.Voided {
				return &shared.ConsistencyError{EntryID: id, Reason: "entry is already voided"}
			}
			m.entries[i].Voided = true
			return nil
		}
	}
	return &shared.NotFoundError{Entity: "ledger entry", ID: id}
}

func (m *memTx) VoidProduction(_ context.Context, productionRef string) ([]int64, error) {
	var ids []int64
	for i, e := range m.entries {
		if e.ProductionRef == productionRef && !e.Voided {
			m.entries[i].Voided = true
			ids = append(ids, e.ID)
		}
	}
	return ids, nil
}

func (m *memTx) StockTotals(_ context.Context, itemID int64) (Stock, error) {
	var s Stock
	for _, e := range m.entries {
		if e.ItemID == itemID {
			s = s.Apply(e)
		}
	}
	return s, nil
}

func (m *memTx) RescaleEntries(_ context.Context, itemID int64, factor decimal.Decimal) error {
	for i, e := range m.entries {
		if e.ItemID == itemID {
			m.entries[i].Quantity = e.Quantity.Mul(factor)
		}
	}
	return nil
}

func (m *memTx) RescaleIngredients(_ context.Context, itemID int64, factor decimal.Decimal) error {
	if qty, ok := m.ingredients[itemID]; ok {
		m.ingredients[itemID] = qty.Mul(factor)
	}
	return nil
}

func (m *memTx) RescaleSpoilage(_ context.Context, itemID int64, factor decimal.Decimal) error {
	for i, sp := range m.spoilage {
		if sp.ItemID == itemID {
			m.spoilage[i].Qty = sp.Qty.Mul(factor)
		}
	}
	return nil
}

func (m *memTx) DeleteLedgerForItem(_ context.Context, itemID int64) error {
	// Mirrors the spoilage_records.entry_id foreign key.
	for _, sp := range m.spoilage {
		for _, e := range m.entries {
			if e.ItemID == itemID && sp.EntryID == e.ID {
				return shared.WrapStorage("delete ledger", errors.New("spoilage record still references entry"))
			}
		}
	}
	kept := m.entries[:0]
	for _, e := range m.entries {
		if e.ItemID != itemID {
			kept = append(kept, e)
		}
	}
	m.entries = kept
	return nil
}

func (m *memTx) DeleteIngredientsForItem(_ context.Context, itemID int64) error {
	delete(m.ingredients, itemID)
	return nil
}

func (m *memTx) DeleteSpoilageForItem(_ context.Context, itemID int64) error {
	kept := m.spoilage[:0]
	for _, sp := range m.spoilage {
		if sp.ItemID != itemID {
			kept = append(kept, sp)
		}
	}
	m.spoilage = kept
	return nil
}

func (m *memTx) SharedProductionRefs(_ context.Context, itemID int64) (int64, error) {
	refs := map[string]bool{}
	for _, e := range m.entries {
		if e.ItemID == itemID && e.ProductionRef != "" && !e.Voided {
			refs[e.ProductionRef] = true
		}
	}
	var n int64
	for ref := range refs {
		for _, e := range m.entries {
			if e.ProductionRef == ref && e.ItemID != itemID && !e.Voided {
				n++
				break
			}
		}
	}
	return n, nil
}

func (m *memTx) InsertSpoilage(_ context.Context, sp Spoilage) (int64, error) {
	sp.ID = int64(len(m.spoilage) + 1)
	m.spoilage = append(m.spoilage, sp)
	return sp.ID, nil
}

// memRecipes serves fixed per-serving requirement lines.
type memRecipes struct {
	lines map[int64][]RequirementLine
}

func (m *memRecipes) RequirementLines(_ context.Context, recipeID int64, servings decimal.Decimal) ([]RequirementLine, error) {
	perServing, ok := m.lines[recipeID]
	if !ok {
		return nil, &shared.NotFoundError{Entity: "recipe", ID: recipeID}
	}
	out := make([]RequirementLine, 0, len(perServing))
	for _, line := range perServing {
		out = append(out, RequirementLine{ItemID: line.ItemID, Qty: line.Qty.Mul(servings)})
	}
	return out, nil
}

// denyPolicy refuses every insertion with a fixed message.
type denyPolicy struct{ message string }

func (p denyPolicy) AllowItemInsert(context.Context, int64) (shared.PolicyDecision, error) {
	return shared.PolicyDecision{Allowed: false, Message: p.message}, nil
}
