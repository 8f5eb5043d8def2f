package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/brigade-erp/brigade-erp/internal/shared"
	"github.com/brigade-erp/brigade-erp/internal/uom"
)

// Repository persists the inventory ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return shared.WrapStorage("begin tx", err)
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return shared.WrapStorage("commit tx", err)
	}
	return nil
}

const itemColumns = `id, category_id, name, barcode, base_unit, per_piece_unit, qty_per_piece,
default_tax_id, vendor_id, low_stock_threshold, is_finished_product, recipe_id, last_unit_cost,
created_at, updated_at`

const entryColumns = `id, operation_id, item_id, recipe_id, production_ref,
tax_id, tax_name, tax_rate, vendor_id, vendor_name,
unit_cost, unit_cost_net, unit_cost_tax, quantity,
moved_at, beginning_inventory_at, receipt_number, remarks, voided, created_at`

const stockTotalsSQL = `SELECT
COALESCE(SUM(CASE WHEN o.kind = 'add_stock' THEN e.quantity ELSE -e.quantity END), 0),
COALESCE(SUM(CASE WHEN o.kind = 'add_stock' THEN e.unit_cost * e.quantity ELSE -e.unit_cost * e.quantity END), 0),
COALESCE(SUM(CASE WHEN o.kind = 'add_stock' THEN e.unit_cost_net * e.quantity ELSE -e.unit_cost_net * e.quantity END), 0),
COALESCE(SUM(CASE WHEN o.kind = 'add_stock' THEN e.unit_cost_tax * e.quantity ELSE -e.unit_cost_tax * e.quantity END), 0)
FROM ledger_entries e
JOIN operations o ON o.id = e.operation_id
WHERE e.item_id = $1 AND NOT e.voided`

// GetItem loads item master data.
func (r *Repository) GetItem(ctx context.Context, id int64) (Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id)
	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, &shared.NotFoundError{Entity: "item", ID: id}
	}
	if err != nil {
		return Item{}, shared.WrapStorage("get item", err)
	}
	return item, nil
}

// StockTotals aggregates the non-voided ledger of one item.
func (r *Repository) StockTotals(ctx context.Context, itemID int64) (Stock, error) {
	return stockTotals(ctx, r.pool, itemID)
}

// ListEntries returns ledger entries for an item, most recent movement first.
func (r *Repository) ListEntries(ctx context.Context, filter EntryFilter) ([]LedgerEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM ledger_entries
WHERE item_id = $1
AND ($2 OR NOT voided)
AND moved_at >= COALESCE($3, '-infinity'::timestamptz)
AND moved_at < COALESCE($4, 'infinity'::timestamptz)
ORDER BY moved_at DESC, id DESC
LIMIT $5`, filter.ItemID, filter.IncludeVoided, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, shared.WrapStorage("list entries", err)
	}
	defer rows.Close()
	var entries []LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, shared.WrapStorage("scan entry", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.WrapStorage("list entries", err)
	}
	return entries, nil
}

// LowStockItems lists items whose current quantity is at or below their
// threshold.
func (r *Repository) LowStockItems(ctx context.Context) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM items i
WHERE i.low_stock_threshold > 0
AND (SELECT COALESCE(SUM(CASE WHEN o.kind = 'add_stock' THEN e.quantity ELSE -e.quantity END), 0)
     FROM ledger_entries e JOIN operations o ON o.id = e.operation_id
     WHERE e.item_id = i.id AND NOT e.voided) <= i.low_stock_threshold
ORDER BY i.name`)
	if err != nil {
		return nil, shared.WrapStorage("low stock items", err)
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, shared.WrapStorage("scan item", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// TaxSnapshot freezes a live tax record.
func (r *Repository) TaxSnapshot(ctx context.Context, taxID int64) (TaxSnapshot, error) {
	var snap TaxSnapshot
	var name string
	var rate decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT name, rate FROM taxes WHERE id = $1`, taxID).Scan(&name, &rate)
	if errors.Is(err, pgx.ErrNoRows) {
		return TaxSnapshot{}, &shared.NotFoundError{Entity: "tax", ID: taxID}
	}
	if err != nil {
		return TaxSnapshot{}, shared.WrapStorage("tax snapshot", err)
	}
	id := taxID
	snap = TaxSnapshot{TaxID: &id, Name: name, Rate: rate}
	return snap, nil
}

// VendorSnapshot freezes a live vendor record.
func (r *Repository) VendorSnapshot(ctx context.Context, vendorID int64) (VendorSnapshot, error) {
	var name string
	err := r.pool.QueryRow(ctx, `SELECT name FROM vendors WHERE id = $1`, vendorID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return VendorSnapshot{}, &shared.NotFoundError{Entity: "vendor", ID: vendorID}
	}
	if err != nil {
		return VendorSnapshot{}, shared.WrapStorage("vendor snapshot", err)
	}
	id := vendorID
	return VendorSnapshot{VendorID: &id, Name: name}, nil
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertItem(ctx context.Context, item Item) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO items
(category_id, name, barcode, base_unit, per_piece_unit, qty_per_piece, default_tax_id, vendor_id,
 low_stock_threshold, is_finished_product, recipe_id, last_unit_cost, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NOW(),NOW()) RETURNING id`,
		item.CategoryID, item.Name, item.Barcode, string(item.BaseUnit), perPieceText(item.PerPieceUnit),
		item.QtyPerPiece, item.DefaultTaxID, item.VendorID, item.LowStockThreshold,
		item.IsFinishedProduct, item.RecipeID, item.LastUnitCost).Scan(&id)
	if err != nil {
		return 0, shared.WrapStorage("insert item", err)
	}
	return id, nil
}

func (r *txRepository) GetItemForUpdate(ctx context.Context, id int64) (Item, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1 FOR UPDATE`, id)
	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, &shared.NotFoundError{Entity: "item", ID: id}
	}
	if err != nil {
		return Item{}, shared.WrapStorage("get item", err)
	}
	return item, nil
}

func (r *txRepository) UpdateItem(ctx context.Context, item Item) error {
	_, err := r.tx.Exec(ctx, `UPDATE items SET
category_id=$2, name=$3, barcode=$4, base_unit=$5, per_piece_unit=$6, qty_per_piece=$7,
default_tax_id=$8, vendor_id=$9, low_stock_threshold=$10, is_finished_product=$11,
recipe_id=$12, updated_at=NOW()
WHERE id=$1`,
		item.ID, item.CategoryID, item.Name, item.Barcode, string(item.BaseUnit),
		perPieceText(item.PerPieceUnit), item.QtyPerPiece, item.DefaultTaxID, item.VendorID,
		item.LowStockThreshold, item.IsFinishedProduct, item.RecipeID)
	return shared.WrapStorage("update item", err)
}

func (r *txRepository) DeleteItem(ctx context.Context, id int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	return shared.WrapStorage("delete item", err)
}

func (r *txRepository) SetLastUnitCost(ctx context.Context, itemID int64, cost decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE items SET last_unit_cost = $2, updated_at = NOW() WHERE id = $1`, itemID, cost)
	return shared.WrapStorage("set last unit cost", err)
}

func (r *txRepository) InsertEntry(ctx context.Context, e LedgerEntry) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO ledger_entries
(operation_id, item_id, recipe_id, production_ref, tax_id, tax_name, tax_rate,
 vendor_id, vendor_name, unit_cost, unit_cost_net, unit_cost_tax, quantity,
 moved_at, beginning_inventory_at, receipt_number, remarks, voided, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,FALSE,NOW())
RETURNING id`,
		int64(e.OperationID), e.ItemID, e.RecipeID, nullString(e.ProductionRef),
		e.Tax.TaxID, e.Tax.Name, e.TaxRate, e.Vendor.VendorID, e.Vendor.Name,
		e.UnitCost, e.UnitCostNet, e.UnitCostTax, e.Quantity,
		e.MovedAt, e.BeginningInventoryAt, e.ReceiptNumber, e.Remarks).Scan(&id)
	if err != nil {
		return 0, shared.WrapStorage("insert ledger entry", err)
	}
	return id, nil
}

func (r *txRepository) GetEntry(ctx context.Context, id int64) (LedgerEntry, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1 FOR UPDATE`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return LedgerEntry{}, &shared.NotFoundError{Entity: "ledger entry", ID: id}
	}
	if err != nil {
		return LedgerEntry{}, shared.WrapStorage("get entry", err)
	}
	return entry, nil
}

func (r *txRepository) UpdateEntry(ctx context.Context, e LedgerEntry) error {
	_, err := r.tx.Exec(ctx, `UPDATE ledger_entries SET
tax_id=$2, tax_name=$3, tax_rate=$4, unit_cost=$5, unit_cost_net=$6, unit_cost_tax=$7,
quantity=$8, moved_at=$9, receipt_number=$10, remarks=$11
WHERE id=$1 AND NOT voided`,
		e.ID, e.Tax.TaxID, e.Tax.Name, e.TaxRate, e.UnitCost, e.UnitCostNet, e.UnitCostTax,
		e.Quantity, e.MovedAt, e.ReceiptNumber, e.Remarks)
	return shared.WrapStorage("update entry", err)
}

func (r *txRepository) MarkVoided(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE ledger_entries SET voided = TRUE WHERE id = $1 AND NOT voided`, id)
	if err != nil {
		return shared.WrapStorage("void entry", err)
	}
	if tag.RowsAffected() == 0 {
		return &shared.ConsistencyError{EntryID: id, Reason: "entry is already voided"}
	}
	return nil
}

func (r *txRepository) VoidProduction(ctx context.Context, productionRef string) ([]int64, error) {
	rows, err := r.tx.Query(ctx, `UPDATE ledger_entries SET voided = TRUE
WHERE production_ref = $1 AND NOT voided RETURNING id`, productionRef)
	if err != nil {
		return nil, shared.WrapStorage("void production", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, shared.WrapStorage("void production", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *txRepository) StockTotals(ctx context.Context, itemID int64) (Stock, error) {
	return stockTotals(ctx, r.tx, itemID)
}

func (r *txRepository) RescaleEntries(ctx context.Context, itemID int64, factor decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE ledger_entries SET quantity = quantity * $2 WHERE item_id = $1`, itemID, factor)
	return shared.WrapStorage("rescale entries", err)
}

func (r *txRepository) RescaleIngredients(ctx context.Context, itemID int64, factor decimal.Decimal) error {
	// Only piece-denominated lines track the per-piece configuration;
	// measured lines keep their physical amount.
	_, err := r.tx.Exec(ctx, `UPDATE ingredients SET qty = qty * $2 WHERE item_id = $1 AND unit = 'piece'`, itemID, factor)
	return shared.WrapStorage("rescale ingredients", err)
}

func (r *txRepository) RescaleSpoilage(ctx context.Context, itemID int64, factor decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE spoilage_records SET qty = qty * $2 WHERE item_id = $1`, itemID, factor)
	return shared.WrapStorage("rescale spoilage", err)
}

func (r *txRepository) DeleteLedgerForItem(ctx context.Context, itemID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM ledger_entries WHERE item_id = $1`, itemID)
	return shared.WrapStorage("delete ledger", err)
}

func (r *txRepository) DeleteIngredientsForItem(ctx context.Context, itemID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM ingredients WHERE item_id = $1`, itemID)
	return shared.WrapStorage("delete ingredients", err)
}

func (r *txRepository) DeleteSpoilageForItem(ctx context.Context, itemID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM spoilage_records WHERE item_id = $1`, itemID)
	return shared.WrapStorage("delete spoilage", err)
}

// SharedProductionRefs counts non-voided production events of this item that
// also touch other items' ledgers.
func (r *txRepository) SharedProductionRefs(ctx context.Context, itemID int64) (int64, error) {
	var n int64
	err := r.tx.QueryRow(ctx, `SELECT COUNT(DISTINCT e.production_ref) FROM ledger_entries e
WHERE e.item_id = $1 AND e.production_ref IS NOT NULL AND NOT e.voided
AND EXISTS (SELECT 1 FROM ledger_entries o
            WHERE o.production_ref = e.production_ref AND o.item_id <> $1 AND NOT o.voided)`, itemID).Scan(&n)
	if err != nil {
		return 0, shared.WrapStorage("count production links", err)
	}
	return n, nil
}

func (r *txRepository) InsertSpoilage(ctx context.Context, sp Spoilage) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO spoilage_records (item_id, entry_id, qty, recorded_at, remarks)
VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		sp.ItemID, sp.EntryID, sp.Qty, sp.RecordedAt, sp.Remarks).Scan(&id)
	if err != nil {
		return 0, shared.WrapStorage("insert spoilage", err)
	}
	return id, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func stockTotals(ctx context.Context, q interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}, itemID int64) (Stock, error) {
	var s Stock
	err := q.QueryRow(ctx, stockTotalsSQL, itemID).Scan(&s.Qty, &s.CostGross, &s.CostNet, &s.CostTax)
	if err != nil {
		return Stock{}, shared.WrapStorage("stock totals", err)
	}
	return s, nil
}

func scanItem(row rowScanner) (Item, error) {
	var item Item
	var baseUnit string
	var perPiece *string
	err := row.Scan(&item.ID, &item.CategoryID, &item.Name, &item.Barcode, &baseUnit, &perPiece,
		&item.QtyPerPiece, &item.DefaultTaxID, &item.VendorID, &item.LowStockThreshold,
		&item.IsFinishedProduct, &item.RecipeID, &item.LastUnitCost, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Item{}, err
	}
	item.BaseUnit = uom.Unit(baseUnit)
	if perPiece != nil {
		u := uom.Unit(*perPiece)
		item.PerPieceUnit = &u
	}
	return item, nil
}

func scanEntry(row rowScanner) (LedgerEntry, error) {
	var e LedgerEntry
	var opID int64
	var productionRef *string
	err := row.Scan(&e.ID, &opID, &e.ItemID, &e.RecipeID, &productionRef,
		&e.Tax.TaxID, &e.Tax.Name, &e.TaxRate, &e.Vendor.VendorID, &e.Vendor.Name,
		&e.UnitCost, &e.UnitCostNet, &e.UnitCostTax, &e.Quantity,
		&e.MovedAt, &e.BeginningInventoryAt, &e.ReceiptNumber, &e.Remarks, &e.Voided, &e.CreatedAt)
	if err != nil {
		return LedgerEntry{}, err
	}
	e.OperationID = OperationID(opID)
	e.Tax.Rate = e.TaxRate
	if productionRef != nil {
		e.ProductionRef = *productionRef
	}
	return e, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func perPieceText(u *uom.Unit) any {
	if u == nil {
		return nil
	}
	return string(*u)
}
