package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/brigade-erp/brigade-erp/internal/inventory"
	"github.com/brigade-erp/brigade-erp/internal/shared"
)

// Repository persists revenue groups and records in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) InsertGroup(ctx context.Context, group RevenueGroup) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO revenue_groups (name) VALUES ($1) RETURNING id`, group.Name).Scan(&id)
	if err != nil {
		return 0, shared.WrapStorage("insert revenue group", err)
	}
	return id, nil
}

func (r *Repository) GetGroup(ctx context.Context, id int64) (RevenueGroup, error) {
	var group RevenueGroup
	err := r.pool.QueryRow(ctx, `SELECT id, name FROM revenue_groups WHERE id = $1`, id).Scan(&group.ID, &group.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return RevenueGroup{}, &shared.NotFoundError{Entity: "revenue group", ID: id}
	}
	if err != nil {
		return RevenueGroup{}, shared.WrapStorage("get revenue group", err)
	}
	return group, nil
}

func (r *Repository) UpdateGroup(ctx context.Context, group RevenueGroup) error {
	_, err := r.pool.Exec(ctx, `UPDATE revenue_groups SET name = $2 WHERE id = $1`, group.ID, group.Name)
	return shared.WrapStorage("update revenue group", err)
}

func (r *Repository) DeleteGroup(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM revenue_records WHERE group_id = $1`, id)
	if err != nil {
		return shared.WrapStorage("delete revenue records", err)
	}
	_, err = r.pool.Exec(ctx, `UPDATE categories SET revenue_group_id = NULL WHERE revenue_group_id = $1`, id)
	if err != nil {
		return shared.WrapStorage("unlink categories", err)
	}
	_, err = r.pool.Exec(ctx, `DELETE FROM revenue_groups WHERE id = $1`, id)
	return shared.WrapStorage("delete revenue group", err)
}

func (r *Repository) ListGroups(ctx context.Context) ([]RevenueGroup, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM revenue_groups ORDER BY name`)
	if err != nil {
		return nil, shared.WrapStorage("list revenue groups", err)
	}
	defer rows.Close()
	var groups []RevenueGroup
	for rows.Next() {
		var group RevenueGroup
		if err := rows.Scan(&group.ID, &group.Name); err != nil {
			return nil, shared.WrapStorage("scan revenue group", err)
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

// UpsertRevenue relies on the unique index over (group_id, month).
func (r *Repository) UpsertRevenue(ctx context.Context, record RevenueRecord) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO revenue_records (group_id, month, amount)
VALUES ($1,$2,$3)
ON CONFLICT (group_id, month) DO UPDATE SET amount = EXCLUDED.amount
RETURNING id`, record.GroupID, record.Month.Start(), record.Amount).Scan(&id)
	if err != nil {
		return 0, shared.WrapStorage("upsert revenue", err)
	}
	return id, nil
}

func (r *Repository) GetRevenue(ctx context.Context, groupID int64, month shared.Month) (RevenueRecord, error) {
	record := RevenueRecord{GroupID: groupID, Month: month}
	err := r.pool.QueryRow(ctx, `SELECT id, amount FROM revenue_records WHERE group_id = $1 AND month = $2`,
		groupID, month.Start()).Scan(&record.ID, &record.Amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return RevenueRecord{}, &shared.NotFoundError{Entity: "revenue record", ID: groupID}
	}
	if err != nil {
		return RevenueRecord{}, shared.WrapStorage("get revenue", err)
	}
	return record, nil
}

func (r *Repository) ListRevenue(ctx context.Context, groupID int64) ([]RevenueRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, month, amount FROM revenue_records
WHERE group_id = $1 ORDER BY month DESC`, groupID)
	if err != nil {
		return nil, shared.WrapStorage("list revenue", err)
	}
	defer rows.Close()
	var records []RevenueRecord
	for rows.Next() {
		record := RevenueRecord{GroupID: groupID}
		var month time.Time
		if err := rows.Scan(&record.ID, &month, &record.Amount); err != nil {
			return nil, shared.WrapStorage("scan revenue", err)
		}
		record.Month = shared.MonthOf(month)
		records = append(records, record)
	}
	return records, rows.Err()
}

func (r *Repository) GroupForCategory(ctx context.Context, categoryID int64) (*int64, error) {
	var groupID *int64
	err := r.pool.QueryRow(ctx, `SELECT revenue_group_id FROM categories WHERE id = $1`, categoryID).Scan(&groupID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &shared.NotFoundError{Entity: "category", ID: categoryID}
	}
	if err != nil {
		return nil, shared.WrapStorage("category group", err)
	}
	return groupID, nil
}

// ConsumptionNet sums the net cost of stock-usage movements for the month.
// Spoilage and vendor returns remove stock but are waste, not cost of sales.
func (r *Repository) ConsumptionNet(ctx context.Context, groupID int64, month shared.Month) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(e.unit_cost_net * e.quantity), 0)
FROM ledger_entries e
JOIN items i ON i.id = e.item_id
JOIN categories c ON c.id = i.category_id
WHERE c.revenue_group_id = $1
AND e.operation_id = $2
AND NOT e.voided
AND e.moved_at >= $3 AND e.moved_at < $4`,
		groupID, int64(inventory.OpStockUsage), month.Start(), month.End()).Scan(&total)
	if err != nil {
		return decimal.Decimal{}, shared.WrapStorage("consumption net", err)
	}
	return total, nil
}
