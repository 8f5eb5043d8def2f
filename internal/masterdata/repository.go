package masterdata

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brigade-erp/brigade-erp/internal/shared"
)

// Repository persists master data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) InsertCategory(ctx context.Context, category Category) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO categories (name, revenue_group_id) VALUES ($1,$2) RETURNING id`,
		category.Name, category.RevenueGroupID).Scan(&id)
	if err != nil {
		return 0, shared.WrapStorage("insert category", err)
	}
	return id, nil
}

func (r *Repository) GetCategory(ctx context.Context, id int64) (Category, error) {
	var category Category
	err := r.pool.QueryRow(ctx, `SELECT id, name, revenue_group_id FROM categories WHERE id = $1`, id).
		Scan(&category.ID, &category.Name, &category.RevenueGroupID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, &shared.NotFoundError{Entity: "category", ID: id}
	}
	if err != nil {
		return Category{}, shared.WrapStorage("get category", err)
	}
	return category, nil
}

func (r *Repository) UpdateCategory(ctx context.Context, category Category) error {
	_, err := r.pool.Exec(ctx, `UPDATE categories SET name = $2, revenue_group_id = $3 WHERE id = $1`,
		category.ID, category.Name, category.RevenueGroupID)
	return shared.WrapStorage("update category", err)
}

func (r *Repository) DeleteCategory(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	return shared.WrapStorage("delete category", err)
}

func (r *Repository) ListCategories(ctx context.Context, filters ListFilters) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, revenue_group_id FROM categories
WHERE ($1 = '' OR name ILIKE '%' || $1 || '%') ORDER BY name`, filters.Search)
	if err != nil {
		return nil, shared.WrapStorage("list categories", err)
	}
	defer rows.Close()
	var categories []Category
	for rows.Next() {
		var category Category
		if err := rows.Scan(&category.ID, &category.Name, &category.RevenueGroupID); err != nil {
			return nil, shared.WrapStorage("scan category", err)
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

func (r *Repository) CategoryItemCount(ctx context.Context, id int64) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM items WHERE category_id = $1`, id).Scan(&count)
	if err != nil {
		return 0, shared.WrapStorage("category item count", err)
	}
	return count, nil
}

func (r *Repository) InsertTax(ctx context.Context, tax Tax) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO taxes (name, rate) VALUES ($1,$2) RETURNING id`,
		tax.Name, tax.Rate).Scan(&id)
	if err != nil {
		return 0, shared.WrapStorage("insert tax", err)
	}
	return id, nil
}

func (r *Repository) GetTax(ctx context.Context, id int64) (Tax, error) {
	var tax Tax
	err := r.pool.QueryRow(ctx, `SELECT id, name, rate FROM taxes WHERE id = $1`, id).
		Scan(&tax.ID, &tax.Name, &tax.Rate)
	if errors.Is(err, pgx.ErrNoRows) {
		return Tax{}, &shared.NotFoundError{Entity: "tax", ID: id}
	}
	if err != nil {
		return Tax{}, shared.WrapStorage("get tax", err)
	}
	return tax, nil
}

func (r *Repository) UpdateTax(ctx context.Context, tax Tax) error {
	_, err := r.pool.Exec(ctx, `UPDATE taxes SET name = $2, rate = $3 WHERE id = $1`, tax.ID, tax.Name, tax.Rate)
	return shared.WrapStorage("update tax", err)
}

func (r *Repository) DeleteTax(ctx context.Context, id int64) error {
	// Items fall back to no default tax; entry snapshots are untouched.
	_, err := r.pool.Exec(ctx, `UPDATE items SET default_tax_id = NULL WHERE default_tax_id = $1`, id)
	if err != nil {
		return shared.WrapStorage("unlink tax", err)
	}
	_, err = r.pool.Exec(ctx, `DELETE FROM taxes WHERE id = $1`, id)
	return shared.WrapStorage("delete tax", err)
}

func (r *Repository) ListTaxes(ctx context.Context, filters ListFilters) ([]Tax, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, rate FROM taxes
WHERE ($1 = '' OR name ILIKE '%' || $1 || '%') ORDER BY name`, filters.Search)
	if err != nil {
		return nil, shared.WrapStorage("list taxes", err)
	}
	defer rows.Close()
	var taxes []Tax
	for rows.Next() {
		var tax Tax
		if err := rows.Scan(&tax.ID, &tax.Name, &tax.Rate); err != nil {
			return nil, shared.WrapStorage("scan tax", err)
		}
		taxes = append(taxes, tax)
	}
	return taxes, rows.Err()
}

func (r *Repository) InsertVendor(ctx context.Context, vendor Vendor) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO vendors (name, phone, email, address, active)
VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		vendor.Name, vendor.Phone, vendor.Email, vendor.Address, vendor.Active).Scan(&id)
	if err != nil {
		return 0, shared.WrapStorage("insert vendor", err)
	}
	return id, nil
}

func (r *Repository) GetVendor(ctx context.Context, id int64) (Vendor, error) {
	var vendor Vendor
	err := r.pool.QueryRow(ctx, `SELECT id, name, phone, email, address, active FROM vendors WHERE id = $1`, id).
		Scan(&vendor.ID, &vendor.Name, &vendor.Phone, &vendor.Email, &vendor.Address, &vendor.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return Vendor{}, &shared.NotFoundError{Entity: "vendor", ID: id}
	}
	if err != nil {
		return Vendor{}, shared.WrapStorage("get vendor", err)
	}
	return vendor, nil
}

func (r *Repository) UpdateVendor(ctx context.Context, vendor Vendor) error {
	_, err := r.pool.Exec(ctx, `UPDATE vendors SET name=$2, phone=$3, email=$4, address=$5, active=$6 WHERE id=$1`,
		vendor.ID, vendor.Name, vendor.Phone, vendor.Email, vendor.Address, vendor.Active)
	return shared.WrapStorage("update vendor", err)
}

func (r *Repository) DeleteVendor(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE items SET vendor_id = NULL WHERE vendor_id = $1`, id)
	if err != nil {
		return shared.WrapStorage("unlink vendor", err)
	}
	_, err = r.pool.Exec(ctx, `DELETE FROM vendors WHERE id = $1`, id)
	return shared.WrapStorage("delete vendor", err)
}

func (r *Repository) ListVendors(ctx context.Context, filters ListFilters) ([]Vendor, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, phone, email, address, active FROM vendors
WHERE ($1 = '' OR name ILIKE '%' || $1 || '%') ORDER BY name`, filters.Search)
	if err != nil {
		return nil, shared.WrapStorage("list vendors", err)
	}
	defer rows.Close()
	var vendors []Vendor
	for rows.Next() {
		var vendor Vendor
		if err := rows.Scan(&vendor.ID, &vendor.Name, &vendor.Phone, &vendor.Email, &vendor.Address, &vendor.Active); err != nil {
			return nil, shared.WrapStorage("scan vendor", err)
		}
		vendors = append(vendors, vendor)
	}
	return vendors, rows.Err()
}
