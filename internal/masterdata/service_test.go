package masterdata

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/brigade-erp/brigade-erp/internal/shared"
)

type memRepo struct {
	nextID     int64
	categories map[int64]Category
	taxes      map[int64]Tax
	vendors    map[int64]Vendor
	itemCounts map[int64]int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		categories: map[int64]Category{},
		taxes:      map[int64]Tax{},
		vendors:    map[int64]Vendor{},
		itemCounts: map[int64]int64{},
	}
}

func (m *memRepo) InsertCategory(_ context.Context, category Category) (int64, error) {
	m.nextID++
	category.ID = m.nextID
	m.categories[category.ID] = category
	return category.ID, nil
}

func (m *memRepo) GetCategory(_ context.Context, id int64) (Category, error) {
	category, ok := m.categories[id]
	if !ok {
		return Category{}, &shared.NotFoundError{Entity: "category", ID: id}
	}
	return category, nil
}

func (m *memRepo) UpdateCategory(_ context.Context, category Category) error {
	m.categories[category.ID] = category
	return nil
}

func (m *memRepo) DeleteCategory(_ context.Context, id int64) error {
	delete(m.categories, id)
	return nil
}

func (m *memRepo) ListCategories(_ context.Context, _ ListFilters) ([]Category, error) {
	var out []Category
	for _, category := range m.categories {
		out = append(out, category)
	}
	return out, nil
}

func (m *memRepo) CategoryItemCount(_ context.Context, id int64) (int64, error) {
	return m.itemCounts[id], nil
}

func (m *memRepo) InsertTax(_ context.Context, tax Tax) (int64, error) {
	m.nextID++
	tax.ID = m.nextID
	m.taxes[tax.ID] = tax
	return tax.ID, nil
}

func (m *memRepo) GetTax(_ context.Context, id int64) (Tax, error) {
	tax, ok := m.taxes[id]
	if !ok {
		return Tax{}, &shared.NotFoundError{Entity: "tax", ID: id}
	}
	return tax, nil
}

func (m *memRepo) UpdateTax(_ context.Context, tax Tax) error {
	m.taxes[tax.ID] = tax
	return nil
}

func (m *memRepo) DeleteTax(_ context.Context, id int64) error {
	delete(m.taxes, id)
	return nil
}

func (m *memRepo) ListTaxes(_ context.Context, _ ListFilters) ([]Tax, error) {
	var out []Tax
	for _, tax := range m.taxes {
		out = append(out, tax)
	}
	return out, nil
}

func (m *memRepo) InsertVendor(_ context.Context, vendor Vendor) (int64, error) {
	m.nextID++
	vendor.ID = m.nextID
	m.vendors[vendor.ID] = vendor
	return vendor.ID, nil
}

func (m *memRepo) GetVendor(_ context.Context, id int64) (Vendor, error) {
	vendor, ok := m.vendors[id]
	if !ok {
		return Vendor{}, &shared.NotFoundError{Entity: "vendor", ID: id}
	}
	return vendor, nil
}

func (m *memRepo) UpdateVendor(_ context.Context, vendor Vendor) error {
	m.vendors[vendor.ID] = vendor
	return nil
}

func (m *memRepo) DeleteVendor(_ context.Context, id int64) error {
	delete(m.vendors, id)
	return nil
}

func (m *memRepo) ListVendors(_ context.Context, _ ListFilters) ([]Vendor, error) {
	var out []Vendor
	for _, vendor := range m.vendors {
		out = append(out, vendor)
	}
	return out, nil
}

func TestTaxRateBounds(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.CreateTax(ctx, Tax{Name: "VAT", Rate: decimal.NewFromInt(-1)}, 0)
	var validation *shared.ValidationError
	require.ErrorAs(t, err, &validation)

	_, err = svc.CreateTax(ctx, Tax{Name: "VAT", Rate: decimal.NewFromInt(100)}, 0)
	require.ErrorAs(t, err, &validation)

	id, err := svc.CreateTax(ctx, Tax{Name: "VAT", Rate: decimal.RequireFromString("12.5")}, 0)
	require.NoError(t, err)

	tax, err := svc.GetTax(ctx, id)
	require.NoError(t, err)
	require.True(t, tax.Rate.Equal(decimal.RequireFromString("12.5")))
}

func TestDeleteCategoryRefusedWithItems(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	id, err := svc.CreateCategory(ctx, Category{Name: "Proteins"}, 0)
	require.NoError(t, err)
	repo.itemCounts[id] = 3

	err = svc.DeleteCategory(ctx, id, 0)
	var consistency *shared.ConsistencyError
	require.ErrorAs(t, err, &consistency)

	repo.itemCounts[id] = 0
	require.NoError(t, svc.DeleteCategory(ctx, id, 0))
}

func TestCategoryRevenueGroupLink(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	id, err := svc.CreateCategory(ctx, Category{Name: "Beverages"}, 0)
	require.NoError(t, err)

	groupID := int64(9)
	require.NoError(t, svc.UpdateCategory(ctx, Category{ID: id, Name: "Beverages", RevenueGroupID: &groupID}, 0))

	category, err := svc.GetCategory(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, category.RevenueGroupID)
	require.Equal(t, groupID, *category.RevenueGroupID)
}

func TestVendorLifecycle(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.CreateVendor(ctx, Vendor{}, 0)
	var validation *shared.ValidationError
	require.ErrorAs(t, err, &validation)

	id, err := svc.CreateVendor(ctx, Vendor{Name: "Metro Foods", Active: true}, 0)
	require.NoError(t, err)
	require.NoError(t, svc.UpdateVendor(ctx, Vendor{ID: id, Name: "Metro Foods GmbH", Active: true}, 0))

	vendor, err := svc.GetVendor(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Metro Foods GmbH", vendor.Name)

	require.NoError(t, svc.DeleteVendor(ctx, id, 0))
	_, err = svc.GetVendor(ctx, id)
	require.True(t, shared.IsNotFound(err))
}
