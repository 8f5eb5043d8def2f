package analytics

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/brigade-erp/brigade-erp/internal/inventory"
	"github.com/brigade-erp/brigade-erp/internal/shared"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// stockMovement is one ledger row as the consumption query sees it.
type stockMovement struct {
	GroupID int64
	Month   shared.Month
	Op      inventory.OperationID
	Net     decimal.Decimal
	Voided  bool
}

type memRepo struct {
	nextGroupID  int64
	nextRecordID int64
	groups       map[int64]RevenueGroup
	records      map[int64]map[string]RevenueRecord
	categories   map[int64]*int64
	movements    []stockMovement

	consumptionCalls int
}

func newMemRepo() *memRepo {
	return &memRepo{
		groups:     map[int64]RevenueGroup{},
		records:    map[int64]map[string]RevenueRecord{},
		categories: map[int64]*int64{},
	}
}

func (m *memRepo) InsertGroup(_ context.Context, group RevenueGroup) (int64, error) {
	m.nextGroupID++
	group.ID = m.nextGroupID
	m.groups[group.ID] = group
	return group.ID, nil
}

func (m *memRepo) GetGroup(_ context.Context, id int64) (RevenueGroup, error) {
	group, ok := m.groups[id]
	if !ok {
		return RevenueGroup{}, &shared.NotFoundError{Entity: "revenue group", ID: id}
	}
	return group, nil
}

func (m *memRepo) UpdateGroup(_ context.Context, group RevenueGroup) error {
	m.groups[group.ID] = group
	return nil
}

func (m *memRepo) DeleteGroup(_ context.Context, id int64) error {
	delete(m.groups, id)
	delete(m.records, id)
	for cat, gid := range m.categories {
		if gid != nil && *gid == id {
			m.categories[cat] = nil
		}
	}
	return nil
}

func (m *memRepo) ListGroups(_ context.Context) ([]RevenueGroup, error) {
	var out []RevenueGroup
	for _, group := range m.groups {
		out = append(out, group)
	}
	return out, nil
}

func (m *memRepo) UpsertRevenue(_ context.Context, record RevenueRecord) (int64, error) {
	byMonth, ok := m.records[record.GroupID]
	if !ok {
		byMonth = map[string]RevenueRecord{}
		m.records[record.GroupID] = byMonth
	}
	if existing, ok := byMonth[record.Month.String()]; ok {
		record.ID = existing.ID
	} else {
		m.nextRecordID++
		record.ID = m.nextRecordID
	}
	byMonth[record.Month.String()] = record
	return record.ID, nil
}

func (m *memRepo) GetRevenue(_ context.Context, groupID int64, month shared.Month) (RevenueRecord, error) {
	record, ok := m.records[groupID][month.String()]
	if !ok {
		return RevenueRecord{}, &shared.NotFoundError{Entity: "revenue record", ID: groupID}
	}
	return record, nil
}

func (m *memRepo) ListRevenue(_ context.Context, groupID int64) ([]RevenueRecord, error) {
	var out []RevenueRecord
	for _, record := range m.records[groupID] {
		out = append(out, record)
	}
	return out, nil
}

func (m *memRepo) GroupForCategory(_ context.Context, categoryID int64) (*int64, error) {
	gid, ok := m.categories[categoryID]
	if !ok {
		return nil, &shared.NotFoundError{Entity: "category", ID: categoryID}
	}
	return gid, nil
}

func (m *memRepo) ConsumptionNet(_ context.Context, groupID int64, month shared.Month) (decimal.Decimal, error) {
	m.consumptionCalls++
	var total decimal.Decimal
	for _, mv := range m.movements {
		if mv.GroupID != groupID || mv.Month != month || mv.Voided {
			continue
		}
		if mv.Op != inventory.OpStockUsage {
			continue
		}
		total = total.Add(mv.Net)
	}
	return total, nil
}

func TestCostPercentage(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	groupID, err := svc.CreateGroup(ctx, "Food", 0)
	require.NoError(t, err)
	repo.categories[10] = &groupID

	month, _ := shared.ParseMonth("2025-03")
	repo.movements = append(repo.movements,
		stockMovement{GroupID: groupID, Month: month, Op: inventory.OpStockUsage, Net: dec("3200")})
	_, err = svc.BookRevenue(ctx, UpsertRevenueInput{GroupID: groupID, Month: month, Amount: dec("10000")})
	require.NoError(t, err)

	figure, err := svc.CostPercentageForCategory(ctx, 10, month)
	require.NoError(t, err)
	require.True(t, figure.HasRevenueGroup)
	require.True(t, figure.HasMonthAmount)
	require.True(t, figure.Percent.Equal(dec("32")), "percent = %s", figure.Percent)
	require.True(t, figure.CostNet.Equal(dec("3200")))
	require.True(t, figure.Revenue.Equal(dec("10000")))
}

func TestCostPercentageUnlinkedCategory(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, nil)
	repo.categories[10] = nil

	month, _ := shared.ParseMonth("2025-03")
	figure, err := svc.CostPercentageForCategory(context.Background(), 10, month)
	require.NoError(t, err)
	require.False(t, figure.HasRevenueGroup)
	require.False(t, figure.HasMonthAmount)
	require.True(t, figure.Percent.IsZero())
}

func TestCostPercentageMissingMonthAmount(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	groupID, err := svc.CreateGroup(ctx, "Bar", 0)
	require.NoError(t, err)
	repo.categories[4] = &groupID
	month, _ := shared.ParseMonth("2025-04")
	repo.movements = append(repo.movements,
		stockMovement{GroupID: groupID, Month: month, Op: inventory.OpStockUsage, Net: dec("500")})

	figure, err := svc.CostPercentageForCategory(ctx, 4, month)
	require.NoError(t, err)
	require.True(t, figure.HasRevenueGroup)
	require.False(t, figure.HasMonthAmount)
	require.True(t, figure.CostNet.Equal(dec("500")), "cost still reported without revenue")
	require.True(t, figure.Percent.IsZero())
}

func TestCostPercentageCountsOnlyStockUsage(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	groupID, err := svc.CreateGroup(ctx, "Food", 0)
	require.NoError(t, err)
	repo.categories[10] = &groupID

	month, _ := shared.ParseMonth("2025-05")
	repo.movements = append(repo.movements,
		stockMovement{GroupID: groupID, Month: month, Op: inventory.OpStockUsage, Net: dec("3000")},
		stockMovement{GroupID: groupID, Month: month, Op: inventory.OpSpoilage, Net: dec("400")},
		stockMovement{GroupID: groupID, Month: month, Op: inventory.OpVendorReturn, Net: dec("200")},
		stockMovement{GroupID: groupID, Month: month, Op: inventory.OpStockUsage, Net: dec("999"), Voided: true})
	_, err = svc.BookRevenue(ctx, UpsertRevenueInput{GroupID: groupID, Month: month, Amount: dec("10000")})
	require.NoError(t, err)

	figure, err := svc.CostPercentageForCategory(ctx, 10, month)
	require.NoError(t, err)
	require.True(t, figure.CostNet.Equal(dec("3000")), "waste must not count as consumption, got %s", figure.CostNet)
	require.True(t, figure.Percent.Equal(dec("30")), "percent = %s", figure.Percent)
}

func TestBookRevenueOverwritesMonth(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	groupID, err := svc.CreateGroup(ctx, "Food", 0)
	require.NoError(t, err)
	month, _ := shared.ParseMonth("2025-03")

	first, err := svc.BookRevenue(ctx, UpsertRevenueInput{GroupID: groupID, Month: month, Amount: dec("8000")})
	require.NoError(t, err)
	second, err := svc.BookRevenue(ctx, UpsertRevenueInput{GroupID: groupID, Month: month, Amount: dec("9000")})
	require.NoError(t, err)
	require.Equal(t, first, second, "same (group, month) row reused")

	records, err := svc.RevenueHistory(ctx, groupID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.True(t, records[0].Amount.Equal(dec("9000")))
}

func TestDeleteGroupUnlinksCategories(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	groupID, err := svc.CreateGroup(ctx, "Food", 0)
	require.NoError(t, err)
	repo.categories[10] = &groupID

	require.NoError(t, svc.DeleteGroup(ctx, groupID, 0))

	month, _ := shared.ParseMonth("2025-03")
	figure, err := svc.CostPercentageForCategory(ctx, 10, month)
	require.NoError(t, err)
	require.False(t, figure.HasRevenueGroup)
}
