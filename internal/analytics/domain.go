package analytics

import (
	"github.com/shopspring/decimal"

	"github.com/brigade-erp/brigade-erp/internal/shared"
)

// RevenueGroup buckets item categories for cost-vs-revenue reporting. A
// category opts in by linking itself to a group; unlinked categories simply
// have no percentage.
type RevenueGroup struct {
	ID   int64
	Name string
}

// RevenueRecord is the revenue booked against a group for one month, net of
// sales tax. One row per (group, month); re-entry overwrites.
type RevenueRecord struct {
	ID      int64
	GroupID int64
	Month   shared.Month
	Amount  decimal.Decimal
}

// CostPercentage relates a month's consumed stock cost to the revenue booked
// against the category's group. The Has* flags tell an absent link and an
// absent revenue entry apart from a genuine zero.
type CostPercentage struct {
	CategoryID      int64           `json:"category_id"`
	GroupID         int64           `json:"group_id"`
	Month           shared.Month    `json:"month"`
	CostNet         decimal.Decimal `json:"cost_net"`
	Revenue         decimal.Decimal `json:"revenue"`
	Percent         decimal.Decimal `json:"percent"`
	HasRevenueGroup bool            `json:"has_revenue_group"`
	HasMonthAmount  bool            `json:"has_month_amount"`
}

// UpsertRevenueInput books one month of revenue for a group.
type UpsertRevenueInput struct {
	GroupID int64
	Month   shared.Month
	Amount  decimal.Decimal
	ActorID int64
}
