package masterdata

import "github.com/shopspring/decimal"

// Category groups items. The optional revenue-group link opts the category
// into cost-vs-revenue reporting.
type Category struct {
	ID             int64
	Name           string
	RevenueGroupID *int64
}

// Tax is a live tax record. Ledger entries freeze a snapshot of it at write
// time, so editing or deleting a tax never rewrites history.
type Tax struct {
	ID   int64
	Name string
	Rate decimal.Decimal
}

// Vendor is a supplier of stock. Like taxes, vendors are snapshotted into
// entries and may be deleted freely.
type Vendor struct {
	ID      int64
	Name    string
	Phone   string
	Email   string
	Address string
	Active  bool
}

// ListFilters narrows list queries.
type ListFilters struct {
	Search string
}
