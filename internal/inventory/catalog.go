package inventory

// OperationKind tells the costing engine which side of the balance an
// operation sits on. It is the only operation attribute aggregation reads.
type OperationKind string

const (
	// KindAddStock increases stock.
	KindAddStock OperationKind = "add_stock"
	// KindRemoveStock decreases stock.
	KindRemoveStock OperationKind = "remove_stock"
)

// OperationID identifies a member of the fixed operation catalog.
type OperationID int64

// The operation catalog. Fixed: there is no mutation API beyond seed data.
const (
	OpInitialStock OperationID = 1
	OpPurchase     OperationID = 2
	OpYieldStock   OperationID = 3
	OpStockUsage   OperationID = 4
	OpSpoilage     OperationID = 5
	OpVendorReturn OperationID = 6
)

// Operation describes one stock-movement kind.
type Operation struct {
	ID        OperationID
	Kind      OperationKind
	Name      string
	SortOrder int
}

// Catalog lists every operation in display order.
var Catalog = []Operation{
	{ID: OpInitialStock, Kind: KindAddStock, Name: "Initial Stock", SortOrder: 10},
	{ID: OpPurchase, Kind: KindAddStock, Name: "Purchase", SortOrder: 20},
	{ID: OpYieldStock, Kind: KindAddStock, Name: "New Yield Stock", SortOrder: 30},
	{ID: OpStockUsage, Kind: KindRemoveStock, Name: "Stock Usage", SortOrder: 40},
	{ID: OpSpoilage, Kind: KindRemoveStock, Name: "Spoilage", SortOrder: 50},
	{ID: OpVendorReturn, Kind: KindRemoveStock, Name: "Return to Vendor", SortOrder: 60},
}

var catalogByID = func() map[OperationID]Operation {
	m := make(map[OperationID]Operation, len(Catalog))
	for _, op := range Catalog {
		m[op.ID] = op
	}
	return m
}()

// OperationByID looks up a catalog member.
func OperationByID(id OperationID) (Operation, bool) {
	op, ok := catalogByID[id]
	return op, ok
}

// Kind returns the aggregation sign of the operation, or "" for an unknown
// id.
func (id OperationID) Kind() OperationKind {
	return catalogByID[id].Kind
}

// Name returns the display name of the operation.
func (id OperationID) Name() string {
	return catalogByID[id].Name
}
