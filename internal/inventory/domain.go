package inventory

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/brigade-erp/brigade-erp/internal/uom"
)

// Item is a stockable product. Quantities in the ledger are always expressed
// in BaseUnit; PerPieceUnit plus QtyPerPiece describe an optional secondary
// per-piece measurement (e.g. a 750 ml bottle sold by the piece).
type Item struct {
	ID                int64
	CategoryID        int64
	Name              string
	Barcode           string
	BaseUnit          uom.Unit
	PerPieceUnit      *uom.Unit
	QtyPerPiece       decimal.Decimal
	DefaultTaxID      *int64
	VendorID          *int64
	LowStockThreshold decimal.Decimal
	IsFinishedProduct bool
	RecipeID          *int64
	// LastUnitCost is a display default for entry forms. Aggregation never
	// reads it.
	LastUnitCost decimal.Decimal
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPerPiece reports whether the secondary per-piece measurement is
// configured.
func (i Item) HasPerPiece() bool {
	return i.PerPieceUnit != nil
}

// TaxSnapshot is the tax reference frozen into a ledger entry at write time.
// It survives later edits or deletion of the live tax record.
type TaxSnapshot struct {
	TaxID *int64
	Name  string
	Rate  decimal.Decimal
}

// VendorSnapshot is the vendor reference frozen into a ledger entry at write
// time.
type VendorSnapshot struct {
	VendorID *int64
	Name     string
}

// LedgerEntry is one stock movement. Entries are append-only: after creation
// they may be edited in place until voided, and voiding is terminal. Quantity
// is always a positive magnitude; the operation kind implies the sign.
type LedgerEntry struct {
	ID          int64
	OperationID OperationID
	ItemID      int64
	RecipeID    *int64
	// ProductionRef groups the output and ingredient debits of one
	// production event. Empty for ordinary movements.
	ProductionRef string
	Tax           TaxSnapshot
	Vendor        VendorSnapshot
	UnitCost      decimal.Decimal
	UnitCostNet   decimal.Decimal
	UnitCostTax   decimal.Decimal
	TaxRate       decimal.Decimal
	Quantity      decimal.Decimal
	MovedAt       time.Time
	// BeginningInventoryAt is set on initial-stock entries only and pins
	// their ledger date.
	BeginningInventoryAt *time.Time
	ReceiptNumber        string
	Remarks              string
	Voided               bool
	CreatedAt            time.Time
}

// Stock aggregates the non-voided ledger of one item.
type Stock struct {
	Qty       decimal.Decimal
	CostGross decimal.Decimal
	CostNet   decimal.Decimal
	CostTax   decimal.Decimal
}

// AverageCost is the weighted-average unit cost of an item. Defined is false
// when the item holds no stock.
type AverageCost struct {
	Gross   decimal.Decimal
	Net     decimal.Decimal
	Tax     decimal.Decimal
	Defined bool
}

// Spoilage records wasted stock. The quantity is stored in the item's base
// unit and rescaled when the item's per-piece configuration changes.
type Spoilage struct {
	ID         int64
	ItemID     int64
	EntryID    int64
	Qty        decimal.Decimal
	RecordedAt time.Time
	Remarks    string
}

// EntryFilter selects ledger entries for listing.
type EntryFilter struct {
	ItemID        int64
	From          time.Time
	To            time.Time
	IncludeVoided bool
	Limit         int
}

// RegisterItemInput creates an item together with its opening ledger entry.
type RegisterItemInput struct {
	Item               Item
	InitialQty         decimal.Decimal
	InitialUnitCost    decimal.Decimal
	BeginningInventory time.Time
	ReceiptNumber      string
	Remarks            string
	ActorID            int64
}

// RegisterResult reports the outcome of item registration. Denied marks an
// external policy soft stop: nothing was written and DenyMessage explains why.
type RegisterResult struct {
	ItemID      int64
	EntryIDs    []int64
	Denied      bool
	DenyMessage string
}

// UpdateItemInput mutates item master data. Nil pointers leave a field
// untouched.
type UpdateItemInput struct {
	ItemID            int64
	Name              *string
	Barcode           *string
	CategoryID        *int64
	BaseUnit          *uom.Unit
	PerPieceUnit      *uom.Unit
	QtyPerPiece       *decimal.Decimal
	DefaultTaxID      *int64
	VendorID          *int64
	LowStockThreshold *decimal.Decimal
	ActorID           int64
}

// AddStockInput posts an inbound movement.
type AddStockInput struct {
	ItemID      int64
	OperationID OperationID
	Qty         decimal.Decimal
	// SecondaryUnit, when set, marks the quantity as entered in a
	// per-piece secondary measurement that must be converted into the
	// item's base unit.
	SecondaryUnit *uom.Unit
	UnitCost      decimal.Decimal
	TaxID         *int64
	VendorID      *int64
	MovedAt       time.Time
	ReceiptNumber string
	Remarks       string
	RequestKey    string
	ActorID       int64
}

// RemoveStockInput posts an outbound movement costed at the item's current
// weighted-average cost.
type RemoveStockInput struct {
	ItemID      int64
	OperationID OperationID
	Qty         decimal.Decimal
	MovedAt     time.Time
	Remarks     string
	RequestKey  string
	ActorID     int64
}

// MutationResult identifies the rows affected by a single-entry mutation.
type MutationResult struct {
	ItemID  int64
	EntryID int64
}

// UpdateEntryInput edits a non-voided ledger entry in place.
type UpdateEntryInput struct {
	EntryID       int64
	Qty           *decimal.Decimal
	UnitCost      *decimal.Decimal
	TaxID         *int64
	MovedAt       *time.Time
	ReceiptNumber *string
	Remarks       *string
	ActorID       int64
}

// ProduceYieldInput runs one production event: recipe ingredients are
// consumed and finished-product stock is emitted, all in one transaction.
type ProduceYieldInput struct {
	ItemID   int64
	Servings decimal.Decimal
	MovedAt  time.Time
	Remarks  string
	ActorID  int64
}

// YieldResult reports the rows of one production event.
type YieldResult struct {
	ProductionRef string
	OutputEntryID int64
	DebitEntryIDs []int64
}

// SpoilageInput records wasted stock.
type SpoilageInput struct {
	ItemID  int64
	Qty     decimal.Decimal
	MovedAt time.Time
	Remarks string
	ActorID int64
}

// RequirementLine is one ingredient demand of a production event, already
// converted into the ingredient item's base unit.
type RequirementLine struct {
	ItemID int64
	Qty    decimal.Decimal
}
