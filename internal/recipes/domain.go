package recipes

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/brigade-erp/brigade-erp/internal/uom"
)

// Recipe describes how one finished product is built. Yield is the number of
// servings one batch produces; ingredient quantities are stated per batch.
// A draft is a scratch copy that becomes visible to production only after
// promotion.
type Recipe struct {
	ID         int64
	Name       string
	GroupLabel string
	Yield      decimal.Decimal
	// MenuPrice is the gross selling price per serving, used for the
	// cost-percentage figure. Zero means not priced yet.
	MenuPrice decimal.Decimal
	Draft     bool
	SavedAt   *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Ingredient is one line of a recipe. The quantity is stated in Unit and
// converted into the item's base unit at costing time. One row per
// (recipe, item): writing the same item again replaces the line.
type Ingredient struct {
	ID       int64
	RecipeID int64
	ItemID   int64
	Qty      decimal.Decimal
	Unit     uom.Unit
}

// CostBreakdown carries a gross cost with its frozen net/tax split.
type CostBreakdown struct {
	Gross decimal.Decimal
	Net   decimal.Decimal
	Tax   decimal.Decimal
}

// Add returns the component-wise sum.
func (c CostBreakdown) Add(other CostBreakdown) CostBreakdown {
	return CostBreakdown{
		Gross: c.Gross.Add(other.Gross),
		Net:   c.Net.Add(other.Net),
		Tax:   c.Tax.Add(other.Tax),
	}
}

// Div scales the breakdown down by a divisor.
func (c CostBreakdown) Div(d decimal.Decimal) CostBreakdown {
	return CostBreakdown{
		Gross: c.Gross.Div(d),
		Net:   c.Net.Div(d),
		Tax:   c.Tax.Div(d),
	}
}

// IngredientCost is the independent cost contribution of one recipe line.
// Priced marks whether the underlying item had a defined average cost; an
// unpriced line contributes zero and is surfaced rather than hidden.
type IngredientCost struct {
	ItemID   int64
	ItemName string
	Qty      decimal.Decimal
	Unit     uom.Unit
	QtyBase  decimal.Decimal
	Cost     CostBreakdown
	Priced   bool
}

// RecipeCost is the full costing of a recipe: per-batch and per-serving
// totals plus the per-line contributions they are summed from.
type RecipeCost struct {
	RecipeID   int64
	Yield      decimal.Decimal
	Lines      []IngredientCost
	Total      CostBreakdown
	PerServing CostBreakdown
	// CostPercent is per-serving net cost over net menu price, as a
	// percentage. Nil when the recipe has no menu price.
	CostPercent *decimal.Decimal
}

// CreateRecipeInput opens a new recipe, as a draft by default.
type CreateRecipeInput struct {
	Name       string
	GroupLabel string
	Yield      decimal.Decimal
	MenuPrice  decimal.Decimal
	Draft      bool
	ActorID    int64
}

// UpdateRecipeInput mutates recipe header fields. Nil pointers leave a field
// untouched.
type UpdateRecipeInput struct {
	RecipeID   int64
	Name       *string
	GroupLabel *string
	Yield      *decimal.Decimal
	MenuPrice  *decimal.Decimal
	ActorID    int64
}

// UpsertIngredientInput writes one recipe line, replacing any existing line
// for the same item.
type UpsertIngredientInput struct {
	RecipeID int64
	ItemID   int64
	Qty      decimal.Decimal
	Unit     uom.Unit
	ActorID  int64
}

// ListFilter selects recipes.
type ListFilter struct {
	GroupLabel    string
	IncludeDrafts bool
}
