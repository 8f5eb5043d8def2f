package recipes

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/brigade-erp/brigade-erp/internal/inventory"
	"github.com/brigade-erp/brigade-erp/internal/shared"
	"github.com/brigade-erp/brigade-erp/internal/uom"
)

var hundred = decimal.NewFromInt(100)

// RepositoryPort abstracts recipe persistence.
type RepositoryPort interface {
	InsertRecipe(ctx context.Context, recipe Recipe) (int64, error)
	GetRecipe(ctx context.Context, id int64) (Recipe, error)
	UpdateRecipe(ctx context.Context, recipe Recipe) error
	DeleteRecipe(ctx context.Context, id int64) error
	ListRecipes(ctx context.Context, filter ListFilter) ([]Recipe, error)

	UpsertIngredient(ctx context.Context, ing Ingredient) (int64, error)
	DeleteIngredient(ctx context.Context, recipeID, itemID int64) error
	ListIngredients(ctx context.Context, recipeID int64) ([]Ingredient, error)
}

// CostProvider supplies item master data and weighted-average costs. The
// inventory service satisfies it.
type CostProvider interface {
	GetItem(ctx context.Context, id int64) (inventory.Item, error)
	AverageCost(ctx context.Context, itemID int64) (inventory.AverageCost, error)
}

// Service coordinates recipe management and costing.
type Service struct {
	repo        RepositoryPort
	costs       CostProvider
	audit       shared.AuditRecorder
	menuVATRate decimal.Decimal
}

// NewService builds Service. menuVATRate is the percentage applied when
// netting out menu prices for the cost-percentage figure.
func NewService(repo RepositoryPort, costs CostProvider, audit shared.AuditRecorder, menuVATRate decimal.Decimal) *Service {
	return &Service{repo: repo, costs: costs, audit: audit, menuVATRate: menuVATRate}
}

// CreateRecipe opens a recipe. Drafts stay invisible to production until
// promoted.
func (s *Service) CreateRecipe(ctx context.Context, input CreateRecipeInput) (int64, error) {
	if input.Name == "" {
		return 0, shared.NewValidationError("name", "required")
	}
	if input.Yield.Sign() <= 0 {
		return 0, shared.NewValidationError("yield", "must be greater than zero")
	}
	if input.MenuPrice.Sign() < 0 {
		return 0, shared.NewValidationError("menu_price", "must not be negative")
	}
	recipe := Recipe{
		Name:       input.Name,
		GroupLabel: input.GroupLabel,
		Yield:      input.Yield,
		MenuPrice:  input.MenuPrice,
		Draft:      input.Draft,
	}
	if !input.Draft {
		now := time.Now().UTC()
		recipe.SavedAt = &now
	}
	id, err := s.repo.InsertRecipe(ctx, recipe)
	if err != nil {
		return 0, err
	}
	s.recordAudit(ctx, input.ActorID, "recipe:create", id)
	return id, nil
}

// UpdateRecipe mutates header fields.
func (s *Service) UpdateRecipe(ctx context.Context, input UpdateRecipeInput) error {
	recipe, err := s.repo.GetRecipe(ctx, input.RecipeID)
	if err != nil {
		return err
	}
	if input.Name != nil {
		if *input.Name == "" {
			return shared.NewValidationError("name", "required")
		}
		recipe.Name = *input.Name
	}
	if input.GroupLabel != nil {
		recipe.GroupLabel = *input.GroupLabel
	}
	if input.Yield != nil {
		if input.Yield.Sign() <= 0 {
			return shared.NewValidationError("yield", "must be greater than zero")
		}
		recipe.Yield = *input.Yield
	}
	if input.MenuPrice != nil {
		if input.MenuPrice.Sign() < 0 {
			return shared.NewValidationError("menu_price", "must not be negative")
		}
		recipe.MenuPrice = *input.MenuPrice
	}
	if err := s.repo.UpdateRecipe(ctx, recipe); err != nil {
		return err
	}
	s.recordAudit(ctx, input.ActorID, "recipe:update", recipe.ID)
	return nil
}

// PromoteDraft makes a draft visible to production.
func (s *Service) PromoteDraft(ctx context.Context, recipeID, actorID int64) error {
	recipe, err := s.repo.GetRecipe(ctx, recipeID)
	if err != nil {
		return err
	}
	if !recipe.Draft {
		return &shared.ConsistencyError{Reason: "recipe is not a draft"}
	}
	ingredients, err := s.repo.ListIngredients(ctx, recipeID)
	if err != nil {
		return err
	}
	if len(ingredients) == 0 {
		return shared.NewValidationError("ingredients", "a recipe needs at least one ingredient before promotion")
	}
	recipe.Draft = false
	now := time.Now().UTC()
	recipe.SavedAt = &now
	if err := s.repo.UpdateRecipe(ctx, recipe); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "recipe:promote", recipeID)
	return nil
}

// DiscardDraft deletes a draft and its lines. Promoted recipes cannot be
// discarded through this path.
func (s *Service) DiscardDraft(ctx context.Context, recipeID, actorID int64) error {
	recipe, err := s.repo.GetRecipe(ctx, recipeID)
	if err != nil {
		return err
	}
	if !recipe.Draft {
		return &shared.ConsistencyError{Reason: "only drafts can be discarded"}
	}
	if err := s.repo.DeleteRecipe(ctx, recipeID); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "recipe:discard", recipeID)
	return nil
}

// UpsertIngredient writes one line, replacing an existing line for the same
// item. The quantity unit must be convertible into the item's base unit.
func (s *Service) UpsertIngredient(ctx context.Context, input UpsertIngredientInput) (int64, error) {
	if input.Qty.Sign() <= 0 {
		return 0, shared.NewValidationError("qty", "must be greater than zero")
	}
	if !uom.Valid(input.Unit) {
		return 0, shared.NewValidationError("unit", "unknown unit")
	}
	if _, err := s.repo.GetRecipe(ctx, input.RecipeID); err != nil {
		return 0, err
	}
	item, err := s.costs.GetItem(ctx, input.ItemID)
	if err != nil {
		return 0, err
	}
	if _, err := qtyInBaseUnit(input.Qty, input.Unit, item); err != nil {
		return 0, err
	}
	id, err := s.repo.UpsertIngredient(ctx, Ingredient{
		RecipeID: input.RecipeID,
		ItemID:   input.ItemID,
		Qty:      input.Qty,
		Unit:     input.Unit,
	})
	if err != nil {
		return 0, err
	}
	s.recordAudit(ctx, input.ActorID, "recipe:ingredient", input.RecipeID)
	return id, nil
}

// RemoveIngredient drops one line.
func (s *Service) RemoveIngredient(ctx context.Context, recipeID, itemID, actorID int64) error {
	if err := s.repo.DeleteIngredient(ctx, recipeID, itemID); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "recipe:ingredient", recipeID)
	return nil
}

// GetRecipe returns a recipe header.
func (s *Service) GetRecipe(ctx context.Context, id int64) (Recipe, error) {
	return s.repo.GetRecipe(ctx, id)
}

// ListRecipes lists recipes.
func (s *Service) ListRecipes(ctx context.Context, filter ListFilter) ([]Recipe, error) {
	return s.repo.ListRecipes(ctx, filter)
}

// ListIngredients lists a recipe's lines.
func (s *Service) ListIngredients(ctx context.Context, recipeID int64) ([]Ingredient, error) {
	if _, err := s.repo.GetRecipe(ctx, recipeID); err != nil {
		return nil, err
	}
	return s.repo.ListIngredients(ctx, recipeID)
}

// Cost prices a recipe from the current weighted-average cost of each
// ingredient. Every line contributes independently; an ingredient without a
// defined average is reported unpriced and contributes zero instead of
// failing the whole costing.
func (s *Service) Cost(ctx context.Context, recipeID int64) (RecipeCost, error) {
	recipe, err := s.repo.GetRecipe(ctx, recipeID)
	if err != nil {
		return RecipeCost{}, err
	}
	ingredients, err := s.repo.ListIngredients(ctx, recipeID)
	if err != nil {
		return RecipeCost{}, err
	}

	result := RecipeCost{RecipeID: recipeID, Yield: recipe.Yield}
	for _, ing := range ingredients {
		item, err := s.costs.GetItem(ctx, ing.ItemID)
		if err != nil {
			return RecipeCost{}, err
		}
		qtyBase, err := qtyInBaseUnit(ing.Qty, ing.Unit, item)
		if err != nil {
			return RecipeCost{}, err
		}
		line := IngredientCost{
			ItemID:   ing.ItemID,
			ItemName: item.Name,
			Qty:      ing.Qty,
			Unit:     ing.Unit,
			QtyBase:  qtyBase,
		}
		avg, err := s.costs.AverageCost(ctx, ing.ItemID)
		if err != nil {
			return RecipeCost{}, err
		}
		if avg.Defined {
			line.Priced = true
			line.Cost = CostBreakdown{
				Gross: avg.Gross.Mul(qtyBase),
				Net:   avg.Net.Mul(qtyBase),
				Tax:   avg.Tax.Mul(qtyBase),
			}
		}
		result.Lines = append(result.Lines, line)
		result.Total = result.Total.Add(line.Cost)
	}
	result.PerServing = result.Total.Div(recipe.Yield)

	if recipe.MenuPrice.Sign() > 0 {
		netPrice := recipe.MenuPrice
		if !s.menuVATRate.IsZero() {
			netPrice = recipe.MenuPrice.Div(decimal.NewFromInt(1).Add(s.menuVATRate.Div(hundred)))
		}
		pct := result.PerServing.Net.Div(netPrice).Mul(hundred)
		result.CostPercent = &pct
	}
	return result, nil
}

// RequirementLines resolves the ingredient demand of a production run, in
// each item's base unit. Drafts are not producible.
func (s *Service) RequirementLines(ctx context.Context, recipeID int64, servings decimal.Decimal) ([]inventory.RequirementLine, error) {
	recipe, err := s.repo.GetRecipe(ctx, recipeID)
	if err != nil {
		return nil, err
	}
	if recipe.Draft {
		return nil, shared.NewValidationError("recipe_id", "draft recipes cannot be produced")
	}
	ingredients, err := s.repo.ListIngredients(ctx, recipeID)
	if err != nil {
		return nil, err
	}
	lines := make([]inventory.RequirementLine, 0, len(ingredients))
	for _, ing := range ingredients {
		item, err := s.costs.GetItem(ctx, ing.ItemID)
		if err != nil {
			return nil, err
		}
		qtyBase, err := qtyInBaseUnit(ing.Qty, ing.Unit, item)
		if err != nil {
			return nil, err
		}
		lines = append(lines, inventory.RequirementLine{
			ItemID: ing.ItemID,
			Qty:    qtyBase.Mul(servings).Div(recipe.Yield),
		})
	}
	return lines, nil
}

// qtyInBaseUnit converts an ingredient quantity into the item's base unit.
// A measured quantity against a piece-based item goes through the item's
// per-piece configuration.
func qtyInBaseUnit(qty decimal.Decimal, unit uom.Unit, item inventory.Item) (decimal.Decimal, error) {
	if unit == item.BaseUnit {
		return qty, nil
	}
	if uom.DimensionOf(unit) == uom.DimensionOf(item.BaseUnit) {
		return uom.Convert(qty, unit, item.BaseUnit)
	}
	if item.BaseUnit == uom.Piece && item.HasPerPiece() {
		converted, err := uom.Convert(qty, unit, *item.PerPieceUnit)
		if err != nil {
			return decimal.Decimal{}, shared.NewValidationError("unit", err.Error())
		}
		return converted.Div(item.QtyPerPiece), nil
	}
	return decimal.Decimal{}, shared.NewValidationError("unit", "cannot convert into the item's base unit")
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, recipeID int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "recipe",
		EntityID: strconv.FormatInt(recipeID, 10),
	})
}
