package recipes

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brigade-erp/brigade-erp/internal/shared"
	"github.com/brigade-erp/brigade-erp/internal/uom"
)

// Repository persists recipes in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const recipeColumns = `id, name, group_label, yield, menu_price, draft, saved_at, created_at, updated_at`

func (r *Repository) InsertRecipe(ctx context.Context, recipe Recipe) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO recipes (name, group_label, yield, menu_price, draft, saved_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW()) RETURNING id`,
		recipe.Name, recipe.GroupLabel, recipe.Yield, recipe.MenuPrice, recipe.Draft, recipe.SavedAt).Scan(&id)
	if err != nil {
		return 0, shared.WrapStorage("insert recipe", err)
	}
	return id, nil
}

func (r *Repository) GetRecipe(ctx context.Context, id int64) (Recipe, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+recipeColumns+` FROM recipes WHERE id = $1`, id)
	recipe, err := scanRecipe(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Recipe{}, &shared.NotFoundError{Entity: "recipe", ID: id}
	}
	if err != nil {
		return Recipe{}, shared.WrapStorage("get recipe", err)
	}
	return recipe, nil
}

func (r *Repository) UpdateRecipe(ctx context.Context, recipe Recipe) error {
	_, err := r.pool.Exec(ctx, `UPDATE recipes SET
name=$2, group_label=$3, yield=$4, menu_price=$5, draft=$6, saved_at=$7, updated_at=NOW()
WHERE id=$1`,
		recipe.ID, recipe.Name, recipe.GroupLabel, recipe.Yield, recipe.MenuPrice, recipe.Draft, recipe.SavedAt)
	return shared.WrapStorage("update recipe", err)
}

func (r *Repository) DeleteRecipe(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM ingredients WHERE recipe_id = $1`, id)
	if err != nil {
		return shared.WrapStorage("delete recipe lines", err)
	}
	_, err = r.pool.Exec(ctx, `DELETE FROM recipes WHERE id = $1`, id)
	return shared.WrapStorage("delete recipe", err)
}

func (r *Repository) ListRecipes(ctx context.Context, filter ListFilter) ([]Recipe, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+recipeColumns+` FROM recipes
WHERE ($1 = '' OR group_label = $1)
AND ($2 OR NOT draft)
ORDER BY group_label, name`, filter.GroupLabel, filter.IncludeDrafts)
	if err != nil {
		return nil, shared.WrapStorage("list recipes", err)
	}
	defer rows.Close()
	var recipes []Recipe
	for rows.Next() {
		recipe, err := scanRecipe(rows)
		if err != nil {
			return nil, shared.WrapStorage("scan recipe", err)
		}
		recipes = append(recipes, recipe)
	}
	return recipes, rows.Err()
}

// UpsertIngredient relies on the unique index over (recipe_id, item_id).
func (r *Repository) UpsertIngredient(ctx context.Context, ing Ingredient) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO ingredients (recipe_id, item_id, qty, unit)
VALUES ($1,$2,$3,$4)
ON CONFLICT (recipe_id, item_id) DO UPDATE SET qty = EXCLUDED.qty, unit = EXCLUDED.unit
RETURNING id`, ing.RecipeID, ing.ItemID, ing.Qty, string(ing.Unit)).Scan(&id)
	if err != nil {
		return 0, shared.WrapStorage("upsert ingredient", err)
	}
	return id, nil
}

func (r *Repository) DeleteIngredient(ctx context.Context, recipeID, itemID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM ingredients WHERE recipe_id = $1 AND item_id = $2`, recipeID, itemID)
	if err != nil {
		return shared.WrapStorage("delete ingredient", err)
	}
	if tag.RowsAffected() == 0 {
		return &shared.NotFoundError{Entity: "ingredient", ID: itemID}
	}
	return nil
}

func (r *Repository) ListIngredients(ctx context.Context, recipeID int64) ([]Ingredient, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, recipe_id, item_id, qty, unit FROM ingredients
WHERE recipe_id = $1 ORDER BY id`, recipeID)
	if err != nil {
		return nil, shared.WrapStorage("list ingredients", err)
	}
	defer rows.Close()
	var ingredients []Ingredient
	for rows.Next() {
		var ing Ingredient
		var unit string
		if err := rows.Scan(&ing.ID, &ing.RecipeID, &ing.ItemID, &ing.Qty, &unit); err != nil {
			return nil, shared.WrapStorage("scan ingredient", err)
		}
		ing.Unit = uom.Unit(unit)
		ingredients = append(ingredients, ing)
	}
	return ingredients, rows.Err()
}

func scanRecipe(row interface{ Scan(dest ...any) error }) (Recipe, error) {
	var recipe Recipe
	err := row.Scan(&recipe.ID, &recipe.Name, &recipe.GroupLabel, &recipe.Yield, &recipe.MenuPrice,
		&recipe.Draft, &recipe.SavedAt, &recipe.CreatedAt, &recipe.UpdatedAt)
	return recipe, err
}
