package recipes

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/brigade-erp/brigade-erp/internal/platform/httpx"
	"github.com/brigade-erp/brigade-erp/internal/uom"
)

// Handler exposes recipes over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers recipe routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/recipes", h.listRecipes)
	r.Post("/recipes", h.createRecipe)
	r.Get("/recipes/{id}", h.getRecipe)
	r.Patch("/recipes/{id}", h.updateRecipe)
	r.Post("/recipes/{id}/promote", h.promoteDraft)
	r.Delete("/recipes/{id}", h.discardDraft)

	r.Get("/recipes/{id}/cost", h.costRecipe)
	r.Get("/recipes/{id}/ingredients", h.listIngredients)
	r.Put("/recipes/{id}/ingredients", h.upsertIngredient)
	r.Delete("/recipes/{id}/ingredients/{itemID}", h.removeIngredient)
}

type createRecipeRequest struct {
	Name       string          `json:"name" validate:"required"`
	GroupLabel string          `json:"group_label"`
	Yield      decimal.Decimal `json:"yield" validate:"required"`
	MenuPrice  decimal.Decimal `json:"menu_price"`
	Draft      bool            `json:"draft"`
}

func (h *Handler) createRecipe(w http.ResponseWriter, r *http.Request) {
	var req createRecipeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	id, err := h.service.CreateRecipe(r.Context(), CreateRecipeInput{
		Name:       req.Name,
		GroupLabel: req.GroupLabel,
		Yield:      req.Yield,
		MenuPrice:  req.MenuPrice,
		Draft:      req.Draft,
		ActorID:    actorID(r),
	})
	if err != nil {
		h.logger.Error("create recipe failed", "error", err, "name", req.Name)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"recipe_id": id})
}

func (h *Handler) listRecipes(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		GroupLabel:    r.URL.Query().Get("group"),
		IncludeDrafts: r.URL.Query().Get("include_drafts") == "true",
	}
	recipes, err := h.service.ListRecipes(r.Context(), filter)
	if err != nil {
		h.logger.Error("list recipes failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	payload := make([]map[string]any, 0, len(recipes))
	for _, recipe := range recipes {
		payload = append(payload, recipePayload(recipe))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"recipes": payload})
}

func (h *Handler) getRecipe(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	recipe, err := h.service.GetRecipe(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, recipePayload(recipe))
}

type updateRecipeRequest struct {
	Name       *string          `json:"name"`
	GroupLabel *string          `json:"group_label"`
	Yield      *decimal.Decimal `json:"yield"`
	MenuPrice  *decimal.Decimal `json:"menu_price"`
}

func (h *Handler) updateRecipe(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req updateRecipeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	err := h.service.UpdateRecipe(r.Context(), UpdateRecipeInput{
		RecipeID:   id,
		Name:       req.Name,
		GroupLabel: req.GroupLabel,
		Yield:      req.Yield,
		MenuPrice:  req.MenuPrice,
		ActorID:    actorID(r),
	})
	if err != nil {
		h.logger.Error("update recipe failed", "error", err, "id", id)
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) promoteDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.PromoteDraft(r.Context(), id, actorID(r)); err != nil {
		h.logger.Error("promote draft failed", "error", err, "id", id)
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) discardDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DiscardDraft(r.Context(), id, actorID(r)); err != nil {
		h.logger.Error("discard draft failed", "error", err, "id", id)
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) costRecipe(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	cost, err := h.service.Cost(r.Context(), id)
	if err != nil {
		h.logger.Error("cost recipe failed", "error", err, "id", id)
		httpx.RespondError(w, err)
		return
	}
	lines := make([]map[string]any, 0, len(cost.Lines))
	for _, line := range cost.Lines {
		lines = append(lines, map[string]any{
			"item_id":   line.ItemID,
			"item_name": line.ItemName,
			"qty":       line.Qty,
			"unit":      line.Unit,
			"qty_base":  line.QtyBase,
			"gross":     line.Cost.Gross,
			"net":       line.Cost.Net,
			"tax":       line.Cost.Tax,
			"priced":    line.Priced,
		})
	}
	payload := map[string]any{
		"recipe_id": cost.RecipeID,
		"yield":     cost.Yield,
		"lines":     lines,
		"total": map[string]any{
			"gross": cost.Total.Gross,
			"net":   cost.Total.Net,
			"tax":   cost.Total.Tax,
		},
		"per_serving": map[string]any{
			"gross": cost.PerServing.Gross,
			"net":   cost.PerServing.Net,
			"tax":   cost.PerServing.Tax,
		},
	}
	if cost.CostPercent != nil {
		payload["cost_percent"] = *cost.CostPercent
	}
	httpx.JSON(w, http.StatusOK, payload)
}

func (h *Handler) listIngredients(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ingredients, err := h.service.ListIngredients(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payload := make([]map[string]any, 0, len(ingredients))
	for _, ing := range ingredients {
		payload = append(payload, map[string]any{
			"item_id": ing.ItemID,
			"qty":     ing.Qty,
			"unit":    ing.Unit,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ingredients": payload})
}

type upsertIngredientRequest struct {
	ItemID int64           `json:"item_id" validate:"required,gt=0"`
	Qty    decimal.Decimal `json:"qty" validate:"required"`
	Unit   string          `json:"unit" validate:"required"`
}

func (h *Handler) upsertIngredient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req upsertIngredientRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	lineID, err := h.service.UpsertIngredient(r.Context(), UpsertIngredientInput{
		RecipeID: id,
		ItemID:   req.ItemID,
		Qty:      req.Qty,
		Unit:     uom.Unit(req.Unit),
		ActorID:  actorID(r),
	})
	if err != nil {
		h.logger.Error("upsert ingredient failed", "error", err, "recipe_id", id)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ingredient_id": lineID})
}

func (h *Handler) removeIngredient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	itemID, ok := pathID(w, r, "itemID")
	if !ok {
		return
	}
	if err := h.service.RemoveIngredient(r.Context(), id, itemID, actorID(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func recipePayload(recipe Recipe) map[string]any {
	payload := map[string]any{
		"id":          recipe.ID,
		"name":        recipe.Name,
		"group_label": recipe.GroupLabel,
		"yield":       recipe.Yield,
		"menu_price":  recipe.MenuPrice,
		"draft":       recipe.Draft,
	}
	if recipe.SavedAt != nil {
		payload["saved_at"] = *recipe.SavedAt
	}
	return payload
}

func actorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	return id
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "invalid id")
		return 0, false
	}
	return id, true
}
