package inventory

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/brigade-erp/brigade-erp/internal/platform/httpx"
	"github.com/brigade-erp/brigade-erp/internal/uom"
)

// Handler exposes the ledger over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/operations", h.listOperations)

	r.Post("/items", h.registerItem)
	r.Get("/items/low-stock", h.lowStockItems)
	r.Get("/items/{id}", h.getItem)
	r.Patch("/items/{id}", h.updateItem)
	r.Delete("/items/{id}", h.deleteItem)

	r.Get("/items/{id}/stock", h.currentStock)
	r.Get("/items/{id}/average-cost", h.averageCost)
	r.Get("/items/{id}/entries", h.listEntries)

	r.Post("/items/{id}/add-stock", h.addStock)
	r.Post("/items/{id}/remove-stock", h.removeStock)
	r.Post("/items/{id}/spoilage", h.recordSpoilage)
	r.Post("/items/{id}/produce", h.produceYield)

	r.Patch("/entries/{id}", h.updateEntry)
	r.Post("/entries/{id}/void", h.voidEntry)
}

type registerItemRequest struct {
	Name               string           `json:"name" validate:"required"`
	Barcode            string           `json:"barcode"`
	CategoryID         int64            `json:"category_id" validate:"required,gt=0"`
	BaseUnit           string           `json:"base_unit" validate:"required"`
	PerPieceUnit       *string          `json:"per_piece_unit"`
	QtyPerPiece        decimal.Decimal  `json:"qty_per_piece"`
	DefaultTaxID       *int64           `json:"default_tax_id"`
	VendorID           *int64           `json:"vendor_id"`
	LowStockThreshold  decimal.Decimal  `json:"low_stock_threshold"`
	IsFinishedProduct  bool             `json:"is_finished_product"`
	RecipeID           *int64           `json:"recipe_id"`
	InitialQty         decimal.Decimal  `json:"initial_qty"`
	InitialUnitCost    decimal.Decimal  `json:"initial_unit_cost"`
	BeginningInventory *time.Time       `json:"beginning_inventory"`
	ReceiptNumber      string           `json:"receipt_number"`
	Remarks            string           `json:"remarks"`
}

func (h *Handler) registerItem(w http.ResponseWriter, r *http.Request) {
	var req registerItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	item := Item{
		Name:              req.Name,
		Barcode:           req.Barcode,
		CategoryID:        req.CategoryID,
		BaseUnit:          uom.Unit(req.BaseUnit),
		QtyPerPiece:       req.QtyPerPiece,
		DefaultTaxID:      req.DefaultTaxID,
		VendorID:          req.VendorID,
		LowStockThreshold: req.LowStockThreshold,
		IsFinishedProduct: req.IsFinishedProduct,
		RecipeID:          req.RecipeID,
	}
	if req.PerPieceUnit != nil {
		u := uom.Unit(*req.PerPieceUnit)
		item.PerPieceUnit = &u
	}
	input := RegisterItemInput{
		Item:            item,
		InitialQty:      req.InitialQty,
		InitialUnitCost: req.InitialUnitCost,
		ReceiptNumber:   req.ReceiptNumber,
		Remarks:         req.Remarks,
		ActorID:         actorID(r),
	}
	if req.BeginningInventory != nil {
		input.BeginningInventory = *req.BeginningInventory
	}

	result, err := h.service.RegisterItem(r.Context(), input)
	if err != nil {
		h.logger.Error("register item failed", "error", err, "name", req.Name)
		httpx.RespondError(w, err)
		return
	}
	if result.Denied {
		httpx.JSON(w, http.StatusOK, map[string]any{
			"denied":  true,
			"message": result.DenyMessage,
		})
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"item_id":   result.ItemID,
		"entry_ids": result.EntryIDs,
	})
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, itemPayload(item))
}

type updateItemRequest struct {
	Name              *string          `json:"name"`
	Barcode           *string          `json:"barcode"`
	CategoryID        *int64           `json:"category_id"`
	BaseUnit          *string          `json:"base_unit"`
	PerPieceUnit      *string          `json:"per_piece_unit"`
	QtyPerPiece       *decimal.Decimal `json:"qty_per_piece"`
	DefaultTaxID      *int64           `json:"default_tax_id"`
	VendorID          *int64           `json:"vendor_id"`
	LowStockThreshold *decimal.Decimal `json:"low_stock_threshold"`
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	input := UpdateItemInput{
		ItemID:            id,
		Name:              req.Name,
		Barcode:           req.Barcode,
		CategoryID:        req.CategoryID,
		QtyPerPiece:       req.QtyPerPiece,
		DefaultTaxID:      req.DefaultTaxID,
		VendorID:          req.VendorID,
		LowStockThreshold: req.LowStockThreshold,
		ActorID:           actorID(r),
	}
	if req.BaseUnit != nil {
		u := uom.Unit(*req.BaseUnit)
		input.BaseUnit = &u
	}
	if req.PerPieceUnit != nil {
		u := uom.Unit(*req.PerPieceUnit)
		input.PerPieceUnit = &u
	}
	if err := h.service.UpdateItem(r.Context(), input); err != nil {
		h.logger.Error("update item failed", "error", err, "id", id)
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteItem(r.Context(), id, actorID(r)); err != nil {
		h.logger.Error("delete item failed", "error", err, "id", id)
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) lowStockItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.LowStockItems(r.Context())
	if err != nil {
		h.logger.Error("low stock scan failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	payload := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payload = append(payload, itemPayload(item))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": payload})
}

func (h *Handler) currentStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	stock, err := h.service.CurrentStock(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"item_id":    id,
		"qty":        stock.Qty,
		"cost_gross": stock.CostGross,
		"cost_net":   stock.CostNet,
		"cost_tax":   stock.CostTax,
	})
}

func (h *Handler) averageCost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	avg, err := h.service.AverageCost(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"item_id": id,
		"defined": avg.Defined,
		"gross":   avg.Gross,
		"net":     avg.Net,
		"tax":     avg.Tax,
	})
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	filter := EntryFilter{ItemID: id}
	q := r.URL.Query()
	if from := q.Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "from must be RFC3339")
			return
		}
		filter.From = t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "to must be RFC3339")
			return
		}
		filter.To = t
	}
	filter.IncludeVoided = q.Get("include_voided") == "true"
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = limit
	}

	entries, err := h.service.ListEntries(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payload := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		payload = append(payload, entryPayload(e))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": payload})
}

type addStockRequest struct {
	OperationID   int64           `json:"operation_id"`
	Qty           decimal.Decimal `json:"qty" validate:"required"`
	SecondaryUnit *string         `json:"secondary_unit"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	TaxID         *int64          `json:"tax_id"`
	VendorID      *int64          `json:"vendor_id"`
	MovedAt       *time.Time      `json:"moved_at"`
	ReceiptNumber string          `json:"receipt_number"`
	Remarks       string          `json:"remarks"`
}

func (h *Handler) addStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req addStockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	input := AddStockInput{
		ItemID:        id,
		OperationID:   OperationID(req.OperationID),
		Qty:           req.Qty,
		UnitCost:      req.UnitCost,
		TaxID:         req.TaxID,
		VendorID:      req.VendorID,
		ReceiptNumber: req.ReceiptNumber,
		Remarks:       req.Remarks,
		RequestKey:    r.Header.Get("Idempotency-Key"),
		ActorID:       actorID(r),
	}
	if req.SecondaryUnit != nil {
		u := uom.Unit(*req.SecondaryUnit)
		input.SecondaryUnit = &u
	}
	if req.MovedAt != nil {
		input.MovedAt = *req.MovedAt
	}
	result, err := h.service.AddStock(r.Context(), input)
	if err != nil {
		h.logger.Error("add stock failed", "error", err, "item_id", id)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"item_id": result.ItemID, "entry_id": result.EntryID})
}

type removeStockRequest struct {
	OperationID int64           `json:"operation_id"`
	Qty         decimal.Decimal `json:"qty" validate:"required"`
	MovedAt     *time.Time      `json:"moved_at"`
	Remarks     string          `json:"remarks"`
}

func (h *Handler) removeStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req removeStockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	input := RemoveStockInput{
		ItemID:      id,
		OperationID: OperationID(req.OperationID),
		Qty:         req.Qty,
		Remarks:     req.Remarks,
		RequestKey:  r.Header.Get("Idempotency-Key"),
		ActorID:     actorID(r),
	}
	if req.MovedAt != nil {
		input.MovedAt = *req.MovedAt
	}
	result, err := h.service.RemoveStock(r.Context(), input)
	if err != nil {
		h.logger.Error("remove stock failed", "error", err, "item_id", id)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"item_id": result.ItemID, "entry_id": result.EntryID})
}

type spoilageRequest struct {
	Qty     decimal.Decimal `json:"qty" validate:"required"`
	MovedAt *time.Time      `json:"moved_at"`
	Remarks string          `json:"remarks"`
}

func (h *Handler) recordSpoilage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req spoilageRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	input := SpoilageInput{ItemID: id, Qty: req.Qty, Remarks: req.Remarks, ActorID: actorID(r)}
	if req.MovedAt != nil {
		input.MovedAt = *req.MovedAt
	}
	result, err := h.service.RecordSpoilage(r.Context(), input)
	if err != nil {
		h.logger.Error("record spoilage failed", "error", err, "item_id", id)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"item_id": result.ItemID, "entry_id": result.EntryID})
}

type produceYieldRequest struct {
	Servings decimal.Decimal `json:"servings" validate:"required"`
	MovedAt  *time.Time      `json:"moved_at"`
	Remarks  string          `json:"remarks"`
}

func (h *Handler) produceYield(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req produceYieldRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	input := ProduceYieldInput{ItemID: id, Servings: req.Servings, Remarks: req.Remarks, ActorID: actorID(r)}
	if req.MovedAt != nil {
		input.MovedAt = *req.MovedAt
	}
	result, err := h.service.ProduceYield(r.Context(), input)
	if err != nil {
		h.logger.Error("produce yield failed", "error", err, "item_id", id)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"production_ref":  result.ProductionRef,
		"output_entry_id": result.OutputEntryID,
		"debit_entry_ids": result.DebitEntryIDs,
	})
}

type updateEntryRequest struct {
	Qty           *decimal.Decimal `json:"qty"`
	UnitCost      *decimal.Decimal `json:"unit_cost"`
	TaxID         *int64           `json:"tax_id"`
	MovedAt       *time.Time       `json:"moved_at"`
	ReceiptNumber *string          `json:"receipt_number"`
	Remarks       *string          `json:"remarks"`
}

func (h *Handler) updateEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	result, err := h.service.UpdateEntry(r.Context(), UpdateEntryInput{
		EntryID:       id,
		Qty:           req.Qty,
		UnitCost:      req.UnitCost,
		TaxID:         req.TaxID,
		MovedAt:       req.MovedAt,
		ReceiptNumber: req.ReceiptNumber,
		Remarks:       req.Remarks,
		ActorID:       actorID(r),
	})
	if err != nil {
		h.logger.Error("update entry failed", "error", err, "entry_id", id)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"item_id": result.ItemID, "entry_id": result.EntryID})
}

func (h *Handler) voidEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	voided, err := h.service.VoidEntry(r.Context(), id, actorID(r))
	if err != nil {
		h.logger.Error("void entry failed", "error", err, "entry_id", id)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"voided_entry_ids": voided})
}

func (h *Handler) listOperations(w http.ResponseWriter, _ *http.Request) {
	payload := make([]map[string]any, 0, len(Catalog))
	for _, op := range Catalog {
		payload = append(payload, map[string]any{
			"id":   op.ID,
			"kind": op.Kind,
			"name": op.Name,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"operations": payload})
}

func itemPayload(item Item) map[string]any {
	payload := map[string]any{
		"id":                  item.ID,
		"category_id":         item.CategoryID,
		"name":                item.Name,
		"barcode":             item.Barcode,
		"base_unit":           item.BaseUnit,
		"qty_per_piece":       item.QtyPerPiece,
		"default_tax_id":      item.DefaultTaxID,
		"vendor_id":           item.VendorID,
		"low_stock_threshold": item.LowStockThreshold,
		"is_finished_product": item.IsFinishedProduct,
		"recipe_id":           item.RecipeID,
		"last_unit_cost":      item.LastUnitCost,
	}
	if item.PerPieceUnit != nil {
		payload["per_piece_unit"] = *item.PerPieceUnit
	}
	return payload
}

func entryPayload(e LedgerEntry) map[string]any {
	payload := map[string]any{
		"id":             e.ID,
		"operation_id":   e.OperationID,
		"operation_name": e.OperationID.Name(),
		"item_id":        e.ItemID,
		"unit_cost":      e.UnitCost,
		"unit_cost_net":  e.UnitCostNet,
		"unit_cost_tax":  e.UnitCostTax,
		"tax_rate":       e.TaxRate,
		"tax_name":       e.Tax.Name,
		"vendor_name":    e.Vendor.Name,
		"quantity":       e.Quantity,
		"moved_at":       e.MovedAt,
		"receipt_number": e.ReceiptNumber,
		"remarks":        e.Remarks,
		"voided":         e.Voided,
	}
	if e.ProductionRef != "" {
		payload["production_ref"] = e.ProductionRef
	}
	return payload
}

func actorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	return id
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "invalid id")
		return 0, false
	}
	return id, true
}
