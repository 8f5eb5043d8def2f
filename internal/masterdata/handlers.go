package masterdata

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/brigade-erp/brigade-erp/internal/platform/httpx"
)

// Handler exposes master data over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers master data routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/categories", h.listCategories)
	r.Post("/categories", h.createCategory)
	r.Get("/categories/{id}", h.getCategory)
	r.Patch("/categories/{id}", h.updateCategory)
	r.Delete("/categories/{id}", h.deleteCategory)

	r.Get("/taxes", h.listTaxes)
	r.Post("/taxes", h.createTax)
	r.Get("/taxes/{id}", h.getTax)
	r.Patch("/taxes/{id}", h.updateTax)
	r.Delete("/taxes/{id}", h.deleteTax)

	r.Get("/vendors", h.listVendors)
	r.Post("/vendors", h.createVendor)
	r.Get("/vendors/{id}", h.getVendor)
	r.Patch("/vendors/{id}", h.updateVendor)
	r.Delete("/vendors/{id}", h.deleteVendor)
}

type categoryRequest struct {
	Name           string `json:"name" validate:"required"`
	RevenueGroupID *int64 `json:"revenue_group_id"`
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	id, err := h.service.CreateCategory(r.Context(), Category{Name: req.Name, RevenueGroupID: req.RevenueGroupID}, actorID(r))
	if err != nil {
		h.logger.Error("create category failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"category_id": id})
}

func (h *Handler) getCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	category, err := h.service.GetCategory(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, categoryPayload(category))
}

func (h *Handler) updateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req categoryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	err := h.service.UpdateCategory(r.Context(), Category{ID: id, Name: req.Name, RevenueGroupID: req.RevenueGroupID}, actorID(r))
	if err != nil {
		h.logger.Error("update category failed", "error", err, "id", id)
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteCategory(r.Context(), id, actorID(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context(), ListFilters{Search: r.URL.Query().Get("search")})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payload := make([]map[string]any, 0, len(categories))
	for _, category := range categories {
		payload = append(payload, categoryPayload(category))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"categories": payload})
}

type taxRequest struct {
	Name string          `json:"name" validate:"required"`
	Rate decimal.Decimal `json:"rate"`
}

func (h *Handler) createTax(w http.ResponseWriter, r *http.Request) {
	var req taxRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	id, err := h.service.CreateTax(r.Context(), Tax{Name: req.Name, Rate: req.Rate}, actorID(r))
	if err != nil {
		h.logger.Error("create tax failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"tax_id": id})
}

func (h *Handler) getTax(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	tax, err := h.service.GetTax(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": tax.ID, "name": tax.Name, "rate": tax.Rate})
}

func (h *Handler) updateTax(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req taxRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.service.UpdateTax(r.Context(), Tax{ID: id, Name: req.Name, Rate: req.Rate}, actorID(r)); err != nil {
		h.logger.Error("update tax failed", "error", err, "id", id)
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteTax(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteTax(r.Context(), id, actorID(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listTaxes(w http.ResponseWriter, r *http.Request) {
	taxes, err := h.service.ListTaxes(r.Context(), ListFilters{Search: r.URL.Query().Get("search")})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payload := make([]map[string]any, 0, len(taxes))
	for _, tax := range taxes {
		payload = append(payload, map[string]any{"id": tax.ID, "name": tax.Name, "rate": tax.Rate})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"taxes": payload})
}

type vendorRequest struct {
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
	Active  bool   `json:"active"`
}

func (h *Handler) createVendor(w http.ResponseWriter, r *http.Request) {
	var req vendorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	id, err := h.service.CreateVendor(r.Context(), Vendor{
		Name: req.Name, Phone: req.Phone, Email: req.Email, Address: req.Address, Active: req.Active,
	}, actorID(r))
	if err != nil {
		h.logger.Error("create vendor failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"vendor_id": id})
}

func (h *Handler) getVendor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	vendor, err := h.service.GetVendor(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, vendorPayload(vendor))
}

func (h *Handler) updateVendor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req vendorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	err := h.service.UpdateVendor(r.Context(), Vendor{
		ID: id, Name: req.Name, Phone: req.Phone, Email: req.Email, Address: req.Address, Active: req.Active,
	}, actorID(r))
	if err != nil {
		h.logger.Error("update vendor failed", "error", err, "id", id)
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteVendor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteVendor(r.Context(), id, actorID(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listVendors(w http.ResponseWriter, r *http.Request) {
	vendors, err := h.service.ListVendors(r.Context(), ListFilters{Search: r.URL.Query().Get("search")})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payload := make([]map[string]any, 0, len(vendors))
	for _, vendor := range vendors {
		payload = append(payload, vendorPayload(vendor))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"vendors": payload})
}

func categoryPayload(category Category) map[string]any {
	return map[string]any{
		"id":               category.ID,
		"name":             category.Name,
		"revenue_group_id": category.RevenueGroupID,
	}
}

func vendorPayload(vendor Vendor) map[string]any {
	return map[string]any{
		"id":      vendor.ID,
		"name":    vendor.Name,
		"phone":   vendor.Phone,
		"email":   vendor.Email,
		"address": vendor.Address,
		"active":  vendor.Active,
	}
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
