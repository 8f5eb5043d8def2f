package analytics

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/brigade-erp/brigade-erp/internal/platform/httpx"
	"github.com/brigade-erp/brigade-erp/internal/shared"
)

// Handler exposes revenue analytics over JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers analytics routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/revenue-groups", h.listGroups)
	r.Post("/revenue-groups", h.createGroup)
	r.Patch("/revenue-groups/{id}", h.renameGroup)
	r.Delete("/revenue-groups/{id}", h.deleteGroup)

	r.Get("/revenue-groups/{id}/revenue", h.revenueHistory)
	r.Put("/revenue-groups/{id}/revenue", h.bookRevenue)
	r.Get("/revenue-groups/{id}/cost-percentage", h.groupCostPercentage)

	r.Get("/categories/{id}/cost-percentage", h.categoryCostPercentage)
}

type groupRequest struct {
	Name string `json:"name"`
}

func (h *Handler) createGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	id, err := h.service.CreateGroup(r.Context(), req.Name, actorID(r))
	if err != nil {
		h.logger.Error("create revenue group failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"group_id": id})
}

func (h *Handler) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.ListGroups(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payload := make([]map[string]any, 0, len(groups))
	for _, group := range groups {
		payload = append(payload, map[string]any{"id": group.ID, "name": group.Name})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"groups": payload})
}

func (h *Handler) renameGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req groupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.service.RenameGroup(r.Context(), id, req.Name, actorID(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteGroup(r.Context(), id, actorID(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type bookRevenueRequest struct {
	Month  string          `json:"month"`
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) bookRevenue(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req bookRevenueRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	month, err := shared.ParseMonth(req.Month)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	recordID, err := h.service.BookRevenue(r.Context(), UpsertRevenueInput{
		GroupID: id,
		Month:   month,
		Amount:  req.Amount,
		ActorID: actorID(r),
	})
	if err != nil {
		h.logger.Error("book revenue failed", "error", err, "group_id", id)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"record_id": recordID})
}

func (h *Handler) revenueHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	records, err := h.service.RevenueHistory(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payload := make([]map[string]any, 0, len(records))
	for _, record := range records {
		payload = append(payload, map[string]any{
			"month":  record.Month.String(),
			"amount": record.Amount,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"records": payload})
}

func (h *Handler) groupCostPercentage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	month, ok := queryMonth(w, r)
	if !ok {
		return
	}
	figure, err := h.service.CostPercentageForGroup(r.Context(), id, month)
	if err != nil {
		h.logger.Error("cost percentage failed", "error", err, "group_id", id)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, costPercentagePayload(figure))
}

func (h *Handler) categoryCostPercentage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	month, ok := queryMonth(w, r)
	if !ok {
		return
	}
	figure, err := h.service.CostPercentageForCategory(r.Context(), id, month)
	if err != nil {
		h.logger.Error("cost percentage failed", "error", err, "category_id", id)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, costPercentagePayload(figure))
}

func costPercentagePayload(figure CostPercentage) map[string]any {
	return map[string]any{
		"category_id":       figure.CategoryID,
		"group_id":          figure.GroupID,
		"month":             figure.Month.String(),
		"cost_net":          figure.CostNet,
		"revenue":           figure.Revenue,
		"percent":           figure.Percent,
		"has_revenue_group": figure.HasRevenueGroup,
		"has_month_amount":  figure.HasMonthAmount,
	}
}

func queryMonth(w http.ResponseWriter, r *http.Request) (shared.Month, bool) {
	month, err := shared.ParseMonth(r.URL.Query().Get("month"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return shared.Month{}, false
	}
	return month, true
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
