package handler

import (
	"net/http"
	"strconv"

	"storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// AdminHandler handles back-office order management.
type AdminHandler struct {
	orders    service.OrderService
	lifecycle service.LifecycleService
	outbox    service.OutboxService
	logger    zerolog.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(orders service.OrderService, lifecycle service.LifecycleService, outbox service.OutboxService, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		orders:    orders,
		lifecycle: lifecycle,
		outbox:    outbox,
		logger:    logger.With().Str("handler", "admin").Logger(),
	}
}

// List handles GET /api/admin/orders requests.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := model.OrderFilter{IncludeArchived: query.Get("includeArchived") == "true"}

	if status := query.Get("status"); status != "" {
		s := model.OrderStatus(status)
		filter.Status = &s
	}

	var ok bool
	if filter.Limit, ok = intParam(w, r, "limit", 50, h.logger); !ok {
		return
	}
	if filter.Offset, ok = intParam(w, r, "offset", 0, h.logger); !ok {
		return
	}

	orders, err := h.lifecycle.ListOrders(r.Context(), filter)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}

	writeJSON(w, http.StatusOK, orders)
}

// Create handles POST /api/admin/orders requests.
func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.ManualOrderRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	order, err := h.orders.CreateManualOrder(r.Context(), &req, middleware.IdentityFrom(r.Context()))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// Get handles GET /api/admin/orders/{id} requests.
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.lifecycle.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// UpdateStatus handles PATCH /api/admin/orders/{id}/status requests.
func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req model.AdvanceRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	order, err := h.lifecycle.Advance(r.Context(), chi.URLParam(r, "id"), &req, middleware.IdentityFrom(r.Context()))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// BulkStatus handles POST /api/admin/orders/bulk-status requests.
func (h *AdminHandler) BulkStatus(w http.ResponseWriter, r *http.Request) {
	var req model.BulkAdvanceRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	result, err := h.lifecycle.BulkAdvance(r.Context(), &req, middleware.IdentityFrom(r.Context()))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// UpdateTracking handles PATCH /api/admin/orders/{id}/tracking requests.
func (h *AdminHandler) UpdateTracking(w http.ResponseWriter, r *http.Request) {
	var req model.TrackingRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	order, err := h.lifecycle.UpdateTracking(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// UpdateNotes handles PATCH /api/admin/orders/{id}/notes requests.
func (h *AdminHandler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	var req model.NotesRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	order, err := h.lifecycle.UpdateAdminNotes(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// SetArchived handles PATCH /api/admin/orders/{id}/archive requests.
func (h *AdminHandler) SetArchived(w http.ResponseWriter, r *http.Request) {
	var req model.ArchiveRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	order, err := h.lifecycle.SetArchived(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// FailedTasks handles GET /api/admin/outbox/failed requests.
func (h *AdminHandler) FailedTasks(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(w, r, "limit", 100, h.logger)
	if !ok {
		return
	}

	tasks, err := h.outbox.ListFailed(r.Context(), limit)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	if tasks == nil {
		tasks = []model.OutboxTask{}
	}

	writeJSON(w, http.StatusOK, tasks)
}

// RetryTask handles POST /api/admin/outbox/{id}/retry requests.
func (h *AdminHandler) RetryTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.outbox.Retry(r.Context(), id); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": string(model.TaskStatusPending)})
}

// intParam parses an optional integer query parameter.
func intParam(w http.ResponseWriter, r *http.Request, name string, fallback int, logger zerolog.Logger) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, r, model.ValidationError("invalid "+name+" parameter"), logger)
		return 0, false
	}
	return value, true
}
