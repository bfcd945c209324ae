package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// OrderHandler handles customer-facing order requests.
type OrderHandler struct {
	lifecycle service.LifecycleService
	reorder   service.ReorderService
	logger    zerolog.Logger
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(lifecycle service.LifecycleService, reorder service.ReorderService, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		lifecycle: lifecycle,
		reorder:   reorder,
		logger:    logger.With().Str("handler", "order").Logger(),
	}
}

// Timeline handles GET /api/orders/{id}/timeline requests.
func (h *OrderHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	timeline, err := h.lifecycle.GetTimeline(r.Context(), chi.URLParam(r, "id"), middleware.IdentityFrom(r.Context()))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, timeline)
}

// Cancel handles POST /api/orders/{id}/cancel requests.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	order, err := h.lifecycle.CustomerCancel(r.Context(), chi.URLParam(r, "id"), middleware.IdentityFrom(r.Context()))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// Reorder handles POST /api/orders/{id}/reorder requests. The body is optional.
func (h *OrderHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req model.ReorderRequest
	if r.Body != nil && r.ContentLength != 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := decodeOptional(r.Body, &req); err != nil {
			writeError(w, r, model.NewDomainError(model.ErrCodeInvalidJSON, "invalid request body"), h.logger)
			return
		}
	}

	draft, err := h.reorder.Reorder(r.Context(), chi.URLParam(r, "id"), &req, middleware.IdentityFrom(r.Context()))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, draft)
}

func decodeOptional(body io.Reader, dst interface{}) error {
	err := json.NewDecoder(body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
