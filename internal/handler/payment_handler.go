package handler

import (
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/rs/zerolog"
)

// PaymentHandler handles the checkout endpoints.
type PaymentHandler struct {
	service service.OrderService
	logger  zerolog.Logger
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(service service.OrderService, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		logger:  logger.With().Str("handler", "payment").Logger(),
	}
}

// CreateIntent handles POST /api/payments/intents requests.
func (h *PaymentHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var req model.PaymentIntentRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	if identity := middleware.IdentityFrom(r.Context()); identity != nil && identity.Email != "" {
		req.Email = identity.Email
	}

	resp, err := h.service.CreatePaymentIntent(r.Context(), &req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// Verify handles POST /api/payments/verify requests.
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req model.VerifyPaymentRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	resp, err := h.service.VerifyAndFinalize(r.Context(), &req, middleware.IdentityFrom(r.Context()))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	status := http.StatusCreated
	if resp.AlreadyProcessed {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}
