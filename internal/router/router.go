package router

import (
	"net/http"

	"storefront/internal/handler"
	"storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Handlers groups the HTTP handlers mounted by the router.
type Handlers struct {
	Payment *handler.PaymentHandler
	Order   *handler.OrderHandler
	Admin   *handler.AdminHandler
}

// Auth configures bearer-token verification and the persisted role store.
type Auth struct {
	Secret []byte
	Issuer string
	Roles  repository.RoleRepository
}

// New creates a new HTTP router with all routes and middleware configured.
func New(h Handlers, auth Auth, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Request ID -> Recovery -> Logging -> CORS -> Authenticate
	r.Use(chimw.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS)

	// Health check endpoint (no authentication required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Authenticate(auth.Secret, auth.Issuer, logger))

		r.Post("/payments/intents", h.Payment.CreateIntent)
		r.Post("/payments/verify", h.Payment.Verify)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireCustomer)

			r.Get("/orders/{id}/timeline", h.Order.Timeline)
			r.Post("/orders/{id}/cancel", h.Order.Cancel)
			r.Post("/orders/{id}/reorder", h.Order.Reorder)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(auth.Roles, model.RoleAdmin, logger))

			r.Get("/orders", h.Admin.List)
			r.Post("/orders", h.Admin.Create)
			r.Post("/orders/bulk-status", h.Admin.BulkStatus)
			r.Get("/orders/{id}", h.Admin.Get)
			r.Patch("/orders/{id}/status", h.Admin.UpdateStatus)
			r.Patch("/orders/{id}/tracking", h.Admin.UpdateTracking)
			r.Patch("/orders/{id}/notes", h.Admin.UpdateNotes)
			r.Patch("/orders/{id}/archive", h.Admin.SetArchived)

			r.Get("/outbox/failed", h.Admin.FailedTasks)
			r.Post("/outbox/{id}/retry", h.Admin.RetryTask)
		})
	})

	return r
}
