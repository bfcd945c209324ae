package router

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront/internal/handler"
	"storefront/internal/middleware"
	"storefront/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testSecret = []byte("router-test-secret")
	testIssuer = "storefront-test"
)

type stubRoles struct {
	admins map[string]bool
}

func (s *stubRoles) HasRole(_ context.Context, userID, role string) (bool, error) {
	return role == model.RoleAdmin && s.admins[userID], nil
}

func (s *stubRoles) Grant(_ context.Context, userID, _ string) error {
	s.admins[userID] = true
	return nil
}

func newTestRouter() http.Handler {
	logger := zerolog.Nop()
	return New(Handlers{
		Payment: handler.NewPaymentHandler(nil, logger),
		Order:   handler.NewOrderHandler(nil, nil, logger),
		Admin:   handler.NewAdminHandler(nil, nil, nil, logger),
	}, Auth{
		Secret: testSecret,
		Issuer: testIssuer,
		Roles:  &stubRoles{admins: map[string]bool{"admin-1": true}},
	}, logger)
}

func bearer(t *testing.T, identity model.Identity) string {
	t.Helper()
	signed, err := middleware.IssueToken(testSecret, testIssuer, identity, time.Hour)
	require.NoError(t, err)
	return "Bearer " + signed
}

func TestRouter_Health(t *testing.T) {
	w := httptest.NewRecorder()
	newTestRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_Authorisation(t *testing.T) {
	customer := model.Identity{UserID: "user-1", Email: "buyer@example.com"}
	forgedAdmin := model.Identity{UserID: "user-1", Email: "buyer@example.com", Role: model.RoleAdmin}

	tests := []struct {
		name           string
		method         string
		path           string
		auth           string
		body           string
		expectedStatus int
	}{
		{
			name:           "anonymous timeline",
			method:         http.MethodGet,
			path:           "/api/orders/ORD-1/timeline",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "garbage token",
			method:         http.MethodGet,
			path:           "/api/orders/ORD-1/timeline",
			auth:           "Bearer nope",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "anonymous admin list",
			method:         http.MethodGet,
			path:           "/api/admin/orders",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "customer on admin route",
			method:         http.MethodGet,
			path:           "/api/admin/orders",
			auth:           bearer(t, customer),
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "role claim without persisted role",
			method:         http.MethodPost,
			path:           "/api/admin/outbox/t1/retry",
			auth:           bearer(t, forgedAdmin),
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "admin reaches handler",
			method:         http.MethodPatch,
			path:           "/api/admin/orders/ORD-1/status",
			auth:           bearer(t, model.Identity{UserID: "admin-1", Email: "ops@example.com", Role: model.RoleAdmin}),
			body:           "{",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "anonymous checkout reaches handler",
			method:         http.MethodPost,
			path:           "/api/payments/verify",
			body:           "not json",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown route",
			method:         http.MethodGet,
			path:           "/api/products",
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "wrong method",
			method:         http.MethodDelete,
			path:           "/api/payments/verify",
			expectedStatus: http.StatusMethodNotAllowed,
		},
	}

	router := newTestRouter()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}
