package handler

import (
	"context"
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
)

// MockOrderService is a mock implementation of OrderService.
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) CreatePaymentIntent(ctx context.Context, req *model.PaymentIntentRequest) (*model.PaymentIntentResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentIntentResponse), args.Error(1)
}

func (m *MockOrderService) VerifyAndFinalize(ctx context.Context, req *model.VerifyPaymentRequest, identity *model.Identity) (*model.VerifyPaymentResponse, error) {
	args := m.Called(ctx, req, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.VerifyPaymentResponse), args.Error(1)
}

func (m *MockOrderService) CreateManualOrder(ctx context.Context, req *model.ManualOrderRequest, actor *model.Identity) (*model.Order, error) {
	args := m.Called(ctx, req, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

// MockLifecycleService is a mock implementation of LifecycleService.
type MockLifecycleService struct {
	mock.Mock
}

func (m *MockLifecycleService) orderResult(args mock.Arguments) (*model.Order, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockLifecycleService) Advance(ctx context.Context, identifier string, req *model.AdvanceRequest, actor *model.Identity) (*model.Order, error) {
	return m.orderResult(m.Called(ctx, identifier, req, actor))
}

func (m *MockLifecycleService) CustomerCancel(ctx context.Context, identifier string, identity *model.Identity) (*model.Order, error) {
	return m.orderResult(m.Called(ctx, identifier, identity))
}

func (m *MockLifecycleService) BulkAdvance(ctx context.Context, req *model.BulkAdvanceRequest, actor *model.Identity) (*model.BulkResult, error) {
	args := m.Called(ctx, req, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BulkResult), args.Error(1)
}

func (m *MockLifecycleService) GetTimeline(ctx context.Context, identifier string, identity *model.Identity) (*model.TimelineResponse, error) {
	args := m.Called(ctx, identifier, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TimelineResponse), args.Error(1)
}

func (m *MockLifecycleService) GetOrder(ctx context.Context, identifier string) (*model.Order, error) {
	return m.orderResult(m.Called(ctx, identifier))
}

func (m *MockLifecycleService) ListOrders(ctx context.Context, filter model.OrderFilter) ([]model.Order, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *MockLifecycleService) UpdateTracking(ctx context.Context, identifier string, req *model.TrackingRequest) (*model.Order, error) {
	return m.orderResult(m.Called(ctx, identifier, req))
}

func (m *MockLifecycleService) UpdateAdminNotes(ctx context.Context, identifier string, req *model.NotesRequest) (*model.Order, error) {
	return m.orderResult(m.Called(ctx, identifier, req))
}

func (m *MockLifecycleService) SetArchived(ctx context.Context, identifier string, req *model.ArchiveRequest) (*model.Order, error) {
	return m.orderResult(m.Called(ctx, identifier, req))
}

// MockReorderService is a mock implementation of ReorderService.
type MockReorderService struct {
	mock.Mock
}

func (m *MockReorderService) Reorder(ctx context.Context, identifier string, req *model.ReorderRequest, identity *model.Identity) (*model.ReorderDraft, error) {
	args := m.Called(ctx, identifier, req, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReorderDraft), args.Error(1)
}

// MockOutboxService is a mock implementation of OutboxService.
type MockOutboxService struct {
	mock.Mock
}

func (m *MockOutboxService) ListFailed(ctx context.Context, limit int) ([]model.OutboxTask, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.OutboxTask), args.Error(1)
}

func (m *MockOutboxService) Retry(ctx context.Context, taskID string) error {
	args := m.Called(ctx, taskID)
	return args.Error(0)
}

// withRoute attaches chi URL params and an optional identity to req.
func withRoute(req *http.Request, identity *model.Identity, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	if identity != nil {
		ctx = middleware.WithIdentity(ctx, identity)
	}
	return req.WithContext(ctx)
}

var (
	customer = &model.Identity{UserID: "user-1", Email: "buyer@example.com", Name: "Asha Rao"}
	admin    = &model.Identity{UserID: "admin-1", Email: "ops@example.com", Name: "Ops", Role: model.RoleAdmin}
)
