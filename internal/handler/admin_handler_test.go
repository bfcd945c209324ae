package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type adminMocks struct {
	orders    *MockOrderService
	lifecycle *MockLifecycleService
	outbox    *MockOutboxService
}

func newAdminHandler() (*AdminHandler, adminMocks) {
	m := adminMocks{
		orders:    new(MockOrderService),
		lifecycle: new(MockLifecycleService),
		outbox:    new(MockOutboxService),
	}
	return NewAdminHandler(m.orders, m.lifecycle, m.outbox, zerolog.Nop()), m
}

func TestAdminHandler_List(t *testing.T) {
	shipped := model.OrderStatusShipped

	tests := []struct {
		name           string
		query          string
		expectedFilter *model.OrderFilter
		expectedStatus int
	}{
		{
			name:           "Defaults",
			query:          "",
			expectedFilter: &model.OrderFilter{Limit: 50},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Status and paging",
			query:          "?status=shipped&limit=10&offset=20&includeArchived=true",
			expectedFilter: &model.OrderFilter{Status: &shipped, IncludeArchived: true, Limit: 10, Offset: 20},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Invalid limit",
			query:          "?limit=ten",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Invalid offset",
			query:          "?offset=-x",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, m := newAdminHandler()

			if tt.expectedFilter != nil {
				m.lifecycle.On("ListOrders", mock.Anything, *tt.expectedFilter).Return(nil, nil)
			}

			req := withRoute(httptest.NewRequest(http.MethodGet, "/api/admin/orders"+tt.query, nil), admin, nil)
			w := httptest.NewRecorder()

			handler.List(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedFilter != nil {
				assert.JSONEq(t, "[]", w.Body.String())
				m.lifecycle.AssertExpectations(t)
			} else {
				m.lifecycle.AssertNotCalled(t, "ListOrders", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestAdminHandler_Create(t *testing.T) {
	handler, m := newAdminHandler()

	m.orders.On("CreateManualOrder", mock.Anything, mock.MatchedBy(func(req *model.ManualOrderRequest) bool {
		return req.PaymentMethod == "Cash on Delivery" && req.PaymentStatus == model.PaymentStatusPending
	}), admin).Return(&model.Order{OrderNumber: "ORD-M1"}, nil)

	body := bytes.NewBufferString(`{"paymentStatus":"pending","paymentMethod":"Cash on Delivery","order":{"contact":{"email":"a@b.com"},"items":[{"productId":"p1","unitPrice":100,"quantity":1}],"totalAmount":100}}`)
	req := withRoute(httptest.NewRequest(http.MethodPost, "/api/admin/orders", body), admin, nil)
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var order model.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	assert.Equal(t, "ORD-M1", order.OrderNumber)
	m.orders.AssertExpectations(t)
}

func TestAdminHandler_UpdateStatus(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		mockReturn     *model.Order
		mockError      error
		expectedStatus int
		expectService  bool
	}{
		{
			name:           "Success",
			body:           `{"status":"shipped","message":"Dispatched","location":"Pune hub"}`,
			mockReturn:     &model.Order{OrderNumber: "ORD-1", OrderStatus: model.OrderStatusShipped},
			expectedStatus: http.StatusOK,
			expectService:  true,
		},
		{
			name:           "Invalid transition",
			body:           `{"status":"placed"}`,
			mockError:      model.TransitionError("cannot move order from delivered to placed"),
			expectedStatus: http.StatusConflict,
			expectService:  true,
		},
		{
			name:           "Unknown status",
			body:           `{"status":"teleported"}`,
			mockError:      model.ValidationError("unknown order status"),
			expectedStatus: http.StatusBadRequest,
			expectService:  true,
		},
		{
			name:           "Lost update",
			body:           `{"status":"shipped"}`,
			mockError:      model.ErrConflict,
			expectedStatus: http.StatusConflict,
			expectService:  true,
		},
		{
			name:           "Not found",
			body:           `{"status":"shipped"}`,
			mockError:      model.ErrOrderNotFound,
			expectedStatus: http.StatusNotFound,
			expectService:  true,
		},
		{
			name:           "Invalid JSON",
			body:           `{"status":`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, m := newAdminHandler()

			if tt.expectService {
				m.lifecycle.On("Advance", mock.Anything, "ORD-1", mock.AnythingOfType("*model.AdvanceRequest"), admin).
					Return(tt.mockReturn, tt.mockError)
			}

			req := httptest.NewRequest(http.MethodPatch, "/api/admin/orders/ORD-1/status", bytes.NewBufferString(tt.body))
			req = withRoute(req, admin, map[string]string{"id": "ORD-1"})
			w := httptest.NewRecorder()

			handler.UpdateStatus(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectService {
				m.lifecycle.AssertExpectations(t)
			}
		})
	}
}

func TestAdminHandler_BulkStatus(t *testing.T) {
	handler, m := newAdminHandler()

	result := &model.BulkResult{
		Succeeded: []string{"ORD-1"},
		Failed:    []model.BulkFailure{{OrderID: "ORD-2", Reason: "order not found"}},
	}
	m.lifecycle.On("BulkAdvance", mock.Anything, mock.MatchedBy(func(req *model.BulkAdvanceRequest) bool {
		return len(req.OrderIDs) == 2 && req.Status == model.OrderStatusShipped
	}), admin).Return(result, nil)

	body := bytes.NewBufferString(`{"orderIds":["ORD-1","ORD-2"],"status":"shipped"}`)
	req := withRoute(httptest.NewRequest(http.MethodPost, "/api/admin/orders/bulk-status", body), admin, nil)
	w := httptest.NewRecorder()

	handler.BulkStatus(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp model.BulkResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"ORD-1"}, resp.Succeeded)
	require.Len(t, resp.Failed, 1)
	assert.Equal(t, "ORD-2", resp.Failed[0].OrderID)
}

func TestAdminHandler_FieldUpdates(t *testing.T) {
	order := &model.Order{OrderNumber: "ORD-1"}

	t.Run("tracking", func(t *testing.T) {
		handler, m := newAdminHandler()
		m.lifecycle.On("UpdateTracking", mock.Anything, "ORD-1", &model.TrackingRequest{TrackingNumber: "AWB1", Carrier: "Delhivery"}).
			Return(order, nil)

		req := httptest.NewRequest(http.MethodPatch, "/", bytes.NewBufferString(`{"trackingNumber":"AWB1","carrier":"Delhivery"}`))
		w := httptest.NewRecorder()
		handler.UpdateTracking(w, withRoute(req, admin, map[string]string{"id": "ORD-1"}))

		assert.Equal(t, http.StatusOK, w.Code)
		m.lifecycle.AssertExpectations(t)
	})

	t.Run("notes", func(t *testing.T) {
		handler, m := newAdminHandler()
		m.lifecycle.On("UpdateAdminNotes", mock.Anything, "ORD-1", &model.NotesRequest{Notes: "gift wrap"}).
			Return(order, nil)

		req := httptest.NewRequest(http.MethodPatch, "/", bytes.NewBufferString(`{"notes":"gift wrap"}`))
		w := httptest.NewRecorder()
		handler.UpdateNotes(w, withRoute(req, admin, map[string]string{"id": "ORD-1"}))

		assert.Equal(t, http.StatusOK, w.Code)
		m.lifecycle.AssertExpectations(t)
	})

	t.Run("archive", func(t *testing.T) {
		handler, m := newAdminHandler()
		m.lifecycle.On("SetArchived", mock.Anything, "ORD-1", &model.ArchiveRequest{Archived: true}).
			Return(order, nil)

		req := httptest.NewRequest(http.MethodPatch, "/", bytes.NewBufferString(`{"archived":true}`))
		w := httptest.NewRecorder()
		handler.SetArchived(w, withRoute(req, admin, map[string]string{"id": "ORD-1"}))

		assert.Equal(t, http.StatusOK, w.Code)
		m.lifecycle.AssertExpectations(t)
	})

	t.Run("get", func(t *testing.T) {
		handler, m := newAdminHandler()
		m.lifecycle.On("GetOrder", mock.Anything, "ORD-1").Return(order, nil)

		w := httptest.NewRecorder()
		handler.Get(w, withRoute(httptest.NewRequest(http.MethodGet, "/", nil), admin, map[string]string{"id": "ORD-1"}))

		assert.Equal(t, http.StatusOK, w.Code)
		m.lifecycle.AssertExpectations(t)
	})
}

func TestAdminHandler_Outbox(t *testing.T) {
	t.Run("failed tasks", func(t *testing.T) {
		handler, m := newAdminHandler()
		lastErr := "smtp timeout"
		m.outbox.On("ListFailed", mock.Anything, 25).
			Return([]model.OutboxTask{{ID: "t1", Kind: model.TaskNotifyShipped, Status: model.TaskStatusFailed, LastError: &lastErr}}, nil)

		w := httptest.NewRecorder()
		handler.FailedTasks(w, withRoute(httptest.NewRequest(http.MethodGet, "/?limit=25", nil), admin, nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var tasks []model.OutboxTask
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tasks))
		require.Len(t, tasks, 1)
		assert.Equal(t, "t1", tasks[0].ID)
	})

	tests := []struct {
		name           string
		mockError      error
		expectedStatus int
	}{
		{name: "Retry accepted", expectedStatus: http.StatusAccepted},
		{name: "Unknown task", mockError: model.ErrTaskNotFound, expectedStatus: http.StatusNotFound},
		{name: "Store failure", mockError: errors.New("connection refused"), expectedStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, m := newAdminHandler()
			m.outbox.On("Retry", mock.Anything, "t1").Return(tt.mockError)

			w := httptest.NewRecorder()
			handler.RetryTask(w, withRoute(httptest.NewRequest(http.MethodPost, "/", nil), admin, map[string]string{"id": "t1"}))

			assert.Equal(t, tt.expectedStatus, w.Code)
			m.outbox.AssertExpectations(t)
		})
	}
}
