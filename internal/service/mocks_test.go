package service

import (
	"context"
	"sync/atomic"
	"time"

	"storefront/internal/coupon"
	"storefront/internal/model"
	"storefront/internal/notification"
	"storefront/internal/payment"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"
)

// MockOrderRepository is a mock implementation of OrderRepository.
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	// Return a MockTx interface value, not a pointer
	if tx, ok := args.Get(0).(pgx.Tx); ok {
		return tx, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderRepository) CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	args := m.Called(ctx, tx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) CreateOrderItems(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, items []model.LineItem) error {
	args := m.Called(ctx, tx, orderID, items)
	return args.Error(0)
}

func (m *MockOrderRepository) AppendTimeline(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, entry model.TimelineEntry) error {
	args := m.Called(ctx, tx, orderID, entry)
	return args.Error(0)
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) GetByOrderNumber(ctx context.Context, number string) (*model.Order, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) GetByProviderPaymentID(ctx context.Context, paymentID string) (*model.Order, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) List(ctx context.Context, filter model.OrderFilter) ([]model.Order, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *MockOrderRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, order *model.Order, expected model.OrderStatus) error {
	args := m.Called(ctx, tx, order, expected)
	return args.Error(0)
}

func (m *MockOrderRepository) UpdateTracking(ctx context.Context, id uuid.UUID, trackingNumber, carrier string) error {
	args := m.Called(ctx, id, trackingNumber, carrier)
	return args.Error(0)
}

func (m *MockOrderRepository) UpdateAdminNotes(ctx context.Context, id uuid.UUID, notes string) error {
	args := m.Called(ctx, id, notes)
	return args.Error(0)
}

func (m *MockOrderRepository) SetArchived(ctx context.Context, id uuid.UUID, archived bool) error {
	args := m.Called(ctx, id, archived)
	return args.Error(0)
}

func (m *MockOrderRepository) MarkSideEffect(ctx context.Context, id uuid.UUID, step string) error {
	args := m.Called(ctx, id, step)
	return args.Error(0)
}

// MockOutboxRepository is a mock implementation of OutboxRepository.
type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) Enqueue(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, kinds ...model.TaskKind) error {
	args := m.Called(ctx, tx, orderID, kinds)
	return args.Error(0)
}

func (m *MockOutboxRepository) ClaimDue(ctx context.Context, limit int, lease time.Duration) ([]model.OutboxTask, error) {
	args := m.Called(ctx, limit, lease)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.OutboxTask), args.Error(1)
}

func (m *MockOutboxRepository) MarkDone(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockOutboxRepository) MarkRetry(ctx context.Context, id string, next time.Time, lastError string) error {
	return m.Called(ctx, id, next, lastError).Error(0)
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id string, lastError string) error {
	return m.Called(ctx, id, lastError).Error(0)
}

func (m *MockOutboxRepository) ListFailed(ctx context.Context, limit int) ([]model.OutboxTask, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.OutboxTask), args.Error(1)
}

func (m *MockOutboxRepository) Requeue(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// MockProductRepository is a mock implementation of ProductRepository.
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) GetByID(ctx context.Context, id string) (*model.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockProductRepository) GetByIDs(ctx context.Context, ids []string) ([]model.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Product), args.Error(1)
}

// MockCouponAccounting is a mock implementation of coupon.Accounting.
type MockCouponAccounting struct {
	mock.Mock
}

func (m *MockCouponAccounting) CheckValidity(ctx context.Context, req coupon.Request) (coupon.Validity, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(coupon.Validity), args.Error(1)
}

func (m *MockCouponAccounting) Apply(ctx context.Context, req coupon.Request) error {
	return m.Called(ctx, req).Error(0)
}

// MockProvider is a mock implementation of payment.Provider.
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (payment.ProviderOrder, error) {
	args := m.Called(ctx, amount, currency, receipt)
	return args.Get(0).(payment.ProviderOrder), args.Error(1)
}

func (m *MockProvider) FetchPayment(ctx context.Context, paymentID string) (payment.PaymentDetails, error) {
	args := m.Called(ctx, paymentID)
	return args.Get(0).(payment.PaymentDetails), args.Error(1)
}

// MockDispatcher is a mock implementation of notification.Dispatcher.
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Send(ctx context.Context, msg notification.Message) error {
	return m.Called(ctx, msg).Error(0)
}

// MockTx is a minimal mock implementation of pgx.Tx for testing.
type MockTx struct {
	mock.Mock
}

func (m *MockTx) Commit(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockTx) Rollback(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// Stub methods to satisfy pgx.Tx interface - these are not used in our tests
func (m *MockTx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, nil }
func (m *MockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (m *MockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (m *MockTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (m *MockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (m *MockTx) Exec(ctx context.Context, sql string, arguments ...any) (commandTag pgconn.CommandTag, err error) {
	return
}
func (m *MockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (m *MockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (m *MockTx) Conn() *pgx.Conn                                               { return nil }

// kickCounter records relay wake-ups.
type kickCounter struct {
	n atomic.Int32
}

func (k *kickCounter) Kick() { k.n.Add(1) }

func (k *kickCounter) count() int { return int(k.n.Load()) }

// fixedEstimator returns a constant number of days after from.
type fixedEstimator struct {
	days int
}

func (e fixedEstimator) Estimate(from time.Time, _ model.Address) time.Time {
	return from.AddDate(0, 0, e.days)
}

var testAddress = model.Address{
	Line1:      "12 MG Road",
	City:       "Bengaluru",
	State:      "Karnataka",
	PostalCode: "560001",
	Country:    "IN",
}

func strPtr(s string) *string { return &s }
