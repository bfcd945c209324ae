package repository

import (
	"context"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ProductRepository defines read access to the live catalogue.
type ProductRepository interface {
	// GetByID retrieves a single product by its ID.
	GetByID(ctx context.Context, id string) (*model.Product, error)

	// GetByIDs retrieves multiple products by their IDs. Unknown IDs are omitted.
	GetByIDs(ctx context.Context, ids []string) ([]model.Product, error)
}

// OrderRepository defines the interface for the order ledger.
type OrderRepository interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// CreateOrder inserts a new order within the provided transaction.
	// A second order with the same provider payment id returns model.ErrDuplicatePayment.
	CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error

	// CreateOrderItems inserts the line items of an order, preserving their order.
	CreateOrderItems(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, items []model.LineItem) error

	// AppendTimeline appends a status history entry.
	AppendTimeline(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, entry model.TimelineEntry) error

	// GetByID retrieves an order with its items and timeline.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// GetByOrderNumber retrieves an order by its human-readable number.
	GetByOrderNumber(ctx context.Context, number string) (*model.Order, error)

	// GetByProviderPaymentID retrieves the order recorded for a provider payment.
	GetByProviderPaymentID(ctx context.Context, paymentID string) (*model.Order, error)

	// List returns orders newest first.
	List(ctx context.Context, filter model.OrderFilter) ([]model.Order, error)

	// UpdateStatus persists the status fields of order if its stored status is
	// still expected. Otherwise it returns model.ErrConflict.
	UpdateStatus(ctx context.Context, tx pgx.Tx, order *model.Order, expected model.OrderStatus) error

	// UpdateTracking sets the carrier tracking fields.
	UpdateTracking(ctx context.Context, id uuid.UUID, trackingNumber, carrier string) error

	// UpdateAdminNotes replaces the admin notes.
	UpdateAdminNotes(ctx context.Context, id uuid.UUID, notes string) error

	// SetArchived toggles the soft-archive flag.
	SetArchived(ctx context.Context, id uuid.UUID, archived bool) error

	// MarkSideEffect records that a side-effect step has completed for the order.
	MarkSideEffect(ctx context.Context, id uuid.UUID, step string) error
}

// OutboxRepository stores deferred side effects.
type OutboxRepository interface {
	// Enqueue adds pending tasks for an order within the provided transaction.
	Enqueue(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, kinds ...model.TaskKind) error

	// ClaimDue leases up to limit due tasks and increments their attempt counters.
	ClaimDue(ctx context.Context, limit int, lease time.Duration) ([]model.OutboxTask, error)

	// MarkDone completes a task.
	MarkDone(ctx context.Context, id string) error

	// MarkRetry releases a task to run again at next.
	MarkRetry(ctx context.Context, id string, next time.Time, lastError string) error

	// MarkFailed parks a task for operator attention.
	MarkFailed(ctx context.Context, id string, lastError string) error

	// ListFailed returns parked tasks, oldest first.
	ListFailed(ctx context.Context, limit int) ([]model.OutboxTask, error)

	// Requeue returns a failed task to the pending queue with a fresh attempt budget.
	Requeue(ctx context.Context, id string) error
}

// RoleRepository is the persisted role store behind admin authorisation.
type RoleRepository interface {
	HasRole(ctx context.Context, userID, role string) (bool, error)
	Grant(ctx context.Context, userID, role string) error
}
