package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const orderColumns = `
	id, order_number, user_id, contact, shipping_address, total_amount, shipping_fee,
	coupon_code, coupon_discount, currency, provider_order_id, provider_payment_id,
	provider_signature, payment_info, payment_status, paid_at, order_status,
	tracking_number, carrier, estimated_delivery_date, actual_delivery_date,
	admin_notes, archived, coupon_applied, confirmation_sent, created_at, updated_at
`

// orderRepository implements the OrderRepository interface using PostgreSQL.
type orderRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool, logger zerolog.Logger) OrderRepository {
	return &orderRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

// BeginTx starts a new database transaction.
func (r *orderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// CreateOrder inserts a new order within the provided transaction.
func (r *orderRepository) CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			$18, $19, $20, $21, $22, $23, $24, $25, $26, $27)
	`

	_, err := tx.Exec(ctx, query,
		order.ID, order.OrderNumber, order.UserID, order.Contact, order.ShippingAddress,
		order.TotalAmount, order.ShippingFee, order.CouponCode, order.CouponDiscount, order.Currency,
		order.ProviderOrderID, order.ProviderPaymentID, order.ProviderSignature, order.PaymentInfo,
		order.PaymentStatus, order.PaidAt, order.OrderStatus, order.TrackingNumber, order.Carrier,
		order.EstimatedDeliveryDate, order.ActualDeliveryDate, order.AdminNotes, order.Archived,
		order.CouponApplied, order.ConfirmationSent, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, providerPaymentConstraint) {
			r.logger.Info().
				Str("order_number", order.OrderNumber).
				Msg("provider payment already recorded")
			return model.ErrDuplicatePayment
		}
		r.logger.Error().
			Err(err).
			Str("order_id", order.ID.String()).
			Msg("failed to create order")
		return fmt.Errorf("failed to create order: %w", err)
	}

	r.logger.Debug().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Msg("order created successfully")

	return nil
}

// CreateOrderItems inserts the line items of an order within the provided transaction.
func (r *orderRepository) CreateOrderItems(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, items []model.LineItem) error {
	if len(items) == 0 {
		return nil
	}

	query := `
		INSERT INTO order_items (order_id, position, product_id, name, unit_price, quantity, image, color, weight)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	batch := &pgx.Batch{}
	for i, item := range items {
		batch.Queue(query, orderID, i, item.ProductID, item.Name, item.UnitPrice, item.Quantity,
			item.Image, item.Color, item.Weight)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(items); i++ {
		if _, err := results.Exec(); err != nil {
			r.logger.Error().
				Err(err).
				Str("order_id", orderID.String()).
				Str("product_id", items[i].ProductID).
				Msg("failed to create order item")
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	return nil
}

// AppendTimeline appends a status history entry within the provided transaction.
func (r *orderRepository) AppendTimeline(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, entry model.TimelineEntry) error {
	query := `
		INSERT INTO order_timeline (order_id, status, message, location, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := tx.Exec(ctx, query, orderID, entry.Status, entry.Message, entry.Location, entry.Actor, entry.Timestamp)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", orderID.String()).
			Str("status", string(entry.Status)).
			Msg("failed to append timeline entry")
		return fmt.Errorf("failed to append timeline entry: %w", err)
	}

	return nil
}

// GetByID retrieves an order by its ID along with its items and timeline.
func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return r.getOne(ctx, "id = $1", id)
}

// GetByOrderNumber retrieves an order by its human-readable number.
func (r *orderRepository) GetByOrderNumber(ctx context.Context, number string) (*model.Order, error) {
	return r.getOne(ctx, "order_number = $1", number)
}

// GetByProviderPaymentID retrieves the order recorded for a provider payment.
func (r *orderRepository) GetByProviderPaymentID(ctx context.Context, paymentID string) (*model.Order, error) {
	return r.getOne(ctx, "provider_payment_id = $1", paymentID)
}

func (r *orderRepository) getOne(ctx context.Context, where string, arg any) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + where

	order, err := scanOrder(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Interface("key", arg).Msg("order not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Interface("key", arg).Msg("failed to query order")
		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	if err := r.loadDetails(ctx, []*model.Order{order}); err != nil {
		return nil, err
	}

	return order, nil
}

// List returns orders newest first.
func (r *orderRepository) List(ctx context.Context, filter model.OrderFilter) ([]model.Order, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	var status *string
	if filter.Status != nil {
		s := string(*filter.Status)
		status = &s
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE ($1::text IS NULL OR order_status = $1)
			AND ($2 OR NOT archived)
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4
	`

	rows, err := r.pool.Query(ctx, query, status, filter.IncludeArchived, limit, offset)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query orders")
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order row")
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order rows")
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	ptrs := make([]*model.Order, len(orders))
	for i := range orders {
		ptrs[i] = &orders[i]
	}
	if err := r.loadDetails(ctx, ptrs); err != nil {
		return nil, err
	}

	return orders, nil
}

// UpdateStatus persists the status fields of order guarded on its expected current status.
func (r *orderRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, order *model.Order, expected model.OrderStatus) error {
	query := `
		UPDATE orders
		SET order_status = $2, payment_status = $3, paid_at = $4, estimated_delivery_date = $5,
			actual_delivery_date = $6, updated_at = $7
		WHERE id = $1 AND order_status = $8
	`

	tag, err := tx.Exec(ctx, query, order.ID, order.OrderStatus, order.PaymentStatus, order.PaidAt,
		order.EstimatedDeliveryDate, order.ActualDeliveryDate, order.UpdatedAt, expected)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to update order status")
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Warn().
			Str("order_id", order.ID.String()).
			Str("expected_status", string(expected)).
			Msg("order status changed concurrently")
		return model.ErrConflict
	}

	return nil
}

// UpdateTracking sets the carrier tracking fields.
func (r *orderRepository) UpdateTracking(ctx context.Context, id uuid.UUID, trackingNumber, carrier string) error {
	return r.exec(ctx, "update tracking", `
		UPDATE orders SET tracking_number = $2, carrier = $3, updated_at = NOW() WHERE id = $1
	`, id, trackingNumber, carrier)
}

// UpdateAdminNotes replaces the admin notes.
func (r *orderRepository) UpdateAdminNotes(ctx context.Context, id uuid.UUID, notes string) error {
	return r.exec(ctx, "update admin notes", `
		UPDATE orders SET admin_notes = $2, updated_at = NOW() WHERE id = $1
	`, id, notes)
}

// SetArchived toggles the soft-archive flag.
func (r *orderRepository) SetArchived(ctx context.Context, id uuid.UUID, archived bool) error {
	return r.exec(ctx, "set archived", `
		UPDATE orders SET archived = $2, updated_at = NOW() WHERE id = $1
	`, id, archived)
}

// MarkSideEffect records completion of a side-effect step on the order.
func (r *orderRepository) MarkSideEffect(ctx context.Context, id uuid.UUID, step string) error {
	var query string
	switch step {
	case model.SideEffectCouponApplied:
		query = `UPDATE orders SET coupon_applied = TRUE WHERE id = $1`
	case model.SideEffectConfirmationSent:
		query = `UPDATE orders SET confirmation_sent = TRUE WHERE id = $1`
	default:
		return fmt.Errorf("unknown side effect step %q", step)
	}
	return r.exec(ctx, "mark side effect", query, id)
}

func (r *orderRepository) exec(ctx context.Context, op, query string, id uuid.UUID, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to " + op)
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrOrderNotFound
	}
	return nil
}

// loadDetails fills items and timeline for the given orders with one query each.
func (r *orderRepository) loadDetails(ctx context.Context, orders []*model.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(orders))
	byID := make(map[uuid.UUID]*model.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = o
		o.Items = []model.LineItem{}
		o.Timeline = []model.TimelineEntry{}
	}

	itemRows, err := r.pool.Query(ctx, `
		SELECT order_id, product_id, name, unit_price, quantity, image, color, weight
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`, ids)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query order items")
		return fmt.Errorf("failed to query order items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var (
			orderID uuid.UUID
			item    model.LineItem
		)
		if err := itemRows.Scan(&orderID, &item.ProductID, &item.Name, &item.UnitPrice, &item.Quantity,
			&item.Image, &item.Color, &item.Weight); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		byID[orderID].Items = append(byID[orderID].Items, item)
	}
	if err := itemRows.Err(); err != nil {
		return fmt.Errorf("error iterating order items: %w", err)
	}
	itemRows.Close()

	timelineRows, err := r.pool.Query(ctx, `
		SELECT order_id, status, message, location, actor, created_at
		FROM order_timeline
		WHERE order_id = ANY($1)
		ORDER BY order_id, seq
	`, ids)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query order timeline")
		return fmt.Errorf("failed to query order timeline: %w", err)
	}
	defer timelineRows.Close()

	for timelineRows.Next() {
		var (
			orderID uuid.UUID
			entry   model.TimelineEntry
		)
		if err := timelineRows.Scan(&orderID, &entry.Status, &entry.Message, &entry.Location, &entry.Actor,
			&entry.Timestamp); err != nil {
			return fmt.Errorf("failed to scan timeline entry: %w", err)
		}
		entry.Timestamp = entry.Timestamp.UTC()
		byID[orderID].Timeline = append(byID[orderID].Timeline, entry)
	}
	if err := timelineRows.Err(); err != nil {
		return fmt.Errorf("error iterating order timeline: %w", err)
	}

	return nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.Contact, &o.ShippingAddress, &o.TotalAmount, &o.ShippingFee,
		&o.CouponCode, &o.CouponDiscount, &o.Currency, &o.ProviderOrderID, &o.ProviderPaymentID,
		&o.ProviderSignature, &o.PaymentInfo, &o.PaymentStatus, &o.PaidAt, &o.OrderStatus,
		&o.TrackingNumber, &o.Carrier, &o.EstimatedDeliveryDate, &o.ActualDeliveryDate,
		&o.AdminNotes, &o.Archived, &o.CouponApplied, &o.ConfirmationSent, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	normalizeTimes(&o)
	return &o, nil
}

// normalizeTimes converts timestamps read from the database to UTC.
func normalizeTimes(o *model.Order) {
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	for _, t := range []**time.Time{&o.PaidAt, &o.EstimatedDeliveryDate, &o.ActualDeliveryDate} {
		if *t != nil {
			u := (**t).UTC()
			*t = &u
		}
	}
}
