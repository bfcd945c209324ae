package coupon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const pgForeignKeyViolation = "23503"

// Store implements Accounting on PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
	now    func() time.Time
}

// NewStore creates a PostgreSQL-backed coupon store.
func NewStore(pool *pgxpool.Pool, logger zerolog.Logger) *Store {
	return &Store{
		pool:   pool,
		logger: logger.With().Str("component", "coupon-store").Logger(),
		now:    time.Now,
	}
}

// Upsert inserts or updates definitions. Usage counts are never touched.
func (s *Store) Upsert(ctx context.Context, defs []Definition) error {
	if len(defs) == 0 {
		return nil
	}

	query := `
		INSERT INTO coupons (code, discount_type, discount_value, max_discount, min_order_value,
			usage_limit, valid_from, valid_to, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (code) DO UPDATE SET
			discount_type = EXCLUDED.discount_type,
			discount_value = EXCLUDED.discount_value,
			max_discount = EXCLUDED.max_discount,
			min_order_value = EXCLUDED.min_order_value,
			usage_limit = EXCLUDED.usage_limit,
			valid_from = EXCLUDED.valid_from,
			valid_to = EXCLUDED.valid_to,
			active = EXCLUDED.active,
			updated_at = NOW()
	`

	batch := &pgx.Batch{}
	for _, d := range defs {
		batch.Queue(query, d.Code, string(d.DiscountType), d.DiscountValue, d.MaxDiscount, d.MinOrderValue,
			d.UsageLimit, d.ValidFrom, d.ValidTo, d.Active)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for _, d := range defs {
		if _, err := results.Exec(); err != nil {
			s.logger.Error().Err(err).Str("coupon_code", d.Code).Msg("failed to upsert coupon")
			return fmt.Errorf("failed to upsert coupon %s: %w", d.Code, err)
		}
	}

	return nil
}

// Get returns a definition with its current usage count, or nil if unknown.
func (s *Store) Get(ctx context.Context, code string) (*Definition, int, error) {
	query := `
		SELECT code, discount_type, discount_value, max_discount, min_order_value,
			usage_limit, used_count, valid_from, valid_to, active
		FROM coupons
		WHERE code = $1
	`

	var (
		d         Definition
		kind      string
		usedCount int
	)
	err := s.pool.QueryRow(ctx, query, NormalizeCode(code)).Scan(
		&d.Code, &kind, &d.DiscountValue, &d.MaxDiscount, &d.MinOrderValue,
		&d.UsageLimit, &usedCount, &d.ValidFrom, &d.ValidTo, &d.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("failed to get coupon: %w", err)
	}
	d.DiscountType = DiscountType(kind)

	return &d, usedCount, nil
}

// CheckValidity evaluates the coupon against the request without consuming it.
func (s *Store) CheckValidity(ctx context.Context, req Request) (Validity, error) {
	if NormalizeCode(req.Code) == "" {
		return Validity{Reason: ReasonMissingCode}, nil
	}
	if req.OrderAmount <= 0 {
		return Validity{Reason: ReasonNonPositiveSum}, nil
	}

	def, usedCount, err := s.Get(ctx, req.Code)
	if err != nil {
		return Validity{}, err
	}

	return evaluate(def, usedCount, req.OrderAmount, s.now()), nil
}

func evaluate(def *Definition, usedCount int, orderAmount int64, now time.Time) Validity {
	switch {
	case def == nil:
		return Validity{Reason: ReasonUnknown}
	case !def.Active:
		return Validity{Reason: ReasonInactive}
	case def.ValidFrom != nil && now.Before(*def.ValidFrom):
		return Validity{Reason: ReasonNotYetValid}
	case def.ValidTo != nil && now.After(*def.ValidTo):
		return Validity{Reason: ReasonExpired}
	case def.UsageLimit != nil && usedCount >= *def.UsageLimit:
		return Validity{Reason: ReasonUsageLimit}
	case orderAmount < def.MinOrderValue:
		return Validity{Reason: ReasonBelowMinimum}
	}

	return Validity{Valid: true, Discount: def.Discount(orderAmount)}
}

// Apply records a use of the coupon for req.OrderNumber and increments the
// usage count only while it is below the limit.
func (s *Store) Apply(ctx context.Context, req Request) error {
	code := NormalizeCode(req.Code)
	if code == "" || req.OrderNumber == "" {
		return errors.New("coupon code and order number are required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.Error().Err(err).Msg("failed to rollback coupon transaction")
		}
	}()

	tag, err := tx.Exec(ctx, `
		INSERT INTO coupon_usages (code, order_number, email, order_amount, used_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code, order_number) DO NOTHING
	`, code, req.OrderNumber, req.Email, req.OrderAmount, s.now())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return ErrUnknownCoupon
		}
		return fmt.Errorf("failed to record coupon usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		s.logger.Debug().
			Str("coupon_code", code).
			Str("order_number", req.OrderNumber).
			Msg("coupon already applied to order")
		return nil
	}

	tag, err = tx.Exec(ctx, `
		UPDATE coupons
		SET used_count = used_count + 1, updated_at = NOW()
		WHERE code = $1 AND (usage_limit IS NULL OR used_count < usage_limit)
	`, code)
	if err != nil {
		return fmt.Errorf("failed to increment coupon usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUsageLimitReached
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit coupon usage: %w", err)
	}

	s.logger.Info().
		Str("coupon_code", code).
		Str("order_number", req.OrderNumber).
		Msg("coupon applied")

	return nil
}

// UsageCount returns how many orders have redeemed the coupon.
func (s *Store) UsageCount(ctx context.Context, code string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT used_count FROM coupons WHERE code = $1`, NormalizeCode(code)).Scan(&n)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUnknownCoupon
		}
		return 0, fmt.Errorf("failed to count coupon usage: %w", err)
	}
	return n, nil
}
