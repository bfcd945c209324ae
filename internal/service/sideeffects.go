package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/coupon"
	"storefront/internal/model"
	"storefront/internal/notification"
	"storefront/internal/repository"

	"github.com/rs/zerolog"
)

const maxBackoff = time.Hour

// RelayConfig tunes the side-effect relay.
type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	BaseBackoff  time.Duration
	Lease        time.Duration
}

func (c RelayConfig) withDefaults() RelayConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 10 * time.Second
	}
	if c.Lease <= 0 {
		c.Lease = time.Minute
	}
	return c
}

// RelayDeps holds the collaborators the relay executes tasks against.
type RelayDeps struct {
	Orders     repository.OrderRepository
	Outbox     repository.OutboxRepository
	Coupons    coupon.Accounting
	Dispatcher notification.Dispatcher
	Builder    *notification.Builder
}

// permanentError marks a task failure that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// SideEffectRelay executes the deferred side effects of orders from the durable outbox.
type SideEffectRelay struct {
	orders     repository.OrderRepository
	outbox     repository.OutboxRepository
	coupons    coupon.Accounting
	dispatcher notification.Dispatcher
	builder    *notification.Builder
	cfg        RelayConfig
	kick       chan struct{}
	logger     zerolog.Logger
	now        func() time.Time
}

// NewSideEffectRelay creates a relay. Call Run to start processing.
func NewSideEffectRelay(deps RelayDeps, cfg RelayConfig, logger zerolog.Logger) *SideEffectRelay {
	return &SideEffectRelay{
		orders:     deps.Orders,
		outbox:     deps.Outbox,
		coupons:    deps.Coupons,
		dispatcher: deps.Dispatcher,
		builder:    deps.Builder,
		cfg:        cfg.withDefaults(),
		kick:       make(chan struct{}, 1),
		logger:     logger.With().Str("component", "relay").Logger(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Kick wakes the relay without blocking the caller.
func (r *SideEffectRelay) Kick() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Run processes due tasks on every poll interval and kick until ctx is done.
func (r *SideEffectRelay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	r.logger.Info().
		Dur("poll_interval", r.cfg.PollInterval).
		Int("max_attempts", r.cfg.MaxAttempts).
		Msg("side-effect relay started")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("side-effect relay stopped")
			return
		case <-ticker.C:
		case <-r.kick:
		}

		for {
			n, err := r.ProcessDue(ctx)
			if err != nil {
				if ctx.Err() == nil {
					r.logger.Error().Err(err).Msg("failed to process outbox")
				}
				break
			}
			if n < r.cfg.BatchSize {
				break
			}
		}
	}
}

// ProcessDue claims one batch of due tasks and executes each independently.
// It returns the number of tasks claimed.
func (r *SideEffectRelay) ProcessDue(ctx context.Context) (int, error) {
	tasks, err := r.outbox.ClaimDue(ctx, r.cfg.BatchSize, r.cfg.Lease)
	if err != nil {
		return 0, fmt.Errorf("failed to claim tasks: %w", err)
	}

	for _, task := range tasks {
		r.process(ctx, task)
	}

	return len(tasks), nil
}

// ListFailed returns tasks parked for operator attention.
func (r *SideEffectRelay) ListFailed(ctx context.Context, limit int) ([]model.OutboxTask, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	tasks, err := r.outbox.ListFailed(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed tasks: %w", err)
	}
	return tasks, nil
}

// Retry requeues a failed task and wakes the relay.
func (r *SideEffectRelay) Retry(ctx context.Context, taskID string) error {
	if err := r.outbox.Requeue(ctx, taskID); err != nil {
		if errors.Is(err, model.ErrTaskNotFound) {
			return err
		}
		return fmt.Errorf("failed to requeue task: %w", err)
	}

	r.logger.Info().Str("task_id", taskID).Msg("task requeued")
	r.Kick()
	return nil
}

func (r *SideEffectRelay) process(ctx context.Context, task model.OutboxTask) {
	log := r.logger.With().
		Str("task_id", task.ID).
		Str("order_id", task.OrderID.String()).
		Str("kind", string(task.Kind)).
		Int("attempt", task.Attempts).
		Logger()

	err := r.execute(ctx, task)
	if err == nil {
		if err := r.outbox.MarkDone(ctx, task.ID); err != nil {
			log.Error().Err(err).Msg("failed to mark task done")
			return
		}
		log.Debug().Msg("task done")
		return
	}

	var permanent *permanentError
	if errors.As(err, &permanent) || task.Attempts >= r.cfg.MaxAttempts {
		if markErr := r.outbox.MarkFailed(ctx, task.ID, err.Error()); markErr != nil {
			log.Error().Err(markErr).Msg("failed to park task")
			return
		}
		log.Error().Err(err).Msg("side effect failed, parked for operator attention")
		return
	}

	next := r.now().Add(r.backoff(task.Attempts))
	if markErr := r.outbox.MarkRetry(ctx, task.ID, next, err.Error()); markErr != nil {
		log.Error().Err(markErr).Msg("failed to schedule retry")
		return
	}
	log.Warn().Err(err).Time("next_attempt_at", next).Msg("side effect failed, will retry")
}

// backoff doubles the base delay per attempt already made.
func (r *SideEffectRelay) backoff(attempts int) time.Duration {
	delay := r.cfg.BaseBackoff
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// execute runs a task against the authoritative order.
func (r *SideEffectRelay) execute(ctx context.Context, task model.OutboxTask) error {
	order, err := r.orders.GetByID(ctx, task.OrderID)
	if err != nil {
		return fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil {
		return &permanentError{err: model.ErrOrderNotFound}
	}

	switch task.Kind {
	case model.TaskCouponApply:
		return r.applyCoupon(ctx, order)
	case model.TaskNotifyConfirmation:
		if order.ConfirmationSent {
			return nil
		}
		if err := r.dispatcher.Send(ctx, r.builder.Build(notification.EventOrderConfirmed, order)); err != nil {
			return err
		}
		return r.orders.MarkSideEffect(ctx, order.ID, model.SideEffectConfirmationSent)
	case model.TaskNotifyShipped:
		return r.dispatcher.Send(ctx, r.builder.Build(notification.EventOrderShipped, order))
	case model.TaskNotifyDelivered:
		return r.dispatcher.Send(ctx, r.builder.Build(notification.EventOrderDelivered, order))
	}

	return &permanentError{err: fmt.Errorf("unknown task kind %q", task.Kind)}
}

func (r *SideEffectRelay) applyCoupon(ctx context.Context, order *model.Order) error {
	if order.CouponApplied || order.CouponCode == nil {
		return nil
	}

	err := r.coupons.Apply(ctx, coupon.Request{
		Code:        *order.CouponCode,
		Email:       order.Contact.Email,
		OrderAmount: order.ItemsSubtotal(),
		OrderNumber: order.OrderNumber,
	})
	if errors.Is(err, coupon.ErrUsageLimitReached) || errors.Is(err, coupon.ErrUnknownCoupon) {
		return &permanentError{err: err}
	}
	if err != nil {
		return err
	}

	return r.orders.MarkSideEffect(ctx, order.ID, model.SideEffectCouponApplied)
}
