package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"storefront/internal/delivery"
	"storefront/internal/lifecycle"
	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	bulkConcurrency  = 8
	maxMessageLength = 500
	maxNotesLength   = 5000
	maxTrackingField = 64
)

// LifecycleServiceDeps holds the collaborators of the lifecycle service.
type LifecycleServiceDeps struct {
	Orders   repository.OrderRepository
	Outbox   repository.OutboxRepository
	Delivery delivery.Estimator
	Relay    Kicker
}

// lifecycleService implements LifecycleService.
type lifecycleService struct {
	orders    repository.OrderRepository
	outbox    repository.OutboxRepository
	delivery  delivery.Estimator
	relay     Kicker
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	now       func() time.Time
}

// NewLifecycleService creates a new lifecycle service.
func NewLifecycleService(deps LifecycleServiceDeps, logger zerolog.Logger) LifecycleService {
	return &lifecycleService{
		orders:    deps.Orders,
		outbox:    deps.Outbox,
		delivery:  deps.Delivery,
		relay:     deps.Relay,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("service", "lifecycle").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Advance moves an order to a new status on behalf of an admin.
func (s *lifecycleService) Advance(ctx context.Context, identifier string, req *model.AdvanceRequest, actor *model.Identity) (*model.Order, error) {
	if req == nil {
		return nil, model.ValidationError("status request is nil")
	}

	order, err := s.resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}

	return s.transition(ctx, order, lifecycle.Transition{
		To:            req.Status,
		Message:       s.clean(req.Message, maxMessageLength),
		Location:      s.cleanPtr(req.Location),
		Actor:         actorName(actor),
		PaymentStatus: req.PaymentStatus,
	})
}

// CustomerCancel cancels an order the identity owns.
func (s *lifecycleService) CustomerCancel(ctx context.Context, identifier string, identity *model.Identity) (*model.Order, error) {
	order, err := s.resolveOwned(ctx, identifier, identity)
	if err != nil {
		return nil, err
	}

	return s.transition(ctx, order, lifecycle.Transition{
		To:                model.OrderStatusCancelled,
		Message:           "Order cancelled by customer",
		Actor:             lifecycle.ActorCustomer,
		CustomerInitiated: true,
	})
}

// BulkAdvance applies one status to many orders. Each order succeeds or fails on its own.
func (s *lifecycleService) BulkAdvance(ctx context.Context, req *model.BulkAdvanceRequest, actor *model.Identity) (*model.BulkResult, error) {
	if req == nil || len(req.OrderIDs) == 0 {
		return nil, model.ValidationError("at least one order identifier is required")
	}
	if !req.Status.Valid() {
		return nil, model.ValidationError(fmt.Sprintf("unknown order status %q", req.Status))
	}

	message := s.clean(req.Message, maxMessageLength)
	name := actorName(actor)
	failures := make([]error, len(req.OrderIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkConcurrency)
	for i, identifier := range req.OrderIDs {
		g.Go(func() error {
			order, err := s.resolve(gctx, identifier)
			if err == nil {
				_, err = s.transition(gctx, order, lifecycle.Transition{
					To:      req.Status,
					Message: message,
					Actor:   name,
				})
			}
			failures[i] = err
			return nil
		})
	}
	_ = g.Wait()

	result := &model.BulkResult{Succeeded: []string{}, Failed: []model.BulkFailure{}}
	for i, identifier := range req.OrderIDs {
		if failures[i] == nil {
			result.Succeeded = append(result.Succeeded, identifier)
			continue
		}
		result.Failed = append(result.Failed, model.BulkFailure{OrderID: identifier, Reason: failureReason(failures[i])})
	}

	s.logger.Info().
		Str("status", string(req.Status)).
		Int("succeeded", len(result.Succeeded)).
		Int("failed", len(result.Failed)).
		Msg("bulk status update finished")

	return result, nil
}

// GetTimeline returns the tracking view of an order the identity owns.
func (s *lifecycleService) GetTimeline(ctx context.Context, identifier string, identity *model.Identity) (*model.TimelineResponse, error) {
	order, err := s.resolveOwned(ctx, identifier, identity)
	if err != nil {
		return nil, err
	}

	return &model.TimelineResponse{
		OrderID:               order.OrderNumber,
		OrderStatus:           order.OrderStatus,
		TrackingNumber:        order.TrackingNumber,
		Carrier:               order.Carrier,
		EstimatedDeliveryDate: order.EstimatedDeliveryDate,
		ActualDeliveryDate:    order.ActualDeliveryDate,
		Timeline:              order.Timeline,
	}, nil
}

// GetOrder returns a single order.
func (s *lifecycleService) GetOrder(ctx context.Context, identifier string) (*model.Order, error) {
	return s.resolve(ctx, identifier)
}

// ListOrders returns orders newest first.
func (s *lifecycleService) ListOrders(ctx context.Context, filter model.OrderFilter) ([]model.Order, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, model.ValidationError(fmt.Sprintf("unknown order status %q", *filter.Status))
	}
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	orders, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// UpdateTracking sets the carrier tracking fields.
func (s *lifecycleService) UpdateTracking(ctx context.Context, identifier string, req *model.TrackingRequest) (*model.Order, error) {
	if req == nil {
		return nil, model.ValidationError("tracking request is nil")
	}
	trackingNumber := s.clean(req.TrackingNumber, maxTrackingField)
	carrier := s.clean(req.Carrier, maxTrackingField)
	if trackingNumber == "" {
		return nil, model.ValidationError("tracking number is required")
	}

	return s.update(ctx, identifier, "tracking", func(id uuid.UUID) error {
		return s.orders.UpdateTracking(ctx, id, trackingNumber, carrier)
	})
}

// UpdateAdminNotes replaces the admin notes.
func (s *lifecycleService) UpdateAdminNotes(ctx context.Context, identifier string, req *model.NotesRequest) (*model.Order, error) {
	if req == nil {
		return nil, model.ValidationError("notes request is nil")
	}
	notes := s.clean(req.Notes, maxNotesLength)

	return s.update(ctx, identifier, "notes", func(id uuid.UUID) error {
		return s.orders.UpdateAdminNotes(ctx, id, notes)
	})
}

// SetArchived toggles the soft-archive flag.
func (s *lifecycleService) SetArchived(ctx context.Context, identifier string, req *model.ArchiveRequest) (*model.Order, error) {
	if req == nil {
		return nil, model.ValidationError("archive request is nil")
	}

	return s.update(ctx, identifier, "archive", func(id uuid.UUID) error {
		return s.orders.SetArchived(ctx, id, req.Archived)
	})
}

// update runs a single-field write and returns the re-read order.
func (s *lifecycleService) update(ctx context.Context, identifier, op string, write func(uuid.UUID) error) (*model.Order, error) {
	order, err := s.resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if err := write(order.ID); err != nil {
		if errors.Is(err, model.ErrOrderNotFound) {
			return nil, err
		}
		s.logger.Error().Err(err).Str("order_number", order.OrderNumber).Str("op", op).Msg("failed to update order")
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	return s.resolve(ctx, order.ID.String())
}

// transition applies t to order and persists the result in one transaction.
func (s *lifecycleService) transition(ctx context.Context, order *model.Order, t lifecycle.Transition) (*model.Order, error) {
	now := s.now()
	outcome, err := lifecycle.Apply(order, t, now)
	if err != nil {
		s.logger.Debug().Err(err).
			Str("order_number", order.OrderNumber).
			Str("from", string(order.OrderStatus)).
			Str("to", string(t.To)).
			Msg("transition rejected")
		return nil, err
	}
	if !outcome.Changed && !outcome.PaymentChanged {
		return order, nil
	}

	if order.PaymentStatus == model.PaymentStatusCompleted && order.EstimatedDeliveryDate == nil && s.delivery != nil {
		estimate := s.delivery.Estimate(now, order.ShippingAddress)
		order.EstimatedDeliveryDate = &estimate
	}

	var tasks []model.TaskKind
	switch outcome.Notify {
	case lifecycle.NotifyShipped:
		tasks = append(tasks, model.TaskNotifyShipped)
	case lifecycle.NotifyDelivered:
		tasks = append(tasks, model.TaskNotifyDelivered)
	}

	tx, err := s.orders.BeginTx(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	if err = s.orders.UpdateStatus(ctx, tx, order, outcome.Previous); err != nil {
		if errors.Is(err, model.ErrConflict) {
			s.logger.Warn().Str("order_number", order.OrderNumber).Msg("order changed concurrently")
			return nil, err
		}
		s.logger.Error().Err(err).Str("order_number", order.OrderNumber).Msg("failed to update order status")
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	if outcome.Entry != nil {
		if err = s.orders.AppendTimeline(ctx, tx, order.ID, *outcome.Entry); err != nil {
			s.logger.Error().Err(err).Str("order_number", order.OrderNumber).Msg("failed to append timeline")
			return nil, fmt.Errorf("failed to update order: %w", err)
		}
	}

	if len(tasks) > 0 {
		if err = s.outbox.Enqueue(ctx, tx, order.ID, tasks...); err != nil {
			s.logger.Error().Err(err).Str("order_number", order.OrderNumber).Msg("failed to enqueue notification")
			return nil, fmt.Errorf("failed to update order: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		s.logger.Error().Err(err).Str("order_number", order.OrderNumber).Msg("failed to commit transaction")
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	if len(tasks) > 0 && s.relay != nil {
		s.relay.Kick()
	}

	s.logger.Info().
		Str("order_number", order.OrderNumber).
		Str("from", string(outcome.Previous)).
		Str("status", string(order.OrderStatus)).
		Str("payment_status", string(order.PaymentStatus)).
		Str("actor", t.Actor).
		Msg("order status updated")

	return order, nil
}

// resolve loads an order by internal UUID or human-readable order number.
func (s *lifecycleService) resolve(ctx context.Context, identifier string) (*model.Order, error) {
	identifier = strings.TrimSpace(identifier)

	var (
		order *model.Order
		err   error
	)
	if id, parseErr := uuid.Parse(identifier); parseErr == nil {
		order, err = s.orders.GetByID(ctx, id)
	} else if number := strings.ToUpper(identifier); looksLikeOrderNumber(number) {
		order, err = s.orders.GetByOrderNumber(ctx, number)
	} else {
		return nil, model.NewDomainError(model.ErrCodeOrderNotFound, fmt.Sprintf("malformed order identifier %q", identifier))
	}

	if err != nil {
		s.logger.Error().Err(err).Str("identifier", identifier).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}
	return order, nil
}

// resolveOwned loads an order and hides it from identities that do not own it.
func (s *lifecycleService) resolveOwned(ctx context.Context, identifier string, identity *model.Identity) (*model.Order, error) {
	if identity == nil {
		return nil, model.ErrUnauthorised
	}

	order, err := s.resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if !owns(identity, order) {
		s.logger.Warn().
			Str("order_number", order.OrderNumber).
			Str("user_id", identity.UserID).
			Msg("order requested by non-owner")
		return nil, model.ErrOrderNotFound
	}
	return order, nil
}

func owns(identity *model.Identity, order *model.Order) bool {
	if order.UserID != nil && identity.UserID != "" && *order.UserID == identity.UserID {
		return true
	}
	return identity.Email != "" && strings.EqualFold(identity.Email, order.Contact.Email)
}

// clean strips markup from free text and bounds its length.
func (s *lifecycleService) clean(text string, max int) string {
	text = strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(text)))
	if r := []rune(text); len(r) > max {
		text = string(r[:max])
	}
	return text
}

func (s *lifecycleService) cleanPtr(text *string) *string {
	if text == nil {
		return nil
	}
	cleaned := s.clean(*text, maxMessageLength)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

func actorName(actor *model.Identity) string {
	if name := actor.DisplayName(); name != "" {
		return name
	}
	return "Admin"
}

// failureReason renders an error for a bulk result without leaking infrastructure detail.
func failureReason(err error) string {
	var de *model.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}
