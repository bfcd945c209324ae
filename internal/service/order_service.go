package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"storefront/internal/coupon"
	"storefront/internal/delivery"
	"storefront/internal/lifecycle"
	"storefront/internal/model"
	"storefront/internal/payment"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultEnrichmentTimeout = 3 * time.Second

// Column widths of the order tables, in characters.
const (
	maxProviderIDLength  = 64
	maxUserIDLength      = 128
	maxCouponCodeLength  = 64
	maxProductIDLength   = 64
	maxItemNameLength    = 255
	maxItemVariantLength = 64
)

// OrderServiceDeps holds the collaborators of the payment flow.
type OrderServiceDeps struct {
	Orders   repository.OrderRepository
	Outbox   repository.OutboxRepository
	Verifier *payment.SignatureVerifier
	Provider payment.Provider
	Coupons  coupon.Accounting
	Delivery delivery.Estimator
	Relay    Kicker

	Currency          string
	KeyID             string
	EnrichmentTimeout time.Duration
}

// orderService implements OrderService.
type orderService struct {
	orders   repository.OrderRepository
	outbox   repository.OutboxRepository
	verifier *payment.SignatureVerifier
	provider payment.Provider
	coupons  coupon.Accounting
	delivery delivery.Estimator
	relay    Kicker

	currency          string
	keyID             string
	enrichmentTimeout time.Duration

	logger zerolog.Logger
	now    func() time.Time
}

// NewOrderService creates a new order service.
func NewOrderService(deps OrderServiceDeps, logger zerolog.Logger) OrderService {
	timeout := deps.EnrichmentTimeout
	if timeout <= 0 {
		timeout = defaultEnrichmentTimeout
	}
	currency := deps.Currency
	if currency == "" {
		currency = "INR"
	}

	return &orderService{
		orders:            deps.Orders,
		outbox:            deps.Outbox,
		verifier:          deps.Verifier,
		provider:          deps.Provider,
		coupons:           deps.Coupons,
		delivery:          deps.Delivery,
		relay:             deps.Relay,
		currency:          currency,
		keyID:             deps.KeyID,
		enrichmentTimeout: timeout,
		logger:            logger.With().Str("service", "order").Logger(),
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// CreatePaymentIntent converts the amount to minor units and registers it with the provider.
func (s *orderService) CreatePaymentIntent(ctx context.Context, req *model.PaymentIntentRequest) (*model.PaymentIntentResponse, error) {
	if req == nil {
		return nil, model.ValidationError("payment intent request is nil")
	}

	amount, err := payment.ToMinorUnits(req.Amount)
	if err != nil {
		return nil, model.ValidationError(err.Error())
	}

	if code := couponCode(req.CouponCode); code != "" {
		validity, err := s.coupons.CheckValidity(ctx, coupon.Request{
			Code:        code,
			Email:       strings.TrimSpace(req.Email),
			OrderAmount: amount,
		})
		if err != nil {
			s.logger.Error().Err(err).Str("coupon_code", code).Msg("failed to check coupon")
			return nil, fmt.Errorf("failed to check coupon: %w", err)
		}
		if !validity.Valid {
			s.logger.Debug().Str("coupon_code", code).Str("reason", validity.Reason).Msg("coupon rejected")
			return nil, model.ValidationError(validity.Reason)
		}
	}

	receipt := fmt.Sprintf("rcpt_%d", s.now().UnixMilli())
	providerOrder, err := s.provider.CreateOrder(ctx, amount, s.currency, receipt)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	s.logger.Info().
		Str("provider_order_id", providerOrder.ID).
		Int64("amount", providerOrder.Amount).
		Msg("payment intent created")

	return &model.PaymentIntentResponse{
		ProviderOrderID: providerOrder.ID,
		Currency:        providerOrder.Currency,
		Amount:          providerOrder.Amount,
		KeyID:           s.keyID,
	}, nil
}

// VerifyAndFinalize authenticates the provider's result and records the order.
func (s *orderService) VerifyAndFinalize(ctx context.Context, req *model.VerifyPaymentRequest, identity *model.Identity) (*model.VerifyPaymentResponse, error) {
	if req == nil {
		return nil, model.ErrMissingPaymentParams
	}

	verification := s.verifier.Verify(req.ProviderOrderID, req.ProviderPaymentID, req.ProviderSignature)
	if !verification.Verified {
		s.logger.Warn().
			Str("failure", string(verification.Failure)).
			Str("provider_order_id", req.ProviderOrderID).
			Str("provider_payment_id", req.ProviderPaymentID).
			Msg("payment verification failed")
		if verification.Failure == payment.FailureMissingFields {
			return nil, model.ErrMissingPaymentParams
		}
		return nil, model.ErrSignatureMismatch
	}

	if tooLong(req.ProviderOrderID, maxProviderIDLength) || tooLong(req.ProviderPaymentID, maxProviderIDLength) {
		return nil, model.ValidationError(fmt.Sprintf("provider identifiers must be at most %d characters", maxProviderIDLength))
	}

	existing, err := s.orders.GetByProviderPaymentID(ctx, req.ProviderPaymentID)
	if err != nil {
		s.logger.Error().Err(err).Str("provider_payment_id", req.ProviderPaymentID).Msg("failed to look up payment")
		return nil, model.ErrPersistence
	}
	if existing != nil {
		s.logger.Info().
			Str("order_number", existing.OrderNumber).
			Str("provider_payment_id", req.ProviderPaymentID).
			Msg("payment already recorded")
		return &model.VerifyPaymentResponse{OrderID: existing.OrderNumber, AlreadyProcessed: true}, nil
	}

	order, err := s.buildOrder(&req.Order, identity)
	if err != nil {
		return nil, err
	}

	now := s.now()
	providerOrderID := req.ProviderOrderID
	providerPaymentID := req.ProviderPaymentID
	signature := req.ProviderSignature
	order.ProviderOrderID = &providerOrderID
	order.ProviderPaymentID = &providerPaymentID
	order.ProviderSignature = &signature
	order.PaymentStatus = model.PaymentStatusCompleted
	order.PaidAt = &now

	applyCoupon := s.recheckCoupon(ctx, order)

	s.enrich(ctx, order)

	estimate := s.delivery.Estimate(now, order.ShippingAddress)
	order.EstimatedDeliveryDate = &estimate

	actor := lifecycle.ActorCustomer
	if identity != nil && identity.DisplayName() != "" {
		actor = identity.DisplayName()
	}
	lifecycle.Seed(order, actor, now)

	tasks := []model.TaskKind{model.TaskNotifyConfirmation}
	if applyCoupon {
		tasks = append([]model.TaskKind{model.TaskCouponApply}, tasks...)
	}

	if err := s.persist(ctx, order, tasks); err != nil {
		if errors.Is(err, model.ErrDuplicatePayment) {
			winner, lookupErr := s.orders.GetByProviderPaymentID(ctx, providerPaymentID)
			if lookupErr == nil && winner != nil {
				return &model.VerifyPaymentResponse{OrderID: winner.OrderNumber, AlreadyProcessed: true}, nil
			}
			s.logger.Error().Err(lookupErr).Str("provider_payment_id", providerPaymentID).Msg("failed to load concurrently recorded order")
		}
		return nil, model.ErrPersistence
	}

	s.kick()

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Str("provider_payment_id", providerPaymentID).
		Int64("total_amount", order.TotalAmount).
		Msg("order recorded")

	return &model.VerifyPaymentResponse{OrderID: order.OrderNumber}, nil
}

// CreateManualOrder records an order taken outside the gateway, e.g. cash on delivery.
func (s *orderService) CreateManualOrder(ctx context.Context, req *model.ManualOrderRequest, actor *model.Identity) (*model.Order, error) {
	if req == nil {
		return nil, model.ValidationError("manual order request is nil")
	}
	if req.PaymentStatus != model.PaymentStatusPending && req.PaymentStatus != model.PaymentStatusCompleted {
		return nil, model.ValidationError("payment status must be pending or completed")
	}

	order, err := s.buildOrder(&req.Order, nil)
	if err != nil {
		return nil, err
	}
	if req.UserID != nil && strings.TrimSpace(*req.UserID) != "" {
		userID := strings.TrimSpace(*req.UserID)
		order.UserID = &userID
	}

	now := s.now()
	method := strings.TrimSpace(req.PaymentMethod)
	if method == "" {
		method = "Manual"
	}
	order.PaymentInfo = model.PaymentInfo{Method: strings.ToLower(strings.ReplaceAll(method, " ", "_")), Label: method}
	order.PaymentStatus = req.PaymentStatus

	applyCoupon := s.recheckCoupon(ctx, order)
	if req.PaymentStatus == model.PaymentStatusCompleted {
		order.PaidAt = &now
		estimate := s.delivery.Estimate(now, order.ShippingAddress)
		order.EstimatedDeliveryDate = &estimate
	} else {
		applyCoupon = false
	}

	name := lifecycle.ActorSystem
	if actor != nil && actor.DisplayName() != "" {
		name = actor.DisplayName()
	}
	lifecycle.Seed(order, name, now)

	tasks := []model.TaskKind{model.TaskNotifyConfirmation}
	if applyCoupon {
		tasks = append([]model.TaskKind{model.TaskCouponApply}, tasks...)
	}

	if err := s.persist(ctx, order, tasks); err != nil {
		return nil, model.ErrPersistence
	}

	s.kick()

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Str("payment_status", string(order.PaymentStatus)).
		Msg("manual order recorded")

	return order, nil
}

// buildOrder validates the payload and turns it into an unsaved order.
func (s *orderService) buildOrder(p *model.OrderPayload, identity *model.Identity) (*model.Order, error) {
	if len(p.Items) == 0 {
		return nil, model.ValidationError("order must contain at least one item")
	}
	if p.TotalAmount <= 0 {
		return nil, model.ValidationError("total amount must be greater than zero")
	}
	if p.ShippingFee < 0 {
		return nil, model.ValidationError("shipping fee cannot be negative")
	}

	items := make([]model.LineItem, len(p.Items))
	for i, item := range p.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return nil, model.ValidationError(fmt.Sprintf("item %d: product ID is required", i))
		}
		if item.Quantity < 1 {
			return nil, model.ValidationError(fmt.Sprintf("item %d: quantity must be at least 1", i))
		}
		if item.UnitPrice < 0 {
			return nil, model.ValidationError(fmt.Sprintf("item %d: unit price cannot be negative", i))
		}
		if err := checkItemLengths(i, item); err != nil {
			return nil, err
		}
		items[i] = model.LineItem{
			ProductID: strings.TrimSpace(item.ProductID),
			Name:      strings.TrimSpace(item.Name),
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Image:     item.Image,
			Color:     item.Color,
			Weight:    item.Weight,
		}
	}

	contact := p.Contact
	contact.Email = strings.TrimSpace(contact.Email)
	var userID *string
	if identity != nil {
		if identity.Email != "" {
			contact.Email = identity.Email
		}
		if contact.Name == "" {
			contact.Name = identity.Name
		}
		if identity.UserID != "" {
			if tooLong(identity.UserID, maxUserIDLength) {
				return nil, model.ValidationError(fmt.Sprintf("user ID must be at most %d characters", maxUserIDLength))
			}
			id := identity.UserID
			userID = &id
		}
	}
	if contact.Email == "" || !strings.Contains(contact.Email, "@") {
		return nil, model.ValidationError("a customer email address is required")
	}

	code := couponCode(p.CouponCode)
	if tooLong(code, maxCouponCodeLength) {
		return nil, model.ValidationError(fmt.Sprintf("coupon code must be at most %d characters", maxCouponCodeLength))
	}

	number, err := NewOrderNumber(s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to generate order number: %w", err)
	}

	now := s.now()
	order := &model.Order{
		ID:              uuid.New(),
		OrderNumber:     number,
		UserID:          userID,
		Contact:         contact,
		Items:           items,
		ShippingAddress: p.ShippingAddress,
		TotalAmount:     p.TotalAmount,
		ShippingFee:     p.ShippingFee,
		Currency:        s.currency,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if code != "" {
		order.CouponCode = &code
	}

	return order, nil
}

func checkItemLengths(i int, item model.OrderItemRequest) error {
	if tooLong(strings.TrimSpace(item.ProductID), maxProductIDLength) {
		return model.ValidationError(fmt.Sprintf("item %d: product ID must be at most %d characters", i, maxProductIDLength))
	}
	if tooLong(strings.TrimSpace(item.Name), maxItemNameLength) {
		return model.ValidationError(fmt.Sprintf("item %d: name must be at most %d characters", i, maxItemNameLength))
	}
	if item.Color != nil && tooLong(*item.Color, maxItemVariantLength) {
		return model.ValidationError(fmt.Sprintf("item %d: color must be at most %d characters", i, maxItemVariantLength))
	}
	if item.Weight != nil && tooLong(*item.Weight, maxItemVariantLength) {
		return model.ValidationError(fmt.Sprintf("item %d: weight must be at most %d characters", i, maxItemVariantLength))
	}
	return nil
}

func tooLong(s string, max int) bool {
	return utf8.RuneCountInString(s) > max
}

// recheckCoupon re-validates the coupon against the recorded subtotal. An invalid
// coupon stays on the order for the record but is not applied.
func (s *orderService) recheckCoupon(ctx context.Context, order *model.Order) bool {
	if order.CouponCode == nil {
		return false
	}

	validity, err := s.coupons.CheckValidity(ctx, coupon.Request{
		Code:        *order.CouponCode,
		Email:       order.Contact.Email,
		OrderAmount: order.ItemsSubtotal(),
		OrderNumber: order.OrderNumber,
	})
	if err != nil {
		s.logger.Warn().Err(err).
			Str("order_number", order.OrderNumber).
			Str("coupon_code", *order.CouponCode).
			Msg("coupon check unavailable, coupon will not be applied")
		return false
	}
	if !validity.Valid {
		s.logger.Warn().
			Str("order_number", order.OrderNumber).
			Str("coupon_code", *order.CouponCode).
			Str("reason", validity.Reason).
			Msg("coupon no longer valid, recorded but not applied")
		return false
	}

	order.CouponDiscount = validity.Discount
	return true
}

// enrich fills PaymentInfo from the provider, falling back to the degraded label.
func (s *orderService) enrich(ctx context.Context, order *model.Order) {
	order.PaymentInfo = payment.DegradedPaymentInfo()
	if s.provider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.enrichmentTimeout)
	defer cancel()

	details, err := s.provider.FetchPayment(ctx, *order.ProviderPaymentID)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("order_number", order.OrderNumber).
			Str("provider_payment_id", *order.ProviderPaymentID).
			Msg("payment enrichment unavailable, using generic label")
		return
	}

	order.PaymentInfo = payment.NormalizePaymentInfo(details)
	if details.Amount > 0 && details.Amount != order.TotalAmount {
		s.logger.Warn().
			Str("order_number", order.OrderNumber).
			Int64("declared_amount", order.TotalAmount).
			Int64("captured_amount", details.Amount).
			Msg("declared total differs from captured amount, recording captured amount")
		order.TotalAmount = details.Amount
	}
}

// persist writes the order, its items, seed timeline entry and side-effect tasks atomically.
func (s *orderService) persist(ctx context.Context, order *model.Order, tasks []model.TaskKind) (err error) {
	tx, err := s.orders.BeginTx(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to begin transaction")
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	if err = s.orders.CreateOrder(ctx, tx, order); err != nil {
		if !errors.Is(err, model.ErrDuplicatePayment) {
			s.logger.Error().Err(err).Str("order_number", order.OrderNumber).Msg("failed to create order")
		}
		return err
	}

	if err = s.orders.CreateOrderItems(ctx, tx, order.ID, order.Items); err != nil {
		s.logger.Error().Err(err).
			Str("order_number", order.OrderNumber).
			Int("item_count", len(order.Items)).
			Msg("failed to create order items")
		return err
	}

	if err = s.orders.AppendTimeline(ctx, tx, order.ID, order.Timeline[0]); err != nil {
		s.logger.Error().Err(err).Str("order_number", order.OrderNumber).Msg("failed to seed timeline")
		return err
	}

	if err = s.outbox.Enqueue(ctx, tx, order.ID, tasks...); err != nil {
		s.logger.Error().Err(err).Str("order_number", order.OrderNumber).Msg("failed to enqueue side effects")
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		s.logger.Error().Err(err).Str("order_number", order.OrderNumber).Msg("failed to commit transaction")
		return err
	}

	return nil
}

func (s *orderService) kick() {
	if s.relay != nil {
		s.relay.Kick()
	}
}

func couponCode(code *string) string {
	if code == nil {
		return ""
	}
	return coupon.NormalizeCode(*code)
}
