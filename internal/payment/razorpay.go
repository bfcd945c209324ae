package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/rs/zerolog"
)

type razorpayOrderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type razorpayPaymentAPI interface {
	Fetch(paymentID string, queryParams map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// RazorpayConfig configures the Razorpay provider.
type RazorpayConfig struct {
	KeyID     string
	KeySecret string

	orders   razorpayOrderAPI
	payments razorpayPaymentAPI
}

// razorpayProvider implements Provider on top of the Razorpay SDK.
type razorpayProvider struct {
	orders   razorpayOrderAPI
	payments razorpayPaymentAPI
	logger   zerolog.Logger
}

// NewRazorpayProvider creates a Razorpay-backed provider.
func NewRazorpayProvider(cfg RazorpayConfig, logger zerolog.Logger) (Provider, error) {
	orders, payments := cfg.orders, cfg.payments
	if orders == nil || payments == nil {
		if strings.TrimSpace(cfg.KeyID) == "" || strings.TrimSpace(cfg.KeySecret) == "" {
			return nil, errors.New("razorpay: key id and secret are required")
		}
		client := razorpay.NewClient(cfg.KeyID, cfg.KeySecret)
		orders, payments = client.Order, client.Payment
	}

	return &razorpayProvider{
		orders:   orders,
		payments: payments,
		logger:   logger.With().Str("component", "razorpay").Logger(),
	}, nil
}

// CreateOrder registers an amount with Razorpay.
func (p *razorpayProvider) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (ProviderOrder, error) {
	data := map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	}

	body, err := withContext(ctx, func() (map[string]interface{}, error) {
		return p.orders.Create(data, nil)
	})
	if err != nil {
		p.logger.Error().Err(err).Int64("amount", amount).Msg("failed to create provider order")
		return ProviderOrder{}, fmt.Errorf("failed to create provider order: %w", err)
	}

	order := ProviderOrder{
		ID:       stringField(body, "id"),
		Amount:   intField(body, "amount"),
		Currency: stringField(body, "currency"),
		Receipt:  stringField(body, "receipt"),
	}
	if order.ID == "" {
		return ProviderOrder{}, errors.New("provider order response missing id")
	}
	if order.Amount == 0 {
		order.Amount = amount
	}
	if order.Currency == "" {
		order.Currency = currency
	}

	return order, nil
}

// FetchPayment retrieves a payment with card details expanded.
func (p *razorpayProvider) FetchPayment(ctx context.Context, paymentID string) (PaymentDetails, error) {
	query := map[string]interface{}{"expand[]": "card"}

	body, err := withContext(ctx, func() (map[string]interface{}, error) {
		return p.payments.Fetch(paymentID, query, nil)
	})
	if err != nil {
		return PaymentDetails{}, fmt.Errorf("failed to fetch payment %s: %w", paymentID, err)
	}

	details := PaymentDetails{
		ID:       stringField(body, "id"),
		OrderID:  stringField(body, "order_id"),
		Status:   stringField(body, "status"),
		Amount:   intField(body, "amount"),
		Currency: stringField(body, "currency"),
		Method:   stringField(body, "method"),
		Bank:     stringField(body, "bank"),
		VPA:      stringField(body, "vpa"),
		Wallet:   stringField(body, "wallet"),
		Email:    stringField(body, "email"),
		Contact:  stringField(body, "contact"),
	}
	if card, ok := body["card"].(map[string]interface{}); ok {
		details.CardLast4 = stringField(card, "last4")
		details.CardNetwork = stringField(card, "network")
		details.CardIssuer = stringField(card, "issuer")
	}

	return details, nil
}

// withContext runs a blocking SDK call and abandons it when ctx ends.
func withContext(ctx context.Context, call func() (map[string]interface{}, error)) (map[string]interface{}, error) {
	type result struct {
		body map[string]interface{}
		err  error
	}

	done := make(chan result, 1)
	go func() {
		body, err := call()
		done <- result{body: body, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		return res.body, res.err
	}
}

func stringField(body map[string]interface{}, key string) string {
	if v, ok := body[key].(string); ok {
		return v
	}
	return ""
}

func intField(body map[string]interface{}, key string) int64 {
	switch v := body[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}
