// Package payment verifies and enriches results reported by the payment provider.
package payment

import (
	"context"
	"strings"

	"storefront/internal/model"
)

// DegradedLabel is the payment-method label used when enrichment is unavailable.
const DegradedLabel = "Online Payment"

// ProviderOrder is the provider-side order a client pays against.
type ProviderOrder struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
}

// PaymentDetails normalises the provider's payment record.
type PaymentDetails struct {
	ID          string
	OrderID     string
	Status      string
	Amount      int64
	Currency    string
	Method      string
	CardLast4   string
	CardNetwork string
	CardIssuer  string
	Bank        string
	VPA         string
	Wallet      string
	Email       string
	Contact     string
}

// Provider is the payment gateway as seen by the order flow.
type Provider interface {
	// CreateOrder registers an amount (minor units) with the provider.
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (ProviderOrder, error)

	// FetchPayment retrieves instrument details for a captured payment.
	FetchPayment(ctx context.Context, paymentID string) (PaymentDetails, error)
}

// DegradedPaymentInfo is recorded when the provider could not be queried.
func DegradedPaymentInfo() model.PaymentInfo {
	return model.PaymentInfo{Method: "online", Label: DegradedLabel}
}

// NormalizePaymentInfo maps provider details to the masked receipt form stored on the order.
func NormalizePaymentInfo(d PaymentDetails) model.PaymentInfo {
	method := strings.ToLower(strings.TrimSpace(d.Method))
	info := model.PaymentInfo{Method: method}

	switch method {
	case "card", "emi":
		info.CardLast4 = lastFour(d.CardLast4)
		info.CardNetwork = d.CardNetwork
		label := "Card"
		if method == "emi" {
			label = "EMI"
		}
		if info.CardNetwork != "" {
			label = info.CardNetwork + " " + strings.ToLower(label)
		}
		if info.CardLast4 != "" {
			label += " ending " + info.CardLast4
		}
		info.Label = label
		info.Bank = d.CardIssuer
	case "upi":
		info.VPA = maskVPA(d.VPA)
		info.Label = "UPI"
		if info.VPA != "" {
			info.Label = "UPI (" + info.VPA + ")"
		}
	case "netbanking":
		info.Bank = d.Bank
		info.Label = "Net Banking"
		if d.Bank != "" {
			info.Label = "Net Banking (" + d.Bank + ")"
		}
	case "wallet":
		info.Wallet = d.Wallet
		info.Label = "Wallet"
		if d.Wallet != "" {
			info.Label = "Wallet (" + d.Wallet + ")"
		}
	default:
		return DegradedPaymentInfo()
	}

	return info
}

func lastFour(digits string) string {
	digits = strings.TrimSpace(digits)
	if len(digits) > 4 {
		return digits[len(digits)-4:]
	}
	return digits
}

// maskVPA keeps the handle's first two characters and its provider suffix.
func maskVPA(vpa string) string {
	vpa = strings.TrimSpace(vpa)
	at := strings.LastIndex(vpa, "@")
	if at <= 0 {
		return vpa
	}
	user, host := vpa[:at], vpa[at:]
	if len(user) <= 2 {
		return user + host
	}
	return user[:2] + strings.Repeat("*", len(user)-2) + host
}
