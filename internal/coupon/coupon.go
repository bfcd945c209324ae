// Package coupon tracks coupon definitions, validity and redemptions.
package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType selects how DiscountValue is interpreted.
type DiscountType string

const (
	// DiscountPercentage takes DiscountValue percent of the order amount.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed takes DiscountValue minor units off the order amount.
	DiscountFixed DiscountType = "fixed"
)

// Reasons reported by CheckValidity.
const (
	ReasonUnknown        = "coupon code does not exist"
	ReasonInactive       = "coupon is no longer active"
	ReasonNotYetValid    = "coupon is not valid yet"
	ReasonExpired        = "coupon has expired"
	ReasonUsageLimit     = "coupon usage limit reached"
	ReasonBelowMinimum   = "order value is below the coupon minimum"
	ReasonMissingCode    = "coupon code is required"
	ReasonNonPositiveSum = "order amount must be greater than zero"
)

var (
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	ErrUnknownCoupon     = errors.New("coupon does not exist")
)

// Definition is a coupon as authored in the definition files.
type Definition struct {
	Code          string       `json:"code"`
	DiscountType  DiscountType `json:"discountType"`
	DiscountValue int64        `json:"discountValue"`
	MaxDiscount   *int64       `json:"maxDiscount,omitempty"`
	MinOrderValue int64        `json:"minOrderValue"`
	UsageLimit    *int         `json:"usageLimit,omitempty"`
	ValidFrom     *time.Time   `json:"validFrom,omitempty"`
	ValidTo       *time.Time   `json:"validTo,omitempty"`
	Active        bool         `json:"active"`
}

// Validate checks that the definition is internally consistent.
func (d *Definition) Validate() error {
	if d.Code == "" {
		return errors.New("code is required")
	}
	switch d.DiscountType {
	case DiscountPercentage:
		if d.DiscountValue <= 0 || d.DiscountValue > 100 {
			return fmt.Errorf("coupon %s: percentage must be between 1 and 100", d.Code)
		}
	case DiscountFixed:
		if d.DiscountValue <= 0 {
			return fmt.Errorf("coupon %s: fixed discount must be positive", d.Code)
		}
	default:
		return fmt.Errorf("coupon %s: unknown discount type %q", d.Code, d.DiscountType)
	}
	if d.UsageLimit != nil && *d.UsageLimit < 0 {
		return fmt.Errorf("coupon %s: usage limit cannot be negative", d.Code)
	}
	if d.ValidFrom != nil && d.ValidTo != nil && d.ValidTo.Before(*d.ValidFrom) {
		return fmt.Errorf("coupon %s: validTo precedes validFrom", d.Code)
	}
	return nil
}

// Discount returns the discount in minor units for an order amount, never exceeding
// MaxDiscount or the amount itself.
func (d *Definition) Discount(orderAmount int64) int64 {
	var discount int64
	switch d.DiscountType {
	case DiscountPercentage:
		discount = decimal.NewFromInt(orderAmount).
			Mul(decimal.NewFromInt(d.DiscountValue)).
			Div(decimal.NewFromInt(100)).
			Round(0).
			IntPart()
	case DiscountFixed:
		discount = d.DiscountValue
	}

	if d.MaxDiscount != nil && discount > *d.MaxDiscount {
		discount = *d.MaxDiscount
	}
	if discount > orderAmount {
		discount = orderAmount
	}
	return discount
}

// NormalizeCode canonicalises a customer-entered code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Request identifies a redemption attempt.
type Request struct {
	Code        string
	Email       string
	OrderAmount int64
	OrderNumber string
}

// Validity is the result of a validity check.
type Validity struct {
	Valid    bool
	Reason   string
	Discount int64
}

// Accounting is the coupon validity and usage collaborator the order flow calls.
type Accounting interface {
	// CheckValidity reports whether the coupon may be used for the request.
	CheckValidity(ctx context.Context, req Request) (Validity, error)

	// Apply records one use of the coupon for the order. Applying twice for the
	// same order number is a no-op.
	Apply(ctx context.Context, req Request) error
}

// Loader reads coupon definitions from a gzipped JSON-lines source.
type Loader interface {
	Load(ctx context.Context, path string) ([]Definition, error)
}
