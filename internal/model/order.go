package model

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPlaced         OrderStatus = "placed"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusProcessing     OrderStatus = "processing"
	OrderStatusShipped        OrderStatus = "shipped"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
	OrderStatusReturned       OrderStatus = "returned"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPlaced, OrderStatusConfirmed, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusOutForDelivery, OrderStatusDelivered, OrderStatusCancelled, OrderStatusReturned:
		return true
	}
	return false
}

// Terminal reports whether no further forward movement is possible from s.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled || s == OrderStatusReturned
}

// PaymentStatus is the state of the captured payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// Contact holds the denormalised customer contact details captured at purchase time.
type Contact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Address is a shipping destination.
type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country,omitempty"`
}

// LineItem is a purchased product. Name and UnitPrice are snapshots taken at purchase time.
type LineItem struct {
	ProductID string  `json:"productId" db:"product_id"`
	Name      string  `json:"name" db:"name"`
	UnitPrice int64   `json:"unitPrice" db:"unit_price"`
	Quantity  int     `json:"quantity" db:"quantity"`
	Image     *string `json:"image,omitempty" db:"image"`
	Color     *string `json:"color,omitempty" db:"color"`
	Weight    *string `json:"weight,omitempty" db:"weight"`
}

// PaymentInfo is the normalised, masked description of the payment instrument.
type PaymentInfo struct {
	Method      string `json:"method"`
	Label       string `json:"label"`
	CardLast4   string `json:"cardLast4,omitempty"`
	CardNetwork string `json:"cardNetwork,omitempty"`
	Bank        string `json:"bank,omitempty"`
	VPA         string `json:"vpa,omitempty"`
	Wallet      string `json:"wallet,omitempty"`
}

// TimelineEntry is one immutable record in an order's status history.
type TimelineEntry struct {
	Status    OrderStatus `json:"status"`
	Message   string      `json:"message"`
	Location  *string     `json:"location,omitempty"`
	Actor     string      `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
}

// Side-effect steps whose completion is recorded on the order.
const (
	SideEffectCouponApplied    = "coupon_applied"
	SideEffectConfirmationSent = "confirmation_sent"
)

// Order is the durable record of a single purchase.
type Order struct {
	ID          uuid.UUID `json:"id" db:"id"`
	OrderNumber string    `json:"orderId" db:"order_number"`
	UserID      *string   `json:"userId,omitempty" db:"user_id"`
	Contact     Contact   `json:"contact" db:"contact"`

	Items           []LineItem `json:"items"`
	ShippingAddress Address    `json:"shippingAddress" db:"shipping_address"`

	TotalAmount    int64   `json:"totalAmount" db:"total_amount"`
	ShippingFee    int64   `json:"shippingFee" db:"shipping_fee"`
	CouponCode     *string `json:"couponCode,omitempty" db:"coupon_code"`
	CouponDiscount int64   `json:"couponDiscount" db:"coupon_discount"`
	Currency       string  `json:"currency" db:"currency"`

	ProviderOrderID   *string       `json:"providerOrderId,omitempty" db:"provider_order_id"`
	ProviderPaymentID *string       `json:"providerPaymentId,omitempty" db:"provider_payment_id"`
	ProviderSignature *string       `json:"-" db:"provider_signature"`
	PaymentInfo       PaymentInfo   `json:"paymentInfo" db:"payment_info"`
	PaymentStatus     PaymentStatus `json:"paymentStatus" db:"payment_status"`
	PaidAt            *time.Time    `json:"paidAt,omitempty" db:"paid_at"`

	OrderStatus OrderStatus     `json:"orderStatus" db:"order_status"`
	Timeline    []TimelineEntry `json:"statusTimeline"`

	TrackingNumber        *string    `json:"trackingNumber,omitempty" db:"tracking_number"`
	Carrier               *string    `json:"carrier,omitempty" db:"carrier"`
	EstimatedDeliveryDate *time.Time `json:"estimatedDeliveryDate,omitempty" db:"estimated_delivery_date"`
	ActualDeliveryDate    *time.Time `json:"actualDeliveryDate,omitempty" db:"actual_delivery_date"`

	AdminNotes string `json:"adminNotes,omitempty" db:"admin_notes"`
	Archived   bool   `json:"archived" db:"archived"`

	CouponApplied    bool `json:"-" db:"coupon_applied"`
	ConfirmationSent bool `json:"-" db:"confirmation_sent"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// ItemsSubtotal sums unit price times quantity over all line items.
func (o *Order) ItemsSubtotal() int64 {
	var total int64
	for _, item := range o.Items {
		total += item.UnitPrice * int64(item.Quantity)
	}
	return total
}

// LastTimelineEntry returns the most recent timeline entry, or nil for an empty timeline.
func (o *Order) LastTimelineEntry() *TimelineEntry {
	if len(o.Timeline) == 0 {
		return nil
	}
	return &o.Timeline[len(o.Timeline)-1]
}

// OrderItemRequest is a line item as supplied by the client.
type OrderItemRequest struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	UnitPrice int64   `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
	Image     *string `json:"image,omitempty"`
	Color     *string `json:"color,omitempty"`
	Weight    *string `json:"weight,omitempty"`
}

// OrderPayload is the caller-supplied description of the purchase.
type OrderPayload struct {
	Contact         Contact            `json:"contact"`
	Items           []OrderItemRequest `json:"items"`
	TotalAmount     int64              `json:"totalAmount"`
	ShippingFee     int64              `json:"shippingFee"`
	CouponCode      *string            `json:"couponCode,omitempty"`
	ShippingAddress Address            `json:"shippingAddress"`
}

// VerifyPaymentRequest is the payload reported by the client after the gateway callback.
type VerifyPaymentRequest struct {
	ProviderOrderID   string       `json:"razorpayOrderId"`
	ProviderPaymentID string       `json:"razorpayPaymentId"`
	ProviderSignature string       `json:"razorpaySignature"`
	Order             OrderPayload `json:"order"`
}

// VerifyPaymentResponse is returned once the order has been recorded.
type VerifyPaymentResponse struct {
	OrderID          string `json:"orderId"`
	AlreadyProcessed bool   `json:"alreadyProcessed,omitempty"`
}

// PaymentIntentRequest asks the provider for a new payment order.
type PaymentIntentRequest struct {
	Amount     float64 `json:"amount"`
	CouponCode *string `json:"couponCode,omitempty"`
	Email      string  `json:"email,omitempty"`
}

// PaymentIntentResponse carries what the client-side payment widget needs.
type PaymentIntentResponse struct {
	ProviderOrderID string `json:"providerOrderId"`
	Currency        string `json:"currency"`
	Amount          int64  `json:"amount"`
	KeyID           string `json:"keyId"`
}

// ManualOrderRequest creates an order outside the gateway flow, e.g. cash on delivery.
type ManualOrderRequest struct {
	UserID        *string       `json:"userId,omitempty"`
	Order         OrderPayload  `json:"order"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	PaymentMethod string        `json:"paymentMethod"`
}

// AdvanceRequest moves an order to a new status.
type AdvanceRequest struct {
	Status        OrderStatus    `json:"status"`
	PaymentStatus *PaymentStatus `json:"paymentStatus,omitempty"`
	Message       string         `json:"message,omitempty"`
	Location      *string        `json:"location,omitempty"`
}

// BulkAdvanceRequest applies one status to many orders.
type BulkAdvanceRequest struct {
	OrderIDs []string    `json:"orderIds"`
	Status   OrderStatus `json:"status"`
	Message  string      `json:"message,omitempty"`
}

// BulkFailure explains why a single order in a bulk update was not updated.
type BulkFailure struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

// BulkResult partitions a bulk update into succeeded and failed identifiers.
type BulkResult struct {
	Succeeded []string      `json:"succeeded"`
	Failed    []BulkFailure `json:"failed"`
}

// TrackingRequest sets the carrier tracking fields.
type TrackingRequest struct {
	TrackingNumber string `json:"trackingNumber"`
	Carrier        string `json:"carrier"`
}

// NotesRequest replaces the admin notes.
type NotesRequest struct {
	Notes string `json:"notes"`
}

// ArchiveRequest toggles the soft-archive flag.
type ArchiveRequest struct {
	Archived bool `json:"archived"`
}

// TimelineResponse is the customer-facing tracking view of an order.
type TimelineResponse struct {
	OrderID               string          `json:"orderId"`
	OrderStatus           OrderStatus     `json:"orderStatus"`
	TrackingNumber        *string         `json:"trackingNumber,omitempty"`
	Carrier               *string         `json:"carrier,omitempty"`
	EstimatedDeliveryDate *time.Time      `json:"estimatedDeliveryDate,omitempty"`
	ActualDeliveryDate    *time.Time      `json:"actualDeliveryDate,omitempty"`
	Timeline              []TimelineEntry `json:"statusTimeline"`
}

// OrderFilter narrows admin order listings.
type OrderFilter struct {
	Status          *OrderStatus
	IncludeArchived bool
	Limit           int
	Offset          int
}

// ReorderRequest optionally overrides the shipping destination of the draft.
type ReorderRequest struct {
	ShippingAddress *Address `json:"shippingAddress,omitempty"`
}

// DraftItem is a line item of a reorder draft priced against the live catalogue.
type DraftItem struct {
	ProductID        string  `json:"productId"`
	Name             string  `json:"name"`
	UnitPrice        int64   `json:"unitPrice"`
	Quantity         int     `json:"quantity"`
	QuantityAdjusted bool    `json:"quantityAdjusted,omitempty"`
	Image            *string `json:"image,omitempty"`
	Color            *string `json:"color,omitempty"`
	Weight           *string `json:"weight,omitempty"`
}

// UnavailableItem names a product from the original order that cannot be reordered.
type UnavailableItem struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Reason    string `json:"reason"`
}

// ReorderDraft is an uncommitted basket built from a past order.
type ReorderDraft struct {
	SourceOrderID    string            `json:"sourceOrderId"`
	Items            []DraftItem       `json:"items"`
	Subtotal         int64             `json:"subtotal"`
	ShippingAddress  Address           `json:"shippingAddress"`
	UnavailableItems []UnavailableItem `json:"unavailableItems"`
}
