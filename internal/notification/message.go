// Package notification delivers customer-facing order messages.
package notification

import (
	"time"

	"storefront/internal/model"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Event names a notification; it doubles as the AMQP routing key.
type Event string

const (
	EventOrderConfirmed Event = "order.confirmed"
	EventOrderShipped   Event = "order.shipped"
	EventOrderDelivered Event = "order.delivered"
)

// Item is a line of the order summary.
type Item struct {
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	LineTotal string `json:"lineTotal"`
}

// Message is a rendered-ready notification payload.
type Message struct {
	Event             Event      `json:"event"`
	OrderNumber       string     `json:"orderNumber"`
	Email             string     `json:"email"`
	Name              string     `json:"name,omitempty"`
	Status            string     `json:"status"`
	Total             string     `json:"total"`
	PaymentLabel      string     `json:"paymentLabel,omitempty"`
	TrackingNumber    string     `json:"trackingNumber,omitempty"`
	Carrier           string     `json:"carrier,omitempty"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery,omitempty"`
	DeliveredAt       *time.Time `json:"deliveredAt,omitempty"`
	Items             []Item     `json:"items"`
	SentAt            time.Time  `json:"sentAt"`
}

// Builder formats persisted orders into messages.
type Builder struct {
	printer *message.Printer
	now     func() time.Time
}

// NewBuilder creates a builder formatting amounts for locale, e.g. "en-IN".
func NewBuilder(locale string) *Builder {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &Builder{printer: message.NewPrinter(tag), now: time.Now}
}

// Build creates the message for event from the authoritative order record.
func (b *Builder) Build(event Event, order *model.Order) Message {
	msg := Message{
		Event:             event,
		OrderNumber:       order.OrderNumber,
		Email:             order.Contact.Email,
		Name:              order.Contact.Name,
		Status:            string(order.OrderStatus),
		Total:             b.FormatAmount(order.TotalAmount, order.Currency),
		PaymentLabel:      order.PaymentInfo.Label,
		EstimatedDelivery: order.EstimatedDeliveryDate,
		DeliveredAt:       order.ActualDeliveryDate,
		Items:             make([]Item, 0, len(order.Items)),
		SentAt:            b.now().UTC(),
	}
	if order.TrackingNumber != nil {
		msg.TrackingNumber = *order.TrackingNumber
	}
	if order.Carrier != nil {
		msg.Carrier = *order.Carrier
	}

	for _, item := range order.Items {
		msg.Items = append(msg.Items, Item{
			Name:      item.Name,
			Quantity:  item.Quantity,
			LineTotal: b.FormatAmount(item.UnitPrice*int64(item.Quantity), order.Currency),
		})
	}

	return msg
}

// FormatAmount renders a minor-unit amount with the currency symbol.
func (b *Builder) FormatAmount(minor int64, code string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		unit = currency.INR
	}
	major := decimal.New(minor, -2).InexactFloat64()
	return b.printer.Sprint(currency.Symbol(unit.Amount(major)))
}
