// Package lifecycle governs which status changes an order may undergo and
// records each accepted change on the order's timeline.
package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"storefront/internal/model"
)

// ActorCustomer is the timeline actor recorded for self-service actions.
const ActorCustomer = "Customer"

// ActorSystem is the timeline actor recorded for automatic actions.
const ActorSystem = "System"

// MaxActorLength is the longest actor name stored on a timeline entry, in characters.
const MaxActorLength = 255

// NotifyKind names the customer notification a transition should trigger.
type NotifyKind string

const (
	NotifyNone      NotifyKind = ""
	NotifyShipped   NotifyKind = "shipped"
	NotifyDelivered NotifyKind = "delivered"
)

// forwardPath is the canonical order of fulfilment.
var forwardPath = []model.OrderStatus{
	model.OrderStatusPlaced,
	model.OrderStatusConfirmed,
	model.OrderStatusProcessing,
	model.OrderStatusShipped,
	model.OrderStatusOutForDelivery,
	model.OrderStatusDelivered,
}

var cancellableStatuses = map[model.OrderStatus]bool{
	model.OrderStatusPlaced:    true,
	model.OrderStatusConfirmed: true,
}

var defaultMessages = map[model.OrderStatus]string{
	model.OrderStatusPlaced:         "Order placed successfully",
	model.OrderStatusConfirmed:      "Order confirmed",
	model.OrderStatusProcessing:     "Order is being prepared",
	model.OrderStatusShipped:        "Order shipped",
	model.OrderStatusOutForDelivery: "Order is out for delivery",
	model.OrderStatusDelivered:      "Order delivered",
	model.OrderStatusCancelled:      "Order cancelled",
	model.OrderStatusReturned:       "Order returned",
}

// DefaultMessage returns the customer-facing message used when none is supplied.
func DefaultMessage(status model.OrderStatus) string {
	if msg, ok := defaultMessages[status]; ok {
		return msg
	}
	return fmt.Sprintf("Order status updated to %s", status)
}

// Transition describes a requested status change.
type Transition struct {
	To                model.OrderStatus
	Message           string
	Location          *string
	Actor             string
	PaymentStatus     *model.PaymentStatus
	CustomerInitiated bool
}

// Outcome reports what Apply changed.
type Outcome struct {
	Changed        bool
	PaymentChanged bool
	Previous       model.OrderStatus
	Entry          *model.TimelineEntry
	Notify         NotifyKind
}

// Seed initialises a new order in the placed state with its first timeline entry.
func Seed(order *model.Order, actor string, now time.Time) {
	actor = actorName(actor)
	order.OrderStatus = model.OrderStatusPlaced
	order.Timeline = []model.TimelineEntry{{
		Status:    model.OrderStatusPlaced,
		Message:   DefaultMessage(model.OrderStatusPlaced),
		Actor:     actor,
		Timestamp: now,
	}}
}

// actorName trims the actor, falls back to ActorSystem and bounds it to MaxActorLength.
func actorName(actor string) string {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ActorSystem
	}
	if r := []rune(actor); len(r) > MaxActorLength {
		actor = strings.TrimSpace(string(r[:MaxActorLength]))
	}
	return actor
}

// CanCustomerCancel reports whether a customer may cancel an order in the given status.
func CanCustomerCancel(status model.OrderStatus) bool {
	return cancellableStatuses[status]
}

// Apply validates t against the order's current status and, when permitted,
// mutates the order and appends exactly one timeline entry. A transition to the
// current status is a no-op for the timeline.
func Apply(order *model.Order, t Transition, now time.Time) (Outcome, error) {
	current := order.OrderStatus
	outcome := Outcome{Previous: current}

	if !t.To.Valid() {
		return outcome, model.ValidationError(fmt.Sprintf("unknown order status %q", t.To))
	}
	if t.PaymentStatus != nil && !t.PaymentStatus.Valid() {
		return outcome, model.ValidationError(fmt.Sprintf("unknown payment status %q", *t.PaymentStatus))
	}

	if t.To == current {
		outcome.PaymentChanged = applyPaymentStatus(order, t.PaymentStatus, now)
		return outcome, nil
	}

	if err := check(current, t); err != nil {
		return outcome, err
	}

	actor := actorName(t.Actor)
	message := strings.TrimSpace(t.Message)
	if message == "" {
		message = DefaultMessage(t.To)
	}

	timestamp := now
	if last := order.LastTimelineEntry(); last != nil && last.Timestamp.After(timestamp) {
		timestamp = last.Timestamp
	}

	entry := model.TimelineEntry{
		Status:    t.To,
		Message:   message,
		Location:  t.Location,
		Actor:     actor,
		Timestamp: timestamp,
	}

	order.OrderStatus = t.To
	order.Timeline = append(order.Timeline, entry)
	order.UpdatedAt = now

	if t.To == model.OrderStatusDelivered && order.ActualDeliveryDate == nil {
		delivered := now
		order.ActualDeliveryDate = &delivered
	}

	outcome.Changed = true
	outcome.Entry = &order.Timeline[len(order.Timeline)-1]
	outcome.PaymentChanged = applyPaymentStatus(order, t.PaymentStatus, now)

	switch t.To {
	case model.OrderStatusShipped:
		outcome.Notify = NotifyShipped
	case model.OrderStatusDelivered:
		outcome.Notify = NotifyDelivered
	}

	return outcome, nil
}

func check(current model.OrderStatus, t Transition) error {
	if t.CustomerInitiated {
		if t.To != model.OrderStatusCancelled {
			return model.TransitionError("customers may only cancel orders")
		}
		if !cancellableStatuses[current] {
			return model.TransitionError("cannot cancel an order already being processed")
		}
		return nil
	}

	switch t.To {
	case model.OrderStatusCancelled:
		if !cancellableStatuses[current] {
			return model.TransitionError(fmt.Sprintf("cannot cancel an order that is %s", current))
		}
		return nil
	case model.OrderStatusReturned:
		if current != model.OrderStatusDelivered {
			return model.TransitionError("only delivered orders can be returned")
		}
		return nil
	}

	if current.Terminal() {
		return model.TransitionError(fmt.Sprintf("order is already %s", current))
	}

	from, to := pathIndex(current), pathIndex(t.To)
	if from < 0 || to < 0 || to < from {
		return model.TransitionError(fmt.Sprintf("cannot move order from %s back to %s", current, t.To))
	}
	return nil
}

func applyPaymentStatus(order *model.Order, status *model.PaymentStatus, now time.Time) bool {
	if status == nil || *status == order.PaymentStatus {
		return false
	}
	order.PaymentStatus = *status
	if *status == model.PaymentStatusCompleted && order.PaidAt == nil {
		paid := now
		order.PaidAt = &paid
	}
	order.UpdatedAt = now
	return true
}

func pathIndex(status model.OrderStatus) int {
	for i, s := range forwardPath {
		if s == status {
			return i
		}
	}
	return -1
}
