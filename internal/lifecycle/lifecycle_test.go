package lifecycle

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
	"time"

	"storefront/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrder(status model.OrderStatus, now time.Time) *model.Order {
	order := &model.Order{PaymentStatus: model.PaymentStatusCompleted}
	Seed(order, ActorSystem, now)
	order.OrderStatus = status
	return order
}

func TestSeed(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	order := &model.Order{}

	Seed(order, "", now)

	assert.Equal(t, model.OrderStatusPlaced, order.OrderStatus)
	require.Len(t, order.Timeline, 1)
	assert.Equal(t, model.OrderStatusPlaced, order.Timeline[0].Status)
	assert.Equal(t, ActorSystem, order.Timeline[0].Actor)
	assert.Equal(t, now, order.Timeline[0].Timestamp)
}

func TestApply_ForwardTransitions(t *testing.T) {
	tests := []struct {
		name   string
		from   model.OrderStatus
		to     model.OrderStatus
		notify NotifyKind
	}{
		{name: "placed to confirmed", from: model.OrderStatusPlaced, to: model.OrderStatusConfirmed},
		{name: "confirmed to shipped", from: model.OrderStatusConfirmed, to: model.OrderStatusShipped, notify: NotifyShipped},
		{name: "placed jumps to shipped", from: model.OrderStatusPlaced, to: model.OrderStatusShipped, notify: NotifyShipped},
		{name: "shipped to out for delivery", from: model.OrderStatusShipped, to: model.OrderStatusOutForDelivery},
		{name: "out for delivery to delivered", from: model.OrderStatusOutForDelivery, to: model.OrderStatusDelivered, notify: NotifyDelivered},
		{name: "placed to cancelled", from: model.OrderStatusPlaced, to: model.OrderStatusCancelled},
		{name: "confirmed to cancelled", from: model.OrderStatusConfirmed, to: model.OrderStatusCancelled},
		{name: "delivered to returned", from: model.OrderStatusDelivered, to: model.OrderStatusReturned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Now().UTC()
			order := newOrder(tt.from, now)
			before := len(order.Timeline)

			outcome, err := Apply(order, Transition{To: tt.to, Actor: "Admin"}, now.Add(time.Minute))

			require.NoError(t, err)
			assert.True(t, outcome.Changed)
			assert.Equal(t, tt.from, outcome.Previous)
			assert.Equal(t, tt.to, order.OrderStatus)
			assert.Len(t, order.Timeline, before+1)
			assert.Equal(t, tt.notify, outcome.Notify)

			last := order.LastTimelineEntry()
			assert.Equal(t, tt.to, last.Status)
			assert.Equal(t, "Admin", last.Actor)
			assert.Equal(t, DefaultMessage(tt.to), last.Message)
		})
	}
}

func TestApply_RejectedTransitions(t *testing.T) {
	tests := []struct {
		name     string
		from     model.OrderStatus
		to       model.OrderStatus
		customer bool
	}{
		{name: "cancel shipped", from: model.OrderStatusShipped, to: model.OrderStatusCancelled},
		{name: "cancel processing", from: model.OrderStatusProcessing, to: model.OrderStatusCancelled},
		{name: "return before delivery", from: model.OrderStatusShipped, to: model.OrderStatusReturned},
		{name: "backwards", from: model.OrderStatusShipped, to: model.OrderStatusConfirmed},
		{name: "leave cancelled", from: model.OrderStatusCancelled, to: model.OrderStatusConfirmed},
		{name: "leave returned", from: model.OrderStatusReturned, to: model.OrderStatusDelivered},
		{name: "customer cancels shipped", from: model.OrderStatusShipped, to: model.OrderStatusCancelled, customer: true},
		{name: "customer cancels processing", from: model.OrderStatusProcessing, to: model.OrderStatusCancelled, customer: true},
		{name: "customer cancels delivered", from: model.OrderStatusDelivered, to: model.OrderStatusCancelled, customer: true},
		{name: "customer ships", from: model.OrderStatusPlaced, to: model.OrderStatusShipped, customer: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Now().UTC()
			order := newOrder(tt.from, now)
			before := len(order.Timeline)

			_, err := Apply(order, Transition{To: tt.to, Actor: "Customer", CustomerInitiated: tt.customer}, now)

			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrInvalidTransition))
			assert.Equal(t, tt.from, order.OrderStatus)
			assert.Len(t, order.Timeline, before)
		})
	}
}

func TestApply_CustomerCancel(t *testing.T) {
	for _, from := range []model.OrderStatus{model.OrderStatusPlaced, model.OrderStatusConfirmed} {
		t.Run(string(from), func(t *testing.T) {
			now := time.Now().UTC()
			order := newOrder(from, now)

			outcome, err := Apply(order, Transition{
				To:                model.OrderStatusCancelled,
				Actor:             ActorCustomer,
				CustomerInitiated: true,
			}, now)

			require.NoError(t, err)
			assert.True(t, outcome.Changed)
			assert.Equal(t, model.OrderStatusCancelled, order.OrderStatus)
			assert.Equal(t, ActorCustomer, order.LastTimelineEntry().Actor)
		})
	}
}

func TestApply_SameStatusIsNoop(t *testing.T) {
	now := time.Now().UTC()
	order := newOrder(model.OrderStatusConfirmed, now)
	before := len(order.Timeline)

	outcome, err := Apply(order, Transition{To: model.OrderStatusConfirmed, Actor: "Admin"}, now)

	require.NoError(t, err)
	assert.False(t, outcome.Changed)
	assert.Nil(t, outcome.Entry)
	assert.Len(t, order.Timeline, before)
}

func TestApply_SameStatusStillUpdatesPayment(t *testing.T) {
	now := time.Now().UTC()
	order := newOrder(model.OrderStatusReturned, now)
	refunded := model.PaymentStatusRefunded

	outcome, err := Apply(order, Transition{To: model.OrderStatusReturned, PaymentStatus: &refunded}, now)

	require.NoError(t, err)
	assert.False(t, outcome.Changed)
	assert.True(t, outcome.PaymentChanged)
	assert.Equal(t, model.PaymentStatusRefunded, order.PaymentStatus)
}

func TestApply_TimelineGrowsByOnePerDistinctAdvance(t *testing.T) {
	now := time.Now().UTC()
	order := newOrder(model.OrderStatusPlaced, now)

	steps := []model.OrderStatus{
		model.OrderStatusConfirmed,
		model.OrderStatusConfirmed,
		model.OrderStatusProcessing,
		model.OrderStatusShipped,
		model.OrderStatusShipped,
		model.OrderStatusDelivered,
	}
	expected := []int{2, 2, 3, 4, 4, 5}

	for i, status := range steps {
		_, err := Apply(order, Transition{To: status, Actor: "Admin"}, now.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		assert.Len(t, order.Timeline, expected[i])
	}
}

func TestApply_ActualDeliveryDateSetOnce(t *testing.T) {
	now := time.Now().UTC()
	order := newOrder(model.OrderStatusOutForDelivery, now)

	_, err := Apply(order, Transition{To: model.OrderStatusDelivered}, now)
	require.NoError(t, err)
	require.NotNil(t, order.ActualDeliveryDate)
	first := *order.ActualDeliveryDate

	_, err = Apply(order, Transition{To: model.OrderStatusDelivered}, now.Add(time.Hour))
	require.NoError(t, err)
	_, err = Apply(order, Transition{To: model.OrderStatusReturned}, now.Add(2*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, first, *order.ActualDeliveryDate)
}

func TestApply_ActualDeliveryDateNotOverwritten(t *testing.T) {
	now := time.Now().UTC()
	order := newOrder(model.OrderStatusShipped, now)
	earlier := now.Add(-48 * time.Hour)
	order.ActualDeliveryDate = &earlier

	_, err := Apply(order, Transition{To: model.OrderStatusDelivered}, now)

	require.NoError(t, err)
	assert.Equal(t, earlier, *order.ActualDeliveryDate)
}

func TestApply_TimelineNeverDecreases(t *testing.T) {
	now := time.Now().UTC()
	order := newOrder(model.OrderStatusPlaced, now)

	_, err := Apply(order, Transition{To: model.OrderStatusConfirmed}, now.Add(-time.Hour))

	require.NoError(t, err)
	require.Len(t, order.Timeline, 2)
	assert.False(t, order.Timeline[1].Timestamp.Before(order.Timeline[0].Timestamp))
}

func TestApply_CustomMessageAndLocation(t *testing.T) {
	now := time.Now().UTC()
	order := newOrder(model.OrderStatusConfirmed, now)
	location := "Mumbai hub"

	_, err := Apply(order, Transition{
		To:       model.OrderStatusShipped,
		Message:  "  Handed to courier  ",
		Location: &location,
		Actor:    "Asha",
	}, now)

	require.NoError(t, err)
	last := order.LastTimelineEntry()
	assert.Equal(t, "Handed to courier", last.Message)
	require.NotNil(t, last.Location)
	assert.Equal(t, "Mumbai hub", *last.Location)
	assert.Equal(t, "Asha", last.Actor)
}

func TestActorIsBoundedToColumnWidth(t *testing.T) {
	now := time.Now().UTC()
	long := strings.Repeat("ज", MaxActorLength+40)

	order := &model.Order{}
	Seed(order, long, now)
	assert.Equal(t, MaxActorLength, utf8.RuneCountInString(order.Timeline[0].Actor))

	_, err := Apply(order, Transition{To: model.OrderStatusConfirmed, Actor: long}, now)
	require.NoError(t, err)
	assert.Equal(t, MaxActorLength, utf8.RuneCountInString(order.LastTimelineEntry().Actor))
}

func TestApply_InvalidStatus(t *testing.T) {
	now := time.Now().UTC()
	order := newOrder(model.OrderStatusPlaced, now)

	_, err := Apply(order, Transition{To: "teleported"}, now)

	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrValidation))
	assert.Len(t, order.Timeline, 1)
}

func TestCanCustomerCancel(t *testing.T) {
	assert.True(t, CanCustomerCancel(model.OrderStatusPlaced))
	assert.True(t, CanCustomerCancel(model.OrderStatusConfirmed))
	assert.False(t, CanCustomerCancel(model.OrderStatusProcessing))
	assert.False(t, CanCustomerCancel(model.OrderStatusShipped))
	assert.False(t, CanCustomerCancel(model.OrderStatusDelivered))
}
