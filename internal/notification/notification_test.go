package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"storefront/internal/model"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOrder() *model.Order {
	tracking := "AWB123456"
	carrier := "BlueDart"
	eta := time.Date(2026, 10, 22, 0, 0, 0, 0, time.UTC)
	return &model.Order{
		OrderNumber:           "ORD-MGU1Z3K0ABCD",
		Contact:               model.Contact{Email: "priya@example.com", Name: "Priya"},
		Items:                 []model.LineItem{{ProductID: "p1", Name: "Kurta", UnitPrice: 50000, Quantity: 2}},
		TotalAmount:           150000,
		Currency:              "INR",
		PaymentInfo:           model.PaymentInfo{Method: "card", Label: "Visa card ending 4242"},
		OrderStatus:           model.OrderStatusShipped,
		TrackingNumber:        &tracking,
		Carrier:               &carrier,
		EstimatedDeliveryDate: &eta,
	}
}

func TestBuilder_Build(t *testing.T) {
	builder := NewBuilder("en-IN")
	fixed := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	builder.now = func() time.Time { return fixed }

	msg := builder.Build(EventOrderShipped, sampleOrder())

	assert.Equal(t, EventOrderShipped, msg.Event)
	assert.Equal(t, "ORD-MGU1Z3K0ABCD", msg.OrderNumber)
	assert.Equal(t, "priya@example.com", msg.Email)
	assert.Equal(t, "shipped", msg.Status)
	assert.Equal(t, "AWB123456", msg.TrackingNumber)
	assert.Equal(t, "BlueDart", msg.Carrier)
	assert.Equal(t, fixed, msg.SentAt)
	assert.Contains(t, msg.Total, "1,500")
	require.Len(t, msg.Items, 1)
	assert.Contains(t, msg.Items[0].LineTotal, "1,000")
}

func TestBuilder_UnknownLocaleFallsBack(t *testing.T) {
	builder := NewBuilder("not a locale!")

	assert.Contains(t, builder.FormatAmount(49999, "INR"), "499.99")
}

type fakeChannel struct {
	exchange  string
	key       string
	msg       amqp.Publishing
	err       error
	nack      bool
	confirms  chan amqp.Confirmation
	closed    chan *amqp.Error
	published int
	isClosed  bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		confirms: make(chan amqp.Confirmation, 1),
		closed:   make(chan *amqp.Error, 1),
	}
}

func (f *fakeChannel) Publish(exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.exchange, f.key, f.msg = exchange, key, msg
	f.published++
	f.confirms <- amqp.Confirmation{DeliveryTag: uint64(f.published), Ack: !f.nack}
	return nil
}

func (f *fakeChannel) Close() error {
	f.isClosed = true
	return nil
}

func (f *fakeChannel) session() *session {
	return &session{channel: f, confirms: f.confirms, closed: f.closed}
}

// newTestPublisher serves the given channels in order, one per dial.
func newTestPublisher(channels ...*fakeChannel) (*AMQPPublisher, *int) {
	dials := 0
	p := &AMQPPublisher{exchange: "storefront.orders", logger: zerolog.Nop()}
	p.dial = func() (*session, error) {
		if dials >= len(channels) {
			dials++
			return nil, errors.New("failed to connect to RabbitMQ: connection refused")
		}
		ch := channels[dials]
		dials++
		return ch.session(), nil
	}
	return p, &dials
}

func TestAMQPPublisher_Send(t *testing.T) {
	channel := newFakeChannel()
	publisher, _ := newTestPublisher(channel)
	msg := NewBuilder("en-IN").Build(EventOrderConfirmed, sampleOrder())

	err := publisher.Send(context.Background(), msg)

	require.NoError(t, err)
	assert.Equal(t, "storefront.orders", channel.exchange)
	assert.Equal(t, "order.confirmed", channel.key)
	assert.Equal(t, uint8(amqp.Persistent), channel.msg.DeliveryMode)
	assert.Equal(t, "ORD-MGU1Z3K0ABCD:order.confirmed", channel.msg.MessageId)

	var decoded Message
	require.NoError(t, json.Unmarshal(channel.msg.Body, &decoded))
	assert.Equal(t, "priya@example.com", decoded.Email)
}

func TestAMQPPublisher_SendError(t *testing.T) {
	broken := newFakeChannel()
	broken.err = errors.New("channel closed")
	healthy := newFakeChannel()
	publisher, dials := newTestPublisher(broken, healthy)

	err := publisher.Send(context.Background(), Message{Event: EventOrderDelivered})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel closed")
	assert.True(t, broken.isClosed)

	require.NoError(t, publisher.Send(context.Background(), Message{Event: EventOrderDelivered}))
	assert.Equal(t, 2, *dials)
	assert.Equal(t, 1, healthy.published)
}

func TestAMQPPublisher_ReconnectsAfterBrokerClose(t *testing.T) {
	first := newFakeChannel()
	second := newFakeChannel()
	publisher, dials := newTestPublisher(first, second)
	ctx := context.Background()

	require.NoError(t, publisher.Send(ctx, Message{Event: EventOrderConfirmed}))
	first.closed <- amqp.ErrClosed

	require.NoError(t, publisher.Send(ctx, Message{Event: EventOrderShipped}))

	assert.Equal(t, 2, *dials)
	assert.True(t, first.isClosed)
	assert.Equal(t, 1, first.published)
	assert.Equal(t, 1, second.published)
	assert.Equal(t, "order.shipped", second.key)
}

func TestAMQPPublisher_DialFailureIsRetriedOnNextSend(t *testing.T) {
	publisher, dials := newTestPublisher()
	ctx := context.Background()

	err := publisher.Send(ctx, Message{Event: EventOrderConfirmed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	err = publisher.Send(ctx, Message{Event: EventOrderConfirmed})
	require.Error(t, err)
	assert.Equal(t, 2, *dials)
}

func TestAMQPPublisher_NackIsAnError(t *testing.T) {
	channel := newFakeChannel()
	channel.nack = true
	publisher, _ := newTestPublisher(channel)

	err := publisher.Send(context.Background(), Message{Event: EventOrderConfirmed})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
}

func TestAMQPPublisher_SendCancelled(t *testing.T) {
	channel := newFakeChannel()
	publisher, dials := newTestPublisher(channel)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := publisher.Send(ctx, Message{Event: EventOrderDelivered})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, channel.key)
	assert.Zero(t, *dials)
}

func TestAMQPPublisher_Close(t *testing.T) {
	channel := newFakeChannel()
	publisher, _ := newTestPublisher(channel)
	require.NoError(t, publisher.Send(context.Background(), Message{Event: EventOrderConfirmed}))

	publisher.Close()

	assert.True(t, channel.isClosed)
	assert.Nil(t, publisher.session)
}

func TestLogDispatcher_Send(t *testing.T) {
	assert.NoError(t, NewLogDispatcher(zerolog.Nop()).Send(context.Background(), Message{Event: EventOrderConfirmed}))
}
