package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

type amqpChannel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// session is one broker connection with a confirm-mode channel.
type session struct {
	conn     io.Closer
	channel  amqpChannel
	confirms <-chan amqp.Confirmation
	closed   <-chan *amqp.Error
}

func (s *session) alive() bool {
	select {
	case <-s.closed:
		return false
	default:
		return true
	}
}

func (s *session) close() {
	s.channel.Close()
	if s.conn != nil {
		s.conn.Close()
	}
}

// AMQPPublisher publishes notifications to a topic exchange keyed by event.
// A dead session is replaced on the next Send.
type AMQPPublisher struct {
	dial     func() (*session, error)
	session  *session
	exchange string
	logger   zerolog.Logger
	mu       sync.Mutex
}

// NewAMQPPublisher dials the broker and declares a durable topic exchange.
func NewAMQPPublisher(url, exchange string, logger zerolog.Logger) (*AMQPPublisher, error) {
	dial := func() (*session, error) { return dialSession(url, exchange) }

	s, err := dial()
	if err != nil {
		return nil, err
	}

	logger = logger.With().Str("component", "amqp-publisher").Logger()
	logger.Info().Str("exchange", exchange).Msg("AMQP publisher ready")

	return &AMQPPublisher{
		dial:     dial,
		session:  s,
		exchange: exchange,
		logger:   logger,
	}, nil
}

func dialSession(url, exchange string) (*session, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	if err := channel.Confirm(false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	return &session{
		conn:     conn,
		channel:  channel,
		confirms: channel.NotifyPublish(make(chan amqp.Confirmation, 1)),
		closed:   channel.NotifyClose(make(chan *amqp.Error, 1)),
	}, nil
}

// Send publishes msg as persistent JSON with the event as routing key and
// waits for the broker to confirm it.
func (p *AMQPPublisher) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.current()
	if err != nil {
		return err
	}

	err = s.channel.Publish(p.exchange, string(msg.Event), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.OrderNumber + ":" + string(msg.Event),
		Timestamp:    msg.SentAt,
		Body:         body,
	})
	if err != nil {
		p.drop()
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	select {
	case confirm, ok := <-s.confirms:
		if !ok {
			p.drop()
			return errors.New("broker connection closed before confirming notification")
		}
		if !confirm.Ack {
			return errors.New("broker rejected notification")
		}
	case <-s.closed:
		p.drop()
		return errors.New("broker connection closed before confirming notification")
	case <-ctx.Done():
		// An unread confirmation would misalign the next Send.
		p.drop()
		return ctx.Err()
	}

	p.logger.Debug().
		Str("event", string(msg.Event)).
		Str("order_number", msg.OrderNumber).
		Msg("notification published")

	return nil
}

// current returns a live session, re-dialing when the previous one is gone.
// Callers hold p.mu.
func (p *AMQPPublisher) current() (*session, error) {
	if p.session != nil && p.session.alive() {
		return p.session, nil
	}
	if p.session != nil {
		p.logger.Warn().Msg("AMQP session closed, reconnecting")
		p.drop()
	}

	s, err := p.dial()
	if err != nil {
		return nil, err
	}
	p.session = s
	p.logger.Info().Str("exchange", p.exchange).Msg("AMQP publisher reconnected")
	return s, nil
}

func (p *AMQPPublisher) drop() {
	if p.session != nil {
		p.session.close()
		p.session = nil
	}
}

// Close releases the channel and connection.
func (p *AMQPPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drop()
}
