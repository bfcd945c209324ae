package notification

import (
	"context"

	"github.com/rs/zerolog"
)

// Dispatcher sends a notification.
type Dispatcher interface {
	Send(ctx context.Context, msg Message) error
}

// logDispatcher records notifications in the log when no broker is configured.
type logDispatcher struct {
	logger zerolog.Logger
}

// NewLogDispatcher creates a dispatcher that only logs.
func NewLogDispatcher(logger zerolog.Logger) Dispatcher {
	return &logDispatcher{logger: logger.With().Str("component", "log-dispatcher").Logger()}
}

func (d *logDispatcher) Send(_ context.Context, msg Message) error {
	d.logger.Info().
		Str("event", string(msg.Event)).
		Str("order_number", msg.OrderNumber).
		Str("status", msg.Status).
		Int("items", len(msg.Items)).
		Msg("notification dispatched")
	return nil
}
