package notification

import (
	"context"
	"log/slog"
)

// Event types emitted by the money-movement core. Delivery channel selection
// and user preference filtering happen downstream.
const (
	KindFunding         = "funding"
	KindTransfer        = "transfer"
	KindSavings         = "savings"
	KindSplitPayment    = "split_payment"
	KindScheduleFailure = "scheduled_transfer_failed"
	KindSecurity        = "security"
)

// Event is the canonical notification payload. One struct for every caller;
// no positional-argument variants.
type Event struct {
	UserID    string
	Type      string
	Title     string
	Message   string
	Reference string
}

// Notifier hands events to the external delivery service.
type Notifier interface {
	Send(ctx context.Context, event Event) error
}

// LoggerNotifier is a stub implementation that writes events to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the event to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, event Event) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		"type", event.Type,
		"user_id", event.UserID,
		"title", event.Title,
		"message", event.Message,
		"reference", event.Reference,
	)
	return nil
}
