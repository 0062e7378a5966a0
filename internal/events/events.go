package events

import (
	"context"
	"log/slog"

	"github.com/nairalink/nairalink/internal/ledger"
)

// Emitter is implemented by anything the engines publish completed
// transactions to. A nil Emitter is valid and drops events.
type Emitter interface {
	TransactionCompleted(ctx context.Context, tx ledger.Transaction)
}

// Handler consumes completed-transaction events.
type Handler interface {
	HandleTransactionCompleted(ctx context.Context, tx ledger.Transaction) error
}

// Dispatcher fans completed transactions out to registered handlers. Handler
// failures are logged and isolated; an observer must never fail the posting
// that produced the event.
type Dispatcher struct {
	logger   *slog.Logger
	handlers []Handler
}

// NewDispatcher builds a dispatcher over the provided handlers.
func NewDispatcher(logger *slog.Logger, handlers ...Handler) *Dispatcher {
	return &Dispatcher{logger: logger, handlers: handlers}
}

// Register appends a handler.
func (d *Dispatcher) Register(h Handler) {
	d.handlers = append(d.handlers, h)
}

// TransactionCompleted delivers the event to every handler.
func (d *Dispatcher) TransactionCompleted(ctx context.Context, tx ledger.Transaction) {
	if d == nil {
		return
	}
	for _, h := range d.handlers {
		if err := h.HandleTransactionCompleted(ctx, tx); err != nil && d.logger != nil {
			d.logger.Error("event handler failed",
				"reference", tx.Reference,
				"type", string(tx.Type),
				"error", err,
			)
		}
	}
}
