package audit

import (
	"context"
	"log/slog"
)

// AsyncPublisher decouples event emission from delivery through a buffered
// inbox drained by Run. Emit never blocks the request path: when the buffer
// is full the event is dropped and logged, since audit here is fail-open.
type AsyncPublisher struct {
	sink   Publisher
	inbox  chan Event
	logger *slog.Logger
}

// NewAsyncPublisher wraps a sink publisher with a buffered inbox.
func NewAsyncPublisher(sink Publisher, buffer int, logger *slog.Logger) *AsyncPublisher {
	return &AsyncPublisher{
		sink:   sink,
		inbox:  make(chan Event, buffer),
		logger: logger,
	}
}

func (p *AsyncPublisher) Emit(ctx context.Context, event Event) error {
	select {
	case p.inbox <- event:
		return nil
	default:
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit inbox full, dropping event",
				"action", event.Action,
				"record_id", event.RecordID,
			)
		}
		return nil
	}
}

// Run drains the inbox into the sink until the context is cancelled. Delivery
// failures are logged, not propagated; a broken sink must not stop the bus.
func (p *AsyncPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-p.inbox:
			if err := p.sink.Emit(ctx, event); err != nil && p.logger != nil {
				p.logger.ErrorContext(ctx, "audit event delivery failed",
					"action", event.Action,
					"record_id", event.RecordID,
					"error", err,
				)
			}
		}
	}
}

func (p *AsyncPublisher) Close() error {
	return p.sink.Close()
}
