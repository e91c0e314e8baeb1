package runtime

import (
	"bizlink/contract"
	"bizlink/domain/event"
	"context"
	"log/slog"
	"time"
)

// deliver pushes one event to one sink. A slow or dead connection only
// costs sinkTimeout and a log line: pushes are never retried.
func deliver(ctx context.Context, log *slog.Logger, sink contract.EventSink, e event.DomainEvent, sinkTimeout time.Duration) {
	if sink == nil {
		return
	}
	if sinkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sinkTimeout)
		defer cancel()
	}
	if err := sink.Consume(ctx, e); err != nil {
		log.Warn("Event not delivered", "event", e.Name(), "error", err)
	}
}
