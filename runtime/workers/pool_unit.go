package workers

import (
	"bizlink/contract"
	"context"
	"log/slog"
)

// Ensure *PoolUnitWorker implements the contract.Worker interface at compile time.
var _ contract.Worker = (*PoolUnitWorker)(nil)

// PoolUnitWorker drains one dispatcher shard. Commands of a shard are
// handled one at a time, in arrival order.
type PoolUnitWorker struct {
	name     string
	commands <-chan contract.Envelope
	handler  contract.CommandHandler
	log      *slog.Logger
}

func NewPoolUnitWorker(
	name string,
	commands <-chan contract.Envelope,
	handler contract.CommandHandler,
	log *slog.Logger) *PoolUnitWorker {
	return &PoolUnitWorker{
		name:     name,
		commands: commands,
		handler:  handler,
		log:      log.With("worker", name),
	}
}

func (w *PoolUnitWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case envelope, ok := <-w.commands:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			w.handler.Handle(ctx, envelope)
		}
	}
}
