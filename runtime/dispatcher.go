// Package runtime hosts the live side of the messaging core: the connection
// registry, the delivery router, the typing and presence signaler and the
// dispatcher feeding commands to supervised workers.
package runtime

import (
	"bizlink/contract"
	"bizlink/runtime/workers"
	"context"
	"fmt"
	"log/slog"

	"github.com/cespare/xxhash/v2"
)

// Dispatcher spreads commands over a fixed set of shards, each drained by
// one supervised worker. Commands sharing a shard key always land on the
// same shard, which keeps the messages of a conversation in arrival order.
type Dispatcher struct {
	log        *slog.Logger
	supervisor contract.ISupervisor
	handler    contract.CommandHandler
	shards     []chan contract.Envelope
}

func NewDispatcher(log *slog.Logger, supervisor contract.ISupervisor, handler contract.CommandHandler,
	numWorkers, bufferSize int) *Dispatcher {
	numWorkers = max(1, numWorkers)
	shards := make([]chan contract.Envelope, numWorkers)
	for i := range shards {
		shards[i] = make(chan contract.Envelope, bufferSize)
	}
	return &Dispatcher{log: log, supervisor: supervisor, handler: handler, shards: shards}
}

// Dispatch enqueues the envelope on its shard. It blocks while the shard is
// full and gives up when ctx is done.
func (d *Dispatcher) Dispatch(ctx context.Context, envelope contract.Envelope) error {
	shard := d.shards[d.shardOf(envelope.Command.ShardKey())]
	select {
	case shard <- envelope:
		return nil
	case <-ctx.Done():
		d.log.Warn("Command dropped before dispatch", "shard_key", envelope.Command.ShardKey(), "error", ctx.Err())
		return ctx.Err()
	}
}

func (d *Dispatcher) shardOf(key string) int {
	return int(xxhash.Sum64String(key) % uint64(len(d.shards)))
}

// Start registers one pool worker per shard and runs the supervisor until
// ctx is canceled or Stop is called.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, shard := range d.shards {
		d.supervisor.Add(workers.NewPoolUnitWorker(fmt.Sprintf("shard-%d", i), shard, d.handler, d.log))
	}
	d.log.Info("Starting dispatcher", "shards", len(d.shards))
	d.supervisor.Run(ctx)
}

// Queues names every shard channel for the capacity watcher.
func (d *Dispatcher) Queues() []workers.NamedChannel {
	queues := make([]workers.NamedChannel, len(d.shards))
	for i, shard := range d.shards {
		queues[i] = workers.NamedChannel{Name: fmt.Sprintf("shard-%d", i), Channel: shard}
	}
	return queues
}

// Stop cancels the supervised workers. Commands still queued are dropped.
func (d *Dispatcher) Stop() {
	d.log.Info("Requesting dispatcher shutdown")
	d.supervisor.Stop()
}
