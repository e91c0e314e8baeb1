package workers

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"time"
)

type NamedChannel struct {
	Name    string
	Channel any
}

// ChannelUsage is one sample of a buffered channel.
type ChannelUsage struct {
	Name     string
	Length   int
	Capacity int
}

// ChannelCapacityWorker periodically samples the dispatcher queues and warns
// when one is close to full. Reading len and cap never blocks the owners of
// the channels.
type ChannelCapacityWorker struct {
	log                  *slog.Logger
	channels             []NamedChannel
	interval             time.Duration
	lowCapacityThreshold int
}

func NewChannelCapacityWorker(log *slog.Logger, channels []NamedChannel,
	interval time.Duration, lowCapacityThreshold int) *ChannelCapacityWorker {
	return &ChannelCapacityWorker{
		log:                  log,
		channels:             channels,
		interval:             interval,
		lowCapacityThreshold: lowCapacityThreshold,
	}
}

func (w *ChannelCapacityWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Sample()
		}
	}
}

// Sample reads every channel once and logs the ones running out of room.
func (w *ChannelCapacityWorker) Sample() []ChannelUsage {
	usages := make([]ChannelUsage, 0, len(w.channels))
	for _, nc := range w.channels {
		v := reflect.ValueOf(nc.Channel)
		if v.Kind() != reflect.Chan {
			w.log.Error("Provided object is not a channel", "name", nc.Name)
			continue
		}
		usage := ChannelUsage{Name: nc.Name, Length: v.Len(), Capacity: v.Cap()}
		usages = append(usages, usage)
		w.log.Debug(fmt.Sprintf("Channel %s usage: %d / %d", usage.Name, usage.Length, usage.Capacity))
		if usage.Capacity <= 0 {
			// Unbuffered
			continue
		}
		if left := usage.Capacity - usage.Length; left <= w.lowCapacityThreshold {
			w.log.Warn("Channel close to full", "name", usage.Name, "capacity_left", left)
		}
	}
	return usages
}
