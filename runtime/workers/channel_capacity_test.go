package workers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestChannelCapacityWorker_Sample(t *testing.T) {
	req := require.New(t)
	// Given a buffered channel holding two items and something that is not a channel
	queue := make(chan int, 4)
	queue <- 1
	queue <- 2
	worker := NewChannelCapacityWorker(logs.GetLoggerFromLevel(slog.LevelDebug), []NamedChannel{
		{Name: "shard-0", Channel: queue},
		{Name: "broken", Channel: 42},
	}, time.Second, 2)

	// When it is sampled
	usages := worker.Sample()

	// Then only the channel is reported, with its fill level
	req.Equal([]ChannelUsage{{Name: "shard-0", Length: 2, Capacity: 4}}, usages)
}

func TestChannelCapacityWorker_Stops_With_Context(t *testing.T) {
	req := require.New(t)
	worker := NewChannelCapacityWorker(logs.GetLoggerFromLevel(slog.LevelDebug), nil, 10*time.Millisecond, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	req.NoError(worker.Run(ctx))
}
