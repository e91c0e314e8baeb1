package workers

import (
	"bizlink/contract"
	"bizlink/domain"
	"bizlink/mocks"
	"context"
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestPoolUnitWorker_Handles_In_Order(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	handler := mocks.NewMockCommandHandler(ctrl)

	// Given three commands queued on the shard
	commands := make(chan contract.Envelope, 3)
	var handled []string
	for _, content := range []string{"one", "two", "three"} {
		commands <- contract.Envelope{Command: domain.SendMessageCommand{BusinessID: "b", Content: content}}
	}
	close(commands)

	handler.EXPECT().
		Handle(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, envelope contract.Envelope) {
			handled = append(handled, envelope.Command.(domain.SendMessageCommand).Content)
		}).
		Times(3)

	// When the worker drains the closed channel
	err := NewPoolUnitWorker("shard-0", commands, handler, log).Run(context.Background())

	// Then it returns cleanly after handling everything in order
	req.NoError(err)
	req.Equal([]string{"one", "two", "three"}, handled)
}

func TestPoolUnitWorker_Stops_On_Cancel(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	handler := mocks.NewMockCommandHandler(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewPoolUnitWorker("shard-0", make(chan contract.Envelope), handler, log).Run(ctx)

	req.ErrorIs(err, context.Canceled)
}
