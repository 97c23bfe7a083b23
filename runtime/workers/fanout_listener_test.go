package workers

import (
	"chat-relay/domain"
	"chat-relay/mocks"
	"chat-relay/observability"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestFanoutListener_Delivers_Each_Message(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	stream := make(chan domain.Message, 2)
	subscription := mocks.NewMockSubscription(ctrl)
	subscription.EXPECT().Messages().Return((<-chan domain.Message)(stream)).Times(1)
	registry := mocks.NewMockIRegistry(ctrl)
	monitoring := observability.NewMonitoringManager(log)

	first := domain.Message{ID: 1, Content: "hello", SenderID: 7, ReceiverID: 42}
	second := domain.Message{ID: 2, Content: "again", SenderID: 7, ReceiverID: 42}
	firstPayload, err := json.Marshal(first)
	req.NoError(err)
	secondPayload, err := json.Marshal(second)
	req.NoError(err)

	// Then every message is delivered to the local connections of user 42, in order
	gomock.InOrder(
		registry.EXPECT().Deliver(domain.UserID(42), firstPayload).Return(2).Times(1),
		registry.EXPECT().Deliver(domain.UserID(42), secondPayload).Return(1).Times(1),
	)

	// Given two messages published for user 42 then the stream ends
	stream <- first
	stream <- second
	close(stream)

	listener := NewFanoutListener(log, 42, subscription, registry, monitoring)
	req.NoError(listener.Run(context.Background()))
	req.Equal(uint64(3), monitoring.GetLatest().Delivered)
}

func TestFanoutListener_Stops_On_Cancel(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	stream := make(chan domain.Message)
	subscription := mocks.NewMockSubscription(ctrl)
	subscription.EXPECT().Messages().Return((<-chan domain.Message)(stream)).Times(1)
	registry := mocks.NewMockIRegistry(ctrl)
	// Then nothing is delivered
	registry.EXPECT().Deliver(gomock.Any(), gomock.Any()).Times(0)

	listener := NewFanoutListener(log, 42, subscription, registry, observability.NewMonitoringManager(log))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- listener.Run(ctx) }()

	// When the session is torn down
	cancel()

	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(time.Second):
		req.Fail("listener did not stop after cancellation")
	}
}
