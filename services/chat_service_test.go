package services

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/moderation"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func persisted(content string, sender, receiver domain.UserID) domain.Message {
	return domain.Message{
		ID:         1,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
		SenderID:   sender,
		ReceiverID: receiver,
		Sender:     domain.Profile{ID: sender},
		Receiver:   domain.Profile{ID: receiver},
	}
}

func TestChatService_Send(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	store := mocks.NewMockIMessageStore(ctrl)
	publisher := mocks.NewMockIPublisher(ctrl)
	svc := NewChatService(log, store, publisher, nil, time.Second, time.Second, 20)

	t.Run("persists then publishes to the receiver", func(t *testing.T) {
		req := require.New(t)
		expected := persisted("hello", 7, 42)

		gomock.InOrder(
			store.EXPECT().
				Persist(gomock.Any(), "hello", domain.UserID(7), domain.UserID(42)).
				Return(expected, nil).
				Times(1),
			publisher.EXPECT().
				Publish(gomock.Any(), domain.UserID(42), expected).
				Return(nil).
				Times(1),
		)

		message, err := svc.Send(context.Background(), 7, domain.InboundFrame{ReceiverID: 42, Content: "  hello \n"})

		req.NoError(err)
		req.Equal(expected, message)
	})

	t.Run("does not publish when persistence fails", func(t *testing.T) {
		req := require.New(t)

		store.EXPECT().
			Persist(gomock.Any(), "hello", domain.UserID(7), domain.UserID(42)).
			Return(domain.Message{}, fmt.Errorf("connection refused")).
			Times(1)
		publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.Send(context.Background(), 7, domain.InboundFrame{ReceiverID: 42, Content: "hello"})

		req.ErrorIs(err, errors.ErrPersistence)
	})

	t.Run("returns the stored message when publication fails", func(t *testing.T) {
		req := require.New(t)
		expected := persisted("hello", 7, 42)

		store.EXPECT().
			Persist(gomock.Any(), "hello", domain.UserID(7), domain.UserID(42)).
			Return(expected, nil).
			Times(1)
		publisher.EXPECT().
			Publish(gomock.Any(), domain.UserID(42), expected).
			Return(fmt.Errorf("bus unavailable")).
			Times(1)

		message, err := svc.Send(context.Background(), 7, domain.InboundFrame{ReceiverID: 42, Content: "hello"})

		req.ErrorIs(err, errors.ErrDelivery)
		req.Equal(expected, message)
	})

	t.Run("rejects invalid commands before the store", func(t *testing.T) {
		req := require.New(t)
		store.EXPECT().Persist(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.Send(context.Background(), 7, domain.InboundFrame{ReceiverID: 42, Content: "   "})
		req.ErrorIs(err, errors.ErrContentRequired)

		_, err = svc.Send(context.Background(), 7, domain.InboundFrame{ReceiverID: 0, Content: "hello"})
		req.ErrorIs(err, errors.ErrInvalidReceiver)

		_, err = svc.Send(context.Background(), 7, domain.InboundFrame{ReceiverID: 42, Content: strings.Repeat("é", 21)})
		req.ErrorIs(err, errors.ErrContentTooLong)
	})
}

func TestChatService_Send_Censors_Content(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	moderator, err := moderation.NewModerator([]string{"scam"}, '*', log)
	req.NoError(err)

	store := mocks.NewMockIMessageStore(ctrl)
	publisher := mocks.NewMockIPublisher(ctrl)
	svc := NewChatService(log, store, publisher, moderator, time.Second, time.Second, 0)

	// Then the censored version is the one stored
	store.EXPECT().
		Persist(gomock.Any(), "this is a ****", domain.UserID(7), domain.UserID(42)).
		Return(persisted("this is a ****", 7, 42), nil).
		Times(1)
	publisher.EXPECT().Publish(gomock.Any(), domain.UserID(42), gomock.Any()).Return(nil).Times(1)

	message, err := svc.Send(context.Background(), 7, domain.InboundFrame{ReceiverID: 42, Content: "this is a scam"})
	req.NoError(err)
	req.Equal("this is a ****", message.Content)
}

func TestValidatePostMessage(t *testing.T) {
	req := require.New(t)

	tests := []struct {
		name        string
		cmd         domain.PostMessageCommand
		max         int
		expectedErr error
	}{
		{"Valid", domain.PostMessageCommand{SenderID: 7, ReceiverID: 42, Content: "hello"}, 10, nil},
		{"Exactly at the limit", domain.PostMessageCommand{SenderID: 7, ReceiverID: 42, Content: "ééééé"}, 5, nil},
		{"No limit", domain.PostMessageCommand{SenderID: 7, ReceiverID: 42, Content: strings.Repeat("a", 10_000)}, 0, nil},
		{"Empty content", domain.PostMessageCommand{SenderID: 7, ReceiverID: 42}, 10, errors.ErrContentRequired},
		{"Missing receiver", domain.PostMessageCommand{SenderID: 7, Content: "hello"}, 10, errors.ErrInvalidReceiver},
		{"Too long", domain.PostMessageCommand{SenderID: 7, ReceiverID: 42, Content: "hello world"}, 10, errors.ErrContentTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePostMessage(tt.cmd, tt.max)
			if tt.expectedErr == nil {
				req.NoError(err)
				return
			}
			req.ErrorIs(err, tt.expectedErr)
		})
	}
}
