package services

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/moderation"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
)

type IChatService interface {
	Send(ctx context.Context, senderID domain.UserID, frame domain.InboundFrame) (domain.Message, error)
}

var _ IChatService = (*ChatService)(nil)

// ChatService turns an accepted frame into a persisted message and hands it to the bus.
// Persistence and publication are not transactional: a stored message may fail to publish.
type ChatService struct {
	log              *slog.Logger
	store            contract.IMessageStore
	publisher        contract.IPublisher
	moderator        *moderation.Moderator
	persistTimeout   time.Duration
	publishTimeout   time.Duration
	maxContentLength int
}

// NewChatService builds the service, moderator may be nil.
func NewChatService(
	log *slog.Logger,
	store contract.IMessageStore,
	publisher contract.IPublisher,
	moderator *moderation.Moderator,
	persistTimeout, publishTimeout time.Duration,
	maxContentLength int,
) *ChatService {
	return &ChatService{
		log:              log,
		store:            store,
		publisher:        publisher,
		moderator:        moderator,
		persistTimeout:   persistTimeout,
		publishTimeout:   publishTimeout,
		maxContentLength: maxContentLength,
	}
}

// Send persists then publishes the message for its receiver.
// On ErrPersistence nothing was published. On ErrDelivery the returned message is
// valid and stored, only the fan-out failed.
func (s *ChatService) Send(ctx context.Context, senderID domain.UserID, frame domain.InboundFrame) (domain.Message, error) {
	cmd := domain.PostMessageCommand{
		SenderID:   senderID,
		ReceiverID: frame.ReceiverID,
		Content:    strings.TrimSpace(frame.Content),
	}
	if err := ValidatePostMessage(cmd, s.maxContentLength); err != nil {
		return domain.Message{}, err
	}
	cmd.Content = s.censor(cmd)

	persistCtx, cancel := context.WithTimeout(ctx, s.persistTimeout)
	message, err := s.store.Persist(persistCtx, cmd.Content, cmd.SenderID, cmd.ReceiverID)
	cancel()
	if err != nil {
		s.log.Error("Message could not be persisted",
			"sender_id", cmd.SenderID, "receiver_id", cmd.ReceiverID, "error", err)
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(publishCtx, message.ReceiverID, message); err != nil {
		s.log.Warn("Message stored but not published",
			"message_id", message.ID, "receiver_id", message.ReceiverID, "error", err)
		return message, fmt.Errorf("%w: %v", errors.ErrDelivery, err)
	}
	return message, nil
}

func (s *ChatService) censor(cmd domain.PostMessageCommand) string {
	if s.moderator == nil {
		return cmd.Content
	}
	sanitized, words := s.moderator.Censor(cmd.Content)
	if len(words) > 0 {
		info := whatlanggo.Detect(cmd.Content)
		s.log.Info("Censored words replaced",
			"sender_id", cmd.SenderID,
			"count", len(words),
			"lang", info.Lang.Iso6391())
	}
	return sanitized
}
