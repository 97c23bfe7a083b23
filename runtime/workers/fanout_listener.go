package workers

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/observability"
	"context"
	"encoding/json"
	"log/slog"
)

var _ contract.Worker = (*FanoutListener)(nil)

// FanoutListener drains the subscription of one session into the local registry.
// Messages published by other processes, or by other sessions of the same user,
// reach this process' connections this way.
//
// It blocks on the subscription stream and stops as soon as the context is canceled
// or the stream is closed. A message received after cancellation is dropped.
type FanoutListener struct {
	log          *slog.Logger
	userID       domain.UserID
	subscription contract.Subscription
	registry     contract.IRegistry
	monitoring   *observability.MonitoringManager
}

func NewFanoutListener(
	log *slog.Logger,
	userID domain.UserID,
	subscription contract.Subscription,
	registry contract.IRegistry,
	monitoring *observability.MonitoringManager,
) *FanoutListener {
	return &FanoutListener{
		log:          log,
		userID:       userID,
		subscription: subscription,
		registry:     registry,
		monitoring:   monitoring,
	}
}

func (w *FanoutListener) Run(ctx context.Context) error {
	messages := w.subscription.Messages()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping fan-out listener")
			return nil
		case message, ok := <-messages:
			if !ok {
				w.log.Debug("Subscription closed, stopping fan-out listener")
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			w.Fanout(message)
		}
	}
}

// Fanout delivers one message to every local connection of the listener's user.
func (w *FanoutListener) Fanout(message domain.Message) {
	payload, err := json.Marshal(message)
	if err != nil {
		w.log.Error("Message could not be encoded", "message_id", message.ID, "error", err)
		return
	}
	delivered := w.registry.Deliver(w.userID, payload)
	w.monitoring.AddDelivered(delivered)
	w.log.Debug("Message fanned out", "message_id", message.ID, "connections", delivered)
}
