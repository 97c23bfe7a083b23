package fanout

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

var _ contract.IBus = (*RedisBus)(nil)

// RedisBus publishes on Redis channels and consumes them with a blocking receive.
// One client is shared by every session of the process and owned by whoever built it.
type RedisBus struct {
	client     *redis.Client
	log        *slog.Logger
	bufferSize int
}

// NewRedisBus connects to url (redis://host:port/db) and checks the server answers.
func NewRedisBus(ctx context.Context, url string, log *slog.Logger, bufferSize int) (*RedisBus, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis unreachable at %s: %w", options.Addr, err)
	}
	return NewRedisBusFromClient(client, log, bufferSize), nil
}

func NewRedisBusFromClient(client *redis.Client, log *slog.Logger, bufferSize int) *RedisBus {
	return &RedisBus{client: client, log: log, bufferSize: bufferSize}
}

func (b *RedisBus) Publish(ctx context.Context, userID domain.UserID, message domain.Message) error {
	payload, err := encode(message)
	if err != nil {
		return err
	}
	receivers, err := b.client.Publish(ctx, Topic(userID), payload).Result()
	if err != nil {
		return fmt.Errorf("publish on %s: %w", Topic(userID), err)
	}
	b.log.Debug("Message published", "topic", Topic(userID), "message_id", message.ID, "receivers", receivers)
	return nil
}

// Subscribe returns once Redis confirmed the subscription, so nothing published
// afterwards can be missed.
func (b *RedisBus) Subscribe(ctx context.Context, userID domain.UserID) (contract.Subscription, error) {
	topic := Topic(userID)
	pubsub := b.client.Subscribe(ctx, topic)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		log:    b.log.With("topic", topic),
		out:    make(chan domain.Message, b.bufferSize),
		done:   make(chan struct{}),
	}
	go sub.pump(pubsub.Channel(redis.WithChannelSize(b.bufferSize)))
	return sub, nil
}

func (b *RedisBus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBus) Close() error {
	return b.client.Close()
}

type redisSubscription struct {
	pubsub    *redis.PubSub
	log       *slog.Logger
	out       chan domain.Message
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// pump decodes Redis payloads until the subscription is closed.
func (s *redisSubscription) pump(in <-chan *redis.Message) {
	defer close(s.out)
	for {
		select {
		case <-s.done:
			return
		case raw, ok := <-in:
			if !ok {
				return
			}
			message, err := decode([]byte(raw.Payload))
			if err != nil {
				s.log.Warn("Dropping undecodable payload", "error", err)
				continue
			}
			select {
			case s.out <- message:
			case <-s.done:
				return
			}
		}
	}
}

func (s *redisSubscription) Messages() <-chan domain.Message {
	return s.out
}

func (s *redisSubscription) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.closeErr = s.pubsub.Close()
	})
	return s.closeErr
}
