package fanout

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"context"
	"log/slog"
	"sync"
)

var _ contract.IBus = (*MemoryBus)(nil)

// MemoryBus is a single-process bus: every session of the process shares it.
// A subscriber whose buffer is full misses the message.
type MemoryBus struct {
	mu         sync.RWMutex
	log        *slog.Logger
	bufferSize int
	topics     map[string]map[*memorySubscription]struct{}
}

func NewMemoryBus(log *slog.Logger, bufferSize int) *MemoryBus {
	return &MemoryBus{
		log:        log,
		bufferSize: bufferSize,
		topics:     make(map[string]map[*memorySubscription]struct{}),
	}
}

func (b *MemoryBus) Publish(ctx context.Context, userID domain.UserID, message domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	topic := Topic(userID)

	b.mu.RLock()
	subs := make([]*memorySubscription, 0, len(b.topics[topic]))
	for sub := range b.topics[topic] {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		if !sub.offer(message) {
			b.log.Debug("Subscriber buffer full, message lost", "topic", topic, "message_id", message.ID)
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, userID domain.UserID) (contract.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	topic := Topic(userID)
	sub := &memorySubscription{
		bus:   b,
		topic: topic,
		out:   make(chan domain.Message, b.bufferSize),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.topics[topic]; !ok {
		b.topics[topic] = make(map[*memorySubscription]struct{})
	}
	b.topics[topic][sub] = struct{}{}
	return sub, nil
}

func (b *MemoryBus) Ping(context.Context) error { return nil }

func (b *MemoryBus) Close() error { return nil }

// Subscribers returns how many subscriptions are open on the topic of userID.
func (b *MemoryBus) Subscribers(userID domain.UserID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[Topic(userID)])
}

func (b *MemoryBus) remove(sub *memorySubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[sub.topic]
	if !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.topics, sub.topic)
	}
}

type memorySubscription struct {
	mu     sync.RWMutex
	bus    *MemoryBus
	topic  string
	out    chan domain.Message
	closed bool
}

func (s *memorySubscription) offer(message domain.Message) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return true
	}
	select {
	case s.out <- message:
		return true
	default:
		return false
	}
}

func (s *memorySubscription) Messages() <-chan domain.Message {
	return s.out
}

func (s *memorySubscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.out)
	s.mu.Unlock()

	s.bus.remove(s)
	return nil
}
