//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"context"
	"reflect"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Peer is the registry's non-owning handle on a live connection.
// Send must never block on network I/O.
type Peer interface {
	ID() uuid.UUID
	Send(payload []byte) error
}

type IRegistry interface {
	Register(userID domain.UserID, peer Peer)
	Unregister(userID domain.UserID, peer Peer)
	Deliver(userID domain.UserID, payload []byte) int
}

// Subscription is a live registration on the topic of one user.
// Close is idempotent, nothing is emitted on Messages once it returned.
type Subscription interface {
	Messages() <-chan domain.Message
	Close() error
}

type IPublisher interface {
	Publish(ctx context.Context, userID domain.UserID, message domain.Message) error
}

type ISubscriber interface {
	Subscribe(ctx context.Context, userID domain.UserID) (Subscription, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type IBus interface {
	IPublisher
	ISubscriber
	Pinger
	Close() error
}

type IMessageStore interface {
	Persist(ctx context.Context, content string, senderID, receiverID domain.UserID) (domain.Message, error)
}

type IAuthProvider interface {
	Resolve(ctx context.Context, token string) (domain.UserID, error)
}
