package ws

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/observability"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// CloseInvalidCredential is sent when a connection cannot be tied to a user.
const CloseInvalidCredential = 4001

type State int32

const (
	StateConnecting State = iota
	StateAuthenticated
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session drives one authenticated connection: it reads inbound frames in order,
// hands valid ones to the chat service and keeps a subscription on the user's topic
// alive for as long as the socket is open.
type Session struct {
	id            uuid.UUID
	log           *slog.Logger
	userID        domain.UserID
	receiverID    domain.UserID
	conn          *websocket.Conn
	peer          *Peer
	registry      contract.IRegistry
	subscriber    contract.ISubscriber
	chat          services.IChatService
	monitoring    *observability.MonitoringManager
	maxFrameBytes int64

	state     atomic.Int32
	cancel    context.CancelFunc
	sub       contract.Subscription
	listener  sync.WaitGroup
	closeOnce sync.Once
}

func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(next State) {
	prev := State(s.state.Swap(int32(next)))
	s.log.Debug("Session state changed", "from", prev, "state", next)
}

// Run blocks until the connection is gone. Cleanup always runs before it returns.
func (s *Session) Run(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.monitoring.SessionOpened()
	go s.peer.WritePump()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Session panicked", "panic", r)
			s.close(websocket.CloseInternalServerErr, "internal error")
			return
		}
		s.close(websocket.CloseNormalClosure, "")
	}()

	s.setState(StateAuthenticated)
	s.registry.Register(s.userID, s.peer)

	sub, err := s.subscriber.Subscribe(ctx, s.userID)
	if err != nil {
		s.log.Error("Subscription could not be opened", "error", err)
		s.close(websocket.CloseInternalServerErr, "subscription unavailable")
		return
	}
	s.sub = sub

	listener := workers.NewFanoutListener(s.log, s.userID, sub, s.registry, s.monitoring)
	s.listener.Add(1)
	go func() {
		defer s.listener.Done()
		if err := listener.Run(ctx); err != nil {
			s.log.Warn("Fan-out listener stopped", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		if s.State() < StateClosing {
			s.peer.CloseWith(websocket.CloseGoingAway, "server shutdown")
		}
	}()

	s.setState(StateActive)
	if err := s.readLoop(ctx); err != nil {
		s.close(websocket.CloseInternalServerErr, "internal error")
	}
}

// readLoop returns nil when the peer went away, or the fault that ended the session.
func (s *Session) readLoop(ctx context.Context) error {
	s.conn.SetReadLimit(s.maxFrameBytes)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived) {
				s.log.Debug("Connection lost", "error", err)
			}
			return nil
		}
		s.monitoring.IncrFramesReceived()
		if err := s.handle(ctx, data); err != nil {
			return err
		}
	}
}

// handle only returns faults the session cannot recover from.
func (s *Session) handle(ctx context.Context, data []byte) error {
	frame, err := domain.ParseFrame(data, s.receiverID)
	if err != nil {
		s.reject(err)
		return nil
	}

	message, err := s.chat.Send(ctx, s.userID, frame)
	switch {
	case err == nil:
	case errors.Is(err, errors.ErrDelivery):
		// stored, the sender still gets its echo
		s.monitoring.IncrPublishFailures()
	case errors.Is(err, errors.ErrPersistence):
		s.monitoring.IncrPersistFailures()
		s.reject(err)
		return nil
	case errors.IsProtocol(err):
		s.reject(err)
		return nil
	default:
		s.log.Error("Frame could not be handled", "error", err)
		s.reject(err)
		return err
	}

	s.monitoring.IncrMessagesPersisted()
	payload, err := json.Marshal(message)
	if err != nil {
		s.log.Error("Message could not be encoded", "message_id", message.ID, "error", err)
		return err
	}
	if err := s.peer.Send(payload); err != nil {
		s.log.Debug("Echo dropped", "message_id", message.ID, "error", err)
	}
	return nil
}

func (s *Session) reject(err error) {
	s.monitoring.IncrFramesRejected()
	s.log.Debug("Frame rejected", "error", err)
	if err := s.peer.Send(domain.NewErrorFrame(err)); err != nil {
		s.log.Debug("Error frame dropped", "error", err)
	}
}

// close may be reached from the read loop, a failed subscription or a shutdown.
// Every step tolerates having already run.
func (s *Session) close(code int, reason string) {
	s.closeOnce.Do(func() {
		s.setState(StateClosing)
		s.cancel()
		s.registry.Unregister(s.userID, s.peer)
		if s.sub != nil {
			if err := s.sub.Close(); err != nil {
				s.log.Warn("Subscription close failed", "error", err)
			}
		}
		s.listener.Wait()
		s.peer.CloseWith(code, reason)
		<-s.peer.Done()
		s.setState(StateClosed)
		s.monitoring.SessionClosed()
	})
}
