package ws

import (
	"chat-relay/contract"
	"chat-relay/errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var _ contract.Peer = (*Peer)(nil)

// Peer owns the write side of one websocket connection.
// Every outbound frame goes through a bounded queue drained by a single writer,
// so Send never touches the network and never blocks.
type Peer struct {
	id           uuid.UUID
	log          *slog.Logger
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu        sync.RWMutex
	closed    bool
	closeCode int
	reason    string
	send      chan []byte
	done      chan struct{}
}

func NewPeer(log *slog.Logger, conn *websocket.Conn, bufferSize int, writeTimeout time.Duration) *Peer {
	id := uuid.New()
	return &Peer{
		id:           id,
		log:          log.With("peer_id", id),
		conn:         conn,
		writeTimeout: writeTimeout,
		closeCode:    websocket.CloseNormalClosure,
		send:         make(chan []byte, bufferSize),
		done:         make(chan struct{}),
	}
}

func (p *Peer) ID() uuid.UUID { return p.id }

// Send queues a text frame. It fails when the peer is closed or its queue is full.
func (p *Peer) Send(payload []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errors.ErrPeerClosed
	}
	select {
	case p.send <- payload:
		return nil
	default:
		return errors.ErrPeerBackpressure
	}
}

// CloseWith flushes the queue then ends the connection with code. Only the first call counts.
func (p *Peer) CloseWith(code int, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.closeCode = code
	p.reason = reason
	close(p.send)
}

// Done is closed once the writer has released the connection.
func (p *Peer) Done() <-chan struct{} { return p.done }

// WritePump is the only goroutine writing on the connection.
func (p *Peer) WritePump() {
	defer close(p.done)
	defer p.conn.Close()

	for payload := range p.send {
		_ = p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout))
		if err := p.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			p.log.Debug("Write failed, dropping peer", "error", err)
			p.abort()
			return
		}
	}

	p.mu.RLock()
	code, reason := p.closeCode, p.reason
	p.mu.RUnlock()
	msg := websocket.FormatCloseMessage(code, reason)
	if err := p.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(p.writeTimeout)); err != nil {
		p.log.Debug("Close frame not sent", "error", err)
	}
}

func (p *Peer) abort() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.send)
	}
}
