package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

var _ contract.IRegistry = (*Registry)(nil)

// Registry tracks, per user, the live connections held by this process.
// It never owns a connection: it only pushes payloads through the Peer handle.
type Registry struct {
	mu     sync.RWMutex
	log    *slog.Logger
	peers  map[domain.UserID][]contract.Peer // map user -> ordered connections
	owners map[uuid.UUID]domain.UserID       // map connection -> user
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:    log,
		peers:  make(map[domain.UserID][]contract.Peer),
		owners: make(map[uuid.UUID]domain.UserID),
	}
}

// Register adds the connection under userID.
// Registering the same handle twice is a no-op. A handle registered under
// another user is moved, a connection belongs to at most one user at a time.
func (r *Registry) Register(userID domain.UserID, peer contract.Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.owners[peer.ID()]; ok {
		if owner == userID {
			return
		}
		r.remove(owner, peer.ID())
	}
	r.peers[userID] = append(r.peers[userID], peer)
	r.owners[peer.ID()] = userID
}

// Unregister removes the connection from userID.
// Absent connections are ignored since disconnect paths may race.
func (r *Registry) Unregister(userID domain.UserID, peer contract.Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.owners[peer.ID()]; !ok || owner != userID {
		return
	}
	r.remove(userID, peer.ID())
}

// remove must be called with the lock held.
// It ensures no empty sets are left in the map to prevent memory leaks over time.
func (r *Registry) remove(userID domain.UserID, peerID uuid.UUID) {
	delete(r.owners, peerID)
	remaining := lo.Filter(r.peers[userID], func(p contract.Peer, _ int) bool {
		return p.ID() != peerID
	})
	if len(remaining) == 0 {
		delete(r.peers, userID)
		return
	}
	r.peers[userID] = remaining
}

// Deliver pushes payload to every connection of userID and returns how many accepted it.
// Sends happen outside the lock. A connection refusing the payload is unregistered.
func (r *Registry) Deliver(userID domain.UserID, payload []byte) int {
	peers := r.Peers(userID)

	delivered := 0
	for _, peer := range peers {
		if err := peer.Send(payload); err != nil {
			r.log.Debug("Dropping connection after failed send",
				"user_id", userID, "peer_id", peer.ID(), "error", err)
			r.Unregister(userID, peer)
			continue
		}
		delivered++
	}
	return delivered
}

// Peers returns a snapshot of the connections registered under userID.
func (r *Registry) Peers(userID domain.UserID) []contract.Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peers, ok := r.peers[userID]
	if !ok {
		return nil
	}
	snapshot := make([]contract.Peer, len(peers))
	copy(snapshot, peers)
	return snapshot
}

// Users returns the number of users holding at least one connection.
func (r *Registry) Users() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// Connections returns the number of registered connections.
func (r *Registry) Connections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.owners)
}
