package ws

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/observability"
	"chat-relay/services"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

type Options struct {
	ConnectionBufferSize int
	MaxFrameBytes        int64
	WriteTimeout         time.Duration
}

// Handler terminates chat connections. ctx bounds the lifetime of every session,
// cancelling it closes them with 1001.
type Handler struct {
	ctx        context.Context
	log        *slog.Logger
	resolver   contract.IAuthProvider
	registry   contract.IRegistry
	subscriber contract.ISubscriber
	chat       services.IChatService
	monitoring *observability.MonitoringManager
	options    Options
	upgrader   websocket.Upgrader
}

func NewHandler(
	ctx context.Context,
	log *slog.Logger,
	resolver contract.IAuthProvider,
	registry contract.IRegistry,
	subscriber contract.ISubscriber,
	chat services.IChatService,
	monitoring *observability.MonitoringManager,
	options Options,
) *Handler {
	return &Handler{
		ctx:        ctx,
		log:        log,
		resolver:   resolver,
		registry:   registry,
		subscriber: subscriber,
		chat:       chat,
		monitoring: monitoring,
		options:    options,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/", h.describe).Methods(http.MethodGet)
	router.HandleFunc("/up", h.up).Methods(http.MethodGet)
	router.HandleFunc("/stats", h.stats).Methods(http.MethodGet)
	router.HandleFunc("/chat/ws/{receiver_id}", h.Chat).Methods(http.MethodGet)
	return router
}

// Chat upgrades the request and runs the session until the socket goes away.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	receiverID, ok := domain.ParseUserID(mux.Vars(r)["receiver_id"])
	if !ok {
		http.Error(w, "invalid receiver id", http.StatusBadRequest)
		return
	}

	userID, authErr := h.resolver.Resolve(r.Context(), auth.TokenFromRequest(r))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("Upgrade failed", "error", err)
		return
	}

	if authErr != nil {
		code, reason := websocket.CloseInternalServerErr, "user lookup failed"
		if errors.IsAuth(authErr) {
			h.monitoring.IncrAuthFailures()
			h.log.Warn("Connection refused", "receiver_id", receiverID, "error", authErr)
			code, reason = CloseInvalidCredential, "invalid credential"
		} else {
			h.log.Error("Connection could not be authenticated", "error", authErr)
		}
		msg := websocket.FormatCloseMessage(code, reason)
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.options.WriteTimeout))
		_ = conn.Close()
		return
	}

	session := h.newSession(conn, userID, receiverID)
	session.Run(h.ctx)
}

func (h *Handler) newSession(conn *websocket.Conn, userID, receiverID domain.UserID) *Session {
	id := uuid.New()
	log := h.log.With("session_id", id, "user_id", userID)
	return &Session{
		id:            id,
		log:           log,
		userID:        userID,
		receiverID:    receiverID,
		conn:          conn,
		peer:          NewPeer(log, conn, h.options.ConnectionBufferSize, h.options.WriteTimeout),
		registry:      h.registry,
		subscriber:    h.subscriber,
		chat:          h.chat,
		monitoring:    h.monitoring,
		maxFrameBytes: h.options.MaxFrameBytes,
	}
}

type descriptor struct {
	Service   string `json:"service"`
	Websocket string `json:"websocket"`
	Stats     string `json:"stats"`
}

func (h *Handler) describe(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, descriptor{
		Service:   "chat-relay",
		Websocket: "/chat/ws/{receiver_id}?token=<jwt>",
		Stats:     "/stats",
	})
}

func (h *Handler) up(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (h *Handler) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.monitoring.GetLatest())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
