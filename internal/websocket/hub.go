package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/shakirjon803-cell/obmen/internal/cache"
	"github.com/shakirjon803-cell/obmen/internal/models"
	"github.com/shakirjon803-cell/obmen/internal/protocol"
	"github.com/shakirjon803-cell/obmen/internal/repository"
)

// Hub maintains the set of active sockets per user and routes frames to
// their recipients. A user may hold several sockets (multiple tabs); presence
// changes fire on the first and last of them.
type Hub struct {
	// Sockets keyed by user, then by connection id
	clients map[int64]map[uuid.UUID]*Client

	register   chan *Client
	unregister chan *Client

	// Redis pub/sub fans frames out across server instances; nil means
	// single-instance local delivery.
	redis    *cache.RedisClient
	convRepo *repository.ConversationRepository
	logger   *slog.Logger

	mu sync.RWMutex
}

func NewHub(redis *cache.RedisClient, convRepo *repository.ConversationRepository, logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[int64]map[uuid.UUID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		redis:      redis,
		convRepo:   convRepo,
		logger:     logger,
	}
}

// Run starts the hub loop.
func (h *Hub) Run() {
	if h.redis != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			conns, ok := h.clients[client.userID]
			if !ok {
				conns = make(map[uuid.UUID]*Client)
				h.clients[client.userID] = conns
			}
			first := len(conns) == 0
			conns[client.connID] = client
			h.mu.Unlock()

			if first {
				h.setPresence(client.userID, true)
			}
			h.logger.Info("websocket client registered",
				"user_id", client.userID, "conn_id", client.connID)

		case client := <-h.unregister:
			h.mu.Lock()
			last := false
			if conns, ok := h.clients[client.userID]; ok {
				if _, ok := conns[client.connID]; ok {
					delete(conns, client.connID)
					close(client.send)
				}
				if len(conns) == 0 {
					delete(h.clients, client.userID)
					last = true
				}
			}
			h.mu.Unlock()

			if last {
				h.setPresence(client.userID, false)
			}
			h.logger.Info("websocket client unregistered",
				"user_id", client.userID, "conn_id", client.connID)
		}
	}
}

// SendToUser routes one encoded frame to every socket of a user, across
// instances when redis is configured.
func (h *Hub) SendToUser(userID int64, frame []byte) {
	if h.redis != nil {
		if err := h.redis.PublishEvent(userID, frame); err != nil {
			h.logger.Warn("failed to publish chat event", "err", err)
			h.deliverLocal(userID, frame)
		}
		return
	}
	h.deliverLocal(userID, frame)
}

// IsUserOnline checks for a live local socket.
func (h *Hub) IsUserOnline(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// OnlineUsers returns the ids of locally connected users.
func (h *Hub) OnlineUsers() []int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]int64, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}

func (h *Hub) deliverLocal(userID int64, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients[userID] {
		select {
		case client.send <- frame:
		default:
			// Slow consumer; drop the frame rather than block the hub.
		}
	}
}

func (h *Hub) subscribeToRedis() {
	pubsub := h.redis.SubscribeToEvents()
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var env cache.Envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			h.logger.Warn("discarding malformed pub/sub envelope", "err", err)
			continue
		}
		h.deliverLocal(env.RecipientID, env.Frame)
	}
}

// setPresence records the presence change and pushes an online frame to every
// counterpart the user shares a conversation with.
func (h *Hub) setPresence(userID int64, online bool) {
	if h.redis != nil {
		var err error
		if online {
			err = h.redis.SetUserOnline(userID)
		} else {
			err = h.redis.SetUserOffline(userID)
		}
		if err != nil {
			h.logger.Warn("failed to record presence", "user_id", userID, "err", err)
		}
	}

	frame, err := protocol.Encode(protocol.OnlineEvent{UserID: userID, IsOnline: online})
	if err != nil {
		h.logger.Error("failed to encode online event", "err", err)
		return
	}

	conversations, err := h.conversationsOf(userID)
	if err != nil {
		h.logger.Warn("failed to load conversations for presence fanout",
			"user_id", userID, "err", err)
		return
	}
	for _, conv := range conversations {
		h.SendToUser(conv.OtherUserID(userID), frame)
	}
}

func (h *Hub) conversationsOf(userID int64) ([]models.Conversation, error) {
	if h.convRepo == nil {
		return nil, nil
	}
	return h.convRepo.GetByUserID(userID)
}
