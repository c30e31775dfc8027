package websocket

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/shakirjon803-cell/obmen/internal/cache"
	"github.com/shakirjon803-cell/obmen/internal/protocol"
	"github.com/shakirjon803-cell/obmen/internal/repository"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 65536
)

// Client is one websocket connection of one user. Inbound frames are relayed
// to the conversation counterpart; outbound frames arrive on the send channel
// from the hub.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID int64
	connID uuid.UUID

	convRepo *repository.ConversationRepository
	redis    *cache.RedisClient
	logger   *slog.Logger

	// simple token-bucket rate limiter
	tokens       int
	maxTokens    int
	refillPeriod time.Duration
	lastRefill   time.Time
}

func NewClient(
	hub *Hub,
	conn *websocket.Conn,
	userID int64,
	convRepo *repository.ConversationRepository,
	redis *cache.RedisClient,
	logger *slog.Logger,
) *Client {
	return &Client{
		hub:          hub,
		conn:         conn,
		send:         make(chan []byte, 256),
		userID:       userID,
		connID:       uuid.New(),
		convRepo:     convRepo,
		redis:        redis,
		logger:       logger,
		tokens:       20,
		maxTokens:    20,
		refillPeriod: time.Second,
		lastRefill:   time.Now(),
	}
}

// ReadPump pumps frames from the websocket connection into the relay.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", "user_id", c.userID, "err", err)
			}
			break
		}

		now := time.Now()
		elapsed := now.Sub(c.lastRefill)
		if elapsed >= c.refillPeriod {
			c.tokens += int(elapsed / c.refillPeriod)
			if c.tokens > c.maxTokens {
				c.tokens = c.maxTokens
			}
			c.lastRefill = now
		}
		if c.tokens <= 0 {
			c.sendError("rate_limited")
			continue
		}
		c.tokens--

		c.handleFrame(data)
	}
}

// WritePump pumps frames from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleFrame decodes one inbound frame and relays it to the counterpart of
// the conversation it names. Malformed frames are answered with an error
// frame and dropped.
func (c *Client) handleFrame(data []byte) {
	ev, err := protocol.Decode(data)
	if err != nil {
		c.logger.Warn("discarding malformed frame", "user_id", c.userID, "err", err)
		c.sendError("invalid frame")
		return
	}

	switch e := ev.(type) {
	case protocol.MessageEvent:
		// Echo of a REST-confirmed message: push it to the counterpart so
		// their open view updates without polling.
		c.relay(e.ConversationID, data)

	case protocol.TypingEvent:
		if e.UserID != c.userID {
			c.sendError("typing user mismatch")
			return
		}
		if c.redis != nil {
			if err := c.redis.SetTyping(e.ConversationID, c.userID); err != nil {
				c.logger.Warn("failed to record typing", "err", err)
			}
		}
		c.relay(e.ConversationID, data)

	case protocol.ReadEvent:
		c.relay(e.ConversationID, data)

	case protocol.OnlineEvent, protocol.ErrorEvent:
		// Server-originated kinds; clients have no business sending them.
		c.sendError("unsupported frame type")
	}
}

// relay forwards a raw frame to the other participant after checking the
// sender belongs to the conversation.
func (c *Client) relay(conversationID int64, frame []byte) {
	conv, err := c.convRepo.GetByIDForUser(conversationID, c.userID)
	if err != nil {
		c.sendError("access denied")
		return
	}
	if conv.IsBlocked {
		return
	}
	c.hub.SendToUser(conv.OtherUserID(c.userID), frame)
}

// sendError pushes an error frame to this client without blocking.
func (c *Client) sendError(detail string) {
	frame, err := protocol.Encode(protocol.ErrorEvent{Detail: detail})
	if err != nil {
		return
	}
	select {
	case c.send <- frame:
	default:
	}
}
