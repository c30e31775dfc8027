package websocket

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/shakirjon803-cell/obmen/internal/cache"
	"github.com/shakirjon803-cell/obmen/internal/repository"
)

// Handler upgrades per-user websocket connections. The session credential is
// established through the REST layer beforehand; the socket itself is
// addressed only by the user's numeric identity.
type Handler struct {
	hub            *Hub
	convRepo       *repository.ConversationRepository
	redis          *cache.RedisClient
	logger         *slog.Logger
	allowedOrigins []string
}

func NewHandler(
	hub *Hub,
	convRepo *repository.ConversationRepository,
	redis *cache.RedisClient,
	logger *slog.Logger,
	allowedOrigins []string,
) *Handler {
	return &Handler{
		hub:            hub,
		convRepo:       convRepo,
		redis:          redis,
		logger:         logger,
		allowedOrigins: allowedOrigins,
	}
}

// HandleWebSocket handles GET /ws/:user_id upgrade requests.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(h.allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, pattern := range h.allowedOrigins {
				if matchOrigin(pattern, origin) {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade connection", "err", err)
		return
	}

	client := NewClient(h.hub, conn, userID, h.convRepo, h.redis, h.logger)

	h.hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}

// GetOnlineUsers returns locally connected users (admin/debug endpoint).
func (h *Handler) GetOnlineUsers(c *gin.Context) {
	online := h.hub.OnlineUsers()
	c.JSON(http.StatusOK, gin.H{
		"online_users": online,
		"count":        len(online),
	})
}

// matchOrigin supports exact matches or wildcard patterns like *.example.com
func matchOrigin(pattern, origin string) bool {
	if pattern == origin || pattern == "*" {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		originHost := origin
		if u, err := url.Parse(origin); err == nil {
			originHost = u.Hostname()
		}
		return strings.HasSuffix(originHost, strings.TrimPrefix(pattern, "*."))
	}
	return false
}
