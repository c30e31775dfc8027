package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/shakirjon803-cell/obmen/internal/cache"
	"github.com/shakirjon803-cell/obmen/internal/middleware"
	"github.com/shakirjon803-cell/obmen/internal/models"
	"github.com/shakirjon803-cell/obmen/internal/repository"
)

// ListingResolver looks up listing titles for conversation context. Listings
// live in the marketplace service; this is its boundary.
type ListingResolver interface {
	Title(listingID int64) (*string, error)
}

type ConversationHandler struct {
	convRepo *repository.ConversationRepository
	userRepo *repository.UserRepository
	msgRepo  *repository.MessageRepository
	redis    *cache.RedisClient
	listings ListingResolver
}

func NewConversationHandler(
	convRepo *repository.ConversationRepository,
	userRepo *repository.UserRepository,
	msgRepo *repository.MessageRepository,
	redis *cache.RedisClient,
	listings ListingResolver,
) *ConversationHandler {
	return &ConversationHandler{
		convRepo: convRepo,
		userRepo: userRepo,
		msgRepo:  msgRepo,
		redis:    redis,
		listings: listings,
	}
}

// GetConversations returns the caller's inbox, most recent activity first.
func (h *ConversationHandler) GetConversations(c *gin.Context) {
	uid := middleware.CurrentUserID(c)

	conversations, err := h.convRepo.GetByUserID(uid)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to get conversations")
		return
	}

	summaries := make([]models.ConversationSummary, 0, len(conversations))
	for i := range conversations {
		summary, err := h.toSummary(&conversations[i], uid)
		if err != nil {
			ErrorResponse(c, http.StatusInternalServerError, "Failed to get conversations")
			return
		}
		summaries = append(summaries, *summary)
	}

	c.JSON(http.StatusOK, summaries)
}

// GetUnreadCount returns the caller's total unread message count.
func (h *ConversationHandler) GetUnreadCount(c *gin.Context) {
	uid := middleware.CurrentUserID(c)

	total, err := h.convRepo.TotalUnread(uid)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to get unread count")
		return
	}

	c.JSON(http.StatusOK, models.UnreadCountResponse{UnreadCount: total})
}

// StartConversation creates a conversation with a recipient, or returns the
// existing one for the pair. An optional initial message is sent in the same
// call.
func (h *ConversationHandler) StartConversation(c *gin.Context) {
	var req models.StartConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	uid := middleware.CurrentUserID(c)
	if req.RecipientID == uid {
		ErrorResponse(c, http.StatusBadRequest, "Cannot message yourself")
		return
	}

	if _, err := h.userRepo.GetByID(req.RecipientID); err != nil {
		ErrorResponse(c, http.StatusNotFound, "Recipient not found")
		return
	}

	conv, err := h.convRepo.GetOrCreate(uid, req.RecipientID, req.ListingID)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to create conversation")
		return
	}

	if req.InitialMessage != nil && *req.InitialMessage != "" {
		msg := &models.Message{SenderID: uid, Content: req.InitialMessage, MessageType: models.MessageTypeText}
		if err := h.msgRepo.Create(conv.ID, msg); err != nil {
			ErrorResponse(c, http.StatusInternalServerError, "Failed to send initial message")
			return
		}
		if err := h.convRepo.TouchOnMessage(conv.ID, uid, msg.Preview(), msg.CreatedAt); err != nil {
			ErrorResponse(c, http.StatusInternalServerError, "Failed to send initial message")
			return
		}
	}

	conv, err = h.convRepo.GetByIDForUser(conv.ID, uid)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to load conversation")
		return
	}

	summary, err := h.toSummary(conv, uid)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to load conversation")
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetConversation returns the full open-view shape for one conversation.
// Unread counters are reset by the explicit read endpoint, not by opening.
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	conversationID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	uid := middleware.CurrentUserID(c)

	conv, err := h.convRepo.GetByIDForUser(conversationID, uid)
	if err == repository.ErrNotFound {
		ErrorResponse(c, http.StatusNotFound, "Conversation not found")
		return
	}
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to get conversation")
		return
	}

	messages, err := h.msgRepo.GetByConversationID(conversationID, 50, 0)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to get messages")
		return
	}

	other, err := h.participant(conv.OtherUserID(uid))
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to get conversation")
		return
	}

	detail := models.ConversationDetail{
		ID:        conv.ID,
		OtherUser: *other,
		ListingID: conv.ListingID,
		Messages:  messages,
		IsBlocked: conv.IsBlocked,
	}
	detail.ListingTitle = h.listingTitle(conv.ListingID)

	c.JSON(http.StatusOK, detail)
}

// BlockConversation blocks a conversation on behalf of the caller.
func (h *ConversationHandler) BlockConversation(c *gin.Context) {
	conversationID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	uid := middleware.CurrentUserID(c)

	if _, err := h.convRepo.GetByIDForUser(conversationID, uid); err != nil {
		ErrorResponse(c, http.StatusNotFound, "Conversation not found")
		return
	}

	if err := h.convRepo.SetBlocked(conversationID, uid, true); err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to block conversation")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *ConversationHandler) toSummary(conv *models.Conversation, uid int64) (*models.ConversationSummary, error) {
	other, err := h.participant(conv.OtherUserID(uid))
	if err != nil {
		return nil, err
	}

	summary := &models.ConversationSummary{
		ID:            conv.ID,
		OtherUser:     *other,
		ListingID:     conv.ListingID,
		LastMessage:   conv.LastMessageText,
		LastMessageAt: conv.LastMessageAt,
		UnreadCount:   conv.UnreadFor(uid),
		IsBlocked:     conv.IsBlocked,
	}
	summary.ListingTitle = h.listingTitle(conv.ListingID)
	return summary, nil
}

func (h *ConversationHandler) participant(userID int64) (*models.Participant, error) {
	user, err := h.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	online := false
	if h.redis != nil {
		// Presence lookup failures degrade to offline.
		online, _ = h.redis.IsUserOnline(userID)
	}

	return &models.Participant{
		ID:        user.ID,
		Nickname:  user.Nickname,
		Name:      user.Name,
		AvatarURL: user.AvatarURL,
		IsOnline:  online,
	}, nil
}

func (h *ConversationHandler) listingTitle(listingID *int64) *string {
	if listingID == nil || h.listings == nil {
		return nil
	}
	title, err := h.listings.Title(*listingID)
	if err != nil {
		return nil
	}
	return title
}
