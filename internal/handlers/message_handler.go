package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/shakirjon803-cell/obmen/internal/middleware"
	"github.com/shakirjon803-cell/obmen/internal/models"
	"github.com/shakirjon803-cell/obmen/internal/repository"
)

type MessageHandler struct {
	msgRepo  *repository.MessageRepository
	convRepo *repository.ConversationRepository
	userRepo *repository.UserRepository
}

func NewMessageHandler(
	msgRepo *repository.MessageRepository,
	convRepo *repository.ConversationRepository,
	userRepo *repository.UserRepository,
) *MessageHandler {
	return &MessageHandler{
		msgRepo:  msgRepo,
		convRepo: convRepo,
		userRepo: userRepo,
	}
}

// SendMessage persists a message and returns the canonical entity. The live
// push to the counterpart rides the sender's websocket echo, not this
// endpoint.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	conversationID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
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
	if conv.IsBlocked {
		ErrorResponse(c, http.StatusForbidden, "Conversation is blocked")
		return
	}

	messageType := models.MessageTypeText
	if req.ImageURL != nil && *req.ImageURL != "" && (req.Content == nil || *req.Content == "") {
		messageType = models.MessageTypeImage
	}

	message := &models.Message{
		SenderID:    uid,
		Content:     req.Content,
		ImageURL:    req.ImageURL,
		MessageType: messageType,
	}

	if err := h.msgRepo.Create(conversationID, message); err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to send message")
		return
	}

	if err := h.convRepo.TouchOnMessage(conversationID, uid, message.Preview(), message.CreatedAt); err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to send message")
		return
	}

	if sender, err := h.userRepo.GetByID(uid); err == nil {
		message.SenderName = sender.Name
		message.SenderAvatar = sender.AvatarURL
	}

	c.JSON(http.StatusCreated, message)
}

// MarkAsRead flags every counterpart message in the conversation as read and
// resets the caller's unread counter.
func (h *MessageHandler) MarkAsRead(c *gin.Context) {
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

	if err := h.msgRepo.MarkConversationRead(conversationID, uid); err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to mark messages read")
		return
	}
	if err := h.convRepo.ResetUnread(conversationID, uid); err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to reset unread count")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
