package models

import (
	"time"
)

// Conversation is the storage row for a two-party thread. The participant
// columns follow the canonical ordering user1_id < user2_id so one pair of
// users can never own two threads.
type Conversation struct {
	ID               int64     `json:"id" db:"id"`
	User1ID          int64     `json:"user1_id" db:"user1_id"`
	User2ID          int64     `json:"user2_id" db:"user2_id"`
	ListingID        *int64    `json:"listing_id,omitempty" db:"listing_id"`
	LastMessageText  *string   `json:"last_message_text,omitempty" db:"last_message_text"`
	LastMessageAt    time.Time `json:"last_message_at" db:"last_message_at"`
	LastSenderID     *int64    `json:"last_sender_id,omitempty" db:"last_sender_id"`
	UnreadCountUser1 int       `json:"unread_count_user1" db:"unread_count_user1"`
	UnreadCountUser2 int       `json:"unread_count_user2" db:"unread_count_user2"`
	IsBlocked        bool      `json:"is_blocked" db:"is_blocked"`
	BlockedBy        *int64    `json:"blocked_by,omitempty" db:"blocked_by"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// OtherUserID returns the participant that is not userID.
func (c *Conversation) OtherUserID(userID int64) int64 {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}

// UnreadFor returns the unread counter belonging to userID.
func (c *Conversation) UnreadFor(userID int64) int {
	if c.User1ID == userID {
		return c.UnreadCountUser1
	}
	return c.UnreadCountUser2
}

// ConversationSummary is one inbox entry as returned by GET /chat/conversations.
type ConversationSummary struct {
	ID            int64       `json:"id"`
	OtherUser     Participant `json:"other_user"`
	ListingID     *int64      `json:"listing_id,omitempty"`
	ListingTitle  *string     `json:"listing_title,omitempty"`
	LastMessage   *string     `json:"last_message,omitempty"`
	LastMessageAt time.Time   `json:"last_message_at"`
	UnreadCount   int         `json:"unread_count"`
	IsBlocked     bool        `json:"is_blocked"`
}

// ConversationDetail is the open-view shape returned by GET /chat/conversations/:id.
type ConversationDetail struct {
	ID           int64       `json:"id"`
	OtherUser    Participant `json:"other_user"`
	ListingID    *int64      `json:"listing_id,omitempty"`
	ListingTitle *string     `json:"listing_title,omitempty"`
	Messages     []Message   `json:"messages"`
	IsBlocked    bool        `json:"is_blocked"`
}

type StartConversationRequest struct {
	RecipientID    int64   `json:"recipient_id" binding:"required"`
	ListingID      *int64  `json:"listing_id,omitempty"`
	InitialMessage *string `json:"initial_message,omitempty"`
}

type UnreadCountResponse struct {
	UnreadCount int `json:"unread_count"`
}
