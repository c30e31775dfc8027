package models

import (
	"fmt"
	"time"
)

// Message types
const (
	MessageTypeText   = "text"
	MessageTypeImage  = "image"
	MessageTypeSystem = "system"
)

const previewLength = 200

type Message struct {
	ID           int64     `json:"id" db:"id"`
	SenderID     int64     `json:"sender_id" db:"sender_id"`
	SenderName   *string   `json:"sender_name,omitempty"`
	SenderAvatar *string   `json:"sender_avatar,omitempty"`
	Content      *string   `json:"content,omitempty" db:"content"`
	ImageURL     *string   `json:"image_url,omitempty" db:"image_url"`
	MessageType  string    `json:"message_type" db:"message_type"`
	IsRead       bool      `json:"is_read" db:"is_read"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Preview returns the denormalized inbox preview text for the message.
func (m *Message) Preview() string {
	text := "[Image]"
	if m.Content != nil && *m.Content != "" {
		text = *m.Content
	}
	if len(text) > previewLength {
		text = text[:previewLength]
	}
	return text
}

type SendMessageRequest struct {
	Content  *string `json:"content,omitempty"`
	ImageURL *string `json:"image_url,omitempty"`
}

// Validate enforces that a message carries text, an image, or both.
func (r *SendMessageRequest) Validate() error {
	hasContent := r.Content != nil && *r.Content != ""
	hasImage := r.ImageURL != nil && *r.ImageURL != ""
	if !hasContent && !hasImage {
		return fmt.Errorf("message requires content or image_url")
	}
	if hasContent && len(*r.Content) > 4000 {
		return fmt.Errorf("content exceeds 4000 characters")
	}
	return nil
}
