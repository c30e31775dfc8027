package repository

import (
	"fmt"

	"github.com/shakirjon803-cell/obmen/internal/database"
	"github.com/shakirjon803-cell/obmen/internal/models"
)

type MessageRepository struct {
	db *database.DB
}

func NewMessageRepository(db *database.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts a message into a conversation.
func (r *MessageRepository) Create(conversationID int64, message *models.Message) error {
	if message.MessageType == "" {
		message.MessageType = models.MessageTypeText
	}

	query := `
		INSERT INTO messages (conversation_id, sender_id, content, image_url, message_type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, is_read, created_at
	`

	err := r.db.QueryRow(
		query,
		conversationID,
		message.SenderID,
		message.Content,
		message.ImageURL,
		message.MessageType,
	).Scan(&message.ID, &message.IsRead, &message.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

// GetByConversationID returns up to limit messages in chronological order,
// skipping soft-deleted ones. beforeID narrows to older history pages; pass 0
// for the newest page.
func (r *MessageRepository) GetByConversationID(conversationID int64, limit int, beforeID int64) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT m.id, m.sender_id, u.name, u.avatar_url,
		       m.content, m.image_url, m.message_type, m.is_read, m.created_at
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.conversation_id = $1
		  AND m.is_deleted = FALSE
		  AND ($2 = 0 OR m.id < $2)
		ORDER BY m.created_at DESC
		LIMIT $3
	`

	rows, err := r.db.Query(query, conversationID, beforeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var msg models.Message
		err := rows.Scan(
			&msg.ID,
			&msg.SenderID,
			&msg.SenderName,
			&msg.SenderAvatar,
			&msg.Content,
			&msg.ImageURL,
			&msg.MessageType,
			&msg.IsRead,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest page was fetched descending; hand it back in chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// MarkConversationRead flags every message sent by the counterpart as read.
func (r *MessageRepository) MarkConversationRead(conversationID, readerID int64) error {
	query := `
		UPDATE messages
		SET is_read = TRUE, read_at = NOW()
		WHERE conversation_id = $1
		  AND sender_id <> $2
		  AND is_read = FALSE
	`

	if _, err := r.db.Exec(query, conversationID, readerID); err != nil {
		return fmt.Errorf("failed to mark messages read: %w", err)
	}
	return nil
}
