package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shakirjon803-cell/obmen/internal/database"
	"github.com/shakirjon803-cell/obmen/internal/models"
)

type ConversationRepository struct {
	db *database.DB
}

func NewConversationRepository(db *database.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

const conversationColumns = `
	id, user1_id, user2_id, listing_id,
	last_message_text, last_message_at, last_sender_id,
	unread_count_user1, unread_count_user2,
	is_blocked, blocked_by, created_at
`

// GetOrCreate returns the conversation between two users, creating it when
// absent. Participants are stored in canonical order (user1_id < user2_id) so
// a pair can never own two threads.
func (r *ConversationRepository) GetOrCreate(userA, userB int64, listingID *int64) (*models.Conversation, error) {
	if userA > userB {
		userA, userB = userB, userA
	}

	conv, err := r.getByUsers(userA, userB)
	if err == nil {
		return conv, nil
	}
	if err != ErrNotFound {
		return nil, err
	}

	query := `
		INSERT INTO conversations (user1_id, user2_id, listing_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user1_id, user2_id) DO NOTHING
		RETURNING ` + conversationColumns

	conv = &models.Conversation{}
	err = r.db.QueryRow(query, userA, userB, listingID).Scan(scanTargets(conv)...)
	if err == sql.ErrNoRows {
		// Lost the race to a concurrent insert; fetch the winner.
		return r.getByUsers(userA, userB)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	return conv, nil
}

// GetByIDForUser returns the conversation when the user is a participant.
func (r *ConversationRepository) GetByIDForUser(id, userID int64) (*models.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE id = $1 AND (user1_id = $2 OR user2_id = $2)
	`

	conv := &models.Conversation{}
	err := r.db.QueryRow(query, id, userID).Scan(scanTargets(conv)...)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	return conv, nil
}

// GetByUserID returns all conversations for a user, most recent activity first.
func (r *ConversationRepository) GetByUserID(userID int64) ([]models.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE user1_id = $1 OR user2_id = $1
		ORDER BY last_message_at DESC
	`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversations: %w", err)
	}
	defer rows.Close()

	conversations := []models.Conversation{}
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(scanTargets(&conv)...); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}

	return conversations, rows.Err()
}

// TouchOnMessage refreshes the denormalized last-message columns and bumps
// the recipient's unread counter.
func (r *ConversationRepository) TouchOnMessage(conversationID, senderID int64, preview string, at time.Time) error {
	query := `
		UPDATE conversations
		SET last_message_text = $1,
		    last_message_at = $2,
		    last_sender_id = $3,
		    unread_count_user1 = unread_count_user1 + (CASE WHEN user2_id = $3 THEN 1 ELSE 0 END),
		    unread_count_user2 = unread_count_user2 + (CASE WHEN user1_id = $3 THEN 1 ELSE 0 END)
		WHERE id = $4
	`

	if _, err := r.db.Exec(query, preview, at, senderID, conversationID); err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	return nil
}

// ResetUnread zeroes the unread counter belonging to userID.
func (r *ConversationRepository) ResetUnread(conversationID, userID int64) error {
	query := `
		UPDATE conversations
		SET unread_count_user1 = (CASE WHEN user1_id = $2 THEN 0 ELSE unread_count_user1 END),
		    unread_count_user2 = (CASE WHEN user2_id = $2 THEN 0 ELSE unread_count_user2 END)
		WHERE id = $1
	`

	if _, err := r.db.Exec(query, conversationID, userID); err != nil {
		return fmt.Errorf("failed to reset unread count: %w", err)
	}
	return nil
}

// TotalUnread sums the user's unread counters across all conversations.
func (r *ConversationRepository) TotalUnread(userID int64) (int, error) {
	query := `
		SELECT COALESCE(SUM(
			CASE WHEN user1_id = $1 THEN unread_count_user1 ELSE unread_count_user2 END
		), 0)
		FROM conversations
		WHERE user1_id = $1 OR user2_id = $1
	`

	var total int
	if err := r.db.QueryRow(query, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to get total unread: %w", err)
	}
	return total, nil
}

// SetBlocked blocks or unblocks a conversation on behalf of userID.
func (r *ConversationRepository) SetBlocked(conversationID, userID int64, blocked bool) error {
	var blockedBy *int64
	if blocked {
		blockedBy = &userID
	}

	query := `
		UPDATE conversations
		SET is_blocked = $1, blocked_by = $2
		WHERE id = $3
	`

	result, err := r.db.Exec(query, blocked, blockedBy, conversationID)
	if err != nil {
		return fmt.Errorf("failed to block conversation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ConversationRepository) getByUsers(user1, user2 int64) (*models.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE user1_id = $1 AND user2_id = $2
	`

	conv := &models.Conversation{}
	err := r.db.QueryRow(query, user1, user2).Scan(scanTargets(conv)...)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	return conv, nil
}

func scanTargets(conv *models.Conversation) []any {
	return []any{
		&conv.ID,
		&conv.User1ID,
		&conv.User2ID,
		&conv.ListingID,
		&conv.LastMessageText,
		&conv.LastMessageAt,
		&conv.LastSenderID,
		&conv.UnreadCountUser1,
		&conv.UnreadCountUser2,
		&conv.IsBlocked,
		&conv.BlockedBy,
		&conv.CreatedAt,
	}
}
