package chatclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shakirjon803-cell/obmen/internal/models"
)

func ts(hour, minute int) time.Time {
	return time.Date(2024, 5, 1, hour, minute, 0, 0, time.UTC)
}

func summary(id int64, otherID int64, at time.Time, unread int) models.ConversationSummary {
	return models.ConversationSummary{
		ID:            id,
		OtherUser:     models.Participant{ID: otherID, Nickname: "user"},
		LastMessageAt: at,
		UnreadCount:   unread,
	}
}

func textMessage(id, senderID int64, text string, at time.Time) models.Message {
	return models.Message{
		ID:          id,
		SenderID:    senderID,
		Content:     &text,
		MessageType: models.MessageTypeText,
		CreatedAt:   at,
	}
}

func TestSetConversationsSorts(t *testing.T) {
	s := NewStore()
	s.SetConversations([]models.ConversationSummary{
		summary(1, 10, ts(9, 0), 0),
		summary(2, 20, ts(11, 0), 0),
		summary(3, 30, ts(10, 0), 0),
	}, 0)

	list := s.Conversations()
	require.Len(t, list, 3)
	assert.Equal(t, int64(2), list[0].ID)
	assert.Equal(t, int64(3), list[1].ID)
	assert.Equal(t, int64(1), list[2].ID)
}

func TestOpenZeroesUnreadInList(t *testing.T) {
	s := NewStore()
	s.SetConversations([]models.ConversationSummary{summary(1, 10, ts(10, 0), 12)}, 12)

	s.Open(&models.ConversationDetail{ID: 1, OtherUser: models.Participant{ID: 10}})

	assert.Equal(t, 0, s.Conversations()[0].UnreadCount)
	// Only the explicit mark-as-read call touches the session total.
	assert.Equal(t, 12, s.UnreadTotal())
}

func TestApplyMessageForOpenConversation(t *testing.T) {
	s := NewStore()
	s.SetConversations([]models.ConversationSummary{summary(1, 10, ts(10, 0), 0)}, 0)
	s.Open(&models.ConversationDetail{ID: 1, OtherUser: models.Participant{ID: 10}})

	s.ApplyMessage(1, textMessage(100, 10, "hello", ts(10, 5)))

	require.Len(t, s.Current().Messages, 1)
	assert.Equal(t, 0, s.UnreadTotal(), "open conversation never bumps the total")
	assert.Equal(t, 0, s.Conversations()[0].UnreadCount)
	require.NotNil(t, s.Conversations()[0].LastMessage)
	assert.Equal(t, "hello", *s.Conversations()[0].LastMessage)
	assert.Equal(t, ts(10, 5), s.Conversations()[0].LastMessageAt)
}

func TestApplyMessageForBackgroundConversation(t *testing.T) {
	// Scenario: A (10:00) and B (09:00); a message for B at 10:05 must
	// reorder to [B, A] and leave A's unread untouched.
	s := NewStore()
	a := summary(1, 10, ts(10, 0), 2)
	b := summary(2, 20, ts(9, 0), 0)
	s.SetConversations([]models.ConversationSummary{a, b}, 2)

	s.ApplyMessage(2, textMessage(101, 20, "still selling?", ts(10, 5)))

	list := s.Conversations()
	require.Len(t, list, 2)
	assert.Equal(t, int64(2), list[0].ID)
	assert.Equal(t, int64(1), list[1].ID)
	assert.Equal(t, 1, list[0].UnreadCount)
	assert.Equal(t, 2, list[1].UnreadCount)
	assert.Equal(t, 3, s.UnreadTotal(), "background message bumps the total by exactly one")
}

func TestListStaysSortedAcrossEvents(t *testing.T) {
	s := NewStore()
	s.SetConversations([]models.ConversationSummary{
		summary(1, 10, ts(8, 0), 0),
		summary(2, 20, ts(9, 0), 0),
		summary(3, 30, ts(10, 0), 0),
	}, 0)

	deliveries := []struct {
		conv int64
		at   time.Time
	}{
		{1, ts(10, 1)},
		{2, ts(10, 2)},
		{1, ts(10, 3)},
		{3, ts(10, 4)},
	}
	var msgID int64 = 200
	for _, d := range deliveries {
		s.ApplyMessage(d.conv, textMessage(msgID, 99, "x", d.at))
		msgID++

		list := s.Conversations()
		for i := 1; i < len(list); i++ {
			assert.False(t, list[i].LastMessageAt.After(list[i-1].LastMessageAt),
				"list out of order after event for conversation %d", d.conv)
		}
	}
}

func TestApplyMessageUnknownConversation(t *testing.T) {
	// A message for a conversation the list does not hold (created elsewhere
	// since the last refresh) must not grow the total past the visible sum.
	s := NewStore()
	s.SetConversations([]models.ConversationSummary{summary(1, 10, ts(10, 0), 2)}, 2)

	s.ApplyMessage(77, textMessage(500, 30, "new thread", ts(10, 5)))

	assert.Equal(t, 2, s.UnreadTotal())
	require.Len(t, s.Conversations(), 1)
	assert.Equal(t, 2, s.Conversations()[0].UnreadCount)
}

func TestCurrentReturnsDetachedCopy(t *testing.T) {
	s := NewStore()
	s.SetConversations([]models.ConversationSummary{summary(1, 10, ts(10, 0), 0)}, 0)
	s.Open(&models.ConversationDetail{
		ID:        1,
		OtherUser: models.Participant{ID: 10},
		Messages:  []models.Message{textMessage(1, 10, "first", ts(9, 59))},
	})

	held := s.Current()
	s.ApplyMessage(1, textMessage(2, 10, "second", ts(10, 5)))

	assert.Len(t, held.Messages, 1, "a held view must not grow under later events")
	assert.Len(t, s.Current().Messages, 2)

	// Nor do caller-side writes reach the store.
	held.Messages[0].IsRead = true
	assert.False(t, s.Current().Messages[0].IsRead)
}

func TestApplyMessageDeduplicatesByID(t *testing.T) {
	// A REST-confirmed send may come back as a socket echo with the same id.
	s := NewStore()
	s.SetConversations([]models.ConversationSummary{summary(1, 10, ts(10, 0), 0)}, 0)
	s.Open(&models.ConversationDetail{ID: 1, OtherUser: models.Participant{ID: 10}})

	msg := textMessage(300, 5, "echo me", ts(10, 5))
	s.AppendOwn(1, msg)
	s.ApplyMessage(1, msg)

	assert.Len(t, s.Current().Messages, 1)
}

func TestMarkRead(t *testing.T) {
	// markAsRead(5) with unread_count=3 and total=7 leaves 0 and 4.
	s := NewStore()
	s.SetConversations([]models.ConversationSummary{
		summary(5, 10, ts(10, 0), 3),
		summary(6, 20, ts(9, 0), 4),
	}, 7)
	s.Open(&models.ConversationDetail{
		ID:        5,
		OtherUser: models.Participant{ID: 10},
		Messages: []models.Message{
			textMessage(1, 10, "a", ts(9, 58)),
			textMessage(2, 10, "b", ts(9, 59)),
		},
	})

	s.MarkRead(5)

	assert.Equal(t, 0, s.Conversations()[0].UnreadCount)
	assert.Equal(t, 4, s.UnreadTotal())
	for _, m := range s.Current().Messages {
		assert.True(t, m.IsRead)
	}
}

func TestApplyReadMarksOpenMessages(t *testing.T) {
	s := NewStore()
	s.Open(&models.ConversationDetail{
		ID:        1,
		OtherUser: models.Participant{ID: 10},
		Messages: []models.Message{
			textMessage(1, 5, "sent", ts(10, 0)),
			textMessage(2, 5, "read me", ts(10, 1)),
		},
	})

	// Receipts for other conversations leave the open view alone.
	s.ApplyRead(99)
	for _, m := range s.Current().Messages {
		assert.False(t, m.IsRead)
	}

	s.ApplyRead(1)
	for _, m := range s.Current().Messages {
		assert.True(t, m.IsRead)
	}
}

func TestApplyOnline(t *testing.T) {
	s := NewStore()
	s.SetConversations([]models.ConversationSummary{
		summary(1, 10, ts(10, 0), 0),
		summary(2, 20, ts(9, 0), 0),
		summary(3, 10, ts(8, 0), 0),
	}, 0)
	s.Open(&models.ConversationDetail{ID: 1, OtherUser: models.Participant{ID: 10}})

	s.ApplyOnline(10, true)

	list := s.Conversations()
	assert.True(t, list[0].OtherUser.IsOnline)
	assert.False(t, list[1].OtherUser.IsOnline)
	assert.True(t, list[2].OtherUser.IsOnline)
	assert.True(t, s.Current().OtherUser.IsOnline)

	s.ApplyOnline(10, false)
	assert.False(t, s.Conversations()[0].OtherUser.IsOnline)
	assert.False(t, s.Current().OtherUser.IsOnline)
}

func TestCloseKeepsList(t *testing.T) {
	s := NewStore()
	s.SetConversations([]models.ConversationSummary{summary(1, 10, ts(10, 0), 1)}, 1)
	s.Open(&models.ConversationDetail{ID: 1, OtherUser: models.Participant{ID: 10}})

	s.Close()

	assert.Nil(t, s.Current())
	assert.Len(t, s.Conversations(), 1)
	assert.Equal(t, 1, s.UnreadTotal())
}
