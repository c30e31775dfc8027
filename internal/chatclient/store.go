package chatclient

import (
	"sort"

	"github.com/shakirjon803-cell/obmen/internal/models"
)

// Store is the single source of truth for the conversation list and the
// currently open conversation. It reconciles three input sources: the initial
// REST fetch, REST mutations, and inbound socket events. Methods are not
// goroutine-safe; the owning Session serializes every mutation.
type Store struct {
	conversations []models.ConversationSummary
	unreadTotal   int
	current       *models.ConversationDetail
}

func NewStore() *Store {
	return &Store{}
}

// SetConversations atomically replaces the list and the unread total.
func (s *Store) SetConversations(list []models.ConversationSummary, unreadTotal int) {
	s.conversations = list
	s.unreadTotal = unreadTotal
	s.sortByActivity()
}

// Conversations returns the list, most recent activity first.
func (s *Store) Conversations() []models.ConversationSummary {
	out := make([]models.ConversationSummary, len(s.conversations))
	copy(out, s.conversations)
	return out
}

// UnreadTotal returns the session-wide unread count.
func (s *Store) UnreadTotal() int {
	return s.unreadTotal
}

// Current returns a copy of the open conversation view, or nil when none is
// open. The messages slice is copied too, so a caller holding the result never
// observes later event folding mid-read.
func (s *Store) Current() *models.ConversationDetail {
	if s.current == nil {
		return nil
	}
	out := *s.current
	out.Messages = make([]models.Message, len(s.current.Messages))
	copy(out.Messages, s.current.Messages)
	return &out
}

// Open sets the open view and zeroes that conversation's unread count in the
// list. The server is told separately via the mark-as-read call; opening only
// adjusts the local entry.
func (s *Store) Open(detail *models.ConversationDetail) {
	s.current = detail
	if i := s.indexOf(detail.ID); i >= 0 {
		s.conversations[i].UnreadCount = 0
	}
}

// Close clears the open view. The list is untouched; the durable message
// history lives server-side and is refetched on the next open.
func (s *Store) Close() {
	s.current = nil
}

// ApplyMessage reconciles one inbound message for a conversation. When that
// conversation is open the message is appended (deduplicated by id, since the
// sender's own REST-confirmed message may come back as a socket echo);
// otherwise its unread counters grow by one. The list entry's preview and
// timestamp are refreshed and the list re-sorted.
func (s *Store) ApplyMessage(conversationID int64, msg models.Message) {
	open := s.current != nil && s.current.ID == conversationID

	if open {
		if !containsMessage(s.current.Messages, msg.ID) {
			s.current.Messages = append(s.current.Messages, msg)
		}
	}

	i := s.indexOf(conversationID)
	if i < 0 {
		// Unknown conversation: the next full refresh picks it up. Counting
		// it now would desync the total from the sum of visible entries.
		return
	}

	preview := msg.Preview()
	s.conversations[i].LastMessage = &preview
	s.conversations[i].LastMessageAt = msg.CreatedAt
	if !open {
		s.conversations[i].UnreadCount++
		s.unreadTotal++
	}
	s.sortByActivity()
}

// AppendOwn appends the canonical server-confirmed copy of a message the
// session itself sent. Unread counters are untouched.
func (s *Store) AppendOwn(conversationID int64, msg models.Message) {
	if s.current != nil && s.current.ID == conversationID {
		if !containsMessage(s.current.Messages, msg.ID) {
			s.current.Messages = append(s.current.Messages, msg)
		}
	}
	if i := s.indexOf(conversationID); i >= 0 {
		preview := msg.Preview()
		s.conversations[i].LastMessage = &preview
		s.conversations[i].LastMessageAt = msg.CreatedAt
		s.sortByActivity()
	}
}

// MarkRead zeroes the conversation's unread count, subtracts the prior count
// from the session total, and flags every held message as read.
func (s *Store) MarkRead(conversationID int64) {
	if i := s.indexOf(conversationID); i >= 0 {
		s.unreadTotal -= s.conversations[i].UnreadCount
		if s.unreadTotal < 0 {
			s.unreadTotal = 0
		}
		s.conversations[i].UnreadCount = 0
	}
	if s.current != nil && s.current.ID == conversationID {
		for j := range s.current.Messages {
			s.current.Messages[j].IsRead = true
		}
	}
}

// ApplyRead handles the counterpart's read receipt: every message held in the
// open view is flagged read.
func (s *Store) ApplyRead(conversationID int64) {
	if s.current == nil || s.current.ID != conversationID {
		return
	}
	for i := range s.current.Messages {
		s.current.Messages[i].IsRead = true
	}
}

// ApplyOnline updates the presence flag on every list entry whose other party
// is the given user, and on the open view when it matches.
func (s *Store) ApplyOnline(userID int64, isOnline bool) {
	for i := range s.conversations {
		if s.conversations[i].OtherUser.ID == userID {
			s.conversations[i].OtherUser.IsOnline = isOnline
		}
	}
	if s.current != nil && s.current.OtherUser.ID == userID {
		s.current.OtherUser.IsOnline = isOnline
	}
}

// SetBlocked flags a conversation as blocked in the list and the open view.
func (s *Store) SetBlocked(conversationID int64) {
	if i := s.indexOf(conversationID); i >= 0 {
		s.conversations[i].IsBlocked = true
	}
	if s.current != nil && s.current.ID == conversationID {
		s.current.IsBlocked = true
	}
}

func (s *Store) indexOf(conversationID int64) int {
	for i := range s.conversations {
		if s.conversations[i].ID == conversationID {
			return i
		}
	}
	return -1
}

func (s *Store) sortByActivity() {
	sort.SliceStable(s.conversations, func(i, j int) bool {
		return s.conversations[i].LastMessageAt.After(s.conversations[j].LastMessageAt)
	})
}

func containsMessage(messages []models.Message, id int64) bool {
	for i := range messages {
		if messages[i].ID == id {
			return true
		}
	}
	return false
}
