package chatclient

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shakirjon803-cell/obmen/internal/models"
	"github.com/shakirjon803-cell/obmen/internal/protocol"
)

// SessionState tracks the overall session lifecycle. Errors are an orthogonal
// flag, not a state: a later successful operation clears the recorded error.
type SessionState int

const (
	SessionIdle SessionState = iota
	SessionLoading
	SessionReady
)

func (s SessionState) String() string {
	switch s {
	case SessionLoading:
		return "loading"
	case SessionReady:
		return "ready"
	default:
		return "idle"
	}
}

// Config carries everything a chat session needs. Sessions are explicitly
// constructed and passed by reference, so independent sessions (one per test,
// one per logged-in user) never collide.
type Config struct {
	BaseURL   string // REST origin, e.g. https://api.example.com
	WSBaseURL string // websocket origin, e.g. wss://api.example.com
	Token     string // bearer token established via the auth collaborator
	UserID    int64
	Logger    *slog.Logger
}

// Snapshot is the consistent view the UI renders from.
type Snapshot struct {
	State         SessionState
	ConnState     ConnState
	Err           string
	Conversations []models.ConversationSummary
	UnreadTotal   int
	Current       *models.ConversationDetail
}

// Session is the single entry point for the chat UI. It composes the
// conversation store and the websocket transport, performs REST calls for
// durable operations, and folds inbound socket events into the store.
type Session struct {
	api       *APIClient
	transport *Transport
	store     *Store
	logger    *slog.Logger
	userID    int64

	mu      sync.Mutex
	state   SessionState
	lastErr string
	loaded  bool

	onUpdate func()
	onTyping func(conversationID, userID int64)
}

func NewSession(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		api:       NewAPIClient(cfg.BaseURL, cfg.Token),
		transport: NewTransport(cfg.WSBaseURL, cfg.Token, cfg.UserID, logger),
		store:     NewStore(),
		logger:    logger,
		userID:    cfg.UserID,
		state:     SessionIdle,
	}
	s.transport.OnEvent(s.handleEvent)
	s.transport.OnError(s.handleTransportError)
	return s
}

// OnUpdate registers a callback invoked after every store mutation, so the UI
// can re-render from a fresh Snapshot.
func (s *Session) OnUpdate(fn func()) { s.onUpdate = fn }

// OnTyping registers a callback for inbound typing signals. Typing is
// ephemeral UI state and never enters the store.
func (s *Session) OnTyping(fn func(conversationID, userID int64)) { s.onTyping = fn }

// Connect opens the realtime transport.
func (s *Session) Connect() { s.transport.Connect() }

// Disconnect tears the transport down and cancels any pending reconnect.
func (s *Session) Disconnect() { s.transport.Disconnect() }

// Snapshot returns the state the UI renders from.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State:         s.state,
		ConnState:     s.transport.State(),
		Err:           s.lastErr,
		Conversations: s.store.Conversations(),
		UnreadTotal:   s.store.UnreadTotal(),
		Current:       s.store.Current(),
	}
}

// LoadConversations fetches the inbox list and the unread total, replacing
// both atomically. On failure prior state is untouched and the error is
// recorded.
func (s *Session) LoadConversations(ctx context.Context) error {
	s.setState(SessionLoading)

	list, err := s.api.Conversations(ctx)
	if err != nil {
		s.fail(err)
		return err
	}
	unread, err := s.api.UnreadCount(ctx)
	if err != nil {
		s.fail(err)
		return err
	}

	s.mu.Lock()
	s.store.SetConversations(list, unread)
	s.state = SessionReady
	s.loaded = true
	s.lastErr = ""
	s.mu.Unlock()
	s.notify()
	return nil
}

// OpenConversation fetches the full detail for one conversation and sets it
// as the open view, zeroing that conversation's unread count in the list. On
// failure the previously open view (or none) is kept.
func (s *Session) OpenConversation(ctx context.Context, id int64) error {
	s.setState(SessionLoading)

	detail, err := s.api.Conversation(ctx, id)
	if err != nil {
		s.fail(err)
		return err
	}

	s.mu.Lock()
	s.store.Open(detail)
	s.state = SessionReady
	s.lastErr = ""
	s.mu.Unlock()
	s.notify()
	return nil
}

// CloseConversation clears the open view.
func (s *Session) CloseConversation() {
	s.mu.Lock()
	s.store.Close()
	s.mu.Unlock()
	s.notify()
}

// SendMessage performs the durable REST write first and appends the returned
// canonical message only after success, so a failure needs no rollback. The
// transport echo afterwards is best-effort: it lets the counterpart see the
// message without waiting for a poll, and is dropped silently when offline.
func (s *Session) SendMessage(ctx context.Context, conversationID int64, content, imageURL *string) (*models.Message, error) {
	req := models.SendMessageRequest{Content: content, ImageURL: imageURL}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	msg, err := s.api.SendMessage(ctx, conversationID, req)
	if err != nil {
		s.recordError(err)
		return nil, err
	}

	s.mu.Lock()
	s.store.AppendOwn(conversationID, *msg)
	s.lastErr = ""
	s.mu.Unlock()

	s.transport.Send(protocol.MessageEvent{ConversationID: conversationID, Message: *msg})
	s.notify()
	return msg, nil
}

// SendTyping fires an ephemeral typing signal. Never persisted, never queued;
// a disconnected transport swallows it. Callers debounce.
func (s *Session) SendTyping(conversationID int64) {
	s.transport.Send(protocol.TypingEvent{ConversationID: conversationID, UserID: s.userID})
}

// MarkAsRead tells the server every message in the conversation is read, then
// zeroes the local counters (list entry and session total) and flags held
// messages. A read receipt goes out on the transport so the counterpart's UI
// updates live.
func (s *Session) MarkAsRead(ctx context.Context, conversationID int64) error {
	if err := s.api.MarkRead(ctx, conversationID); err != nil {
		s.recordError(err)
		return err
	}

	s.mu.Lock()
	s.store.MarkRead(conversationID)
	s.lastErr = ""
	s.mu.Unlock()

	s.transport.Send(protocol.ReadEvent{ConversationID: conversationID})
	s.notify()
	return nil
}

// StartConversation creates (or returns the existing) conversation with a
// recipient and refreshes the full list rather than splicing it locally.
// Returns the conversation id.
func (s *Session) StartConversation(ctx context.Context, recipientID int64, listingID *int64, initialMessage *string) (int64, error) {
	conv, err := s.api.StartConversation(ctx, models.StartConversationRequest{
		RecipientID:    recipientID,
		ListingID:      listingID,
		InitialMessage: initialMessage,
	})
	if err != nil {
		s.recordError(err)
		return 0, err
	}

	if err := s.LoadConversations(ctx); err != nil {
		return conv.ID, err
	}
	return conv.ID, nil
}

// BlockConversation blocks the thread server-side and mirrors the flag
// locally.
func (s *Session) BlockConversation(ctx context.Context, conversationID int64) error {
	if err := s.api.Block(ctx, conversationID); err != nil {
		s.recordError(err)
		return err
	}

	s.mu.Lock()
	s.store.SetBlocked(conversationID)
	s.lastErr = ""
	s.mu.Unlock()
	s.notify()
	return nil
}

// handleEvent folds one inbound socket event into the store. Events arrive
// from a single transport goroutine, so they are applied strictly in
// delivery order.
func (s *Session) handleEvent(ev protocol.Event) {
	switch e := ev.(type) {
	case protocol.MessageEvent:
		s.mu.Lock()
		s.store.ApplyMessage(e.ConversationID, e.Message)
		s.mu.Unlock()
		s.notify()

	case protocol.ReadEvent:
		s.mu.Lock()
		s.store.ApplyRead(e.ConversationID)
		s.mu.Unlock()
		s.notify()

	case protocol.OnlineEvent:
		s.mu.Lock()
		s.store.ApplyOnline(e.UserID, e.IsOnline)
		s.mu.Unlock()
		s.notify()

	case protocol.TypingEvent:
		if s.onTyping != nil {
			s.onTyping(e.ConversationID, e.UserID)
		}

	case protocol.ErrorEvent:
		s.recordError(fmt.Errorf("server: %s", e.Detail))
	}
}

// handleTransportError records transport failures as a non-fatal advisory;
// reconnection is the transport's job.
func (s *Session) handleTransportError(err error) {
	s.recordError(err)
}

func (s *Session) setState(state SessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.notify()
}

// fail records the error and drops back to the last stable state.
func (s *Session) fail(err error) {
	s.mu.Lock()
	s.lastErr = err.Error()
	if s.loaded {
		s.state = SessionReady
	} else {
		s.state = SessionIdle
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Session) recordError(err error) {
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
	s.notify()
}

func (s *Session) notify() {
	if s.onUpdate != nil {
		s.onUpdate()
	}
}
