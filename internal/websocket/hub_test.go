package websocket

import (
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestHub() *Hub {
	logger := slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
	h := NewHub(nil, nil, logger)
	go h.Run()
	return h
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func newTestClient(h *Hub, userID int64) *Client {
	return &Client{
		hub:    h,
		send:   make(chan []byte, 4),
		userID: userID,
		connID: uuid.New(),
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestHubRegisterUnregister(t *testing.T) {
	h := newTestHub()
	c := newTestClient(h, 7)

	h.register <- c
	waitFor(t, func() bool { return h.IsUserOnline(7) })

	h.unregister <- c
	waitFor(t, func() bool { return !h.IsUserOnline(7) })

	// The hub closes the send channel on unregister.
	select {
	case _, ok := <-c.send:
		if ok {
			t.Fatal("expected send channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel never closed")
	}
}

func TestHubMultipleConnectionsPerUser(t *testing.T) {
	h := newTestHub()
	c1 := newTestClient(h, 7)
	c2 := newTestClient(h, 7)

	h.register <- c1
	h.register <- c2
	waitFor(t, func() bool { return h.IsUserOnline(7) })

	h.unregister <- c1
	waitFor(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return len(h.clients[7]) == 1
	})

	if !h.IsUserOnline(7) {
		t.Fatal("user must stay online while one socket remains")
	}

	h.unregister <- c2
	waitFor(t, func() bool { return !h.IsUserOnline(7) })
}

func TestHubSendToUserDeliversToAllSockets(t *testing.T) {
	h := newTestHub()
	c1 := newTestClient(h, 7)
	c2 := newTestClient(h, 7)
	other := newTestClient(h, 8)

	h.register <- c1
	h.register <- c2
	h.register <- other
	waitFor(t, func() bool { return h.IsUserOnline(7) && h.IsUserOnline(8) })

	frame := []byte(`{"type":"read","conversation_id":1}`)
	h.SendToUser(7, frame)

	for _, c := range []*Client{c1, c2} {
		select {
		case got := <-c.send:
			if string(got) != string(frame) {
				t.Errorf("delivered frame = %s, want %s", got, frame)
			}
		case <-time.After(time.Second):
			t.Fatal("frame never delivered")
		}
	}

	select {
	case <-other.send:
		t.Fatal("frame delivered to the wrong user")
	default:
	}
}

func TestHubDropsFramesForSlowConsumer(t *testing.T) {
	h := newTestHub()
	c := newTestClient(h, 7)

	h.register <- c
	waitFor(t, func() bool { return h.IsUserOnline(7) })

	// Fill the buffer and keep sending; the hub must not block.
	frame := []byte(`{"type":"read","conversation_id":1}`)
	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(c.send)+10; i++ {
			h.SendToUser(7, frame)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("SendToUser blocked on a slow consumer")
	}
}

func TestHubOnlineUsers(t *testing.T) {
	h := newTestHub()
	h.register <- newTestClient(h, 3)
	h.register <- newTestClient(h, 9)
	waitFor(t, func() bool { return h.IsUserOnline(3) && h.IsUserOnline(9) })

	ids := h.OnlineUsers()
	if len(ids) != 2 {
		t.Fatalf("OnlineUsers() returned %d ids, want 2", len(ids))
	}
	seen := map[int64]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen[3] || !seen[9] {
		t.Errorf("OnlineUsers() = %v, want ids 3 and 9", ids)
	}
}

func TestHubIsUserOnlineUnknownUser(t *testing.T) {
	h := newTestHub()
	if h.IsUserOnline(12345) {
		t.Fatal("unknown user reported online")
	}
}
