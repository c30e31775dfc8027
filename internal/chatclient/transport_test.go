package chatclient

import (
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shakirjon803-cell/obmen/internal/protocol"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// wsTestServer upgrades every request and hands the connection to the test.
type wsTestServer struct {
	*httptest.Server

	mu    sync.Mutex
	conns []*websocket.Conn
}

func newWSTestServer(t *testing.T) *wsTestServer {
	t.Helper()

	s := &wsTestServer{}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *wsTestServer) wsURL() string {
	return strings.Replace(s.URL, "http", "ws", 1)
}

func (s *wsTestServer) waitForConns(t *testing.T, n int) []*websocket.Conn {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		if len(s.conns) >= n {
			conns := append([]*websocket.Conn(nil), s.conns...)
			s.mu.Unlock()
			return conns
		}
		s.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server never saw %d connections", n)
	return nil
}

func TestBackoffDelay(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, backoffDelay(c.attempt), "attempt %d", c.attempt)
	}
}

func TestConnectWithoutCredentialIsNoop(t *testing.T) {
	noToken := NewTransport("ws://localhost:1", "", 7, testLogger())
	noToken.Connect()
	assert.Equal(t, StateDisconnected, noToken.State())

	noUser := NewTransport("ws://localhost:1", "token", 0, testLogger())
	noUser.Connect()
	assert.Equal(t, StateDisconnected, noUser.State())
}

func TestSendWhileDisconnectedDropsSilently(t *testing.T) {
	srv := newWSTestServer(t)
	tr := NewTransport(srv.wsURL(), "token", 7, testLogger())

	// Dropped, not queued: nothing arrives after a later Connect.
	tr.Send(protocol.TypingEvent{ConversationID: 1, UserID: 7})

	tr.Connect()
	defer tr.Disconnect()
	require.Equal(t, StateConnected, tr.State())

	conn := srv.waitForConns(t, 1)[0]
	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "pre-connect send must not be replayed")
}

func TestSendWritesFrame(t *testing.T) {
	srv := newWSTestServer(t)
	tr := NewTransport(srv.wsURL(), "token", 7, testLogger())
	tr.Connect()
	defer tr.Disconnect()

	tr.Send(protocol.TypingEvent{ConversationID: 3, UserID: 7})

	conn := srv.waitForConns(t, 1)[0]
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	ev, err := protocol.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, protocol.TypingEvent{ConversationID: 3, UserID: 7}, ev)
}

func TestReconnectReplacesConnection(t *testing.T) {
	srv := newWSTestServer(t)
	tr := NewTransport(srv.wsURL(), "token", 7, testLogger())

	tr.Connect()
	require.Equal(t, StateConnected, tr.State())

	tr.Connect()
	defer tr.Disconnect()
	require.Equal(t, StateConnected, tr.State())

	conns := srv.waitForConns(t, 2)
	require.Len(t, conns, 2)

	// The first socket was torn down by the second Connect.
	conns[0].SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := conns[0].ReadMessage()
	assert.Error(t, err)

	// The second one carries traffic.
	tr.Send(protocol.ReadEvent{ConversationID: 1})
	conns[1].SetReadDeadline(time.Now().Add(time.Second))
	_, _, err = conns[1].ReadMessage()
	assert.NoError(t, err)
}

func TestConnectClosesSocketLandedMidDial(t *testing.T) {
	srv := newWSTestServer(t)
	tr := NewTransport(srv.wsURL(), "token", 7, testLogger())

	// Reproduce two Connect calls racing: a second dial completes and installs
	// its socket while the first dial is still in flight.
	var stray *websocket.Conn
	tr.dialer = &websocket.Dialer{
		NetDial: func(network, addr string) (net.Conn, error) {
			c, resp, err := websocket.DefaultDialer.Dial(srv.wsURL(), nil)
			if err != nil {
				return nil, err
			}
			resp.Body.Close()
			tr.mu.Lock()
			tr.conn = c
			tr.mu.Unlock()
			stray = c
			return net.Dial(network, addr)
		},
	}

	tr.Connect()
	defer tr.Disconnect()
	require.Equal(t, StateConnected, tr.State())
	require.NotNil(t, stray)

	// The socket that slipped in during the dial must have been closed.
	stray.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := stray.ReadMessage()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

func TestDisconnectIsIdempotent(t *testing.T) {
	srv := newWSTestServer(t)
	tr := NewTransport(srv.wsURL(), "token", 7, testLogger())

	tr.Connect()
	require.Equal(t, StateConnected, tr.State())

	tr.Disconnect()
	tr.Disconnect()
	assert.Equal(t, StateDisconnected, tr.State())
}

func TestMalformedFrameIsDiscarded(t *testing.T) {
	srv := newWSTestServer(t)
	tr := NewTransport(srv.wsURL(), "token", 7, testLogger())

	events := make(chan protocol.Event, 4)
	tr.OnEvent(func(ev protocol.Event) { events <- ev })

	tr.Connect()
	defer tr.Disconnect()
	require.Equal(t, StateConnected, tr.State())

	conn := srv.waitForConns(t, 1)[0]
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"presence.update"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"read","conversation_id":5}`)))

	select {
	case ev := <-events:
		assert.Equal(t, protocol.ReadEvent{ConversationID: 5}, ev)
	case <-time.After(2 * time.Second):
		t.Fatal("valid frame after a malformed one never arrived")
	}
	assert.Equal(t, StateConnected, tr.State())
}

func TestServerCloseTriggersReconnect(t *testing.T) {
	srv := newWSTestServer(t)
	tr := NewTransport(srv.wsURL(), "token", 7, testLogger())
	tr.Connect()
	defer tr.Disconnect()
	require.Equal(t, StateConnected, tr.State())

	conn := srv.waitForConns(t, 1)[0]
	conn.Close()

	// First retry fires after one second; allow some slack.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		srv.mu.Lock()
		reconnected := len(srv.conns) >= 2
		srv.mu.Unlock()
		if reconnected && tr.State() == StateConnected {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatal("transport never reconnected after server-side close")
}

func TestDisconnectCancelsPendingReconnect(t *testing.T) {
	srv := newWSTestServer(t)
	tr := NewTransport(srv.wsURL(), "token", 7, testLogger())
	tr.Connect()
	require.Equal(t, StateConnected, tr.State())

	conn := srv.waitForConns(t, 1)[0]
	conn.Close()

	// Give the read loop a moment to observe the drop and arm the timer.
	time.Sleep(100 * time.Millisecond)
	tr.Disconnect()

	time.Sleep(1200 * time.Millisecond)
	srv.mu.Lock()
	total := len(srv.conns)
	srv.mu.Unlock()
	assert.Equal(t, 1, total, "reconnect fired after an explicit Disconnect")
	assert.Equal(t, StateDisconnected, tr.State())
}
