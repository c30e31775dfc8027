package chatclient

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shakirjon803-cell/obmen/internal/protocol"
)

const (
	// Time allowed to write a frame to the server
	writeWait = 10 * time.Second

	// Maximum frame size accepted from the server
	maxMessageSize = 65536

	// Reconnect backoff: min(baseReconnectDelay << attempt, maxReconnectDelay),
	// giving up after maxReconnectAttempts until an explicit Connect.
	baseReconnectDelay   = time.Second
	maxReconnectDelay    = 30 * time.Second
	maxReconnectAttempts = 5
)

// ConnState is the transport connection state.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Transport owns the single websocket connection to the per-user messaging
// endpoint and recovers from unexpected drops with bounded exponential
// backoff. Events decoded from inbound frames are delivered, in arrival
// order, to the onEvent callback from one goroutine.
type Transport struct {
	endpoint string
	token    string
	userID   int64
	dialer   *websocket.Dialer
	logger   *slog.Logger

	onEvent func(protocol.Event)
	onError func(error)

	mu             sync.Mutex
	conn           *websocket.Conn
	state          ConnState
	attempts       int
	reconnectTimer *time.Timer
	closed         bool
}

// NewTransport builds a transport for one user session. wsBaseURL is the
// ws:// or wss:// origin; the user id becomes the endpoint path segment. The
// token itself never travels over the socket, it only gates Connect.
func NewTransport(wsBaseURL, token string, userID int64, logger *slog.Logger) *Transport {
	return &Transport{
		endpoint: fmt.Sprintf("%s/ws/%d", wsBaseURL, userID),
		token:    token,
		userID:   userID,
		dialer:   websocket.DefaultDialer,
		logger:   logger,
		state:    StateDisconnected,
		closed:   true,
	}
}

// OnEvent registers the inbound event handler. Must be set before Connect.
func (t *Transport) OnEvent(fn func(protocol.Event)) { t.onEvent = fn }

// OnError registers a handler for non-fatal transport errors.
func (t *Transport) OnError(fn func(error)) { t.onError = fn }

// State returns the current connection state.
func (t *Transport) State() ConnState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Connect opens the socket. It silently returns when the session has no
// credential or no user identity. Any previous connection is torn down
// first, so two live sockets can never coexist. A successful dial resets the
// reconnect attempt counter.
func (t *Transport) Connect() {
	t.mu.Lock()
	if t.token == "" || t.userID == 0 {
		t.mu.Unlock()
		return
	}
	t.stopReconnectLocked()
	t.closeConnLocked()
	t.closed = false
	t.state = StateConnecting
	t.mu.Unlock()

	conn, resp, err := t.dialer.Dial(t.endpoint, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		t.logger.Warn("chat transport dial failed", "endpoint", t.endpoint, "err", err)
		t.mu.Lock()
		t.state = StateDisconnected
		intentional := t.closed
		t.mu.Unlock()
		t.reportError(fmt.Errorf("connect: %w", err))
		if !intentional {
			t.scheduleReconnect()
		}
		return
	}

	t.mu.Lock()
	if t.closed {
		// Disconnect raced the dial; honor the teardown.
		t.mu.Unlock()
		conn.Close()
		return
	}
	conn.SetReadLimit(maxMessageSize)
	// A racing Connect may have landed its own socket while this dial was in
	// flight; at most one stays live.
	t.closeConnLocked()
	t.conn = conn
	t.state = StateConnected
	t.attempts = 0
	t.mu.Unlock()

	t.logger.Debug("chat transport connected", "endpoint", t.endpoint)
	go t.readLoop(conn)
}

// Disconnect cancels any pending reconnect and closes the connection.
// Idempotent; a close initiated here never triggers the backoff path.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.stopReconnectLocked()
	t.closeConnLocked()
	t.state = StateDisconnected
	t.attempts = 0
}

// Send writes one event to the socket. Events are dropped without error while
// the connection is not open: the signals routed here (typing, read receipts,
// message echoes) are worthless after a reconnect, so nothing is queued.
func (t *Transport) Send(ev protocol.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateConnected || t.conn == nil {
		return
	}

	data, err := protocol.Encode(ev)
	if err != nil {
		t.logger.Error("chat transport encode failed", "kind", ev.Kind(), "err", err)
		return
	}

	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.logger.Warn("chat transport write failed", "err", err)
	}
}

func (t *Transport) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			if t.conn == conn {
				t.conn = nil
				t.state = StateDisconnected
			}
			intentional := t.closed
			t.mu.Unlock()

			if intentional {
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				t.logger.Warn("chat transport closed unexpectedly", "err", err)
			}
			t.reportError(fmt.Errorf("connection lost: %w", err))
			t.scheduleReconnect()
			return
		}

		ev, err := protocol.Decode(data)
		if err != nil {
			// Malformed frames never crash the receive path.
			t.logger.Warn("discarding malformed frame", "err", err)
			continue
		}
		if t.onEvent != nil {
			t.onEvent(ev)
		}
	}
}

// scheduleReconnect arms the single reconnect timer. The attempt counter is
// only reset by a successful dial or an explicit Disconnect.
func (t *Transport) scheduleReconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.reconnectTimer != nil {
		return
	}
	if t.attempts >= maxReconnectAttempts {
		t.logger.Warn("chat transport giving up after max reconnect attempts",
			"attempts", t.attempts)
		return
	}

	delay := backoffDelay(t.attempts)
	t.attempts++
	t.logger.Debug("chat transport reconnect scheduled",
		"attempt", t.attempts, "delay", delay)
	t.reconnectTimer = time.AfterFunc(delay, func() {
		t.mu.Lock()
		t.reconnectTimer = nil
		closed := t.closed
		t.mu.Unlock()
		if !closed {
			t.Connect()
		}
	})
}

// backoffDelay returns min(baseReconnectDelay * 2^attempt, maxReconnectDelay).
func backoffDelay(attempt int) time.Duration {
	delay := baseReconnectDelay << uint(attempt)
	if delay > maxReconnectDelay || delay <= 0 {
		delay = maxReconnectDelay
	}
	return delay
}

func (t *Transport) reportError(err error) {
	if t.onError != nil {
		t.onError(err)
	}
}

func (t *Transport) stopReconnectLocked() {
	if t.reconnectTimer != nil {
		t.reconnectTimer.Stop()
		t.reconnectTimer = nil
	}
}

func (t *Transport) closeConnLocked() {
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
}
