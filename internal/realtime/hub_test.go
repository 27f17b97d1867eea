package realtime

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockConn is an in-memory Conn for driving the hub without sockets.
type mockConn struct {
	mu       sync.Mutex
	written  [][]byte
	closed   bool
	incoming chan []byte
}

func newMockConn() *mockConn {
	return &mockConn{incoming: make(chan []byte, 16)}
}

func (m *mockConn) ReadMessage() (int, []byte, error) {
	data, ok := <-m.incoming
	if !ok {
		return 0, nil, websocket.ErrCloseSent
	}
	return websocket.TextMessage, data, nil
}

func (m *mockConn) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return websocket.ErrCloseSent
	}
	if messageType == websocket.TextMessage {
		m.written = append(m.written, data)
	}
	return nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockConn) writtenMessages() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.written))
	copy(out, m.written)
	return out
}

func (m *mockConn) SetReadLimit(int64) {}

func (m *mockConn) SetReadDeadline(time.Time) error { return nil }

func (m *mockConn) SetWriteDeadline(time.Time) error { return nil }

func (m *mockConn) SetPongHandler(func(string) error) {}

func newTestClient(hub *Hub, userID string) *Client {
	return NewClient(hub, userID, newMockConn(), zap.NewNop())
}

// receive pops the next queued envelope off the client's send queue.
func receive(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case payload := <-c.send:
		var env Envelope
		require.NoError(t, json.Unmarshal(payload, &env))
		return env
	case <-time.After(time.Second):
		t.Fatal("no message queued")
		return Envelope{}
	}
}

func TestAddConnectionAcksNewConnectionOnly(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	first := newTestClient(hub, "alice")
	hub.AddConnection(first)
	env := receive(t, first)
	assert.Equal(t, TypeConnected, env.Type)
	assert.Equal(t, "alice", env.UserID)

	second := newTestClient(hub, "alice")
	hub.AddConnection(second)
	env = receive(t, second)
	assert.Equal(t, TypeConnected, env.Type)
	assert.Empty(t, first.send, "existing connection must not receive the ack")
}

func TestSendToUserReachesAllDevices(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	phone := newTestClient(hub, "alice")
	laptop := newTestClient(hub, "alice")
	other := newTestClient(hub, "bob")
	for _, c := range []*Client{phone, laptop, other} {
		hub.AddConnection(c)
		receive(t, c) // drain the connected ack
	}

	hub.SendToUser("alice", NewNotificationRead(5))

	for _, c := range []*Client{phone, laptop} {
		env := receive(t, c)
		assert.Equal(t, TypeNotificationRead, env.Type)
		assert.Equal(t, int64(5), env.NotificationID)
	}
	assert.Empty(t, other.send)
}

func TestSendToUnknownUserIsNoop(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	assert.NotPanics(t, func() {
		hub.SendToUser("nobody", NewPong())
	})
}

func TestBroadcastReachesEveryUser(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	clients := []*Client{
		newTestClient(hub, "alice"),
		newTestClient(hub, "bob"),
		newTestClient(hub, "carol"),
	}
	for _, c := range clients {
		hub.AddConnection(c)
		receive(t, c)
	}

	hub.Broadcast(NewEventDeleted(9, "venue closed"))

	for _, c := range clients {
		env := receive(t, c)
		assert.Equal(t, TypeEventDeleted, env.Type)
		assert.Equal(t, int64(9), env.EventID)
		assert.Equal(t, "venue closed", env.Reason)
	}
}

func TestRemoveConnectionIsIdempotent(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	c := newTestClient(hub, "alice")
	hub.AddConnection(c)
	receive(t, c)

	hub.RemoveConnection(c)
	assert.NotPanics(t, func() { hub.RemoveConnection(c) })
	assert.Zero(t, hub.GetUserConnectionCount("alice"))

	// Removing a connection that was never registered is a no-op too.
	assert.NotPanics(t, func() { hub.RemoveConnection(newTestClient(hub, "ghost")) })
}

func TestRemovedConnectionNeverReceivesBroadcast(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	gone := newTestClient(hub, "alice")
	kept := newTestClient(hub, "bob")
	hub.AddConnection(gone)
	hub.AddConnection(kept)
	receive(t, gone)
	receive(t, kept)

	hub.RemoveConnection(gone)
	hub.Broadcast(NewEventCreated(1, nil))

	env := receive(t, kept)
	assert.Equal(t, TypeEventCreated, env.Type)
	assert.Empty(t, gone.send)
	assert.Equal(t, []string{"bob"}, hub.GetOnlineUsers())
}

func TestDeadConnectionIsReapedOnSend(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	dead := newTestClient(hub, "alice")
	alive := newTestClient(hub, "alice")
	hub.AddConnection(dead)
	hub.AddConnection(alive)
	receive(t, dead)
	receive(t, alive)

	dead.close() // socket died; the hub has not noticed yet
	require.Equal(t, 2, hub.GetUserConnectionCount("alice"))

	hub.SendToUser("alice", NewPong())

	assert.Equal(t, 1, hub.GetUserConnectionCount("alice"))
	env := receive(t, alive)
	assert.Equal(t, TypePong, env.Type)
}

func TestConnectionCounts(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	a1 := newTestClient(hub, "alice")
	a2 := newTestClient(hub, "alice")
	b1 := newTestClient(hub, "bob")
	for _, c := range []*Client{a1, a2, b1} {
		hub.AddConnection(c)
	}

	assert.Equal(t, 2, hub.GetUserConnectionCount("alice"))
	assert.Equal(t, 1, hub.GetUserConnectionCount("bob"))
	assert.Equal(t, 0, hub.GetUserConnectionCount("carol"))
	assert.Equal(t, 3, hub.GetTotalConnectionCount())
	assert.ElementsMatch(t, []string{"alice", "bob"}, hub.GetOnlineUsers())

	hub.RemoveConnection(a1)
	hub.RemoveConnection(a2)
	assert.Equal(t, 1, hub.GetTotalConnectionCount())
	assert.Equal(t, []string{"bob"}, hub.GetOnlineUsers())
}

func TestConcurrentConnectDisconnect(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	const workers = 32

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c := newTestClient(hub, "alice")
				hub.AddConnection(c)
				hub.SendToUser("alice", NewPong())
				hub.RemoveConnection(c)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, hub.GetUserConnectionCount("alice"))
	assert.Zero(t, hub.GetTotalConnectionCount())
}

func TestWritePumpSerializesWrites(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	conn := newMockConn()
	c := NewClient(hub, "alice", conn, zap.NewNop())
	hub.AddConnection(c)
	go c.writePump()

	for i := int64(1); i <= 5; i++ {
		hub.SendToUser("alice", NewNotificationRead(i))
	}

	require.Eventually(t, func() bool {
		return len(conn.writtenMessages()) >= 6 // connected ack + 5 sends
	}, time.Second, 5*time.Millisecond)

	msgs := conn.writtenMessages()
	var env Envelope
	require.NoError(t, json.Unmarshal(msgs[0], &env))
	assert.Equal(t, TypeConnected, env.Type)
	for i, raw := range msgs[1:6] {
		require.NoError(t, json.Unmarshal(raw, &env))
		assert.Equal(t, TypeNotificationRead, env.Type)
		assert.Equal(t, int64(i+1), env.NotificationID, "writes must preserve enqueue order")
	}
	c.close()
}

func TestReadPumpAnswersPing(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	conn := newMockConn()
	c := NewClient(hub, "alice", conn, zap.NewNop())
	hub.AddConnection(c)
	receive(t, c)

	done := make(chan struct{})
	go func() {
		c.readPump()
		close(done)
	}()

	conn.incoming <- []byte("ping")
	env := receive(t, c)
	assert.Equal(t, TypePong, env.Type)
	assert.False(t, env.Timestamp.IsZero())

	close(conn.incoming) // peer disconnect
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("read pump did not exit on disconnect")
	}
	assert.Zero(t, hub.GetUserConnectionCount("alice"))
}
