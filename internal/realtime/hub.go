package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Bridge fans messages out across server instances. A nil Bridge keeps the
// hub local-only (single instance, tests).
type Bridge interface {
	// PublishToUser publishes a serialized envelope on the user's channel.
	PublishToUser(userID string, payload []byte) error
	// PublishBroadcast publishes a serialized envelope on the broadcast channel.
	PublishBroadcast(payload []byte) error
	// SubscribeUser subscribes to the user's channel and invokes handler for
	// each incoming payload. Returns a cancel function.
	SubscribeUser(userID string, handler func(payload []byte)) (cancel func(), err error)
	// SubscribeBroadcast subscribes to the broadcast channel.
	SubscribeBroadcast(handler func(payload []byte)) (cancel func(), err error)
}

// connSet holds one user's live connections. Each set carries its own lock
// so traffic for one user never contends with another's.
type connSet struct {
	mu        sync.Mutex
	conns     map[string]*Client // by client ID
	closed    bool               // set when pruned from the hub; a racing add must retry
	cancelSub func()             // bridge subscription for this user, if any
}

// Hub tracks live client connections keyed by user ID and performs
// best-effort message delivery to them. A user may hold any number of
// concurrent connections (multi-device); delivery to an offline user is a
// no-op, with no queuing or redelivery.
type Hub struct {
	users  sync.Map // userID -> *connSet
	logger *zap.Logger
	bridge Bridge

	cancelBroadcastSub func()
}

// NewHub creates a hub. If bridge is non-nil the hub subscribes to the
// cross-instance broadcast channel and routes sends through the bridge.
func NewHub(logger *zap.Logger, bridge Bridge) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{logger: logger, bridge: bridge}
	if bridge != nil {
		cancel, err := bridge.SubscribeBroadcast(h.deliverBroadcast)
		if err != nil {
			logger.Warn("broadcast subscription failed, hub is local-only", zap.Error(err))
			h.bridge = nil
		} else {
			h.cancelBroadcastSub = cancel
		}
	}
	return h
}

// Close cancels the hub's bridge subscriptions.
func (h *Hub) Close() {
	if h.cancelBroadcastSub != nil {
		h.cancelBroadcastSub()
	}
	h.users.Range(func(_, v interface{}) bool {
		set := v.(*connSet)
		set.mu.Lock()
		if set.cancelSub != nil {
			set.cancelSub()
			set.cancelSub = nil
		}
		set.mu.Unlock()
		return true
	})
}

// AddConnection registers c under its user's connection set and sends the
// "connected" acknowledgement to that connection only. The user's bridge
// channel is subscribed when their first connection arrives.
func (h *Hub) AddConnection(c *Client) {
	for {
		v, _ := h.users.LoadOrStore(c.UserID, &connSet{conns: make(map[string]*Client)})
		set := v.(*connSet)
		set.mu.Lock()
		if set.closed {
			// Lost a race with the last-connection prune; the entry is gone.
			set.mu.Unlock()
			continue
		}
		set.conns[c.ID] = c
		if len(set.conns) == 1 && h.bridge != nil && set.cancelSub == nil {
			userID := c.UserID
			cancel, err := h.bridge.SubscribeUser(userID, func(payload []byte) {
				h.deliverToUser(userID, payload)
			})
			if err != nil {
				h.logger.Warn("user subscription failed", zap.String("user_id", userID), zap.Error(err))
			} else {
				set.cancelSub = cancel
			}
		}
		count := len(set.conns)
		set.mu.Unlock()
		h.logger.Debug("connection added", zap.String("user_id", c.UserID), zap.Int("connections", count))
		break
	}

	if data, err := json.Marshal(NewConnected(c.UserID)); err == nil {
		c.trySend(data)
	}
}

// RemoveConnection unregisters c and closes it. Idempotent: calling it again,
// or with a connection that was never registered, is a no-op. The user's
// entry (and bridge subscription) is dropped when their last connection goes.
func (h *Hub) RemoveConnection(c *Client) {
	v, ok := h.users.Load(c.UserID)
	if ok {
		set := v.(*connSet)
		set.mu.Lock()
		if _, registered := set.conns[c.ID]; registered {
			delete(set.conns, c.ID)
			if len(set.conns) == 0 {
				set.closed = true
				if set.cancelSub != nil {
					set.cancelSub()
					set.cancelSub = nil
				}
				h.users.Delete(c.UserID)
			}
			h.logger.Debug("connection removed", zap.String("user_id", c.UserID), zap.Int("connections", len(set.conns)))
		}
		set.mu.Unlock()
	}
	c.close()
}

// SendToUser serializes message and delivers it to every connection the user
// currently holds, on every instance when a bridge is configured. Best
// effort: connections whose send fails are reaped, nothing is queued.
func (h *Hub) SendToUser(userID string, message Envelope) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Warn("marshal message", zap.String("type", message.Type), zap.Error(err))
		return
	}
	if h.bridge != nil {
		// The per-user subscription delivers locally, once, on every
		// instance that currently hosts a connection for this user.
		if err := h.bridge.PublishToUser(userID, data); err == nil {
			return
		}
		h.logger.Warn("bridge publish failed, delivering locally", zap.String("user_id", userID))
	}
	h.deliverToUser(userID, data)
}

// Broadcast delivers message to every connected user, concurrently.
func (h *Hub) Broadcast(message Envelope) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Warn("marshal message", zap.String("type", message.Type), zap.Error(err))
		return
	}
	if h.bridge != nil {
		if err := h.bridge.PublishBroadcast(data); err == nil {
			return
		}
		h.logger.Warn("bridge publish failed, delivering locally")
	}
	h.deliverBroadcast(data)
}

// deliverToUser writes payload to each of the user's local connections.
// The iteration runs over a snapshot so connects/disconnects during the
// sends cannot corrupt it; failed connections are removed afterwards.
func (h *Hub) deliverToUser(userID string, payload []byte) {
	v, ok := h.users.Load(userID)
	if !ok {
		return
	}
	set := v.(*connSet)

	set.mu.Lock()
	snapshot := make([]*Client, 0, len(set.conns))
	for _, c := range set.conns {
		snapshot = append(snapshot, c)
	}
	set.mu.Unlock()

	var dead []*Client
	for _, c := range snapshot {
		if !c.trySend(payload) {
			dead = append(dead, c)
		}
	}
	for _, c := range dead {
		h.logger.Debug("reaping dead connection", zap.String("user_id", c.UserID), zap.String("client_id", c.ID))
		h.RemoveConnection(c)
	}
}

func (h *Hub) deliverBroadcast(payload []byte) {
	userIDs := h.GetOnlineUsers()
	var wg sync.WaitGroup
	for _, userID := range userIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			h.deliverToUser(id, payload)
		}(userID)
	}
	wg.Wait()
}

// GetUserConnectionCount returns how many connections the user holds locally.
func (h *Hub) GetUserConnectionCount(userID string) int {
	v, ok := h.users.Load(userID)
	if !ok {
		return 0
	}
	set := v.(*connSet)
	set.mu.Lock()
	defer set.mu.Unlock()
	return len(set.conns)
}

// GetTotalConnectionCount returns the number of local connections across all users.
func (h *Hub) GetTotalConnectionCount() int {
	total := 0
	h.users.Range(func(_, v interface{}) bool {
		set := v.(*connSet)
		set.mu.Lock()
		total += len(set.conns)
		set.mu.Unlock()
		return true
	})
	return total
}

// GetOnlineUsers returns the IDs of users with at least one local connection.
func (h *Hub) GetOnlineUsers() []string {
	var users []string
	h.users.Range(func(k, _ interface{}) bool {
		users = append(users, k.(string))
		return true
	})
	return users
}
