// Package hub tracks live connections and the broadcast groups they belong
// to. It is pure in-memory bookkeeping: admission checks happen in the relay
// service before a connection ever reaches a room group.
package hub

import (
	"sync"

	"github.com/google/uuid"
)

// Conn represents one live client connection. A user holds one Conn per
// tab/device; the hub indexes them by user so "every connection of user N"
// is a direct lookup.
type Conn struct {
	ID     string
	UserID int64
	Role   string
	send   chan []byte
}

// NewConn creates a connection handle for an authenticated user.
func NewConn(userID int64, role string, buffer int) *Conn {
	return &Conn{
		ID:     uuid.NewString(),
		UserID: userID,
		Role:   role,
		send:   make(chan []byte, buffer),
	}
}

// Outgoing exposes the connection's send queue to the transport write pump.
// The channel is closed when the connection is unregistered.
func (c *Conn) Outgoing() <-chan []byte {
	return c.send
}

// Hub maintains the set of active connections, the per-user index, and the
// per-room broadcast groups.
type Hub struct {
	conns map[string]*Conn
	users map[int64]map[string]*Conn
	rooms map[int64]map[string]*Conn
	mu    sync.RWMutex
}

// New creates a new hub
func New() *Hub {
	return &Hub{
		conns: make(map[string]*Conn),
		users: make(map[int64]map[string]*Conn),
		rooms: make(map[int64]map[string]*Conn),
	}
}

// Register adds a connection to the hub. A user id is present in the index
// iff it has at least one live connection.
func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.conns[c.ID] = c
	set := h.users[c.UserID]
	if set == nil {
		set = make(map[string]*Conn)
		h.users[c.UserID] = set
	}
	set[c.ID] = c
}

// Unregister removes a connection from the hub and from every room group,
// closes its send queue, and returns how many connections the owning user
// still has. Unregistering twice is harmless.
func (h *Hub) Unregister(c *Conn) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(c)
	return len(h.users[c.UserID])
}

// removeLocked deletes a connection from every index and closes its send
// queue. Removing an unknown connection is a no-op.
func (h *Hub) removeLocked(c *Conn) {
	if _, ok := h.conns[c.ID]; !ok {
		return
	}
	delete(h.conns, c.ID)

	if set, ok := h.users[c.UserID]; ok {
		delete(set, c.ID)
		if len(set) == 0 {
			delete(h.users, c.UserID)
		}
	}

	for roomID, group := range h.rooms {
		delete(group, c.ID)
		if len(group) == 0 {
			delete(h.rooms, roomID)
		}
	}

	close(c.send)
}

// Size returns the total number of live connections.
func (h *Hub) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// ConnectionCount returns the number of live connections for a user.
func (h *Hub) ConnectionCount(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

// ConnectionsOf returns the live connections of a user.
func (h *Hub) ConnectionsOf(userID int64) []*Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*Conn, 0, len(h.users[userID]))
	for _, c := range h.users[userID] {
		out = append(out, c)
	}
	return out
}

// JoinRoom admits a connection to a room's broadcast group. Joining an
// already-joined room is a no-op; the group disappears when its last
// connection unregisters.
func (h *Hub) JoinRoom(roomID int64, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c.ID]; !ok {
		return
	}
	group := h.rooms[roomID]
	if group == nil {
		group = make(map[string]*Conn)
		h.rooms[roomID] = group
	}
	group[c.ID] = c
}

// InRoom reports whether a connection has been admitted to a room group.
func (h *Hub) InRoom(roomID int64, c *Conn) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	group, ok := h.rooms[roomID]
	if !ok {
		return false
	}
	_, ok = group[c.ID]
	return ok
}

// Send queues data on a single connection. A connection that cannot keep up
// is dropped rather than silently missing the frame.
func (h *Hub) Send(c *Conn, data []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c.ID]; !ok {
		return false
	}
	return h.trySendLocked(c, data)
}

// BroadcastRoom sends data to every connection admitted to a room group and
// returns the number of deliveries.
func (h *Hub) BroadcastRoom(roomID int64, data []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for _, c := range h.rooms[roomID] {
		if h.trySendLocked(c, data) {
			delivered++
		}
	}
	return delivered
}

// SendToUser sends data to every live connection of a user and returns the
// number of deliveries. Zero deliveries means the user is unreachable, which
// is the caller's result, not an error.
func (h *Hub) SendToUser(userID int64, data []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for _, c := range h.users[userID] {
		if h.trySendLocked(c, data) {
			delivered++
		}
	}
	return delivered
}

// BroadcastAll sends data to every live connection.
func (h *Hub) BroadcastAll(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.conns {
		h.trySendLocked(c, data)
	}
}

// Close unregisters every connection, closing their send queues.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, c := range h.conns {
		delete(h.conns, id)
		close(c.send)
	}
	h.users = make(map[int64]map[string]*Conn)
	h.rooms = make(map[int64]map[string]*Conn)
}

// trySendLocked queues data on a connection. A connection whose queue is
// full is removed from the hub and its queue closed: the transport tears it
// down and the client reconnects with a fresh snapshot, instead of staying
// registered while silently missing frames. Must be called with the write
// lock held.
func (h *Hub) trySendLocked(c *Conn, data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		h.removeLocked(c)
		return false
	}
}
