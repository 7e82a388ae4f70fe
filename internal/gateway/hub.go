package gateway

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Client is one connected websocket session. Outbound payloads are
// queued on send; a session whose queue is full simply misses the
// message. Delivery is best-effort: a gapped client re-fetches state on
// reconnect rather than replaying a stream.
type Client struct {
	// id distinguishes this connection from the same user's other
	// devices, which must still receive broadcasts.
	id       string
	Username string
	send     chan []byte

	closeOnce sync.Once
}

const sendBuffer = 32

func newClient(username string) *Client {
	return &Client{
		id:       uuid.NewString(),
		Username: username,
		send:     make(chan []byte, sendBuffer),
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// Hub tracks rooms of connected clients. Rooms are keyed by username
// (identity traffic) and by group id (group-scoped traffic); a client
// joins its identity room on connect and group rooms as it displays
// them.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]bool)}
}

// Join adds the client to a room.
func (h *Hub) Join(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][c] = true
}

// Leave removes the client from a room.
func (h *Hub) Leave(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms[room], c)
	if len(h.rooms[room]) == 0 {
		delete(h.rooms, room)
	}
}

// LeaveAll removes the client from every room. Called on disconnect.
func (h *Hub) LeaveAll(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Emit queues payload to every client in the room except the single
// connection identified by exceptConn (empty string excludes nobody).
// Only the originating connection is skipped: the same user's other
// devices hold replicas that still need the mutation.
func (h *Hub) Emit(room string, payload []byte, exceptConn string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.rooms[room] {
		if exceptConn != "" && c.id == exceptConn {
			continue
		}
		select {
		case c.send <- payload:
			delivered++
		default:
			// Queue full: drop rather than block the event loop.
			slog.Warn("dropping message for slow client", "room", room, "user", c.Username)
		}
	}
	return delivered
}

// RoomSize reports the number of clients in a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
