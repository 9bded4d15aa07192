package broadcast

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"
)

// sendBuffer bounds the per-client outbound queue. When a slow reader fills
// it, the oldest frame is dropped: delivery is best-effort at-most-once and
// a broadcast must never block on one subscriber.
const sendBuffer = 64

// Conn is the transport write surface a client needs.
// Satisfied by *websocket.Conn.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one registered connection's outbound side.
type Client struct {
	ID   string
	conn Conn

	mu     sync.Mutex // guards send against close
	send   chan []byte
	closed bool
}

func newClient(id string, conn Conn) *Client {
	return &Client{
		ID:   id,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
}

// writePump drains the send queue onto the transport. It exits when the
// queue is closed or the transport write fails.
func (c *Client) writePump() {
	defer c.conn.Close()

	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("[broadcast] write to client %s: %v", c.ID, err)
			return
		}
	}
}

// enqueue queues a frame without ever blocking the broadcaster. The queue
// send happens under the client lock, so a concurrent close can never turn
// it into a send on a closed channel. Returns false once the client is
// closed.
func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- data:
	default:
		// Full queue: drop the oldest frame to make room.
		select {
		case <-c.send:
		default:
		}
		select {
		case c.send <- data:
		default:
		}
	}
	return true
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Hub tracks registered clients and their room subscriptions and fans
// frames out to every subscriber of a room.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client         // connID -> client
	rooms   map[string]map[string]bool // roomID -> set of connIDs
	byConn  map[string]string          // connID -> subscribed roomID
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]bool),
		byConn:  make(map[string]string),
	}
}

// Register adds a connection and starts its write pump.
func (h *Hub) Register(connID string, conn Conn) {
	client := newClient(connID, conn)

	h.mu.Lock()
	h.clients[connID] = client
	h.mu.Unlock()

	go client.writePump()
}

// Unregister drops a connection and any room subscription it held.
// Unregistering an unknown id is a no-op.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	client, ok := h.clients[connID]
	if ok {
		delete(h.clients, connID)
		h.dropSubscription(connID)
	}
	h.mu.Unlock()

	if ok {
		client.close()
	}
}

// Subscribe switches a client's subscription to roomID, leaving any previous
// room first so a re-join never accumulates subscriptions.
func (h *Hub) Subscribe(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[connID]; !ok {
		return
	}

	h.dropSubscription(connID)

	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]bool)
	}
	h.rooms[roomID][connID] = true
	h.byConn[connID] = roomID
}

// Unsubscribe removes a client's room subscription but keeps it registered.
func (h *Hub) Unsubscribe(connID string) {
	h.mu.Lock()
	h.dropSubscription(connID)
	h.mu.Unlock()
}

// UnsubscribeRoomExcept drops every subscription to a room except keep's,
// leaving the clients registered. Used after a room reset so evicted members
// stop receiving the room's frames; the resetting joiner keeps its fresh
// subscription.
func (h *Hub) UnsubscribeRoomExcept(roomID, keep string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.rooms[roomID]
	for connID := range subs {
		if connID == keep {
			continue
		}
		delete(h.byConn, connID)
		delete(subs, connID)
	}
	if len(subs) == 0 {
		delete(h.rooms, roomID)
	}
}

// dropSubscription must be called with the lock held.
func (h *Hub) dropSubscription(connID string) {
	roomID, ok := h.byConn[connID]
	if !ok {
		return
	}
	delete(h.byConn, connID)
	if subs := h.rooms[roomID]; subs != nil {
		delete(subs, connID)
		if len(subs) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// Broadcast fans a frame out to every subscriber of a room and returns the
// number of clients it was queued for. A room with no subscribers is a
// successful no-op. Delivery is fire-and-forget: no acknowledgment, no
// retry.
func (h *Hub) Broadcast(roomID string, frame any) int {
	data, err := json.Marshal(frame)
	if err != nil {
		log.Printf("[broadcast] marshal frame: %v", err)
		return 0
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[roomID]))
	for connID := range h.rooms[roomID] {
		if client, ok := h.clients[connID]; ok {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for _, client := range targets {
		if client.enqueue(data) {
			delivered++
		}
	}
	return delivered
}

// CloseAll closes every registered client. Used at shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.clients = make(map[string]*Client)
	h.rooms = make(map[string]map[string]bool)
	h.byConn = make(map[string]string)
	h.mu.Unlock()

	for _, client := range clients {
		client.close()
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomClientCount returns the number of subscribers of a room.
func (h *Hub) RoomClientCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
