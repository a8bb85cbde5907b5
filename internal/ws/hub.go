package ws

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
)

// Rooms a client can subscribe to.
const (
	// RoomStaff receives every queue and order event.
	RoomStaff = "staff"
	// RoomBoard receives only ticket events, for the pickup display screen.
	RoomBoard = "board"
)

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// roomEvent is an internal struct for routing events to specific rooms
type roomEvent struct {
	Room  string
	Event Event
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Registered clients by room
	rooms map[string]map[*Client]bool

	// Inbound messages from clients (register/unregister)
	register   chan *Client
	unregister chan *Client

	// Outbound messages to broadcast
	broadcast chan *roomEvent

	// Closed when Run returns
	done chan struct{}

	// Mutex for thread-safe room access
	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *roomEvent, 256),
		done:       make(chan struct{}),
	}
}

// Run owns room membership until ctx is cancelled, then disconnects every
// screen.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			close(h.done)
			return
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.mu.Lock()
			if h.rooms[c.room][c] {
				h.drop(c)
			}
			h.mu.Unlock()
		case e := <-h.broadcast:
			h.deliver(e)
		}
	}
}

// join hands c to Run. It reports false once the hub has stopped.
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[c.room] == nil {
		h.rooms[c.room] = make(map[*Client]bool)
	}
	h.rooms[c.room][c] = true
}

func (h *Hub) deliver(e *roomEvent) {
	message, err := json.Marshal(e.Event)
	if err != nil {
		log.Printf("ERROR: encode ws event %s: %v", e.Event.Type, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[e.Room] {
		select {
		case c.send <- message:
		default:
			// A screen that stopped reading is disconnected, not waited on.
			h.drop(c)
		}
	}
}

// drop removes c and closes its send channel. Caller holds h.mu.
func (h *Hub) drop(c *Client) {
	clients := h.rooms[c.room]
	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.rooms, c.room)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.rooms {
		for c := range clients {
			h.drop(c)
		}
	}
}

// BroadcastToRoom sends an event to all clients subscribed to a room. It
// never blocks; events are dropped when the hub is backed up.
func (h *Hub) BroadcastToRoom(room string, event Event) {
	select {
	case h.broadcast <- &roomEvent{Room: room, Event: event}:
	default:
		log.Printf("WARN: ws broadcast buffer full, dropping %s for room %s", event.Type, room)
	}
}

// Publish marshals payload and fans the event out to staff screens. Ticket
// events ("queue.*") also go to the pickup board.
func (h *Hub) Publish(eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ERROR: marshal %s event: %v", eventType, err)
		return
	}
	event := Event{Type: eventType, Payload: data}

	h.BroadcastToRoom(RoomStaff, event)
	if strings.HasPrefix(eventType, "queue.") {
		h.BroadcastToRoom(RoomBoard, event)
	}
}

// ClientCount returns the number of clients in a room.
func (h *Hub) ClientCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
