package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/brewqueue/api/internal/auth"
	"github.com/brewqueue/api/internal/enum"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be below pongWait
	maxMessageSize = 512
	sendBuffer     = 256
	snapshotWait   = 5 * time.Second
)

// Client is one connected staff or display screen. Screens only listen;
// anything they send is discarded.
type Client struct {
	id     uuid.UUID
	hub    *Hub
	conn   *websocket.Conn
	room   string
	userID uuid.UUID
	send   chan []byte
}

// SnapshotFunc returns the state a screen should render before live events
// arrive.
type SnapshotFunc func(ctx context.Context) (any, error)

// Handler upgrades authenticated requests and subscribes the connection to
// one room.
//
//	GET /ws/queue?token=JWT  staff room
//	GET /ws/board?token=JWT  board room
type Handler struct {
	hub      *Hub
	secret   string
	room     string
	upgrader websocket.Upgrader
	snapshot SnapshotFunc
}

// NewHandler builds a Handler for room. Browser origins must be listed in
// origins; an empty list accepts any origin.
func NewHandler(hub *Hub, jwtSecret, room string, origins []string) *Handler {
	return &Handler{
		hub:    hub,
		secret: jwtSecret,
		room:   room,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(origins),
		},
	}
}

// WithSnapshot makes every new connection receive a queue.snapshot event
// built by fn before any live event.
func (h *Handler) WithSnapshot(fn SnapshotFunc) *Handler {
	h.snapshot = fn
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tokenStr := requestToken(r)
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	claims, err := auth.ValidateToken(h.secret, tokenStr)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	var first []byte
	if h.snapshot != nil {
		first, err = h.buildSnapshot(r.Context())
		if err != nil {
			log.Printf("ERROR: ws %s snapshot: %v", h.room, err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WARN: ws upgrade for %s: %v", claims.Email, err)
		return
	}

	c := &Client{
		id:     uuid.New(),
		hub:    h.hub,
		conn:   conn,
		room:   h.room,
		userID: claims.UserID,
		send:   make(chan []byte, sendBuffer),
	}
	if first != nil {
		c.send <- first
	}
	if !h.hub.join(c) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}

	go c.writeLoop()
	go c.readLoop()
}

func (h *Handler) buildSnapshot(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, snapshotWait)
	defer cancel()

	state, err := h.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{Type: enum.EventQueueSnapshot, Payload: payload})
}

// requestToken reads the JWT from the token query parameter, which browsers
// must use for websockets, or from a bearer Authorization header.
func requestToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "bearer") {
		return token
	}
	return ""
}

// originChecker allows requests without an Origin header (display kiosks,
// native clients) and browser requests from the configured origins.
func originChecker(origins []string) func(*http.Request) bool {
	if len(origins) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, origin)
	}
}

// readLoop only watches for pongs and disconnects.
func (c *Client) readLoop() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WARN: ws client %s (user %s) in %s: %v", c.id, c.userID, c.room, err)
			}
			return
		}
	}
}

// writeLoop sends one event per frame and keeps the connection alive with
// pings.
func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.write(websocket.CloseMessage, nil)
				return
			}
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}
