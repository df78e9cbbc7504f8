package notify

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"taskpad/tasklist"
)

const (
	// sendBuffer is how many snapshots may queue for one client before it
	// is dropped
	sendBuffer = 16
	writeWait  = 5 * time.Second
)

// SnapshotFunc returns the state to broadcast
type SnapshotFunc func() tasklist.Snapshot

type client struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
}

// Hub streams task list snapshots to websocket clients. Clients only
// receive; anything they send is discarded.
type Hub struct {
	snapshot SnapshotFunc
	log      zerolog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[uuid.UUID]*client
}

func NewHub(snapshot SnapshotFunc, log zerolog.Logger) *Hub {
	return &Hub{
		snapshot: snapshot,
		log:      log.With().Str("component", "notify").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		clients: make(map[uuid.UUID]*client),
	}
}

// ServeHTTP upgrades the request and sends the current snapshot, then
// every later one until the client goes away
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		id:   uuid.New(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	// Registering and queueing the first snapshot under one lock keeps any
	// concurrent Publish from landing ahead of it
	h.mu.Lock()
	initial, err := encode(h.snapshot())
	if err != nil {
		h.mu.Unlock()
		h.log.Error().Err(err).Msg("failed to encode snapshot")
		conn.Close()
		return
	}
	c.send <- initial
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Debug().Str("client", c.id.String()).Int("clients", n).Msg("client connected")

	go h.writeLoop(c)
	h.readLoop(c)
}

// Notify broadcasts a fresh snapshot. Its signature matches
// tasklist.Controller.Subscribe.
func (h *Hub) Notify(tasklist.Change) {
	h.Publish(h.snapshot())
}

// Publish sends s to every client. A client whose buffer is full is
// disconnected rather than blocking the caller.
func (h *Hub) Publish(s tasklist.Snapshot) {
	msg, err := encode(s)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to encode snapshot")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for id, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.Warn().Str("client", id.String()).Msg("dropping slow client")
			delete(h.clients, id)
			close(c.send)
		}
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	close(c.send)
	h.log.Debug().Str("client", c.id.String()).Int("clients", len(h.clients)).Msg("client disconnected")
}

func (h *Hub) readLoop(c *client) {
	defer h.remove(c)

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop owns all writes to c.conn. It exits when c.send is closed or
// a write fails, and closes the connection either way.
func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()

	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Debug().Err(err).Str("client", c.id.String()).Msg("write failed")
			return
		}
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func encode(s tasklist.Snapshot) ([]byte, error) {
	return json.Marshal(s)
}
