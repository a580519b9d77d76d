// Package publisher pushes snapshot and data-change events to connected
// dashboard browsers over websockets.
package publisher

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kiko9987/itglobal/internal/aggregate"
	"github.com/kiko9987/itglobal/internal/logger"
)

// Event types pushed to clients.
const (
	EventSnapshot    = "snapshot_updated"
	EventDataChanged = "data_updated"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

// Event is one websocket message.
type Event struct {
	Type     string              `json:"type"`
	Code     string              `json:"code,omitempty"`
	Action   string              `json:"action,omitempty"`
	Snapshot *aggregate.Snapshot `json:"snapshot,omitempty"`
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub fans events out to every connected client. Slow clients whose buffer
// is full are dropped rather than blocking the broadcast. Snapshot events
// have their own single slot where a newer snapshot replaces a pending one.
type Hub struct {
	upgrader   websocket.Upgrader
	clients    map[*client]bool
	broadcast  chan []byte
	snapshots  chan []byte
	register   chan *client
	unregister chan *client
	count      chan int
	done       chan struct{}
	log        *zap.SugaredLogger
}

// NewHub creates a Hub. allowedOrigin empty accepts any origin.
func NewHub(allowedOrigin string) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return allowedOrigin == "" || r.Header.Get("Origin") == allowedOrigin
			},
		},
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 8),
		snapshots:  make(chan []byte, 1),
		register:   make(chan *client),
		unregister: make(chan *client),
		count:      make(chan int),
		done:       make(chan struct{}),
		log:        logger.Named("publisher"),
	}
}

// Run serves the hub until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			return

		case c := <-h.register:
			h.clients[c] = true
			h.log.Debugw("Client connected", "clients", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.log.Debugw("Client disconnected", "clients", len(h.clients))
			}

		case msg := <-h.broadcast:
			h.fanOut(msg)

		case msg := <-h.snapshots:
			h.fanOut(msg)

		case h.count <- len(h.clients):
		}
	}
}

func (h *Hub) fanOut(msg []byte) {
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	select {
	case n := <-h.count:
		return n
	case <-h.done:
		return 0
	}
}

// Broadcast queues ev for every client without blocking the caller.
func (h *Hub) Broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Errorw("Failed to marshal event", "type", ev.Type, "error", err)
		return
	}
	if ev.Type == EventSnapshot {
		h.offerSnapshot(data)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.log.Warnw("Broadcast queue full, event dropped", "type", ev.Type)
	}
}

// offerSnapshot leaves data as the one pending snapshot, discarding an
// older one the run loop has not picked up yet.
func (h *Hub) offerSnapshot(data []byte) {
	for {
		select {
		case h.snapshots <- data:
			return
		default:
		}
		select {
		case <-h.snapshots:
		default:
		}
	}
}

// PublishSnapshot announces a freshly built snapshot.
func (h *Hub) PublishSnapshot(snap *aggregate.Snapshot) {
	h.Broadcast(Event{Type: EventSnapshot, Snapshot: snap})
}

// PublishChange announces a created, updated or deleted project.
func (h *Hub) PublishChange(code, action string) {
	h.Broadcast(Event{Type: EventDataChanged, Code: code, Action: action})
}

// ServeWS upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump discards client messages and detects disconnects.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warnw("Unexpected websocket close", "error", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
