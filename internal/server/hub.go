package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/menta2k/watch-reader/internal/logger"
	"github.com/menta2k/watch-reader/pkg/status"
)

// Message is what viewers receive over the websocket
type Message struct {
	Type   string           `json:"type"` // "status" or "frame"
	Status *status.Snapshot `json:"status,omitempty"`
	Frame  string           `json:"frame,omitempty"` // base64 JPEG
}

const (
	writeWait       = 10 * time.Second
	viewerQueueSize = 16
)

type registration struct {
	conn    *websocket.Conn
	initial []byte
}

// viewer owns one connection; only its writer goroutine writes to conn
type viewer struct {
	conn *websocket.Conn
	send chan []byte
}

func (v *viewer) writePump() {
	defer v.conn.Close()

	for message := range v.send {
		v.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := v.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}

	v.conn.SetWriteDeadline(time.Now().Add(writeWait))
	v.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// Hub fans status snapshots and preview frames out to connected viewers.
// A viewer whose queue is full is dropped; nothing waits on a slow connection.
type Hub struct {
	clients    map[*websocket.Conn]*viewer
	broadcast  chan []byte
	register   chan registration
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.RWMutex // guards clients; never held across a write
	logger     *logger.Logger
}

// NewHub creates a hub; Run must be started before viewers connect
func NewHub(logger *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]*viewer),
		broadcast:  make(chan []byte, 16),
		register:   make(chan registration),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves registrations and broadcasts until ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for conn, v := range h.clients {
				close(v.send)
				delete(h.clients, conn)
			}
			h.mutex.Unlock()
			return

		case reg := <-h.register:
			v := &viewer{conn: reg.conn, send: make(chan []byte, viewerQueueSize)}
			if reg.initial != nil {
				v.send <- reg.initial
			}
			go v.writePump()

			h.mutex.Lock()
			h.clients[reg.conn] = v
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer connected. Total: %d", count)

		case conn := <-h.unregister:
			h.mutex.Lock()
			if v, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				close(v.send)
			}
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer disconnected. Total: %d", count)

		case message := <-h.broadcast:
			h.mutex.Lock()
			for conn, v := range h.clients {
				select {
				case v.send <- message:
				default:
					h.logger.Warning("Viewer %s is not keeping up, dropping it", conn.RemoteAddr())
					delete(h.clients, conn)
					close(v.send)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Register adds a viewer and queues initial before any broadcast
func (h *Hub) Register(ctx context.Context, client *websocket.Conn, initial []byte) {
	select {
	case h.register <- registration{conn: client, initial: initial}:
	case <-h.done:
		client.Close()
	case <-ctx.Done():
	}
}

// Unregister removes a viewer; its writer closes the connection
func (h *Hub) Unregister(ctx context.Context, client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	case <-ctx.Done():
	}
}

// PublishStatus broadcasts a status snapshot. Unlike frames, snapshots always
// reach the hub while it runs; a viewer too slow to take one is disconnected.
func (h *Hub) PublishStatus(snapshot status.Snapshot) {
	data, err := encodeStatus(snapshot)
	if err != nil {
		h.logger.Error("Failed to encode status: %v", err)
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.done:
	}
}

// PreviewFrame broadcasts a preview frame, dropping it when viewers lag behind
func (h *Hub) PreviewFrame(frame []byte) {
	if h.ClientCount() == 0 {
		return
	}
	data, err := json.Marshal(Message{Type: "frame", Frame: base64.StdEncoding.EncodeToString(frame)})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
	}
}

// ClientCount returns the number of connected viewers
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func encodeStatus(snapshot status.Snapshot) ([]byte, error) {
	return json.Marshal(Message{Type: "status", Status: &snapshot})
}
