// server/ws/hub.go
package ws

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/arbornote/arbor/domain"
)

// Conn is the slice of a websocket connection the hub needs. Both the
// fasthttp-backed server conns and gorilla client conns satisfy it.
type Conn interface {
	WriteJSON(v interface{}) error
	ReadJSON(v interface{}) error
	Close() error
}

// Event types pushed to connected clients so they can refresh caches.
const (
	EventNoteCreated  = "note_created"
	EventNoteUpdated  = "note_updated"
	EventNoteDeleted  = "note_deleted"
	EventNoteRestored = "note_restored"
	EventTreeUpdated  = "tree_updated"
)

// Message is one change notification.
type Message struct {
	Type   string       `json:"type"`
	NoteID string       `json:"noteId,omitempty"`
	Note   *domain.Note `json:"note,omitempty"`
}

// Hub fans change notifications out to every connected websocket client.
type Hub struct {
	clients    map[Conn]bool
	broadcast  chan Message
	register   chan Conn
	unregister chan Conn
	mu         sync.RWMutex
	log        zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[Conn]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan Conn),
		unregister: make(chan Conn),
		log:        log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			var dead []Conn
			h.mu.RLock()
			for conn := range h.clients {
				if err := conn.WriteJSON(msg); err != nil {
					h.log.Warn().Err(err).Msg("websocket write failed, dropping client")
					dead = append(dead, conn)
				}
			}
			h.mu.RUnlock()
			h.mu.Lock()
			for _, conn := range dead {
				if _, ok := h.clients[conn]; ok {
					delete(h.clients, conn)
					conn.Close()
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues a change event for all connected clients.
func (h *Hub) Broadcast(msgType, noteID string, note *domain.Note) {
	h.broadcast <- Message{Type: msgType, NoteID: noteID, Note: note}
}

func (h *Hub) Register(conn Conn) {
	h.register <- conn
}

func (h *Hub) Unregister(conn Conn) {
	h.unregister <- conn
}

// HandleConnection pumps reads until the client goes away.
func (h *Hub) HandleConnection(conn Conn) {
	defer h.Unregister(conn)

	for {
		var msg map[string]interface{}
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}

		if msgType, ok := msg["type"].(string); ok && msgType == "subscribe" {
			h.log.Debug().Msg("client subscribed")
		}
	}
}
