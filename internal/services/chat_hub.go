package services

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ChatConn is the slice of a websocket connection the hub uses. Satisfied by
// the fasthttp websocket connection.
type ChatConn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// chatClient serializes writes to one connection. The underlying websocket
// connection does not tolerate concurrent writers, and Broadcast runs on
// whichever request goroutine sent the message.
type chatClient struct {
	mu   sync.Mutex
	conn ChatConn
}

func (c *chatClient) write(payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(payload)
}

// ChatHub fans order chat messages out to connected websocket clients,
// keyed by order. Connections are registered by the chat stream handler and
// dropped on write failure.
type ChatHub struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]map[ChatConn]*chatClient
	log   zerolog.Logger
}

// NewChatHub constructs a ChatHub.
func NewChatHub(log zerolog.Logger) *ChatHub {
	return &ChatHub{
		rooms: make(map[uuid.UUID]map[ChatConn]*chatClient),
		log:   log.With().Str("component", "chat").Logger(),
	}
}

// Register adds a connection to an order's room.
func (h *ChatHub) Register(orderID uuid.UUID, conn ChatConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[orderID]
	if !ok {
		room = make(map[ChatConn]*chatClient)
		h.rooms[orderID] = room
	}
	room[conn] = &chatClient{conn: conn}
}

// Unregister removes a connection; empty rooms are dropped.
func (h *ChatHub) Unregister(orderID uuid.UUID, conn ChatConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[orderID]; ok {
		delete(room, conn)
		if len(room) == 0 {
			delete(h.rooms, orderID)
		}
	}
}

// Broadcast sends payload to every connection in the order's room.
func (h *ChatHub) Broadcast(orderID uuid.UUID, payload interface{}) {
	h.mu.RLock()
	clients := make([]*chatClient, 0, len(h.rooms[orderID]))
	for _, client := range h.rooms[orderID] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if err := client.write(payload); err != nil {
			h.log.Debug().Err(err).Msg("dropping dead chat connection")
			h.Unregister(orderID, client.conn)
			client.conn.Close()
		}
	}
}
