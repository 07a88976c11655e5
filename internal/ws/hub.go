// Package ws serves the operator live feed over websockets.
package ws

import (
	"context"
	"encoding/json"
	"sync"

	"service-desk/backend/internal/events"
	"service-desk/backend/pkg/logger"
)

// Hub keeps the connected consoles and broadcasts events to all of them
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	log        *logger.Logger
	mu         sync.RWMutex
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log,
	}
}

// Run dispatches until ctx is done, then drops every client
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Debug("Console connected", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.log.Debug("Console disconnected", "client_id", client.id)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
					h.log.Warn("Console removed due to blocked channel", "client_id", client.id)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish implements events.Publisher. Events are dropped when the hub is saturated.
func (h *Hub) Publish(evt events.Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		h.log.LogError(err, "Failed to encode live feed event", "type", evt.Type)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.log.Warn("Live feed saturated, dropping event", "type", evt.Type)
	}
}

// ClientCount returns the number of connected consoles
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
