// Package sse fans playback events out to server-sent-event subscribers.
package sse

import (
	"fmt"
	"log/slog"
	"sync"
)

// Client is one connected event stream. A non-empty Topic limits the client
// to events published on that topic.
type Client struct {
	ID     string
	Topic  string
	Events chan []byte // outbound event frames
}

type message struct {
	topic string
	frame []byte
}

// Hub manages SSE client connections and broadcasts events.
type Hub struct {
	log        *slog.Logger
	clients    map[*Client]bool
	broadcast  chan message
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	done       chan struct{}
	closeOnce  sync.Once
}

// NewHub creates a new hub. Call Run before publishing.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:        log,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan message, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop. Call in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Debug("sse client connected", "id", client.ID, "topic", client.Topic, "total", h.Count())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Events)
			}
			h.mu.Unlock()
			h.log.Debug("sse client disconnected", "id", client.ID, "total", h.Count())

		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				if client.Topic != "" && client.Topic != msg.topic {
					continue
				}
				select {
				case client.Events <- msg.frame:
				default:
					h.log.Warn("sse client buffer full, dropping message", "id", client.ID)
				}
			}
			h.mu.RUnlock()

		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				close(client.Events)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Register adds a client to the hub. It returns false once the hub is closed.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish queues a named event for clients subscribed to topic (and for
// unfiltered clients). Publishing never blocks: when the queue is full the
// event is dropped.
func (h *Hub) Publish(topic, event string, data []byte) {
	msg := message{topic: topic, frame: Frame(event, data)}
	select {
	case h.broadcast <- msg:
	case <-h.done:
	default:
		h.log.Warn("sse queue full, dropping event", "event", event, "topic", topic)
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close shuts down the hub. Safe to call more than once.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// Frame renders one event in the text/event-stream wire format.
func Frame(event string, data []byte) []byte {
	return fmt.Appendf(nil, "event: %s\ndata: %s\n\n", event, data)
}
