package websocket

import (
	"log/slog"
	"sync"

	"imusic/types"
)

// AllJobs is the topic that receives updates for every scan job
const AllJobs = "all"

// Hub defines the methods for managing WebSocket connections
type Hub interface {
	Run()
	BroadcastProgress(msg types.ProgressMessage)
	RegisterClient(client *Client)
	UnregisterClient(client *Client)
	ClientCount(topic string) int
}

// hub maintains the set of active clients and broadcasts messages to them
type hub struct {
	// Registered clients mapped by job ID (or AllJobs)
	clients map[string]map[*Client]bool

	broadcast  chan types.ProgressMessage
	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex
}

// NewHub creates a new WebSocket hub
func NewHub() Hub {
	return &hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan types.ProgressMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub's main event loop
func (h *hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.topic] == nil {
				h.clients[client.topic] = make(map[*Client]bool)
			}
			h.clients[client.topic][client] = true
			if client.snapshot != nil {
				if msg, ok := client.snapshot(); ok {
					client.send <- msg
				}
			}
			h.mu.Unlock()
			slog.Debug("websocket client connected", "topic", client.topic)

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			slog.Debug("websocket client disconnected", "topic", client.topic)

		case message := <-h.broadcast:
			h.mu.Lock()
			h.send(message.JobID, message)
			h.send(AllJobs, message)
			h.mu.Unlock()
		}
	}
}

// send delivers message to every client of topic, dropping clients whose
// buffer is full. h.mu must be held.
func (h *hub) send(topic string, message types.ProgressMessage) {
	for client := range h.clients[topic] {
		select {
		case client.send <- message:
		default:
			h.remove(client)
		}
	}
}

// remove must be called with h.mu held
func (h *hub) remove(client *Client) {
	clients, ok := h.clients[client.topic]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.clients, client.topic)
	}
}

// BroadcastProgress queues msg for the clients of its job and of AllJobs
func (h *hub) BroadcastProgress(msg types.ProgressMessage) {
	select {
	case h.broadcast <- msg:
	default:
		slog.Warn("websocket broadcast channel full, dropping message", "job", msg.JobID)
	}
}

// RegisterClient registers a new client with the hub
func (h *hub) RegisterClient(client *Client) {
	h.register <- client
}

// UnregisterClient unregisters a client from the hub
func (h *hub) UnregisterClient(client *Client) {
	h.unregister <- client
}

// ClientCount returns the number of clients subscribed to topic
func (h *hub) ClientCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}
