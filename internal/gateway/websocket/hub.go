package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"qwenlink/pkg/logger"
)

// ChatRequest is a chat frame received from a client.
type ChatRequest struct {
	Session  string
	Message  string
	Model    string
	Settings map[string]any
}

// ChatHandler runs one chat turn. Output frames are delivered with
// Hub.Broadcast to the session's subscribers. ctx ends when the requesting
// client disconnects.
type ChatHandler func(ctx context.Context, req ChatRequest)

// Hub maintains the set of active clients and broadcasts messages.
type Hub struct {
	clients  map[*Client]bool
	sessions map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
	quit       chan struct{}
	stopOnce   sync.Once

	mu          sync.RWMutex
	chatHandler ChatHandler
	turns       sync.WaitGroup
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		sessions:   make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
		quit:       make(chan struct{}),
	}
}

// SetChatHandler sets the callback for chat messages.
func (h *Hub) SetChatHandler(handler ChatHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.chatHandler = handler
}

// startChat runs the chat handler in the background. It reports false when
// no handler is configured.
func (h *Hub) startChat(ctx context.Context, req ChatRequest) bool {
	h.mu.RLock()
	handler := h.chatHandler
	h.mu.RUnlock()

	if handler == nil {
		return false
	}

	h.turns.Add(1)
	go func() {
		defer h.turns.Done()
		handler(ctx, req)
	}()
	return true
}

// Run starts the hub's main loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logger.Info().Str("client_id", client.id).Msg("WebSocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				for session := range client.sessions {
					h.removeLocked(client, session)
				}
			}
			h.mu.Unlock()
			logger.Info().Str("client_id", client.id).Msg("WebSocket client disconnected")

		case msg := <-h.broadcast:
			h.mu.RLock()
			targets := h.clients
			if msg.Session != "" {
				targets = h.sessions[msg.Session]
			}
			for client := range targets {
				client.enqueue(msg.Data)
			}
			h.mu.RUnlock()
		}
	}
}

// Stop ends Run and waits for in-flight chat turns.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
	h.turns.Wait()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// Subscribe adds a client to a session's subscriber list.
func (h *Hub) Subscribe(client *Client, session string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.sessions[session] = true
	if h.sessions[session] == nil {
		h.sessions[session] = make(map[*Client]bool)
	}
	h.sessions[session][client] = true

	logger.Debug().
		Str("client_id", client.id).
		Str("session", session).
		Msg("Client subscribed to session")
}

// Unsubscribe removes a client from a session's subscriber list.
func (h *Hub) Unsubscribe(client *Client, session string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client, session)
}

func (h *Hub) removeLocked(client *Client, session string) {
	delete(client.sessions, session)
	if clients, ok := h.sessions[session]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.sessions, session)
		}
	}
}

// Broadcast sends data to all clients subscribed to session, or to every
// client when session is empty.
func (h *Hub) Broadcast(session string, data []byte) {
	select {
	case h.broadcast <- &BroadcastMessage{Session: session, Data: data}:
	case <-h.quit:
	}
}

// Publish marshals msg and broadcasts it to msg.Session.
func (h *Hub) Publish(msg WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal broadcast message")
		return err
	}
	h.Broadcast(msg.Session, data)
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SubscriberCount returns the number of clients subscribed to session.
func (h *Hub) SubscriberCount(session string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[session])
}
