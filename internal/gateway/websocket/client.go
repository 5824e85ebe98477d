package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"qwenlink/pkg/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 30 * time.Second

	maxMessageSize = 1024 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client represents a WebSocket client connection. Its context is cancelled
// when the connection's read side fails, which also ends any chat turn the
// client started.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	sessions    map[string]bool
	id          string
	connectedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// NewClient creates a new client.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, 256),
		sessions:    make(map[string]bool),
		id:          uuid.New().String(),
		connectedAt: time.Now(),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// ID returns the client id, also the default chat session.
func (c *Client) ID() string {
	return c.id
}

// enqueue drops data when the client's buffer is full.
func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
		logger.Warn().Str("client_id", c.id).Msg("WebSocket send buffer full, dropping frame")
	}
}

// readPump pumps messages from the WebSocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.cancel()
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Str("client_id", c.id).Msg("WebSocket read error")
			}
			return
		}

		c.handleMessage(message)
	}
}

// handleMessage processes incoming WebSocket messages.
func (c *Client) handleMessage(message []byte) {
	var msg WSMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.sendError("", "INVALID_MESSAGE", "failed to parse message")
		return
	}

	logger.Debug().
		Str("client_id", c.id).
		Str("type", msg.Type).
		Str("session", msg.Session).
		Msg("Received WebSocket message")

	switch msg.Type {
	case TypeSubscribe:
		if msg.Session != "" {
			c.hub.Subscribe(c, msg.Session)
		}

	case TypeUnsubscribe:
		if msg.Session != "" {
			c.hub.Unsubscribe(c, msg.Session)
		}

	case TypePing:
		c.sendJSON(WSMessage{Type: TypePong})

	case TypeChat:
		if msg.Message == "" {
			c.sendError(msg.Session, "INVALID_REQUEST", "chat message is required")
			return
		}
		session := msg.Session
		if session == "" {
			session = c.id
		}
		c.hub.Subscribe(c, session)

		started := c.hub.startChat(c.ctx, ChatRequest{
			Session:  session,
			Message:  msg.Message,
			Model:    msg.Model,
			Settings: msg.Settings,
		})
		if !started {
			c.sendError(session, "CHAT_ERROR", "chat handler not configured")
		}

	default:
		c.sendError(msg.Session, "INVALID_MESSAGE", "unknown message type "+msg.Type)
	}
}

// writePump pumps messages from the hub to the WebSocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Warn().Err(err).Str("client_id", c.id).Msg("WebSocket write error")
				c.cancel()
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.cancel()
				return
			}
		}
	}
}

func (c *Client) sendJSON(msg WSMessage) {
	data, _ := json.Marshal(msg)
	c.enqueue(data)
}

func (c *Client) sendError(session, code, message string) {
	c.sendJSON(WSMessage{Type: TypeError, Session: session, Code: code, Message: message})
}

// ServeWs upgrades the request and starts the client's pumps.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := NewClient(hub, conn)
	hub.Register(client)

	go client.writePump()
	go client.readPump()
}
