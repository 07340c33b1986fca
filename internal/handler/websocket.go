package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/insider-one/local-notifications/internal/domain"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// TODO: restrict to configured origins once the API sits behind auth
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHub maintains active WebSocket connections and fans manager
// events out to them
type WebSocketHub struct {
	clients    map[*WebSocketClient]bool
	broadcast  chan domain.Event
	register   chan *WebSocketClient
	unregister chan *WebSocketClient
	logger     *slog.Logger
	mu         sync.RWMutex
	decide     func(granted bool) error
	done       chan struct{}
}

// WebSocketClient represents a WebSocket client connection
type WebSocketClient struct {
	hub  *WebSocketHub
	conn *websocket.Conn
	send chan []byte
	id   string

	mu     sync.Mutex
	filter *ClientFilter
}

// ClientFilter represents subscription filters
type ClientFilter struct {
	NotificationIDs []string           `json:"notification_ids,omitempty"`
	Types           []domain.EventType `json:"types,omitempty"`
}

// ClientMessage is a message sent by a client. Action is one of subscribe,
// unsubscribe and decide.
type ClientMessage struct {
	Action  string       `json:"action"`
	Filter  ClientFilter `json:"filter"`
	Granted bool         `json:"granted"`
}

// ErrorMessage is sent back when a client action fails
type ErrorMessage struct {
	Type      string    `json:"type"`
	Action    string    `json:"action"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NewWebSocketHub creates a new WebSocketHub
func NewWebSocketHub(logger *slog.Logger) *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[*WebSocketClient]bool),
		broadcast:  make(chan domain.Event, 256),
		register:   make(chan *WebSocketClient),
		unregister: make(chan *WebSocketClient),
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// SetDecisionHandler sets the function that answers authorization prompts
// on behalf of "decide" actions
func (h *WebSocketHub) SetDecisionHandler(fn func(granted bool) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.decide = fn
}

// Run starts the hub's main loop
func (h *WebSocketHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info("websocket client connected", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("websocket client disconnected", "client_id", client.id)

		case event := <-h.broadcast:
			message, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("failed to marshal event", "error", err)
				continue
			}

			h.mu.RLock()
			for client := range h.clients {
				if client.shouldReceive(event) {
					select {
					case client.send <- message:
					default:
						// Client buffer full, skip
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast queues an event for every subscribed client. It never blocks.
func (h *WebSocketHub) Broadcast(event domain.Event) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("broadcast channel full, dropping event", "type", event.Type)
	}
}

// GetClientCount returns the number of connected clients
func (h *WebSocketHub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *WebSocketHub) handleDecision(granted bool) error {
	h.mu.RLock()
	decide := h.decide
	h.mu.RUnlock()

	if decide == nil {
		return domain.ErrNoPendingPrompt
	}
	return decide(granted)
}

// shouldReceive checks if the client subscribed to the event
func (c *WebSocketClient) shouldReceive(event domain.Event) bool {
	c.mu.Lock()
	filter := c.filter
	c.mu.Unlock()

	if filter == nil {
		return true
	}

	if len(filter.Types) > 0 && !slices.Contains(filter.Types, event.Type) {
		return false
	}

	if len(filter.NotificationIDs) > 0 {
		// events without a notification, such as permission changes, are
		// only filtered by type
		if event.Notification != nil && !slices.Contains(filter.NotificationIDs, event.Notification.ID) {
			return false
		}
	}

	return true
}

func (c *WebSocketClient) setFilter(filter *ClientFilter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = filter
}

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub *WebSocketHub
}

// NewWebSocketHandler creates a new WebSocketHandler
func NewWebSocketHandler(hub *WebSocketHub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// HandleWebSocket handles WebSocket upgrade and connection
// @Summary WebSocket connection
// @Description Stream manager events and answer authorization prompts with {"action":"decide","granted":true}
// @Tags websocket
// @Success 101 {string} string "Switching Protocols"
// @Router /ws [get]
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.hub.logger.Error("failed to upgrade websocket", "error", err)
		return
	}

	client := &WebSocketClient{
		hub:  h.hub,
		conn: conn,
		send: make(chan []byte, 256),
		id:   uuid.New().String(),
	}

	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		conn.Close()
		return
	}

	// Start goroutines for reading and writing
	go client.writePump()
	go client.readPump()
}

// readPump pumps messages from the websocket connection to the hub
func (c *WebSocketClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("websocket error", "error", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		switch msg.Action {
		case "subscribe":
			filter := msg.Filter
			c.setFilter(&filter)
			c.hub.logger.Info("client subscribed with filter",
				"client_id", c.id,
				"filter", filter,
			)
		case "unsubscribe":
			c.setFilter(nil)
		case "decide":
			if err := c.hub.handleDecision(msg.Granted); err != nil {
				c.reply(ErrorMessage{
					Type:      "error",
					Action:    msg.Action,
					Message:   err.Error(),
					Timestamp: time.Now().UTC(),
				})
			}
		}
	}
}

// reply queues a message for this client only
func (c *WebSocketClient) reply(v any) {
	message, err := json.Marshal(v)
	if err != nil {
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c]; !ok {
		return
	}
	select {
	case c.send <- message:
	default:
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
