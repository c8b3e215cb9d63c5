// Package websocket - Badge Notification Push
// Streams badge awards to every open connection of the awarded user
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tila/pkg/logger"
	"tila/pkg/metrics"
	"tila/pkg/models"
)

const (
	maxMessageSize     = 1024                // inbound frames are only pings
	writeWait          = 10 * time.Second    // Time allowed to write a message
	pongWait           = 60 * time.Second    // Time allowed to read the next pong
	pingPeriod         = (pongWait * 9) / 10 // Send pings to client
	sendBuffer         = 16
	maxConnsPerUser    = 8
	MessageTypeAwarded = "badges_awarded"
	MessageTypePong    = "pong"
	MessageTypeWelcome = "welcome"
)

var (
	errTooManyConnections = &models.AppError{
		Code:       models.ErrCodeServiceUnavailable,
		Message:    "too many connections",
		StatusCode: http.StatusServiceUnavailable,
	}
	errHubStopped = &models.AppError{
		Code:       models.ErrCodeServiceUnavailable,
		Message:    "server shutting down",
		StatusCode: http.StatusServiceUnavailable,
	}
)

// Hub tracks connections per user and fans out award notifications
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{} // user_id -> connections
	total   int
	stopped bool
	metrics *metrics.Metrics
	wg      sync.WaitGroup
}

// Client is one websocket connection
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan *Message
	userID string
}

// Message is the JSON frame pushed to clients
type Message struct {
	Type      string                   `json:"type"`
	UserID    string                   `json:"user_id,omitempty"`
	Message   string                   `json:"message,omitempty"`
	Data      *models.EvaluationResult `json:"data,omitempty"`
	Timestamp time.Time                `json:"timestamp"`
}

// NewHub creates an empty hub. m may be nil.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		metrics: m,
	}
}

// BadgesAwarded pushes the evaluation to the user's open connections.
// Slow clients are dropped rather than blocking the caller.
func (h *Hub) BadgesAwarded(_ context.Context, userID string, result *models.EvaluationResult) {
	if result == nil || len(result.AwardedBadges) == 0 {
		return
	}
	msg := &Message{
		Type:      MessageTypeAwarded,
		UserID:    userID,
		Message:   result.Message(),
		Data:      result,
		Timestamp: time.Now().UTC(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients[userID] {
		select {
		case client.send <- msg:
		default:
			logger.WithFields(map[string]interface{}{"user_id": userID}).
				Warn("websocket send buffer full, disconnecting")
			h.removeLocked(client)
		}
	}
}

// register adds c and reserves its two pumps in the wait group while still
// holding the lock, so Stop never waits on a counter that is about to grow
func (h *Hub) register(c *Client) *models.AppError {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return errHubStopped
	}
	if len(h.clients[c.userID]) >= maxConnsPerUser {
		return errTooManyConnections
	}
	if h.clients[c.userID] == nil {
		h.clients[c.userID] = make(map[*Client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
	h.total++
	h.wg.Add(2)
	h.metrics.WSConnections(h.total)
	logger.WebSocket("connected", c.userID, h.total)
	return nil
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// removeLocked closes the client's send channel exactly once
func (h *Hub) removeLocked(c *Client) {
	conns, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.clients, c.userID)
	}
	close(c.send)
	h.total--
	h.metrics.WSConnections(h.total)
	logger.WebSocket("disconnected", c.userID, h.total)
}

// ConnectionCount returns the number of open connections
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}

// UserConnectionCount returns the number of open connections for one user
func (h *Hub) UserConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// ServeClient registers conn and starts its pumps
func (h *Hub) ServeClient(conn *websocket.Conn, userID string) {
	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan *Message, sendBuffer),
		userID: userID,
	}

	if appErr := h.register(client); appErr != nil {
		closeWithError(conn, appErr)
		return
	}

	client.trySend(&Message{Type: MessageTypeWelcome, UserID: userID, Timestamp: time.Now().UTC()})

	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

// closeWithError ends a connection that was upgraded but cannot be served
func closeWithError(conn *websocket.Conn, appErr *models.AppError) {
	code, text := appErr.ToWebSocketError()
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text),
		time.Now().Add(writeWait))
	conn.Close()
}

// Stop disconnects every client and waits for their pumps
func (h *Hub) Stop() {
	logger.Info("Stopping websocket hub...")

	h.mu.Lock()
	h.stopped = true
	for _, conns := range h.clients {
		for client := range conns {
			h.removeLocked(client)
		}
	}
	h.mu.Unlock()

	h.wg.Wait()
	logger.Info("Websocket hub stopped")
}

// readPump only keeps the connection alive; clients may send {"type":"ping"}
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.WithFields(map[string]interface{}{"user_id": c.userID}).WithError(err).
					Warn("websocket read error")
			}
			return
		}

		var in struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &in); err != nil || in.Type != "ping" {
			continue
		}
		c.trySend(&Message{Type: MessageTypePong, Timestamp: time.Now().UTC()})
	}
}

// trySend queues msg unless the client is already gone or backed up
func (c *Client) trySend(msg *Message) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c.userID][c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) writePump() {
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
				// unregistered
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
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
