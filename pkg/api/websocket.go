package api

import (
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// -----------------------------------------------------------------------------
// WebSocket Constants
// -----------------------------------------------------------------------------

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096

	sendBufferSize = 256
)

// Channels a client can subscribe to.
const (
	// ChannelJobs carries turn, removal and job-finished events.
	ChannelJobs = "jobs"
	// ChannelMessages carries every appended discussion message.
	ChannelMessages = "messages"
)

// AllChannels lists every channel. New clients start subscribed to all of them.
var AllChannels = []string{ChannelJobs, ChannelMessages}

// Event types of server and client envelopes.
const (
	EventTypeJobStarted         = "job_started"
	EventTypeTurn               = "turn"
	EventTypeMessage            = "message"
	EventTypeParticipantRemoved = "participant_removed"
	EventTypeJobFinished        = "job_finished"

	EventTypeSubscribe   = "subscribe"
	EventTypeUnsubscribe = "unsubscribe"
	EventTypePing        = "ping"
	EventTypePong        = "pong"
	EventTypeError       = "error"
)

// WSMessage is the envelope of every WebSocket frame.
type WSMessage struct {
	Type      string   `json:"type"`
	Data      any      `json:"data,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
	Channels  []string `json:"channels,omitempty"` // subscribe / unsubscribe only
}

func newEnvelope(eventType string, data any) *WSMessage {
	return &WSMessage{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

func validChannel(ch string) bool { return slices.Contains(AllChannels, ch) }

// -----------------------------------------------------------------------------
// Client
// -----------------------------------------------------------------------------

// Client is one WebSocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	subscriptions map[string]bool
	subMu         sync.RWMutex
}

// NewClient creates a client subscribed to every channel.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	c := &Client{
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, sendBufferSize),
		subscriptions: make(map[string]bool),
	}
	c.Subscribe(AllChannels...)
	return c
}

// Subscribe adds channel subscriptions.
func (c *Client) Subscribe(channels ...string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range channels {
		c.subscriptions[ch] = true
	}
}

// Unsubscribe removes channel subscriptions.
func (c *Client) Unsubscribe(channels ...string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range channels {
		delete(c.subscriptions, ch)
	}
}

// IsSubscribed reports whether the client receives channel.
func (c *Client) IsSubscribed(channel string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return c.subscriptions[channel]
}

// Subscriptions returns the subscribed channels, sorted.
func (c *Client) Subscriptions() []string {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	channels := make([]string, 0, len(c.subscriptions))
	for ch := range c.subscriptions {
		channels = append(channels, ch)
	}
	slices.Sort(channels)
	return channels
}

// readPump runs in a per-connection goroutine and handles client frames.
func (c *Client) readPump() {
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
				c.hub.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		c.handleMessage(message)
	}
}

func (c *Client) handleMessage(message []byte) {
	var msg WSMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.sendError("invalid_json", "Failed to parse message")
		return
	}

	switch msg.Type {
	case EventTypeSubscribe, EventTypeUnsubscribe:
		c.handleSubscription(msg)
	case EventTypePing:
		c.enqueue(newEnvelope(EventTypePong, nil))
	default:
		c.sendError("unknown_type", "Unknown message type: "+msg.Type)
	}
}

func (c *Client) handleSubscription(msg WSMessage) {
	if len(msg.Channels) == 0 {
		c.sendError("invalid_subscribe", "No channels specified")
		return
	}
	valid := make([]string, 0, len(msg.Channels))
	for _, ch := range msg.Channels {
		if validChannel(ch) {
			valid = append(valid, ch)
		}
	}
	if len(valid) == 0 {
		c.sendError("invalid_subscribe", "No known channels specified")
		return
	}
	if msg.Type == EventTypeSubscribe {
		c.Subscribe(valid...)
	} else {
		c.Unsubscribe(valid...)
	}
}

func (c *Client) sendError(code, message string) {
	c.enqueue(newEnvelope(EventTypeError, map[string]string{"code": code, "message": message}))
}

// enqueue sends a reply to this client only.
func (c *Client) enqueue(msg *WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.hub.direct <- directMessage{client: c, data: data}:
	case <-c.hub.done:
	}
}

// writePump runs in a per-connection goroutine and drains the send buffer.
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

// -----------------------------------------------------------------------------
// Hub
// -----------------------------------------------------------------------------

type channelMessage struct {
	channel string
	data    []byte
}

type directMessage struct {
	client *Client
	data   []byte
}

// Hub owns the connected clients. Every send goes through Run, so a client's
// send channel is only ever written and closed by one goroutine.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan channelMessage
	direct     chan directMessage
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	done       chan struct{}
	stopOnce   sync.Once
	dropped    int
	logger     *zap.Logger
}

// NewHub creates a hub. Call Run to start it.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan channelMessage, 256),
		direct:     make(chan directMessage, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.With(zap.String("component", "ws-hub")),
	}
}

// Run is the hub loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
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
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client connected", zap.Int("clients", n))

		case client := <-h.unregister:
			h.mu.Lock()
			if h.clients[client] {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client disconnected", zap.Int("clients", n))

		case msg := <-h.direct:
			h.mu.Lock()
			if h.clients[msg.client] {
				h.deliver(msg.client, msg.data)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if msg.channel == "" || client.IsSubscribed(msg.channel) {
					h.deliver(client, msg.data)
				}
			}
			h.mu.Unlock()
		}
	}
}

// deliver must be called with mu held. Slow clients are disconnected.
func (h *Hub) deliver(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		close(client.send)
		delete(h.clients, client)
		h.logger.Warn("dropping slow websocket client")
	}
}

// Stop ends Run and closes every client. Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many events were discarded because the hub was busy.
func (h *Hub) Dropped() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// Publish queues msg for clients subscribed to channel; an empty channel
// reaches every client. It never blocks: events are dropped when the hub
// queue is full so jobs are never slowed down by viewers.
func (h *Hub) Publish(channel string, msg *WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- channelMessage{channel: channel, data: data}:
	default:
		h.mu.Lock()
		h.dropped++
		h.mu.Unlock()
	}
	return nil
}

// -----------------------------------------------------------------------------
// HTTP Handler
// -----------------------------------------------------------------------------

// WebSocketHandler upgrades requests and attaches the connection to the hub.
type WebSocketHandler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a handler accepting the given origins. An
// empty list accepts same-origin requests only; "*" accepts any origin.
func NewWebSocketHandler(hub *Hub, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     makeOriginChecker(allowedOrigins),
		},
	}
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.hub.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(h.hub, conn)
	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// makeOriginChecker validates the Origin header against allowed.
func makeOriginChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[origin] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if set[origin] {
			return true
		}
		// Same host is always allowed.
		return origin == "http://"+r.Host || origin == "https://"+r.Host
	}
}
