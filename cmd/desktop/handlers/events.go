package handlers

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kimhsiao/lifetrack/backend/internal/bus"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsSendBuffer = 64
)

// EventSource is the subscribing half of the bus.
type EventSource interface {
	Subscribe(prefix string, bufSize int) (<-chan bus.Event, func())
}

// Envelope wraps every message pushed to a client.
type Envelope struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// clientMessage is what a client may send: subscribe, unsubscribe or ping.
type clientMessage struct {
	Action string   `json:"action"`
	Events []string `json:"events"`
}

type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *EventHub

	mu       sync.RWMutex
	prefixes map[string]bool
}

// EventHub forwards bus events to the connected WebSocket clients.
// A client receives every event until it subscribes to kind prefixes.
type EventHub struct {
	source   EventSource
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*wsClient
	cancel  func()
	done    chan struct{}
}

// NewEventHub creates a hub reading from source. Call Start to begin
// forwarding.
func NewEventHub(source EventSource, logger *zap.Logger) *EventHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHub{
		source:  source,
		logger:  logger,
		clients: make(map[string]*wsClient),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     localOrigin,
		},
	}
}

// localOrigin accepts requests without an Origin header and those from a
// loopback host.
func localOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	host := strings.TrimPrefix(strings.TrimPrefix(origin, "http://"), "https://")
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Start subscribes to every bus event. It is a no-op when already started.
func (h *EventHub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		return
	}
	events, cancel := h.source.Subscribe("", 256)
	h.cancel = cancel
	h.done = make(chan struct{})
	go h.run(events, h.done)
}

// Stop unsubscribes from the bus and disconnects every client.
func (h *EventHub) Stop() {
	h.mu.Lock()
	cancel, done := h.cancel, h.done
	h.cancel = nil
	h.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done

	h.mu.Lock()
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
	h.mu.Unlock()
}

// Clients returns the number of connected clients.
func (h *EventHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *EventHub) run(events <-chan bus.Event, done chan struct{}) {
	defer close(done)
	for evt := range events {
		h.Broadcast(evt)
	}
}

// Broadcast sends evt to every client interested in its kind. A client
// whose buffer is full is dropped.
func (h *EventHub) Broadcast(evt bus.Event) {
	msg, err := json.Marshal(Envelope{
		Type:      evt.Kind,
		Data:      evt.Payload,
		Timestamp: evt.Timestamp.Unix(),
	})
	if err != nil {
		h.logger.Warn("failed to marshal event", zap.String("kind", evt.Kind), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		if !c.wants(evt.Kind) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			delete(h.clients, id)
			close(c.send)
			h.logger.Warn("websocket client too slow, dropped", zap.String("client", id))
		}
	}
}

func (h *EventHub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", zap.String("client", c.id), zap.Int("total", n))
}

func (h *EventHub) unregister(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client disconnected", zap.String("client", c.id), zap.Int("total", n))
}

// ServeHTTP handles GET /events by upgrading to a WebSocket.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &wsClient{
		id:       uuid.NewString(),
		conn:     conn,
		send:     make(chan []byte, wsSendBuffer),
		hub:      h,
		prefixes: make(map[string]bool),
	}
	h.register(c)

	go c.writePump()
	go c.readPump()
}

func (c *wsClient) wants(kind string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.prefixes) == 0 {
		return true
	}
	for p := range c.prefixes {
		if strings.HasPrefix(kind, p) {
			return true
		}
	}
	return false
}

// reply queues msg unless the client has already been dropped.
func (c *wsClient) reply(env Envelope) {
	msg, err := json.Marshal(env)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c.id]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("websocket read error", zap.String("client", c.id), zap.Error(err))
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.hub.logger.Debug("invalid websocket message", zap.String("client", c.id), zap.Error(err))
			continue
		}

		switch msg.Action {
		case "subscribe":
			c.mu.Lock()
			for _, p := range msg.Events {
				c.prefixes[p] = true
			}
			c.mu.Unlock()
			c.reply(Envelope{Type: "subscribe_ack", Data: msg.Events, Timestamp: time.Now().Unix()})
		case "unsubscribe":
			c.mu.Lock()
			for _, p := range msg.Events {
				delete(c.prefixes, p)
			}
			c.mu.Unlock()
		case "ping":
			c.reply(Envelope{Type: "pong", Timestamp: time.Now().Unix()})
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
