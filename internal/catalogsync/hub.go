package catalogsync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 8
)

// FrameType tags every websocket message.
const FrameType = "catalog_updated"

// Frame is the JSON message sent to browsers.
type Frame struct {
	Type string `json:"type"`
	Signal
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub pushes catalog signals to connected websocket clients. It is the one
// channel that reaches other browser tabs and windows.
type Hub struct {
	broker     Broker
	initial    func(ctx context.Context) (Signal, error)
	clients    map[string]*client
	register   chan *client
	unregister chan *client
	done       chan struct{}
	mu         sync.RWMutex

	upgrader websocket.Upgrader
	allowAll bool
	origins  []string
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithOrigins lets browsers on the given origins connect, using the same
// patterns as the HTTP CORS settings (e.g. "http://localhost:*"). Requests
// without an Origin header and same-host requests are always accepted.
func WithOrigins(allowAll bool, patterns []string) HubOption {
	return func(h *Hub) {
		h.allowAll = allowAll
		for _, p := range patterns {
			h.origins = append(h.origins, strings.ToLower(p))
		}
	}
}

// NewHub creates a hub fed by broker. When initial is non-nil each new
// client first receives the signal it returns.
func NewHub(broker Broker, initial func(ctx context.Context) (Signal, error), opts ...HubOption) *Hub {
	h := &Hub{
		broker:     broker,
		initial:    initial,
		clients:    make(map[string]*client),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowAll {
		return true
	}
	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	origin = strings.ToLower(origin)
	for _, p := range h.origins {
		if p == "*" {
			return true
		}
		if ok, _ := doublestar.Match(p, origin); ok {
			return true
		}
	}
	return false
}

// Run relays broker signals to clients until ctx ends, then closes every
// connection.
func (h *Hub) Run(ctx context.Context) {
	signals, cancel := h.broker.Subscribe(ctx)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			close(h.done)
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			h.mu.Unlock()
		case c := <-h.unregister:
			h.drop(c)
		case s, ok := <-signals:
			if !ok {
				signals = nil
				continue
			}
			h.broadcast(s)
		}
	}
}

// Wait blocks until Run has returned.
func (h *Hub) Wait() { <-h.done }

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and keeps the connection until the client
// goes away or the hub stops.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Warn("websocket upgrade", zap.Error(err))
		return
	}

	c := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, sendBuffer)}
	if h.initial != nil {
		if s, err := h.initial(r.Context()); err == nil {
			if data, err := encodeFrame(s); err == nil {
				c.send <- data
			}
		} else {
			zap.L().Warn("loading initial catalog frame", zap.Error(err))
		}
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	c.readPump()

	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) broadcast(s Signal) {
	data, err := encodeFrame(s)
	if err != nil {
		zap.L().Warn("encoding catalog frame", zap.Error(err))
		return
	}

	h.mu.RLock()
	var slow []*client
	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		zap.L().Warn("dropping slow websocket client", zap.String("client_id", c.id))
		h.drop(c)
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		close(c.send)
		delete(h.clients, id)
	}
}

func encodeFrame(s Signal) ([]byte, error) {
	return json.Marshal(Frame{Type: FrameType, Signal: s})
}

// writePump owns writes to the connection. It exits when send is closed.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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

// readPump discards client messages and returns when the connection fails.
func (c *client) readPump() {
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Debug("websocket read", zap.Error(err))
			}
			return
		}
	}
}
