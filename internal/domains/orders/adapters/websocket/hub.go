package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Apurer/go-order-saga/internal/domains/orders/domain"
	"github.com/Apurer/go-order-saga/internal/domains/orders/ports"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32

	actionRegister     = "REGISTER"
	messageRegistered  = "REGISTERED"
	registryOpsTimeout = 5 * time.Second
)

var _ ports.Transport = (*Hub)(nil)

type inboundFrame struct {
	Action string `json:"action"`
}

type registeredFrame struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connectionId"`
}

// Hub owns the live client connections of a gateway and pushes messages to them by id.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*client
	closed   bool
	wg       sync.WaitGroup
	upgrader websocket.Upgrader
	registry ports.ConnectionRegistry
	logger   *slog.Logger
	newID    func() string
	now      func() time.Time
}

// Option configures a Hub.
type Option func(*Hub)

// WithRegistry records connections on connect. Records are left in place on disconnect so a
// later push to a closed connection can still be traced back to when it was opened.
func WithRegistry(registry ports.ConnectionRegistry) Option {
	return func(h *Hub) {
		h.registry = registry
	}
}

// WithLogger sets the hub logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithCheckOrigin overrides the upgrade origin check. All origins are accepted by default.
func WithCheckOrigin(check func(r *http.Request) bool) Option {
	return func(h *Hub) {
		if check != nil {
			h.upgrader.CheckOrigin = check
		}
	}
}

// NewHub builds an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients: map[string]*client{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		newID:  uuid.NewString,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// ServeHTTP upgrades the request and registers the new connection under a fresh id.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "gateway shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	c := &client{
		id:   h.newID(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	if !h.register(r.Context(), c) {
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// PushToConnection queues data for the connection. An unknown or closing connection
// yields ports.ErrConnectionGone.
func (h *Hub) PushToConnection(ctx context.Context, connectionID string, data []byte) error {
	h.mu.RLock()
	c, ok := h.clients[connectionID]
	h.mu.RUnlock()
	if !ok {
		return ports.ErrConnectionGone
	}
	frame := append([]byte(nil), data...)
	select {
	case <-c.done:
		return ports.ErrConnectionGone
	default:
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ports.ErrConnectionGone
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect closes a connection by id.
func (h *Hub) Disconnect(connectionID string) error {
	h.mu.RLock()
	c, ok := h.clients[connectionID]
	h.mu.RUnlock()
	if !ok {
		return ports.ErrConnectionGone
	}
	h.unregister(c)
	return nil
}

// Has reports whether the connection is live on this hub.
func (h *Hub) Has(connectionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[connectionID]
	return ok
}

// Len returns the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and waits for their pumps to exit.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.unregister(c)
	}
	h.wg.Wait()
}

func (h *Hub) register(ctx context.Context, c *client) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.clients[c.id] = c
	h.wg.Add(2)
	h.mu.Unlock()

	if h.registry != nil {
		record, err := domain.NewConnectionRecord(c.id, h.now())
		if err == nil {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), registryOpsTimeout)
			err = h.registry.PutConnection(ctx, record)
			cancel()
		}
		if err != nil {
			h.logger.Error("failed to record connection", slog.String("connection.id", c.id), slog.String("error", err.Error()))
		}
	}
	h.logger.Info("client connected", slog.String("connection.id", c.id))
	return true
}

func (h *Hub) unregister(c *client) {
	c.once.Do(func() {
		h.mu.Lock()
		if current, ok := h.clients[c.id]; ok && current == c {
			delete(h.clients, c.id)
		}
		h.mu.Unlock()

		close(c.done)
		_ = c.conn.Close()

		// The registry record outlives the socket; the purger or the registry TTL removes it.
		h.logger.Info("client disconnected", slog.String("connection.id", c.id))
	})
}

type client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) readPump() {
	defer c.hub.wg.Done()
	defer c.hub.unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read failed", slog.String("connection.id", c.id), slog.String("error", err.Error()))
			}
			return
		}
		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.hub.logger.Debug("ignoring malformed frame", slog.String("connection.id", c.id))
			continue
		}
		if frame.Action == actionRegister {
			reply, _ := json.Marshal(registeredFrame{Type: messageRegistered, ConnectionID: c.id})
			select {
			case c.send <- reply:
			case <-c.done:
				return
			}
		}
	}
}

func (c *client) writePump() {
	defer c.hub.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.unregister(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.unregister(c)
				return
			}
		case <-c.done:
			return
		}
	}
}
