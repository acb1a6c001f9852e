package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"whaleflow-lab/internal/domain"
	"whaleflow-lab/internal/logging"
	"whaleflow-lab/internal/observability"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	clientSendSize = 16
)

// EventCompositeSignal is the event name of a pushed composite signal.
const EventCompositeSignal = "composite_signal"

// Event is the envelope of every websocket message.
type Event struct {
	Event   string                  `json:"event"`
	Payload *domain.CompositeSignal `json:"payload"`
}

type client struct {
	conn  *websocket.Conn
	send  chan []byte
	token string // empty receives every token
}

// Hub fans composite signals out to websocket subscribers.
// A subscriber whose buffer is full misses messages instead of blocking others.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub creates a new Hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:  logging.OrNop(logger),
		clients: make(map[*client]struct{}),
	}
}

// Broadcast implements composite.Broadcaster.
func (h *Hub) Broadcast(sig *domain.CompositeSignal) {
	data, err := json.Marshal(Event{Event: EventCompositeSignal, Payload: sig})
	if err != nil {
		h.logger.Error("marshal broadcast", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.token != "" && !strings.EqualFold(c.token, sig.Token) {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.logger.Debug("subscriber buffer full, dropping message")
		}
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams signals until the peer goes away.
// The optional ?token= query restricts the stream to one token.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		conn:  conn,
		send:  make(chan []byte, clientSendSize),
		token: strings.ToUpper(r.URL.Query().Get("token")),
	}
	h.register(c)

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	observability.SetWSSubscribers(n)
	h.logger.Info("websocket subscriber connected", zap.Int("subscribers", n), zap.String("token", c.token))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	n := len(h.clients)
	h.mu.Unlock()
	observability.SetWSSubscribers(n)
	h.logger.Info("websocket subscriber disconnected", zap.Int("subscribers", n))
}

// readPump discards inbound messages and detects disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
