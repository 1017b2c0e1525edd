// Package notifysvc delivers notifications: live over websockets, persisted in a feed and
// mailed when urgent.
package notifysvc

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/trezcool/pmajay/core"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

type client struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

// close stops the writer. send is never closed so concurrent Notify calls cannot panic.
func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// Hub keeps the open websocket connections per user and pushes notifications to them.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*client]struct{}
	closed   bool
	wg       sync.WaitGroup
	upgrader websocket.Upgrader
	logger   core.Logger
}

var _ core.Notifier = (*Hub)(nil)

func NewHub(logger core.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the API is served to a separate frontend origin and authenticates with a JWT
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// ServeWS upgrades the request and streams the notifications of userID until the peer goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return errors.Wrap(err, "upgrading connection")
	}

	c := &client{userID: userID, conn: conn, send: make(chan []byte, sendBuffer), done: make(chan struct{})}
	if !h.register(c) {
		_ = conn.Close()
		return core.NewShutdownError("notification hub closed")
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.writePump(c)
	}()
	h.readPump(c)
	return nil
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	if h.clients[c.userID] == nil {
		h.clients[c.userID] = make(map[*client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if conns, ok := h.clients[c.userID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.clients, c.userID)
		}
	}
	h.mu.Unlock()
	c.close()
}

// readPump discards inbound frames; it only exists to process pings, pongs and close frames.
func (h *Hub) readPump(c *client) {
	defer h.unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket closed", err, map[string]interface{}{"user_id": c.userID})
			}
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
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
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

// Notify pushes n to every open connection of its recipient. Slow connections are dropped.
func (h *Hub) Notify(_ context.Context, n core.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return errors.Wrap(err, "encoding notification")
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[n.RecipientID] {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("dropping slow websocket client", map[string]interface{}{"user_id": c.userID})
			c.close()
		}
	}
	return nil
}

// Connected reports how many connections userID has open.
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Close disconnects every client and waits for their writers to exit.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for _, conns := range h.clients {
		for c := range conns {
			c.close()
		}
	}
	h.clients = make(map[string]map[*client]struct{})
	h.mu.Unlock()
	h.wg.Wait()
}
