package mockserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/matheus3301/koichat/internal/chat"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// hub tracks realtime clients by the conversation pair they subscribed to.
type hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	log     *zap.Logger
}

type client struct {
	hub    *hub
	conn   *websocket.Conn
	userID int64
	send   chan chat.Frame
	done   chan struct{}
	closed atomic.Bool

	mu   sync.Mutex
	pair *pairKey
}

func newHub(log *zap.Logger) *hub {
	return &hub{clients: make(map[*client]struct{}), log: log}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", zap.Error(err))
		return
	}
	c := &client{
		hub:    s.hub,
		conn:   conn,
		userID: userFrom(r),
		send:   make(chan chat.Frame, sendBufferSize),
		done:   make(chan struct{}),
	}
	s.hub.mu.Lock()
	s.hub.clients[c] = struct{}{}
	s.hub.mu.Unlock()

	go c.writeLoop()
	c.readLoop()
}

func (h *hub) deliver(msg chat.Message) {
	k := pairOf(msg.SenderID, msg.ReceiverID)
	frame := chat.Frame{Type: chat.FrameMessage, Payload: &msg}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if p := c.subscribed(); p != nil && *p == k {
			c.push(frame)
		}
	}
}

func (h *hub) count(k pairKey) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.clients {
		if p := c.subscribed(); p != nil && *p == k {
			n++
		}
	}
	return n
}

func (h *hub) closeAll() {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		c.close()
	}
}

func (c *client) subscribed() *pairKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pair
}

func (c *client) readLoop() {
	defer c.close()
	c.conn.SetReadLimit(1 << 20)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("websocket read", zap.Error(err), zap.Int64("user_id", c.userID))
			}
			return
		}
		var f chat.Frame
		if err := json.Unmarshal(payload, &f); err != nil {
			continue
		}
		if f.Type == chat.FrameSubscribe && f.ReceiverID != 0 {
			k := pairOf(c.userID, f.ReceiverID)
			c.mu.Lock()
			c.pair = &k
			c.mu.Unlock()
			c.hub.log.Debug("subscribed", zap.Int64("user_id", c.userID), zap.Int64("receiver_id", f.ReceiverID))
		}
	}
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case <-c.done:
			return
		case f := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(wireFrame(f)); err != nil {
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

func (c *client) push(f chat.Frame) {
	if c.closed.Load() {
		return
	}
	select {
	case c.send <- f:
	default:
		// Slow reader; drop rather than block the sender.
	}
}

func (c *client) close() {
	if c.closed.Swap(true) {
		return
	}
	c.hub.mu.Lock()
	delete(c.hub.clients, c)
	c.hub.mu.Unlock()
	close(c.done)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
	_ = c.conn.Close()
}

type wireFrameJSON struct {
	Type    string       `json:"type"`
	Payload *wireMessage `json:"payload,omitempty"`
}

func wireFrame(f chat.Frame) wireFrameJSON {
	out := wireFrameJSON{Type: f.Type}
	if f.Payload != nil {
		w := toWire(*f.Payload)
		out.Payload = &w
	}
	return out
}
