// Package transport owns the realtime websocket used by the active
// conversation.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/matheus3301/koichat/internal/chat"
)

const (
	// DefaultPingInterval is how often a ping is written when Config leaves
	// PingInterval unset.
	DefaultPingInterval = 30 * time.Second
	// DefaultPongWait is how long the session waits for any frame or pong
	// before it treats the connection as dead.
	DefaultPongWait = 60 * time.Second

	writeWait    = 10 * time.Second
	maxFrameSize = 1 << 20
)

// ErrSessionBusy is returned by Connect while a session is already open.
var ErrSessionBusy = errors.New("transport: session already open")

// Handler receives inbound messages for the subscribed conversation.
type Handler func(chat.Message)

// Config describes the realtime endpoint.
type Config struct {
	URL          string
	PingInterval time.Duration
	PongWait     time.Duration
}

// Session is a single realtime connection scoped to one conversation.
// At most one connection is open at a time.
type Session struct {
	cfg    Config
	dialer *websocket.Dialer
	log    *zap.Logger

	mu     sync.Mutex
	active *conn
}

type conn struct {
	ws      *websocket.Conn
	self    int64
	peer    int64
	handler Handler
	cancel  context.CancelFunc
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// New creates a Session for the given endpoint.
func New(cfg Config, log *zap.Logger) *Session {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.PongWait <= cfg.PingInterval {
		cfg.PongWait = cfg.PingInterval * 2
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 15 * time.Second,
		},
		log: log,
	}
}

// Connected reports whether a connection is currently open.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// Connect opens the realtime channel for the conversation between selfID and
// peerID and subscribes to it. onMessage is called from a single goroutine,
// once per inbound message of that conversation, in arrival order.
//
// Connect is a no-op when token is empty or peerID is zero.
func (s *Session) Connect(ctx context.Context, token string, selfID, peerID int64, onMessage Handler) error {
	if token == "" || peerID == 0 {
		s.log.Debug("connect skipped", zap.Bool("has_token", token != ""), zap.Int64("peer_id", peerID))
		return nil
	}

	dctx, cancel := context.WithCancel(ctx)
	c := &conn{
		self:    selfID,
		peer:    peerID,
		handler: onMessage,
		cancel:  cancel,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	s.mu.Lock()
	if s.active != nil {
		s.mu.Unlock()
		cancel()
		return ErrSessionBusy
	}
	s.active = c
	s.mu.Unlock()

	ws, err := s.dial(dctx, token, peerID)
	if err == nil {
		err = ws.WriteJSON(chat.Frame{Type: chat.FrameSubscribe, SenderID: selfID, ReceiverID: peerID})
		if err != nil {
			_ = ws.Close()
			err = fmt.Errorf("subscribe: %w", err)
		}
	}

	s.mu.Lock()
	current := s.active == c
	if err != nil || !current {
		if current {
			s.active = nil
		}
		s.mu.Unlock()
		if ws != nil && err == nil {
			_ = ws.Close()
		}
		cancel()
		close(c.done)
		if err != nil {
			return err
		}
		// Disconnected while dialing.
		return nil
	}
	c.ws = ws
	s.mu.Unlock()

	ws.SetReadLimit(maxFrameSize)
	_ = ws.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	go s.pingLoop(c)
	go s.readLoop(c)

	s.log.Info("realtime connected", zap.Int64("self_id", selfID), zap.Int64("peer_id", peerID))
	return nil
}

// Disconnect closes the open connection, if any. It waits for the read loop
// to exit, so the handler is never invoked after Disconnect returns. It is
// safe to call repeatedly.
func (s *Session) Disconnect() {
	s.mu.Lock()
	c := s.active
	s.active = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	c.close()
	<-c.done
	s.log.Info("realtime disconnected", zap.Int64("peer_id", c.peer))
}

func (s *Session) dial(ctx context.Context, token string, peerID int64) (*websocket.Conn, error) {
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse realtime url: %w", err)
	}
	q := u.Query()
	q.Set("receiverId", strconv.FormatInt(peerID, 10))
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	ws, resp, err := s.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", u.Redacted(), err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}
	return ws, nil
}

func (s *Session) readLoop(c *conn) {
	defer func() {
		c.close()
		s.mu.Lock()
		if s.active == c {
			s.active = nil
		}
		s.mu.Unlock()
		close(c.done)
	}()

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.stop:
			default:
				s.log.Warn("realtime read ended", zap.Error(err), zap.Int64("peer_id", c.peer))
			}
			return
		}
		var f chat.Frame
		if err := json.Unmarshal(payload, &f); err != nil {
			s.log.Debug("dropping malformed frame", zap.Error(err))
			continue
		}
		if f.Type != chat.FrameMessage || f.Payload == nil {
			continue
		}
		if !f.Payload.Between(c.self, c.peer) {
			continue
		}
		select {
		case <-c.stop:
			return
		default:
		}
		if c.handler != nil {
			c.handler(*f.Payload)
		}
	}
}

func (s *Session) pingLoop(c *conn) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				s.log.Debug("ping failed", zap.Error(err))
				return
			}
		}
	}
}

func (c *conn) close() {
	c.once.Do(func() {
		close(c.stop)
		c.cancel()
		if c.ws != nil {
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			_ = c.ws.Close()
		}
	})
}
