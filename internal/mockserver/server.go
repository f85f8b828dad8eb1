// Package mockserver is an in-memory implementation of the koi-auction chat
// backend: REST endpoints for login, users, message history and sending, and
// a websocket hub that echoes sent messages to both parties.
package mockserver

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/koichat/internal/chat"
)

// DefaultPageSize matches the backend's default page size for chat history.
const DefaultPageSize = 20

// localDateTime is the zone-less layout the backend uses for message times.
const localDateTime = "2006-01-02T15:04:05.000"

type account struct {
	password string
	contact  chat.Contact
}

type pairKey struct{ lo, hi int64 }

func pairOf(a, b int64) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a, b}
}

// Server holds the mock backend state.
type Server struct {
	mu       sync.Mutex
	accounts map[string]*account // username -> account
	order    []int64             // user listing order
	byID     map[int64]*account
	tokens   map[string]int64
	history  map[pairKey][]chat.Message
	failures map[string][]int
	hits     map[string]int

	pageSize int
	now      func() time.Time
	log      *zap.Logger
	hub      *hub
}

// Option configures a Server.
type Option func(*Server)

// WithPageSize sets the number of messages per history page.
func WithPageSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithClock overrides the time source used to stamp sent messages.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithLogger sets the server logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Server) { s.log = log }
}

// New creates an empty mock backend.
func New(opts ...Option) *Server {
	s := &Server{
		accounts: make(map[string]*account),
		byID:     make(map[int64]*account),
		tokens:   make(map[string]int64),
		history:  make(map[pairKey][]chat.Message),
		failures: make(map[string][]int),
		hits:     make(map[string]int),
		pageSize: DefaultPageSize,
		now:      time.Now,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = newHub(s.log)
	return s
}

// AddUser registers an account. Users appear in listings in the order they
// were added.
func (s *Server) AddUser(c chat.Contact, username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := &account{password: password, contact: c}
	s.accounts[username] = a
	if _, ok := s.byID[c.ID]; !ok {
		s.order = append(s.order, c.ID)
	}
	s.byID[c.ID] = a
}

// IssueToken returns a valid bearer token for userID without going through
// login.
func (s *Server) IssueToken(userID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok := uuid.NewString()
	s.tokens[tok] = userID
	return tok
}

// Seed appends messages to the stored history of their pair, oldest first.
func (s *Server) Seed(msgs ...chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		k := pairOf(m.SenderID, m.ReceiverID)
		s.history[k] = append(s.history[k], m)
	}
}

// Push delivers msg to realtime subscribers of its pair without storing it.
func (s *Server) Push(msg chat.Message) {
	s.hub.deliver(msg)
}

// FailNext makes the next request to route answer with status. route is the
// request path, for example "/chat". Calls queue up.
func (s *Server) FailNext(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], status)
}

// Hits returns how many requests reached route.
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// Subscribers returns the number of realtime connections subscribed to the
// conversation between a and b.
func (s *Server) Subscribers(a, b int64) int {
	return s.hub.count(pairOf(a, b))
}

// Handler returns the HTTP handler serving the REST API and /ws.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.track)

	r.Post("/security/login", s.handleLogin)
	r.Group(func(r chi.Router) {
		r.Use(s.auth)
		r.Get("/admin-manager/users/getAll", s.handleUsers)
		r.Get("/chat/messages", s.handleMessages)
		r.Post("/chat", s.handleSend)
		r.Get("/ws", s.handleWebSocket)
	})
	return r
}

// Close disconnects all realtime clients.
func (s *Server) Close() {
	s.hub.closeAll()
}

// track counts requests and applies queued failures.
func (s *Server) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		var fail int
		if q := s.failures[r.URL.Path]; len(q) > 0 {
			fail, s.failures[r.URL.Path] = q[0], q[1:]
		}
		s.mu.Unlock()

		if fail != 0 {
			writeError(w, fail, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type loginRequest struct {
	UserName string `json:"userName"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string `json:"token"`
	Role     string `json:"role"`
	UserID   int64  `json:"userId"`
	FullName string `json:"fullName"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	s.mu.Lock()
	a, ok := s.accounts[req.UserName]
	if !ok || a.password != req.Password {
		s.mu.Unlock()
		writeError(w, http.StatusUnauthorized, "bad credentials")
		return
	}
	tok := uuid.NewString()
	s.tokens[tok] = a.contact.ID
	resp := loginResponse{Token: tok, Role: a.contact.Role, UserID: a.contact.ID, FullName: a.contact.FullName}
	s.mu.Unlock()

	s.log.Info("login", zap.String("user", req.UserName), zap.Int64("user_id", resp.UserID))
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUsers(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	users := make([]chat.Contact, 0, len(s.order))
	for _, id := range s.order {
		users = append(users, s.byID[id].contact)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, users)
}

type pageResponse struct {
	Content       []wireMessage `json:"content"`
	TotalPages    int           `json:"totalPages"`
	TotalElements int           `json:"totalElements"`
	Number        int           `json:"number"`
	Size          int           `json:"size"`
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	self := userFrom(r)
	receiverID, err := strconv.ParseInt(r.URL.Query().Get("receiverId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid receiverId")
		return
	}
	page := 0
	if p := r.URL.Query().Get("page"); p != "" {
		page, err = strconv.Atoi(p)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid page")
			return
		}
	}
	if page < 0 {
		writeError(w, http.StatusBadRequest, "page index must not be less than zero")
		return
	}

	s.mu.Lock()
	all := s.history[pairOf(self, receiverID)]
	total := (len(all) + s.pageSize - 1) / s.pageSize
	resp := pageResponse{
		Content:       []wireMessage{},
		TotalPages:    total,
		TotalElements: len(all),
		Number:        page,
		Size:          s.pageSize,
	}
	start := page * s.pageSize
	if start < len(all) {
		end := min(start+s.pageSize, len(all))
		for _, m := range all[start:end] {
			resp.Content = append(resp.Content, toWire(m))
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

type sendRequest struct {
	ReceiverID int64  `json:"receiverId"`
	Message    string `json:"message"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	self := userFrom(r)
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if strings.TrimSpace(req.Message) == "" || req.ReceiverID == 0 {
		writeError(w, http.StatusBadRequest, "receiverId and message are required")
		return
	}

	msg := chat.Message{
		SenderID:   self,
		ReceiverID: req.ReceiverID,
		Message:    req.Message,
		Datetime:   chat.At(s.now()),
	}
	s.Seed(msg)
	s.hub.deliver(msg)
	w.WriteHeader(http.StatusOK)
}

// wireMessage mirrors the backend's JSON for a message, with a zone-less
// local date-time.
type wireMessage struct {
	SenderID   int64  `json:"senderId"`
	ReceiverID int64  `json:"receiverId"`
	Message    string `json:"message"`
	Datetime   string `json:"datetime"`
}

func toWire(m chat.Message) wireMessage {
	return wireMessage{
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Message:    m.Message,
		Datetime:   m.Datetime.In(time.Local).Format(localDateTime),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
