package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/koichat/internal/chat"
)

// Roles allowed to sign in to the admin client.
const (
	RoleAdmin = "Admin"
	RoleStaff = "Staff"
)

// Client talks to the koi-auction REST API. A Client is immutable; use
// WithToken to derive an authenticated copy.
type Client struct {
	base  *url.URL
	http  *http.Client
	token string
	log   *zap.Logger
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, timeout time.Duration, log *zap.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api url %q: scheme must be http or https", baseURL)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		base: u,
		http: &http.Client{Timeout: timeout},
		log:  log,
	}, nil
}

// WithToken returns a copy of c that sends token as a bearer credential.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Token returns the bearer token the client sends, if any.
func (c *Client) Token() string { return c.token }

// BaseURL returns the API root.
func (c *Client) BaseURL() string { return c.base.String() }

type loginRequest struct {
	UserName string `json:"userName"`
	Password string `json:"password"`
}

// Login exchanges credentials for an identity. Only Admin and Staff accounts
// are accepted.
func (c *Client) Login(ctx context.Context, username, password string) (chat.Identity, error) {
	var id chat.Identity
	err := c.do(ctx, "login", http.MethodPost, "/security/login", nil, loginRequest{UserName: username, Password: password}, &id)
	if err != nil {
		return chat.Identity{}, err
	}
	if id.Token == "" {
		return chat.Identity{}, &NetworkError{Op: "login", Err: errors.New("response carried no token")}
	}
	if id.Role != RoleAdmin && id.Role != RoleStaff {
		return chat.Identity{}, ErrAccessDenied
	}
	if id.Username == "" {
		id.Username = username
	}
	return id, nil
}

// ListUsers returns every user account known to the backend.
func (c *Client) ListUsers(ctx context.Context) ([]chat.Contact, error) {
	var users []chat.Contact
	if err := c.do(ctx, "list users", http.MethodGet, "/admin-manager/users/getAll", nil, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// FetchMessages returns one page of the conversation with receiverID.
func (c *Client) FetchMessages(ctx context.Context, receiverID int64, page int) (chat.Page, error) {
	q := url.Values{}
	q.Set("receiverId", strconv.FormatInt(receiverID, 10))
	q.Set("page", strconv.Itoa(page))

	var p chat.Page
	if err := c.do(ctx, "fetch messages", http.MethodGet, "/chat/messages", q, nil, &p); err != nil {
		return chat.Page{}, err
	}
	p.Index = page
	return p, nil
}

type sendRequest struct {
	ReceiverID int64  `json:"receiverId"`
	Message    string `json:"message"`
}

// SendMessage posts a message to receiverID. The message is delivered back to
// both parties over the realtime channel; nothing is returned here.
func (c *Client) SendMessage(ctx context.Context, receiverID int64, text string) error {
	return c.do(ctx, "send message", http.MethodPost, "/chat", nil, sendRequest{ReceiverID: receiverID, Message: text}, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in, out any) error {
	u := c.base.JoinPath(path)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.log.Debug("backend request",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	if resp.StatusCode == http.StatusUnauthorized {
		return &NetworkError{Op: op, Status: resp.StatusCode, Err: ErrUnauthenticated}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		text := strings.TrimSpace(string(msg))
		if text == "" {
			text = "empty body"
		}
		return &NetworkError{Op: op, Status: resp.StatusCode, Err: errors.New(text)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &NetworkError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
