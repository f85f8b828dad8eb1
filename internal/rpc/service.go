package rpc

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/matheus3301/koichat/internal/backend"
	"github.com/matheus3301/koichat/internal/bus"
	"github.com/matheus3301/koichat/internal/chat"
	"github.com/matheus3301/koichat/internal/contacts"
	"github.com/matheus3301/koichat/internal/conversation"
	"github.com/matheus3301/koichat/internal/status"
	"github.com/matheus3301/koichat/internal/store"
)

// DefaultNamespaces are streamed by WatchEvents when the request names none.
var DefaultNamespaces = []string{"chat.", "conversation.", "auth."}

const (
	recentLimit     = 10
	watchBufferSize = 256
)

// Realtime is the transport shared by every controller of the daemon.
type Realtime interface {
	conversation.Transport
	Connected() bool
}

// Deps are the collaborators of a Service.
type Deps struct {
	Profile   string
	Bus       *bus.Bus
	Store     *store.DB
	API       *backend.Client
	Transport Realtime
	Options   conversation.Options
	Logger    *zap.Logger
}

// Service implements ChatServer. It holds one conversation controller for
// the signed-in identity and replaces it on login.
type Service struct {
	profile   string
	startedAt time.Time
	bus       *bus.Bus
	db        *store.DB
	api       *backend.Client
	transport Realtime
	opts      conversation.Options
	log       *zap.Logger

	mu       sync.Mutex
	ctrl     *conversation.Controller
	contacts *contacts.Directory
}

var _ ChatServer = (*Service)(nil)

// NewService creates a signed-out service.
func NewService(d Deps) *Service {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		profile:   d.Profile,
		startedAt: time.Now(),
		bus:       d.Bus,
		db:        d.Store,
		api:       d.API,
		transport: d.Transport,
		opts:      d.Options,
		log:       log,
	}
}

// Restore signs in with the credentials stored for the profile, if any.
// Credentials saved against another API URL are discarded.
func (s *Service) Restore() error {
	creds, err := s.db.LoadCredentials()
	if err != nil {
		return err
	}
	if creds == nil || !creds.Identity.Valid() {
		s.log.Info("no stored credentials, login required")
		return nil
	}
	if creds.APIURL != "" && creds.APIURL != s.api.BaseURL() {
		s.log.Warn("stored credentials belong to another backend, discarding",
			zap.String("saved_api_url", creds.APIURL), zap.String("api_url", s.api.BaseURL()))
		return s.db.ClearCredentials()
	}
	s.activate(creds.Identity)
	s.log.Info("session restored", zap.Int64("user_id", creds.Identity.UserID))
	return nil
}

// Shutdown closes the open conversation.
func (s *Service) Shutdown() {
	if ctrl := s.swap(nil, nil); ctrl != nil {
		ctrl.Close()
	}
}

func (s *Service) activate(id chat.Identity) {
	authed := s.api.WithToken(id.Token)
	ctrl := conversation.New(id, authed, s.transport, s.bus, s.log, s.opts)
	dir := contacts.NewDirectory(authed, s.log)
	if old := s.swap(ctrl, dir); old != nil {
		old.Close()
	}
	s.bus.Emit(bus.KindIdentityChanged, accountOf(id))
}

func (s *Service) swap(ctrl *conversation.Controller, dir *contacts.Directory) *conversation.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.ctrl
	s.ctrl, s.contacts = ctrl, dir
	return old
}

func (s *Service) current() (*conversation.Controller, *contacts.Directory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctrl == nil {
		return nil, nil, ErrNotLoggedIn
	}
	return s.ctrl, s.contacts, nil
}

func (s *Service) GetStatus(_ context.Context, _ *Empty) (*Status, error) {
	st := &Status{
		Profile:  s.profile,
		APIURL:   s.api.BaseURL(),
		UptimeMs: time.Since(s.startedAt).Milliseconds(),
		State:    string(status.Idle),
		Realtime: s.transport.Connected(),
	}
	ctrl, _, err := s.current()
	if err != nil {
		return st, nil
	}
	st.LoggedIn = true
	st.Account = accountOf(ctrl.Identity())
	st.State = string(ctrl.State())
	if conv, ok := ctrl.Conversation(); ok {
		st.Conversation = &conv
	}
	return st, nil
}

func (s *Service) Login(ctx context.Context, req *LoginRequest) (*Status, error) {
	id, err := s.api.Login(ctx, strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		s.log.Warn("login failed", zap.String("username", req.Username), zap.Error(err))
		return nil, toStatus(err)
	}
	if err := s.db.SaveCredentials(id, s.api.BaseURL()); err != nil {
		s.log.Warn("could not persist credentials", zap.Error(err))
	}
	s.activate(id)
	s.log.Info("logged in", zap.Int64("user_id", id.UserID), zap.String("role", id.Role))
	return s.GetStatus(ctx, &Empty{})
}

func (s *Service) Logout(_ context.Context, _ *Empty) (*Empty, error) {
	if ctrl := s.swap(nil, nil); ctrl != nil {
		ctrl.Close()
	}
	if err := s.db.ClearCredentials(); err != nil {
		return nil, toStatus(err)
	}
	if err := s.db.ClearRecent(); err != nil {
		s.log.Warn("could not clear recent conversations", zap.Error(err))
	}
	s.bus.Emit(bus.KindIdentityChanged, (*Account)(nil))
	s.log.Info("logged out")
	return &Empty{}, nil
}

func (s *Service) ListContacts(ctx context.Context, req *ContactsRequest) (*ContactsResponse, error) {
	_, dir, err := s.current()
	if err != nil {
		return nil, toStatus(err)
	}
	if req.Reload {
		_, err = dir.Reload(ctx)
	} else {
		_, err = dir.Load(ctx)
	}
	if err != nil {
		s.bus.Notify(bus.NoticeError, "Could not load contacts: "+err.Error())
		return nil, toStatus(err)
	}
	resp := &ContactsResponse{Contacts: dir.Filter(req.Query)}
	recent, err := s.db.ListRecent(recentLimit)
	if err != nil {
		s.log.Warn("list recent conversations", zap.Error(err))
	} else {
		resp.Recent = recentToWire(recent)
	}
	return resp, nil
}

func (s *Service) SelectConversation(ctx context.Context, req *SelectRequest) (*View, error) {
	if req.ReceiverID == 0 {
		return nil, grpcstatus.Error(codes.InvalidArgument, "receiver id is required")
	}
	ctrl, dir, err := s.current()
	if err != nil {
		return nil, toStatus(err)
	}
	name := req.ReceiverName
	if name == "" {
		if !dir.Loaded() {
			if _, err := dir.Load(ctx); err != nil {
				s.log.Debug("contacts unavailable for name lookup", zap.Error(err))
			}
		}
		if c, ok := dir.Find(req.ReceiverID); ok {
			name = c.DisplayName()
		}
	}

	err = ctrl.SelectConversation(ctx, req.ReceiverID, name)
	if conv, ok := ctrl.Conversation(); ok && conv.ReceiverID == req.ReceiverID {
		if terr := s.db.TouchRecent(conv.ReceiverID, conv.ReceiverName); terr != nil {
			s.log.Warn("record recent conversation", zap.Error(terr))
		}
	}
	if err != nil {
		return nil, toStatus(err)
	}
	v := viewToWire(ctrl.View())
	return &v, nil
}

func (s *Service) LoadOlder(ctx context.Context, _ *Empty) (*OlderResponse, error) {
	ctrl, _, err := s.current()
	if err != nil {
		return nil, toStatus(err)
	}
	issued, err := ctrl.OnScrollTop(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &OlderResponse{Issued: issued, View: viewToWire(ctrl.View())}, nil
}

func (s *Service) GetView(_ context.Context, _ *Empty) (*View, error) {
	ctrl, _, err := s.current()
	if err != nil {
		return nil, toStatus(err)
	}
	v := viewToWire(ctrl.View())
	return &v, nil
}

func (s *Service) SendMessage(ctx context.Context, req *SendRequest) (*View, error) {
	ctrl, _, err := s.current()
	if err != nil {
		return nil, toStatus(err)
	}
	if err := ctrl.SendMessage(ctx, req.Text); err != nil {
		return nil, toStatus(err)
	}
	v := viewToWire(ctrl.View())
	return &v, nil
}

func (s *Service) CloseConversation(_ context.Context, _ *Empty) (*Empty, error) {
	ctrl, _, err := s.current()
	if err != nil {
		return nil, toStatus(err)
	}
	ctrl.Close()
	return &Empty{}, nil
}

func (s *Service) WatchEvents(req *WatchRequest, stream EventSender) error {
	namespaces := req.Namespaces
	if len(namespaces) == 0 {
		namespaces = DefaultNamespaces
	}
	ch, unsub := s.bus.Subscribe("", watchBufferSize)
	defer unsub()

	ctx := stream.Context()
	for {
		select {
		case evt := <-ch:
			if !matchesAny(evt.Kind, namespaces) {
				continue
			}
			env, err := s.envelope(evt)
			if err != nil {
				s.log.Warn("dropping unencodable event", zap.String("kind", evt.Kind), zap.Error(err))
				continue
			}
			if err := stream.Send(env); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Service) envelope(evt bus.Event) (*Envelope, error) {
	env := &Envelope{
		EventID:          uuid.NewString(),
		Profile:          s.profile,
		Kind:             evt.Kind,
		OccurredAtUnixMs: evt.Timestamp.UnixMilli(),
	}
	if evt.Payload != nil {
		raw, err := json.Marshal(evt.Payload)
		if err != nil {
			return nil, err
		}
		env.Payload = raw
	}
	return env, nil
}

func matchesAny(kind string, namespaces []string) bool {
	for _, ns := range namespaces {
		if strings.HasPrefix(kind, ns) {
			return true
		}
	}
	return false
}
