package rpc

import (
	"context"
	"net"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"

	"github.com/matheus3301/koichat/internal/backend"
	"github.com/matheus3301/koichat/internal/bus"
	"github.com/matheus3301/koichat/internal/chat"
	"github.com/matheus3301/koichat/internal/conversation"
	"github.com/matheus3301/koichat/internal/mockserver"
	"github.com/matheus3301/koichat/internal/store"
	"github.com/matheus3301/koichat/internal/transport"
)

type harness struct {
	mock   *mockserver.Server
	db     *store.DB
	svc    *Service
	client *Client
	apiURL string
	wsURL  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mock := mockserver.New(mockserver.WithPageSize(2))
	ts := httptest.NewServer(mock.Handler())
	t.Cleanup(func() {
		mock.Close()
		ts.Close()
	})
	mock.AddUser(chat.Contact{ID: 1, FullName: "Koi Admin", Role: "Admin", Status: chat.StatusActive}, "admin", "pw")
	mock.AddUser(chat.Contact{ID: 2, FullName: "Alice", Role: "Member", Status: chat.StatusActive}, "alice", "pw")
	mock.AddUser(chat.Contact{ID: 3, FullName: "Bob", Role: "Member", Status: chat.StatusActive}, "bob", "pw")
	mock.AddUser(chat.Contact{ID: 4, FullName: "Carol", Role: "Member", Status: "Inactive"}, "carol", "pw")
	start := time.Date(2024, 10, 20, 9, 0, 0, 0, time.Local)
	for i := range 3 {
		mock.Seed(chat.Message{SenderID: 2, ReceiverID: 1, Message: string(rune('a' + i)), Datetime: chat.At(start.Add(time.Duration(i) * time.Minute))})
	}

	db, err := store.OpenMigrated(filepath.Join(t.TempDir(), "koichat.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	h := &harness{
		mock:   mock,
		db:     db,
		apiURL: ts.URL,
		wsURL:  "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
	}
	h.svc = h.newService(t)
	h.client = serve(t, h.svc)
	return h
}

func (h *harness) newService(t *testing.T) *Service {
	t.Helper()
	api, err := backend.New(h.apiURL, 5*time.Second, nil)
	if err != nil {
		t.Fatal(err)
	}
	svc := NewService(Deps{
		Profile:   "test",
		Bus:       bus.New(),
		Store:     h.db,
		API:       api,
		Transport: transport.New(transport.Config{URL: h.wsURL}, nil),
		Options:   conversation.Options{Location: time.Local},
		Logger:    zap.NewNop(),
	})
	t.Cleanup(svc.Shutdown)
	return svc
}

// serve exposes svc on a Unix socket and returns a client for it.
func serve(t *testing.T, svc *Service) *Client {
	t.Helper()
	// Short path to stay under the Unix socket length limit.
	dir, err := os.MkdirTemp("/tmp", "koichat-rpc-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	sock := filepath.Join(dir, "d.sock")

	lis, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatal(err)
	}
	srv := grpc.NewServer()
	RegisterChatServer(srv, svc)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	client, err := Dial(sock)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func ctxT(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSignedOutCalls(t *testing.T) {
	h := newHarness(t)
	ctx := ctxT(t)

	st, err := h.client.GetStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.LoggedIn || st.Profile != "test" || st.State != "IDLE" {
		t.Errorf("status = %+v, want signed-out IDLE for profile test", st)
	}

	_, err = h.client.ListContacts(ctx, "", false)
	if got := Code(err); got != codes.Unauthenticated {
		t.Errorf("ListContacts code = %v, want Unauthenticated", got)
	}
	_, err = h.client.GetView(ctx)
	if got := Code(err); got != codes.Unauthenticated {
		t.Errorf("GetView code = %v, want Unauthenticated", got)
	}
}

func TestLogin(t *testing.T) {
	h := newHarness(t)
	ctx := ctxT(t)

	if _, err := h.client.Login(ctx, "admin", "wrong"); Code(err) != codes.Unauthenticated {
		t.Errorf("bad password code = %v, want Unauthenticated", Code(err))
	}
	if _, err := h.client.Login(ctx, "alice", "pw"); Code(err) != codes.PermissionDenied {
		t.Errorf("member login code = %v, want PermissionDenied", Code(err))
	}

	st, err := h.client.Login(ctx, "admin", "pw")
	if err != nil {
		t.Fatal(err)
	}
	if !st.LoggedIn || st.Account == nil || st.Account.UserID != 1 {
		t.Fatalf("status = %+v, want logged in as 1", st)
	}

	creds, err := h.db.LoadCredentials()
	if err != nil {
		t.Fatal(err)
	}
	if creds == nil || creds.Identity.UserID != 1 || creds.APIURL != h.apiURL {
		t.Errorf("stored credentials = %+v", creds)
	}
}

func TestListContactsFilters(t *testing.T) {
	h := newHarness(t)
	ctx := ctxT(t)
	if _, err := h.client.Login(ctx, "admin", "pw"); err != nil {
		t.Fatal(err)
	}

	resp, err := h.client.ListContacts(ctx, "", false)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, c := range resp.Contacts {
		names = append(names, c.FullName)
	}
	if got := strings.Join(names, ","); got != "Koi Admin,Alice,Bob" {
		t.Errorf("contacts = %s, want Koi Admin,Alice,Bob", got)
	}

	resp, err = h.client.ListContacts(ctx, "ALI", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Contacts) != 1 || resp.Contacts[0].ID != 2 {
		t.Errorf("filtered contacts = %+v, want only Alice", resp.Contacts)
	}
}

func TestConversationFlow(t *testing.T) {
	h := newHarness(t)
	ctx := ctxT(t)
	if _, err := h.client.Login(ctx, "admin", "pw"); err != nil {
		t.Fatal(err)
	}

	v, err := h.client.SelectConversation(ctx, 2, "")
	if err != nil {
		t.Fatal(err)
	}
	if v.Conversation == nil || v.Conversation.ReceiverName != "Alice" {
		t.Errorf("conversation = %+v, want Alice resolved from the directory", v.Conversation)
	}
	if v.State != "ACTIVE" {
		t.Errorf("state = %s, want ACTIVE", v.State)
	}
	// 3 messages over pages of 2: the newest page holds only "c".
	if got := texts(v.Messages()); got != "c" {
		t.Errorf("messages = %q, want c", got)
	}
	if len(v.Items) == 0 || v.Items[0].Kind != "divider" || v.Items[0].Day != "2024-10-20" {
		t.Errorf("first item = %+v, want divider for 2024-10-20", v.Items)
	}

	older, err := h.client.LoadOlder(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !older.Issued || texts(older.View.Messages()) != "abc" {
		t.Errorf("older = issued %v, messages %q; want true, abc", older.Issued, texts(older.View.Messages()))
	}
	older, err = h.client.LoadOlder(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if older.Issued {
		t.Error("LoadOlder issued a request past the first page")
	}

	resp, err := h.client.ListContacts(ctx, "", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Recent) != 1 || resp.Recent[0].ReceiverID != 2 {
		t.Errorf("recent = %+v, want conversation with 2", resp.Recent)
	}

	if err := h.client.CloseConversation(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := h.client.SendMessage(ctx, "hi"); Code(err) != codes.FailedPrecondition {
		t.Errorf("send after close code = %v, want FailedPrecondition", Code(err))
	}
}

func TestWatchEventsStreamsMessages(t *testing.T) {
	h := newHarness(t)
	ctx := ctxT(t)
	if _, err := h.client.Login(ctx, "admin", "pw"); err != nil {
		t.Fatal(err)
	}

	stream, err := h.client.WatchEvents(ctx, "chat.message_arrived")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.client.SelectConversation(ctx, 2, "Alice"); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for h.mock.Subscribers(1, 2) != 1 {
		if time.Now().After(deadline) {
			t.Fatal("realtime subscription never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if _, err := h.client.SendMessage(ctx, "hello alice"); err != nil {
		t.Fatal(err)
	}

	env, err := stream.Recv()
	if err != nil {
		t.Fatal(err)
	}
	if env.Kind != bus.KindMessageArrived || env.EventID == "" || env.Profile != "test" {
		t.Errorf("envelope = %+v", env)
	}
	var arrived conversation.MessageArrived
	if err := env.Decode(&arrived); err != nil {
		t.Fatal(err)
	}
	if arrived.ReceiverID != 2 || arrived.Message.Message != "hello alice" {
		t.Errorf("payload = %+v", arrived)
	}
}

func TestRestoreAndLogout(t *testing.T) {
	h := newHarness(t)
	ctx := ctxT(t)
	if _, err := h.client.Login(ctx, "admin", "pw"); err != nil {
		t.Fatal(err)
	}

	restored := h.newService(t)
	if err := restored.Restore(); err != nil {
		t.Fatal(err)
	}
	st, err := restored.GetStatus(ctx, &Empty{})
	if err != nil {
		t.Fatal(err)
	}
	if !st.LoggedIn || st.Account.UserID != 1 {
		t.Errorf("restored status = %+v, want logged in as 1", st)
	}

	if err := h.client.Logout(ctx); err != nil {
		t.Fatal(err)
	}
	creds, err := h.db.LoadCredentials()
	if err != nil {
		t.Fatal(err)
	}
	if creds != nil {
		t.Errorf("credentials after logout = %+v, want none", creds)
	}
	st, err = h.client.GetStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.LoggedIn {
		t.Error("still logged in after Logout")
	}
}

func TestRestoreDiscardsForeignCredentials(t *testing.T) {
	h := newHarness(t)
	id := chat.Identity{UserID: 1, Token: "t", Role: "Admin"}
	if err := h.db.SaveCredentials(id, "http://elsewhere.example"); err != nil {
		t.Fatal(err)
	}
	if err := h.svc.Restore(); err != nil {
		t.Fatal(err)
	}
	if _, _, err := h.svc.current(); err != ErrNotLoggedIn {
		t.Errorf("current() error = %v, want ErrNotLoggedIn", err)
	}
	creds, err := h.db.LoadCredentials()
	if err != nil {
		t.Fatal(err)
	}
	if creds != nil {
		t.Errorf("foreign credentials kept: %+v", creds)
	}
}

func texts(msgs []chat.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(m.Message)
	}
	return b.String()
}
