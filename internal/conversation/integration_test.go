package conversation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/koichat/internal/backend"
	"github.com/matheus3301/koichat/internal/bus"
	"github.com/matheus3301/koichat/internal/chat"
	"github.com/matheus3301/koichat/internal/mockserver"
	"github.com/matheus3301/koichat/internal/transport"
)

// TestEndToEndWithMockBackend drives a controller against the in-memory
// backend over real HTTP and websocket connections.
func TestEndToEndWithMockBackend(t *testing.T) {
	srv := mockserver.New(mockserver.WithPageSize(2))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	srv.AddUser(chat.Contact{ID: 1, FullName: "Koi Admin", Role: "Admin", Status: chat.StatusActive}, "admin", "pw")
	srv.AddUser(chat.Contact{ID: 2, FullName: "Alice", Role: "Member", Status: chat.StatusActive}, "alice", "pw")
	start := time.Date(2024, 10, 20, 9, 0, 0, 0, time.Local)
	for i := range 5 {
		srv.Seed(chat.Message{SenderID: 2, ReceiverID: 1, Message: string(rune('a' + i)), Datetime: chat.At(start.Add(time.Duration(i) * time.Minute))})
	}

	api, err := backend.New(ts.URL, 5*time.Second, nil)
	if err != nil {
		t.Fatal(err)
	}
	id, err := api.Login(context.Background(), "admin", "pw")
	if err != nil {
		t.Fatal(err)
	}
	api = api.WithToken(id.Token)

	b := bus.New()
	arrived, unsub := b.Subscribe(bus.KindMessageArrived, 4)
	defer unsub()

	sess := transport.New(transport.Config{URL: "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"}, nil)
	c := New(id, api, sess, b, nil, Options{})
	t.Cleanup(c.Close)

	if err := c.SelectConversation(context.Background(), 2, "Alice"); err != nil {
		t.Fatal(err)
	}
	// 5 messages over pages of 2: the newest page holds only "e".
	if got := texts(c.View().Messages); len(got) != 1 || got[0] != "e" {
		t.Fatalf("messages = %v, want [e]", got)
	}
	for range 2 {
		if _, err := c.OnScrollTop(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if got := strings.Join(texts(c.View().Messages), ""); got != "abcde" {
		t.Fatalf("messages = %q, want abcde", got)
	}
	if issued, _ := c.OnScrollTop(context.Background()); issued {
		t.Error("OnScrollTop() issued a request past page 0")
	}

	deadline := time.Now().Add(5 * time.Second)
	for srv.Subscribers(1, 2) != 1 {
		if time.Now().After(deadline) {
			t.Fatal("realtime subscription never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := c.SendMessage(context.Background(), "hello alice"); err != nil {
		t.Fatal(err)
	}
	select {
	case evt := <-arrived:
		if m := evt.Payload.(MessageArrived).Message; m.Message != "hello alice" || m.SenderID != 1 {
			t.Errorf("echoed message = %+v", m)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("sent message was never echoed")
	}
	if c.Input() != "" {
		t.Errorf("input = %q, want cleared", c.Input())
	}

	srv.FailNext("/chat", http.StatusInternalServerError)
	if err := c.SendMessage(context.Background(), "will fail"); err == nil {
		t.Fatal("expected send failure")
	}
	if c.Input() != "will fail" {
		t.Errorf("input = %q, want kept after failure", c.Input())
	}
}
