package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/matheus3301/koichat/internal/chat"
	"github.com/matheus3301/koichat/internal/transport"
)

const selfID = 1

var base = time.Date(2024, 10, 20, 9, 0, 0, 0, time.UTC)

type pageKey struct {
	receiver int64
	page     int
}

// fakeBackend serves one message per page and can hold or fail individual
// page requests.
type fakeBackend struct {
	mu        sync.Mutex
	totals    map[int64]int
	requests  []pageKey
	gates     map[pageKey]chan struct{}
	fetchErr  map[pageKey]error
	started   chan pageKey
	ignoreCtx bool

	sendErr error
	sent    []string
}

func newFakeBackend(totals map[int64]int) *fakeBackend {
	return &fakeBackend{
		totals:   totals,
		gates:    make(map[pageKey]chan struct{}),
		fetchErr: make(map[pageKey]error),
		started:  make(chan pageKey, 64),
	}
}

// hold blocks requests for page of receiver until the returned func is called.
func (f *fakeBackend) hold(receiver int64, page int) func() {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gates[pageKey{receiver, page}] = gate
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (f *fakeBackend) FetchMessages(ctx context.Context, receiverID int64, page int) (chat.Page, error) {
	k := pageKey{receiverID, page}
	f.mu.Lock()
	f.requests = append(f.requests, k)
	gate := f.gates[k]
	err := f.fetchErr[k]
	total := f.totals[receiverID]
	ignoreCtx := f.ignoreCtx
	f.mu.Unlock()

	f.started <- k
	if gate != nil {
		if ignoreCtx {
			<-gate
		} else {
			select {
			case <-gate:
			case <-ctx.Done():
				return chat.Page{}, ctx.Err()
			}
		}
	}
	if err != nil {
		return chat.Page{}, err
	}
	var content []chat.Message
	if page < total {
		content = []chat.Message{pageMessage(receiverID, page)}
	}
	return chat.Page{Content: content, TotalPages: total}, nil
}

func (f *fakeBackend) SendMessage(_ context.Context, receiverID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, fmt.Sprintf("%d:%s", receiverID, text))
	return nil
}

func (f *fakeBackend) requested() []pageKey {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pageKey(nil), f.requests...)
}

func (f *fakeBackend) sentMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func pageMessage(receiverID int64, page int) chat.Message {
	return chat.Message{
		SenderID:   receiverID,
		ReceiverID: selfID,
		Message:    fmt.Sprintf("r%d-p%d", receiverID, page),
		Datetime:   chat.At(base.Add(time.Duration(page) * time.Hour)),
	}
}

// fakeTransport records connects and keeps the latest handler.
type fakeTransport struct {
	mu          sync.Mutex
	handler     transport.Handler
	handlers    []transport.Handler
	peers       []int64
	disconnects int
	connectErr  error
	open        bool
}

func (t *fakeTransport) Connect(_ context.Context, token string, _, peerID int64, onMessage transport.Handler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if token == "" || peerID == 0 {
		return nil
	}
	if t.open {
		return transport.ErrSessionBusy
	}
	t.peers = append(t.peers, peerID)
	if t.connectErr != nil {
		return t.connectErr
	}
	t.handler = onMessage
	t.handlers = append(t.handlers, onMessage)
	t.open = true
	return nil
}

func (t *fakeTransport) Disconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.open {
		t.disconnects++
	}
	t.open = false
	t.handler = nil
}

func (t *fakeTransport) current() transport.Handler {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.handler
}

func (t *fakeTransport) isOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

// connected returns the handler passed to the i-th successful Connect.
func (t *fakeTransport) connected(i int) transport.Handler {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i >= len(t.handlers) {
		return nil
	}
	return t.handlers[i]
}
