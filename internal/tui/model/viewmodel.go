// Package model caches daemon state for the TUI and turns daemon events into
// refresh signals.
package model

import (
	"context"
	"errors"
	"io"
	"sync"

	"google.golang.org/grpc/codes"

	"github.com/matheus3301/koichat/internal/bus"
	"github.com/matheus3301/koichat/internal/chat"
	"github.com/matheus3301/koichat/internal/conversation"
	"github.com/matheus3301/koichat/internal/rpc"
	"github.com/matheus3301/koichat/internal/tui/ui"
)

// Daemon is the subset of the daemon client the TUI drives.
type Daemon interface {
	GetStatus(ctx context.Context) (*rpc.Status, error)
	Login(ctx context.Context, username, password string) (*rpc.Status, error)
	Logout(ctx context.Context) error
	ListContacts(ctx context.Context, query string, reload bool) (*rpc.ContactsResponse, error)
	SelectConversation(ctx context.Context, receiverID int64, receiverName string) (*rpc.View, error)
	LoadOlder(ctx context.Context) (*rpc.OlderResponse, error)
	GetView(ctx context.Context) (*rpc.View, error)
	SendMessage(ctx context.Context, text string) (*rpc.View, error)
	CloseConversation(ctx context.Context) error
}

// EventSource yields daemon events, as returned by rpc.Client.WatchEvents.
type EventSource interface {
	Recv() (*rpc.Envelope, error)
}

// Change flags what part of the cached state moved since the last
// TakeChanges.
type Change uint

const (
	ChangeStatus Change = 1 << iota
	ChangeContacts
	// ChangeView means the conversation was re-rendered in place.
	ChangeView
	// ChangeNewest means a conversation was opened or a message appended.
	ChangeNewest
	// ChangeOlder means an older page was prepended.
	ChangeOlder
)

// Has reports whether c includes flag.
func (c Change) Has(flag Change) bool { return c&flag != 0 }

// ViewModel caches state fetched from the daemon and signals UI refreshes.
type ViewModel struct {
	mu sync.RWMutex

	daemon   Daemon
	status   *rpc.Status
	contacts []chat.Contact
	recent   []rpc.RecentEntry
	query    string
	view     *rpc.View
	pending  Change

	Flash *ui.FlashModel

	refreshCh chan struct{}
}

// NewViewModel creates a new view model backed by the daemon client.
func NewViewModel(d Daemon) *ViewModel {
	return &ViewModel{
		daemon:    d,
		Flash:     ui.NewFlashModel(),
		refreshCh: make(chan struct{}, 1),
	}
}

// RefreshCh returns the channel that signals UI refresh.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

// TakeChanges returns and clears the pending change set.
func (vm *ViewModel) TakeChanges() Change {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	c := vm.pending
	vm.pending = 0
	return c
}

func (vm *ViewModel) mark(c Change) {
	vm.pending |= c
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

// Refresh fetches the daemon status.
func (vm *ViewModel) Refresh(ctx context.Context) error {
	st, err := vm.daemon.GetStatus(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.status = st
	if !st.LoggedIn {
		vm.forget()
	}
	vm.mark(ChangeStatus)
	return nil
}

// forget drops per-account state. Callers hold mu.
func (vm *ViewModel) forget() {
	if vm.contacts != nil || vm.view != nil {
		vm.contacts, vm.recent, vm.view, vm.query = nil, nil, nil, ""
		vm.mark(ChangeContacts | ChangeView)
	}
}

// Login signs the daemon in and loads the contact directory.
func (vm *ViewModel) Login(ctx context.Context, username, password string) error {
	st, err := vm.daemon.Login(ctx, username, password)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.status = st
	vm.mark(ChangeStatus)
	vm.mu.Unlock()
	return vm.LoadContacts(ctx, "", false)
}

// Logout signs the daemon out.
func (vm *ViewModel) Logout(ctx context.Context) error {
	if err := vm.daemon.Logout(ctx); err != nil {
		return err
	}
	vm.mu.Lock()
	vm.forget()
	vm.mu.Unlock()
	return vm.Refresh(ctx)
}

// LoadContacts fetches the directory filtered by query.
func (vm *ViewModel) LoadContacts(ctx context.Context, query string, reload bool) error {
	resp, err := vm.daemon.ListContacts(ctx, query, reload)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.contacts = resp.Contacts
	vm.recent = resp.Recent
	vm.query = query
	vm.mark(ChangeContacts)
	return nil
}

// Open selects the conversation with receiverID.
func (vm *ViewModel) Open(ctx context.Context, receiverID int64, receiverName string) error {
	v, err := vm.daemon.SelectConversation(ctx, receiverID, receiverName)
	if err != nil {
		return err
	}
	vm.setView(v, ChangeNewest)
	// The recent list moved; a failure here only affects the OPENED column.
	_ = vm.LoadContacts(ctx, vm.Query(), false)
	return nil
}

// LoadOlder asks for the next older page. It reports whether a request was
// issued.
func (vm *ViewModel) LoadOlder(ctx context.Context) (bool, error) {
	resp, err := vm.daemon.LoadOlder(ctx)
	if err != nil {
		return false, err
	}
	if resp.Issued {
		vm.setView(&resp.View, ChangeOlder)
	}
	return resp.Issued, nil
}

// Send sends text to the open conversation.
func (vm *ViewModel) Send(ctx context.Context, text string) error {
	v, err := vm.daemon.SendMessage(ctx, text)
	if err != nil {
		return err
	}
	vm.setView(v, ChangeNewest)
	return nil
}

// Close closes the open conversation.
func (vm *ViewModel) Close(ctx context.Context) error {
	if err := vm.daemon.CloseConversation(ctx); err != nil {
		return err
	}
	vm.mu.Lock()
	vm.view = nil
	vm.mark(ChangeView)
	vm.mu.Unlock()
	return nil
}

func (vm *ViewModel) setView(v *rpc.View, c Change) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if v.Conversation == nil {
		v = nil
	}
	vm.view = v
	vm.mark(c)
}

// Watch applies daemon events from src until it fails or ctx is done.
// io.EOF and cancellation end the watch without error.
func (vm *ViewModel) Watch(ctx context.Context, src EventSource) error {
	for {
		env, err := src.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil || rpc.Code(err) == codes.Canceled {
				return nil
			}
			return err
		}
		vm.apply(ctx, env)
	}
}

func (vm *ViewModel) apply(ctx context.Context, env *rpc.Envelope) {
	switch env.Kind {
	case bus.KindNotice:
		var n bus.Notice
		if err := env.Decode(&n); err == nil && n.Text != "" {
			vm.Flash.Notice(string(n.Level), n.Text)
		}
	case bus.KindIdentityChanged:
		_ = vm.Refresh(ctx)
	case bus.KindMessageArrived:
		vm.refetchView(ctx, ChangeNewest)
	case bus.KindHistoryLoaded:
		var h conversation.HistoryLoaded
		if err := env.Decode(&h); err == nil && !h.Initial {
			vm.refetchView(ctx, ChangeOlder)
			return
		}
		vm.refetchView(ctx, ChangeNewest)
	case bus.KindStateChanged, bus.KindConversationSelected:
		vm.refetchView(ctx, ChangeView)
	}
}

func (vm *ViewModel) refetchView(ctx context.Context, c Change) {
	v, err := vm.daemon.GetView(ctx)
	if err != nil {
		return
	}
	vm.setView(v, c)
}

// Reported reports whether the daemon already published a notice for err,
// so the caller should not flash it again.
func Reported(err error) bool {
	switch rpc.Code(err) {
	case codes.Unavailable, codes.Internal:
		return true
	}
	return false
}

// Status returns a snapshot of the daemon status.
func (vm *ViewModel) Status() *rpc.Status {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}

// LoggedIn reports whether the last known status was signed in.
func (vm *ViewModel) LoggedIn() bool {
	st := vm.Status()
	return st != nil && st.LoggedIn
}

// Contacts returns the listed contacts and recent conversations.
func (vm *ViewModel) Contacts() ([]chat.Contact, []rpc.RecentEntry) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.contacts, vm.recent
}

// Query returns the filter applied to the listed contacts.
func (vm *ViewModel) Query() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.query
}

// Contact looks up a listed contact by id.
func (vm *ViewModel) Contact(id int64) (chat.Contact, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, c := range vm.contacts {
		if c.ID == id {
			return c, true
		}
	}
	return chat.Contact{}, false
}

// View returns the open conversation, or nil.
func (vm *ViewModel) View() *rpc.View {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.view
}
