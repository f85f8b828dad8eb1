// Package conversation drives the single open chat: it owns the realtime
// session and the history window for the selected contact and merges
// backfilled pages with live messages.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/matheus3301/koichat/internal/bus"
	"github.com/matheus3301/koichat/internal/chat"
	"github.com/matheus3301/koichat/internal/history"
	"github.com/matheus3301/koichat/internal/status"
	"github.com/matheus3301/koichat/internal/transport"
)

var (
	// ErrNoConversation is returned by operations that need a selected
	// conversation when none is open.
	ErrNoConversation = errors.New("conversation: none selected")
	// ErrConversationChanged is returned when the conversation was switched
	// or closed while a request was in flight. Its result was discarded.
	ErrConversationChanged = errors.New("conversation: changed while request was in flight")
)

// Backend is the REST surface the controller needs.
type Backend interface {
	history.Fetcher
	SendMessage(ctx context.Context, receiverID int64, text string) error
}

// Transport is the realtime session the controller drives.
type Transport interface {
	Connect(ctx context.Context, token string, selfID, peerID int64, onMessage transport.Handler) error
	Disconnect()
}

// Options tune a Controller.
type Options struct {
	Boundary history.Boundary
	Location *time.Location
}

// Controller owns the lifetime of the open conversation.
type Controller struct {
	identity  chat.Identity
	backend   Backend
	transport Transport
	bus       *bus.Bus
	machine   *status.Machine
	log       *zap.Logger
	boundary  history.Boundary
	loc       *time.Location

	// switchMu serializes lifetime changes so that transport connect and
	// disconnect never interleave.
	switchMu sync.Mutex

	mu       sync.Mutex
	gen      uint64
	conv     *chat.Conversation
	pager    *history.Paginator
	messages []chat.Message
	input    string
	fetching bool
	life     context.Context
	end      context.CancelFunc
}

// New creates an idle controller acting as id.
func New(id chat.Identity, be Backend, tr Transport, b *bus.Bus, log *zap.Logger, opts Options) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Boundary == "" {
		opts.Boundary = history.BoundaryTotalPages
	}
	return &Controller{
		identity:  id,
		backend:   be,
		transport: tr,
		bus:       b,
		machine:   status.NewMachine(b),
		log:       log.With(zap.Int64("self_id", id.UserID)),
		boundary:  opts.Boundary,
		loc:       opts.Location,
	}
}

// Identity returns the identity the controller acts as.
func (c *Controller) Identity() chat.Identity { return c.identity }

// State returns the lifetime state.
func (c *Controller) State() status.State { return c.machine.Current() }

// Location returns the zone used for day grouping.
func (c *Controller) Location() *time.Location { return c.loc }

// Conversation returns the open conversation, if any.
func (c *Controller) Conversation() (chat.Conversation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conv == nil {
		return chat.Conversation{}, false
	}
	return *c.conv, true
}

// SelectConversation closes the current conversation and opens the one with
// receiverID. The realtime session and the initial history load run in
// parallel and both settle before it returns. A failed connect is logged
// only; a failed history load is reported as a notice and returned, and the
// conversation stays open for live messages.
func (c *Controller) SelectConversation(ctx context.Context, receiverID int64, receiverName string) error {
	if receiverID == 0 {
		return fmt.Errorf("select conversation: receiver id is required")
	}
	c.abort()

	c.switchMu.Lock()
	defer c.switchMu.Unlock()

	c.transport.Disconnect()
	c.machine.Teardown()

	conv := chat.Conversation{ReceiverID: receiverID, ReceiverName: receiverName}
	pager := history.New(c.backend, receiverID, c.boundary, c.log)

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.conv = &conv
	c.pager = pager
	c.messages = nil
	c.input = ""
	c.fetching = true
	if c.end != nil {
		c.end()
	}
	c.life, c.end = context.WithCancel(context.Background())
	life := c.life
	c.mu.Unlock()

	if err := c.machine.Transition(status.Bootstrapping); err != nil {
		c.log.Warn("state transition", zap.Error(err))
	}
	c.bus.Emit(bus.KindConversationSelected, conv)
	c.log.Info("conversation selected", zap.Int64("receiver_id", receiverID))

	opCtx, cancel := withLifetime(ctx, life)
	defer cancel()

	var (
		seed    chat.Page
		bootErr error
	)
	g, gctx := errgroup.WithContext(opCtx)
	g.Go(func() error {
		if err := c.transport.Connect(gctx, c.identity.Token, c.identity.UserID, receiverID, c.inbound(gen)); err != nil {
			c.log.Warn("realtime connect failed", zap.Error(err), zap.Int64("receiver_id", receiverID))
		}
		return nil
	})
	g.Go(func() error {
		seed, bootErr = pager.Bootstrap(gctx)
		return nil
	})
	_ = g.Wait()

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return ErrConversationChanged
	}
	c.fetching = false
	if bootErr == nil {
		// Live messages that raced the load are already in the buffer and
		// are newer than anything on the seed page.
		c.messages = append(cloneMessages(seed.Content), c.messages...)
	}
	c.mu.Unlock()

	if err := c.machine.Transition(status.Active); err != nil {
		c.log.Warn("state transition", zap.Error(err))
	}

	if bootErr != nil {
		if life.Err() != nil {
			return ErrConversationChanged
		}
		if ctx.Err() != nil {
			c.log.Debug("history load abandoned by caller", zap.Error(bootErr), zap.Int64("receiver_id", receiverID))
			return fmt.Errorf("load history: %w", bootErr)
		}
		c.log.Warn("history load failed", zap.Error(bootErr), zap.Int64("receiver_id", receiverID))
		c.bus.Notify(bus.NoticeError, "Could not load messages: "+bootErr.Error())
		return fmt.Errorf("load history: %w", bootErr)
	}

	c.bus.Emit(bus.KindHistoryLoaded, HistoryLoaded{
		ReceiverID: receiverID,
		Page:       seed.Index,
		Count:      len(seed.Content),
		Initial:    true,
		EndReached: pager.EndReached(),
	})
	return nil
}

// OnScrollTop loads the next older page when the viewport reaches the top.
// It does nothing and reports issued=false when the history is exhausted,
// the oldest page is already loaded, or another load is in flight.
func (c *Controller) OnScrollTop(ctx context.Context) (issued bool, err error) {
	c.mu.Lock()
	if c.conv == nil {
		c.mu.Unlock()
		return false, ErrNoConversation
	}
	if c.fetching || !c.pager.CanLoadOlder() {
		c.mu.Unlock()
		return false, nil
	}
	c.fetching = true
	gen, pager, life, receiverID := c.gen, c.pager, c.life, c.conv.ReceiverID
	c.mu.Unlock()

	opCtx, cancel := withLifetime(ctx, life)
	defer cancel()
	pg, err := pager.Older(opCtx)

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return true, ErrConversationChanged
	}
	c.fetching = false
	if err != nil {
		c.mu.Unlock()
		if life.Err() != nil {
			return true, ErrConversationChanged
		}
		if errors.Is(err, history.ErrNoMoreHistory) {
			return false, nil
		}
		if ctx.Err() != nil {
			return true, fmt.Errorf("load older messages: %w", err)
		}
		c.log.Warn("older page failed", zap.Error(err), zap.Int64("receiver_id", receiverID))
		c.bus.Notify(bus.NoticeError, "Could not load older messages: "+err.Error())
		return true, fmt.Errorf("load older messages: %w", err)
	}
	c.messages = append(cloneMessages(pg.Content), c.messages...)
	c.mu.Unlock()

	c.bus.Emit(bus.KindHistoryLoaded, HistoryLoaded{
		ReceiverID: receiverID,
		Page:       pg.Index,
		Count:      len(pg.Content),
		EndReached: pager.EndReached(),
	})
	return true, nil
}

// OnInboundMessage appends msg to the open conversation and signals views to
// scroll to the bottom.
func (c *Controller) OnInboundMessage(msg chat.Message) {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	c.deliver(gen, msg)
}

func (c *Controller) inbound(gen uint64) transport.Handler {
	return func(msg chat.Message) { c.deliver(gen, msg) }
}

func (c *Controller) deliver(gen uint64, msg chat.Message) {
	c.mu.Lock()
	if c.gen != gen || c.conv == nil {
		c.mu.Unlock()
		c.log.Debug("dropping message for a closed conversation", zap.Int64("sender_id", msg.SenderID))
		return
	}
	c.messages = append(c.messages, msg)
	receiverID := c.conv.ReceiverID
	c.mu.Unlock()

	c.bus.Emit(bus.KindMessageArrived, MessageArrived{ReceiverID: receiverID, Message: msg})
}

// SetInput replaces the composer text.
func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	c.input = text
	c.mu.Unlock()
}

// Input returns the composer text.
func (c *Controller) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// Send posts the composer text to the open conversation. Blank input is
// ignored. On success the composer is cleared; the message itself shows up
// when the server echoes it over the realtime channel. On failure the
// composer keeps its text.
func (c *Controller) Send(ctx context.Context) error {
	c.mu.Lock()
	text, gen := c.input, c.gen
	var conv *chat.Conversation
	if c.conv != nil {
		cp := *c.conv
		conv = &cp
	}
	c.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		return nil
	}
	if conv == nil {
		return ErrNoConversation
	}

	if err := c.backend.SendMessage(ctx, conv.ReceiverID, text); err != nil {
		c.log.Warn("send failed", zap.Error(err), zap.Int64("receiver_id", conv.ReceiverID))
		c.bus.Notify(bus.NoticeError, "Message not sent: "+err.Error())
		return fmt.Errorf("send message: %w", err)
	}

	c.mu.Lock()
	if c.gen == gen && c.input == text {
		c.input = ""
	}
	c.mu.Unlock()
	return nil
}

// SendMessage sets the composer to text and sends it.
func (c *Controller) SendMessage(ctx context.Context, text string) error {
	c.SetInput(text)
	return c.Send(ctx)
}

// Close tears down the open conversation and returns to idle.
func (c *Controller) Close() {
	c.abort()

	c.switchMu.Lock()
	defer c.switchMu.Unlock()

	c.transport.Disconnect()

	c.mu.Lock()
	wasOpen := c.conv != nil
	c.gen++
	c.conv = nil
	c.pager = nil
	c.messages = nil
	c.input = ""
	c.fetching = false
	if c.end != nil {
		c.end()
	}
	c.life, c.end = nil, nil
	c.mu.Unlock()

	c.machine.Teardown()
	if wasOpen {
		c.log.Info("conversation closed")
	}
}

// abort cancels requests issued under the current lifetime.
func (c *Controller) abort() {
	c.mu.Lock()
	end := c.end
	c.mu.Unlock()
	if end != nil {
		end()
	}
}

// withLifetime derives a context that is cancelled with either ctx or life.
func withLifetime(ctx, life context.Context) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithCancel(ctx)
	if life == nil {
		return opCtx, cancel
	}
	stop := context.AfterFunc(life, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}

func cloneMessages(in []chat.Message) []chat.Message {
	return append([]chat.Message(nil), in...)
}
