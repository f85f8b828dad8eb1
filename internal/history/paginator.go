// Package history pages backwards through a conversation's stored messages.
package history

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/matheus3301/koichat/internal/chat"
)

// ErrNoMoreHistory is returned by Older when there is nothing left to load.
var ErrNoMoreHistory = errors.New("history: no older pages")

// Fetcher retrieves one page of a conversation.
type Fetcher interface {
	FetchMessages(ctx context.Context, receiverID int64, page int) (chat.Page, error)
}

// Boundary decides when a fetched page marks the end of history.
type Boundary string

const (
	// BoundaryTotalPages flags the end when the fetched index equals the
	// reported page count. With a non-empty history this only triggers for an
	// empty conversation, so older pages are bounded by the page-0 guard.
	BoundaryTotalPages Boundary = "total-pages"
	// BoundaryFirstPage flags the end once page 0 has been loaded.
	BoundaryFirstPage Boundary = "first-page"
)

// ParseBoundary validates a boundary name. The empty string selects the
// default.
func ParseBoundary(s string) (Boundary, error) {
	switch Boundary(s) {
	case "", BoundaryTotalPages:
		return BoundaryTotalPages, nil
	case BoundaryFirstPage:
		return BoundaryFirstPage, nil
	}
	return "", fmt.Errorf("unknown history boundary %q (want %s or %s)", s, BoundaryTotalPages, BoundaryFirstPage)
}

func (b Boundary) reached(index, total int) bool {
	if b == BoundaryFirstPage {
		return index == 0
	}
	return index == total
}

// Paginator tracks the oldest loaded page of one conversation. A Paginator
// lives for exactly one conversation lifetime.
type Paginator struct {
	fetcher    Fetcher
	receiverID int64
	boundary   Boundary
	log        *zap.Logger

	mu         sync.Mutex
	page       int
	loaded     bool
	endReached bool
}

// New creates a paginator for the conversation with receiverID.
func New(f Fetcher, receiverID int64, boundary Boundary, log *zap.Logger) *Paginator {
	if boundary == "" {
		boundary = BoundaryTotalPages
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Paginator{
		fetcher:    f,
		receiverID: receiverID,
		boundary:   boundary,
		log:        log.With(zap.Int64("receiver_id", receiverID)),
	}
}

// FetchPage requests a single page without touching paginator state.
func (p *Paginator) FetchPage(ctx context.Context, page int) (chat.Page, error) {
	if page < 0 {
		return chat.Page{}, ErrNoMoreHistory
	}
	pg, err := p.fetcher.FetchMessages(ctx, p.receiverID, page)
	if err != nil {
		return chat.Page{}, fmt.Errorf("fetch page %d: %w", page, err)
	}
	pg.Index = page
	return pg, nil
}

// Bootstrap loads the newest page. It probes page 0 to learn the page count
// and then requests the last page. The returned page seeds the window.
func (p *Paginator) Bootstrap(ctx context.Context) (chat.Page, error) {
	probe, err := p.FetchPage(ctx, 0)
	if err != nil {
		return chat.Page{}, err
	}

	seed := probe
	if probe.TotalPages > 0 {
		seed, err = p.FetchPage(ctx, probe.TotalPages-1)
		if err != nil {
			return chat.Page{}, err
		}
	}

	p.mu.Lock()
	p.loaded = true
	p.apply(seed)
	p.mu.Unlock()

	p.log.Debug("history bootstrapped",
		zap.Int("total_pages", probe.TotalPages),
		zap.Int("page", seed.Index),
		zap.Int("messages", len(seed.Content)),
	)
	return seed, nil
}

// Older loads the page preceding the oldest one loaded. Its content is
// strictly older than everything already loaded and should be prepended.
func (p *Paginator) Older(ctx context.Context) (chat.Page, error) {
	p.mu.Lock()
	if !p.loaded || p.endReached || p.page-1 < 0 {
		p.mu.Unlock()
		return chat.Page{}, ErrNoMoreHistory
	}
	next := p.page - 1
	p.mu.Unlock()

	pg, err := p.FetchPage(ctx, next)
	if err != nil {
		return chat.Page{}, err
	}

	p.mu.Lock()
	p.apply(pg)
	p.mu.Unlock()

	p.log.Debug("older page loaded", zap.Int("page", pg.Index), zap.Int("messages", len(pg.Content)))
	return pg, nil
}

// apply records a successfully fetched page. Callers hold p.mu.
func (p *Paginator) apply(pg chat.Page) {
	if p.boundary.reached(pg.Index, pg.TotalPages) {
		p.endReached = true
	}
	p.page = pg.Index
}

// Page returns the index of the oldest loaded page.
func (p *Paginator) Page() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page
}

// EndReached reports whether the boundary page has been loaded.
func (p *Paginator) EndReached() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.endReached
}

// CanLoadOlder reports whether Older would issue a request.
func (p *Paginator) CanLoadOlder() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loaded && !p.endReached && p.page > 0
}
