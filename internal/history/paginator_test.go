package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/matheus3301/koichat/internal/chat"
)

// fakeFetcher serves a fixed number of pages and records requested indexes.
type fakeFetcher struct {
	mu       sync.Mutex
	total    int
	requests []int
	failOn   map[int]error
}

func (f *fakeFetcher) FetchMessages(_ context.Context, receiverID int64, page int) (chat.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, page)
	if err := f.failOn[page]; err != nil {
		return chat.Page{}, err
	}
	var content []chat.Message
	if page < f.total {
		content = []chat.Message{{SenderID: receiverID, ReceiverID: 1, Message: fmt.Sprintf("p%d", page)}}
	}
	return chat.Page{Content: content, TotalPages: f.total}, nil
}

func TestBootstrapLoadsLastPage(t *testing.T) {
	f := &fakeFetcher{total: 3}
	p := New(f, 2, BoundaryTotalPages, nil)

	pg, err := p.Bootstrap(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if pg.Index != 2 || pg.Content[0].Message != "p2" {
		t.Errorf("seed page = %d %+v, want page 2", pg.Index, pg.Content)
	}
	if got := f.requests; len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Errorf("requests = %v, want [0 2]", got)
	}
	if p.Page() != 2 {
		t.Errorf("Page() = %d, want 2", p.Page())
	}
	if p.EndReached() {
		t.Error("EndReached() = true, want false")
	}
}

func TestBootstrapEmptyConversation(t *testing.T) {
	f := &fakeFetcher{total: 0}
	p := New(f, 2, BoundaryTotalPages, nil)

	pg, err := p.Bootstrap(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(pg.Content) != 0 {
		t.Errorf("content = %+v, want empty", pg.Content)
	}
	if len(f.requests) != 1 {
		t.Errorf("requests = %v, want only the probe", f.requests)
	}
	if !p.EndReached() {
		t.Error("EndReached() = false for an empty conversation")
	}
	if _, err := p.Older(context.Background()); !errors.Is(err, ErrNoMoreHistory) {
		t.Errorf("Older() error = %v, want ErrNoMoreHistory", err)
	}
}

func TestBootstrapSinglePageRequestsTwice(t *testing.T) {
	f := &fakeFetcher{total: 1}
	p := New(f, 2, BoundaryTotalPages, nil)

	if _, err := p.Bootstrap(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := f.requests; len(got) != 2 || got[0] != 0 || got[1] != 0 {
		t.Errorf("requests = %v, want [0 0]", got)
	}
	if p.CanLoadOlder() {
		t.Error("CanLoadOlder() = true at page 0")
	}
}

func TestOlderWalksBackToZero(t *testing.T) {
	f := &fakeFetcher{total: 3}
	p := New(f, 2, BoundaryTotalPages, nil)
	if _, err := p.Bootstrap(context.Background()); err != nil {
		t.Fatal(err)
	}

	for _, want := range []int{1, 0} {
		pg, err := p.Older(context.Background())
		if err != nil {
			t.Fatalf("Older() error = %v", err)
		}
		if pg.Index != want {
			t.Errorf("Older() page = %d, want %d", pg.Index, want)
		}
	}

	// Page -1 is never requested.
	if _, err := p.Older(context.Background()); !errors.Is(err, ErrNoMoreHistory) {
		t.Errorf("Older() at page 0 error = %v, want ErrNoMoreHistory", err)
	}
	for _, r := range f.requests {
		if r < 0 {
			t.Fatalf("negative page requested: %v", f.requests)
		}
	}
}

func TestFirstPageBoundary(t *testing.T) {
	f := &fakeFetcher{total: 3}
	p := New(f, 2, BoundaryFirstPage, nil)
	if _, err := p.Bootstrap(context.Background()); err != nil {
		t.Fatal(err)
	}
	// The page-0 probe does not count; only the seeded window does.
	if p.EndReached() {
		t.Fatal("EndReached() = true right after bootstrap")
	}
	for range 2 {
		if _, err := p.Older(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if !p.EndReached() {
		t.Error("EndReached() = false after loading page 0")
	}
}

func TestTotalPagesBoundaryNeverFlagsRealPages(t *testing.T) {
	f := &fakeFetcher{total: 2}
	p := New(f, 2, BoundaryTotalPages, nil)
	if _, err := p.Bootstrap(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Older(context.Background()); err != nil {
		t.Fatal(err)
	}
	if p.EndReached() {
		t.Error("EndReached() = true under total-pages boundary")
	}
	if p.CanLoadOlder() {
		t.Error("CanLoadOlder() = true at page 0")
	}
}

func TestOlderFailureKeepsState(t *testing.T) {
	boom := errors.New("boom")
	f := &fakeFetcher{total: 3, failOn: map[int]error{1: boom}}
	p := New(f, 2, BoundaryTotalPages, nil)
	if _, err := p.Bootstrap(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := p.Older(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Older() error = %v, want boom", err)
	}
	if p.Page() != 2 || p.EndReached() {
		t.Errorf("state = page %d end %v, want page 2 end false", p.Page(), p.EndReached())
	}

	delete(f.failOn, 1)
	if pg, err := p.Older(context.Background()); err != nil || pg.Index != 1 {
		t.Errorf("retry Older() = %d, %v, want page 1", pg.Index, err)
	}
}

func TestBootstrapFailureLeavesUnloaded(t *testing.T) {
	f := &fakeFetcher{total: 3, failOn: map[int]error{2: errors.New("down")}}
	p := New(f, 2, BoundaryTotalPages, nil)
	if _, err := p.Bootstrap(context.Background()); err == nil {
		t.Fatal("expected bootstrap error")
	}
	if p.CanLoadOlder() {
		t.Error("CanLoadOlder() = true before a successful bootstrap")
	}
	if _, err := p.Older(context.Background()); !errors.Is(err, ErrNoMoreHistory) {
		t.Errorf("Older() error = %v, want ErrNoMoreHistory", err)
	}
}

func TestOlderBeforeBootstrap(t *testing.T) {
	p := New(&fakeFetcher{total: 3}, 2, "", nil)
	if _, err := p.Older(context.Background()); !errors.Is(err, ErrNoMoreHistory) {
		t.Errorf("Older() error = %v, want ErrNoMoreHistory", err)
	}
}

func TestFetchPageRejectsNegative(t *testing.T) {
	f := &fakeFetcher{total: 3}
	p := New(f, 2, "", nil)
	if _, err := p.FetchPage(context.Background(), -1); !errors.Is(err, ErrNoMoreHistory) {
		t.Errorf("FetchPage(-1) error = %v, want ErrNoMoreHistory", err)
	}
	if len(f.requests) != 0 {
		t.Errorf("requests = %v, want none", f.requests)
	}
}

func TestParseBoundary(t *testing.T) {
	tests := []struct {
		in      string
		want    Boundary
		wantErr bool
	}{
		{"", BoundaryTotalPages, false},
		{"total-pages", BoundaryTotalPages, false},
		{"first-page", BoundaryFirstPage, false},
		{"last", "", true},
	}
	for _, tt := range tests {
		got, err := ParseBoundary(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseBoundary(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseBoundary(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
