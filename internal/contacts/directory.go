// Package contacts loads and filters the users an admin can chat with.
package contacts

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/matheus3301/koichat/internal/chat"
)

// Lister returns every user known to the backend.
type Lister interface {
	ListUsers(ctx context.Context) ([]chat.Contact, error)
}

// Directory caches the active contacts for the lifetime of a mount.
type Directory struct {
	lister Lister
	log    *zap.Logger

	mu     sync.Mutex
	loaded bool
	active []chat.Contact
}

// NewDirectory creates an empty directory backed by lister.
func NewDirectory(lister Lister, log *zap.Logger) *Directory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Directory{
		lister: lister,
		log:    log,
	}
}

// Load returns the active contacts, fetching them on first use. On failure
// the directory stays unloaded and the previous snapshot, if any, is kept.
func (d *Directory) Load(ctx context.Context) ([]chat.Contact, error) {
	d.mu.Lock()
	if d.loaded {
		out := cloneContacts(d.active)
		d.mu.Unlock()
		return out, nil
	}
	d.mu.Unlock()
	return d.Reload(ctx)
}

// Reload fetches the user list again and replaces the snapshot.
func (d *Directory) Reload(ctx context.Context) ([]chat.Contact, error) {
	users, err := d.lister.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("load contacts: %w", err)
	}
	active := FilterActive(users)

	d.mu.Lock()
	d.active = active
	d.loaded = true
	d.mu.Unlock()

	d.log.Debug("contacts loaded", zap.Int("users", len(users)), zap.Int("active", len(active)))
	return cloneContacts(active), nil
}

// Loaded reports whether a snapshot is available.
func (d *Directory) Loaded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loaded
}

// Filter returns the loaded contacts whose full name contains query,
// ignoring case. The query is matched as typed, spaces included. An empty
// query returns every loaded contact.
func (d *Directory) Filter(query string) []chat.Contact {
	d.mu.Lock()
	active := d.active
	d.mu.Unlock()

	// A Caser carries state and is not shared across goroutines.
	fold := cases.Fold()
	q := fold.String(query)
	if q == "" {
		return cloneContacts(active)
	}
	var out []chat.Contact
	for _, c := range active {
		if strings.Contains(fold.String(c.FullName), q) {
			out = append(out, c)
		}
	}
	return out
}

// Find returns the loaded contact with the given id.
func (d *Directory) Find(id int64) (chat.Contact, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.active {
		if c.ID == id {
			return c, true
		}
	}
	return chat.Contact{}, false
}

// FilterActive keeps users whose status is Active, preserving order.
func FilterActive(users []chat.Contact) []chat.Contact {
	out := make([]chat.Contact, 0, len(users))
	for _, u := range users {
		if u.Status == chat.StatusActive {
			out = append(out, u)
		}
	}
	return out
}

func cloneContacts(in []chat.Contact) []chat.Contact {
	if in == nil {
		return nil
	}
	return append([]chat.Contact(nil), in...)
}
