package contacts

import (
	"context"
	"errors"
	"testing"

	"github.com/matheus3301/koichat/internal/chat"
)

type fakeLister struct {
	users []chat.Contact
	err   error
	calls int
}

func (f *fakeLister) ListUsers(context.Context) ([]chat.Contact, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.users, nil
}

func names(cs []chat.Contact) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.FullName
	}
	return out
}

func TestLoadFiltersActive(t *testing.T) {
	l := &fakeLister{users: []chat.Contact{
		{ID: 1, FullName: "Alice", Status: "Active"},
		{ID: 2, FullName: "Bob", Status: "Inactive"},
	}}
	d := NewDirectory(l, nil)

	got, err := d.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].FullName != "Alice" {
		t.Errorf("Load() = %v, want [Alice]", names(got))
	}
	if f := d.Filter("AL"); len(f) != 1 || f[0].FullName != "Alice" {
		t.Errorf(`Filter("AL") = %v, want [Alice]`, names(f))
	}
	if f := d.Filter("bob"); len(f) != 0 {
		t.Errorf(`Filter("bob") = %v, want empty`, names(f))
	}
}

func TestLoadIsCached(t *testing.T) {
	l := &fakeLister{users: []chat.Contact{{ID: 1, FullName: "Alice", Status: "Active"}}}
	d := NewDirectory(l, nil)

	for range 3 {
		if _, err := d.Load(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if l.calls != 1 {
		t.Errorf("ListUsers called %d times, want 1", l.calls)
	}

	l.users = append(l.users, chat.Contact{ID: 2, FullName: "Bao", Status: "Active"})
	got, err := d.Reload(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if l.calls != 2 || len(got) != 2 {
		t.Errorf("after Reload: calls %d contacts %v", l.calls, names(got))
	}
}

func TestLoadFailureKeepsSnapshot(t *testing.T) {
	l := &fakeLister{users: []chat.Contact{{ID: 1, FullName: "Alice", Status: "Active"}}}
	d := NewDirectory(l, nil)
	if _, err := d.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	l.err = boom
	if _, err := d.Reload(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Reload() error = %v, want boom", err)
	}
	if got := d.Filter(""); len(got) != 1 {
		t.Errorf("snapshot after failed reload = %v, want [Alice]", names(got))
	}
}

func TestFilter(t *testing.T) {
	l := &fakeLister{users: []chat.Contact{
		{ID: 1, FullName: "Nguyễn Văn An", Status: "Active"},
		{ID: 2, FullName: "STRASSE Koi Farm", Status: "Active"},
		{ID: 3, FullName: "", Status: "Active"},
		{ID: 4, FullName: "annie", Status: "Active"},
	}}
	d := NewDirectory(l, nil)
	if _, err := d.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"Nguyễn Văn An", "STRASSE Koi Farm", "", "annie"}},
		{"an", []string{"Nguyễn Văn An", "annie"}},
		{"VĂN", []string{"Nguyễn Văn An"}},
		{"koi ", []string{"STRASSE Koi Farm"}},
		{"  koi", nil},
		{"an ", nil},
		{"zzz", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := names(d.Filter(tt.query))
			if len(got) != len(tt.want) {
				t.Fatalf("Filter(%q) = %v, want %v", tt.query, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Filter(%q)[%d] = %q, want %q", tt.query, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFind(t *testing.T) {
	l := &fakeLister{users: []chat.Contact{{ID: 7, FullName: "Alice", Status: "Active"}}}
	d := NewDirectory(l, nil)
	if _, ok := d.Find(7); ok {
		t.Error("Find before Load should miss")
	}
	if _, err := d.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	c, ok := d.Find(7)
	if !ok || c.FullName != "Alice" {
		t.Errorf("Find(7) = %+v, %v", c, ok)
	}
}
