package views

import (
	"strings"
	"testing"
	"time"

	"github.com/rivo/tview"

	"github.com/matheus3301/koichat/internal/chat"
	"github.com/matheus3301/koichat/internal/rpc"
	"github.com/matheus3301/koichat/internal/tui/ui"
)

func TestFormatDay(t *testing.T) {
	loc := time.UTC
	now := time.Date(2024, 10, 20, 15, 0, 0, 0, loc)
	tests := []struct {
		day  string
		want string
	}{
		{"2024-10-20", "Today"},
		{"2024-10-19", "Yesterday"},
		{"2024-10-01", "Tue, Oct 1"},
		{"2023-12-31", "Sun, Dec 31 2023"},
		{"garbage", "garbage"},
	}
	for _, tt := range tests {
		if got := formatDay(tt.day, now, loc); got != tt.want {
			t.Errorf("formatDay(%q) = %q, want %q", tt.day, got, tt.want)
		}
	}
}

func TestFormatAgo(t *testing.T) {
	now := time.Date(2024, 10, 20, 15, 0, 0, 0, time.UTC)
	tests := []struct {
		t    time.Time
		want string
	}{
		{time.Time{}, ""},
		{now.Add(-10 * time.Second), "now"},
		{now.Add(-5 * time.Minute), "5m"},
		{now.Add(-3 * time.Hour), "3h"},
		{now.AddDate(0, 0, -3), "10/17"},
	}
	for _, tt := range tests {
		if got := formatAgo(tt.t, now); got != tt.want {
			t.Errorf("formatAgo(%v) = %q, want %q", tt.t, got, tt.want)
		}
	}
}

func TestSanitizeForTerminal(t *testing.T) {
	if got := sanitizeForTerminal("hi 👍🏽"); got != "hi 👍" {
		t.Errorf("sanitizeForTerminal = %q, want skin tone stripped", got)
	}
	if got := sanitizeForTerminal("plain"); got != "plain" {
		t.Errorf("sanitizeForTerminal(plain) = %q", got)
	}
}

func threadView() rpc.View {
	day := time.Date(2024, 10, 20, 9, 5, 0, 0, time.UTC)
	in := chat.Message{SenderID: 2, ReceiverID: 1, Message: "hello [admin]", Datetime: chat.At(day)}
	out := chat.Message{SenderID: 1, ReceiverID: 2, Message: "hi alice", Datetime: chat.At(day.Add(time.Minute))}
	return rpc.View{
		State:        "ACTIVE",
		Conversation: &chat.Conversation{ReceiverID: 2, ReceiverName: "Alice"},
		SelfID:       1,
		Items: []rpc.Item{
			{Kind: "divider", Day: "2024-10-20"},
			{Kind: "message", Day: "2024-10-20", Message: &in},
			{Kind: "message", Day: "2024-10-20", Message: &out},
		},
		EndReached: true,
	}
}

func TestRenderThread(t *testing.T) {
	now := time.Date(2024, 10, 21, 8, 0, 0, 0, time.UTC)
	got := RenderThread(threadView(), ui.DefaultTheme(), time.UTC, now)

	for _, want := range []string{"Beginning of conversation", "Yesterday", "Alice", "09:05", "You", "09:06", "hi alice"} {
		if !strings.Contains(got, want) {
			t.Errorf("rendered thread missing %q:\n%s", want, got)
		}
	}
	// Message text must not be interpreted as a color tag.
	if !strings.Contains(got, "hello [admin[]") {
		t.Errorf("message text not escaped:\n%s", got)
	}
	if strings.Index(got, "Alice") > strings.Index(got, "You") {
		t.Error("messages rendered out of order")
	}
}

func TestRenderThreadEmpty(t *testing.T) {
	v := rpc.View{State: "ACTIVE", Conversation: &chat.Conversation{ReceiverID: 2}}
	got := RenderThread(v, ui.DefaultTheme(), time.UTC, time.Now())
	if !strings.Contains(got, "No messages yet.") {
		t.Errorf("empty thread = %q", got)
	}

	v.Loading = true
	got = RenderThread(v, ui.DefaultTheme(), time.UTC, time.Now())
	if !strings.Contains(got, "Loading messages") || strings.Contains(got, "No messages yet.") {
		t.Errorf("loading thread = %q", got)
	}
}

func TestContactListIndex(t *testing.T) {
	cl := NewContactList(ui.DefaultTheme())
	now := time.Now()
	cl.Update([]chat.Contact{
		{ID: 2, FullName: "Alice", Role: "Member"},
		{ID: 3, Role: "Member"},
	}, []rpc.RecentEntry{{ReceiverID: 3, OpenedAtMs: now.Add(-2 * time.Minute).UnixMilli()}}, "", now)

	c, ok := cl.ContactByIndex(2)
	if !ok || c.ID != 3 {
		t.Errorf("ContactByIndex(2) = %+v, %v; want id 3", c, ok)
	}
	if _, ok := cl.ContactByIndex(3); ok {
		t.Error("ContactByIndex(3) found a contact past the end")
	}
	if got := cl.GetCell(2, 1).Text; !strings.Contains(got, "New user") {
		t.Errorf("unnamed contact cell = %q, want placeholder", got)
	}
	if got := cl.GetCell(2, 3).Text; got != "2m" {
		t.Errorf("opened cell = %q, want 2m", got)
	}
	if c, ok := cl.SelectedContact(); !ok || c.ID != 2 {
		t.Errorf("SelectedContact() = %+v, %v; want first row", c, ok)
	}
}

func TestFormatContactInfo(t *testing.T) {
	v := threadView()
	got := FormatContactInfo(v, &chat.Contact{ID: 2, FullName: "Alice", Role: "Member", Status: "Active"}, ui.DefaultTheme())
	for _, want := range []string{"Alice", "Member", "Active", "ACTIVE", "complete"} {
		if !strings.Contains(got, want) {
			t.Errorf("details missing %q:\n%s", want, got)
		}
	}
	if got := FormatContactInfo(v, nil, ui.DefaultTheme()); !strings.Contains(got, "-") {
		t.Errorf("details without contact = %q", got)
	}
}

func TestViewsAreComponents(t *testing.T) {
	theme := ui.DefaultTheme()
	thread := NewMessageThread(theme, time.UTC)
	tests := []struct {
		c      ui.Component
		target tview.Primitive
	}{
		{NewContactList(theme), nil},
		{thread, thread.Messages()},
		{NewLoginView(theme), nil},
		{NewContactInfo(theme), nil},
		{NewHelpView(theme), nil},
	}
	for _, tt := range tests {
		got := tt.c.FocusTarget()
		if got == nil {
			t.Errorf("%s: FocusTarget() = nil", tt.c.Name())
			continue
		}
		if tt.target != nil && got != tt.target {
			t.Errorf("%s: FocusTarget() = %T, want message pane", tt.c.Name(), got)
		}
	}
}
