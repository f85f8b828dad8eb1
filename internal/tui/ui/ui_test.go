package ui

import (
	"strings"
	"testing"
	"time"
)

func TestPagesStack(t *testing.T) {
	p := NewPages()
	var last []string
	p.SetOnChange(func(stack []string) { last = stack })

	p.Reset("contacts")
	p.Push("chat")
	p.Push("details")
	if got := strings.Join(last, ">"); got != "contacts>chat>details" {
		t.Errorf("stack = %s, want contacts>chat>details", got)
	}
	if got := p.Pop(); got != "details" {
		t.Errorf("Pop() = %q, want details", got)
	}
	if got := p.Current(); got != "chat" {
		t.Errorf("Current() = %q, want chat", got)
	}
	p.Push("chat")
	if got := p.Depth(); got != 2 {
		t.Errorf("Depth() after pushing the current page = %d, want 2", got)
	}
}

func TestFlashExpires(t *testing.T) {
	f := NewFlashModel()
	f.set("short", FlashWarn, -time.Second)
	if got := f.Get(); got != "" {
		t.Errorf("Get() = %q, want empty for expired message", got)
	}
	f.Notice("error", "Message not sent")
	msg := f.GetMessage()
	if msg == nil || msg.Level != FlashErr || msg.Text != "Message not sent" {
		t.Errorf("GetMessage() = %+v, want error-level notice", msg)
	}
}

func TestFormatProfile(t *testing.T) {
	out := FormatProfile(&ProfileData{Profile: "main", User: "Koi Admin", Role: "Admin", State: "ACTIVE", Realtime: true, Uptime: 90 * time.Minute}, DefaultTheme())
	for _, want := range []string{"main", "Koi Admin (Admin)", "ACTIVE", "on", "1h30m"} {
		if !strings.Contains(out, want) {
			t.Errorf("profile text missing %q:\n%s", want, out)
		}
	}
}

func TestPromptSuggestsOnlyWithCompleter(t *testing.T) {
	p := NewPrompt(DefaultTheme())
	if got := p.Suggest("op"); got != nil {
		t.Errorf("Suggest() without completer = %v, want nil", got)
	}

	var gotMode PromptMode
	p.SetCompleter(func(mode PromptMode, text string) []string {
		gotMode = mode
		return []string{text + "en"}
	})
	p.Activate(PromptFilter, "ali")
	if got := p.GetText(); got != "ali" {
		t.Errorf("search prompt text = %q, want current filter ali", got)
	}
	p.Activate(PromptCommand, "ali")
	if got := p.GetText(); got != "" {
		t.Errorf("command prompt text = %q, want empty", got)
	}
	if got := p.Suggest("op"); len(got) != 1 || got[0] != "open" || gotMode != PromptCommand {
		t.Errorf("Suggest(op) = %v in mode %d, want [open] in command mode", got, gotMode)
	}
	if got := p.Suggest(""); got != nil {
		t.Errorf("Suggest(\"\") = %v, want nil", got)
	}
}

func TestLogoCaption(t *testing.T) {
	l := NewLogo(DefaultTheme())
	tests := []struct {
		state    string
		realtime bool
		want     string
	}{
		{"IDLE", false, "no chat open"},
		{"BOOTSTRAPPING", true, "loading"},
		{"ACTIVE", true, "live"},
		{"ACTIVE", false, "history only"},
	}
	for _, tt := range tests {
		l.SetLink(tt.state, tt.realtime)
		if got := l.Caption(); !strings.Contains(got, tt.want) {
			t.Errorf("Caption() for %s/%v = %q, want %q", tt.state, tt.realtime, got, tt.want)
		}
		if got := l.GetText(true); !strings.Contains(got, tt.want) {
			t.Errorf("logo text for %s/%v = %q, want %q", tt.state, tt.realtime, got, tt.want)
		}
	}
}
