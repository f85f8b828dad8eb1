package views

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/matheus3301/koichat/internal/chat"
	"github.com/matheus3301/koichat/internal/rpc"
	"github.com/matheus3301/koichat/internal/tui/ui"
)

// ContactInfo displays details about the open conversation.
type ContactInfo struct {
	*tview.TextView
	theme *ui.Theme
}

// NewContactInfo creates a new contact info view.
func NewContactInfo(theme *ui.Theme) *ContactInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Conversation Details ")
	tv.SetTitleColor(theme.TitleColor)

	return &ContactInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Name implements Component.
func (ci *ContactInfo) Name() string { return "Details" }

// FocusTarget implements ui.Component.
func (ci *ContactInfo) FocusTarget() tview.Primitive { return ci.TextView }

// Hints implements Component.
func (ci *ContactInfo) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
		{Key: "?", Description: "Help"},
	}
}

// Update renders details for the conversation in v. contact may be nil
// when the directory has no entry for the receiver.
func (ci *ContactInfo) Update(v rpc.View, contact *chat.Contact) {
	ci.Clear()
	if v.Conversation == nil {
		return
	}
	_, _ = fmt.Fprint(ci, FormatContactInfo(v, contact, ci.theme))
	ci.SetTitle(fmt.Sprintf(" %s Details ", tview.Escape(v.Conversation.ReceiverName)))
}

// FormatContactInfo renders the detail rows for a conversation.
func FormatContactInfo(v rpc.View, contact *chat.Contact, theme *ui.Theme) string {
	fg := ui.Tag(theme.FgColor)
	ct := ui.Tag(theme.CounterColor)

	role, status := "-", "-"
	if contact != nil {
		role, status = contact.Role, contact.Status
	}
	history := "more available"
	if v.EndReached {
		history = "complete"
	}

	rows := []struct{ label, value string }{
		{"Name", v.Conversation.ReceiverName},
		{"User ID", fmt.Sprint(v.Conversation.ReceiverID)},
		{"Role", role},
		{"Status", status},
		{"State", v.State},
		{"Messages", fmt.Sprint(len(v.Messages()))},
		{"Oldest Page", fmt.Sprint(v.Page)},
		{"History", history},
	}

	var b strings.Builder
	b.WriteString("\n")
	for _, r := range rows {
		fmt.Fprintf(&b, " [%s::b]%-12s[-:-:-] [%s]%s[-]\n", fg, r.label+":", ct, tview.Escape(sanitizeForTerminal(r.value)))
	}
	return b.String()
}
