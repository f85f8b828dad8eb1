package views

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/koichat/internal/chat"
	"github.com/matheus3301/koichat/internal/rpc"
	"github.com/matheus3301/koichat/internal/tui/ui"
)

// ContactList is the directory of users an admin can open a conversation
// with.
type ContactList struct {
	*tview.Table
	theme    *ui.Theme
	contacts []chat.Contact
	opened   map[int64]time.Time
	query    string
}

// NewContactList creates a new contact table.
func NewContactList(theme *ui.Theme) *ContactList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Contacts ")
	table.SetTitleColor(theme.TitleColor)

	return &ContactList{
		Table: table,
		theme: theme,
	}
}

// Name implements Component.
func (cl *ContactList) Name() string { return "Contacts" }

// FocusTarget implements ui.Component.
func (cl *ContactList) FocusTarget() tview.Primitive { return cl.Table }

// Hints implements Component.
func (cl *ContactList) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Open"},
		{Key: "/", Description: "Filter"},
		{Key: "1-9", Description: "Jump", Numeric: true},
	}
}

// Update replaces the listed contacts. query is the filter the daemon
// applied; recent marks conversations opened before.
func (cl *ContactList) Update(contacts []chat.Contact, recent []rpc.RecentEntry, query string, now time.Time) {
	cl.contacts = contacts
	cl.query = query
	cl.opened = make(map[int64]time.Time, len(recent))
	for _, r := range recent {
		cl.opened[r.ReceiverID] = time.UnixMilli(r.OpenedAtMs)
	}
	cl.render(now)
}

func (cl *ContactList) render(now time.Time) {
	cl.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{" #", 0},
		{" NAME", 2},
		{" ROLE", 1},
		{" OPENED", 0},
	}
	for col, h := range headers {
		cell := tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetBackgroundColor(cl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp)
		cl.SetCell(0, col, cell)
	}

	for i, c := range cl.contacts {
		row := i + 1
		opened := ""
		if t, ok := cl.opened[c.ID]; ok {
			opened = formatAgo(t, now)
		}
		cl.SetCell(row, 0, tview.NewTableCell(" "+strconv.Itoa(row)).SetTextColor(cl.theme.CounterColor))
		cl.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(c.DisplayName()))).SetExpansion(2).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 2, tview.NewTableCell(" "+tview.Escape(c.Role)).SetExpansion(1).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 3, tview.NewTableCell(opened).SetTextColor(cl.theme.MutedColor).SetAlign(tview.AlignRight))
	}

	if cl.query != "" {
		cl.SetTitle(fmt.Sprintf(" Contacts (%d) filter: %s ", len(cl.contacts), tview.Escape(cl.query)))
	} else {
		cl.SetTitle(fmt.Sprintf(" Contacts (%d) ", len(cl.contacts)))
	}
	if len(cl.contacts) > 0 {
		row, _ := cl.GetSelection()
		if row < 1 || row > len(cl.contacts) {
			cl.Select(1, 0)
		}
	}
}

// Query returns the filter currently applied.
func (cl *ContactList) Query() string { return cl.query }

// SelectedContact returns the contact under the cursor.
func (cl *ContactList) SelectedContact() (chat.Contact, bool) {
	row, _ := cl.GetSelection()
	return cl.ContactByIndex(row)
}

// ContactByIndex returns the Nth listed contact (1-based).
func (cl *ContactList) ContactByIndex(n int) (chat.Contact, bool) {
	if n < 1 || n > len(cl.contacts) {
		return chat.Contact{}, false
	}
	return cl.contacts[n-1], true
}
