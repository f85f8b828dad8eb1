package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/koichat/internal/rpc"
	"github.com/matheus3301/koichat/internal/tui/ui"
)

// Scroll says where the thread viewport goes after an update.
type Scroll int

const (
	// ScrollKeep leaves the viewport where it is.
	ScrollKeep Scroll = iota
	// ScrollBottom jumps to the newest message.
	ScrollBottom
	// ScrollAnchorTop keeps the previously first line in place after older
	// messages were prepended.
	ScrollAnchorTop
)

// MessageThread displays the open conversation and a composer.
type MessageThread struct {
	*tview.Flex
	theme       *ui.Theme
	messages    *tview.TextView
	composer    *tview.InputField
	view        rpc.View
	loc         *time.Location
	lines       int
	onSend      func(text string)
	onScrollTop func()
}

// NewMessageThread creates a new message thread view. Day dividers are
// computed by the daemon; loc is used for message clock times.
func NewMessageThread(theme *ui.Theme, loc *time.Location) *MessageThread {
	if loc == nil {
		loc = time.Local
	}
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		composer: composer,
		loc:      loc,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && mt.onSend != nil {
			if text := composer.GetText(); strings.TrimSpace(text) != "" {
				mt.onSend(text)
			}
		}
	})

	// Moving up from the first line asks for older history.
	messages.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if mt.onScrollTop == nil || !isUpKey(ev) {
			return ev
		}
		if row, _ := messages.GetScrollOffset(); row == 0 {
			mt.onScrollTop()
		}
		return ev
	})

	return mt
}

func isUpKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyUp, tcell.KeyPgUp, tcell.KeyHome:
		return true
	case tcell.KeyRune:
		return ev.Rune() == 'k' || ev.Rune() == 'g'
	}
	return false
}

// Name implements Component.
func (mt *MessageThread) Name() string {
	if c := mt.view.Conversation; c != nil && c.ReceiverName != "" {
		return c.ReceiverName
	}
	return "Messages"
}

// FocusTarget implements ui.Component.
func (mt *MessageThread) FocusTarget() tview.Primitive { return mt.messages }

// Hints implements Component.
func (mt *MessageThread) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "i", Description: "Compose"},
		{Key: "PgUp", Description: "Older"},
		{Key: "G", Description: "Latest"},
		{Key: "d", Description: "Details"},
		{Key: "Esc", Description: "Close"},
	}
}

// SetOnSend sets the callback when the composer submits text. The composer
// keeps its text until ClearComposer is called.
func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.onSend = fn
}

// SetOnScrollTop sets the callback fired when the viewport is at the top and
// the user keeps scrolling up.
func (mt *MessageThread) SetOnScrollTop(fn func()) {
	mt.onScrollTop = fn
}

// ClearComposer empties the composer if it still holds sent.
func (mt *MessageThread) ClearComposer(sent string) {
	if mt.composer.GetText() == sent {
		mt.composer.SetText("")
	}
}

// Reset empties the thread for a newly opened conversation.
func (mt *MessageThread) Reset() {
	mt.view = rpc.View{}
	mt.lines = 0
	mt.composer.SetText("")
	mt.messages.Clear()
}

// Update renders v.
func (mt *MessageThread) Update(v rpc.View, scroll Scroll) {
	mt.view = v
	prevLines := mt.lines
	text := RenderThread(v, mt.theme, mt.loc, time.Now())
	mt.lines = strings.Count(text, "\n")

	row, col := mt.messages.GetScrollOffset()
	mt.messages.SetText(text)
	mt.messages.SetTitle(fmt.Sprintf(" %s ", tview.Escape(mt.Name())))

	switch scroll {
	case ScrollBottom:
		mt.messages.ScrollToEnd()
	case ScrollAnchorTop:
		mt.messages.ScrollTo(row+max(mt.lines-prevLines, 0), col)
	default:
		mt.messages.ScrollTo(row, col)
	}
}

// ScrollToEnd jumps to the newest message.
func (mt *MessageThread) ScrollToEnd() {
	mt.messages.ScrollToEnd()
}

// View returns the last rendered snapshot.
func (mt *MessageThread) View() rpc.View { return mt.view }

// Messages returns the messages text view (for focus management).
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer input field (for focus management).
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}

// RenderThread formats a conversation view as tagged text.
func RenderThread(v rpc.View, theme *ui.Theme, loc *time.Location, now time.Time) string {
	muted := ui.Tag(theme.MutedColor)
	var b strings.Builder

	switch {
	case v.Loading:
		fmt.Fprintf(&b, "[%s]Loading messages...[-]\n\n", muted)
	case v.EndReached:
		fmt.Fprintf(&b, "[%s]Beginning of conversation[-]\n\n", muted)
	case v.CanLoadOlder:
		fmt.Fprintf(&b, "[%s]PgUp for older messages[-]\n\n", muted)
	}

	if len(v.Items) == 0 && !v.Loading {
		fmt.Fprintf(&b, "[%s]No messages yet.[-]\n", muted)
		return b.String()
	}

	peer := "Them"
	if v.Conversation != nil && v.Conversation.ReceiverName != "" {
		peer = v.Conversation.ReceiverName
	}
	divider := ui.Tag(theme.DividerColor)
	out := ui.Tag(theme.OutgoingColor)
	in := ui.Tag(theme.IncomingColor)

	for _, it := range v.Items {
		if it.Message == nil {
			fmt.Fprintf(&b, "[%s]──── %s ────[-]\n\n", divider, formatDay(it.Day, now, loc))
			continue
		}
		m := *it.Message
		name, color := peer, in
		if v.Outgoing(m) {
			name, color = "You", out
		}
		fmt.Fprintf(&b, "[%s::b]%s[-:-:-] [%s]%s[-]\n%s\n\n",
			color, tview.Escape(sanitizeForTerminal(name)),
			muted, formatClock(m.Datetime.Time, loc),
			tview.Escape(sanitizeForTerminal(m.Message)))
	}
	return b.String()
}
