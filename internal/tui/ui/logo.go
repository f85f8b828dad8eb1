package ui

import (
	"fmt"

	"github.com/rivo/tview"
)

// Logo shows the koi mark and, under it, whether a conversation is live.
type Logo struct {
	*tview.TextView
	theme    *Theme
	state    string
	realtime bool
}

// NewLogo creates a logo in the idle state.
func NewLogo(theme *Theme) *Logo {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(1, 0, 1, 0)

	l := &Logo{TextView: tv, theme: theme}
	l.render()
	return l
}

// SetLink updates the conversation state and realtime flag shown under
// the mark. It only redraws when either changed.
func (l *Logo) SetLink(state string, realtime bool) {
	if state == l.state && realtime == l.realtime {
		return
	}
	l.state, l.realtime = state, realtime
	l.render()
}

// Caption returns the status line under the mark.
func (l *Logo) Caption() string {
	switch {
	case l.state == "ACTIVE" && l.realtime:
		return fmt.Sprintf("[%s]● live[-]", colorName(l.theme.OutgoingColor))
	case l.state == "ACTIVE":
		return fmt.Sprintf("[%s]● history only[-]", colorName(l.theme.FlashWarnColor))
	case l.state == "BOOTSTRAPPING":
		return fmt.Sprintf("[%s]◌ loading[-]", colorName(l.theme.MutedColor))
	default:
		return fmt.Sprintf("[%s]○ no chat open[-]", colorName(l.theme.MutedColor))
	}
}

func (l *Logo) render() {
	title := colorName(l.theme.TitleColor)
	l.Clear()
	_, _ = fmt.Fprintf(l,
		"[%[1]s::b] ╦╔═╔═╗╦[-:-:-]\n"+
			"[%[1]s::b] ╠╩╗║ ║║[-:-:-] [%[2]s]admin chat[-]\n"+
			"[%[1]s::b] ╩ ╩╚═╝╩[-:-:-]\n"+
			"%[3]s",
		title, colorName(l.theme.FgColor), l.Caption(),
	)
}
