package ui

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// ProfileData holds the daemon and account details shown in the header.
type ProfileData struct {
	Profile  string
	User     string
	Role     string
	State    string
	Realtime bool
	APIURL   string
	Uptime   time.Duration
}

// ProfileInfo displays profile metadata in the header.
type ProfileInfo struct {
	*tview.TextView
	theme *Theme
}

// NewProfileInfo creates a new profile info panel.
func NewProfileInfo(theme *Theme) *ProfileInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &ProfileInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the profile info.
func (pi *ProfileInfo) Update(data *ProfileData) {
	pi.Clear()
	if data == nil {
		return
	}
	_, _ = fmt.Fprint(pi, FormatProfile(data, pi.theme))
}

// FormatProfile renders data as tagged text.
func FormatProfile(data *ProfileData, theme *Theme) string {
	fg := colorName(theme.FgColor)
	ct := colorName(theme.CounterColor)

	user := data.User
	if user == "" {
		user = "-"
	}
	if data.Role != "" {
		user += " (" + data.Role + ")"
	}
	live := "off"
	if data.Realtime {
		live = "on"
	}

	return fmt.Sprintf(
		"[%s::b]Profile:[-:-:-]  [%s]%s[-]\n"+
			"[%s::b]User:[-:-:-]     [%s]%s[-]\n"+
			"[%s::b]State:[-:-:-]    [%s]%s[-]\n"+
			"[%s::b]Live:[-:-:-]     [%s]%s[-]\n"+
			"[%s::b]API:[-:-:-]      [%s]%s[-]\n"+
			"[%s::b]Uptime:[-:-:-]   [%s]%s[-]",
		fg, ct, tview.Escape(data.Profile),
		fg, ct, tview.Escape(user),
		fg, ct, data.State,
		fg, ct, live,
		fg, ct, tview.Escape(data.APIURL),
		fg, ct, formatDuration(data.Uptime),
	)
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
