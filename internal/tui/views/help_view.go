package views

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/matheus3301/koichat/internal/tui/ui"
)

// HelpView displays key binding reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	hv := &HelpView{
		TextView: tv,
		theme:    theme,
	}
	hv.render()
	return hv
}

// Name implements Component.
func (hv *HelpView) Name() string { return "Help" }

// FocusTarget implements ui.Component.
func (hv *HelpView) FocusTarget() tview.Primitive { return hv.TextView }

// Hints implements Component.
func (hv *HelpView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

func (hv *HelpView) render() {
	kc := ui.Tag(hv.theme.MenuKeyColor)

	help := fmt.Sprintf(`
  [::b]Global Keys[-:-:-]

  [%[1]s]:[-:-:-]      Command mode        [%[1]s]Esc[-:-:-]    Cancel / Go back
  [%[1]s]/[-:-:-]      Filter contacts     [%[1]s]?[-:-:-]      Help
  [%[1]s]q[-:-:-]      Quit / Back         [%[1]s]Ctrl-C[-:-:-] Quit immediately

  [::b]Contacts[-:-:-]

  [%[1]s]Enter[-:-:-]  Open conversation   [%[1]s]r[-:-:-]      Reload directory
  [%[1]s]1-9[-:-:-]    Jump to Nth contact [%[1]s]j/k[-:-:-]    Move down / up

  [::b]Conversation[-:-:-]

  [%[1]s]i[-:-:-]      Focus composer      [%[1]s]Enter[-:-:-]  Send (in composer)
  [%[1]s]PgUp/o[-:-:-] Older messages      [%[1]s]G[-:-:-]      Jump to latest
  [%[1]s]d[-:-:-]      Details             [%[1]s]Esc[-:-:-]    Close conversation

  [::b]Commands (: mode)[-:-:-]

  [%[1]s]:open <name|id>[-:-:-]  Open a conversation
  [%[1]s]:older[-:-:-]           Load older messages
  [%[1]s]:close[-:-:-]           Close the conversation
  [%[1]s]:reload[-:-:-]          Reload the contact directory
  [%[1]s]:logout[-:-:-]          Sign out of this profile
  [%[1]s]:help[-:-:-] / [%[1]s]:h[-:-:-]     Show this help
  [%[1]s]:quit[-:-:-] / [%[1]s]:q[-:-:-]     Quit application
`, kc)

	_, _ = fmt.Fprint(hv, help)
}
