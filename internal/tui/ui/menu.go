package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

// Menu displays keyboard shortcut hints in a vertical list.
type Menu struct {
	*tview.TextView
	theme *Theme
}

// NewMenu creates a new menu hint bar.
func NewMenu(theme *Theme) *Menu {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 2, 0)

	return &Menu{
		TextView: tv,
		theme:    theme,
	}
}

// menuRows is the height of the header; longer hint lists wrap into a
// second column.
const menuRows = 6

// Update renders menu hints as vertical columns.
func (m *Menu) Update(hints []MenuHint) {
	m.Clear()
	_, _ = fmt.Fprint(m, m.format(hints))
}

func (m *Menu) format(hints []MenuHint) string {
	keyColor := colorName(m.theme.MenuKeyColor)
	numColor := colorName(m.theme.NumericKeyColor)

	cell := func(h MenuHint) string {
		kc := keyColor
		if h.Numeric {
			kc = numColor
		}
		key := "<" + h.Key + ">"
		return fmt.Sprintf("[%s::b]%-7s[-:-:-] %-10s", kc, tview.Escape(key), h.Description)
	}

	var b strings.Builder
	for row := 0; row < menuRows && row < len(hints); row++ {
		for i := row; i < len(hints); i += menuRows {
			b.WriteString(cell(hints[i]))
		}
		b.WriteString("\n")
	}
	return b.String()
}
