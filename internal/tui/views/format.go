package views

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// sanitizeForTerminal removes codepoints that tcell renders at the wrong
// width: skin tone modifiers, the zero width joiner and variation
// selectors. Sequences collapse to their base emoji.
func sanitizeForTerminal(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !isProblematicRune(r) {
			b.WriteRune(r)
		}
		i += size
	}
	return b.String()
}

func isProblematicRune(r rune) bool {
	switch {
	case r >= 0x1F3FB && r <= 0x1F3FF:
		return true
	case r == 0x200D:
		return true
	case r >= 0xFE00 && r <= 0xFE0F:
		return true
	case r >= 0xE0100 && r <= 0xE01EF:
		return true
	default:
		return false
	}
}

// formatClock renders the time of day of a message.
func formatClock(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format("15:04")
}

// formatDay renders a divider label: Today, Yesterday, or the full date.
func formatDay(day string, now time.Time, loc *time.Location) string {
	d, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return day
	}
	today := now.In(loc)
	y, m, dd := today.Date()
	midnight := time.Date(y, m, dd, 0, 0, 0, 0, loc)
	switch {
	case d.Equal(midnight):
		return "Today"
	case d.Equal(midnight.AddDate(0, 0, -1)):
		return "Yesterday"
	case d.Year() == today.Year():
		return d.Format("Mon, Jan 2")
	default:
		return d.Format("Mon, Jan 2 2006")
	}
}

// formatAgo renders a past instant relative to now, for the recent list.
func formatAgo(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return strconv.Itoa(int(d.Minutes())) + "m"
	case d < 24*time.Hour:
		return strconv.Itoa(int(d.Hours())) + "h"
	default:
		return t.Format("01/02")
	}
}
