package conversation

import (
	"time"

	"github.com/matheus3301/koichat/internal/chat"
)

// ItemKind distinguishes timeline rows.
type ItemKind int

const (
	ItemMessage ItemKind = iota
	ItemDivider
)

func (k ItemKind) String() string {
	if k == ItemDivider {
		return "divider"
	}
	return "message"
}

// Item is one row of a rendered conversation: either a date divider or a
// message.
type Item struct {
	Kind    ItemKind
	Day     time.Time // midnight of the divider's date, set for dividers
	Message chat.Message
}

// Timeline interleaves date dividers with msgs. A divider precedes the first
// message and every message whose calendar date in loc differs from the one
// before it. Messages keep their input order.
func Timeline(msgs []chat.Message, loc *time.Location) []Item {
	if loc == nil {
		loc = time.Local
	}
	items := make([]Item, 0, len(msgs)+1)
	for i, m := range msgs {
		if i == 0 || !chat.SameDay(msgs[i-1].Datetime.Time, m.Datetime.Time, loc) {
			y, mo, d := m.Datetime.In(loc).Date()
			items = append(items, Item{Kind: ItemDivider, Day: time.Date(y, mo, d, 0, 0, 0, 0, loc)})
		}
		items = append(items, Item{Kind: ItemMessage, Message: m})
	}
	return items
}
