package conversation

import (
	"github.com/matheus3301/koichat/internal/chat"
	"github.com/matheus3301/koichat/internal/status"
)

// View is a point-in-time snapshot of the open conversation for rendering.
type View struct {
	State        status.State
	Conversation *chat.Conversation
	SelfID       int64
	Messages     []chat.Message
	Timeline     []Item
	Input        string
	Loading      bool
	EndReached   bool
	CanLoadOlder bool
	Page         int
}

// View returns a snapshot of the controller state.
func (c *Controller) View() View {
	c.mu.Lock()
	v := View{
		SelfID:   c.identity.UserID,
		Messages: cloneMessages(c.messages),
		Input:    c.input,
		Loading:  c.fetching,
	}
	if c.conv != nil {
		cp := *c.conv
		v.Conversation = &cp
	}
	pager := c.pager
	c.mu.Unlock()

	if pager != nil {
		v.EndReached = pager.EndReached()
		v.CanLoadOlder = !v.Loading && pager.CanLoadOlder()
		v.Page = pager.Page()
	}
	v.State = c.machine.Current()
	v.Timeline = Timeline(v.Messages, c.loc)
	return v
}

// Outgoing reports whether msg was sent by the viewer.
func (v View) Outgoing(msg chat.Message) bool {
	return msg.SenderID == v.SelfID
}
