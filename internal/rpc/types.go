package rpc

import (
	"encoding/json"
	"time"

	"github.com/matheus3301/koichat/internal/chat"
	"github.com/matheus3301/koichat/internal/conversation"
	"github.com/matheus3301/koichat/internal/store"
)

// Empty is the request and response of calls that carry no data.
type Empty struct{}

// Account is the signed-in user as shown to clients. It never carries the
// token.
type Account struct {
	UserID   int64  `json:"userId"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
	Username string `json:"username,omitempty"`
}

// Status describes the daemon.
type Status struct {
	Profile      string             `json:"profile"`
	APIURL       string             `json:"apiUrl"`
	UptimeMs     int64              `json:"uptimeMs"`
	LoggedIn     bool               `json:"loggedIn"`
	Account      *Account           `json:"account,omitempty"`
	State        string             `json:"state"`
	Conversation *chat.Conversation `json:"conversation,omitempty"`
	Realtime     bool               `json:"realtime"`
}

// LoginRequest carries staff credentials.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ContactsRequest filters the contact directory.
type ContactsRequest struct {
	Query  string `json:"query,omitempty"`
	Reload bool   `json:"reload,omitempty"`
}

// ContactsResponse lists active contacts and the conversations opened before.
type ContactsResponse struct {
	Contacts []chat.Contact `json:"contacts"`
	Recent   []RecentEntry  `json:"recent,omitempty"`
}

// RecentEntry is a conversation the profile opened before.
type RecentEntry struct {
	ReceiverID   int64  `json:"receiverId"`
	ReceiverName string `json:"receiverName"`
	OpenedAtMs   int64  `json:"openedAtMs"`
}

// SelectRequest opens a conversation. ReceiverName is looked up in the
// directory when empty.
type SelectRequest struct {
	ReceiverID   int64  `json:"receiverId"`
	ReceiverName string `json:"receiverName,omitempty"`
}

// SendRequest posts text to the open conversation.
type SendRequest struct {
	Text string `json:"text"`
}

// OlderResponse reports whether a backfill was issued.
type OlderResponse struct {
	Issued bool `json:"issued"`
	View   View `json:"view"`
}

// View is the wire form of conversation.View.
type View struct {
	State        string             `json:"state"`
	Conversation *chat.Conversation `json:"conversation,omitempty"`
	SelfID       int64              `json:"selfId"`
	Items        []Item             `json:"items"`
	Input        string             `json:"input,omitempty"`
	Loading      bool               `json:"loading"`
	EndReached   bool               `json:"endReached"`
	CanLoadOlder bool               `json:"canLoadOlder"`
	Page         int                `json:"page"`
}

// Item is one timeline row.
type Item struct {
	Kind    string        `json:"kind"`
	Day     string        `json:"day,omitempty"`
	Message *chat.Message `json:"message,omitempty"`
}

// Messages returns the messages of the view in display order.
func (v View) Messages() []chat.Message {
	out := make([]chat.Message, 0, len(v.Items))
	for _, it := range v.Items {
		if it.Message != nil {
			out = append(out, *it.Message)
		}
	}
	return out
}

// Outgoing reports whether msg was sent by the viewer.
func (v View) Outgoing(msg chat.Message) bool {
	return msg.SenderID == v.SelfID
}

// WatchRequest selects the event namespaces to stream. Empty means the
// default set.
type WatchRequest struct {
	Namespaces []string `json:"namespaces,omitempty"`
}

// Envelope wraps a bus event for streaming.
type Envelope struct {
	EventID          string          `json:"eventId"`
	Profile          string          `json:"profile"`
	Kind             string          `json:"kind"`
	OccurredAtUnixMs int64           `json:"occurredAtUnixMs"`
	Payload          json.RawMessage `json:"payload,omitempty"`
}

// Decode unmarshals the payload into v.
func (e *Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, v)
}

const dayLayout = "2006-01-02"

func viewToWire(v conversation.View) View {
	out := View{
		State:        string(v.State),
		Conversation: v.Conversation,
		SelfID:       v.SelfID,
		Items:        make([]Item, 0, len(v.Timeline)),
		Input:        v.Input,
		Loading:      v.Loading,
		EndReached:   v.EndReached,
		CanLoadOlder: v.CanLoadOlder,
		Page:         v.Page,
	}
	for _, it := range v.Timeline {
		switch it.Kind {
		case conversation.ItemDivider:
			out.Items = append(out.Items, Item{Kind: it.Kind.String(), Day: it.Day.Format(dayLayout)})
		default:
			m := it.Message
			out.Items = append(out.Items, Item{Kind: it.Kind.String(), Message: &m})
		}
	}
	return out
}

func recentToWire(in []store.Recent) []RecentEntry {
	out := make([]RecentEntry, 0, len(in))
	for _, r := range in {
		out = append(out, RecentEntry{
			ReceiverID:   r.ReceiverID,
			ReceiverName: r.ReceiverName,
			OpenedAtMs:   time.Unix(0, r.OpenedAt).UnixMilli(),
		})
	}
	return out
}

func accountOf(id chat.Identity) *Account {
	return &Account{
		UserID:   id.UserID,
		FullName: id.FullName,
		Role:     id.Role,
		Username: id.Username,
	}
}
