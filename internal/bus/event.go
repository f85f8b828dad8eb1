package bus

import "time"

// Event kinds published by the messaging core.
const (
	KindStateChanged         = "conversation.state_changed"
	KindConversationSelected = "chat.conversation_selected"
	KindMessageArrived       = "chat.message_arrived"
	KindHistoryLoaded        = "chat.history_loaded"
	KindNotice               = "chat.notice"
	KindIdentityChanged      = "auth.identity_changed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// NoticeLevel classifies user-facing notices.
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeWarn  NoticeLevel = "warn"
	NoticeError NoticeLevel = "error"
)

// Notice is the payload of KindNotice events. It replaces the toast a user
// would see for failed fetches and sends.
type Notice struct {
	Level NoticeLevel
	Text  string
}
