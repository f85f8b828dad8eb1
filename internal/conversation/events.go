package conversation

import "github.com/matheus3301/koichat/internal/chat"

// MessageArrived is the payload of bus.KindMessageArrived. Views scroll to
// the bottom when they see it.
type MessageArrived struct {
	ReceiverID int64
	Message    chat.Message
}

// HistoryLoaded is the payload of bus.KindHistoryLoaded.
type HistoryLoaded struct {
	ReceiverID int64
	Page       int
	Count      int
	Initial    bool
	EndReached bool
}
