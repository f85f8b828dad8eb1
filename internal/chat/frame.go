package chat

// Realtime frame types.
const (
	FrameSubscribe = "subscribe"
	FrameMessage   = "message"
)

// Frame is the JSON envelope exchanged over the realtime channel. Clients
// send subscribe frames naming the pair they want; the server pushes message
// frames carrying a Message payload.
type Frame struct {
	Type       string   `json:"type"`
	SenderID   int64    `json:"senderId,omitempty"`
	ReceiverID int64    `json:"receiverId,omitempty"`
	Payload    *Message `json:"payload,omitempty"`
}
