package chat

// StatusActive is the user status shown in the contact directory.
const StatusActive = "Active"

// Contact is a potential conversation partner as returned by the user listing.
type Contact struct {
	ID       int64  `json:"id"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
	Status   string `json:"status"`
}

// DisplayName returns the name shown in lists, with a placeholder for users
// that never filled in their profile.
func (c Contact) DisplayName() string {
	if c.FullName == "" {
		return "New user"
	}
	return c.FullName
}

// Conversation identifies the single active chat partner.
type Conversation struct {
	ReceiverID   int64
	ReceiverName string
}

// Message is one chat message between two users.
type Message struct {
	SenderID   int64     `json:"senderId"`
	ReceiverID int64     `json:"receiverId"`
	Message    string    `json:"message"`
	Datetime   Timestamp `json:"datetime"`
}

// Between reports whether the message belongs to the conversation of a and b,
// in either direction.
func (m Message) Between(a, b int64) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}

// Page is one page of message history. Index is the zero-based page that was
// requested; pages are ordered oldest-first, so TotalPages-1 is the newest.
type Page struct {
	Index      int       `json:"-"`
	Content    []Message `json:"content"`
	TotalPages int       `json:"totalPages"`
}

// Identity is the logged-in staff member the client acts as.
type Identity struct {
	UserID   int64  `json:"userId"`
	Token    string `json:"token"`
	Role     string `json:"role"`
	FullName string `json:"fullName"`
	Username string `json:"username,omitempty"`
}

// Valid reports whether the identity carries enough to talk to the backend.
func (id Identity) Valid() bool {
	return id.Token != "" && id.UserID != 0
}
