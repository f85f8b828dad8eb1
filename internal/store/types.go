package store

import "github.com/matheus3301/koichat/internal/chat"

// Credentials is the identity persisted for a profile between daemon runs.
type Credentials struct {
	Identity chat.Identity
	APIURL   string
	SavedAt  int64
}

// Recent is a conversation the profile opened before.
type Recent struct {
	ReceiverID   int64
	ReceiverName string
	OpenedAt     int64
}
