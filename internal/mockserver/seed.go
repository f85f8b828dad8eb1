package mockserver

import (
	"fmt"
	"time"

	"github.com/matheus3301/koichat/internal/chat"
)

// Demo account credentials created by SeedDemo.
const (
	DemoAdminUser     = "admin"
	DemoAdminPassword = "admin"
	DemoAdminID       = 1
)

// SeedDemo populates the server with a staff account, a handful of members
// and a few pages of history with the first member.
func (s *Server) SeedDemo(now time.Time) {
	s.AddUser(chat.Contact{ID: DemoAdminID, FullName: "Koi Admin", Role: "Admin", Status: chat.StatusActive}, DemoAdminUser, DemoAdminPassword)
	s.AddUser(chat.Contact{ID: 2, FullName: "Alice Nguyen", Role: "Member", Status: chat.StatusActive}, "alice", "alice")
	s.AddUser(chat.Contact{ID: 3, FullName: "Bob Tran", Role: "Breeder", Status: chat.StatusActive}, "bob", "bob")
	s.AddUser(chat.Contact{ID: 4, FullName: "Carol Le", Role: "Member", Status: "Inactive"}, "carol", "carol")
	s.AddUser(chat.Contact{ID: 5, FullName: "", Role: "Member", Status: chat.StatusActive}, "newbie", "newbie")
	s.AddUser(chat.Contact{ID: 6, FullName: "Minh Staff", Role: "Staff", Status: chat.StatusActive}, "staff", "staff")

	start := now.Add(-72 * time.Hour)
	n := s.pageSize*2 + s.pageSize/2
	msgs := make([]chat.Message, 0, n)
	for i := range n {
		from, to := int64(2), int64(DemoAdminID)
		if i%3 == 0 {
			from, to = to, from
		}
		msgs = append(msgs, chat.Message{
			SenderID:   from,
			ReceiverID: to,
			Message:    fmt.Sprintf("message %d about the kohaku lot", i+1),
			Datetime:   chat.At(start.Add(time.Duration(i) * 90 * time.Minute)),
		})
	}
	s.Seed(msgs...)
}
