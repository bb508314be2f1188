package model

import "time"

// Category is the fixed classification taxonomy.
type Category string

const (
	CategoryTask     Category = "task"
	CategoryFYI      Category = "fyi"
	CategoryQuestion Category = "question"
	CategoryApproval Category = "approval"
	CategoryMeeting  Category = "meeting"
)

// Categories lists the full taxonomy in heuristic precedence order.
var Categories = []Category{
	CategoryTask,
	CategoryQuestion,
	CategoryApproval,
	CategoryMeeting,
	CategoryFYI,
}

// ValidCategory reports whether c is a member of the taxonomy.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryTask, CategoryFYI, CategoryQuestion, CategoryApproval, CategoryMeeting:
		return true
	}
	return false
}

// EmailMessage is the canonical normalized message. ProviderMessageID is
// globally unique and is the dedup key; no two rows may share it.
type EmailMessage struct {
	ID                int64
	OrgID             int64
	MailboxID         int64
	ProviderMessageID string
	From              string
	Subject           string
	BodyText          string
	BodyHTML          string
	ReceivedAt        time.Time
	Read              bool
	Category          *Category // nil until classified
	CreatedAt         time.Time
}

// EmailDraft is a generated reply, at most one per (message, user) pair.
// The outbound send operation consumes and deletes it.
type EmailDraft struct {
	ID        int64
	OrgID     int64
	UserID    int64
	MessageID int64
	Subject   string
	Body      string
	CreatedAt time.Time
}
