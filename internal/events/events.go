// Package events defines the routing keys and payloads the sync core
// publishes and consumes on the events exchange.
package events

import "time"

const (
	// EmailIngested is published once per newly stored canonical message.
	EmailIngested = "email.ingested"
	// SyncCompleted is published after each finished mailbox pass.
	SyncCompleted = "sync.completed"
	// SyncRequested triggers an on-demand sync for one user.
	SyncRequested = "sync.requested"
)

type EmailIngestedPayload struct {
	MessageID  int64     `json:"message_id"`
	OrgID      int64     `json:"org_id"`
	UserID     int64     `json:"user_id"`
	MailboxID  int64     `json:"mailbox_id"`
	Category   string    `json:"category"`
	Subject    string    `json:"subject"`
	ReceivedAt time.Time `json:"received_at"`
}

type SyncCompletedPayload struct {
	MailboxID  int64 `json:"mailbox_id"`
	OrgID      int64 `json:"org_id"`
	UserID     int64 `json:"user_id"`
	EmailCount int   `json:"email_count"`
}

type SyncRequestedPayload struct {
	UserID int64 `json:"user_id"`
}
