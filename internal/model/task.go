package model

import "time"

type TaskPriority string

const (
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityLow    TaskPriority = "low"
)

// DetectedTask is actionable content extracted from a classified message.
// Status transitions after `pending` are owned downstream.
type DetectedTask struct {
	ID          int64
	OrgID       int64
	UserID      int64
	MessageID   int64
	Title       string
	Description string
	Priority    TaskPriority
	DueDate     *time.Time
	Status      string
	CreatedAt   time.Time
}
