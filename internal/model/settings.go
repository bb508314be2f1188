package model

import "time"

// UserSyncSetting drives the scheduler: one row per user, read fresh every
// tick, LastRunAt advanced after each pass.
type UserSyncSetting struct {
	ID              int64
	UserID          int64
	OrgID           int64
	Enabled         bool
	IntervalMinutes int
	LastRunAt       *time.Time
}

// Due reports whether the user's cadence has elapsed at the given instant.
func (s UserSyncSetting) Due(now time.Time) bool {
	if !s.Enabled {
		return false
	}
	if s.LastRunAt == nil {
		return true
	}
	return now.Sub(*s.LastRunAt) >= time.Duration(s.IntervalMinutes)*time.Minute
}

// UserAutoDraftSetting is read-only for the sync core.
type UserAutoDraftSetting struct {
	ID         int64
	UserID     int64
	OrgID      int64
	Enabled    bool
	Categories []Category // opted-in classification categories
}

// OptedIn reports whether the category is in the user's opt-in set.
func (s UserAutoDraftSetting) OptedIn(c Category) bool {
	for _, cat := range s.Categories {
		if cat == c {
			return true
		}
	}
	return false
}

// AISettings is the per-organization AI backend resolution row. A missing row
// falls back to the global default from config.
type AISettings struct {
	OrgID    int64
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

type User struct {
	ID    int64
	OrgID int64
	Email string
	Name  string
}

// ActivityLog is one audit record, e.g. a sync pass summary.
type ActivityLog struct {
	ID          int64
	OrgID       int64
	UserID      int64
	Type        string
	Description string
	CreatedAt   time.Time
}
