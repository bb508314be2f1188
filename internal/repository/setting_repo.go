package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"inboxpilot/internal/model"
)

type SyncSettingRepository struct {
	db *pgxpool.Pool
}

func NewSyncSettingRepository(db *pgxpool.Pool) *SyncSettingRepository {
	return &SyncSettingRepository{db: db}
}

// ListEnabled returns all sync settings with enabled = TRUE. Read fresh every
// scheduler tick; the scheduler holds no per-user state between ticks.
func (r *SyncSettingRepository) ListEnabled(ctx context.Context) ([]model.UserSyncSetting, error) {
	query := `
        SELECT id, user_id, org_id, enabled, interval_minutes, last_run_at
        FROM user_sync_settings
        WHERE enabled = TRUE
        ORDER BY id
    `
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settings []model.UserSyncSetting
	for rows.Next() {
		var s model.UserSyncSetting
		err := rows.Scan(&s.ID, &s.UserID, &s.OrgID, &s.Enabled, &s.IntervalMinutes, &s.LastRunAt)
		if err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

// UpdateLastRun advances last_run_at after a pass, successful or not. A
// persistently failing account retries on cadence, not every tick.
func (r *SyncSettingRepository) UpdateLastRun(ctx context.Context, id int64, at time.Time) error {
	query := `
        UPDATE user_sync_settings
        SET last_run_at = $1
        WHERE id = $2
    `
	_, err := r.db.Exec(ctx, query, at, id)
	return err
}

type AutoDraftSettingRepository struct {
	db *pgxpool.Pool
}

func NewAutoDraftSettingRepository(db *pgxpool.Pool) *AutoDraftSettingRepository {
	return &AutoDraftSettingRepository{db: db}
}

// FindByUser returns the user's auto-draft setting, or nil when the user has
// never configured one (treated as disabled).
func (r *AutoDraftSettingRepository) FindByUser(ctx context.Context, userID int64) (*model.UserAutoDraftSetting, error) {
	query := `
        SELECT id, user_id, org_id, enabled, categories
        FROM user_auto_draft_settings
        WHERE user_id = $1
    `
	var s model.UserAutoDraftSetting
	var categories []string
	err := r.db.QueryRow(ctx, query, userID).Scan(&s.ID, &s.UserID, &s.OrgID, &s.Enabled, &categories)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	for _, c := range categories {
		s.Categories = append(s.Categories, model.Category(c))
	}
	return &s, nil
}
