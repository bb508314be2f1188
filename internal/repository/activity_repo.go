package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"inboxpilot/internal/model"
)

type ActivityLogRepository struct {
	db *pgxpool.Pool
}

func NewActivityLogRepository(db *pgxpool.Pool) *ActivityLogRepository {
	return &ActivityLogRepository{db: db}
}

// Insert writes one activity record.
func (r *ActivityLogRepository) Insert(ctx context.Context, a *model.ActivityLog) error {
	query := `
        INSERT INTO activity_logs (org_id, user_id, type, description, created_at)
        VALUES ($1, $2, $3, $4, NOW())
    `
	_, err := r.db.Exec(ctx, query, a.OrgID, a.UserID, a.Type, a.Description)
	return err
}
