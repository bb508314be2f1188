package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"inboxpilot/internal/model"
)

type DraftRepository struct {
	db *pgxpool.Pool
}

func NewDraftRepository(db *pgxpool.Pool) *DraftRepository {
	return &DraftRepository{db: db}
}

// ExistsFor reports whether a draft already targets (message, user).
func (r *DraftRepository) ExistsFor(ctx context.Context, messageID, userID int64) (bool, error) {
	query := `
        SELECT EXISTS (
            SELECT 1 FROM email_drafts
            WHERE message_id = $1 AND user_id = $2
        )
    `
	var exists bool
	err := r.db.QueryRow(ctx, query, messageID, userID).Scan(&exists)
	return exists, err
}

// Insert stores one generated draft.
func (r *DraftRepository) Insert(ctx context.Context, d *model.EmailDraft) (int64, error) {
	query := `
        INSERT INTO email_drafts (org_id, user_id, message_id, subject, body, created_at)
        VALUES ($1, $2, $3, $4, $5, NOW())
        RETURNING id
    `
	var id int64
	err := r.db.QueryRow(ctx, query,
		d.OrgID,
		d.UserID,
		d.MessageID,
		d.Subject,
		d.Body,
	).Scan(&id)
	return id, err
}
