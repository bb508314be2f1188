package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"inboxpilot/internal/model"
)

type MailboxRepository struct {
	db *pgxpool.Pool
}

func NewMailboxRepository(db *pgxpool.Pool) *MailboxRepository {
	return &MailboxRepository{db: db}
}

// ListActiveByUser returns the user's active mailboxes.
func (r *MailboxRepository) ListActiveByUser(ctx context.Context, userID int64) ([]model.Mailbox, error) {
	query := `
        SELECT id, org_id, user_id, kind, address, host, port, credential,
               active, created_at, updated_at
        FROM mailboxes
        WHERE user_id = $1 AND active = TRUE
        ORDER BY id
    `
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mailboxes []model.Mailbox
	for rows.Next() {
		var m model.Mailbox
		err := rows.Scan(
			&m.ID,
			&m.OrgID,
			&m.UserID,
			&m.Kind,
			&m.Address,
			&m.Host,
			&m.Port,
			&m.Credential,
			&m.Active,
			&m.CreatedAt,
			&m.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		mailboxes = append(mailboxes, m)
	}
	return mailboxes, rows.Err()
}

// FindByID returns one mailbox by id.
func (r *MailboxRepository) FindByID(ctx context.Context, id int64) (*model.Mailbox, error) {
	query := `
        SELECT id, org_id, user_id, kind, address, host, port, credential,
               active, created_at, updated_at
        FROM mailboxes
        WHERE id = $1
    `
	var m model.Mailbox
	err := r.db.QueryRow(ctx, query, id).Scan(
		&m.ID,
		&m.OrgID,
		&m.UserID,
		&m.Kind,
		&m.Address,
		&m.Host,
		&m.Port,
		&m.Credential,
		&m.Active,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// MarkActive marks a mailbox healthy after a completed pass.
func (r *MailboxRepository) MarkActive(ctx context.Context, id int64) error {
	query := `
        UPDATE mailboxes
        SET active = TRUE, updated_at = NOW()
        WHERE id = $1
    `
	_, err := r.db.Exec(ctx, query, id)
	return err
}
