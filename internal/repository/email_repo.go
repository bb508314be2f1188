package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"inboxpilot/internal/model"
)

type EmailRepository struct {
	db *pgxpool.Pool
}

func NewEmailRepository(db *pgxpool.Pool) *EmailRepository {
	return &EmailRepository{db: db}
}

// InsertIfAbsent inserts the canonical message keyed on provider_message_id.
// The unique constraint on provider_message_id makes this a single atomic
// conditional insert: if a row already exists the statement is a no-op and
// ok is false. Correct under concurrent writers and overlapping fetch windows.
func (r *EmailRepository) InsertIfAbsent(ctx context.Context, e *model.EmailMessage) (int64, bool, error) {
	query := `
        INSERT INTO email_messages
            (org_id, mailbox_id, provider_message_id, from_address, subject,
             body_text, body_html, received_at, read, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
        ON CONFLICT (provider_message_id) DO NOTHING
        RETURNING id
    `
	var id int64
	err := r.db.QueryRow(ctx, query,
		e.OrgID,
		e.MailboxID,
		e.ProviderMessageID,
		e.From,
		e.Subject,
		e.BodyText,
		e.BodyHTML,
		e.ReceivedAt,
		e.Read,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// 冲突：该 provider message 已入库
			return 0, false, nil
		}
		return 0, false, err
	}
	return id, true, nil
}

// SetCategory stores the classification label for a message.
func (r *EmailRepository) SetCategory(ctx context.Context, id int64, category model.Category) error {
	query := `
        UPDATE email_messages
        SET category = $1
        WHERE id = $2
    `
	_, err := r.db.Exec(ctx, query, string(category), id)
	return err
}

// FindByID returns a canonical message by id.
func (r *EmailRepository) FindByID(ctx context.Context, id int64) (*model.EmailMessage, error) {
	query := `
        SELECT id, org_id, mailbox_id, provider_message_id, from_address,
               subject, body_text, body_html, received_at, read, category, created_at
        FROM email_messages
        WHERE id = $1
    `
	var e model.EmailMessage
	var category *string
	err := r.db.QueryRow(ctx, query, id).Scan(
		&e.ID,
		&e.OrgID,
		&e.MailboxID,
		&e.ProviderMessageID,
		&e.From,
		&e.Subject,
		&e.BodyText,
		&e.BodyHTML,
		&e.ReceivedAt,
		&e.Read,
		&category,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if category != nil {
		c := model.Category(*category)
		e.Category = &c
	}
	return &e, nil
}
