package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"inboxpilot/internal/model"
)

type TaskRepository struct {
	db *pgxpool.Pool
}

func NewTaskRepository(db *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{db: db}
}

// Insert stores one detected task with status pending.
func (r *TaskRepository) Insert(ctx context.Context, t *model.DetectedTask) (int64, error) {
	query := `
        INSERT INTO detected_tasks
            (org_id, user_id, message_id, title, description, priority,
             due_date, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', NOW())
        RETURNING id
    `
	var id int64
	err := r.db.QueryRow(ctx, query,
		t.OrgID,
		t.UserID,
		t.MessageID,
		t.Title,
		t.Description,
		string(t.Priority),
		t.DueDate,
	).Scan(&id)
	return id, err
}
