package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"inboxpilot/internal/model"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID resolves a user. User CRUD is owned elsewhere; the sync core only
// reads.
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	query := `
        SELECT id, org_id, email, name
        FROM users
        WHERE id = $1
    `
	var u model.User
	err := r.db.QueryRow(ctx, query, id).Scan(&u.ID, &u.OrgID, &u.Email, &u.Name)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
