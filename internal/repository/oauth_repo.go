package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"inboxpilot/internal/model"
)

type OAuthConnectionRepository struct {
	db *pgxpool.Pool
}

func NewOAuthConnectionRepository(db *pgxpool.Pool) *OAuthConnectionRepository {
	return &OAuthConnectionRepository{db: db}
}

// Find returns the stored connection for (org, user, provider), or nil when
// the user never authorized the provider.
func (r *OAuthConnectionRepository) Find(ctx context.Context, orgID, userID int64, provider string) (*model.OAuthConnection, error) {
	query := `
        SELECT id, org_id, user_id, provider, access_token, refresh_token,
               expires_at, scopes, updated_at
        FROM oauth_connections
        WHERE org_id = $1 AND user_id = $2 AND provider = $3
    `
	var c model.OAuthConnection
	err := r.db.QueryRow(ctx, query, orgID, userID, provider).Scan(
		&c.ID,
		&c.OrgID,
		&c.UserID,
		&c.Provider,
		&c.AccessToken,
		&c.RefreshToken,
		&c.ExpiresAt,
		&c.Scopes,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// UpdateTokens persists a refreshed token pair. Providers can omit the refresh
// token when only the access token rotates, so the refresh token merges with
// COALESCE semantics: an empty incoming value never erases the stored one.
func (r *OAuthConnectionRepository) UpdateTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error {
	query := `
        UPDATE oauth_connections
        SET access_token  = $1,
            refresh_token = COALESCE(NULLIF($2, ''), refresh_token),
            expires_at    = $3,
            updated_at    = NOW()
        WHERE id = $4
    `
	_, err := r.db.Exec(ctx, query, accessToken, refreshToken, expiresAt, id)
	return err
}
