package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"inboxpilot/internal/model"
)

type AISettingsRepository struct {
	db *pgxpool.Pool
}

func NewAISettingsRepository(db *pgxpool.Pool) *AISettingsRepository {
	return &AISettingsRepository{db: db}
}

// FindByOrg returns the organization's AI backend settings, or nil when the
// org relies on the global default.
func (r *AISettingsRepository) FindByOrg(ctx context.Context, orgID int64) (*model.AISettings, error) {
	query := `
        SELECT org_id, provider, model, api_key, base_url
        FROM ai_settings
        WHERE org_id = $1
    `
	var s model.AISettings
	err := r.db.QueryRow(ctx, query, orgID).Scan(&s.OrgID, &s.Provider, &s.Model, &s.APIKey, &s.BaseURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}
