package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"inboxpilot/internal/model"
)

type VoiceProfileRepository struct {
	db *pgxpool.Pool
}

func NewVoiceProfileRepository(db *pgxpool.Pool) *VoiceProfileRepository {
	return &VoiceProfileRepository{db: db}
}

// FindTrainedByUser returns the user's voice profile only when its trained
// flag is set. A missing or untrained profile returns nil.
func (r *VoiceProfileRepository) FindTrainedByUser(ctx context.Context, userID int64) (*model.VoiceProfile, error) {
	query := `
        SELECT id, user_id, trained, tone, formality, greeting, closing,
               sentence_length, uses_emoji, uses_exclamation, common_phrases, sample_texts
        FROM voice_profiles
        WHERE user_id = $1 AND trained = TRUE
    `
	var p model.VoiceProfile
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&p.ID,
		&p.UserID,
		&p.Trained,
		&p.Tone,
		&p.Formality,
		&p.Greeting,
		&p.Closing,
		&p.SentenceLength,
		&p.UsesEmoji,
		&p.UsesExclamation,
		&p.CommonPhrases,
		&p.SampleTexts,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}
