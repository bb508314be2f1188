// Package draft implements the auto-draft gating policy: a reply draft is
// generated only when the user opted in for the message's category, no draft
// exists yet for the (message, user) pair, and a trained voice profile is
// available.
package draft

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"inboxpilot/internal/model"
	"inboxpilot/pkg/logger"
	"inboxpilot/pkg/metrics"
)

type SettingStore interface {
	FindByUser(ctx context.Context, userID int64) (*model.UserAutoDraftSetting, error)
}

type DraftStore interface {
	ExistsFor(ctx context.Context, messageID, userID int64) (bool, error)
	Insert(ctx context.Context, d *model.EmailDraft) (int64, error)
}

type VoiceStore interface {
	FindTrainedByUser(ctx context.Context, userID int64) (*model.VoiceProfile, error)
}

type AIClient interface {
	Complete(ctx context.Context, orgID int64, operation, system, user string) (string, error)
}

type Policy struct {
	settings SettingStore
	drafts   DraftStore
	voices   VoiceStore
	ai       AIClient
	logger   *zap.Logger
}

func NewPolicy(settings SettingStore, drafts DraftStore, voices VoiceStore, ai AIClient, log *zap.Logger) *Policy {
	return &Policy{
		settings: settings,
		drafts:   drafts,
		voices:   voices,
		ai:       ai,
		logger:   log,
	}
}

// MaybeGenerateDraft returns the persisted draft, or nil when any gate blocks
// or generation fails. Failures here are logged and swallowed: a missing AI
// key or a bad completion must not fail the sync pass, and the ingested
// message count is unaffected either way.
func (p *Policy) MaybeGenerateDraft(ctx context.Context, msg *model.EmailMessage, category model.Category, user model.User) *model.EmailDraft {
	log := logger.WithTrace(ctx, p.logger).With(
		zap.Int64("message_id", msg.ID),
		zap.Int64("user_id", user.ID),
	)

	setting, err := p.settings.FindByUser(ctx, user.ID)
	if err != nil {
		log.Error("Failed to load auto-draft setting", zap.Error(err))
		return nil
	}
	if setting == nil || !setting.Enabled {
		return nil
	}
	if !setting.OptedIn(category) {
		return nil
	}

	exists, err := p.drafts.ExistsFor(ctx, msg.ID, user.ID)
	if err != nil {
		log.Error("Failed to check existing draft", zap.Error(err))
		return nil
	}
	if exists {
		metrics.IncrementDraftGenerated("skipped")
		return nil
	}

	profile, err := p.voices.FindTrainedByUser(ctx, user.ID)
	if err != nil {
		log.Error("Failed to load voice profile", zap.Error(err))
		return nil
	}
	if profile == nil {
		return nil
	}

	subject, body, err := p.generate(ctx, msg, profile)
	if err != nil {
		// 生成失败只记日志；没有启发式兜底
		log.Warn("Draft generation failed", zap.Error(err))
		metrics.IncrementDraftGenerated("failed")
		return nil
	}

	d := &model.EmailDraft{
		OrgID:     msg.OrgID,
		UserID:    user.ID,
		MessageID: msg.ID,
		Subject:   subject,
		Body:      body,
	}
	id, err := p.drafts.Insert(ctx, d)
	if err != nil {
		log.Error("Failed to persist draft", zap.Error(err))
		metrics.IncrementDraftGenerated("failed")
		return nil
	}
	d.ID = id

	metrics.IncrementDraftGenerated("created")
	log.Info("Auto-draft created", zap.Int64("draft_id", id), zap.String("category", string(category)))
	return d
}

func (p *Policy) generate(ctx context.Context, msg *model.EmailMessage, profile *model.VoiceProfile) (subject, body string, err error) {
	system, user := buildPrompt(profile, msg)
	content, err := p.ai.Complete(ctx, msg.OrgID, "draft", system, user)
	if err != nil {
		return "", "", err
	}

	var parsed struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return "", "", fmt.Errorf("parse draft response: %w", err)
	}
	if parsed.Body == "" {
		return "", "", fmt.Errorf("draft response has empty body")
	}
	if parsed.Subject == "" {
		parsed.Subject = "Re: " + msg.Subject
	}
	return parsed.Subject, parsed.Body, nil
}
