// Package syncer coordinates the per-mailbox sync pipeline and the scheduler
// that drives it on each user's cadence.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"inboxpilot/internal/classifier"
	"inboxpilot/internal/connector"
	"inboxpilot/internal/events"
	"inboxpilot/internal/model"
	"inboxpilot/pkg/logger"
	"inboxpilot/pkg/metrics"
)

// ErrPassInProgress means another pass currently owns the mailbox lock.
var ErrPassInProgress = errors.New("sync pass already in progress for mailbox")

type ConnectorFactory interface {
	ForMailbox(m model.Mailbox) (connector.Connector, error)
}

type MessageStore interface {
	InsertIfAbsent(ctx context.Context, e *model.EmailMessage) (int64, bool, error)
	SetCategory(ctx context.Context, id int64, category model.Category) error
}

type TaskStore interface {
	Insert(ctx context.Context, t *model.DetectedTask) (int64, error)
}

type MailboxStore interface {
	ListActiveByUser(ctx context.Context, userID int64) ([]model.Mailbox, error)
	MarkActive(ctx context.Context, id int64) error
}

type UserStore interface {
	FindByID(ctx context.Context, id int64) (*model.User, error)
}

type ActivityStore interface {
	Insert(ctx context.Context, a *model.ActivityLog) error
}

type Classifier interface {
	Classify(ctx context.Context, orgID int64, subject, body string) classifier.Result
}

type DraftPolicy interface {
	MaybeGenerateDraft(ctx context.Context, msg *model.EmailMessage, category model.Category, user model.User) *model.EmailDraft
}

type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// MailboxLocker guards one mailbox against concurrent passes.
type MailboxLocker interface {
	Acquire(ctx context.Context, mailboxID int64) bool
	Release(ctx context.Context, mailboxID int64)
}

// Precheck is the redis fast path in front of the dedup insert.
type Precheck interface {
	AcquireOnce(ctx context.Context, providerMessageID string) bool
	Release(ctx context.Context, providerMessageID string)
}

// SyncResult is the terminal count of one mailbox pass.
type SyncResult struct {
	MailboxID  int64
	EmailCount int
	Emails     []model.EmailMessage
}

// UserSyncOutcome pairs a mailbox with its pass result or its aggregate
// error. One mailbox failing never hides the others.
type UserSyncOutcome struct {
	Mailbox model.Mailbox
	Result  *SyncResult
	Err     error
}

type Orchestrator struct {
	connectors ConnectorFactory
	messages   MessageStore
	tasks      TaskStore
	mailboxes  MailboxStore
	users      UserStore
	activity   ActivityStore
	classify   Classifier
	drafts     DraftPolicy
	publisher  Publisher
	lock       MailboxLocker
	precheck   Precheck
	logger     *zap.Logger
}

func NewOrchestrator(
	connectors ConnectorFactory,
	messages MessageStore,
	tasks TaskStore,
	mailboxes MailboxStore,
	users UserStore,
	activity ActivityStore,
	classify Classifier,
	drafts DraftPolicy,
	publisher Publisher,
	lock MailboxLocker,
	precheck Precheck,
	log *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		connectors: connectors,
		messages:   messages,
		tasks:      tasks,
		mailboxes:  mailboxes,
		users:      users,
		activity:   activity,
		classify:   classify,
		drafts:     drafts,
		publisher:  publisher,
		lock:       lock,
		precheck:   precheck,
		logger:     log,
	}
}

// SyncMailboxesForUser runs a pass over every active mailbox of the user. A
// failing mailbox is contained in its outcome; the rest still run.
func (o *Orchestrator) SyncMailboxesForUser(ctx context.Context, userID int64) ([]UserSyncOutcome, error) {
	user, err := o.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve user %d: %w", userID, err)
	}

	mailboxes, err := o.mailboxes.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list mailboxes for user %d: %w", userID, err)
	}

	log := logger.WithTrace(ctx, o.logger)

	outcomes := make([]UserSyncOutcome, 0, len(mailboxes))
	for _, mailbox := range mailboxes {
		result, err := o.SyncMailbox(ctx, mailbox, *user)
		if err != nil {
			log.Error("Mailbox sync failed",
				zap.Int64("mailbox_id", mailbox.ID),
				zap.String("address", mailbox.Address),
				zap.Error(err),
			)
		}
		outcomes = append(outcomes, UserSyncOutcome{Mailbox: mailbox, Result: result, Err: err})
	}
	return outcomes, nil
}

// SyncMailbox runs one pass: connect, fetch a bounded batch, then per new
// message persist, classify, extract tasks and maybe draft, and finalize with
// an activity record carrying the ingested count.
func (o *Orchestrator) SyncMailbox(ctx context.Context, mailbox model.Mailbox, user model.User) (*SyncResult, error) {
	if o.lock != nil {
		if !o.lock.Acquire(ctx, mailbox.ID) {
			return nil, ErrPassInProgress
		}
		defer o.lock.Release(ctx, mailbox.ID)
	}

	log := logger.WithTrace(ctx, o.logger).With(
		zap.Int64("mailbox_id", mailbox.ID),
		zap.String("address", mailbox.Address),
		zap.String("kind", string(mailbox.Kind)),
	)

	start := time.Now()

	conn, err := o.connectors.ForMailbox(mailbox)
	if err != nil {
		return nil, err
	}

	raws, err := conn.FetchRecent(ctx, mailbox)
	if err != nil {
		metrics.RecordSyncPassDuration(string(mailbox.Kind), "failed", time.Since(start))
		return nil, err
	}

	result := &SyncResult{MailboxID: mailbox.ID}
	for _, raw := range raws {
		msg, ok := o.ingestMessage(ctx, log, mailbox, user, raw)
		if !ok {
			continue
		}
		result.EmailCount++
		result.Emails = append(result.Emails, *msg)
	}

	o.finalize(ctx, log, mailbox, user, result)
	metrics.RecordSyncPassDuration(string(mailbox.Kind), "ok", time.Since(start))
	return result, nil
}

// ingestMessage handles one fetched message. Returns false when the message
// was already processed or could not be stored; both are message-local.
func (o *Orchestrator) ingestMessage(ctx context.Context, log *zap.Logger, mailbox model.Mailbox, user model.User, raw connector.RawMessage) (*model.EmailMessage, bool) {
	// Redis 快速去重；DB 唯一约束才是最终保证
	if o.precheck != nil && !o.precheck.AcquireOnce(ctx, raw.ProviderMessageID) {
		return nil, false
	}

	msg := &model.EmailMessage{
		OrgID:             mailbox.OrgID,
		MailboxID:         mailbox.ID,
		ProviderMessageID: raw.ProviderMessageID,
		From:              raw.From,
		Subject:           raw.Subject,
		BodyText:          raw.BodyText,
		BodyHTML:          raw.BodyHTML,
		ReceivedAt:        raw.ReceivedAt,
		Read:              raw.Read,
	}

	id, inserted, err := o.messages.InsertIfAbsent(ctx, msg)
	if err != nil {
		log.Error("Failed to store message",
			zap.String("provider_message_id", raw.ProviderMessageID),
			zap.Error(err),
		)
		if o.precheck != nil {
			o.precheck.Release(ctx, raw.ProviderMessageID)
		}
		return nil, false
	}
	if !inserted {
		// 已入库：跳过全部下游处理
		return nil, false
	}
	msg.ID = id
	metrics.IncrementEmailIngested(string(mailbox.Kind))

	// 分类永不失败（AI 挂了退化为关键词启发式）
	classification := o.classify.Classify(ctx, mailbox.OrgID, msg.Subject, msg.BodyText)
	if err := o.messages.SetCategory(ctx, id, classification.Category); err != nil {
		log.Error("Failed to store classification label",
			zap.Int64("message_id", id),
			zap.Error(err),
		)
	}
	msg.Category = &classification.Category

	for _, candidate := range classification.Tasks {
		task := &model.DetectedTask{
			OrgID:       mailbox.OrgID,
			UserID:      user.ID,
			MessageID:   id,
			Title:       candidate.Title,
			Description: candidate.Description,
			Priority:    candidate.Priority,
			DueDate:     candidate.DueDate,
		}
		if _, err := o.tasks.Insert(ctx, task); err != nil {
			log.Error("Failed to store detected task",
				zap.Int64("message_id", id),
				zap.String("title", candidate.Title),
				zap.Error(err),
			)
		}
	}

	if o.publisher != nil {
		payload := events.EmailIngestedPayload{
			MessageID:  id,
			OrgID:      mailbox.OrgID,
			UserID:     user.ID,
			MailboxID:  mailbox.ID,
			Category:   string(classification.Category),
			Subject:    msg.Subject,
			ReceivedAt: msg.ReceivedAt,
		}
		if err := o.publisher.Publish(ctx, events.EmailIngested, payload); err != nil {
			log.Warn("Failed to publish email.ingested event", zap.Error(err))
		}
	}

	if o.drafts != nil {
		o.drafts.MaybeGenerateDraft(ctx, msg, classification.Category, user)
	}

	return msg, true
}

func (o *Orchestrator) finalize(ctx context.Context, log *zap.Logger, mailbox model.Mailbox, user model.User, result *SyncResult) {
	if err := o.mailboxes.MarkActive(ctx, mailbox.ID); err != nil {
		log.Error("Failed to mark mailbox active", zap.Error(err))
	}

	activity := &model.ActivityLog{
		OrgID:       mailbox.OrgID,
		UserID:      user.ID,
		Type:        "email_sync",
		Description: fmt.Sprintf("Synced %d new message(s) for %s", result.EmailCount, mailbox.Address),
	}
	if err := o.activity.Insert(ctx, activity); err != nil {
		log.Error("Failed to write sync activity record", zap.Error(err))
	}

	if o.publisher != nil {
		payload := events.SyncCompletedPayload{
			MailboxID:  mailbox.ID,
			OrgID:      mailbox.OrgID,
			UserID:     user.ID,
			EmailCount: result.EmailCount,
		}
		if err := o.publisher.Publish(ctx, events.SyncCompleted, payload); err != nil {
			log.Warn("Failed to publish sync.completed event", zap.Error(err))
		}
	}

	log.Info("Mailbox pass completed", zap.Int("email_count", result.EmailCount))
}
