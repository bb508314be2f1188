package mqhandler

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"inboxpilot/internal/events"
	"inboxpilot/internal/syncer"
)

// SyncRequestedHandler runs an on-demand sync pass when a sync.requested
// event arrives. Per-mailbox failures are reported by the orchestrator and
// must not nack the event: the deduplicating insert makes redelivery safe but
// pointless.
type SyncRequestedHandler struct {
	syncer syncer.UserSyncer
	logger *zap.Logger
}

func NewSyncRequestedHandler(s syncer.UserSyncer, logger *zap.Logger) *SyncRequestedHandler {
	return &SyncRequestedHandler{syncer: s, logger: logger}
}

func (h *SyncRequestedHandler) HandleSyncRequested(ctx context.Context, raw json.RawMessage) error {
	var p events.SyncRequestedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal sync.requested payload", zap.Error(err))
		return err
	}

	h.logger.Info("Processing sync.requested", zap.Int64("user_id", p.UserID))

	outcomes, err := h.syncer.SyncMailboxesForUser(ctx, p.UserID)
	if err != nil {
		// 用户解析失败等：记日志即可，不重投
		h.logger.Error("On-demand sync failed",
			zap.Int64("user_id", p.UserID),
			zap.Error(err),
		)
		return nil
	}

	for _, outcome := range outcomes {
		if outcome.Err != nil {
			h.logger.Warn("Mailbox failed during on-demand sync",
				zap.Int64("user_id", p.UserID),
				zap.Int64("mailbox_id", outcome.Mailbox.ID),
				zap.Error(outcome.Err),
			)
		}
	}
	return nil
}
