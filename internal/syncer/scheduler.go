package syncer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"inboxpilot/internal/model"
	"inboxpilot/pkg/metrics"
)

type SyncSettingStore interface {
	ListEnabled(ctx context.Context) ([]model.UserSyncSetting, error)
	UpdateLastRun(ctx context.Context, id int64, at time.Time) error
}

// UserSyncer runs a full pass for one user; *Orchestrator satisfies it.
type UserSyncer interface {
	SyncMailboxesForUser(ctx context.Context, userID int64) ([]UserSyncOutcome, error)
}

// Scheduler drives per-user mailbox syncs on a fixed tick. It is cooperative:
// one tick fully completes before the next may start, enforced by an owned
// running flag, not a distributed lock — single process instance assumed.
type Scheduler struct {
	settings SyncSettingStore
	syncer   UserSyncer
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	running bool

	now func() time.Time
}

func NewScheduler(settings SyncSettingStore, syncer UserSyncer, interval time.Duration, log *zap.Logger) *Scheduler {
	return &Scheduler{
		settings: settings,
		syncer:   syncer,
		interval: interval,
		logger:   log,
		now:      time.Now,
	}
}

// Start blocks on the tick loop until the context is cancelled. Intended to
// run in its own goroutine from main.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Scheduler started", zap.Duration("tick_interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// 启动后先跑一轮
	s.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick scans enabled sync settings and runs a pass for each due user. If a
// previous tick is still running the whole tick is skipped.
func (s *Scheduler) Tick(ctx context.Context) {
	if !s.begin() {
		s.logger.Warn("Previous scheduler tick still running, skipping")
		metrics.IncrementSchedulerTick("skipped_busy")
		return
	}
	defer s.end()
	metrics.IncrementSchedulerTick("ran")

	settings, err := s.settings.ListEnabled(ctx)
	if err != nil {
		s.logger.Error("Failed to load sync settings", zap.Error(err))
		return
	}

	now := s.now()
	for _, setting := range settings {
		if !setting.Due(now) {
			continue
		}

		s.runUser(ctx, setting)

		// 无论本轮部分失败与否都推进 last_run_at：失败账号按节奏重试，
		// 不做立即重试
		if err := s.settings.UpdateLastRun(ctx, setting.ID, now); err != nil {
			s.logger.Error("Failed to advance last_run_at",
				zap.Int64("setting_id", setting.ID),
				zap.Int64("user_id", setting.UserID),
				zap.Error(err),
			)
		}
	}
}

// runUser contains one user's pass: errors and panics are logged and must not
// leak into the tick loop.
func (s *Scheduler) runUser(ctx context.Context, setting model.UserSyncSetting) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("User sync pass panicked",
				zap.Int64("user_id", setting.UserID),
				zap.Any("panic", r),
			)
		}
	}()

	outcomes, err := s.syncer.SyncMailboxesForUser(ctx, setting.UserID)
	if err != nil {
		s.logger.Error("User sync pass failed",
			zap.Int64("user_id", setting.UserID),
			zap.Error(err),
		)
		return
	}

	total := 0
	for _, outcome := range outcomes {
		if outcome.Result != nil {
			total += outcome.Result.EmailCount
		}
	}
	s.logger.Info("User sync pass completed",
		zap.Int64("user_id", setting.UserID),
		zap.Int("mailboxes", len(outcomes)),
		zap.Int("email_count", total),
	)
}

func (s *Scheduler) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Scheduler) end() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}
