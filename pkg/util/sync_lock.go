package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SyncLock guards one mailbox against concurrent sync passes. The scheduled
// loop and the on-demand triggers can overlap; only one pass per mailbox may
// run at a time. The TTL bounds lock leakage if a process dies mid-pass.
type SyncLock struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewSyncLock(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *SyncLock {
	return &SyncLock{rdb: rdb, ttl: ttl, logger: logger}
}

func lockKey(mailboxID int64) string {
	return fmt.Sprintf("lock:sync:mailbox:%d", mailboxID)
}

// Acquire returns true if the caller now owns the mailbox lock.
// Fail-open on redis errors: the dedup insert keeps overlapping passes
// correct, the lock only avoids wasted work.
func (l *SyncLock) Acquire(ctx context.Context, mailboxID int64) bool {
	ok, err := l.rdb.SetNX(ctx, lockKey(mailboxID), 1, l.ttl).Result()
	if err != nil {
		if l.logger != nil {
			l.logger.Warn("Redis sync lock failed, allowing pass",
				zap.Int64("mailbox_id", mailboxID),
				zap.Error(err),
			)
		}
		return true
	}
	return ok
}

func (l *SyncLock) Release(ctx context.Context, mailboxID int64) {
	if err := l.rdb.Del(ctx, lockKey(mailboxID)).Err(); err != nil && l.logger != nil {
		l.logger.Warn("Failed to release sync lock",
			zap.Int64("mailbox_id", mailboxID),
			zap.Error(err),
		)
	}
}
