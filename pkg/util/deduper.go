package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper is a redis-backed fast path in front of the database dedup insert.
// It is fail-open: when redis is unavailable processing is allowed and the
// unique constraint in the database remains the source of truth.
type Deduper struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewDeduper(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Deduper {
	return &Deduper{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

// AcquireOnce tries to acquire a dedup marker for a provider message id.
// Returns true if this is the first time the message is seen, false if it is
// a duplicate.
func (d *Deduper) AcquireOnce(ctx context.Context, providerMessageID string) bool {
	key := fmt.Sprintf("dedup:message:%s", providerMessageID)

	ok, err := d.rdb.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		// Redis 挂了？为了安全：当 redis 不可用时，不阻止处理，返回 true
		if d.logger != nil {
			d.logger.Warn("Redis dedup check failed, allowing processing",
				zap.String("provider_message_id", providerMessageID),
				zap.Error(err),
			)
		}
		return true
	}

	if !ok && d.logger != nil {
		d.logger.Debug("Skipped duplicated message",
			zap.String("provider_message_id", providerMessageID),
			zap.String("dedup_key", key),
		)
	}

	return ok
}

// Release drops the dedup marker so a later pass can retry the message.
// Used when the database insert fails after the marker was taken.
func (d *Deduper) Release(ctx context.Context, providerMessageID string) {
	key := fmt.Sprintf("dedup:message:%s", providerMessageID)
	if err := d.rdb.Del(ctx, key).Err(); err != nil && d.logger != nil {
		d.logger.Warn("Failed to release dedup marker",
			zap.String("provider_message_id", providerMessageID),
			zap.Error(err),
		)
	}
}
