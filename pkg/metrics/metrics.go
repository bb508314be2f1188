package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 连接器抓取延迟（毫秒）
	ConnectorFetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "connector_fetch_latency_ms",
			Help:    "Mailbox connector fetch latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"kind", "status"},
	)

	// AI 调用延迟（毫秒）
	AICallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_call_latency_ms",
			Help:    "AI backend call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10),
		},
		[]string{"operation", "status"},
	)

	// 同步 pass 时长（秒）
	SyncPassDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_pass_duration_seconds",
			Help:    "Duration of one mailbox sync pass in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"kind", "status"},
	)

	// 邮件入库计数
	EmailIngestedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_ingested_count",
			Help: "Total number of emails ingested",
		},
		[]string{"kind"}, // kind: imap, gmail
	)

	// 分类计数（按路径：ai 或 heuristic fallback）
	ClassificationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classification_count",
			Help: "Total number of messages classified",
		},
		[]string{"path", "category"}, // path: ai, heuristic
	)

	// 草稿生成计数
	DraftGeneratedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draft_generated_count",
			Help: "Total number of reply drafts generated",
		},
		[]string{"status"}, // status: created, skipped, failed
	)

	// 调度 tick 计数
	SchedulerTickCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_tick_count",
			Help: "Total number of scheduler ticks",
		},
		[]string{"result"}, // result: ran, skipped_busy
	)
)

// RecordConnectorFetchLatency 记录连接器抓取延迟
func RecordConnectorFetchLatency(kind, status string, duration time.Duration) {
	ConnectorFetchLatency.WithLabelValues(kind, status).Observe(float64(duration.Milliseconds()))
}

// RecordAICallLatency 记录 AI 调用延迟
func RecordAICallLatency(operation, status string, duration time.Duration) {
	AICallLatency.WithLabelValues(operation, status).Observe(float64(duration.Milliseconds()))
}

// RecordSyncPassDuration 记录同步 pass 时长
func RecordSyncPassDuration(kind, status string, duration time.Duration) {
	SyncPassDuration.WithLabelValues(kind, status).Observe(duration.Seconds())
}

// IncrementEmailIngested 增加邮件入库计数
func IncrementEmailIngested(kind string) {
	EmailIngestedCount.WithLabelValues(kind).Inc()
}

// IncrementClassification 增加分类计数
func IncrementClassification(path, category string) {
	ClassificationCount.WithLabelValues(path, category).Inc()
}

// IncrementDraftGenerated 增加草稿生成计数
func IncrementDraftGenerated(status string) {
	DraftGeneratedCount.WithLabelValues(status).Inc()
}

// IncrementSchedulerTick 增加调度 tick 计数
func IncrementSchedulerTick(result string) {
	SchedulerTickCount.WithLabelValues(result).Inc()
}
