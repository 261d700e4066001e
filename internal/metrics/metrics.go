// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordDeliverySent()
	RecordDeliveryFailed()
	RecordTickDuration(duration time.Duration)
	RecordDueBatchSize(count int)
	RecordCleanupDeleted(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	deliverySent   prometheus.Counter
	deliveryFailed prometheus.Counter
	tickDuration   prometheus.Histogram
	dueBatchSize   prometheus.Histogram
	cleanupDeleted prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		deliverySent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "weatherpost_delivery_sent_total",
			Help: "メール送信成功の合計数",
		}),
		deliveryFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "weatherpost_delivery_failed_total",
			Help: "メール送信失敗の合計数",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "weatherpost_tick_duration_seconds",
			Help:    "スケジュールスキャン1回あたりの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		dueBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "weatherpost_due_batch_size",
			Help:    "1回のスキャンで処理した到期スケジュール数",
			Buckets: []float64{0, 1, 2, 5, 10, 20},
		}),
		cleanupDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "weatherpost_cleanup_deleted_total",
			Help: "保持期間クリーンアップで削除した記録の合計数",
		}),
	}

	reg.MustRegister(
		c.deliverySent,
		c.deliveryFailed,
		c.tickDuration,
		c.dueBatchSize,
		c.cleanupDeleted,
	)

	return c
}

// RecordDeliverySent は送信成功を記録する。
func (c *Collector) RecordDeliverySent() {
	c.deliverySent.Inc()
}

// RecordDeliveryFailed は送信失敗を記録する。
func (c *Collector) RecordDeliveryFailed() {
	c.deliveryFailed.Inc()
}

// RecordTickDuration はスキャン1回の処理時間を記録する。
func (c *Collector) RecordTickDuration(duration time.Duration) {
	c.tickDuration.Observe(duration.Seconds())
}

// RecordDueBatchSize は処理した到期スケジュール数を記録する。
func (c *Collector) RecordDueBatchSize(count int) {
	c.dueBatchSize.Observe(float64(count))
}

// RecordCleanupDeleted はクリーンアップによる削除件数を記録する。
func (c *Collector) RecordCleanupDeleted(count int64) {
	c.cleanupDeleted.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
