// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はセッション層のPrometheusメトリクスを収集する。
// session.Metricsインターフェースを実装する。
type Collector struct {
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	sessionsCreated prometheus.Counter
	sessionsSwept   prometheus.Counter
	storeErrors     prometheus.Counter
	updatesSent     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "draive_session_cache_hits_total",
			Help: "セッションキャッシュヒットの合計数",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "draive_session_cache_misses_total",
			Help: "セッションキャッシュミスの合計数（キャッシュ障害を含む）",
		}),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "draive_sessions_created_total",
			Help: "新規作成されたセッションの合計数",
		}),
		sessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "draive_sessions_swept_total",
			Help: "掃引ジョブで削除された期限切れセッションの合計数",
		}),
		storeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "draive_store_errors_total",
			Help: "永続ストア操作失敗の合計数",
		}),
		updatesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "draive_telegram_sends_total",
			Help: "Telegram送信の結果別合計数",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.cacheHits,
		c.cacheMisses,
		c.sessionsCreated,
		c.sessionsSwept,
		c.storeErrors,
		c.updatesSent,
	)

	return c
}

// RecordCacheHit はキャッシュヒットを記録する。
func (c *Collector) RecordCacheHit() {
	c.cacheHits.Inc()
}

// RecordCacheMiss はキャッシュミスを記録する。
func (c *Collector) RecordCacheMiss() {
	c.cacheMisses.Inc()
}

// RecordSessionCreated は新規セッション作成を記録する。
func (c *Collector) RecordSessionCreated() {
	c.sessionsCreated.Inc()
}

// RecordSessionsSwept は掃引で削除されたセッション数を記録する。
func (c *Collector) RecordSessionsSwept(count int64) {
	c.sessionsSwept.Add(float64(count))
}

// RecordStoreError は永続ストア操作の失敗を記録する。
func (c *Collector) RecordStoreError() {
	c.storeErrors.Inc()
}

// RecordTelegramSend はTelegram送信の結果を記録する。resultは"ok"または"error"。
func (c *Collector) RecordTelegramSend(result string) {
	c.updatesSent.WithLabelValues(result).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
