// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラー・ガード・ワーカーから利用する。
type MetricsCollector interface {
	RecordLoginAttempt(outcome string)
	RecordGuardDecision(state string)
	RecordSessionRotation()
	RecordOrderPlaced()
	RecordOrderExpired()
	RecordHTTPStatus(statusCode int)
	RecordOrderPlacementLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginAttempts    *prometheus.CounterVec
	guardDecisions   *prometheus.CounterVec
	sessionRotations prometheus.Counter
	ordersPlaced     prometheus.Counter
	ordersExpired    prometheus.Counter
	httpStatus       *prometheus.CounterVec
	orderLatency     prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dishpatch_login_attempts_total",
			Help: "ログイン試行の結果別合計数",
		}, []string{"outcome"}),
		guardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dishpatch_guard_decisions_total",
			Help: "ルートガード判定の状態別合計数",
		}, []string{"state"}),
		sessionRotations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dishpatch_session_rotations_total",
			Help: "リフレッシュトークンによるセッションローテーションの合計数",
		}),
		ordersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dishpatch_orders_placed_total",
			Help: "受け付けた注文の合計数",
		}),
		ordersExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dishpatch_orders_expired_total",
			Help: "自動キャンセルされた注文の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dishpatch_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		orderLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dishpatch_order_placement_latency_seconds",
			Help:    "注文確定処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.loginAttempts,
		c.guardDecisions,
		c.sessionRotations,
		c.ordersPlaced,
		c.ordersExpired,
		c.httpStatus,
		c.orderLatency,
	)

	return c
}

// RecordLoginAttempt はログイン試行の結果（success/failure）を記録する。
func (c *Collector) RecordLoginAttempt(outcome string) {
	c.loginAttempts.WithLabelValues(outcome).Inc()
}

// RecordGuardDecision はルートガードの判定状態を記録する。
func (c *Collector) RecordGuardDecision(state string) {
	c.guardDecisions.WithLabelValues(state).Inc()
}

// RecordSessionRotation はセッションローテーションを記録する。
func (c *Collector) RecordSessionRotation() {
	c.sessionRotations.Inc()
}

// RecordOrderPlaced は注文受付を記録する。
func (c *Collector) RecordOrderPlaced() {
	c.ordersPlaced.Inc()
}

// RecordOrderExpired は注文の自動キャンセルを記録する。
func (c *Collector) RecordOrderExpired() {
	c.ordersExpired.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordOrderPlacementLatency は注文確定処理のレイテンシを記録する。
func (c *Collector) RecordOrderPlacementLatency(duration time.Duration) {
	c.orderLatency.Observe(duration.Seconds())
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
