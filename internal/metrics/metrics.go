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
// 認証サービス、画面ガード、ワーカーから利用する。
type MetricsCollector interface {
	RecordLogin(provider, outcome string, duration time.Duration)
	RecordLogout()
	RecordGuardDecision(screen, decision string)
	RecordDataFetch(operation string, err error)
	RecordHTTPStatus(statusCode int)
	RecordPurgedEntries(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	logins         *prometheus.CounterVec
	loginLatency   prometheus.Histogram
	logouts        prometheus.Counter
	guardDecisions *prometheus.CounterVec
	dataFetches    *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	purgedEntries  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dcode_login_total",
			Help: "ログイン試行の合計数（結果別）",
		}, []string{"provider", "outcome"}),
		loginLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dcode_login_latency_seconds",
			Help:    "認可コード交換を含むログイン処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dcode_logout_total",
			Help: "ログアウトの合計数",
		}),
		guardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dcode_guard_decisions_total",
			Help: "画面ごとのアクセス判定の合計数",
		}, []string{"screen", "decision"}),
		dataFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dcode_data_fetch_total",
			Help: "リポジトリ情報取得の合計数（結果別）",
		}, []string{"operation", "outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dcode_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		purgedEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dcode_session_entries_purged_total",
			Help: "保持期間を過ぎて削除されたセッションエントリの合計数",
		}),
	}

	reg.MustRegister(
		c.logins,
		c.loginLatency,
		c.logouts,
		c.guardDecisions,
		c.dataFetches,
		c.httpStatus,
		c.purgedEntries,
	)

	return c
}

// RecordLogin はログイン試行の結果を記録する。
// 認可コード交換に至らなかった失敗はdurationが0で、レイテンシには含めない。
func (c *Collector) RecordLogin(provider, outcome string, duration time.Duration) {
	c.logins.WithLabelValues(provider, outcome).Inc()
	if duration > 0 {
		c.loginLatency.Observe(duration.Seconds())
	}
}

// RecordLogout はログアウトを記録する。
func (c *Collector) RecordLogout() {
	c.logouts.Inc()
}

// RecordGuardDecision は画面のアクセス判定を記録する。
func (c *Collector) RecordGuardDecision(screen, decision string) {
	c.guardDecisions.WithLabelValues(screen, decision).Inc()
}

// RecordDataFetch はリポジトリ情報取得の結果を記録する。
func (c *Collector) RecordDataFetch(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	c.dataFetches.WithLabelValues(operation, outcome).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordPurgedEntries は削除されたセッションエントリ数を記録する。
func (c *Collector) RecordPurgedEntries(count int64) {
	c.purgedEntries.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
