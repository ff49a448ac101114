// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 認証パイプライン、ミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordAuthOutcome(outcome string)
	RecordGateRejection(requirement, reason string)
	RecordHTTPStatus(statusCode int)
	RecordFeedFetch(result string)
	RecordFetchLatency(duration time.Duration)
	RecordGrantsDiscovered(count int)
	RecordNotificationsCreated(notificationType string, count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authOutcome          *prometheus.CounterVec
	gateRejections       *prometheus.CounterVec
	httpStatus           *prometheus.CounterVec
	feedFetch            *prometheus.CounterVec
	fetchLatency         prometheus.Histogram
	grantsDiscovered     prometheus.Counter
	notificationsCreated *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authOutcome: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grantdesk_auth_outcome_total",
			Help: "認証パイプラインの終端状態別の件数",
		}, []string{"outcome"}),
		gateRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grantdesk_gate_rejections_total",
			Help: "権限チェックで拒否されたリクエスト数",
		}, []string{"requirement", "reason"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grantdesk_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		feedFetch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grantdesk_feed_fetch_total",
			Help: "公募フィード取得の結果別の件数",
		}, []string{"result"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "grantdesk_feed_fetch_latency_seconds",
			Help:    "公募フィード取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		grantsDiscovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grantdesk_grants_discovered_total",
			Help: "フィードから新規登録された公募の合計数",
		}),
		notificationsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grantdesk_notifications_created_total",
			Help: "種類別の作成された通知数",
		}, []string{"type"}),
	}

	reg.MustRegister(
		c.authOutcome,
		c.gateRejections,
		c.httpStatus,
		c.feedFetch,
		c.fetchLatency,
		c.grantsDiscovered,
		c.notificationsCreated,
	)

	return c
}

// RecordAuthOutcome は認証パイプラインの終端状態を記録する。
func (c *Collector) RecordAuthOutcome(outcome string) {
	c.authOutcome.WithLabelValues(outcome).Inc()
}

// RecordGateRejection は権限チェックでの拒否を記録する。
func (c *Collector) RecordGateRejection(requirement, reason string) {
	c.gateRejections.WithLabelValues(requirement, reason).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFeedFetch はフィード取得の結果（success / fetch_error / parse_error）を記録する。
func (c *Collector) RecordFeedFetch(result string) {
	c.feedFetch.WithLabelValues(result).Inc()
}

// RecordFetchLatency はフェッチのレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordGrantsDiscovered は新規登録された公募数を記録する。
func (c *Collector) RecordGrantsDiscovered(count int) {
	c.grantsDiscovered.Add(float64(count))
}

// RecordNotificationsCreated は作成された通知数を記録する。
func (c *Collector) RecordNotificationsCreated(notificationType string, count int) {
	c.notificationsCreated.WithLabelValues(notificationType).Add(float64(count))
}

// NewRegistry はGoランタイムとプロセスのメトリクスを登録済みのレジストリを返す。
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
// 収集中のエラーはslogのデフォルトロガーへ出力し、取得できたメトリクスだけを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorLog:          slog.NewLogLogger(slog.Default().Handler(), slog.LevelError),
		ErrorHandling:     promhttp.ContinueOnError,
		EnableOpenMetrics: true,
	})
}

// SetupMetricsRoute はAPIとは別ポートで公開する運用向けのハンドラーを返す。
// /metrics に加え、HTTP APIを持たないworkerでも使える生存確認用の /livez を提供する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", Handler(gatherer))
	mux.HandleFunc("GET /livez", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}
