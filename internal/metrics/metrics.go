// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// パスワードリセットの段階ラベル
const (
	ResetStageRequested = "requested"
	ResetStageCompleted = "completed"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層とミドルウェアから利用する。
type MetricsCollector interface {
	RecordSignup()
	RecordLogin(success bool)
	RecordTokenRejection()
	RecordPasswordReset(stage string)
	RecordMailDeliveryFailure()
	RecordHTTPStatus(statusCode int)
	RecordRequestDuration(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	signups          prometheus.Counter
	logins           *prometheus.CounterVec
	tokenRejections  prometheus.Counter
	passwordResets   *prometheus.CounterVec
	mailFailures     prometheus.Counter
	httpStatus       *prometheus.CounterVec
	requestDurations prometheus.Histogram
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskman_signups_total",
			Help: "サインアップ成功の合計数",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskman_logins_total",
			Help: "ログイン試行の結果別合計数",
		}, []string{"result"}),
		tokenRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskman_token_rejections_total",
			Help: "拒否されたBearerトークンの合計数",
		}),
		passwordResets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskman_password_resets_total",
			Help: "パスワードリセットの段階別合計数",
		}, []string{"stage"}),
		mailFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskman_mail_delivery_failures_total",
			Help: "メール送信失敗の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestDurations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taskman_http_request_duration_seconds",
			Help:    "HTTPリクエスト処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.signups,
		c.logins,
		c.tokenRejections,
		c.passwordResets,
		c.mailFailures,
		c.httpStatus,
		c.requestDurations,
	)

	return c
}

// RecordSignup はサインアップ成功を記録する。
func (c *Collector) RecordSignup() {
	c.signups.Inc()
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.logins.WithLabelValues(result).Inc()
}

// RecordTokenRejection はトークン拒否を記録する。
func (c *Collector) RecordTokenRejection() {
	c.tokenRejections.Inc()
}

// RecordPasswordReset はパスワードリセットの段階を記録する。
func (c *Collector) RecordPasswordReset(stage string) {
	c.passwordResets.WithLabelValues(stage).Inc()
}

// RecordMailDeliveryFailure はメール送信失敗を記録する。
func (c *Collector) RecordMailDeliveryFailure() {
	c.mailFailures.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestDuration はリクエスト処理時間を記録する。
func (c *Collector) RecordRequestDuration(duration time.Duration) {
	c.requestDurations.Observe(duration.Seconds())
}

// Nop は何も記録しないMetricsCollector。メトリクス不要なテストや構成で使う。
type Nop struct{}

var _ MetricsCollector = Nop{}

func (Nop) RecordSignup()                       {}
func (Nop) RecordLogin(bool)                    {}
func (Nop) RecordTokenRejection()               {}
func (Nop) RecordPasswordReset(string)          {}
func (Nop) RecordMailDeliveryFailure()          {}
func (Nop) RecordHTTPStatus(int)                {}
func (Nop) RecordRequestDuration(time.Duration) {}

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
