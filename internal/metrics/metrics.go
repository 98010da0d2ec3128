// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitoshi/gamerooms/internal/model"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層・ミドルウェア・管理コマンドから利用する。
type MetricsCollector interface {
	RecordRoomOperation(operation string, err error, duration time.Duration)
	RecordModerationAction(action model.ModerationAction)
	RecordPushFailure(target string)
	RecordTxRetry()
	RecordLogsPurged(count int64)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	roomOps       *prometheus.CounterVec
	roomOpLatency *prometheus.HistogramVec
	moderation    *prometheus.CounterVec
	pushFailures  *prometheus.CounterVec
	txRetries     prometheus.Counter
	logsPurged    prometheus.Counter
	httpStatus    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		roomOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gamerooms_room_operations_total",
			Help: "ルーム操作の実行数（操作・結果別）",
		}, []string{"operation", "result"}),
		roomOpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gamerooms_room_operation_duration_seconds",
			Help:    "ルーム操作の処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		moderation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gamerooms_moderation_actions_total",
			Help: "モデレーション操作の実行数（種別別）",
		}, []string{"action"}),
		pushFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gamerooms_realtime_push_failures_total",
			Help: "リアルタイム通知の送信失敗数（宛先種別別）",
		}, []string{"target"}),
		txRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gamerooms_tx_retries_total",
			Help: "競合によるトランザクション再試行の合計数",
		}),
		logsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gamerooms_moderation_logs_purged_total",
			Help: "保持期間切れで削除されたモデレーションログの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gamerooms_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.roomOps,
		c.roomOpLatency,
		c.moderation,
		c.pushFailures,
		c.txRetries,
		c.logsPurged,
		c.httpStatus,
	)

	return c
}

// resultLabel はエラーを結果ラベルに変換する。
// 成功は "ok"、APIErrorはコードの小文字、それ以外は "error"。
func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if code := model.ErrorCode(err); code != "" {
		return strings.ToLower(code)
	}
	return "error"
}

// RecordRoomOperation はルーム操作の結果と処理時間を記録する。
func (c *Collector) RecordRoomOperation(operation string, err error, duration time.Duration) {
	c.roomOps.WithLabelValues(operation, resultLabel(err)).Inc()
	c.roomOpLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordModerationAction はモデレーション操作を記録する。
func (c *Collector) RecordModerationAction(action model.ModerationAction) {
	c.moderation.WithLabelValues(string(action)).Inc()
}

// RecordPushFailure はリアルタイム通知の送信失敗を記録する。
func (c *Collector) RecordPushFailure(target string) {
	c.pushFailures.WithLabelValues(target).Inc()
}

// RecordTxRetry はトランザクションの再試行を記録する。
func (c *Collector) RecordTxRetry() {
	c.txRetries.Inc()
}

// RecordLogsPurged は削除されたモデレーションログ数を記録する。
func (c *Collector) RecordLogsPurged(count int64) {
	c.logsPurged.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使用する。
type Nop struct{}

func (Nop) RecordRoomOperation(string, error, time.Duration) {}
func (Nop) RecordModerationAction(model.ModerationAction)    {}
func (Nop) RecordPushFailure(string)                         {}
func (Nop) RecordTxRetry()                                   {}
func (Nop) RecordLogsPurged(int64)                           {}
func (Nop) RecordHTTPStatus(int)                             {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
