package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/gamerooms/internal/metrics"
)

// statusRecorder はhttp.ResponseWriterをラップし、ステータスコードを記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

// WriteHeader はステータスコードを記録してから委譲する。
func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Write はデータを書き込む。WriteHeaderが未呼び出しの場合は200を記録する。
func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// logFields は内側のミドルウェアがログ項目を書き戻すための入れ物。
type logFields struct {
	userID string
}

var logFieldsContextKey = contextKey("log_fields")

// setLogUserID は認証済みユーザーIDをリクエストログに記録する。
func setLogUserID(ctx context.Context, userID string) {
	if lf, ok := ctx.Value(logFieldsContextKey).(*logFields); ok {
		lf.userID = userID
	}
}

// NewLoggingMiddleware はリクエストのJSON構造化ログを出力し、
// ステータスコード別のレスポンス数をメトリクスに記録するミドルウェアを返す。
// ログにはmethod、path、route、status、duration_ms、request_id、user_id（認証済みの場合）を含む。
func NewLoggingMiddleware(logger *slog.Logger, m metrics.MetricsCollector) func(next http.Handler) http.Handler {
	if m == nil {
		m = metrics.Nop{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}
			lf := &logFields{}

			next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), logFieldsContextKey, lf)))

			duration := time.Since(start)
			durationMs := float64(duration.Nanoseconds()) / float64(time.Millisecond)
			m.RecordHTTPStatus(rec.statusCode)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Float64("duration_ms", durationMs),
			}

			// chiのルートパターン（/api/rooms/{id} など）
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					attrs = append(attrs, slog.String("route", pattern))
				}
			}
			if reqID := chimw.GetReqID(r.Context()); reqID != "" {
				attrs = append(attrs, slog.String("request_id", reqID))
			}
			if lf.userID != "" {
				attrs = append(attrs, slog.String("user_id", lf.userID))
			}

			level := slog.LevelInfo
			if rec.statusCode >= 500 {
				level = slog.LevelError
			} else if rec.statusCode >= 400 {
				level = slog.LevelWarn
			}

			logger.LogAttrs(r.Context(), level, "http_request", attrs...)
		})
	}
}
