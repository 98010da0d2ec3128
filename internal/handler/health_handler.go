package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HealthChecker は依存先の疎通確認を行うインターフェース。*sql.DB が満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

type healthResponse struct {
	Status string `json:"status"`
}

// NewHealthHandler はデータベースへの疎通を確認するヘルスチェックハンドラーを返す。
// GET /health
func NewHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.PingContext(ctx); err != nil {
			slog.WarnContext(r.Context(), "health check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}
