// Package cleanup はモデレーションログの保持期間管理ジョブを提供する。
// 保持期間（デフォルト90日）を超過したログを削除する。
// スケジューラは持たず、管理コマンド（gamerooms purge-logs）から明示的に実行する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Purger は指定期間より古いモデレーションログを削除するインターフェース。
// moderation.Service が満たす。
type Purger interface {
	PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

// CleanupJob は保持期間を超過したモデレーションログの削除ジョブ。
// 冪等であり、削除対象がない場合でもエラーにならない。
type CleanupJob struct {
	purger        Purger
	logger        *slog.Logger
	RetentionDays int // ログの保持日数（デフォルト: 90）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(purger Purger, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		purger:        purger,
		logger:        logger,
		RetentionDays: 90,
	}
}

// Run は保持期間を超過したログを削除し、削除件数を返す。
func (j *CleanupJob) Run(ctx context.Context) (int64, error) {
	start := time.Now()

	if j.RetentionDays < 1 {
		return 0, fmt.Errorf("保持日数は1以上で指定してください: %d", j.RetentionDays)
	}
	age := time.Duration(j.RetentionDays) * 24 * time.Hour

	deletedCount, err := j.purger.PurgeOlderThan(ctx, age)
	if err != nil {
		j.logger.Error("モデレーションログのクリーンアップに失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return 0, fmt.Errorf("モデレーションログのクリーンアップに失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("モデレーションログのクリーンアップが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return deletedCount, nil
}
