package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/lib/pq"

	"github.com/hitoshi/gamerooms/internal/model"
)

// PostgreSQLのエラーコード
const (
	pqUniqueViolation      = "23505"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

// 部分一意インデックス名（1ユーザー1待機中ルーム）
const activeRoomConstraint = "idx_room_members_one_active_room"

type txKey struct{}

// querier はcontextにトランザクションがあればそれを、なければdbを返す。
func querier(ctx context.Context, db *sql.DB) Querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return db
}

// pqError はエラーチェーンから *pq.Error を取り出す。
func pqError(err error) (*pq.Error, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr, true
	}
	return nil, false
}

// IsRetryable は取り直しで解消しうる競合エラーかどうかを返す。
// バージョン不一致、シリアライゼーション失敗、デッドロックが該当する。
func IsRetryable(err error) bool {
	if model.ErrorCode(err) == model.ErrCodeConcurrencyConflict {
		return true
	}
	if pqErr, ok := pqError(err); ok {
		switch string(pqErr.Code) {
		case pqSerializationFailure, pqDeadlockDetected:
			return true
		}
	}
	return false
}

// PostgresTxManager はPostgreSQLのトランザクションを管理し、競合時に再試行する。
type PostgresTxManager struct {
	db          TxBeginner
	maxAttempts uint
	// OnRetry は再試行のたびに呼ばれる。メトリクス記録に使用する。
	OnRetry func(err error)
}

// NewPostgresTxManager はPostgresTxManagerを生成する。
// maxAttemptsは初回を含む最大試行回数（1未満の場合は1）。
func NewPostgresTxManager(db TxBeginner, maxAttempts int) *PostgresTxManager {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &PostgresTxManager{db: db, maxAttempts: uint(maxAttempts)}
}

// WithinTx はfnをトランザクション内で実行する。
// fnがエラーを返した場合はロールバックし、競合エラーであれば指数バックオフで
// fnを最初から再実行する。試行回数を使い切った場合は CONCURRENCY_CONFLICT を返す。
func (m *PostgresTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := m.runOnce(ctx, fn)
		if err == nil {
			return struct{}{}, nil
		}
		if IsRetryable(err) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(m.maxAttempts),
		backoff.WithNotify(func(err error, _ time.Duration) {
			if m.OnRetry != nil {
				m.OnRetry(err)
			}
		}),
	)
	if err != nil && IsRetryable(err) {
		return model.NewConcurrencyConflictError()
	}
	return err
}

func (m *PostgresTxManager) runOnce(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// compile-time interface check
var _ TxManager = (*PostgresTxManager)(nil)
