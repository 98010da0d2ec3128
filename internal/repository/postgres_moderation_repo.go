package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/gamerooms/internal/model"
)

// PostgresModerationLogRepo はPostgreSQLを使用したモデレーションログリポジトリ。
type PostgresModerationLogRepo struct {
	db *sql.DB
}

// NewPostgresModerationLogRepo はPostgresModerationLogRepoを生成する。
func NewPostgresModerationLogRepo(db *sql.DB) *PostgresModerationLogRepo {
	return &PostgresModerationLogRepo{db: db}
}

// Append はログを追記する。
func (r *PostgresModerationLogRepo) Append(ctx context.Context, entry *model.ModerationLog) error {
	_, err := querier(ctx, r.db).ExecContext(ctx,
		`INSERT INTO moderation_logs (id, room_id, moderator_id, target_user_id, action, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.RoomID, entry.ModeratorID, entry.TargetUserID,
		string(entry.Action), entry.Details, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert moderation log: %w", err)
	}
	return nil
}

// ListByRoom はルームのログを新しい順に最大limit件返す。
func (r *PostgresModerationLogRepo) ListByRoom(ctx context.Context, roomID string, limit int) ([]*model.ModerationLog, error) {
	logs, err := r.query(ctx,
		`SELECT id, room_id, moderator_id, target_user_id, action, details, created_at
		 FROM moderation_logs
		 WHERE room_id = $1
		 ORDER BY created_at DESC, id
		 LIMIT $2`,
		roomID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list moderation logs by room: %w", err)
	}
	return logs, nil
}

// ListByUser はユーザーが対象またはモデレーターであるログを新しい順に最大limit件返す。
func (r *PostgresModerationLogRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*model.ModerationLog, error) {
	logs, err := r.query(ctx,
		`SELECT id, room_id, moderator_id, target_user_id, action, details, created_at
		 FROM moderation_logs
		 WHERE target_user_id = $1 OR moderator_id = $1
		 ORDER BY created_at DESC, id
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list moderation logs by user: %w", err)
	}
	return logs, nil
}

// DeleteOlderThan は指定期間より古いログを削除し、削除件数を返す。
func (r *PostgresModerationLogRepo) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	result, err := querier(ctx, r.db).ExecContext(ctx,
		`DELETE FROM moderation_logs WHERE created_at < now() - make_interval(secs => $1)`,
		age.Seconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old moderation logs: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

func (r *PostgresModerationLogRepo) query(ctx context.Context, query string, args ...any) ([]*model.ModerationLog, error) {
	rows, err := querier(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*model.ModerationLog
	for rows.Next() {
		entry := &model.ModerationLog{}
		var (
			target sql.NullString
			action string
		)
		if err := rows.Scan(&entry.ID, &entry.RoomID, &entry.ModeratorID, &target,
			&action, &entry.Details, &entry.Timestamp); err != nil {
			return nil, err
		}
		if target.Valid {
			v := target.String
			entry.TargetUserID = &v
		}
		entry.Action = model.ModerationAction(action)
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

// compile-time interface check
var _ ModerationLogRepository = (*PostgresModerationLogRepo)(nil)
