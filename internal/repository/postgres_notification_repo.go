package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/gamerooms/internal/model"
)

// PostgresNotificationRepo はPostgreSQLを使用した通知リポジトリ。
type PostgresNotificationRepo struct {
	db *sql.DB
}

// NewPostgresNotificationRepo はPostgresNotificationRepoを生成する。
func NewPostgresNotificationRepo(db *sql.DB) *PostgresNotificationRepo {
	return &PostgresNotificationRepo{db: db}
}

const notificationColumns = `n.id, n.room_id, n.sender_id, n.receiver_id, n.type, n.message, n.created_at, n.is_read`

// ユーザー宛て、またはユーザーがメンバーであるルームの通知
const notificationForUserCond = `(n.receiver_id = $1 OR EXISTS (
	SELECT 1 FROM room_members m WHERE m.room_id = n.room_id AND m.user_id = $1))`

// Create は通知を作成する。
func (r *PostgresNotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	_, err := querier(ctx, r.db).ExecContext(ctx,
		`INSERT INTO notifications (id, room_id, sender_id, receiver_id, type, message, created_at, is_read)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		n.ID, n.RoomID, n.SenderID, n.ReceiverID, string(n.Type), n.Message, n.CreatedAt, n.IsRead,
	)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// FindByID は指定IDの通知を取得する。見つからない場合はnilを返す。
func (r *PostgresNotificationRepo) FindByID(ctx context.Context, id string) (*model.Notification, error) {
	n, err := scanNotification(querier(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications n WHERE n.id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find notification by ID: %w", err)
	}
	return n, nil
}

// ListForUser はユーザー宛て、またはユーザーが参加するルームの通知を新しい順に返す。
func (r *PostgresNotificationRepo) ListForUser(ctx context.Context, userID string) ([]*model.Notification, error) {
	list, err := r.query(ctx,
		`SELECT `+notificationColumns+` FROM notifications n
		 WHERE `+notificationForUserCond+`
		 ORDER BY n.created_at DESC, n.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications for user: %w", err)
	}
	return list, nil
}

// ListUnreadForUser は ListForUser のうち未読のものを返す。
func (r *PostgresNotificationRepo) ListUnreadForUser(ctx context.Context, userID string) ([]*model.Notification, error) {
	list, err := r.query(ctx,
		`SELECT `+notificationColumns+` FROM notifications n
		 WHERE `+notificationForUserCond+` AND NOT n.is_read
		 ORDER BY n.created_at DESC, n.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list unread notifications: %w", err)
	}
	return list, nil
}

// ListByRoom はルームの通知を新しい順に返す。
func (r *PostgresNotificationRepo) ListByRoom(ctx context.Context, roomID string) ([]*model.Notification, error) {
	list, err := r.query(ctx,
		`SELECT `+notificationColumns+` FROM notifications n
		 WHERE n.room_id = $1
		 ORDER BY n.created_at DESC, n.id`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications by room: %w", err)
	}
	return list, nil
}

// MarkAsRead は通知を既読にする。既読済みの場合は何もしない。
func (r *PostgresNotificationRepo) MarkAsRead(ctx context.Context, id string) error {
	_, err := querier(ctx, r.db).ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND NOT is_read`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}
	return nil
}

// CountAll は通知の総数を返す。
func (r *PostgresNotificationRepo) CountAll(ctx context.Context) (int, error) {
	var count int
	if err := querier(ctx, r.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}

func scanNotification(row interface{ Scan(dest ...any) error }) (*model.Notification, error) {
	n := &model.Notification{}
	var (
		sender   sql.NullString
		receiver sql.NullString
		typ      string
	)
	if err := row.Scan(&n.ID, &n.RoomID, &sender, &receiver, &typ, &n.Message, &n.CreatedAt, &n.IsRead); err != nil {
		return nil, err
	}
	if sender.Valid {
		v := sender.String
		n.SenderID = &v
	}
	if receiver.Valid {
		v := receiver.String
		n.ReceiverID = &v
	}
	n.Type = model.NotificationType(typ)
	return n, nil
}

func (r *PostgresNotificationRepo) query(ctx context.Context, query string, args ...any) ([]*model.Notification, error) {
	rows, err := querier(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	return list, rows.Err()
}

// compile-time interface check
var _ NotificationRepository = (*PostgresNotificationRepo)(nil)
