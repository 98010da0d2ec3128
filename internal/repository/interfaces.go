// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/gamerooms/internal/gameroom"
	"github.com/hitoshi/gamerooms/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを取得する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// ExistsByEmailOrUsername はメールアドレスまたはユーザー名が登録済みかを返す。
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)

	// Create はユーザーを作成する。一意制約違反の場合は DUPLICATE_USER エラーを返す。
	Create(ctx context.Context, user *model.User) error

	// Update は最終ログイン日時と有効フラグを更新する。
	Update(ctx context.Context, user *model.User) error
}

// LoadedRoom はメンバーのユーザー名を解決済みのルーム集約。
type LoadedRoom struct {
	Room *gameroom.Room
	// Usernames はオーナーと全メンバーのユーザーIDからユーザー名への対応。
	Usernames map[string]string
}

// RoomRepository はゲームルーム集約の永続化インターフェース。
type RoomRepository interface {
	// FindByID はメンバーシップとオーナーを含めてルームを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*LoadedRoom, error)

	// ListByStatus は指定状態のルームを作成日時の降順で返す。
	ListByStatus(ctx context.Context, status model.RoomStatus) ([]*LoadedRoom, error)

	// ExistsByName は同名のルームが存在するかを大文字小文字を区別せずに返す。
	ExistsByName(ctx context.Context, name string) (bool, error)

	// FindActiveRoomsForUser はユーザーがオーナーまたはメンバーである待機中ルームを返す。
	FindActiveRoomsForUser(ctx context.Context, userID string) ([]*LoadedRoom, error)

	// HasActiveMembershipElsewhere は指定ルーム以外の待機中ルームに
	// オーナー以外の役割で参加しているかを返す。
	HasActiveMembershipElsewhere(ctx context.Context, userID, roomID string) (bool, error)

	// Create はルームとメンバーシップを作成する。
	Create(ctx context.Context, room *gameroom.Room) error

	// Update は読み込み時のバージョンを条件にルームとメンバーシップを更新する。
	// バージョンが一致しない場合は CONCURRENCY_CONFLICT エラーを返す。
	Update(ctx context.Context, room *gameroom.Room) error
}

// ModerationLogRepository はモデレーションログの永続化インターフェース。
type ModerationLogRepository interface {
	// Append はログを追記する。
	Append(ctx context.Context, entry *model.ModerationLog) error

	// ListByRoom はルームのログを新しい順に最大limit件返す。
	ListByRoom(ctx context.Context, roomID string, limit int) ([]*model.ModerationLog, error)

	// ListByUser はユーザーが対象またはモデレーターであるログを新しい順に最大limit件返す。
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.ModerationLog, error)

	// DeleteOlderThan は指定期間より古いログを削除し、削除件数を返す。
	DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

// NotificationRepository は通知の永続化インターフェース。
type NotificationRepository interface {
	// Create は通知を作成する。
	Create(ctx context.Context, n *model.Notification) error

	// FindByID は指定IDの通知を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Notification, error)

	// ListForUser はユーザー宛て、またはユーザーが参加するルームの通知を新しい順に返す。
	ListForUser(ctx context.Context, userID string) ([]*model.Notification, error)

	// ListUnreadForUser は ListForUser のうち未読のものを返す。
	ListUnreadForUser(ctx context.Context, userID string) ([]*model.Notification, error)

	// ListByRoom はルームの通知を新しい順に返す。
	ListByRoom(ctx context.Context, roomID string) ([]*model.Notification, error)

	// MarkAsRead は通知を既読にする。既読済みの場合は何もしない。
	MarkAsRead(ctx context.Context, id string) error

	// CountAll は通知の総数を返す。
	CountAll(ctx context.Context) (int, error)
}

// TxManager はスコープ付きトランザクションを提供する。
// fn に渡されるcontextを使ったリポジトリ呼び出しは同一トランザクションに参加する。
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Querier は *sql.DB と *sql.Tx に共通するクエリ実行インターフェース。
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
