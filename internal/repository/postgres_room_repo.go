package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/gamerooms/internal/gameroom"
	"github.com/hitoshi/gamerooms/internal/model"
)

// PostgresRoomRepo はPostgreSQLを使用したゲームルームリポジトリ。
// ルーム行の version 列で楽観的同時実行制御を行う。
type PostgresRoomRepo struct {
	db *sql.DB
}

// NewPostgresRoomRepo はPostgresRoomRepoを生成する。
func NewPostgresRoomRepo(db *sql.DB) *PostgresRoomRepo {
	return &PostgresRoomRepo{db: db}
}

const roomSelect = `
	SELECT r.id, r.name, r.description, r.max_players, r.min_players_to_start,
	       r.owner_id, r.status, r.created_at, r.started_at, r.ended_at,
	       r.max_wait_seconds, r.version, u.username
	FROM game_rooms r
	JOIN users u ON u.id = r.owner_id`

// FindByID はメンバーシップとオーナーを含めてルームを取得する。見つからない場合はnilを返す。
func (r *PostgresRoomRepo) FindByID(ctx context.Context, id string) (*LoadedRoom, error) {
	rooms, err := r.queryRooms(ctx, roomSelect+` WHERE r.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find room by ID: %w", err)
	}
	if len(rooms) == 0 {
		return nil, nil
	}
	return rooms[0], nil
}

// ListByStatus は指定状態のルームを作成日時の降順で返す。
func (r *PostgresRoomRepo) ListByStatus(ctx context.Context, status model.RoomStatus) ([]*LoadedRoom, error) {
	rooms, err := r.queryRooms(ctx,
		roomSelect+` WHERE r.status = $1 ORDER BY r.created_at DESC, r.id`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms by status: %w", err)
	}
	return rooms, nil
}

// ExistsByName は同名のルームが存在するかを大文字小文字を区別せずに返す。
func (r *PostgresRoomRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := querier(ctx, r.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM game_rooms WHERE lower(name) = lower($1))`,
		name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check room name: %w", err)
	}
	return exists, nil
}

// FindActiveRoomsForUser はユーザーがオーナーまたはメンバーである待機中ルームを返す。
func (r *PostgresRoomRepo) FindActiveRoomsForUser(ctx context.Context, userID string) ([]*LoadedRoom, error) {
	rooms, err := r.queryRooms(ctx,
		roomSelect+`
		WHERE r.status = 'Created'
		  AND (r.owner_id = $1 OR EXISTS (
		        SELECT 1 FROM room_members m WHERE m.room_id = r.id AND m.user_id = $1))
		ORDER BY r.created_at DESC, r.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find active rooms for user: %w", err)
	}
	return rooms, nil
}

// HasActiveMembershipElsewhere は指定ルーム以外の待機中ルームに
// オーナー以外の役割で参加しているかを返す。
func (r *PostgresRoomRepo) HasActiveMembershipElsewhere(ctx context.Context, userID, roomID string) (bool, error) {
	var exists bool
	err := querier(ctx, r.db).QueryRowContext(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM room_members m
		   JOIN game_rooms r ON r.id = m.room_id
		   WHERE m.user_id = $1 AND m.room_id <> $2
		     AND r.status = 'Created' AND m.role <> 'Owner')`,
		userID, roomID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check active memberships: %w", err)
	}
	return exists, nil
}

// Create はルームとメンバーシップを作成する。
func (r *PostgresRoomRepo) Create(ctx context.Context, room *gameroom.Room) error {
	s := room.Snapshot()
	q := querier(ctx, r.db)

	_, err := q.ExecContext(ctx,
		`INSERT INTO game_rooms (id, name, description, max_players, min_players_to_start,
		   owner_id, status, created_at, started_at, ended_at, max_wait_seconds, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		s.ID, s.Name, s.Description, s.MaxPlayers, s.MinPlayersToStart,
		s.OwnerID, string(s.Status), s.CreatedAt, s.StartedAt, s.EndedAt,
		int(s.MaxWaitTimeToStart/time.Second), s.Version,
	)
	if pqErr, ok := pqError(err); ok && string(pqErr.Code) == pqUniqueViolation {
		return model.NewDuplicateNameError(s.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to insert room: %w", err)
	}

	return insertMembers(ctx, q, s)
}

// Update は読み込み時のバージョンを条件にルームとメンバーシップを更新する。
// メンバーシップは全件削除してから現在の集合を挿入し直す。
func (r *PostgresRoomRepo) Update(ctx context.Context, room *gameroom.Room) error {
	s := room.Snapshot()
	q := querier(ctx, r.db)

	result, err := q.ExecContext(ctx,
		`UPDATE game_rooms
		 SET owner_id = $3, status = $4, started_at = $5, ended_at = $6, version = version + 1
		 WHERE id = $1 AND version = $2`,
		s.ID, s.Version, s.OwnerID, string(s.Status), s.StartedAt, s.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewConcurrencyConflictError()
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM room_members WHERE room_id = $1`, s.ID); err != nil {
		return fmt.Errorf("failed to delete room members: %w", err)
	}
	return insertMembers(ctx, q, s)
}

func insertMembers(ctx context.Context, q Querier, s gameroom.Snapshot) error {
	for _, m := range s.Members {
		_, err := q.ExecContext(ctx,
			`INSERT INTO room_members (room_id, user_id, role, joined_at, room_status)
			 VALUES ($1, $2, $3, $4, $5)`,
			s.ID, m.UserID, string(m.Role), m.JoinedAt, string(s.Status),
		)
		if pqErr, ok := pqError(err); ok && string(pqErr.Code) == pqUniqueViolation &&
			pqErr.Constraint == activeRoomConstraint {
			return model.NewAlreadyInAnotherRoomError()
		}
		if err != nil {
			return fmt.Errorf("failed to insert room member: %w", err)
		}
	}
	return nil
}

// queryRooms はルーム行を取得し、メンバーシップをまとめて読み込む。
func (r *PostgresRoomRepo) queryRooms(ctx context.Context, query string, args ...any) ([]*LoadedRoom, error) {
	q := querier(ctx, r.db)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		snapshots []gameroom.Snapshot
		usernames []map[string]string
		ids       []string
	)
	for rows.Next() {
		var (
			s             gameroom.Snapshot
			status        string
			startedAt     sql.NullTime
			endedAt       sql.NullTime
			waitSeconds   int
			ownerUsername string
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.MaxPlayers, &s.MinPlayersToStart,
			&s.OwnerID, &status, &s.CreatedAt, &startedAt, &endedAt,
			&waitSeconds, &s.Version, &ownerUsername); err != nil {
			return nil, err
		}
		s.Status = model.RoomStatus(status)
		s.StartedAt = nullTimePtr(startedAt)
		s.EndedAt = nullTimePtr(endedAt)
		s.MaxWaitTimeToStart = time.Duration(waitSeconds) * time.Second

		snapshots = append(snapshots, s)
		usernames = append(usernames, map[string]string{s.OwnerID: ownerUsername})
		ids = append(ids, s.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	index := make(map[string]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}

	memberRows, err := q.QueryContext(ctx,
		`SELECT m.room_id, m.user_id, m.role, m.joined_at, u.username
		 FROM room_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.room_id = ANY($1)
		 ORDER BY m.joined_at, m.user_id`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, err
	}
	defer memberRows.Close()

	for memberRows.Next() {
		var (
			m        model.Membership
			role     string
			username string
		)
		if err := memberRows.Scan(&m.RoomID, &m.UserID, &role, &m.JoinedAt, &username); err != nil {
			return nil, err
		}
		m.Role = model.Role(role)
		i, ok := index[m.RoomID]
		if !ok {
			continue
		}
		snapshots[i].Members = append(snapshots[i].Members, m)
		usernames[i][m.UserID] = username
	}
	if err := memberRows.Err(); err != nil {
		return nil, err
	}

	rooms := make([]*LoadedRoom, len(snapshots))
	for i, s := range snapshots {
		rooms[i] = &LoadedRoom{Room: gameroom.Restore(s), Usernames: usernames[i]}
	}
	return rooms, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// compile-time interface check
var _ RoomRepository = (*PostgresRoomRepo)(nil)
