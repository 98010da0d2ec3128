package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/gamerooms/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, username, email, password_hash, created_at, last_login, is_active`

func scanUser(row interface{ Scan(dest ...any) error }) (*model.User, error) {
	user := &model.User{}
	var lastLogin sql.NullTime
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.CreatedAt, &lastLogin, &user.IsActive); err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLogin = &t
	}
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(querier(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return user, nil
}

// FindByUsername はユーザー名でユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	user, err := scanUser(querier(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`,
		username,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by username: %w", err)
	}

	return user, nil
}

// ExistsByEmailOrUsername はメールアドレスまたはユーザー名が登録済みかを返す。
func (r *PostgresUserRepo) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	var exists bool
	err := querier(ctx, r.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 OR username = $2)`,
		email, username,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

// Create はユーザーを作成する。
// ユーザー名・メールアドレスの一意制約違反は DUPLICATE_USER エラーとして返す。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := querier(ctx, r.db).ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, created_at, last_login, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.Username, user.Email, user.PasswordHash, user.CreatedAt, user.LastLogin, user.IsActive,
	)
	if pqErr, ok := pqError(err); ok && string(pqErr.Code) == pqUniqueViolation {
		return model.NewDuplicateUserError()
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// Update は最終ログイン日時と有効フラグを更新する。
func (r *PostgresUserRepo) Update(ctx context.Context, user *model.User) error {
	result, err := querier(ctx, r.db).ExecContext(ctx,
		`UPDATE users SET last_login = $2, is_active = $3 WHERE id = $1`,
		user.ID, user.LastLogin, user.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", user.ID)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
