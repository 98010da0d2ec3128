// Package auth はユーザー登録・ログインとアクセストークンの管理を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/gamerooms/internal/model"
	"github.com/hitoshi/gamerooms/internal/repository"
)

// 入力値の制約
const (
	minUsernameLength = 3
	maxUsernameLength = 50
	maxEmailLength    = 100
	minPasswordLength = 8
	// bcryptが扱えるパスワードの最大バイト数
	maxPasswordBytes = 72
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// RegisterRequest はユーザー登録の入力。
type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// LoginRequest はログインの入力。
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResult は登録・ログイン成功時の結果。
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      *model.User
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo   repository.UserRepository
	tokens     *TokenManager
	bcryptCost int
	now        func() time.Time
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, tokens *TokenManager, bcryptCost int) *Service {
	return &Service{
		userRepo:   userRepo,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		now:        time.Now,
	}
}

// Register はユーザーを登録し、アクセストークンを発行する。
// ユーザー名またはメールアドレスが登録済みの場合は DUPLICATE_USER エラーを返す。
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateRegistration(req); err != nil {
		return nil, err
	}

	exists, err := s.userRepo.ExistsByEmailOrUsername(ctx, req.Email, req.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to check user existence: %w", err)
	}
	if exists {
		return nil, model.NewDuplicateUserError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now().UTC()
	user := &model.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		LastLogin:    &now,
		IsActive:     true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	return s.issue(user, now)
}

// Login はユーザー名とパスワードを検証し、アクセストークンを発行する。
// ユーザーが存在しない、パスワードが一致しない、無効化されている場合は
// いずれも INVALID_CREDENTIALS エラーを返す。
func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	user, err := s.userRepo.FindByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !user.IsActive {
		return nil, model.NewInvalidCredentialsError()
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return nil, model.NewInvalidCredentialsError()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}

	now := s.now().UTC()
	user.LastLogin = &now
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update last login: %w", err)
	}

	return s.issue(user, now)
}

// ParseToken はアクセストークンを検証してユーザーIDを返す。
func (s *Service) ParseToken(token string) (string, error) {
	return s.tokens.ParseToken(token)
}

func (s *Service) issue(user *model.User, now time.Time) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(user, now)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func validateRegistration(req RegisterRequest) error {
	if n := utf8.RuneCountInString(req.Username); n < minUsernameLength || n > maxUsernameLength {
		return model.NewValidationError("ユーザー名は3文字以上50文字以内で指定してください")
	}
	if !usernamePattern.MatchString(req.Username) {
		return model.NewValidationError("ユーザー名には英数字とアンダースコアのみ使用できます")
	}

	if req.Email == "" {
		return model.NewValidationError("メールアドレスは必須です")
	}
	if len(req.Email) > maxEmailLength {
		return model.NewValidationError("メールアドレスは100文字以内で指定してください")
	}
	if addr, err := mail.ParseAddress(req.Email); err != nil || addr.Address != req.Email {
		return model.NewValidationError("メールアドレスの形式が正しくありません")
	}

	if err := validatePassword(req.Password); err != nil {
		return err
	}
	if req.ConfirmPassword != req.Password {
		return model.NewValidationError("パスワードが一致しません")
	}
	return nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return model.NewValidationError("パスワードは8文字以上で指定してください")
	}
	if len(password) > maxPasswordBytes {
		return model.NewValidationError("パスワードが長すぎます")
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			special = true
		}
	}
	if !upper || !lower || !digit || !special {
		return model.NewValidationError("パスワードには大文字・小文字・数字・記号をそれぞれ1文字以上含めてください")
	}
	return nil
}
