package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/gamerooms/internal/auth"
	"github.com/hitoshi/gamerooms/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.AuthResult, error)
	Login(ctx context.Context, req auth.LoginRequest) (*auth.AuthResult, error)
}

// AuthHandler はユーザー登録・ログインのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// userResponse はユーザー情報のAPIレスポンス。パスワードハッシュは含めない。
type userResponse struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login"`
}

// authResponse は登録・ログイン成功時のAPIレスポンス。
type authResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      userResponse `json:"user"`
}

// Register はユーザー登録を処理する。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Register(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAuthResponse(result))
}

// Login はログインを処理する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAuthResponse(result))
}

func toAuthResponse(result *auth.AuthResult) authResponse {
	return authResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      toUserResponse(result.User),
	}
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		LastLogin: u.LastLogin,
	}
}
