package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/gamerooms/internal/model"
)

// TokenManager はHS256署名のアクセストークンを発行・検証する。
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager はTokenManagerを生成する。
func NewTokenManager(secret, issuer string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

// Claims はアクセストークンのクレーム。sub にユーザーID、name にユーザー名を持つ。
type Claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// Issue はユーザーのアクセストークンと有効期限を返す。
func (m *TokenManager) Issue(user *model.User, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(m.ttl)
	claims := Claims{
		Name: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, expiresAt, nil
}

// ParseToken はトークンを検証してユーザーIDを返す。
// 署名不正・期限切れ・発行者不一致の場合は UNAUTHORIZED エラーを返す。
func (m *TokenManager) ParseToken(tokenString string) (string, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || claims.Subject == "" {
		return "", model.NewUnauthorizedError()
	}
	return claims.Subject, nil
}
