// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// PasswordHashはbcryptハッシュ（ソルト込み）で、このパッケージでは不透明な値として扱う。
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	LastLogin    *time.Time
	IsActive     bool
}
