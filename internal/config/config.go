// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	// TxMaxAttempts は競合時のトランザクション最大試行回数（初回を含む）。
	TxMaxAttempts int `env:"TX_MAX_ATTEMPTS" envDefault:"5"`

	// Auth
	JWTSecret  string        `env:"JWT_SECRET,required,notEmpty"`
	JWTTTL     time.Duration `env:"JWT_TTL" envDefault:"24h"`
	JWTIssuer  string        `env:"JWT_ISSUER" envDefault:"gamerooms"`
	BcryptCost int           `env:"BCRYPT_COST" envDefault:"10"`

	// Realtime
	// RedisURL が空の場合はリアルタイム通知を送信しない。
	RedisURL              string `env:"REDIS_URL"`
	RealtimeChannelPrefix string `env:"REALTIME_CHANNEL_PREFIX" envDefault:"gamerooms"`

	// Rate Limit
	RateLimitPerMinute int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"120"`

	// Moderation
	ModerationRetentionDays int `env:"MODERATION_RETENTION_DAYS" envDefault:"90"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Server
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`

	// CORS
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" envDefault:"http://localhost:3000"`
}

// JWTシークレットの最小バイト数（HS256）
const minJWTSecretLength = 32

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定、または値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", minJWTSecretLength)
	}
	if c.TxMaxAttempts < 1 {
		return fmt.Errorf("TX_MAX_ATTEMPTS must be positive: %d", c.TxMaxAttempts)
	}
	if c.RateLimitPerMinute < 1 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive: %d", c.RateLimitPerMinute)
	}
	if c.ModerationRetentionDays < 1 {
		return fmt.Errorf("MODERATION_RETENTION_DAYS must be positive: %d", c.ModerationRetentionDays)
	}
	return nil
}
