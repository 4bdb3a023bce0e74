// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// minSecretKeyLength はHMAC署名鍵として受け入れる最小バイト数。
const minSecretKeyLength = 32

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// Token
	JWTSecretKey             string `env:"JWT_SECRET_KEY,required,notEmpty"`
	JWTAlgorithm             string `env:"JWT_ALGORITHM" envDefault:"HS256"`
	AccessTokenExpireMinutes int    `env:"ACCESS_TOKEN_EXPIRE_MINUTES" envDefault:"30"`

	// Password
	BcryptCost int `env:"BCRYPT_COST" envDefault:"10"`

	// Mail
	MailServer   string `env:"MAIL_SERVER,required,notEmpty"`
	MailFrom     string `env:"MAIL_FROM,required,notEmpty"`
	MailPort     int    `env:"MAIL_PORT" envDefault:"587"`
	MailUsername string `env:"MAIL_USERNAME"`
	MailPassword string `env:"MAIL_PASSWORD"`
	MailStartTLS bool   `env:"MAIL_STARTTLS" envDefault:"true"`
	MailSSLTLS   bool   `env:"MAIL_SSL_TLS" envDefault:"false"`

	// Client
	ClientURL         string `env:"CLIENT_URL" envDefault:"http://localhost:3000"`
	CORSAllowedOrigin string `env:"CLIENT_ORIGIN_URL" envDefault:"http://localhost:3000"`

	// Server
	AppName    string `env:"APP_NAME" envDefault:"TodoApp"`
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合、または値が不正な場合はエラーを返す。
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

// AccessTokenTTL はトークンのデフォルト有効期間を返す。
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

// validate は値の整合性を検証する。
func (c *Config) validate() error {
	switch c.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("unsupported JWT_ALGORITHM: %q (want HS256, HS384 or HS512)", c.JWTAlgorithm)
	}

	if len(c.JWTSecretKey) < minSecretKeyLength {
		return fmt.Errorf("JWT_SECRET_KEY must be at least %d bytes", minSecretKeyLength)
	}

	if c.AccessTokenExpireMinutes <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be positive, got %d", c.AccessTokenExpireMinutes)
	}

	// bcryptの許容範囲（MinCost=4, MaxCost=31）
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}

	if c.MailStartTLS && c.MailSSLTLS {
		return fmt.Errorf("MAIL_STARTTLS and MAIL_SSL_TLS cannot both be enabled")
	}

	return nil
}
