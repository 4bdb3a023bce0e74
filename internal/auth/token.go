package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken はトークン検証の失敗を表す。
// 署名不一致、アルゴリズム違い、期限切れ、形式不正を区別しない。
var ErrInvalidToken = errors.New("auth: invalid token")

// TokenConfig はトークン発行・検証の設定。
type TokenConfig struct {
	SecretKey  string
	Algorithm  string // HS256 | HS384 | HS512
	DefaultTTL time.Duration
	Now        func() time.Time // nilの場合はtime.Now
}

// TokenService は署名付きBearerトークンを発行・検証する。
// トークンはサーバー側に保存せず、署名と有効期限のみで検証する。
type TokenService struct {
	key        []byte
	method     jwt.SigningMethod
	defaultTTL time.Duration
	now        func() time.Time
}

// NewTokenService はTokenServiceを生成する。
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("token secret key is required")
	}

	var method jwt.SigningMethod
	switch cfg.Algorithm {
	case "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported token algorithm: %q", cfg.Algorithm)
	}

	if cfg.DefaultTTL <= 0 {
		return nil, fmt.Errorf("token default ttl must be positive")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &TokenService{
		key:        []byte(cfg.SecretKey),
		method:     method,
		defaultTTL: cfg.DefaultTTL,
		now:        now,
	}, nil
}

// DefaultTTL は既定の有効期間を返す。
func (s *TokenService) DefaultTTL() time.Duration {
	return s.defaultTTL
}

// Issue はsubjectIDを主体とするトークンを発行する。
// ttlが0以下の場合は既定の有効期間を使う。
func (s *TokenService) Issue(subjectID string, ttl time.Duration) (string, error) {
	if subjectID == "" {
		return "", fmt.Errorf("token subject is required")
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   subjectID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークンを検証し、主体のIDを返す。
// 失敗時は常にErrInvalidTokenを返す。
func (s *TokenService) Verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
