// Package auth はパスワード認証、Bearerトークン、パスワードリセットのフローを提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/taskman/internal/mail"
	"github.com/hitoshi/taskman/internal/metrics"
	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/repository"
	"github.com/hitoshi/taskman/internal/validation"
)

// TokenType はログイン応答で返すトークン種別。
const TokenType = "bearer"

// TokenIssuer はトークンの発行と検証を行う。
type TokenIssuer interface {
	TokenVerifier
	Issue(subjectID string, ttl time.Duration) (string, error)
	DefaultTTL() time.Duration
}

var _ TokenIssuer = (*TokenService)(nil)

// SignupInput はサインアップの入力。
type SignupInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Username string `json:"username" validate:"required,min=3,max=20,username"`
	Password string `json:"password" validate:"required,min=8,bcryptlen,strongpassword"`
}

// LoginInput はログインの入力。
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ResetPasswordInput はパスワード再設定の入力。
type ResetPasswordInput struct {
	Token           string `json:"token"`
	NewPassword     string `json:"new_password" validate:"required,min=8,bcryptlen"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

type forgotPasswordInput struct {
	Email string `json:"email" validate:"required,email"`
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	AccessToken string
	TokenType   string
	User        *model.User
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	AppName   string
	ClientURL string // リセットリンクの基点URL
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users    repository.UserRepository
	hasher   PasswordHasher
	tokens   TokenIssuer
	resolver *Resolver
	mailer   mail.Dispatcher
	validate *validation.Validator
	metrics  metrics.MetricsCollector
	config   ServiceConfig
	now      func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	users repository.UserRepository,
	hasher PasswordHasher,
	tokens TokenIssuer,
	resolver *Resolver,
	mailer mail.Dispatcher,
	mc metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		resolver: resolver,
		mailer:   mailer,
		validate: validation.New(),
		metrics:  mc,
		config:   config,
		now:      time.Now,
	}
}

// Signup は新規ユーザーを登録する。
// 事前の重複チェックに加え、ストアの一意制約違反もCONFLICTとして扱う。
func (s *Service) Signup(ctx context.Context, in SignupInput) (*model.User, error) {
	in.Email = validation.NormalizeEmail(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	exists, err := s.users.ExistsByEmailOrUsername(ctx, in.Email, in.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if exists {
		return nil, model.NewConflictError()
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		IsActive:     true,
		JoinedAt:     s.now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewConflictError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.metrics.RecordSignup()
	slog.Info("user signed up", slog.String("user_id", user.ID))
	return user, nil
}

// Login はメールアドレスとパスワードで認証し、アクセストークンを発行する。
// ユーザー不在、無効化済み、パスワード不一致はすべて同じINVALID_CREDENTIALSになる。
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	in.Email = validation.NormalizeEmail(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !user.IsActive || !s.hasher.Verify(in.Password, user.PasswordHash) {
		s.metrics.RecordLogin(false)
		slog.Warn("login failed")
		return nil, model.NewInvalidCredentialsError()
	}

	token, err := s.tokens.Issue(user.ID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	s.metrics.RecordLogin(true)
	slog.Info("user logged in", slog.String("user_id", user.ID))
	return &LoginResult{AccessToken: token, TokenType: TokenType, User: user}, nil
}

// ForgotPassword はリセット用トークンを発行し、リセットリンクをメールで送る。
// 未登録のメールアドレスにはUSER_NOT_FOUNDを返す。
// メール送信の失敗はログとメトリクスに記録し、呼び出し元には成功を返す。
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	in := forgotPasswordInput{Email: validation.NormalizeEmail(email)}
	if err := s.validate.Struct(in); err != nil {
		return err
	}

	user, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	token, err := s.tokens.Issue(user.ID, 0)
	if err != nil {
		return fmt.Errorf("failed to issue reset token: %w", err)
	}
	s.metrics.RecordPasswordReset(metrics.ResetStageRequested)

	body, err := mail.ResetEmail{
		AppName:   s.config.AppName,
		ClientURL: s.config.ClientURL,
		Username:  user.Username,
		Token:     token,
		ExpiresIn: s.tokens.DefaultTTL(),
	}.Render()
	if err != nil {
		return err
	}

	if err := s.mailer.Send(ctx, user.Email, mail.ResetSubject, body); err != nil {
		s.metrics.RecordMailDeliveryFailure()
		slog.Error("password reset email dispatch failed",
			slog.String("user_id", user.ID),
			slog.Any("error", model.NewDeliveryFailedError(err.Error())),
		)
		return nil
	}

	slog.Info("password reset email sent", slog.String("user_id", user.ID))
	return nil
}

// ResetPassword はリセット用トークンを検証し、パスワードハッシュを置き換える。
// 既に発行済みのアクセストークンは失効させない。
func (s *Service) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	subjectID, err := s.tokens.Verify(in.Token)
	if err != nil || !isUserID(subjectID) {
		return model.NewInvalidTokenError()
	}

	if err := s.validate.Struct(in); err != nil {
		return err
	}

	user, err := s.users.FindByID(ctx, subjectID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewInvalidTokenError()
	}

	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewInvalidTokenError()
		}
		return fmt.Errorf("failed to update password: %w", err)
	}

	s.metrics.RecordPasswordReset(metrics.ResetStageCompleted)
	slog.Info("password reset", slog.String("user_id", user.ID))
	return nil
}

// CurrentUser はトークンの主体ユーザーを返す。
func (s *Service) CurrentUser(ctx context.Context, token string) (*model.User, error) {
	return s.resolver.Resolve(ctx, token)
}
