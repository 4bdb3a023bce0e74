package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hitoshi/taskman/internal/metrics"
	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/repository"
)

// TokenVerifier はトークンから主体IDを取り出す。
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Resolver はBearerトークンを認証済みユーザーに解決する。
type Resolver struct {
	tokens  TokenVerifier
	users   repository.UserRepository
	metrics metrics.MetricsCollector
}

// NewResolver はResolverを生成する。
func NewResolver(tokens TokenVerifier, users repository.UserRepository, mc metrics.MetricsCollector) *Resolver {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Resolver{tokens: tokens, users: users, metrics: mc}
}

// Resolve はトークンを検証し、主体のユーザーを返す。
// トークン不正、ユーザー不在、無効化済みユーザーはすべて同じUNAUTHORIZEDエラーになる。
func (r *Resolver) Resolve(ctx context.Context, token string) (*model.User, error) {
	subjectID, err := r.tokens.Verify(token)
	if err != nil || !isUserID(subjectID) {
		r.metrics.RecordTokenRejection()
		return nil, model.NewUnauthorizedError()
	}

	user, err := r.users.FindByID(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !user.IsActive {
		r.metrics.RecordTokenRejection()
		return nil, model.NewUnauthorizedError()
	}
	return user, nil
}

// isUserID は主体IDがユーザーIDの形式（UUID）かを判定する。
// 形式外のIDでストアを検索しない。
func isUserID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
