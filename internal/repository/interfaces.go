// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/taskman/internal/model"
)

// ErrDuplicate は一意制約（email、username）違反を表す。
// 同時サインアップの競合はストア側の一意インデックスで検出される。
var ErrDuplicate = errors.New("repository: duplicate key")

// ErrNotFound は更新・削除対象のレコードが存在しないことを表す。
var ErrNotFound = errors.New("repository: record not found")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// ExistsByEmailOrUsername はemailまたはusernameが既に登録済みかを返す。
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)

	// Create はユーザーを作成する。一意制約違反の場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdatePassword はパスワードハッシュを置き換える。
	// 対象ユーザーが存在しない場合はErrNotFoundを返す。
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// TaskRepository はタスクデータの永続化インターフェース。
// 読み書きは常にタスクIDと所有者IDの組で絞り込む。IDのみでの取得手段は提供しない。
type TaskRepository interface {
	// FindByIDAndUser はIDと所有者IDの両方に一致するタスクを取得する。
	// 見つからない場合はnilを返す。
	FindByIDAndUser(ctx context.Context, id, userID string) (*model.Task, error)

	// ListByUser は所有者のタスク一覧をcreated_at降順で返す。
	ListByUser(ctx context.Context, userID string, filter model.TaskFilter) ([]*model.Task, error)

	// Create はタスクを作成する。
	Create(ctx context.Context, task *model.Task) error

	// Update はtask.IDとtask.UserIDの両方に一致するタスクを上書き更新する。
	// 一致するタスクがない場合はErrNotFoundを返す。
	Update(ctx context.Context, task *model.Task) error

	// DeleteByIDAndUser はIDと所有者IDの両方に一致するタスクを削除する。
	// 一致するタスクがない場合はErrNotFoundを返す。
	DeleteByIDAndUser(ctx context.Context, id, userID string) error
}
