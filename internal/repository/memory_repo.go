package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/hitoshi/taskman/internal/model"
)

// MemoryUserRepo はメモリ上で動作するユーザーリポジトリ。
// PostgreSQLと同じくemailとusernameの一意性を保証する。テストおよびローカル検証用。
type MemoryUserRepo struct {
	mu    sync.RWMutex
	users map[string]model.User
}

// NewMemoryUserRepo はMemoryUserRepoを生成する。
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{users: make(map[string]model.User)}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *MemoryUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *MemoryUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

// ExistsByEmailOrUsername はemailまたはusernameが既に登録済みかを返す。
func (r *MemoryUserRepo) ExistsByEmailOrUsername(_ context.Context, email, username string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.conflicts(email, username), nil
}

// Create はユーザーを作成する。一意制約違反の場合はErrDuplicateを返す。
func (r *MemoryUserRepo) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; ok || r.conflicts(user.Email, user.Username) {
		return ErrDuplicate
	}
	r.users[user.ID] = *user
	return nil
}

// UpdatePassword はパスワードハッシュを置き換える。
func (r *MemoryUserRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	r.users[id] = u
	return nil
}

// conflicts は呼び出し側でロックを保持していることを前提とする。
func (r *MemoryUserRepo) conflicts(email, username string) bool {
	for _, u := range r.users {
		if u.Email == email || u.Username == username {
			return true
		}
	}
	return false
}

// MemoryTaskRepo はメモリ上で動作するタスクリポジトリ。
type MemoryTaskRepo struct {
	mu    sync.RWMutex
	tasks map[string]model.Task
}

// NewMemoryTaskRepo はMemoryTaskRepoを生成する。
func NewMemoryTaskRepo() *MemoryTaskRepo {
	return &MemoryTaskRepo{tasks: make(map[string]model.Task)}
}

// FindByIDAndUser はIDと所有者IDの両方に一致するタスクを取得する。
func (r *MemoryTaskRepo) FindByIDAndUser(_ context.Context, id, userID string) (*model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok || t.UserID != userID {
		return nil, nil
	}
	return &t, nil
}

// ListByUser は所有者のタスク一覧をcreated_at降順で返す。
func (r *MemoryTaskRepo) ListByUser(_ context.Context, userID string, filter model.TaskFilter) ([]*model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := []*model.Task{}
	for _, t := range r.tasks {
		if t.UserID != userID {
			continue
		}
		if filter.Category != nil && (t.Category == nil || *t.Category != *filter.Category) {
			continue
		}
		if filter.IsCompleted != nil && t.IsCompleted != *filter.IsCompleted {
			continue
		}
		t := t
		tasks = append(tasks, &t)
	}

	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks, nil
}

// Create はタスクを作成する。
func (r *MemoryTaskRepo) Create(_ context.Context, task *model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[task.ID]; ok {
		return ErrDuplicate
	}
	r.tasks[task.ID] = *task
	return nil
}

// Update はtask.IDとtask.UserIDの両方に一致するタスクを上書き更新する。
func (r *MemoryTaskRepo) Update(_ context.Context, task *model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.tasks[task.ID]
	if !ok || existing.UserID != task.UserID {
		return ErrNotFound
	}
	updated := *task
	updated.CreatedAt = existing.CreatedAt
	r.tasks[task.ID] = updated
	return nil
}

// DeleteByIDAndUser はIDと所有者IDの両方に一致するタスクを削除する。
func (r *MemoryTaskRepo) DeleteByIDAndUser(_ context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || t.UserID != userID {
		return ErrNotFound
	}
	delete(r.tasks, id)
	return nil
}

// compile-time interface check
var (
	_ UserRepository = (*MemoryUserRepo)(nil)
	_ TaskRepository = (*MemoryTaskRepo)(nil)
)
