// Package task はユーザーが所有するタスクのCRUDを提供する。
// すべての操作はタスクIDと所有者IDの組で絞り込む。
package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/repository"
	"github.com/hitoshi/taskman/internal/security"
	"github.com/hitoshi/taskman/internal/validation"
)

// CreateInput はタスク作成の入力。
type CreateInput struct {
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	IsCompleted bool       `json:"is_completed"`
	DueDate     *time.Time `json:"due_date"`
	Category    *string    `json:"category"`
}

// UpdateInput はタスク更新の入力。
// 未指定のフィールドは変更しない。Description、DueDate、Categoryは明示的なnullで値を消去する。
// Titleは必須項目のため、nullは未指定と同じに扱う。
type UpdateInput struct {
	Title       *string             `json:"title"`
	Description Nullable[string]    `json:"description"`
	IsCompleted *bool               `json:"is_completed"`
	DueDate     Nullable[time.Time] `json:"due_date"`
	Category    Nullable[string]    `json:"category"`
}

// textFields はサニタイズ後のタイトルと説明の検証用。
type textFields struct {
	Title       string  `json:"title" validate:"required,min=3,max=50"`
	Description *string `json:"description" validate:"omitempty,max=300"`
}

// Service はタスクに関するビジネスロジックを提供する。
type Service struct {
	repo      repository.TaskRepository
	sanitizer security.TextSanitizerService
	validate  *validation.Validator
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(repo repository.TaskRepository, sanitizer security.TextSanitizerService) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		validate:  validation.New(),
		now:       time.Now,
	}
}

// Create はuserIDを所有者とするタスクを作成する。
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*model.Task, error) {
	title, desc, err := s.cleanText(in.Title, in.Description)
	if err != nil {
		return nil, err
	}
	category, err := normalizeCategory(in.Category)
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	t := &model.Task{
		ID:          uuid.New().String(),
		UserID:      userID,
		Title:       title,
		Description: desc,
		IsCompleted: in.IsCompleted,
		DueDate:     in.DueDate,
		Category:    category,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	slog.Info("task created", slog.String("user_id", userID), slog.String("task_id", t.ID))
	return t, nil
}

// List はuserIDのタスク一覧を作成日時の降順で返す。
func (s *Service) List(ctx context.Context, userID string, filter model.TaskFilter) ([]*model.Task, error) {
	category, err := normalizeCategory(filter.Category)
	if err != nil {
		return nil, err
	}
	filter.Category = category

	tasks, err := s.repo.ListByUser(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	if tasks == nil {
		tasks = []*model.Task{}
	}
	return tasks, nil
}

// Get はuserIDが所有するタスクを返す。
func (s *Service) Get(ctx context.Context, userID, taskID string) (*model.Task, error) {
	return Authorize[model.Task](ctx, s.repo.FindByIDAndUser, taskID, userID)
}

// Update はuserIDが所有するタスクに入力で指定されたフィールドをマージする。
// updated_atは常に更新する。
func (s *Service) Update(ctx context.Context, userID, taskID string, in UpdateInput) (*model.Task, error) {
	t, err := Authorize[model.Task](ctx, s.repo.FindByIDAndUser, taskID, userID)
	if err != nil {
		return nil, err
	}

	// 整形するのは指定されたフィールドのみ。保存済みの値は再整形しない
	title := t.Title
	if in.Title != nil {
		title = s.sanitizer.Sanitize(*in.Title)
	}
	desc := t.Description
	if in.Description.Set {
		desc = s.cleanDescription(in.Description.Value)
	}
	if err := s.validate.Struct(textFields{Title: title, Description: desc}); err != nil {
		return nil, err
	}
	t.Title = title
	t.Description = desc

	if in.Category.Set {
		category, err := normalizeCategory(in.Category.Value)
		if err != nil {
			return nil, err
		}
		t.Category = category
	}
	if in.IsCompleted != nil {
		t.IsCompleted = *in.IsCompleted
	}
	if in.DueDate.Set {
		t.DueDate = in.DueDate.Value
	}
	t.UpdatedAt = s.timestamp()

	if err := s.repo.Update(ctx, t); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewTaskNotFoundError()
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return t, nil
}

// Delete はuserIDが所有するタスクを削除する。
func (s *Service) Delete(ctx context.Context, userID, taskID string) error {
	if !isResourceID(taskID) {
		return model.NewTaskNotFoundError()
	}
	if err := s.repo.DeleteByIDAndUser(ctx, taskID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewTaskNotFoundError()
		}
		return fmt.Errorf("failed to delete task: %w", err)
	}

	slog.Info("task deleted", slog.String("user_id", userID), slog.String("task_id", taskID))
	return nil
}

// cleanText はタイトルと説明からHTMLを除去し、長さを検証する。
// 除去後に空になった説明はnilとして扱う。
func (s *Service) cleanText(title string, desc *string) (string, *string, error) {
	title = s.sanitizer.Sanitize(title)
	cleanDesc := s.cleanDescription(desc)

	if err := s.validate.Struct(textFields{Title: title, Description: cleanDesc}); err != nil {
		return "", nil, err
	}
	return title, cleanDesc, nil
}

// cleanDescription は説明からHTMLを除去する。nilまたは除去後に空の場合はnilを返す。
func (s *Service) cleanDescription(desc *string) *string {
	if desc == nil {
		return nil
	}
	d := s.sanitizer.Sanitize(*desc)
	if d == "" {
		return nil
	}
	return &d
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func normalizeCategory(category *string) (*string, error) {
	if category == nil {
		return nil, nil
	}
	c, ok := model.NormalizeCategory(*category)
	if !ok {
		return nil, model.NewValidationError(
			"category must be one of: " + strings.Join(model.TaskCategories, ", "))
	}
	return &c, nil
}
