package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/taskman/internal/model"
)

func newTestUser(id, email, username string) *model.User {
	return &model.User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: "$2a$04$hash",
		IsActive:     true,
		JoinedAt:     time.Now(),
	}
}

func strPtr(s string) *string { return &s }

func TestMemoryUserRepo_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepo()

	if err := repo.Create(ctx, newTestUser("u1", "a@example.com", "alice")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	byID, err := repo.FindByID(ctx, "u1")
	if err != nil || byID == nil {
		t.Fatalf("FindByID() = %v, %v", byID, err)
	}
	if byID.Username != "alice" {
		t.Errorf("Username = %q, want alice", byID.Username)
	}

	byEmail, err := repo.FindByEmail(ctx, "a@example.com")
	if err != nil || byEmail == nil || byEmail.ID != "u1" {
		t.Fatalf("FindByEmail() = %v, %v", byEmail, err)
	}

	missing, err := repo.FindByEmail(ctx, "nobody@example.com")
	if err != nil || missing != nil {
		t.Errorf("FindByEmail(missing) = %v, %v, want nil, nil", missing, err)
	}
}

func TestMemoryUserRepo_Create_DuplicateEmailOrUsername(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepo()
	_ = repo.Create(ctx, newTestUser("u1", "a@example.com", "alice"))

	tests := []struct {
		name string
		user *model.User
	}{
		{"same email", newTestUser("u2", "a@example.com", "bob")},
		{"same username", newTestUser("u3", "b@example.com", "alice")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := repo.Create(ctx, tt.user); !errors.Is(err, ErrDuplicate) {
				t.Errorf("Create() error = %v, want ErrDuplicate", err)
			}
		})
	}

	exists, _ := repo.ExistsByEmailOrUsername(ctx, "x@example.com", "alice")
	if !exists {
		t.Error("ExistsByEmailOrUsername should be true for existing username")
	}
	exists, _ = repo.ExistsByEmailOrUsername(ctx, "x@example.com", "xavier")
	if exists {
		t.Error("ExistsByEmailOrUsername should be false for unknown email and username")
	}
}

func TestMemoryUserRepo_UpdatePassword(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepo()
	_ = repo.Create(ctx, newTestUser("u1", "a@example.com", "alice"))

	if err := repo.UpdatePassword(ctx, "u1", "new-hash"); err != nil {
		t.Fatalf("UpdatePassword() error = %v", err)
	}
	u, _ := repo.FindByID(ctx, "u1")
	if u.PasswordHash != "new-hash" {
		t.Errorf("PasswordHash = %q, want new-hash", u.PasswordHash)
	}

	if err := repo.UpdatePassword(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdatePassword(missing) error = %v, want ErrNotFound", err)
	}
}

func TestMemoryTaskRepo_OwnerScoping(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTaskRepo()
	now := time.Now()

	task := &model.Task{ID: "t1", UserID: "owner", Title: "Buy milk", CreatedAt: now, UpdatedAt: now}
	if err := repo.Create(ctx, task); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.FindByIDAndUser(ctx, "t1", "owner")
	if err != nil || got == nil {
		t.Fatalf("FindByIDAndUser(owner) = %v, %v", got, err)
	}

	other, err := repo.FindByIDAndUser(ctx, "t1", "intruder")
	if err != nil || other != nil {
		t.Errorf("FindByIDAndUser(intruder) = %v, %v, want nil, nil", other, err)
	}

	update := *task
	update.UserID = "intruder"
	update.Title = "Hijacked"
	if err := repo.Update(ctx, &update); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(intruder) error = %v, want ErrNotFound", err)
	}

	if err := repo.DeleteByIDAndUser(ctx, "t1", "intruder"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteByIDAndUser(intruder) error = %v, want ErrNotFound", err)
	}

	if err := repo.DeleteByIDAndUser(ctx, "t1", "owner"); err != nil {
		t.Errorf("DeleteByIDAndUser(owner) error = %v", err)
	}
	if got, _ := repo.FindByIDAndUser(ctx, "t1", "owner"); got != nil {
		t.Error("task should be gone after delete")
	}
}

func TestMemoryTaskRepo_ListByUser_FiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTaskRepo()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_ = repo.Create(ctx, &model.Task{ID: "t1", UserID: "u", Title: "old", Category: strPtr("work"), CreatedAt: base})
	_ = repo.Create(ctx, &model.Task{ID: "t2", UserID: "u", Title: "new", Category: strPtr("travel"), IsCompleted: true, CreatedAt: base.Add(time.Hour)})
	_ = repo.Create(ctx, &model.Task{ID: "t3", UserID: "someone-else", Title: "theirs", CreatedAt: base})

	all, _ := repo.ListByUser(ctx, "u", model.TaskFilter{})
	if len(all) != 2 {
		t.Fatalf("len(all) = %d, want 2", len(all))
	}
	if all[0].ID != "t2" || all[1].ID != "t1" {
		t.Errorf("order = [%s %s], want [t2 t1]", all[0].ID, all[1].ID)
	}

	work, _ := repo.ListByUser(ctx, "u", model.TaskFilter{Category: strPtr("work")})
	if len(work) != 1 || work[0].ID != "t1" {
		t.Errorf("category filter returned %v", work)
	}

	done := true
	completed, _ := repo.ListByUser(ctx, "u", model.TaskFilter{IsCompleted: &done})
	if len(completed) != 1 || completed[0].ID != "t2" {
		t.Errorf("completed filter returned %v", completed)
	}
}
