// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// Task はユーザーが所有するタスクを表す。
// 所有者は常に1人（UserID）で、読み書きは必ず (ID, UserID) の組で絞り込む。
type Task struct {
	ID          string
	UserID      string
	Title       string
	Description *string
	IsCompleted bool
	DueDate     *time.Time
	Category    *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// タスクのフィールド制約
const (
	TaskTitleMinLength       = 3
	TaskTitleMaxLength       = 50
	TaskDescriptionMaxLength = 300
)

// TaskCategories は指定可能なカテゴリの一覧。保存時は小文字に正規化される。
var TaskCategories = []string{
	"work",
	"hobbies",
	"education",
	"savings",
	"health",
	"family",
	"personal",
	"shopping",
	"travel",
	"other",
}

// NormalizeCategory はカテゴリを小文字に正規化し、許可リストに含まれるかを返す。
func NormalizeCategory(category string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(category))
	for _, c := range TaskCategories {
		if c == normalized {
			return normalized, true
		}
	}
	return "", false
}

// TaskFilter はタスク一覧の絞り込み条件を表す。nilのフィールドは条件に含めない。
type TaskFilter struct {
	Category    *string
	IsCompleted *bool
}
