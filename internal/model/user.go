// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// PasswordHashには作成時点からハッシュ値のみを保持し、平文は保持しない。
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	IsActive     bool
	JoinedAt     time.Time
}
