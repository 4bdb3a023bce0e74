package task

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hitoshi/taskman/internal/model"
)

// OwnedLookup はリソースIDと所有者IDの組でリソースを取得する関数。
// 一致するものがない場合はnil, nilを返す。
type OwnedLookup[T any] func(ctx context.Context, resourceID, ownerID string) (*T, error)

// Authorize は呼び出し元が所有するリソースを返す。
// IDの形式不正、存在しない、他人の所有のいずれでも同じNotFoundエラーを返すため、
// 呼び出し元は他人のリソースの存在を知ることができない。
func Authorize[T any](ctx context.Context, lookup OwnedLookup[T], resourceID, callerID string) (*T, error) {
	if !isResourceID(resourceID) {
		return nil, model.NewTaskNotFoundError()
	}

	res, err := lookup(ctx, resourceID, callerID)
	if err != nil {
		return nil, fmt.Errorf("failed to find owned resource: %w", err)
	}
	if res == nil {
		return nil, model.NewTaskNotFoundError()
	}
	return res, nil
}

func isResourceID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
