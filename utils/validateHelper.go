package utils

import (
	"context"

	"github.com/mmdatafocus/contracts_backend/config"
)

// check if id exists, return RecordNotFound Error
func ValidateResourceId[T any](ctx context.Context, id interface{}) error {
	count, err := ResourceCountWhere[T](ctx, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}
	return nil
}

// column value must be unique within scopeColumn = scopeValue, except for exceptId
func ValidateUniqueWithin[T any](ctx context.Context, scopeColumn string, scopeValue interface{}, column string, value interface{}, exceptId int) error {
	var count int64
	var err error
	if exceptId == 0 {
		count, err = ResourceCountWhere[T](ctx, scopeColumn+" = ? AND "+column+" = ?", scopeValue, value)
	} else {
		count, err = ResourceCountWhere[T](ctx, scopeColumn+" = ? AND "+column+" = ? AND NOT id = ?", scopeValue, value, exceptId)
	}
	if err != nil {
		return err
	}
	if count > 0 {
		return InvalidInput("duplicate " + column)
	}
	return nil
}

func ResourceCountWhere[T any](ctx context.Context, condition string, value ...interface{}) (int64, error) {
	var model T
	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&model).Where(condition, value...).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func ValidateUnique[T any](ctx context.Context, column string, value interface{}, exceptId int) error {
	var count int64
	var err error
	if exceptId == 0 {
		count, err = ResourceCountWhere[T](ctx, column+" = ?", value)
	} else {
		count, err = ResourceCountWhere[T](ctx, column+" = ? AND NOT id = ?", value, exceptId)
	}
	if err != nil {
		return err
	}
	if count > 0 {
		return InvalidInput("duplicate " + column)
	}
	return nil
}
