package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrStaleVersion is returned when a versioned update matched no row.
var ErrStaleVersion = errors.New("row version changed concurrently")

// UpdateVersioned applies updates to the row of model with id only while its
// version still equals version, and bumps the version by one.
func UpdateVersioned(ctx context.Context, tx *gorm.DB, model any, id uuid.UUID, version int, updates map[string]any) error {
	values := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		values[k] = v
	}
	values["version"] = version + 1
	res := tx.WithContext(ctx).
		Model(model).
		Where("id = ? AND version = ?", id, version).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleVersion
	}
	return nil
}
