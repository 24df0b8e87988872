package db

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

type versionedRow struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	Status  string
	Version int
}

func TestUpdateVersioned(t *testing.T) {
	conn := newTestDB(t)
	if err := conn.AutoMigrate(&versionedRow{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	ctx := context.Background()
	row := versionedRow{ID: uuid.New(), Status: "draft", Version: 1}
	if err := conn.Create(&row).Error; err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := UpdateVersioned(ctx, conn, &versionedRow{}, row.ID, 1, map[string]any{"status": "ordered"}); err != nil {
		t.Fatalf("first update: %v", err)
	}
	err := UpdateVersioned(ctx, conn, &versionedRow{}, row.ID, 1, map[string]any{"status": "cancelled"})
	if !errors.Is(err, ErrStaleVersion) {
		t.Fatalf("expected stale version, got %v", err)
	}

	var got versionedRow
	if err := conn.First(&got, "id = ?", row.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != "ordered" || got.Version != 2 {
		t.Fatalf("unexpected row %+v", got)
	}
}
