package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
)

// InventoryTransaction is an append-only stock movement. Quantity is the
// signed delta applied to the bucket its Type names.
type InventoryTransaction struct {
	ID           uuid.UUID                      `gorm:"column:id;type:uuid;primaryKey"`
	ItemID       uuid.UUID                      `gorm:"column:item_id;type:uuid;not null;index"`
	Type         enums.InventoryTransactionType `gorm:"column:transaction_type;type:inventory_transaction_type;not null"`
	Quantity     decimal.Decimal                `gorm:"column:quantity;type:numeric(18,4);not null"`
	SourceType   enums.InventorySourceType      `gorm:"column:source_type;not null"`
	SourceID     *uuid.UUID                     `gorm:"column:source_id;type:uuid;index"`
	SourceLineID *uuid.UUID                     `gorm:"column:source_line_id;type:uuid"`
	Notes        *string                        `gorm:"column:notes"`
	CreatedAt    time.Time                      `gorm:"column:created_at;autoCreateTime"`
}

func (t *InventoryTransaction) BeforeCreate(*gorm.DB) error {
	assignID(&t.ID)
	return nil
}
