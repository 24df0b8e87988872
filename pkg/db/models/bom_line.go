package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BOMLine is one parent -> component edge of a bill of materials.
type BOMLine struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ParentItemID    uuid.UUID       `gorm:"column:parent_item_id;type:uuid;not null;index"`
	ComponentItemID uuid.UUID       `gorm:"column:component_item_id;type:uuid;not null"`
	QuantityPerUnit decimal.Decimal `gorm:"column:quantity_per_unit;type:numeric(18,6);not null"`
	Position        int             `gorm:"column:position;not null;default:0"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (BOMLine) TableName() string { return "bom_lines" }

func (l *BOMLine) BeforeCreate(*gorm.DB) error {
	assignID(&l.ID)
	return nil
}
