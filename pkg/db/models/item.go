package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
)

// Item is a catalog entry together with its single-pool stock position.
// Stock buckets are only written through inventory transactions.
type Item struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	SKU           string          `gorm:"column:sku;not null;uniqueIndex"`
	Name          string          `gorm:"column:name;not null"`
	Type          enums.ItemType  `gorm:"column:item_type;type:item_type;not null"`
	UnitOfMeasure string          `gorm:"column:unit_of_measure;not null;default:'ea'"`
	OnHandQty     decimal.Decimal `gorm:"column:on_hand_qty;type:numeric(18,4);not null;default:0"`
	AllocatedQty  decimal.Decimal `gorm:"column:allocated_qty;type:numeric(18,4);not null;default:0"`
	IncomingQty   decimal.Decimal `gorm:"column:incoming_qty;type:numeric(18,4);not null;default:0"`
	SafetyStock   decimal.Decimal `gorm:"column:safety_stock;type:numeric(18,4);not null;default:0"`
	StandardCost  decimal.Decimal `gorm:"column:standard_cost;type:numeric(18,4);not null;default:0"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *Item) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}

// AvailableQty is on hand minus allocated. It is never persisted.
func (i Item) AvailableQty() decimal.Decimal {
	return i.OnHandQty.Sub(i.AllocatedQty)
}
