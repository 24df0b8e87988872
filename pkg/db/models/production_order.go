package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
)

// ProductionOrder builds QuantityOrdered of ProductID. QuantityCredited is the
// finished quantity already posted to on hand.
type ProductionOrder struct {
	ID                uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	ProductID         uuid.UUID                   `gorm:"column:product_id;type:uuid;not null"`
	SalesOrderID      *uuid.UUID                  `gorm:"column:sales_order_id;type:uuid;index"`
	ParentOrderID     *uuid.UUID                  `gorm:"column:parent_order_id;type:uuid"`
	Status            enums.ProductionOrderStatus `gorm:"column:status;type:production_order_status;not null"`
	QuantityOrdered   decimal.Decimal             `gorm:"column:quantity_ordered;type:numeric(18,4);not null"`
	QuantityCompleted decimal.Decimal             `gorm:"column:quantity_completed;type:numeric(18,4);not null;default:0"`
	QuantityCredited  decimal.Decimal             `gorm:"column:quantity_credited;type:numeric(18,4);not null;default:0"`
	ScrapReason       *string                     `gorm:"column:scrap_reason"`
	ReleasedAt        *time.Time                  `gorm:"column:released_at"`
	StartedAt         *time.Time                  `gorm:"column:started_at"`
	CompletedAt       *time.Time                  `gorm:"column:completed_at"`
	ScrappedAt        *time.Time                  `gorm:"column:scrapped_at"`
	Version           int                         `gorm:"column:version;not null;default:1"`
	CreatedAt         time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *ProductionOrder) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}

// OutstandingSupply is the ordered quantity not yet credited to on hand.
func (o ProductionOrder) OutstandingSupply() decimal.Decimal {
	rest := o.QuantityOrdered.Sub(o.QuantityCredited)
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}
