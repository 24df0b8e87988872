package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
)

// SalesOrder is created exactly once from a converted quote.
type SalesOrder struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	QuoteID     uuid.UUID              `gorm:"column:quote_id;type:uuid;not null;uniqueIndex:sales_orders_quote_id_key"`
	CustomerRef string                 `gorm:"column:customer_ref;not null"`
	ProductID   uuid.UUID              `gorm:"column:product_id;type:uuid;not null"`
	Quantity    decimal.Decimal        `gorm:"column:quantity;type:numeric(18,4);not null"`
	UnitPrice   decimal.Decimal        `gorm:"column:unit_price;type:numeric(18,4);not null;default:0"`
	Status      enums.SalesOrderStatus `gorm:"column:status;type:sales_order_status;not null"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *SalesOrder) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}
