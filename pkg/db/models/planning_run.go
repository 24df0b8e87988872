package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PlanningRun is the netted requirements recorded when a sales order is created.
type PlanningRun struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	SalesOrderID  uuid.UUID       `gorm:"column:sales_order_id;type:uuid;not null;uniqueIndex"`
	ProductID     uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Quantity      decimal.Decimal `gorm:"column:quantity;type:numeric(18,4);not null"`
	ShortageCount int             `gorm:"column:shortage_count;not null;default:0"`
	Requirements  json.RawMessage `gorm:"column:requirements;type:jsonb;not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (r *PlanningRun) BeforeCreate(*gorm.DB) error {
	assignID(&r.ID)
	return nil
}
